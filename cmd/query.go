package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/spf13/cobra"

	"github.com/SmooAI/logdex/internal/index"
	"github.com/SmooAI/logdex/internal/store"
)

var (
	queryEq    []string
	querySince string
	queryUntil string
	queryLimit int
)

func init() {
	queryCmd.Flags().StringArrayVar(&queryEq, "eq", nil, "Column filter as key=value (repeatable)")
	queryCmd.Flags().StringVar(&querySince, "since", "", "Only rows at or after this RFC3339 time")
	queryCmd.Flags().StringVar(&queryUntil, "until", "", "Only rows at or before this RFC3339 time")
	queryCmd.Flags().IntVar(&queryLimit, "limit", 100, "Maximum rows to print (0 = all)")
	rootCmd.AddCommand(queryCmd)
}

var queryCmd = &cobra.Command{
	Use:   "query [root]",
	Short: "Index root once and print rows matching the given filters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, opts, _, err := loadSetup()
		if err != nil {
			return err
		}

		var from, to time.Time
		if querySince != "" {
			if from, err = time.Parse(time.RFC3339, querySince); err != nil {
				return fmt.Errorf("parse --since: %w", err)
			}
		}
		if queryUntil != "" {
			if to, err = time.Parse(time.RFC3339, queryUntil); err != nil {
				return fmt.Errorf("parse --until: %w", err)
			}
		}

		svc := index.NewService(opts)
		defer svc.Close()

		sub, err := svc.StartIndex(args[0])
		if err != nil {
			return err
		}
		for ev := range sub.Events() {
			if ev.Phase == index.PhaseFailed {
				return ev.Err
			}
		}

		cat := svc.GetCatalog()
		if cat == nil {
			return fmt.Errorf("build produced no catalog")
		}
		q, ok := cat.Store.(store.Querier)
		if !ok {
			return fmt.Errorf("catalog store is not queryable")
		}

		var match *roaring.Bitmap
		intersect := func(bm *roaring.Bitmap) {
			if match == nil {
				match = bm
			} else {
				match.And(bm)
			}
		}

		for _, f := range queryEq {
			key, value, found := strings.Cut(f, "=")
			if !found {
				return fmt.Errorf("bad --eq filter %q, want key=value", f)
			}
			bm, err := q.FilterEqual(key, value)
			if err != nil {
				return err
			}
			intersect(bm)
		}
		if querySince != "" || queryUntil != "" {
			bm, err := q.FilterTime(from, to)
			if err != nil {
				return err
			}
			intersect(bm)
		}
		if match == nil {
			match = roaring.New()
			match.AddRange(0, uint64(len(cat.Rows)))
		}

		printed := 0
		it := match.Iterator()
		for it.HasNext() {
			id := it.Next()
			if int(id) >= len(cat.Rows) {
				break
			}
			if queryLimit > 0 && printed >= queryLimit {
				fmt.Printf("... %d more rows\n", int(match.GetCardinality())-printed)
				break
			}
			row := cat.Rows[id]
			ts := ""
			if row.HasTime() {
				ts = row.Time.Format(time.RFC3339Nano)
			}
			fmt.Printf("%s\t%s\t%s\t%s\n", ts, row.Level, row.File, row.Message)
			printed++
		}
		fmt.Printf("%d of %d rows matched\n", match.GetCardinality(), len(cat.Rows))
		return nil
	},
}
