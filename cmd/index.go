package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/SmooAI/logdex/internal/index"
)

func init() {
	rootCmd.AddCommand(indexCmd)
}

var indexCmd = &cobra.Command{
	Use:   "index [root]",
	Short: "Build a catalog for every log file under root and print a summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, opts, _, err := loadSetup()
		if err != nil {
			return err
		}

		svc := index.NewService(opts)
		defer svc.Close()

		start := time.Now()
		sub, err := svc.StartIndex(args[0])
		if err != nil {
			return err
		}

		var skippedLines, skippedFiles int
		for ev := range sub.Events() {
			switch ev.Phase {
			case index.PhaseParsing:
				fmt.Printf("\rparsing %d/%d files", ev.FilesProcessed, ev.FilesTotal)
			case index.PhaseMerging:
				skippedLines = ev.SkippedLines
				skippedFiles = ev.SkippedFiles
				fmt.Printf("\rparsed %d files, merging\n", ev.FilesTotal)
			case index.PhaseFailed:
				fmt.Println()
				return ev.Err
			}
		}

		cat := svc.GetCatalog()
		if cat == nil {
			return fmt.Errorf("build produced no catalog")
		}
		fmt.Printf("indexed %d files: %d rows, %d columns in %s\n",
			len(cat.Files), len(cat.Rows), len(cat.Columns), time.Since(start).Round(time.Millisecond))
		if skippedLines > 0 || skippedFiles > 0 {
			fmt.Printf("skipped %d unparseable lines, %d unreadable files\n", skippedLines, skippedFiles)
		}
		return nil
	},
}
