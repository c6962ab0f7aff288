package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/SmooAI/logdex/internal/index"
)

var watchLive bool

func init() {
	watchCmd.Flags().BoolVar(&watchLive, "live", true, "Apply detected changes automatically")
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch [root]",
	Short: "Index root, then keep the catalog up to date until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, opts, log, err := loadSetup()
		if err != nil {
			return err
		}

		svc := index.NewService(opts)
		defer svc.Close()
		svc.SetLive(watchLive)

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
		fmt.Printf("indexed %d files, %d rows; watching %s\n", len(cat.Files), len(cat.Rows), args[0])

		if err := svc.StartWatch(args[0]); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()

		log.Info().Msg("shutting down")
		svc.StopWatch()
		return nil
	},
}
