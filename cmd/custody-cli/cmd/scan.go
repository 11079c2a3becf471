package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

var scanTimeout time.Duration

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one deposit scan cycle against the custodial hot wallet",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.close()

		ctx, cancel := context.WithTimeout(cmd.Context(), scanTimeout)
		defer cancel()
		return rt.scanner.ScanOnce(ctx)
	},
}

func init() {
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", 2*time.Minute, "overall time limit for the scan cycle")
	rootCmd.AddCommand(scanCmd)
}
