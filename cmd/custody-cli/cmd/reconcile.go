package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

var reconcileTimeout time.Duration

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Resolve pending withdrawals whose on-chain outcome is unknown",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.close()

		ctx, cancel := context.WithTimeout(cmd.Context(), reconcileTimeout)
		defer cancel()
		return rt.reconciler.ReconcileOnce(ctx)
	},
}

func init() {
	reconcileCmd.Flags().DurationVar(&reconcileTimeout, "timeout", 2*time.Minute, "overall time limit for the reconcile cycle")
	rootCmd.AddCommand(reconcileCmd)
}
