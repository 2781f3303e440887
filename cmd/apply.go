package cmd

import (
	"github.com/spf13/cobra"
)

var applyDryRun bool

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply the configuration to the backend",
	Long: `Apply diffs the configuration against the live backend and executes the
resulting plan. Failed items are reported and skipped; the run is safe to
repeat until it converges.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReconcile(applyDryRun)
	},
}

func init() {
	rootCmd.AddCommand(applyCmd)
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "render the plan without applying it")
}
