package cmd

import (
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Show what would change without touching the backend",
	Long: `Check loads the configuration, validates it, diffs it against the live
backend and prints the plan. Nothing is mutated.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReconcile(true)
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
