package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/melih-ucgun/warden/internal/config"
	"github.com/melih-ucgun/warden/internal/core"
	"github.com/melih-ucgun/warden/internal/protect"
	"github.com/melih-ucgun/warden/internal/reconcile"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration's cross references",
	Long: `Validate checks every name reference in the configuration (role sets,
permissions, mirrored groups, model connections, folder principals) without
planning or applying anything.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rctx := core.NewRunContext(context.Background(), true)
		if verboseCount > 0 {
			rctx.Logger.SetLevel(core.LevelDebug)
		}

		client, err := newClient()
		if err != nil {
			return err
		}

		cfg, err := config.Load(configDir)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := config.Prepare(cfg, rctx); err != nil {
			return fmt.Errorf("failed to prepare configuration: %w", err)
		}

		validator := &reconcile.Validator{Client: client, Policy: protect.NewPolicy()}
		return validator.Validate(rctx, cfg)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
