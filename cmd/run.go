package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/melih-ucgun/warden/internal/config"
	"github.com/melih-ucgun/warden/internal/core"
	"github.com/melih-ucgun/warden/internal/reconcile"
	"github.com/melih-ucgun/warden/internal/secrets"
)

// runReconcile is the shared body of check and apply. It wires the signal
// aware context, the client and the config directory into one runner pass.
func runReconcile(dryRun bool) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	rctx := core.NewRunContext(ctx, dryRun)
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

	runner := reconcile.NewRunner(client, secrets.NewResolver())
	summaries, err := runner.Run(rctx, cfg)
	if err != nil {
		if ctx.Err() == context.Canceled {
			rctx.Logger.Warn("Run cancelled")
			os.Exit(130)
		}
		return err
	}

	for _, s := range summaries {
		if s.Failed > 0 {
			return fmt.Errorf("%d changes failed to apply", totalFailed(summaries))
		}
	}
	return nil
}

func totalFailed(summaries []core.Summary) int {
	n := 0
	for _, s := range summaries {
		n += s.Failed
	}
	return n
}
