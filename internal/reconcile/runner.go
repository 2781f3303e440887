package reconcile

import (
	"errors"
	"fmt"

	"github.com/pterm/pterm"

	"github.com/melih-ucgun/warden/internal/backend"
	"github.com/melih-ucgun/warden/internal/config"
	"github.com/melih-ucgun/warden/internal/core"
	"github.com/melih-ucgun/warden/internal/protect"
	"github.com/melih-ucgun/warden/internal/secrets"
)

// Runner drives a full reconciliation pass: prepare the config, validate
// it, then diff and apply each kind in dependency order. Connections come
// first because models reference them, roles before folders so role ids
// exist for mirrored groups, auth last.
type Runner struct {
	Client  backend.Client
	Secrets *secrets.Resolver
	Policy  *protect.Policy
}

func NewRunner(client backend.Client, resolver *secrets.Resolver) *Runner {
	return &Runner{
		Client:  client,
		Secrets: resolver,
		Policy:  protect.NewPolicy(),
	}
}

// Run executes one reconciliation pass. In dry-run mode it stops after
// rendering the plan for each kind. A validation failure aborts before any
// diff; a kind-level fetch failure skips that kind and continues.
func (r *Runner) Run(ctx *core.RunContext, cfg *config.Config) ([]core.Summary, error) {
	if err := config.Prepare(cfg, ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare configuration: %w", err)
	}

	validator := &Validator{Client: r.Client, Policy: r.Policy}
	if err := validator.Validate(ctx, cfg); err != nil {
		return nil, err
	}

	var summaries []core.Summary

	summaries = append(summaries, r.runConnections(ctx, cfg))
	summaries = append(summaries, r.runProjects(ctx, cfg))
	summaries = append(summaries, r.runRoles(ctx, cfg))
	summaries = append(summaries, r.runFolders(ctx, cfg))
	summaries = append(summaries, r.runAuth(ctx, cfg))

	r.printSummary(ctx, summaries)
	return summaries, nil
}

func (r *Runner) runConnections(ctx *core.RunContext, cfg *config.Config) core.Summary {
	rec := &ConnectionReconciler{Client: r.Client, Secrets: r.Secrets}
	items, err := rec.Diff(ctx, cfg.Connections)
	if err != nil {
		return r.skipKind(ctx, core.KindConnection, err)
	}
	r.renderPlan(ctx, core.KindConnection, items)
	if ctx.DryRun || len(items) == 0 {
		return core.Summary{Kind: core.KindConnection}
	}
	return rec.Apply(ctx, items)
}

func (r *Runner) runProjects(ctx *core.RunContext, cfg *config.Config) core.Summary {
	rec := &ProjectReconciler{Client: r.Client}
	items, err := rec.Diff(ctx, cfg.Projects)
	if err != nil {
		return r.skipKind(ctx, core.KindProject, err)
	}
	r.renderPlan(ctx, core.KindProject, items)
	if ctx.DryRun || len(items) == 0 {
		return core.Summary{Kind: core.KindProject}
	}
	return rec.Apply(ctx, items)
}

func (r *Runner) runRoles(ctx *core.RunContext, cfg *config.Config) core.Summary {
	rec := &RoleReconciler{Client: r.Client, Policy: r.Policy}
	plan, err := rec.Diff(ctx, cfg.Roles)
	if err != nil {
		return r.skipKind(ctx, core.KindRole, err)
	}
	r.renderPlan(ctx, core.KindRole, plan.Items())
	if ctx.DryRun {
		return core.Summary{Kind: core.KindRole}
	}
	return rec.Apply(ctx, plan)
}

func (r *Runner) runFolders(ctx *core.RunContext, cfg *config.Config) core.Summary {
	rec := &FolderReconciler{Client: r.Client}
	changes, err := rec.Plan(ctx, cfg.Folders)
	if err != nil {
		return r.skipKind(ctx, core.KindFolder, err)
	}
	items := make([]core.DiffItem, 0, len(changes))
	for i := range changes {
		items = append(items, changes[i].item())
	}
	r.renderPlan(ctx, core.KindFolder, items)
	if ctx.DryRun || len(changes) == 0 {
		return core.Summary{Kind: core.KindFolder}
	}
	return rec.Apply(ctx, changes)
}

func (r *Runner) runAuth(ctx *core.RunContext, cfg *config.Config) core.Summary {
	rec := &AuthReconciler{Client: r.Client, Secrets: r.Secrets}
	items, err := rec.Diff(ctx, cfg.Auth)
	if err != nil {
		return r.skipKind(ctx, core.KindAuthConfig, err)
	}
	r.renderPlan(ctx, core.KindAuthConfig, items)
	if ctx.DryRun || len(items) == 0 {
		return core.Summary{Kind: core.KindAuthConfig}
	}
	return rec.Apply(ctx, items)
}

// skipKind turns a kind-level fetch failure into an empty skipped summary.
// One unreachable endpoint should not block the kinds that still work.
func (r *Runner) skipKind(ctx *core.RunContext, kind core.Kind, err error) core.Summary {
	var fetchErr *core.FetchError
	if errors.As(err, &fetchErr) {
		ctx.Logger.Warn(fmt.Sprintf("Skipping %s: %v", kind, err))
		return core.Summary{Kind: kind, Skipped: 1}
	}
	ctx.Logger.Error(fmt.Sprintf("Planning %s failed: %v", kind, err))
	return core.Summary{Kind: kind, Failed: 1}
}

func (r *Runner) renderPlan(ctx *core.RunContext, kind core.Kind, items []core.DiffItem) {
	if len(items) == 0 {
		ctx.Logger.Info(fmt.Sprintf("%s: no changes", kind))
		return
	}
	pterm.DefaultSection.WithWriter(ctx.Stdout).Printf("%s (%d changes)", kind, len(items))
	for _, item := range items {
		fmt.Fprintln(ctx.Stdout, core.RenderItem(item))
	}
}

func (r *Runner) printSummary(ctx *core.RunContext, summaries []core.Summary) {
	if ctx.DryRun {
		ctx.Logger.Info("Dry run complete, no changes applied")
		return
	}
	var succeeded, failed, skipped int
	for _, s := range summaries {
		succeeded += s.Succeeded
		failed += s.Failed
		skipped += s.Skipped
	}
	msg := fmt.Sprintf("Run %s finished: %d succeeded, %d failed, %d skipped", ctx.RunID, succeeded, failed, skipped)
	if failed > 0 {
		ctx.Logger.Warn(msg)
		return
	}
	ctx.Logger.Info(msg)
}
