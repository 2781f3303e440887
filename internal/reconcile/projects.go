package reconcile

import (
	"fmt"

	"github.com/melih-ucgun/warden/internal/backend"
	"github.com/melih-ucgun/warden/internal/config"
	"github.com/melih-ucgun/warden/internal/core"
)

var modelSchema = Schema{
	{Name: "project_name", Type: FieldScalar},
	{Name: "allowed_db_connection_names", Type: FieldStringSet},
}

// ProjectReconciler manages projects and their model bindings. Projects are
// create-only: settings on existing projects belong to the admins, not to
// this tool. Model mutations require the dev workspace, so both Diff and
// Apply run inside a workspace scope that is always restored.
type ProjectReconciler struct {
	Client backend.Client
}

// inDevWorkspace switches the shared session into the dev workspace for the
// duration of fn and restores production on every exit path.
func (r *ProjectReconciler) inDevWorkspace(ctx *core.RunContext, fn func() error) error {
	if err := r.Client.SetWorkspace(ctx, "dev"); err != nil {
		ctx.Logger.Warn(fmt.Sprintf("Failed to switch to dev workspace: %v", err))
	}
	defer func() {
		if err := r.Client.SetWorkspace(ctx, "production"); err != nil {
			ctx.Logger.Warn(fmt.Sprintf("Failed to restore production workspace: %v", err))
		}
	}()
	return fn()
}

// Diff computes project creations plus model creations/updates.
func (r *ProjectReconciler) Diff(ctx *core.RunContext, desired []config.Project) ([]core.DiffItem, error) {
	if len(desired) == 0 {
		return nil, nil
	}

	var items []core.DiffItem
	err := r.inDevWorkspace(ctx, func() error {
		projects, err := r.Client.ListProjects(ctx)
		if err != nil {
			return &core.FetchError{Kind: core.KindProject, Err: err}
		}
		models, err := r.Client.ListModels(ctx)
		if err != nil {
			return &core.FetchError{Kind: core.KindModel, Err: err}
		}

		projectIDs := make(map[string]bool, len(projects))
		for _, p := range projects {
			projectIDs[p.ID] = true
		}
		modelsByName := make(map[string]backend.Record, len(models))
		for _, m := range models {
			modelsByName[m.Name] = m
		}

		for _, proj := range desired {
			if proj.Name == "" {
				continue
			}
			if !projectIDs[proj.Name] {
				items = append(items, core.DiffItem{
					Action:  core.ActionCreate,
					Kind:    core.KindProject,
					Name:    proj.Name,
					Payload: map[string]any{"name": proj.Name},
				})
			}

			for _, model := range proj.Models {
				if model.ModelName == "" {
					continue
				}
				payload := map[string]any{
					"name":                        model.ModelName,
					"project_name":                proj.Name,
					"allowed_db_connection_names": sortedCopy(model.ConnectionNames),
				}

				existing, ok := modelsByName[model.ModelName]
				if !ok {
					items = append(items, core.DiffItem{
						Action:  core.ActionCreate,
						Kind:    core.KindModel,
						Name:    model.ModelName,
						Payload: payload,
					})
					continue
				}

				changes := DiffFields(modelSchema, payload, existing.Fields)
				if len(changes) > 0 {
					items = append(items, core.DiffItem{
						Action:  core.ActionUpdate,
						Kind:    core.KindModel,
						Name:    model.ModelName,
						ID:      existing.ID,
						Changes: changes,
						Payload: payload,
					})
				}
			}
		}
		return nil
	})
	return items, err
}

// Apply executes project and model items inside the dev workspace scope.
func (r *ProjectReconciler) Apply(ctx *core.RunContext, items []core.DiffItem) core.Summary {
	summary := core.Summary{Kind: core.KindProject}
	if len(items) == 0 {
		return summary
	}

	_ = r.inDevWorkspace(ctx, func() error {
		for _, item := range items {
			var err error
			switch {
			case item.Kind == core.KindProject:
				ctx.Logger.Info(fmt.Sprintf("Creating project '%s'", item.Name))
				err = r.Client.CreateProject(ctx, item.Payload)
			case item.Action == core.ActionCreate:
				ctx.Logger.Info(fmt.Sprintf("Creating model '%s'", item.Name))
				err = r.Client.CreateModel(ctx, item.Payload)
			default:
				ctx.Logger.Info(fmt.Sprintf("Updating model '%s'", item.Name))
				err = r.Client.UpdateModel(ctx, item.Name, item.Payload)
			}

			if err != nil {
				applyErr := &core.ApplyError{Item: item, Err: err}
				ctx.Logger.Error(applyErr.Error())
				summary.Record(core.Failure(applyErr, item.Name))
				continue
			}
			summary.Record(core.SuccessChange(item.Name))
		}
		return nil
	})
	return summary
}
