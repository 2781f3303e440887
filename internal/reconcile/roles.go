package reconcile

import (
	"fmt"

	"github.com/melih-ucgun/warden/internal/backend"
	"github.com/melih-ucgun/warden/internal/config"
	"github.com/melih-ucgun/warden/internal/core"
	"github.com/melih-ucgun/warden/internal/protect"
)

// RolePlan holds the role-triad actions in the order they must apply.
// Deleting roles first frees their set references; recreating sets before
// roles lets a role bind to a set created in the same pass. Flattening this
// into one action-tagged list and filtering it three times is exactly the
// bug farm this layout avoids.
type RolePlan struct {
	DeleteRoles          []core.DiffItem
	DeletePermissionSets []core.DiffItem
	DeleteModelSets      []core.DiffItem
	UpsertPermissionSets []core.DiffItem
	UpsertModelSets      []core.DiffItem
	UpsertRoles          []core.DiffItem

	// Suppressed holds actions the protection policy blocked during Diff.
	// They never render or apply but are tallied as skipped.
	Suppressed []core.Result
}

// Items returns the plan flattened in apply order, for rendering.
func (p *RolePlan) Items() []core.DiffItem {
	var items []core.DiffItem
	items = append(items, p.DeleteRoles...)
	items = append(items, p.DeletePermissionSets...)
	items = append(items, p.DeleteModelSets...)
	items = append(items, p.UpsertPermissionSets...)
	items = append(items, p.UpsertModelSets...)
	items = append(items, p.UpsertRoles...)
	return items
}

func (p *RolePlan) Empty() bool {
	return len(p.Items()) == 0
}

// RoleReconciler manages the Role / PermissionSet / ModelSet reference
// graph. It is the only reconciler that computes deletes.
type RoleReconciler struct {
	Client backend.Client
	Policy *protect.Policy

	// name -> id maps, rebuilt fresh each run and updated as sets are
	// created during apply.
	permSetIDs  map[string]string
	modelSetIDs map[string]string
	roleIDs     map[string]string
}

func (r *RoleReconciler) loadState(ctx *core.RunContext) ([]backend.PermissionSet, []backend.ModelSet, []backend.Role, error) {
	permSets, err := r.Client.ListPermissionSets(ctx)
	if err != nil {
		return nil, nil, nil, &core.FetchError{Kind: core.KindPermissionSet, Err: err}
	}
	modelSets, err := r.Client.ListModelSets(ctx)
	if err != nil {
		return nil, nil, nil, &core.FetchError{Kind: core.KindModelSet, Err: err}
	}
	roles, err := r.Client.ListRoles(ctx)
	if err != nil {
		return nil, nil, nil, &core.FetchError{Kind: core.KindRole, Err: err}
	}

	r.permSetIDs = make(map[string]string, len(permSets))
	for _, ps := range permSets {
		r.permSetIDs[ps.Name] = ps.ID
	}
	r.modelSetIDs = make(map[string]string, len(modelSets))
	for _, ms := range modelSets {
		r.modelSetIDs[ms.Name] = ms.ID
	}
	r.roleIDs = make(map[string]string, len(roles))
	for _, role := range roles {
		r.roleIDs[role.Name] = role.ID
	}
	return permSets, modelSets, roles, nil
}

// Diff computes the full ordered plan for the triad.
func (r *RoleReconciler) Diff(ctx *core.RunContext, desired config.Roles) (*RolePlan, error) {
	plan := &RolePlan{}
	if len(desired.PermissionSets) == 0 && len(desired.ModelSets) == 0 && len(desired.Roles) == 0 {
		return plan, nil
	}

	permSets, modelSets, roles, err := r.loadState(ctx)
	if err != nil {
		return nil, err
	}

	// Upserts: permission sets, then model sets, by member-list content.
	liveSetMembers := make(map[string][]string, len(permSets))
	for _, ps := range permSets {
		liveSetMembers[ps.Name] = ps.Permissions
	}
	for _, ps := range desired.PermissionSets {
		plan.UpsertPermissionSets = appendSetItem(plan.UpsertPermissionSets,
			core.KindPermissionSet, ps.Name, "permissions", ps.Permissions,
			liveSetMembers, r.permSetIDs)
	}

	liveModelMembers := make(map[string][]string, len(modelSets))
	for _, ms := range modelSets {
		liveModelMembers[ms.Name] = ms.Models
	}
	for _, ms := range desired.ModelSets {
		plan.UpsertModelSets = appendSetItem(plan.UpsertModelSets,
			core.KindModelSet, ms.Name, "models", ms.Models,
			liveModelMembers, r.modelSetIDs)
	}

	// Roles: resolve the currently bound set ids back to names and compare
	// against the desired names. The DiffItem keeps the names; ids are
	// resolved only at apply time because the sets may not exist yet.
	permSetNames := invert(r.permSetIDs)
	modelSetNames := invert(r.modelSetIDs)
	liveRoles := make(map[string]backend.Role, len(roles))
	for _, role := range roles {
		liveRoles[role.Name] = role
	}

	for _, role := range desired.Roles {
		payload := map[string]any{
			"name":           role.Name,
			"permission_set": role.PermissionSet,
			"model_set":      role.ModelSet,
		}

		current, exists := liveRoles[role.Name]
		if !exists {
			plan.UpsertRoles = append(plan.UpsertRoles, core.DiffItem{
				Action:  core.ActionCreate,
				Kind:    core.KindRole,
				Name:    role.Name,
				Payload: payload,
			})
			continue
		}

		var changes []core.FieldChange
		if curr := permSetNames[current.PermissionSetID]; curr != role.PermissionSet {
			changes = append(changes, core.FieldChange{Field: "permission_set", Old: curr, New: role.PermissionSet})
		}
		if curr := modelSetNames[current.ModelSetID]; curr != role.ModelSet {
			changes = append(changes, core.FieldChange{Field: "model_set", Old: curr, New: role.ModelSet})
		}
		if len(changes) == 0 {
			continue
		}

		if r.Policy.IsProtected(core.KindRole, role.Name, core.ActionUpdate) {
			ctx.Logger.Info(fmt.Sprintf("Skipping protected update of role '%s'", role.Name))
			plan.Suppressed = append(plan.Suppressed, core.SuccessNoChange(role.Name))
			continue
		}
		plan.UpsertRoles = append(plan.UpsertRoles, core.DiffItem{
			Action:  core.ActionUpdate,
			Kind:    core.KindRole,
			Name:    role.Name,
			ID:      current.ID,
			Changes: changes,
			Payload: payload,
		})
	}

	// Deletes: anything live whose name is absent from desired, unless the
	// name is protected. Roles go first so the sets become unreferenced.
	desiredRoles := nameSet(desired.Roles, func(r config.Role) string { return r.Name })
	for _, role := range roles {
		if desiredRoles[role.Name] {
			continue
		}
		if r.Policy.IsProtected(core.KindRole, role.Name, core.ActionDelete) {
			ctx.Logger.Info(fmt.Sprintf("Skipping protected deletion of role '%s'", role.Name))
			plan.Suppressed = append(plan.Suppressed, core.SuccessNoChange(role.Name))
			continue
		}
		plan.DeleteRoles = append(plan.DeleteRoles, core.DiffItem{
			Action: core.ActionDelete, Kind: core.KindRole, Name: role.Name, ID: role.ID,
		})
	}

	desiredPermSets := nameSet(desired.PermissionSets, func(ps config.PermissionSet) string { return ps.Name })
	for _, ps := range permSets {
		if desiredPermSets[ps.Name] {
			continue
		}
		if r.Policy.IsProtected(core.KindPermissionSet, ps.Name, core.ActionDelete) {
			ctx.Logger.Info(fmt.Sprintf("Skipping protected deletion of permission set '%s'", ps.Name))
			plan.Suppressed = append(plan.Suppressed, core.SuccessNoChange(ps.Name))
			continue
		}
		plan.DeletePermissionSets = append(plan.DeletePermissionSets, core.DiffItem{
			Action: core.ActionDelete, Kind: core.KindPermissionSet, Name: ps.Name, ID: ps.ID,
		})
	}

	desiredModelSets := nameSet(desired.ModelSets, func(ms config.ModelSet) string { return ms.Name })
	for _, ms := range modelSets {
		if desiredModelSets[ms.Name] {
			continue
		}
		if r.Policy.IsProtected(core.KindModelSet, ms.Name, core.ActionDelete) {
			ctx.Logger.Info(fmt.Sprintf("Skipping protected deletion of model set '%s'", ms.Name))
			plan.Suppressed = append(plan.Suppressed, core.SuccessNoChange(ms.Name))
			continue
		}
		plan.DeleteModelSets = append(plan.DeleteModelSets, core.DiffItem{
			Action: core.ActionDelete, Kind: core.KindModelSet, Name: ms.Name, ID: ms.ID,
		})
	}

	return plan, nil
}

// appendSetItem handles the shared create-or-update logic for both set kinds.
func appendSetItem(items []core.DiffItem, kind core.Kind, name, field string, members []string, live map[string][]string, ids map[string]string) []core.DiffItem {
	target := sortedCopy(members)
	payload := map[string]any{"name": name, field: target}

	current, exists := live[name]
	if !exists {
		return append(items, core.DiffItem{
			Action: core.ActionCreate, Kind: kind, Name: name, Payload: payload,
		})
	}
	if stringSetEqual(current, target) {
		return items
	}
	return append(items, core.DiffItem{
		Action: core.ActionUpdate,
		Kind:   kind,
		Name:   name,
		ID:     ids[name],
		Changes: []core.FieldChange{{
			Field: field,
			Old:   displayValue(sortedCopy(current)),
			New:   displayValue(target),
		}},
		Payload: payload,
	})
}

// Apply walks the plan stages in order, keeping the name -> id maps current
// so roles can bind to sets created moments earlier. Individual failures are
// logged and tallied; the rest of the batch proceeds.
func (r *RoleReconciler) Apply(ctx *core.RunContext, plan *RolePlan) core.Summary {
	summary := core.Summary{Kind: core.KindRole}
	for _, res := range plan.Suppressed {
		summary.Record(res)
	}
	if plan.Empty() {
		return summary
	}

	// Stage 1: delete roles, freeing set references.
	for _, item := range plan.DeleteRoles {
		ctx.Logger.Info(fmt.Sprintf("Deleting role '%s'", item.Name))
		r.recordMutation(ctx, &summary, item, r.Client.DeleteRole(ctx, item.ID))
		delete(r.roleIDs, item.Name)
	}

	// Stage 2: delete now-unreferenced sets.
	for _, item := range plan.DeletePermissionSets {
		ctx.Logger.Info(fmt.Sprintf("Deleting permission set '%s'", item.Name))
		r.recordMutation(ctx, &summary, item, r.Client.DeletePermissionSet(ctx, item.ID))
		delete(r.permSetIDs, item.Name)
	}
	for _, item := range plan.DeleteModelSets {
		ctx.Logger.Info(fmt.Sprintf("Deleting model set '%s'", item.Name))
		r.recordMutation(ctx, &summary, item, r.Client.DeleteModelSet(ctx, item.ID))
		delete(r.modelSetIDs, item.Name)
	}

	// Stage 3+4: upsert sets, recording fresh ids for role resolution.
	for _, item := range plan.UpsertPermissionSets {
		members := asStringSlice(item.Payload["permissions"])
		if item.Action == core.ActionCreate {
			ctx.Logger.Info(fmt.Sprintf("Creating permission set '%s'", item.Name))
			id, err := r.Client.CreatePermissionSet(ctx, item.Name, members)
			if err == nil {
				r.permSetIDs[item.Name] = id
			}
			r.recordMutation(ctx, &summary, item, err)
			continue
		}
		ctx.Logger.Info(fmt.Sprintf("Updating permission set '%s'", item.Name))
		r.recordMutation(ctx, &summary, item, r.Client.UpdatePermissionSet(ctx, item.ID, members))
	}
	for _, item := range plan.UpsertModelSets {
		members := asStringSlice(item.Payload["models"])
		if item.Action == core.ActionCreate {
			ctx.Logger.Info(fmt.Sprintf("Creating model set '%s'", item.Name))
			id, err := r.Client.CreateModelSet(ctx, item.Name, members)
			if err == nil {
				r.modelSetIDs[item.Name] = id
			}
			r.recordMutation(ctx, &summary, item, err)
			continue
		}
		ctx.Logger.Info(fmt.Sprintf("Updating model set '%s'", item.Name))
		r.recordMutation(ctx, &summary, item, r.Client.UpdateModelSet(ctx, item.ID, members))
	}

	// Stage 5: upsert roles with set names resolved against the maps that
	// steps 3-4 just updated.
	for _, item := range plan.UpsertRoles {
		psName, _ := item.Payload["permission_set"].(string)
		msName, _ := item.Payload["model_set"].(string)

		psID, psOK := r.permSetIDs[psName]
		msID, msOK := r.modelSetIDs[msName]
		if !psOK || !msOK {
			ref := psName
			if psOK {
				ref = msName
			}
			resErr := &core.ResolutionError{Role: item.Name, Ref: ref}
			ctx.Logger.Error(resErr.Error())
			summary.Record(core.Failure(resErr, item.Name))
			continue
		}

		if item.Action == core.ActionCreate {
			ctx.Logger.Info(fmt.Sprintf("Creating role '%s'", item.Name))
			id, err := r.Client.CreateRole(ctx, item.Name, psID, msID)
			if err == nil {
				r.roleIDs[item.Name] = id
			}
			r.recordMutation(ctx, &summary, item, err)
			continue
		}
		ctx.Logger.Info(fmt.Sprintf("Updating role '%s'", item.Name))
		r.recordMutation(ctx, &summary, item, r.Client.UpdateRole(ctx, item.ID, psID, msID))
	}

	return summary
}

func (r *RoleReconciler) recordMutation(ctx *core.RunContext, summary *core.Summary, item core.DiffItem, err error) {
	if err != nil {
		applyErr := &core.ApplyError{Item: item, Err: err}
		ctx.Logger.Error(applyErr.Error())
		summary.Record(core.Failure(applyErr, item.Name))
		return
	}
	summary.Record(core.SuccessChange(item.Name))
}

func invert(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

func nameSet[T any](items []T, nameOf func(T) string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, item := range items {
		out[nameOf(item)] = true
	}
	return out
}
