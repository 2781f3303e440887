package reconcile

import (
	"fmt"

	"github.com/melih-ucgun/warden/internal/backend"
	"github.com/melih-ucgun/warden/internal/config"
	"github.com/melih-ucgun/warden/internal/core"
	"github.com/melih-ucgun/warden/internal/secrets"
)

// authSchema lists the comparable identity-provider fields. The secret is
// deliberately absent: it cannot be read back from the backend, so comparing
// it would flag drift on every run. url/can/modified_at/modified_by are
// server-owned and equally excluded.
var authSchema = Schema{
	{Name: "enabled", Type: FieldScalar},
	{Name: "identifier", Type: FieldScalar},
	{Name: "issuer", Type: FieldScalar},
	{Name: "audience", Type: FieldScalar},
	{Name: "authorization_endpoint", Type: FieldScalar},
	{Name: "token_endpoint", Type: FieldScalar},
	{Name: "userinfo_endpoint", Type: FieldScalar},
	{Name: "scopes", Type: FieldStringSet},
	{Name: "user_attribute_map_email", Type: FieldScalar},
	{Name: "user_attribute_map_first_name", Type: FieldScalar},
	{Name: "user_attribute_map_last_name", Type: FieldScalar},
	{Name: "new_user_migration_types", Type: FieldScalar},
	{Name: "auth_requires_role", Type: FieldScalar},
}

// AuthReconciler manages the singleton identity-provider configuration,
// including the mirrored identity-provider groups and the roles they map to.
type AuthReconciler struct {
	Client  backend.Client
	Secrets *secrets.Resolver
}

// buildPayload translates the yaml shape into backend field names and
// resolves the secret reference. display_name has no backend counterpart
// and a literal client_secret is refused room even if someone sneaks one
// into the file.
func (r *AuthReconciler) buildPayload(cfg *config.Auth) (map[string]any, error) {
	payload := map[string]any{}
	for k, v := range cfg.Fields {
		payload[k] = v
	}

	if clientID, ok := payload["client_id"]; ok {
		delete(payload, "client_id")
		payload["identifier"] = clientID
	}

	if ref, ok := payload["client_secret_env_var"].(string); ok && ref != "" {
		delete(payload, "client_secret_env_var")
		secret, err := r.Secrets.Resolve(ref)
		if err != nil {
			return nil, fmt.Errorf("auth config: %w", err)
		}
		payload["secret"] = secret
	}
	delete(payload, "client_secret")
	delete(payload, "display_name")

	if attrMap, ok := payload["user_attribute_map"].(map[string]any); ok {
		delete(payload, "user_attribute_map")
		for _, attr := range []string{"email", "first_name", "last_name"} {
			if v, ok := attrMap[attr]; ok {
				payload["user_attribute_map_"+attr] = v
			}
		}
	}

	return payload, nil
}

// Diff compares the desired identity-provider config against the live
// singleton and returns at most one Update item.
func (r *AuthReconciler) Diff(ctx *core.RunContext, cfg *config.Auth) ([]core.DiffItem, error) {
	if cfg == nil {
		return nil, nil
	}

	payload, err := r.buildPayload(cfg)
	if err != nil {
		return nil, err
	}

	current, err := r.Client.GetAuthConfig(ctx)
	if err != nil {
		return nil, &core.FetchError{Kind: core.KindAuthConfig, Err: err}
	}

	changes := DiffFields(authSchema, payload, current)

	if groupChange, changed := r.diffMirroredGroups(ctx, cfg.MirroredGroups, current); changed {
		changes = append(changes, groupChange)
	}

	if len(changes) == 0 {
		return nil, nil
	}

	// Mirrored groups ride along in the payload as role names; Apply
	// resolves them against a fresh role listing.
	if len(cfg.MirroredGroups) > 0 {
		payload["mirrored_groups"] = cfg.MirroredGroups
	}

	return []core.DiffItem{{
		Action:  core.ActionUpdate,
		Kind:    core.KindAuthConfig,
		Name:    "auth",
		Changes: changes,
		Payload: payload,
	}}, nil
}

// diffMirroredGroups compares desired groups (role names, unordered) against
// the live "groups" list, whose roles come back as ids.
func (r *AuthReconciler) diffMirroredGroups(ctx *core.RunContext, desired []config.MirroredGroup, current map[string]any) (core.FieldChange, bool) {
	if len(desired) == 0 {
		return core.FieldChange{}, false
	}

	roleNames := map[string]string{}
	if roles, err := r.Client.ListRoles(ctx); err == nil {
		for _, role := range roles {
			roleNames[role.ID] = role.Name
		}
	} else {
		ctx.Logger.Warn(fmt.Sprintf("Failed to fetch roles for mirrored-group comparison: %v", err))
	}

	currentGroups := map[string][]string{}
	if raw, ok := current["groups"].([]any); ok {
		for _, g := range raw {
			group, ok := g.(map[string]any)
			if !ok {
				continue
			}
			name, _ := group["name"].(string)
			var names []string
			for _, id := range asStringSlice(group["role_ids"]) {
				if roleName, ok := roleNames[id]; ok {
					names = append(names, roleName)
				}
			}
			currentGroups[name] = names
		}
	}

	drifted := len(desired) != len(currentGroups)
	for _, group := range desired {
		if !stringSetEqual(group.Roles, currentGroups[group.Name]) {
			drifted = true
		}
	}
	if !drifted {
		return core.FieldChange{}, false
	}

	return core.FieldChange{
		Field: "mirrored_groups",
		Old:   describeGroups(currentGroups),
		New:   describeDesiredGroups(desired),
	}, true
}

func describeGroups(groups map[string][]string) string {
	out := make([]string, 0, len(groups))
	for name, roles := range groups {
		out = append(out, fmt.Sprintf("%s->%v", name, sortedCopy(roles)))
	}
	return displayValue(sortedCopy(out))
}

func describeDesiredGroups(groups []config.MirroredGroup) string {
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		out = append(out, fmt.Sprintf("%s->%v", g.Name, sortedCopy(g.Roles)))
	}
	return displayValue(sortedCopy(out))
}

// Apply pushes the singleton update. Mirrored-group role names resolve to
// ids against a fresh role listing: the roles kind has already applied by
// the time auth runs, so same-run role creations are visible here.
func (r *AuthReconciler) Apply(ctx *core.RunContext, items []core.DiffItem) core.Summary {
	summary := core.Summary{Kind: core.KindAuthConfig}
	for _, item := range items {
		payload := map[string]any{}
		for k, v := range item.Payload {
			payload[k] = v
		}

		if groups, ok := payload["mirrored_groups"].([]config.MirroredGroup); ok {
			delete(payload, "mirrored_groups")
			resolved, err := r.resolveGroups(ctx, groups)
			if err != nil {
				applyErr := &core.ApplyError{Item: item, Err: err}
				ctx.Logger.Error(applyErr.Error())
				summary.Record(core.Failure(applyErr, item.Name))
				continue
			}
			payload["groups"] = resolved
		}

		ctx.Logger.Info("Updating identity-provider configuration")
		if err := r.Client.UpdateAuthConfig(ctx, payload); err != nil {
			applyErr := &core.ApplyError{Item: item, Err: err}
			ctx.Logger.Error(applyErr.Error())
			summary.Record(core.Failure(applyErr, item.Name))
			continue
		}
		summary.Record(core.SuccessChange(item.Name))
	}
	return summary
}

func (r *AuthReconciler) resolveGroups(ctx *core.RunContext, groups []config.MirroredGroup) ([]map[string]any, error) {
	roles, err := r.Client.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	roleIDs := make(map[string]string, len(roles))
	for _, role := range roles {
		roleIDs[role.Name] = role.ID
	}

	resolved := make([]map[string]any, 0, len(groups))
	for _, group := range groups {
		var ids []string
		for _, roleName := range group.Roles {
			id, ok := roleIDs[roleName]
			if !ok {
				ctx.Logger.Warn(fmt.Sprintf("Mirrored group '%s' references unknown role '%s', skipping role", group.Name, roleName))
				continue
			}
			ids = append(ids, id)
		}
		resolved = append(resolved, map[string]any{"name": group.Name, "role_ids": ids})
	}
	return resolved, nil
}
