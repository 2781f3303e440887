package reconcile

import (
	"fmt"

	"github.com/melih-ucgun/warden/internal/backend"
	"github.com/melih-ucgun/warden/internal/config"
	"github.com/melih-ucgun/warden/internal/core"
	"github.com/melih-ucgun/warden/internal/protect"
)

// Validator checks every name-based cross-reference in the desired config
// before any diff or mutation. A single broken reference aborts the whole
// run: half-applied config with dangling references is worse than no run.
//
// Catalog lookups that require the backend degrade to a warning when the
// fetch fails; the engine still runs, the reference check just loses depth.
type Validator struct {
	Client backend.Client
	Policy *protect.Policy
}

// Validate returns a *core.ValidationError listing every problem found, or
// nil when the config is internally consistent.
func (v *Validator) Validate(ctx *core.RunContext, cfg *config.Config) error {
	var problems []string

	problems = append(problems, v.checkPermissions(ctx, cfg)...)
	problems = append(problems, v.checkRoleReferences(cfg)...)
	problems = append(problems, v.checkMirroredGroups(ctx, cfg)...)
	problems = append(problems, v.checkModelConnections(ctx, cfg)...)
	problems = append(problems, v.checkFolderPrincipals(ctx, cfg)...)

	if len(problems) > 0 {
		return &core.ValidationError{Problems: problems}
	}
	ctx.Logger.Info("Configuration validation passed")
	return nil
}

// checkPermissions verifies every permission against the backend catalog.
func (v *Validator) checkPermissions(ctx *core.RunContext, cfg *config.Config) []string {
	if len(cfg.Roles.PermissionSets) == 0 {
		return nil
	}

	perms, err := v.Client.ListPermissions(ctx)
	if err != nil {
		ctx.Logger.Warn(fmt.Sprintf("Skipping permission validation, catalog fetch failed: %v", err))
		return nil
	}
	valid := make(map[string]bool, len(perms))
	for _, p := range perms {
		valid[p] = true
	}

	var problems []string
	for _, ps := range cfg.Roles.PermissionSets {
		for _, perm := range ps.Permissions {
			if !valid[perm] {
				problems = append(problems, fmt.Sprintf("invalid permission %q in permission set %q", perm, ps.Name))
			}
		}
	}
	return problems
}

// checkRoleReferences verifies each role's set names against the config and
// the built-in system sets. The Admin role is skipped: it is special-cased
// by the backend and protected from update anyway.
func (v *Validator) checkRoleReferences(cfg *config.Config) []string {
	definedPermSets := nameSet(cfg.Roles.PermissionSets, func(ps config.PermissionSet) string { return ps.Name })
	definedModelSets := nameSet(cfg.Roles.ModelSets, func(ms config.ModelSet) string { return ms.Name })

	var problems []string
	for _, role := range cfg.Roles.Roles {
		if role.Name == "Admin" {
			continue
		}
		if role.PermissionSet != "" && !definedPermSets[role.PermissionSet] && !v.Policy.KnownPermissionSet(role.PermissionSet) {
			problems = append(problems, fmt.Sprintf("role %q references undefined permission set %q", role.Name, role.PermissionSet))
		}
		if role.ModelSet != "" && !definedModelSets[role.ModelSet] && !v.Policy.KnownModelSet(role.ModelSet) {
			problems = append(problems, fmt.Sprintf("role %q references undefined model set %q", role.Name, role.ModelSet))
		}
	}
	return problems
}

// checkMirroredGroups verifies mirrored-group roles against live roles plus
// roles this very run will create.
func (v *Validator) checkMirroredGroups(ctx *core.RunContext, cfg *config.Config) []string {
	if cfg.Auth == nil || len(cfg.Auth.MirroredGroups) == 0 {
		return nil
	}

	valid := nameSet(cfg.Roles.Roles, func(r config.Role) string { return r.Name })
	roles, err := v.Client.ListRoles(ctx)
	if err != nil {
		ctx.Logger.Warn(fmt.Sprintf("Skipping mirrored-group validation, role fetch failed: %v", err))
		return nil
	}
	for _, role := range roles {
		valid[role.Name] = true
	}

	var problems []string
	for _, group := range cfg.Auth.MirroredGroups {
		for _, roleName := range group.Roles {
			if !valid[roleName] {
				problems = append(problems, fmt.Sprintf("mirrored group %q references unknown role %q", group.Name, roleName))
			}
		}
	}
	return problems
}

// checkModelConnections verifies model connection names against the config
// plus live connections.
func (v *Validator) checkModelConnections(ctx *core.RunContext, cfg *config.Config) []string {
	if len(cfg.Projects) == 0 {
		return nil
	}

	valid := nameSet(cfg.Connections, func(c config.Connection) string { return c.Name })
	conns, err := v.Client.ListConnections(ctx)
	if err != nil {
		ctx.Logger.Warn(fmt.Sprintf("Skipping model-connection validation, connection fetch failed: %v", err))
		return nil
	}
	for _, conn := range conns {
		valid[conn.Name] = true
	}

	var problems []string
	for _, proj := range cfg.Projects {
		for _, model := range proj.Models {
			for _, connName := range model.ConnectionNames {
				if !valid[connName] {
					problems = append(problems, fmt.Sprintf("model %q references unknown connection %q", model.ModelName, connName))
				}
			}
		}
	}
	return problems
}

// checkFolderPrincipals rejects duplicate principals within one folder's
// access list and principals that resolve to nothing. A renamed group that
// silently stops matching would otherwise leave its old access in place
// forever, which is precisely the drift this tool exists to remove.
func (v *Validator) checkFolderPrincipals(ctx *core.RunContext, cfg *config.Config) []string {
	if len(cfg.Folders) == 0 {
		return nil
	}

	groups, err := v.Client.ListGroups(ctx)
	if err != nil {
		ctx.Logger.Warn(fmt.Sprintf("Skipping principal validation, group fetch failed: %v", err))
		groups = nil
	}
	groupNames := make(map[string]bool, len(groups))
	for _, g := range groups {
		groupNames[g.Name] = true
	}

	var problems []string
	for _, folder := range cfg.Folders {
		seen := map[string]bool{}
		for _, rule := range folder.Access {
			principal := rule.Group
			kind := "group"
			if principal == "" {
				principal = rule.User
				kind = "user"
			}
			if principal == "" {
				problems = append(problems, fmt.Sprintf("folder %q has an access entry with no group or user", folder.Name))
				continue
			}

			key := kind + ":" + principal
			if seen[key] {
				problems = append(problems, fmt.Sprintf("folder %q lists %s %q more than once", folder.Name, kind, principal))
				continue
			}
			seen[key] = true

			switch kind {
			case "group":
				if groups != nil && !groupNames[principal] && !groupNames[principal+" (OIDC)"] {
					problems = append(problems, fmt.Sprintf("folder %q references unknown group %q", folder.Name, principal))
				}
			case "user":
				id, err := v.Client.FindUserID(ctx, principal)
				if err != nil {
					ctx.Logger.Warn(fmt.Sprintf("Skipping user lookup for %q: %v", principal, err))
					continue
				}
				if id == "" {
					problems = append(problems, fmt.Sprintf("folder %q references unknown user %q", folder.Name, principal))
				}
			}
		}
	}
	return problems
}
