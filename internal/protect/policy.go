// Package protect marks system-critical entities that the engine must never
// destroy. The lists are compiled in on purpose: protection configurable
// through the same desired-state files it guards would be no protection
// at all.
package protect

import "github.com/melih-ucgun/warden/internal/core"

// Built-in names per kind. Exact match only, no wildcards.
var (
	protectedPermissionSets = map[string]bool{
		"Admin":                             true,
		"Support Basic Editor":              true,
		"Support Advanced Editor":           true,
		"Customer Engineer Advanced Editor": true,
		"Gemini":                            true,
		"LookML Dashboard User":             true,
		"User who can't view LookML":        true,
	}

	protectedModelSets = map[string]bool{
		"All": true,
	}

	protectedRoles = map[string]bool{
		"Admin":     true,
		"Developer": true,
		"User":      true,
		"Viewer":    true,
	}
)

// Policy answers whether a proposed action on an entity must be suppressed.
type Policy struct{}

func NewPolicy() *Policy {
	return &Policy{}
}

// IsProtected reports whether the action on (kind, name) is forbidden.
// Deletes of any protected name are forbidden. The single guarded update is
// reassigning the Admin role's set bindings.
func (p *Policy) IsProtected(kind core.Kind, name string, action core.Action) bool {
	switch action {
	case core.ActionDelete:
		return p.protectedName(kind, name)
	case core.ActionUpdate:
		return kind == core.KindRole && name == "Admin"
	default:
		return false
	}
}

func (p *Policy) protectedName(kind core.Kind, name string) bool {
	switch kind {
	case core.KindPermissionSet:
		return protectedPermissionSets[name]
	case core.KindModelSet:
		return protectedModelSets[name]
	case core.KindRole:
		return protectedRoles[name]
	default:
		return false
	}
}

// KnownPermissionSet reports whether the name is a built-in permission set
// that exists without being defined in config. Used by validation.
func (p *Policy) KnownPermissionSet(name string) bool {
	return protectedPermissionSets[name]
}

// KnownModelSet is the model-set counterpart of KnownPermissionSet.
func (p *Policy) KnownModelSet(name string) bool {
	return protectedModelSets[name]
}
