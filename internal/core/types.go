package core

// Action is the kind of mutation a DiffItem proposes.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Kind identifies an entity kind managed by the engine.
type Kind string

const (
	KindConnection    Kind = "connection"
	KindProject       Kind = "project"
	KindModel         Kind = "model"
	KindPermissionSet Kind = "permission_set"
	KindModelSet      Kind = "model_set"
	KindRole          Kind = "role"
	KindFolder        Kind = "folder"
	KindAuthConfig    Kind = "auth_config"
)

// FieldChange records a single field-level drift, old value to new.
type FieldChange struct {
	Field string
	Old   string
	New   string
}

// DiffItem is one proposed create/update/delete action.
//
// Payload for Create and Update carries the full resolved desired field map,
// never a delta. Role items keep the referenced set *names* in the payload
// until apply time, because the sets may be created in the same pass.
type DiffItem struct {
	Action  Action
	Kind    Kind
	Name    string
	ID      string // backend id, empty for creates
	Changes []FieldChange
	Payload map[string]any
}

// Describe returns the one-line human readable form used in plan output.
func (d DiffItem) Describe() string {
	switch d.Action {
	case ActionCreate:
		return "[+] CREATE " + string(d.Kind) + " '" + d.Name + "'"
	case ActionDelete:
		return "[-] DELETE " + string(d.Kind) + " '" + d.Name + "'"
	default:
		return "[~] UPDATE " + string(d.Kind) + " '" + d.Name + "'"
	}
}
