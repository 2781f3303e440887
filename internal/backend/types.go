package backend

// Record is a live resource of a field-mapped kind (connections, projects,
// models). Fields hold whatever the backend returned; the differ only looks
// at the fields its schema declares.
type Record struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Fields map[string]any `json:"-"`
}

// PermissionSet is a named bundle of permission strings.
type PermissionSet struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

// ModelSet is a named bundle of model names.
type ModelSet struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Models []string `json:"models"`
}

// Role binds one permission set and one model set.
type Role struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	PermissionSetID string `json:"permission_set_id"`
	ModelSetID      string `json:"model_set_id"`
}

// Folder is a hierarchical container. Access entries hang off its content
// metadata id, not the folder id itself.
type Folder struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	ParentID          string `json:"parent_id"`
	ContentMetadataID string `json:"content_metadata_id"`
}

// ContentMeta carries the inheritance flag for a folder's access list.
type ContentMeta struct {
	ID       string `json:"id"`
	Inherits bool   `json:"inherits"`
}

// AccessEntry grants one principal a permission on a content metadata id.
// Exactly one of GroupID and UserID is set.
type AccessEntry struct {
	ID         string `json:"id"`
	GroupID    string `json:"group_id,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	Permission string `json:"permission_type"`
}

// Group is a backend principal group.
type Group struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
