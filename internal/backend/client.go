package backend

import "context"

// Client is the directory-service surface the engine reconciles against.
// Authentication and session bootstrapping live outside the engine; a Client
// is handed in already usable.
type Client interface {
	// Field-mapped kinds. These are additive: the engine never deletes them.
	ListConnections(ctx context.Context) ([]Record, error)
	CreateConnection(ctx context.Context, payload map[string]any) error
	UpdateConnection(ctx context.Context, name string, payload map[string]any) error

	ListProjects(ctx context.Context) ([]Record, error)
	CreateProject(ctx context.Context, payload map[string]any) error

	ListModels(ctx context.Context) ([]Record, error)
	CreateModel(ctx context.Context, payload map[string]any) error
	UpdateModel(ctx context.Context, name string, payload map[string]any) error

	// SetWorkspace switches the shared session workspace ("dev" or
	// "production"). Project and model mutations require "dev".
	SetWorkspace(ctx context.Context, workspace string) error

	// Role triad.
	ListPermissions(ctx context.Context) ([]string, error)

	ListPermissionSets(ctx context.Context) ([]PermissionSet, error)
	CreatePermissionSet(ctx context.Context, name string, permissions []string) (string, error)
	UpdatePermissionSet(ctx context.Context, id string, permissions []string) error
	DeletePermissionSet(ctx context.Context, id string) error

	ListModelSets(ctx context.Context) ([]ModelSet, error)
	CreateModelSet(ctx context.Context, name string, models []string) (string, error)
	UpdateModelSet(ctx context.Context, id string, models []string) error
	DeleteModelSet(ctx context.Context, id string) error

	ListRoles(ctx context.Context) ([]Role, error)
	CreateRole(ctx context.Context, name, permissionSetID, modelSetID string) (string, error)
	UpdateRole(ctx context.Context, id, permissionSetID, modelSetID string) error
	DeleteRole(ctx context.Context, id string) error

	// Folders and their access lists.
	SearchFolders(ctx context.Context, name string) ([]Folder, error)
	FolderChildren(ctx context.Context, parentID string) ([]Folder, error)
	GetFolder(ctx context.Context, id string) (Folder, error)
	CreateFolder(ctx context.Context, name, parentID string) (Folder, error)

	GetContentMeta(ctx context.Context, metaID string) (ContentMeta, error)
	SetInheritance(ctx context.Context, metaID string, inherits bool) error

	ListAccessEntries(ctx context.Context, metaID string) ([]AccessEntry, error)
	AddAccessEntry(ctx context.Context, metaID string, entry AccessEntry) error
	UpdateAccessEntry(ctx context.Context, entryID, permission string) error
	RemoveAccessEntry(ctx context.Context, entryID string) error

	// Principal lookup.
	ListGroups(ctx context.Context) ([]Group, error)
	FindUserID(ctx context.Context, email string) (string, error)

	// Singleton identity-provider configuration.
	GetAuthConfig(ctx context.Context) (map[string]any, error)
	UpdateAuthConfig(ctx context.Context, payload map[string]any) error
}
