package backend

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

var _ Client = (*Mock)(nil)

// Mock is an in-memory Client for tests. Mutations update the held state so
// a second diff after apply sees the new "live" snapshot, and every call is
// recorded for assertion on ordering.
type Mock struct {
	mu    sync.Mutex
	Calls []string

	Connections    []Record
	Projects       []Record
	Models         []Record
	PermissionSets []PermissionSet
	ModelSets      []ModelSet
	Roles          []Role
	Folders        []Folder
	Metas          map[string]*ContentMeta
	Access         map[string][]AccessEntry // metaID -> entries
	Groups         []Group
	Users          map[string]string // email -> id
	Permissions    []string
	AuthConfig     map[string]any
	Workspace      string

	// Fail forces an error from the named method (e.g. "ListConnections").
	Fail map[string]error

	nextID int
}

func NewMock() *Mock {
	return &Mock{
		Metas:      map[string]*ContentMeta{},
		Access:     map[string][]AccessEntry{},
		Users:      map[string]string{},
		AuthConfig: map[string]any{},
		Fail:       map[string]error{},
		Workspace:  "production",
	}
}

func (m *Mock) record(format string, args ...any) {
	m.Calls = append(m.Calls, fmt.Sprintf(format, args...))
}

func (m *Mock) failFor(method string) error {
	if err, ok := m.Fail[method]; ok {
		return err
	}
	return nil
}

func (m *Mock) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

// AssertCalled reports whether any recorded call contains the fragment.
func (m *Mock) AssertCalled(fragment string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, call := range m.Calls {
		if strings.Contains(call, fragment) {
			return true
		}
	}
	return false
}

// CallIndex returns the position of the first call containing the fragment,
// or -1. Useful for ordering assertions.
func (m *Mock) CallIndex(fragment string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, call := range m.Calls {
		if strings.Contains(call, fragment) {
			return i
		}
	}
	return -1
}

func (m *Mock) ListConnections(ctx context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failFor("ListConnections"); err != nil {
		return nil, err
	}
	m.record("ListConnections")
	return append([]Record(nil), m.Connections...), nil
}

func (m *Mock) CreateConnection(ctx context.Context, payload map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failFor("CreateConnection"); err != nil {
		return err
	}
	name, _ := payload["name"].(string)
	m.record("CreateConnection %s", name)
	m.Connections = append(m.Connections, Record{Name: name, Fields: payload})
	return nil
}

func (m *Mock) UpdateConnection(ctx context.Context, name string, payload map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failFor("UpdateConnection"); err != nil {
		return err
	}
	m.record("UpdateConnection %s", name)
	for i, rec := range m.Connections {
		if rec.Name == name {
			merged := map[string]any{}
			for k, v := range rec.Fields {
				merged[k] = v
			}
			for k, v := range payload {
				merged[k] = v
			}
			m.Connections[i].Fields = merged
		}
	}
	return nil
}

func (m *Mock) ListProjects(ctx context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failFor("ListProjects"); err != nil {
		return nil, err
	}
	m.record("ListProjects")
	return append([]Record(nil), m.Projects...), nil
}

func (m *Mock) CreateProject(ctx context.Context, payload map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, _ := payload["name"].(string)
	m.record("CreateProject %s", name)
	m.Projects = append(m.Projects, Record{ID: name, Name: name, Fields: payload})
	return nil
}

func (m *Mock) ListModels(ctx context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failFor("ListModels"); err != nil {
		return nil, err
	}
	m.record("ListModels")
	return append([]Record(nil), m.Models...), nil
}

func (m *Mock) CreateModel(ctx context.Context, payload map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, _ := payload["name"].(string)
	m.record("CreateModel %s", name)
	m.Models = append(m.Models, Record{Name: name, Fields: payload})
	return nil
}

func (m *Mock) UpdateModel(ctx context.Context, name string, payload map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("UpdateModel %s", name)
	for i, rec := range m.Models {
		if rec.Name == name {
			merged := map[string]any{}
			for k, v := range rec.Fields {
				merged[k] = v
			}
			for k, v := range payload {
				merged[k] = v
			}
			m.Models[i].Fields = merged
		}
	}
	return nil
}

func (m *Mock) SetWorkspace(ctx context.Context, workspace string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failFor("SetWorkspace"); err != nil {
		return err
	}
	m.record("SetWorkspace %s", workspace)
	m.Workspace = workspace
	return nil
}

func (m *Mock) ListPermissions(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failFor("ListPermissions"); err != nil {
		return nil, err
	}
	m.record("ListPermissions")
	return append([]string(nil), m.Permissions...), nil
}

func (m *Mock) ListPermissionSets(ctx context.Context) ([]PermissionSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failFor("ListPermissionSets"); err != nil {
		return nil, err
	}
	m.record("ListPermissionSets")
	return append([]PermissionSet(nil), m.PermissionSets...), nil
}

func (m *Mock) CreatePermissionSet(ctx context.Context, name string, permissions []string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("CreatePermissionSet %s", name)
	id := m.id("ps")
	m.PermissionSets = append(m.PermissionSets, PermissionSet{ID: id, Name: name, Permissions: permissions})
	return id, nil
}

func (m *Mock) UpdatePermissionSet(ctx context.Context, id string, permissions []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("UpdatePermissionSet %s", id)
	for i, ps := range m.PermissionSets {
		if ps.ID == id {
			m.PermissionSets[i].Permissions = permissions
		}
	}
	return nil
}

func (m *Mock) DeletePermissionSet(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("DeletePermissionSet %s", id)
	m.PermissionSets = deleteByID(m.PermissionSets, func(ps PermissionSet) string { return ps.ID }, id)
	return nil
}

func (m *Mock) ListModelSets(ctx context.Context) ([]ModelSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failFor("ListModelSets"); err != nil {
		return nil, err
	}
	m.record("ListModelSets")
	return append([]ModelSet(nil), m.ModelSets...), nil
}

func (m *Mock) CreateModelSet(ctx context.Context, name string, models []string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("CreateModelSet %s", name)
	id := m.id("ms")
	m.ModelSets = append(m.ModelSets, ModelSet{ID: id, Name: name, Models: models})
	return id, nil
}

func (m *Mock) UpdateModelSet(ctx context.Context, id string, models []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("UpdateModelSet %s", id)
	for i, ms := range m.ModelSets {
		if ms.ID == id {
			m.ModelSets[i].Models = models
		}
	}
	return nil
}

func (m *Mock) DeleteModelSet(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("DeleteModelSet %s", id)
	m.ModelSets = deleteByID(m.ModelSets, func(ms ModelSet) string { return ms.ID }, id)
	return nil
}

func (m *Mock) ListRoles(ctx context.Context) ([]Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failFor("ListRoles"); err != nil {
		return nil, err
	}
	m.record("ListRoles")
	return append([]Role(nil), m.Roles...), nil
}

func (m *Mock) CreateRole(ctx context.Context, name, permissionSetID, modelSetID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("CreateRole %s ps=%s ms=%s", name, permissionSetID, modelSetID)
	id := m.id("role")
	m.Roles = append(m.Roles, Role{ID: id, Name: name, PermissionSetID: permissionSetID, ModelSetID: modelSetID})
	return id, nil
}

func (m *Mock) UpdateRole(ctx context.Context, id, permissionSetID, modelSetID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("UpdateRole %s ps=%s ms=%s", id, permissionSetID, modelSetID)
	for i, r := range m.Roles {
		if r.ID == id {
			m.Roles[i].PermissionSetID = permissionSetID
			m.Roles[i].ModelSetID = modelSetID
		}
	}
	return nil
}

func (m *Mock) DeleteRole(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("DeleteRole %s", id)
	m.Roles = deleteByID(m.Roles, func(r Role) string { return r.ID }, id)
	return nil
}

func (m *Mock) SearchFolders(ctx context.Context, name string) ([]Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("SearchFolders %s", name)
	var out []Folder
	for _, f := range m.Folders {
		if f.Name == name {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *Mock) FolderChildren(ctx context.Context, parentID string) ([]Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failFor("FolderChildren"); err != nil {
		return nil, err
	}
	m.record("FolderChildren %s", parentID)
	var out []Folder
	for _, f := range m.Folders {
		if f.ParentID == parentID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *Mock) GetFolder(ctx context.Context, id string) (Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("GetFolder %s", id)
	for _, f := range m.Folders {
		if f.ID == id {
			return f, nil
		}
	}
	return Folder{}, fmt.Errorf("folder %s not found", id)
}

func (m *Mock) CreateFolder(ctx context.Context, name, parentID string) (Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("CreateFolder %s parent=%s", name, parentID)
	folder := Folder{
		ID:                m.id("folder"),
		Name:              name,
		ParentID:          parentID,
		ContentMetadataID: m.id("meta"),
	}
	m.Folders = append(m.Folders, folder)
	// New folders inherit from their parent by default.
	m.Metas[folder.ContentMetadataID] = &ContentMeta{ID: folder.ContentMetadataID, Inherits: true}
	return folder, nil
}

func (m *Mock) GetContentMeta(ctx context.Context, metaID string) (ContentMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("GetContentMeta %s", metaID)
	if meta, ok := m.Metas[metaID]; ok {
		return *meta, nil
	}
	return ContentMeta{}, fmt.Errorf("content metadata %s not found", metaID)
}

func (m *Mock) SetInheritance(ctx context.Context, metaID string, inherits bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("SetInheritance %s %v", metaID, inherits)

	meta, ok := m.Metas[metaID]
	if !ok {
		meta = &ContentMeta{ID: metaID, Inherits: true}
		m.Metas[metaID] = meta
	}

	// Breaking inheritance materializes copies of the parent's entries, the
	// way the real backend does.
	if meta.Inherits && !inherits {
		if parentMeta := m.parentMetaOf(metaID); parentMeta != "" {
			for _, entry := range m.Access[parentMeta] {
				copied := entry
				copied.ID = m.id("access")
				m.Access[metaID] = append(m.Access[metaID], copied)
			}
		}
	}
	meta.Inherits = inherits
	return nil
}

func (m *Mock) parentMetaOf(metaID string) string {
	var owner *Folder
	for i, f := range m.Folders {
		if f.ContentMetadataID == metaID {
			owner = &m.Folders[i]
			break
		}
	}
	if owner == nil {
		return ""
	}
	for _, f := range m.Folders {
		if f.ID == owner.ParentID {
			return f.ContentMetadataID
		}
	}
	return ""
}

func (m *Mock) ListAccessEntries(ctx context.Context, metaID string) ([]AccessEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failFor("ListAccessEntries"); err != nil {
		return nil, err
	}
	m.record("ListAccessEntries %s", metaID)
	return append([]AccessEntry(nil), m.Access[metaID]...), nil
}

func (m *Mock) AddAccessEntry(ctx context.Context, metaID string, entry AccessEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	principal := entry.GroupID
	if principal == "" {
		principal = entry.UserID
	}
	m.record("AddAccessEntry %s %s %s", metaID, principal, entry.Permission)
	entry.ID = m.id("access")
	m.Access[metaID] = append(m.Access[metaID], entry)
	return nil
}

func (m *Mock) UpdateAccessEntry(ctx context.Context, entryID, permission string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("UpdateAccessEntry %s %s", entryID, permission)
	for metaID, entries := range m.Access {
		for i, e := range entries {
			if e.ID == entryID {
				m.Access[metaID][i].Permission = permission
			}
		}
	}
	return nil
}

func (m *Mock) RemoveAccessEntry(ctx context.Context, entryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("RemoveAccessEntry %s", entryID)
	for metaID, entries := range m.Access {
		kept := entries[:0]
		for _, e := range entries {
			if e.ID != entryID {
				kept = append(kept, e)
			}
		}
		m.Access[metaID] = kept
	}
	return nil
}

func (m *Mock) ListGroups(ctx context.Context) ([]Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failFor("ListGroups"); err != nil {
		return nil, err
	}
	m.record("ListGroups")
	return append([]Group(nil), m.Groups...), nil
}

func (m *Mock) FindUserID(ctx context.Context, email string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("FindUserID %s", email)
	return m.Users[email], nil
}

func (m *Mock) GetAuthConfig(ctx context.Context) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failFor("GetAuthConfig"); err != nil {
		return nil, err
	}
	m.record("GetAuthConfig")
	out := map[string]any{}
	for k, v := range m.AuthConfig {
		out[k] = v
	}
	return out, nil
}

func (m *Mock) UpdateAuthConfig(ctx context.Context, payload map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failFor("UpdateAuthConfig"); err != nil {
		return err
	}
	m.record("UpdateAuthConfig")
	for k, v := range payload {
		m.AuthConfig[k] = v
	}
	return nil
}

func deleteByID[T any](items []T, idOf func(T) string, id string) []T {
	kept := items[:0]
	for _, item := range items {
		if idOf(item) != id {
			kept = append(kept, item)
		}
	}
	return kept
}
