package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

var _ Client = (*RESTClient)(nil)

// RESTClient talks to the directory service over its JSON API. It expects a
// pre-issued bearer token; obtaining one is the caller's problem.
type RESTClient struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewRESTClient(baseURL, token string) *RESTClient {
	return &RESTClient{
		BaseURL: baseURL,
		Token:   token,
		HTTP:    &http.Client{Timeout: 120 * time.Second},
	}
}

func (c *RESTClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, string(msg))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// listRecords decodes a JSON array of objects into Records, keeping the raw
// field map alongside the extracted id and name.
func (c *RESTClient) listRecords(ctx context.Context, path string) ([]Record, error) {
	var raw []map[string]any
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(raw))
	for _, fields := range raw {
		rec := Record{Fields: fields}
		if id, ok := fields["id"].(string); ok {
			rec.ID = id
		}
		if name, ok := fields["name"].(string); ok {
			rec.Name = name
		}
		records = append(records, rec)
	}
	return records, nil
}

func (c *RESTClient) ListConnections(ctx context.Context) ([]Record, error) {
	return c.listRecords(ctx, "/connections")
}

func (c *RESTClient) CreateConnection(ctx context.Context, payload map[string]any) error {
	return c.do(ctx, http.MethodPost, "/connections", payload, nil)
}

func (c *RESTClient) UpdateConnection(ctx context.Context, name string, payload map[string]any) error {
	return c.do(ctx, http.MethodPatch, "/connections/"+url.PathEscape(name), payload, nil)
}

func (c *RESTClient) ListProjects(ctx context.Context) ([]Record, error) {
	return c.listRecords(ctx, "/projects")
}

func (c *RESTClient) CreateProject(ctx context.Context, payload map[string]any) error {
	return c.do(ctx, http.MethodPost, "/projects", payload, nil)
}

func (c *RESTClient) ListModels(ctx context.Context) ([]Record, error) {
	return c.listRecords(ctx, "/lookml_models")
}

func (c *RESTClient) CreateModel(ctx context.Context, payload map[string]any) error {
	return c.do(ctx, http.MethodPost, "/lookml_models", payload, nil)
}

func (c *RESTClient) UpdateModel(ctx context.Context, name string, payload map[string]any) error {
	return c.do(ctx, http.MethodPatch, "/lookml_models/"+url.PathEscape(name), payload, nil)
}

func (c *RESTClient) SetWorkspace(ctx context.Context, workspace string) error {
	return c.do(ctx, http.MethodPatch, "/session", map[string]any{"workspace_id": workspace}, nil)
}

func (c *RESTClient) ListPermissions(ctx context.Context) ([]string, error) {
	var raw []struct {
		Permission string `json:"permission"`
	}
	if err := c.do(ctx, http.MethodGet, "/permissions", nil, &raw); err != nil {
		return nil, err
	}
	perms := make([]string, 0, len(raw))
	for _, p := range raw {
		perms = append(perms, p.Permission)
	}
	return perms, nil
}

func (c *RESTClient) ListPermissionSets(ctx context.Context) ([]PermissionSet, error) {
	var sets []PermissionSet
	if err := c.do(ctx, http.MethodGet, "/permission_sets", nil, &sets); err != nil {
		return nil, err
	}
	return sets, nil
}

func (c *RESTClient) CreatePermissionSet(ctx context.Context, name string, permissions []string) (string, error) {
	var created PermissionSet
	body := map[string]any{"name": name, "permissions": permissions}
	if err := c.do(ctx, http.MethodPost, "/permission_sets", body, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

func (c *RESTClient) UpdatePermissionSet(ctx context.Context, id string, permissions []string) error {
	body := map[string]any{"permissions": permissions}
	return c.do(ctx, http.MethodPatch, "/permission_sets/"+url.PathEscape(id), body, nil)
}

func (c *RESTClient) DeletePermissionSet(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/permission_sets/"+url.PathEscape(id), nil, nil)
}

func (c *RESTClient) ListModelSets(ctx context.Context) ([]ModelSet, error) {
	var sets []ModelSet
	if err := c.do(ctx, http.MethodGet, "/model_sets", nil, &sets); err != nil {
		return nil, err
	}
	return sets, nil
}

func (c *RESTClient) CreateModelSet(ctx context.Context, name string, models []string) (string, error) {
	var created ModelSet
	body := map[string]any{"name": name, "models": models}
	if err := c.do(ctx, http.MethodPost, "/model_sets", body, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

func (c *RESTClient) UpdateModelSet(ctx context.Context, id string, models []string) error {
	return c.do(ctx, http.MethodPatch, "/model_sets/"+url.PathEscape(id), map[string]any{"models": models}, nil)
}

func (c *RESTClient) DeleteModelSet(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/model_sets/"+url.PathEscape(id), nil, nil)
}

func (c *RESTClient) ListRoles(ctx context.Context) ([]Role, error) {
	// The API nests the bound sets inside the role object.
	var raw []struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		PermissionSet struct {
			ID string `json:"id"`
		} `json:"permission_set"`
		ModelSet struct {
			ID string `json:"id"`
		} `json:"model_set"`
	}
	if err := c.do(ctx, http.MethodGet, "/roles", nil, &raw); err != nil {
		return nil, err
	}

	roles := make([]Role, 0, len(raw))
	for _, r := range raw {
		roles = append(roles, Role{
			ID:              r.ID,
			Name:            r.Name,
			PermissionSetID: r.PermissionSet.ID,
			ModelSetID:      r.ModelSet.ID,
		})
	}
	return roles, nil
}

func (c *RESTClient) CreateRole(ctx context.Context, name, permissionSetID, modelSetID string) (string, error) {
	var created Role
	body := map[string]any{
		"name":              name,
		"permission_set_id": permissionSetID,
		"model_set_id":      modelSetID,
	}
	if err := c.do(ctx, http.MethodPost, "/roles", body, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

func (c *RESTClient) UpdateRole(ctx context.Context, id, permissionSetID, modelSetID string) error {
	body := map[string]any{
		"permission_set_id": permissionSetID,
		"model_set_id":      modelSetID,
	}
	return c.do(ctx, http.MethodPatch, "/roles/"+url.PathEscape(id), body, nil)
}

func (c *RESTClient) DeleteRole(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/roles/"+url.PathEscape(id), nil, nil)
}

func (c *RESTClient) SearchFolders(ctx context.Context, name string) ([]Folder, error) {
	var folders []Folder
	if err := c.do(ctx, http.MethodGet, "/folders/search?name="+url.QueryEscape(name), nil, &folders); err != nil {
		return nil, err
	}
	return folders, nil
}

func (c *RESTClient) FolderChildren(ctx context.Context, parentID string) ([]Folder, error) {
	var folders []Folder
	if err := c.do(ctx, http.MethodGet, "/folders/"+url.PathEscape(parentID)+"/children", nil, &folders); err != nil {
		return nil, err
	}
	return folders, nil
}

func (c *RESTClient) GetFolder(ctx context.Context, id string) (Folder, error) {
	var folder Folder
	err := c.do(ctx, http.MethodGet, "/folders/"+url.PathEscape(id), nil, &folder)
	return folder, err
}

func (c *RESTClient) CreateFolder(ctx context.Context, name, parentID string) (Folder, error) {
	var created Folder
	body := map[string]any{"name": name, "parent_id": parentID}
	err := c.do(ctx, http.MethodPost, "/folders", body, &created)
	return created, err
}

func (c *RESTClient) GetContentMeta(ctx context.Context, metaID string) (ContentMeta, error) {
	var meta ContentMeta
	err := c.do(ctx, http.MethodGet, "/content_metadata/"+url.PathEscape(metaID), nil, &meta)
	return meta, err
}

func (c *RESTClient) SetInheritance(ctx context.Context, metaID string, inherits bool) error {
	body := map[string]any{"inherits": inherits}
	return c.do(ctx, http.MethodPatch, "/content_metadata/"+url.PathEscape(metaID), body, nil)
}

func (c *RESTClient) ListAccessEntries(ctx context.Context, metaID string) ([]AccessEntry, error) {
	var entries []AccessEntry
	path := "/content_metadata_access?content_metadata_id=" + url.QueryEscape(metaID)
	if err := c.do(ctx, http.MethodGet, path, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *RESTClient) AddAccessEntry(ctx context.Context, metaID string, entry AccessEntry) error {
	body := map[string]any{
		"content_metadata_id": metaID,
		"permission_type":     entry.Permission,
	}
	if entry.GroupID != "" {
		body["group_id"] = entry.GroupID
	}
	if entry.UserID != "" {
		body["user_id"] = entry.UserID
	}
	return c.do(ctx, http.MethodPost, "/content_metadata_access", body, nil)
}

func (c *RESTClient) UpdateAccessEntry(ctx context.Context, entryID, permission string) error {
	body := map[string]any{"permission_type": permission}
	return c.do(ctx, http.MethodPut, "/content_metadata_access/"+url.PathEscape(entryID), body, nil)
}

func (c *RESTClient) RemoveAccessEntry(ctx context.Context, entryID string) error {
	return c.do(ctx, http.MethodDelete, "/content_metadata_access/"+url.PathEscape(entryID), nil, nil)
}

func (c *RESTClient) ListGroups(ctx context.Context) ([]Group, error) {
	var groups []Group
	if err := c.do(ctx, http.MethodGet, "/groups", nil, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func (c *RESTClient) FindUserID(ctx context.Context, email string) (string, error) {
	var users []struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodGet, "/users/search?email="+url.QueryEscape(email), nil, &users); err != nil {
		return "", err
	}
	if len(users) == 0 {
		return "", nil
	}
	return users[0].ID, nil
}

func (c *RESTClient) GetAuthConfig(ctx context.Context) (map[string]any, error) {
	var cfg map[string]any
	if err := c.do(ctx, http.MethodGet, "/oidc_config", nil, &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *RESTClient) UpdateAuthConfig(ctx context.Context, payload map[string]any) error {
	return c.do(ctx, http.MethodPatch, "/oidc_config", payload, nil)
}
