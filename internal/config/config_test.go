package config

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melih-ucgun/warden/internal/core"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func quietCtx() *core.RunContext {
	ctx := core.NewRunContext(context.Background(), false)
	ctx.Logger = core.NewDefaultLogger(io.Discard, core.LevelError)
	return ctx
}

func TestLoadFullDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "vars.yaml", "vars:\n  env: staging\n")
	writeFile(t, dir, "connections.yaml", `
connections:
  - name: warehouse
    host: db.internal
    port: 5432
    dialect_name: postgres
    password_env_var: DB_PASSWORD
`)
	writeFile(t, dir, "projects.yaml", `
projects:
  - name: analytics
    models:
      - model_name: orders
        connection_names: [warehouse]
`)
	writeFile(t, dir, "roles.yaml", `
permission_sets:
  - name: Analyst
    permissions: [access_data, see_looks]
model_sets:
  - name: Core
    models: [orders]
roles:
  - name: Analyst
    permission_set: Analyst
    model_set: Core
`)
	writeFile(t, dir, "folders.yaml", `
folders:
  - name: Finance Reports
    parent: Shared
    access:
      - group: Finance
        permission: edit
      - user: analyst@example.com
`)
	writeFile(t, dir, "auth.yaml", `
enabled: true
client_id: warden-client
client_secret_env_var: OIDC_SECRET
mirrored_groups:
  - name: data-team
    roles: [Analyst]
`)

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.Vars["env"])
	require.Len(t, cfg.Connections, 1)
	assert.Equal(t, "warehouse", cfg.Connections[0].Name)
	assert.Equal(t, 5432, cfg.Connections[0].Fields["port"])
	assert.NotContains(t, cfg.Connections[0].Fields, "name", "name must not leak into the inline field map")

	require.Len(t, cfg.Projects, 1)
	assert.Equal(t, []string{"warehouse"}, cfg.Projects[0].Models[0].ConnectionNames)

	assert.Len(t, cfg.Roles.PermissionSets, 1)
	assert.Len(t, cfg.Roles.Roles, 1)

	require.Len(t, cfg.Folders, 1)
	assert.Equal(t, "edit", cfg.Folders[0].Access[0].Permission)
	assert.Equal(t, "analyst@example.com", cfg.Folders[0].Access[1].User)

	require.NotNil(t, cfg.Auth)
	assert.Equal(t, true, cfg.Auth.Fields["enabled"])
	assert.Equal(t, "warden-client", cfg.Auth.Fields["client_id"])
	require.Len(t, cfg.Auth.MirroredGroups, 1)
	assert.Equal(t, []string{"Analyst"}, cfg.Auth.MirroredGroups[0].Roles)
}

func TestLoadMissingFilesAreOptional(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Empty(t, cfg.Connections)
	assert.Empty(t, cfg.Folders)
	assert.Nil(t, cfg.Auth)
}

func TestLoadRejectsMalformedYaml(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "connections.yaml", "connections: [whoops")

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestPrepareRendersVarsAndFields(t *testing.T) {
	ctx := quietCtx()
	cfg := &Config{
		Vars: map[string]string{"env": "staging"},
		Connections: []Connection{{
			Name:   "warehouse",
			Fields: map[string]any{"database": "orders_{{ .Vars.env }}"},
		}},
	}

	require.NoError(t, Prepare(cfg, ctx))
	assert.Equal(t, "orders_staging", cfg.Connections[0].Fields["database"])
	assert.Equal(t, "staging", ctx.Vars["env"])
}

func TestPrepareFiltersByCondition(t *testing.T) {
	ctx := quietCtx()
	cfg := &Config{
		Vars: map[string]string{"env": "staging"},
		Connections: []Connection{
			{Name: "always"},
			{Name: "prod-only", When: `vars.env == "production"`},
		},
		Projects: []Project{
			{Name: "kept", When: `vars.env == "staging"`},
		},
		Folders: []Folder{
			{Name: "dropped", When: `vars.env == "production"`},
		},
	}

	require.NoError(t, Prepare(cfg, ctx))
	require.Len(t, cfg.Connections, 1)
	assert.Equal(t, "always", cfg.Connections[0].Name)
	assert.Len(t, cfg.Projects, 1)
	assert.Empty(t, cfg.Folders)
}

func TestPrepareBadConditionFails(t *testing.T) {
	cfg := &Config{Connections: []Connection{{Name: "x", When: "not valid ((("}}}
	assert.Error(t, Prepare(cfg, quietCtx()))
}

func TestPrepareRendersNestedAuthFields(t *testing.T) {
	ctx := quietCtx()
	cfg := &Config{
		Vars: map[string]string{"idp": "idp.example.com"},
		Auth: &Auth{Fields: map[string]any{
			"issuer": "https://{{ .Vars.idp }}",
			"user_attribute_map": map[string]any{
				"email": "{{ .Vars.missing | default \"email\" }}",
			},
		}},
	}

	require.NoError(t, Prepare(cfg, ctx))
	assert.Equal(t, "https://idp.example.com", cfg.Auth.Fields["issuer"])
	attrs := cfg.Auth.Fields["user_attribute_map"].(map[string]any)
	assert.Equal(t, "email", attrs["email"])
}
