package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T, handler http.HandlerFunc) *RESTClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewRESTClient(srv.URL, "test-token")
}

func TestRESTClientSendsBearerToken(t *testing.T) {
	var gotAuth string
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`[]`))
	})

	_, err := client.ListConnections(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer test-token", gotAuth)
}

func TestRESTClientListConnections(t *testing.T) {
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/connections", r.URL.Path)
		w.Write([]byte(`[{"id":"3","name":"warehouse","host":"db.internal","port":5432}]`))
	})

	records, err := client.ListConnections(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "warehouse", records[0].Name)
	assert.Equal(t, "3", records[0].ID)
	assert.Equal(t, "db.internal", records[0].Fields["host"])
	assert.Equal(t, float64(5432), records[0].Fields["port"])
}

func TestRESTClientListRolesNestedSets(t *testing.T) {
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"7","name":"Analyst","permission_set":{"id":"ps-1"},"model_set":{"id":"ms-2"}}]`))
	})

	roles, err := client.ListRoles(context.Background())
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, "ps-1", roles[0].PermissionSetID)
	assert.Equal(t, "ms-2", roles[0].ModelSetID)
}

func TestRESTClientCreatePermissionSet(t *testing.T) {
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Analyst", body["name"])
		w.Write([]byte(`{"id":"ps-9","name":"Analyst"}`))
	})

	id, err := client.CreatePermissionSet(context.Background(), "Analyst", []string{"access_data"})
	require.NoError(t, err)
	assert.Equal(t, "ps-9", id)
}

func TestRESTClientListPermissions(t *testing.T) {
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"permission":"access_data"},{"permission":"see_looks"}]`))
	})

	perms, err := client.ListPermissions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"access_data", "see_looks"}, perms)
}

func TestRESTClientErrorStatusSurfacesBody(t *testing.T) {
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	})

	_, err := client.ListGroups(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "nope")
}

func TestRESTClientFindUserID(t *testing.T) {
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "analyst@example.com", r.URL.Query().Get("email"))
		w.Write([]byte(`[{"id":"u-4"}]`))
	})

	id, err := client.FindUserID(context.Background(), "analyst@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u-4", id)
}

func TestRESTClientFindUserIDNoMatch(t *testing.T) {
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	id, err := client.FindUserID(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestRESTClientSetWorkspace(t *testing.T) {
	var body map[string]any
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/session", r.URL.Path)
		json.NewDecoder(r.Body).Decode(&body)
	})

	require.NoError(t, client.SetWorkspace(context.Background(), "dev"))
	assert.Equal(t, "dev", body["workspace_id"])
}
