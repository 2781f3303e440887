package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melih-ucgun/warden/internal/backend"
	"github.com/melih-ucgun/warden/internal/config"
	"github.com/melih-ucgun/warden/internal/core"
	"github.com/melih-ucgun/warden/internal/secrets"
)

func authReconciler(mock *backend.Mock, env map[string]string) *AuthReconciler {
	return &AuthReconciler{Client: mock, Secrets: secrets.NewStaticResolver(env)}
}

func desiredAuth() *config.Auth {
	return &config.Auth{
		Fields: map[string]any{
			"enabled":               true,
			"client_id":             "warden-client",
			"client_secret_env_var": "OIDC_SECRET",
			"issuer":                "https://idp.example.com",
			"scopes":                []any{"openid", "email"},
			"user_attribute_map": map[string]any{
				"email":      "email",
				"first_name": "given_name",
			},
		},
	}
}

func TestAuthNoDriftWhenLiveMatches(t *testing.T) {
	mock := backend.NewMock()
	mock.AuthConfig = map[string]any{
		"enabled":                       true,
		"identifier":                    "warden-client",
		"issuer":                        "https://idp.example.com",
		"scopes":                        []any{"email", "openid"}, // backend order differs
		"user_attribute_map_email":      "email",
		"user_attribute_map_first_name": "given_name",
		"secret":                        "********",
	}
	rec := authReconciler(mock, map[string]string{"OIDC_SECRET": "rotated"})

	items, err := rec.Diff(testCtx(), desiredAuth())
	require.NoError(t, err)
	assert.Empty(t, items, "scope order and a rotated secret are not drift")
}

func TestAuthClientIDMapsToIdentifier(t *testing.T) {
	mock := backend.NewMock()
	mock.AuthConfig = map[string]any{"identifier": "old-client"}
	rec := authReconciler(mock, map[string]string{"OIDC_SECRET": "s"})

	items, err := rec.Diff(testCtx(), desiredAuth())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "warden-client", items[0].Payload["identifier"])
	assert.NotContains(t, items[0].Payload, "client_id")
	assert.Equal(t, "s", items[0].Payload["secret"])

	summary := rec.Apply(testCtx(), items)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, "warden-client", mock.AuthConfig["identifier"])
}

func TestAuthMirroredGroupDrift(t *testing.T) {
	mock := backend.NewMock()
	mock.Roles = []backend.Role{
		{ID: "r-1", Name: "Analyst"},
		{ID: "r-2", Name: "Viewer"},
	}
	mock.AuthConfig = map[string]any{
		"enabled": true,
		"groups": []any{
			map[string]any{"name": "data-team", "role_ids": []any{"r-2"}},
		},
	}
	rec := authReconciler(mock, nil)

	cfg := &config.Auth{
		Fields:         map[string]any{"enabled": true},
		MirroredGroups: []config.MirroredGroup{{Name: "data-team", Roles: []string{"Analyst"}}},
	}

	items, err := rec.Diff(testCtx(), cfg)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Len(t, items[0].Changes, 1)
	assert.Equal(t, "mirrored_groups", items[0].Changes[0].Field)

	summary := rec.Apply(testCtx(), items)
	assert.Equal(t, 1, summary.Succeeded)

	groups, ok := mock.AuthConfig["groups"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"r-1"}, groups[0]["role_ids"])
}

func TestAuthMirroredGroupMatchIsOrderInsensitive(t *testing.T) {
	mock := backend.NewMock()
	mock.Roles = []backend.Role{
		{ID: "r-1", Name: "Analyst"},
		{ID: "r-2", Name: "Viewer"},
	}
	mock.AuthConfig = map[string]any{
		"enabled": true,
		"groups": []any{
			map[string]any{"name": "data-team", "role_ids": []any{"r-2", "r-1"}},
		},
	}
	rec := authReconciler(mock, nil)

	cfg := &config.Auth{
		Fields:         map[string]any{"enabled": true},
		MirroredGroups: []config.MirroredGroup{{Name: "data-team", Roles: []string{"Analyst", "Viewer"}}},
	}

	items, err := rec.Diff(testCtx(), cfg)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestAuthNilConfigIsNoop(t *testing.T) {
	rec := authReconciler(backend.NewMock(), nil)
	items, err := rec.Diff(testCtx(), nil)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestAuthFetchFailure(t *testing.T) {
	mock := backend.NewMock()
	mock.Fail["GetAuthConfig"] = assert.AnError
	rec := authReconciler(mock, map[string]string{"OIDC_SECRET": "s"})

	_, err := rec.Diff(testCtx(), desiredAuth())
	var fetchErr *core.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, core.KindAuthConfig, fetchErr.Kind)
}
