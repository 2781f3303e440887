package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveFromEnvironment(t *testing.T) {
	t.Setenv("WARDEN_TEST_SECRET", "hunter2")

	val, err := NewResolver().Resolve("WARDEN_TEST_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", val)
}

func TestResolveMissingVariable(t *testing.T) {
	_, err := NewResolver().Resolve("WARDEN_TEST_DEFINITELY_UNSET")
	var missing *MissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "WARDEN_TEST_DEFINITELY_UNSET", missing.Var)
}

func TestResolveEmptyReference(t *testing.T) {
	_, err := NewResolver().Resolve("")
	assert.Error(t, err)
}

func TestStaticResolver(t *testing.T) {
	r := NewStaticResolver(map[string]string{"KEY": "value"})

	val, err := r.Resolve("KEY")
	require.NoError(t, err)
	assert.Equal(t, "value", val)

	_, err = r.Resolve("OTHER")
	assert.Error(t, err)
}

func TestLoadDotenv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("WARDEN_DOTENV_VALUE=from-file\n"), 0o600))

	require.NoError(t, LoadDotenv(path))
	assert.Equal(t, "from-file", os.Getenv("WARDEN_DOTENV_VALUE"))
	t.Cleanup(func() { os.Unsetenv("WARDEN_DOTENV_VALUE") })
}

func TestLoadDotenvMissingFileIsFine(t *testing.T) {
	assert.NoError(t, LoadDotenv(filepath.Join(t.TempDir(), "nope.env")))
}
