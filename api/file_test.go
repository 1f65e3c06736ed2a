package api_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/kfold/api"
)

func TestGetConfigPath(t *testing.T) { //nolint:paralleltest // Uses t.Setenv.
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	assert.Equal(t, filepath.Join(dir, "kfold", "config.yaml"), api.GetConfigPath("config.yaml"))
}

func TestReadFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "doc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a: 1\n"), 0o600))

	data, err := api.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a: 1\n", string(data))

	_, err = api.ReadFile(filepath.Join(dir, "missing.yaml"))
	require.ErrorIs(t, err, fs.ErrNotExist)

	_, err = api.ReadFile(dir)
	require.ErrorIs(t, err, api.ErrNotRegular)
	assert.ErrorContains(t, err, "path is a directory")
}

func TestWriteIfNotExists(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "doc.yaml")

	require.NoError(t, api.WriteIfNotExists(path, []byte("first")))
	require.NoError(t, api.WriteIfNotExists(path, []byte("second")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

func TestWriteDefaultFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	require.NoError(t, api.WriteDefaultFile(path, []byte("v1"), false, "configuration"))
	require.NoError(t, api.WriteDefaultFile(path, []byte("v2"), false, "configuration"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))

	require.NoError(t, api.WriteDefaultFile(path, []byte("v3"), true, "configuration"))

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v3", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	backups := 0
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".old") {
			backups++
		}
	}

	assert.Equal(t, 1, backups)

	err = api.WriteDefaultFile(dir, []byte("v1"), true, "configuration")
	require.ErrorIs(t, err, api.ErrNotRegular)
}
