package userconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Missing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.BackendURL)
	assert.Empty(t, cfg.Email)
}

func TestSetBackendURLAndEmail(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	require.NoError(t, SetBackendURL("https://api.example.edu/"))
	require.NoError(t, SetEmail("head@example.edu"))
	require.NoError(t, SetWebURL("http://localhost:8080/"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.edu", cfg.BackendURL)
	assert.Equal(t, "head@example.edu", cfg.Email)
	assert.Equal(t, "http://localhost:8080", cfg.WebURL)

	info, err := os.Stat(filepath.Join(home, ".config", "schedadmin", "config.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestLoad_Corrupt(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".config", "schedadmin")
	require.NoError(t, os.MkdirAll(dir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte("{"), 0600))

	_, err := Load()
	assert.Error(t, err)
}
