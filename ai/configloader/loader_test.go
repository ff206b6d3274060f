package configloader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lib.json", `[{"name":"a","description":"first"},{"name":"b","description":"second"}]`)

	var got []entry
	require.NoError(t, NewLoader(dir).Load("lib.json", &got))
	assert.Equal(t, []entry{{"a", "first"}, {"b", "second"}}, got)
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lib.yaml", "- name: a\n  description: first\n")

	var got []entry
	require.NoError(t, NewLoader(dir).Load("lib.yaml", &got))
	assert.Equal(t, []entry{{"a", "first"}}, got)
}

func TestLoadRejectsUnknownJSONFields(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lib.json", `[{"name":"a","descripton":"typo"}]`)

	var got []entry
	err := NewLoader(dir).Load("lib.json", &got)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal JSON lib.json")
}

func TestLoadMalformed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lib.json", `[{"name":`)

	var got []entry
	assert.Error(t, NewLoader(dir).Load("lib.json", &got))
}

func TestLoadMissingFile(t *testing.T) {
	var got []entry
	err := NewLoader(t.TempDir()).Load("missing.json", &got)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read file missing.json")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lib.toml", `name = "a"`)

	var got []entry
	err := NewLoader(dir).Load("lib.toml", &got)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config format")
}

func TestLoadAbsolutePath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lib.json", `[{"name":"abs","description":"x"}]`)

	var got []entry
	require.NoError(t, NewLoader("somewhere-else").Load(filepath.Join(dir, "lib.json"), &got))
	assert.Equal(t, "abs", got[0].Name)
}
