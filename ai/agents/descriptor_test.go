package agent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/captain/ai/configloader"
)

func writeLibrary(t *testing.T, name, content string) *configloader.Loader {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	return configloader.NewLoader(dir)
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "Technical_Analyst", NormalizeName("Technical Analyst"))
	assert.Equal(t, "news_analyst", NormalizeName("  news analyst "))
	assert.Equal(t, "", NormalizeName("   "))
}

func TestLoadLibrary(t *testing.T) {
	loader := writeLibrary(t, "lib.json", `[
		{"name": "Technical Analyst", "description": "charts", "system_message": "You read charts."},
		{"name": "News Analyst", "description": "news", "system_message": "You read news."}
	]`)

	lib, err := LoadLibrary(loader, "lib.json")
	require.NoError(t, err)
	require.Len(t, lib, 2)
	assert.Equal(t, "Technical_Analyst", lib[0].Name)
	assert.Equal(t, "charts", lib[0].Description)
	assert.Equal(t, "You read news.", lib[1].SystemMessage)
}

func TestLoadLibraryYAML(t *testing.T) {
	loader := writeLibrary(t, "lib.yaml", "- name: Decision Maker\n  description: decides\n  system_message: You decide.\n")

	lib, err := LoadLibrary(loader, "lib.yaml")
	require.NoError(t, err)
	require.Len(t, lib, 1)
	assert.Equal(t, "Decision_Maker", lib[0].Name)
}

func TestLoadLibraryErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "malformed", content: `[{"name":`, wantErr: "failed to load agent library"},
		{name: "empty", content: `[]`, wantErr: "is empty"},
		{name: "missing name", content: `[{"name":" ","system_message":"x"}]`, wantErr: "agent name is required"},
		{name: "missing system message", content: `[{"name":"a"}]`, wantErr: "no system_message"},
		{name: "duplicate after normalization", content: `[{"name":"a b","system_message":"x"},{"name":"a_b","system_message":"y"}]`, wantErr: "share the name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadLibrary(writeLibrary(t, "lib.json", tt.content), "lib.json")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadLibraryMissingFile(t *testing.T) {
	_, err := LoadLibrary(configloader.NewLoader(t.TempDir()), "agent_library.json")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSelectTeam(t *testing.T) {
	lib := []Descriptor{{Name: "a"}, {Name: "b"}, {Name: "c"}, {Name: "d"}}

	team, err := SelectTeam(lib, 3)
	require.NoError(t, err)
	assert.Equal(t, []Descriptor{{Name: "a"}, {Name: "b"}, {Name: "c"}}, team)

	team, err = SelectTeam(lib[:2], 3)
	require.NoError(t, err)
	assert.Len(t, team, 2)

	_, err = SelectTeam(lib, 0)
	assert.Error(t, err)

	_, err = SelectTeam(nil, 3)
	assert.Error(t, err)
}
