package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserConfig_ActiveProfile(t *testing.T) {
	cfg := &UserConfig{
		CurrentProfile: "default",
		Profiles: map[string]Profile{
			"default": {Model: "gpt-4o", Output: "table"},
			"offline": {Model: "o1-mini", CachePath: "/tmp/answers.json", Output: "json"},
		},
	}

	tests := []struct {
		name      string
		override  string
		wantModel string
		wantErr   string
	}{
		{name: "uses current profile", override: "", wantModel: "gpt-4o"},
		{name: "override to offline", override: "offline", wantModel: "o1-mini"},
		{name: "nonexistent override", override: "nonexistent", wantErr: `profile "nonexistent" not found`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := cfg.ActiveProfile(tt.override)
			if tt.wantErr != "" {
				require.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantModel, p.Model)
		})
	}
}

func TestUserConfig_MissingCurrentProfileIsEmpty(t *testing.T) {
	cfg := &UserConfig{CurrentProfile: "default", Profiles: map[string]Profile{}}
	p, err := cfg.ActiveProfile("")
	require.NoError(t, err)
	assert.Equal(t, Profile{}, p)
}

func TestLoadSaveUserConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)

	cfg := &UserConfig{
		CurrentProfile: "test",
		Profiles: map[string]Profile{
			"test": {Model: "llama3-70b-8192", DSN: "warehouse.duckdb"},
		},
	}
	require.NoError(t, SaveUserConfig(cfg))

	info, err := os.Stat(filepath.Join(dir, ".semsql", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := LoadUserConfig()
	require.NoError(t, err)
	assert.Equal(t, "test", loaded.CurrentProfile)
	require.Contains(t, loaded.Profiles, "test")
	assert.Equal(t, "llama3-70b-8192", loaded.Profiles["test"].Model)
	assert.Equal(t, "warehouse.duckdb", loaded.Profiles["test"].DSN)
}

func TestLoadUserConfig_NotFound(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadUserConfig()
	require.NoError(t, err)
	assert.Equal(t, "default", cfg.CurrentProfile)
	assert.Empty(t, cfg.Profiles)
}

func TestLoadUserConfig_Malformed(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".semsql"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".semsql", "config.yaml"), []byte("profiles: [\n"), 0o600))

	_, err := LoadUserConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}
