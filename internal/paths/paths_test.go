package paths

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultDirsFollowXDG(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG applies to linux only")
	}
	t.Setenv("XDG_CONFIG_HOME", "/srv/taluk/config")
	t.Setenv("XDG_DATA_HOME", "/srv/taluk/data")

	cfg, err := DefaultConfigDir()
	require.NoError(t, err)
	assert.Equal(t, "/srv/taluk/config/landrecords", cfg)

	data, err := DefaultDataDir()
	require.NoError(t, err)
	assert.Equal(t, "/srv/taluk/data/landrecords", data)
}

func TestDefaultDirsWithoutXDG(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG applies to linux only")
	}
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("XDG_DATA_HOME", "")
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	cfg, err := DefaultConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "landrecords"), cfg)

	data, err := DefaultDataDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".local", "share", "landrecords"), data)
}

func TestResolveConfigDirPrecedence(t *testing.T) {
	t.Setenv(EnvConfigDir, "/etc/landrecords")

	got, err := ResolveConfigDir("/opt/office")
	require.NoError(t, err)
	assert.Equal(t, "/opt/office", got, "flag wins")

	got, err = ResolveConfigDir("")
	require.NoError(t, err)
	assert.Equal(t, "/etc/landrecords", got)

	t.Setenv(EnvConfigDir, "relative/conf")
	got, err = ResolveConfigDir("")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got), got)
}

func TestResolveDataDirPrecedence(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	tests := []struct {
		name, flag, config, env, want string
	}{
		{"flag", "/data/flag", "/data/config", "/data/env", "/data/flag"},
		{"config file", "", "/data/config", "/data/env", "/data/config"},
		{"environment", "", "", "/data/env", "/data/env"},
		{"working directory", "", "", "", filepath.Join(cwd, DefaultDataDirName)},
		{"relative flag", "store", "", "", filepath.Join(cwd, "store")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvDataDir, tt.env)
			got, err := ResolveDataDir(tt.flag, tt.config)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
