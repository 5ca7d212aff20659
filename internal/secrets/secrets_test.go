// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/litmine/pkg/types"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) string
		want  map[string]string
	}{
		{
			name: "reads key files and trims whitespace",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, NCBIAPIKey, "  abc123  \n")
				writeFile(t, dir, ContactEmail, "user@example.com\n")
				return dir
			},
			want: map[string]string{
				NCBIAPIKey:   "abc123",
				ContactEmail: "user@example.com",
			},
		},
		{
			name: "returns empty map for nonexistent directory",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "does-not-exist")
			},
			want: map[string]string{},
		},
		{
			name: "skips empty files, dotfiles and directories",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, NCBIAPIKey, "valid-key")
				writeFile(t, dir, "empty-key", "")
				writeFile(t, dir, "whitespace-only", "   \n\t  ")
				writeFile(t, dir, ".gitkeep", "x")
				require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))
				return dir
			},
			want: map[string]string{
				NCBIAPIKey: "valid-key",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(tt.setup(t), zerolog.Nop())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("LITMINE_TEST_A=from-file\nLITMINE_TEST_B=from-file\n"), 0o600))

	t.Setenv("LITMINE_TEST_B", "from-env")
	os.Unsetenv("LITMINE_TEST_A")
	t.Cleanup(func() { os.Unsetenv("LITMINE_TEST_A") })

	require.NoError(t, LoadEnv(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "from-file", os.Getenv("LITMINE_TEST_A"))
	assert.Equal(t, "from-env", os.Getenv("LITMINE_TEST_B"), "existing variables are not overridden")
}

func TestApply(t *testing.T) {
	cfg := types.Config{}
	cfg.Search.APIKey = "configured"

	Apply(&cfg, map[string]string{NCBIAPIKey: "from-secret", ContactEmail: "me@example.com"})

	assert.Equal(t, "configured", cfg.Search.APIKey)
	assert.Equal(t, "from-secret", cfg.Fulltext.APIKey)
	assert.Equal(t, "me@example.com", cfg.Search.Email)
	assert.Equal(t, "me@example.com", cfg.Fulltext.Email)
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}
