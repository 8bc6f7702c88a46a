package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-vision/internal/core/domain"
)

func TestAuthCmd_HasLogin(t *testing.T) {
	require.Len(t, authCmd.Commands(), 1)
	assert.Equal(t, "login", authCmd.Commands()[0].Name())
	assert.False(t, needsServices(authLoginCmd))
}

func TestAuthLoginCmd_RequiresClient(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[drive]\nroot_folder_id = \"r\"\n"), 0o600))

	_, err := execute(t, "--config", path, "auth", "login", "--no-browser")
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
