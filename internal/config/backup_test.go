package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedUserConfig writes a user config file under the isolated XDG dir
// and returns its path.
func seedUserConfig(t *testing.T, content string) string {
	t.Helper()
	path := UserConfigPath()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBackupUserConfig_NothingToBackUp(t *testing.T) {
	isolate(t)

	backup, err := BackupUserConfig()

	require.NoError(t, err)
	assert.Empty(t, backup)
}

func TestBackupUserConfig_CopiesCurrentConfig(t *testing.T) {
	// Given an existing user config
	isolate(t)
	seedUserConfig(t, "store:\n  collection: precious\n")

	// When backing up
	backup, err := BackupUserConfig()

	// Then a timestamped copy with identical content exists
	require.NoError(t, err)
	require.NotEmpty(t, backup)
	assert.Contains(t, backup, ".bak.")

	data, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Contains(t, string(data), "precious")
}

func TestBackupUserConfig_PrunesOldBackups(t *testing.T) {
	// Given a config and more stale backups than the retention allows
	isolate(t)
	path := seedUserConfig(t, "version: 1\n")
	for i := 0; i < 5; i++ {
		stale := fmt.Sprintf("%s.bak.2024010%d-000000", path, i+1)
		require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))
		// Spread modification times so pruning has a stable order
		mt := time.Now().Add(-time.Duration(10-i) * time.Hour)
		require.NoError(t, os.Chtimes(stale, mt, mt))
	}

	// When backing up again
	_, err := BackupUserConfig()
	require.NoError(t, err)

	// Then only the newest backups survive
	backups, err := ListBackups()
	require.NoError(t, err)
	assert.LessOrEqual(t, len(backups), MaxBackups)
}

func TestListBackups_NewestFirst(t *testing.T) {
	// Given two backups with distinct ages
	isolate(t)
	path := seedUserConfig(t, "version: 1\n")
	older := path + ".bak.20240101-000000"
	newer := path + ".bak.20240201-000000"
	require.NoError(t, os.WriteFile(older, []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(newer, []byte("new"), 0o644))
	oldTime := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(older, oldTime, oldTime))

	// When listing
	backups, err := ListBackups()

	// Then the newest backup comes first
	require.NoError(t, err)
	require.Len(t, backups, 2)
	assert.Equal(t, newer, backups[0])
	assert.Equal(t, older, backups[1])
}

func TestListBackups_NoConfigDir(t *testing.T) {
	isolate(t)

	backups, err := ListBackups()

	require.NoError(t, err)
	assert.Empty(t, backups)
}

func TestWriteUserConfig_BacksUpThenWrites(t *testing.T) {
	// Given an existing user config
	isolate(t)
	seedUserConfig(t, "store:\n  collection: before\n")

	// When writing a new one
	cfg := NewConfig()
	cfg.Store.Collection = "after"
	backup, err := WriteUserConfig(cfg)

	// Then the old content is preserved in the backup and the new
	// content is live
	require.NoError(t, err)
	require.NotEmpty(t, backup)

	old, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Contains(t, string(old), "before")

	live, err := os.ReadFile(UserConfigPath())
	require.NoError(t, err)
	assert.Contains(t, string(live), "after")
}

func TestWriteUserConfig_FirstWrite(t *testing.T) {
	// Given no prior user config
	isolate(t)

	backup, err := WriteUserConfig(NewConfig())

	// Then there is nothing to back up and the file is created
	require.NoError(t, err)
	assert.Empty(t, backup)
	assert.True(t, UserConfigExists())
}
