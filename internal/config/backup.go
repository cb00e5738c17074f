package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// MaxBackups bounds how many timestamped config backups are kept.
const MaxBackups = 3

const backupSuffix = ".bak"

// BackupUserConfig copies the current user config to a timestamped
// backup next to it and prunes old backups. Returns the backup path,
// or empty when no user config exists yet.
func BackupUserConfig() (string, error) {
	configPath := UserConfigPath()
	if !fileExists(configPath) {
		return "", nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to read config for backup: %w", err)
	}

	stamp := time.Now().Format("20060102-150405")
	backupPath := fmt.Sprintf("%s%s.%s", configPath, backupSuffix, stamp)
	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}

	// Pruning is best effort; the backup itself already succeeded.
	pruneBackups()

	return backupPath, nil
}

// ListBackups returns the user config backups, newest first.
func ListBackups() ([]string, error) {
	configPath := UserConfigPath()
	entries, err := os.ReadDir(filepath.Dir(configPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list config directory: %w", err)
	}

	prefix := filepath.Base(configPath) + backupSuffix + "."
	var backups []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		backups = append(backups, filepath.Join(filepath.Dir(configPath), entry.Name()))
	}

	sort.Slice(backups, func(i, j int) bool {
		infoI, errI := os.Stat(backups[i])
		infoJ, errJ := os.Stat(backups[j])
		if errI != nil || errJ != nil {
			return false
		}
		return infoI.ModTime().After(infoJ.ModTime())
	})
	return backups, nil
}

func pruneBackups() {
	backups, err := ListBackups()
	if err != nil || len(backups) <= MaxBackups {
		return
	}
	for _, backup := range backups[MaxBackups:] {
		_ = os.Remove(backup)
	}
}
