package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateUserConfig points the XDG config tree at a temp directory so
// tests never touch the real user config.
func isolateUserConfig(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, ".config"))
	return filepath.Join(tmpDir, ".config", "brewindex", "config.yaml")
}

func TestConfigCmd_HasSubcommands(t *testing.T) {
	// Given: the root command
	cmd := NewRootCmd()

	// When: finding the config command
	configCmd, _, err := cmd.Find([]string{"config"})
	require.NoError(t, err)

	// Then: init, show, path, and profiles should be registered
	names := make(map[string]bool)
	for _, sc := range configCmd.Commands() {
		names[sc.Name()] = true
	}
	assert.True(t, names["init"], "should have init command")
	assert.True(t, names["show"], "should have show command")
	assert.True(t, names["path"], "should have path command")
	assert.True(t, names["profiles"], "should have profiles command")
}

func TestConfigInitCmd_HasFlags(t *testing.T) {
	// Given: the root command
	cmd := NewRootCmd()

	// When: finding config init
	initCmd, _, err := cmd.Find([]string{"config", "init"})
	require.NoError(t, err)

	// Then: it should have --force and --project flags
	force := initCmd.Flags().Lookup("force")
	require.NotNil(t, force, "should have --force flag")
	assert.Equal(t, "false", force.DefValue)

	project := initCmd.Flags().Lookup("project")
	require.NotNil(t, project, "should have --project flag")
	assert.Equal(t, "false", project.DefValue)
}

func TestConfigPathCmd_OutputsPath(t *testing.T) {
	// Given: an isolated config tree
	isolateUserConfig(t)

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"config", "path"})

	// When: running config path
	err := cmd.Execute()

	// Then: it should print the user config path
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "brewindex", "path should contain brewindex")
	assert.Contains(t, output, "config.yaml", "path should contain config.yaml")
}

func TestConfigInit_CreatesUserConfig(t *testing.T) {
	// Given: no user config
	configPath := isolateUserConfig(t)

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"config", "init"})

	// When: running config init
	err := cmd.Execute()

	// Then: the template should be written
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Created", "should report creation")

	data, err := os.ReadFile(configPath)
	require.NoError(t, err, "config file should exist")
	assert.Contains(t, string(data), "store:", "template should contain a store section")
	assert.Contains(t, string(data), "embeddings:", "template should contain an embeddings section")
}

func TestConfigInit_ExistingWithoutForce(t *testing.T) {
	// Given: an existing user config
	configPath := isolateUserConfig(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(configPath), 0o755))
	require.NoError(t, os.WriteFile(configPath, []byte("version: 1\n"), 0o644))

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"config", "init"})

	// When: running config init without --force
	err := cmd.Execute()

	// Then: it should warn and leave the file alone
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "already exists", "should report existing config")
	assert.Contains(t, output, "--force", "should mention --force")

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Equal(t, "version: 1\n", string(data), "file should be unchanged")
}

func TestConfigInit_ForceKeepsBackup(t *testing.T) {
	// Given: an existing user config with local edits
	configPath := isolateUserConfig(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(configPath), 0o755))
	require.NoError(t, os.WriteFile(configPath, []byte("version: 1\n# my edits\n"), 0o644))

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"config", "init", "--force"})

	// When: running config init --force
	err := cmd.Execute()

	// Then: the file is reset and a timestamped backup is kept
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Backup", "should report the backup path")

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "store:", "file should be reset to the template")

	backups, err := filepath.Glob(configPath + ".bak.*")
	require.NoError(t, err)
	require.Len(t, backups, 1, "one backup should exist")

	backupData, err := os.ReadFile(backups[0])
	require.NoError(t, err)
	assert.Contains(t, string(backupData), "# my edits", "backup should hold the old content")
}

func TestConfigInit_Project(t *testing.T) {
	// Given: a project directory without brewindex.yaml
	isolateUserConfig(t)
	projectDir := t.TempDir()

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"config", "init", "--project", projectDir})

	// When: running config init --project
	err := cmd.Execute()

	// Then: brewindex.yaml should be created from the template
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Created", "should report creation")

	data, err := os.ReadFile(filepath.Join(projectDir, "brewindex.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "sources:", "template should contain a sources section")
	assert.Contains(t, string(data), "collection:", "template should contain the collection name")
}

func TestConfigShow_Defaults(t *testing.T) {
	// Given: an isolated environment
	isolateUserConfig(t)

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"config", "show", "--source=defaults"})

	// When: showing the defaults layer
	err := cmd.Execute()

	// Then: the hardcoded defaults should be printed as YAML
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "defaults", "should name the source")
	assert.Contains(t, output, "embeddings:", "should contain the embeddings section")
	assert.Contains(t, output, "qdrant", "default store backend should be qdrant")
}

func TestConfigShow_JSONOutput(t *testing.T) {
	// Given: an isolated environment
	isolateUserConfig(t)

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"config", "show", "--source=defaults", "--json"})

	// When: showing the defaults as JSON
	err := cmd.Execute()

	// Then: the output should be a valid JSON document
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc), "output should be valid JSON")
	assert.Contains(t, doc, "store", "JSON should contain the store section")
	assert.Contains(t, doc, "sources", "JSON should contain the sources section")
}

func TestConfigShow_InvalidSource(t *testing.T) {
	// Given: an invalid --source value
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"config", "show", "--source=kettle"})

	// When: showing config
	err := cmd.Execute()

	// Then: it should fail naming the bad source
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid source")
}

func TestConfigShow_UserMissing(t *testing.T) {
	// Given: no user config file
	isolateUserConfig(t)

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"config", "show", "--source=user"})

	// When: showing the user layer
	err := cmd.Execute()

	// Then: it should point at config init instead of failing
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "No user configuration", "should report the missing file")
	assert.Contains(t, output, "config init", "should suggest config init")
}

func TestConfigProfiles_ListsBuiltins(t *testing.T) {
	// Given: a bare project directory
	isolateUserConfig(t)
	projectDir := t.TempDir()

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"config", "profiles", projectDir})

	// When: listing profiles
	err := cmd.Execute()

	// Then: built-in profiles and the content-type mapping are shown
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "video_transcript", "should list the transcript profile")
	assert.Contains(t, output, "general_brewing", "should list the default profile")
	assert.Contains(t, output, "transcript", "should show the content type mapping")
}

func TestConfigProfiles_JSONOutput(t *testing.T) {
	// Given: a bare project directory
	isolateUserConfig(t)
	projectDir := t.TempDir()

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"config", "profiles", "--json", projectDir})

	// When: listing profiles as JSON
	err := cmd.Execute()

	// Then: the report should carry profiles, mapping, and default
	require.NoError(t, err)

	var report struct {
		Profiles []struct {
			Name string `json:"name"`
		} `json:"profiles"`
		ContentTypes map[string]string `json:"content_types"`
		Default      string            `json:"default"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))

	assert.Equal(t, "general_brewing", report.Default)
	assert.Equal(t, "video_transcript", report.ContentTypes["transcript"])

	var names []string
	for _, p := range report.Profiles {
		names = append(names, p.Name)
	}
	assert.Contains(t, names, "video_transcript")
	assert.Contains(t, names, "fast_processing")
}
