package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jcascante/brew-master-ai/configs"
	"github.com/jcascante/brew-master-ai/internal/config"
	"github.com/jcascante/brew-master-ai/internal/output"
	"github.com/jcascante/brew-master-ai/internal/profile"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage brewindex configuration files.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/brewindex/config.yaml)
  3. Project config (brewindex.yaml)
  4. Environment variables (BREWINDEX_*)

The user config carries machine-level settings (store URL, Ollama
endpoint). The project config carries what travels with the corpus
(sources, collection name, processing overrides).`,
		Example: `  # Create the user config from a template
  brewindex config init

  # Create a project brewindex.yaml
  brewindex config init --project

  # Show the effective configuration
  brewindex config show

  # List the processing profiles
  brewindex config profiles`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigProfilesCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var (
		force   bool
		project bool
	)

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Create a configuration file from a template",
		Long: `Create a configuration file from the embedded template.

By default this creates the user config at
~/.config/brewindex/config.yaml (or under $XDG_CONFIG_HOME when set).
With --project it creates brewindex.yaml in the project directory
instead.`,
		Example: `  # Create the user config
  brewindex config init

  # Overwrite it, keeping a timestamped backup
  brewindex config init --force

  # Create brewindex.yaml in the current directory
  brewindex config init --project`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if project {
				return runConfigInitProject(cmd, args, force)
			}
			return runConfigInitUser(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.Flags().BoolVar(&project, "project", false, "Create a project brewindex.yaml instead of the user config")

	return cmd
}

func runConfigInitUser(cmd *cobra.Command, force bool) error {
	out := output.New(cmd.OutOrStdout())
	configPath := config.UserConfigPath()

	if config.UserConfigExists() {
		if !force {
			out.Warning("User configuration already exists")
			out.Statusf("📁", "Location: %s", configPath)
			out.Newline()
			out.Status("💡", "Use --force to overwrite (a timestamped backup is kept)")
			return nil
		}

		backupPath, err := config.BackupUserConfig()
		if err != nil {
			return fmt.Errorf("failed to backup config: %w", err)
		}
		if err := os.WriteFile(configPath, []byte(configs.UserConfigTemplate), 0o644); err != nil {
			return fmt.Errorf("failed to write config file: %w", err)
		}

		out.Success("User configuration reset to the template")
		out.Statusf("📁", "Location: %s", configPath)
		out.Statusf("💾", "Backup: %s", backupPath)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(configs.UserConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out.Success("Created user configuration")
	out.Statusf("📁", "Location: %s", configPath)
	out.Newline()
	out.Status("📋", "Next steps:")
	out.Status("", "  1. Point store.url at your Qdrant server")
	out.Status("", "  2. Point embeddings.endpoint at your Ollama server")
	out.Status("", "  3. Run 'brewindex config show' to verify")

	return nil
}

func runConfigInitProject(cmd *cobra.Command, args []string, force bool) error {
	out := output.New(cmd.OutOrStdout())

	dir, err := resolveProjectDir(args)
	if err != nil {
		return err
	}

	configPath := filepath.Join(dir, "brewindex.yaml")
	existing := ""
	for _, name := range []string{"brewindex.yaml", "brewindex.yml"} {
		if fileExists(filepath.Join(dir, name)) {
			existing = filepath.Join(dir, name)
			break
		}
	}

	if existing != "" && !force {
		out.Warning("Project configuration already exists")
		out.Statusf("📁", "Location: %s", existing)
		out.Newline()
		out.Status("💡", "Use --force to overwrite it")
		return nil
	}

	if err := os.WriteFile(configPath, []byte(configs.ProjectConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out.Success("Created project configuration")
	out.Statusf("📁", "Location: %s", configPath)
	out.Newline()
	out.Status("📋", "Next steps:")
	out.Status("", "  1. Adjust the sources to match your document tree")
	out.Status("", "  2. Run 'brewindex validate' to check the documents")
	out.Status("", "  3. Run 'brewindex reconcile' to build the collection")

	return nil
}

func newConfigShowCmd() *cobra.Command {
	var (
		jsonOutput bool
		source     string
	)

	cmd := &cobra.Command{
		Use:   "show [path]",
		Short: "Show effective configuration",
		Long: `Show the configuration after merging all layers, or a single layer
with --source.`,
		Example: `  # Show the merged configuration for the current directory
  brewindex config show

  # Show it as JSON
  brewindex config show --json

  # Show only the user config layer
  brewindex config show --source user`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd, args, jsonOutput, source)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&source, "source", "merged", "Config layer: merged, user, project, defaults")

	return cmd
}

func runConfigShow(cmd *cobra.Command, args []string, jsonOutput bool, source string) error {
	out := output.New(cmd.OutOrStdout())

	var (
		cfg        *config.Config
		sourceDesc string
	)

	switch source {
	case "merged":
		dir, err := resolveProjectDir(args)
		if err != nil {
			return err
		}
		cfg, err = config.LoadWithFile(dir, configFile)
		if err != nil {
			return err
		}
		sourceDesc = "merged (defaults + user + project + env)"

	case "user":
		configPath := config.UserConfigPath()
		if !config.UserConfigExists() {
			out.Warning("No user configuration file found")
			out.Statusf("📁", "Expected at: %s", configPath)
			out.Status("💡", "Run 'brewindex config init' to create one")
			return nil
		}
		var err error
		cfg, err = readConfigLayer(configPath)
		if err != nil {
			return err
		}
		sourceDesc = fmt.Sprintf("user (%s)", configPath)

	case "project":
		dir, err := resolveProjectDir(args)
		if err != nil {
			return err
		}
		var configPath string
		for _, name := range []string{"brewindex.yaml", "brewindex.yml"} {
			if fileExists(filepath.Join(dir, name)) {
				configPath = filepath.Join(dir, name)
				break
			}
		}
		if configPath == "" {
			out.Warning("No project configuration file found")
			out.Statusf("📁", "Expected at: %s", filepath.Join(dir, "brewindex.yaml"))
			out.Status("💡", "Run 'brewindex config init --project' to create one")
			return nil
		}
		cfg, err = readConfigLayer(configPath)
		if err != nil {
			return err
		}
		sourceDesc = fmt.Sprintf("project (%s)", configPath)

	case "defaults":
		cfg = config.NewConfig()
		sourceDesc = "defaults (hardcoded)"

	default:
		return fmt.Errorf("invalid source: %s (use: merged, user, project, defaults)", source)
	}

	if jsonOutput {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	out.Statusf("📋", "Configuration source: %s", sourceDesc)
	out.Newline()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))

	return nil
}

// readConfigLayer shows one file over the defaults, without the other
// layers.
func readConfigLayer(path string) (*config.Config, error) {
	cfg := config.NewConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the user config file path",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), config.UserConfigPath())
			return nil
		},
	}
}

func newConfigProfilesCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "profiles [path]",
		Short: "List processing profiles",
		Long: `List the processing profiles and the content-type mapping that
selects between them. Project-level overrides from profile_file are
included.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigProfiles(cmd, args, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runConfigProfiles(cmd *cobra.Command, args []string, jsonOutput bool) error {
	dir, err := resolveProjectDir(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(dir)
	if err != nil {
		return err
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}

	if jsonOutput {
		report := struct {
			Profiles     []profile.Profile `json:"profiles"`
			ContentTypes map[string]string `json:"content_types"`
			Default      string            `json:"default"`
		}{
			Profiles:     registry.Profiles(),
			ContentTypes: registry.ContentTypes(),
			Default:      profile.DefaultName,
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	out := output.New(cmd.OutOrStdout())
	out.Status("📋", "Processing profiles (* default):")
	for _, p := range registry.Profiles() {
		marker := " "
		if p.Name == profile.DefaultName {
			marker = "*"
		}
		strategy := "size"
		if p.ChunkBySentences {
			strategy = "sentences"
		}
		out.Statusf("", "%s %-22s %-9s chunks %d-%d, overlap %d, min text %d",
			marker, p.Name, strategy, p.MinChunkSize, p.MaxChunkSize, p.OverlapSize, p.MinTextLength)
	}

	contentTypes := registry.ContentTypes()
	types := make([]string, 0, len(contentTypes))
	for contentType := range contentTypes {
		types = append(types, contentType)
	}
	sort.Strings(types)

	out.Newline()
	out.Status("🏷️ ", "Content type mapping:")
	for _, contentType := range types {
		out.Statusf("", "  %-12s -> %s", contentType, contentTypes[contentType])
	}

	return nil
}
