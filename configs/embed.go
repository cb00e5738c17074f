// Package configs provides the embedded configuration templates
// written out by 'brewindex config init'.
//
// Templates are embedded at build time with go:embed, so they ship in
// every distribution: source builds, binary releases, package
// installs. To change one, edit the .yaml file in this directory and
// rebuild.
//
// Configuration precedence (see internal/config.Load):
//  1. Hardcoded defaults (internal/config.NewConfig)
//  2. User config (~/.config/brewindex/config.yaml)
//  3. Project config (brewindex.yaml)
//  4. Environment variables (BREWINDEX_*)
package configs

import _ "embed"

// UserConfigTemplate seeds the machine-level configuration created by
// 'brewindex config init' at ~/.config/brewindex/config.yaml. It holds
// settings shared by every project on this machine: the Qdrant URL,
// the Ollama endpoint and model, the log level.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate seeds brewindex.yaml, created by
// 'brewindex config init --project' in the project directory. It holds
// the settings that travel with the corpus: source directories and
// their content types, the collection name, processing overrides.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
