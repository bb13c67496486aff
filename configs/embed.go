// Package configs holds the configuration templates written by
// 'mojify config init'. They are embedded so that every build ships them.
//
// Configuration hierarchy (see internal/config Load):
//  1. Hardcoded defaults (config.NewConfig)
//  2. User config (~/.config/mojify/config.yaml)
//  3. Project config (.mojify.yaml)
//  4. Environment variables (MOJIFY_*, DATABASE_URL)
package configs

import _ "embed"

// UserConfigTemplate is written to ~/.config/mojify/config.yaml by
// 'mojify config init --user'. It holds machine settings: the embedding
// provider and where models are cached.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate is written to .mojify.yaml by 'mojify config init'.
// It locates the catalog and index and tunes search.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
