package assets

import _ "embed"

// DefaultConfig is the built-in configuration layer. User files are merged on top of it.
//
//go:embed config.yaml
var DefaultConfig []byte

// SecretsTemplate is written next to the user config by export-config.
//
//go:embed secrets.yaml
var SecretsTemplate []byte
