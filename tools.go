//go:build tools

package tools

// This file tracks versions of CLI tool dependencies that are not imported
// by application code. Tool dependencies are managed via the 'tool'
// directive in go.mod (Go 1.24+).
//
// Install tools: go install tool
// Run tools:     go tool goose

import (
	_ "github.com/pressly/goose/v3/cmd/goose"
)
