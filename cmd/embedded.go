package main

import (
	"embed"
	"path/filepath"
	"strings"
)

//go:embed configs/*.yaml
var configsFS embed.FS

// getEmbeddedConfig returns the raw bytes of an embedded config file.
// name can be with or without the .yaml extension.
func getEmbeddedConfig(name string) ([]byte, error) {
	if !strings.HasSuffix(name, ".yaml") {
		name += ".yaml"
	}
	return configsFS.ReadFile(filepath.ToSlash(filepath.Join("configs", name)))
}
