// Package config provides configuration utilities for the application.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultDatabasePath is used when database.path is not configured.
const DefaultDatabasePath = "$HOME/.local/share/cardwise/cardwise.db"

// DefaultCertDir holds the self-signed certificate used by serve --tls.
const DefaultCertDir = "$HOME/.config/cardwise/certs"

// ExpandPath expands ~ and environment variables in a file path.
func ExpandPath(path string) string {
	if path == "" || path == ":memory:" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	}

	return os.ExpandEnv(path)
}

// DatabasePath resolves the configured database path, falling back to the default.
func DatabasePath(configured string) string {
	if strings.TrimSpace(configured) == "" {
		configured = DefaultDatabasePath
	}
	return ExpandPath(configured)
}

// CertDir resolves the configured certificate directory.
func CertDir(configured string) string {
	if strings.TrimSpace(configured) == "" {
		configured = DefaultCertDir
	}
	return ExpandPath(configured)
}
