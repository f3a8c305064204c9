// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads credentials for the embedding collaborator from a
// directory of plain-text files, one secret per file: the filename is the
// key and the trimmed contents are the value. The CLI reads
// embedding-api-key from here when the config file does not carry one.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Load reads every regular file in dir into a key-to-value map. A missing
// directory is not an error; an empty map comes back so callers can fall
// through to config and environment sources. Dotfiles, subdirectories,
// and files holding only whitespace are ignored, and an unreadable file
// is skipped with a warning on stderr rather than aborting startup.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	values := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: skipping unreadable secret %s: %v\n", name, err)
			continue
		}

		if value := strings.TrimSpace(string(data)); value != "" {
			values[name] = value
		}
	}

	return values, nil
}
