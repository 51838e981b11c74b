package testutils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/srg/btrelay/internal/cursor"
)

// LoadFixture reads a file relative to the project root (the directory
// holding go.mod).
func LoadFixture(relPath string) ([]byte, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	root := wd
	for {
		if _, err := os.Stat(filepath.Join(root, "go.mod")); err == nil {
			break
		}
		parent := filepath.Dir(root)
		if parent == root {
			return nil, fmt.Errorf("could not find project root (go.mod not found)")
		}
		root = parent
	}

	full := filepath.Join(root, relPath)
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", full, err)
	}
	return data, nil
}

// MustHex decodes a hex string, tolerating separators. Panics on invalid
// input as it is intended for test data setup.
func MustHex(s string) []byte {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	b, err := cursor.FromHex(s)
	if err != nil {
		panic(err)
	}
	return b
}
