package service

import (
	"fmt"
	"os"
	"path/filepath"
)

// Top-level directories under the data root.
const (
	DirRaw       = "raw"
	DirInterim   = "interim"
	DirProcessed = "processed"
	DirLogs      = "logs"
)

// LayoutDirs lists the directories EnsureLayout creates.
var LayoutDirs = []string{DirRaw, DirInterim, DirProcessed, DirLogs}

// EnsureLayout creates the data root and its standard subdirectories.
// Existing directories are left untouched.
func EnsureLayout(root string) error {
	for _, d := range LayoutDirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return fmt.Errorf("%w: %w", ErrLayout, err)
		}
	}
	return nil
}
