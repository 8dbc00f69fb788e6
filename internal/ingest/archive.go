package ingest

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Archiver moves processed source files out of the inbox so sweeps never
// reprocess them. Valid and invalid documents land in separate folders.
type Archiver struct {
	Root string
	Log  *slog.Logger
}

func NewArchiver(root string, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{Root: root, Log: logger}
}

// Archive moves path into <root>/valid or <root>/invalid, suffixing the
// name on collision so nothing is overwritten.
func (a *Archiver) Archive(path string, valid bool) (string, error) {
	sub := "invalid"
	if valid {
		sub = "valid"
	}
	destDir := filepath.Join(a.Root, sub)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}

	dest := filepath.Join(destDir, filepath.Base(path))
	dest = uniquePath(dest)

	if err := os.Rename(path, dest); err != nil {
		return "", fmt.Errorf("archive %s: %w", path, err)
	}
	a.Log.Info("ingest.archived", "from", path, "to", dest, "valid", valid)
	return dest, nil
}

func uniquePath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s.%d%s", stem, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
