package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/manicko/mko-birth-reminder-bot/assets"
)

// ConfirmFunc is asked before an existing file is overwritten.
type ConfirmFunc func(path string) bool

// ExportDefaults writes the default config and a secrets template into dest.
// Existing files are kept unless force is set or confirm approves.
// It returns the paths that were written.
func ExportDefaults(dest string, force bool, confirm ConfirmFunc) ([]string, error) {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dest, err)
	}
	files := []struct {
		name string
		data []byte
		perm os.FileMode
	}{
		{ConfigFile, assets.DefaultConfig, 0o644},
		{SecretsFile, assets.SecretsTemplate, 0o600},
	}

	var written []string
	for _, f := range files {
		path := filepath.Join(dest, f.name)
		if _, err := os.Stat(path); err == nil && !force {
			if confirm == nil || !confirm(path) {
				continue
			}
		}
		if err := os.WriteFile(path, f.data, f.perm); err != nil {
			return written, fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}
