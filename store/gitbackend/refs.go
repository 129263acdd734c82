package gitbackend

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sigilvc/sigil/plumbing"
)

// writeRefFile writes a loose ref file the way a real Git tree does:
// "<40-hex-id>\n" at refs/<name>. It takes no lock, because keep refs are
// create-once and never contended: each is named by a fresh uuid, so two
// writers never target the same path.
func writeRefFile(root, name string, id plumbing.Id) error {
	path := filepath.Join(root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("gitbackend: mkdir for ref %s: %w", name, err)
	}
	content := id.String()[:40] + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("gitbackend: write ref %s: %w", name, err)
	}
	return nil
}
