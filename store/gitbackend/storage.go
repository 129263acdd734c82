package gitbackend

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sigilvc/sigil/plumbing"
)

// loosePath splits a Git-style id into the two-char fan-out
// directory plus remainder file name used by every Git object database.
func loosePath(root string, id plumbing.Id, hashLen int) string {
	hex := id.String()[:hashLen*2]
	return filepath.Join(root, "objects", hex[:2], hex[2:])
}

// writeLoose writes framed+compressed bytes content-addressed,
// crash-safely: write to a temp file in the same directory, fsync, then
// rename over the final path. A rename onto an existing loose object is
// harmless (content-addressing guarantees the bytes are identical), so a
// racing writer never corrupts another's object.
func writeLoose(root string, id plumbing.Id, hashLen int, framed []byte) error {
	path := loosePath(root, id, hashLen)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("gitbackend: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-obj-*")
	if err != nil {
		return fmt.Errorf("gitbackend: create temp object: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(compress(framed)); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("gitbackend: write temp object: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("gitbackend: fsync temp object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("gitbackend: close temp object: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("gitbackend: rename into place: %w", err)
	}
	return nil
}

func ensureLayout(root string) error {
	for _, dir := range []string{"objects", filepath.Join("refs", "keep")} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
			return err
		}
	}
	return nil
}

func readLoose(root string, id plumbing.Id, hashLen int) ([]byte, error) {
	path := loosePath(root, id, hashLen)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, plumbing.NotFound(id)
		}
		return nil, plumbing.Backend("read loose object", err)
	}
	out, err := decompress(raw)
	if err != nil {
		return nil, plumbing.Backend("decompress loose object", err)
	}
	return out, nil
}
