// Package filemode represents the small set of Git-compatible file modes
// the object store's Git backend needs: regular file, executable file,
// directory, symlink and submodule (gitlink).
package filemode

import (
	"fmt"
	"io/fs"
)

// FileMode mirrors the octal mode Git stores in a tree entry.
type FileMode uint32

const (
	sIFMT  FileMode = 0170000
	Empty  FileMode = 0
	Dir    FileMode = 0040000
	Symlink FileMode = 0120000
	Submodule FileMode = 0160000
	Regular FileMode = 0100644
	Deprecated FileMode = 0100664
	Executable FileMode = 0100755
)

// New parses a mode the way Git prints it (e.g. "100644").
func New(s string) (FileMode, error) {
	var m FileMode
	if _, err := fmt.Sscanf(s, "%o", &m); err != nil {
		return 0, fmt.Errorf("filemode: invalid mode %q: %w", s, err)
	}
	return m, nil
}

func (m FileMode) String() string { return fmt.Sprintf("%06o", uint32(m)) }

func (m FileMode) IsRegular() bool {
	return m&sIFMT == Regular&sIFMT && m != Symlink && m != Submodule && m != Dir
}

func (m FileMode) IsExecutable() bool { return m&0111 != 0 && m.IsRegular() }

func (m FileMode) IsDir() bool       { return m&sIFMT == Dir }
func (m FileMode) IsSymlink() bool   { return m&sIFMT == Symlink }
func (m FileMode) IsSubmodule() bool { return m&sIFMT == Submodule }

// ToOSFileMode approximates the fs.FileMode a materialized working copy
// entry of this type would carry.
func (m FileMode) ToOSFileMode() (fs.FileMode, error) {
	switch {
	case m.IsDir():
		return fs.ModeDir | 0755, nil
	case m.IsSymlink():
		return fs.ModeSymlink, nil
	case m.IsSubmodule():
		return fs.ModeDir, nil
	case m == Executable:
		return 0755, nil
	case m.IsRegular():
		return 0644, nil
	default:
		return 0, fmt.Errorf("filemode: unsupported mode %s", m)
	}
}
