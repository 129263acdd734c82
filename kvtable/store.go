package kvtable

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/sigilvc/sigil/plumbing"
)

// Store is the on-disk home of a segment chain: segment files named by
// the BLAKE3 hash of their own serialized bytes, a heads/ directory of
// zero-byte marker files naming the current frontier, and a lock file
// guarding save. Grounded on the write-temp-then-rename idiom in
// store/gitbackend/storage.go and the heads-directory convention the
// operation log (package oplog) also uses for its own head set.
type Store struct {
	dir     string
	keySize int

	mu     sync.RWMutex
	cached map[string]*Segment
}

// Open prepares a Store rooted at dir, creating the heads/ subdirectory
// if this is the first use. keySize is fixed for the life of the store
// (for example plumbing.DigestSize for content-hash keys; a test may use
// a smaller width).
func Open(dir string, keySize int) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, "heads"), 0755); err != nil {
		return nil, fmt.Errorf("kvtable: create heads dir: %w", err)
	}
	return &Store{dir: dir, keySize: keySize, cached: map[string]*Segment{}}, nil
}

func (st *Store) KeySize() int { return st.keySize }

func (st *Store) lockPath() string { return filepath.Join(st.dir, "lock") }

// withLock serializes saves across processes via a create-exclusive
// lock file; a stale lock left by a crashed writer must be removed
// manually, the same stance oplog.Store's lock takes: not
// self-healing.
func (st *Store) withLock(fn func() error) error {
	f, err := os.OpenFile(st.lockPath(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return plumbing.NewErrResourceLocked("stacked-table", st.dir)
		}
		return fmt.Errorf("kvtable: acquire lock: %w", err)
	}
	defer func() {
		_ = f.Close()
		_ = os.Remove(st.lockPath())
	}()
	return fn()
}

func (st *Store) loadSegment(name string) (*Segment, error) {
	st.mu.RLock()
	if s, ok := st.cached[name]; ok {
		st.mu.RUnlock()
		return s, nil
	}
	st.mu.RUnlock()

	data, err := os.ReadFile(filepath.Join(st.dir, name))
	if err != nil {
		return nil, fmt.Errorf("kvtable: read segment %s: %w", name, err)
	}
	seg, err := decodeSegment(name, st.keySize, data, st.loadSegment)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	st.cached[name] = seg
	st.mu.Unlock()
	return seg, nil
}

// Save persists a Mutable, applying auto-compaction, and updates the
// heads/ directory: the new segment becomes a head, and its immediate
// parent (if superseded) stops being one. Saving an empty mutation atop
// an existing parent is a no-op that returns the parent unchanged,
// matching §4.7's intent that a clean transaction not grow the chain.
func (st *Store) Save(m *Mutable) (*Segment, error) {
	if len(m.entries) == 0 && m.parent != nil {
		return m.parent, nil
	}
	squashed := m.maybeSquashWithAncestors()
	data := squashed.serialize()

	name := plumbing.HashBytes("kvtable-segment", data).String()
	path := filepath.Join(st.dir, name)

	if _, err := os.Stat(path); err != nil {
		tmp, err := os.CreateTemp(st.dir, ".tmp-table-*")
		if err != nil {
			return nil, fmt.Errorf("kvtable: create temp segment: %w", err)
		}
		tmpName := tmp.Name()
		if _, err := tmp.Write(data); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
			return nil, fmt.Errorf("kvtable: write temp segment: %w", err)
		}
		if err := tmp.Sync(); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
			return nil, fmt.Errorf("kvtable: fsync temp segment: %w", err)
		}
		if err := tmp.Close(); err != nil {
			_ = os.Remove(tmpName)
			return nil, fmt.Errorf("kvtable: close temp segment: %w", err)
		}
		if err := os.Rename(tmpName, path); err != nil {
			return nil, fmt.Errorf("kvtable: rename segment into place: %w", err)
		}
	}

	seg, err := decodeSegment(name, st.keySize, data, st.loadSegment)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	st.cached[name] = seg
	st.mu.Unlock()

	if err := st.addHead(name); err != nil {
		return nil, err
	}
	if m.parent != nil && m.parent.name != name {
		st.removeHead(m.parent.name)
	}
	return seg, nil
}

func (st *Store) addHead(name string) error {
	return os.WriteFile(filepath.Join(st.dir, "heads", name), nil, 0644)
}

// removeHead is best-effort: a missing head file most commonly means a
// concurrent writer already reconciled it away, which is fine (see
// §4.8's marker-file reconciliation note).
func (st *Store) removeHead(name string) {
	_ = os.Remove(filepath.Join(st.dir, "heads", name))
}

func (st *Store) headNames() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(st.dir, "heads"))
	if err != nil {
		return nil, fmt.Errorf("kvtable: list heads: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

// Head returns the current table, reconciling a fork of multiple heads
// (left by concurrent writers racing Save) by merging them into a single
// new segment under the store's lock.
func (st *Store) Head() (*Segment, error) {
	names, err := st.headNames()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return st.Save(NewMutable(st.keySize))
	}
	if len(names) == 1 {
		return st.loadSegment(names[0])
	}

	var merged *Segment
	err = st.withLock(func() error {
		names, err := st.headNames()
		if err != nil {
			return err
		}
		if len(names) == 1 {
			merged, err = st.loadSegment(names[0])
			return err
		}
		logrus.Debugf("kvtable: reconciling %d concurrent heads in %s", len(names), st.dir)
		segs := make([]*Segment, len(names))
		for i, n := range names {
			s, err := st.loadSegment(n)
			if err != nil {
				return err
			}
			segs[i] = s
		}
		mut := Incremental(segs[0])
		for _, s := range segs[1:] {
			mut.MergeIn(s)
		}
		saved, err := st.Save(mut)
		if err != nil {
			return err
		}
		for _, s := range segs[1:] {
			st.removeHead(s.name)
		}
		merged = saved
		return nil
	})
	if err != nil {
		return nil, err
	}
	return merged, nil
}
