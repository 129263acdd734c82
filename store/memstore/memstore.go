// Package memstore implements store.Backend entirely in memory. It is
// the backend the engine's own tests run against (mirroring how
// git/gitobj ships a memory storer so packfile logic can be tested
// without touching a filesystem), and a reasonable starting point for
// any caller that wants Backend semantics without persistence.
package memstore

import (
	"context"
	"sync"

	"github.com/sigilvc/sigil/plumbing"
	"github.com/sigilvc/sigil/store"
)

type Store struct {
	mu        sync.RWMutex
	files     map[plumbing.FileId]*store.File
	symlinks  map[plumbing.SymlinkId]*store.Symlink
	trees     map[plumbing.TreeId]*store.Tree
	commits   map[plumbing.CommitId]*store.Commit
	conflicts map[plumbing.ConflictId]*store.Conflict
	emptyTree plumbing.TreeId
}

var _ store.Backend = (*Store)(nil)

func New() *Store {
	s := &Store{
		files:     make(map[plumbing.FileId]*store.File),
		symlinks:  make(map[plumbing.SymlinkId]*store.Symlink),
		trees:     make(map[plumbing.TreeId]*store.Tree),
		commits:   make(map[plumbing.CommitId]*store.Commit),
		conflicts: make(map[plumbing.ConflictId]*store.Conflict),
	}
	s.emptyTree = plumbing.HashBytes("tree", nil)
	s.trees[s.emptyTree] = &store.Tree{}
	return s
}

func (s *Store) EmptyTreeId() plumbing.TreeId { return s.emptyTree }

func (s *Store) HashLength() int { return plumbing.DigestSize }

func (s *Store) ReadFile(_ context.Context, id plumbing.FileId) (*store.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[id]
	if !ok {
		return nil, plumbing.NotFound(id)
	}
	return f, nil
}

func (s *Store) WriteFile(_ context.Context, f *store.File) (plumbing.FileId, error) {
	id := plumbing.HashBytes("file", f.Body)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[id]; !ok {
		cp := *f
		cp.Body = append([]byte(nil), f.Body...)
		s.files[id] = &cp
	}
	return id, nil
}

func (s *Store) ReadSymlink(_ context.Context, id plumbing.SymlinkId) (*store.Symlink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.symlinks[id]
	if !ok {
		return nil, plumbing.NotFound(id)
	}
	return l, nil
}

func (s *Store) WriteSymlink(_ context.Context, l *store.Symlink) (plumbing.SymlinkId, error) {
	id := plumbing.HashBytes("symlink", l.Target)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.symlinks[id]; !ok {
		cp := *l
		cp.Target = append([]byte(nil), l.Target...)
		s.symlinks[id] = &cp
	}
	return id, nil
}

func (s *Store) ReadTree(_ context.Context, id plumbing.TreeId) (*store.Tree, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.trees[id]
	if !ok {
		return nil, plumbing.NotFound(id)
	}
	return t, nil
}

func (s *Store) WriteTree(_ context.Context, t *store.Tree) (plumbing.TreeId, error) {
	id := hashTree(t)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.trees[id]; !ok {
		entries := append([]store.TreeEntry(nil), t.Entries...)
		s.trees[id] = &store.Tree{Entries: entries}
	}
	return id, nil
}

func (s *Store) ReadCommit(_ context.Context, id plumbing.CommitId) (*store.Commit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.commits[id]
	if !ok {
		return nil, plumbing.NotFound(id)
	}
	return c, nil
}

func (s *Store) WriteCommit(_ context.Context, c *store.Commit) (plumbing.CommitId, error) {
	id := hashCommit(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.commits[id]; !ok {
		cp := *c
		cp.Parents = append([]plumbing.CommitId(nil), c.Parents...)
		cp.Predecessors = append([]plumbing.CommitId(nil), c.Predecessors...)
		cp.Description = append([]byte(nil), c.Description...)
		s.commits[id] = &cp
	}
	return id, nil
}

func (s *Store) ReadConflict(_ context.Context, id plumbing.ConflictId) (*store.Conflict, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conflicts[id]
	if !ok {
		return nil, plumbing.NotFound(id)
	}
	return c, nil
}

func (s *Store) WriteConflict(_ context.Context, c *store.Conflict) (plumbing.ConflictId, error) {
	id := hashConflict(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conflicts[id]; !ok {
		s.conflicts[id] = cloneConflict(c)
	}
	return id, nil
}

func cloneConflict(c *store.Conflict) *store.Conflict {
	out := &store.Conflict{
		Adds:    make([]*store.TreeValue, len(c.Adds)),
		Removes: make([]*store.TreeValue, len(c.Removes)),
	}
	for i, v := range c.Adds {
		if v != nil {
			cp := *v
			out.Adds[i] = &cp
		}
	}
	for i, v := range c.Removes {
		if v != nil {
			cp := *v
			out.Removes[i] = &cp
		}
	}
	return out
}
