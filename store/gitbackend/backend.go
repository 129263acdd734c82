package gitbackend

import (
	"context"
	"fmt"
	"sync"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/sigilvc/sigil/plumbing"
	"github.com/sigilvc/sigil/store"
)

const defaultHashLength = 20 // SHA-1, matching a real Git peer

// Backend is a store.Backend backed by a Git-compatible loose-object
// directory rooted at Root. It is safe for concurrent use; reads never
// block each other, and writes are serialized only to the extent the
// underlying filesystem serializes renames into the same path.
type Backend struct {
	Root string

	mu        sync.RWMutex
	cache     *ristretto.Cache[string, any]
	emptyTree plumbing.TreeId
}

var _ store.Backend = (*Backend)(nil)

type Option func(*Backend)

// WithCache attaches a ristretto object cache sized for roughly
// maxCost bytes of decoded objects, avoiding repeated decompression of
// hot trees and commits across a single process's lifetime.
func WithCache(maxCost int64) Option {
	return func(b *Backend) {
		cache, err := ristretto.NewCache(&ristretto.Config[string, any]{
			NumCounters: maxCost / 8,
			MaxCost:     maxCost,
			BufferItems: 64,
		})
		if err == nil {
			b.cache = cache
		}
	}
}

// Open returns a Backend rooted at root, creating the on-disk layout
// (objects/, refs/) if it does not already exist.
func Open(root string, opts ...Option) (*Backend, error) {
	b := &Backend{Root: root}
	for _, opt := range opts {
		opt(b)
	}
	if err := ensureLayout(root); err != nil {
		return nil, fmt.Errorf("gitbackend: open %s: %w", root, err)
	}
	emptyFramed := frameObject(kindTree, nil)
	b.emptyTree = hashObject(emptyFramed)
	if err := writeLoose(b.Root, b.emptyTree, defaultHashLength, emptyFramed); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Backend) EmptyTreeId() plumbing.TreeId { return b.emptyTree }

func (b *Backend) HashLength() int { return defaultHashLength }

func (b *Backend) cacheGet(key string) (any, bool) {
	if b.cache == nil {
		return nil, false
	}
	return b.cache.Get(key)
}

func (b *Backend) cacheSet(key string, v any, cost int64) {
	if b.cache == nil {
		return
	}
	b.cache.Set(key, v, cost)
}

func (b *Backend) ReadFile(ctx context.Context, id plumbing.FileId) (*store.File, error) {
	if v, ok := b.cacheGet("file:" + id.String()); ok {
		return v.(*store.File), nil
	}
	payload, err := b.readFramed(kindBlob, id)
	if err != nil {
		return nil, err
	}
	f := &store.File{Body: payload}
	b.cacheSet("file:"+id.String(), f, int64(len(payload)))
	return f, nil
}

func (b *Backend) WriteFile(ctx context.Context, f *store.File) (plumbing.FileId, error) {
	framed := frameObject(kindBlob, f.Body)
	id := hashObject(framed)
	if err := writeLoose(b.Root, id, defaultHashLength, framed); err != nil {
		return plumbing.ZeroId, err
	}
	return id, nil
}

// ReadSymlink/WriteSymlink reuse the blob encoding: a Git-compatible peer
// represents a symlink as a blob whose content is the link target, with
// the executable-independent mode 120000 recorded on the tree entry that
// references it.
func (b *Backend) ReadSymlink(ctx context.Context, id plumbing.SymlinkId) (*store.Symlink, error) {
	payload, err := b.readFramed(kindBlob, id)
	if err != nil {
		return nil, err
	}
	return &store.Symlink{Target: payload}, nil
}

func (b *Backend) WriteSymlink(ctx context.Context, s *store.Symlink) (plumbing.SymlinkId, error) {
	framed := frameObject(kindBlob, s.Target)
	id := hashObject(framed)
	if err := writeLoose(b.Root, id, defaultHashLength, framed); err != nil {
		return plumbing.ZeroId, err
	}
	return id, nil
}

func (b *Backend) readFramed(kind objectKind, id plumbing.Id) ([]byte, error) {
	raw, err := readLoose(b.Root, id, defaultHashLength)
	if err != nil {
		return nil, err
	}
	payload, gotKind, err := unframe(raw)
	if err != nil {
		return nil, plumbing.Backend("decode object", err)
	}
	if gotKind != kind {
		return nil, plumbing.Backend("decode object", fmt.Errorf("expected %s, got %s", kind, gotKind))
	}
	return payload, nil
}

func unframe(raw []byte) (payload []byte, kind objectKind, err error) {
	for i, c := range raw {
		if c == ' ' {
			nul := -1
			for j := i + 1; j < len(raw); j++ {
				if raw[j] == 0 {
					nul = j
					break
				}
			}
			if nul < 0 {
				return nil, "", fmt.Errorf("malformed object framing")
			}
			return raw[nul+1:], objectKind(raw[:i]), nil
		}
	}
	return nil, "", fmt.Errorf("malformed object framing")
}
