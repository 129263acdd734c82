// Package plumbing defines the low-level content-addressing primitives
// shared by every layer of the engine: object ids, the error vocabulary
// objects and stores use to signal failure, and reference-name plumbing.
package plumbing

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/zeebo/blake3"
)

// DigestSize is the width, in bytes, of an Id produced by NewHasher.
// A Git-compatible backend may reinterpret the low DigestSize bytes of a
// foreign (SHA-1 or SHA-256) id; Backend.HashLength reports the backend's
// native width, which need not equal DigestSize.
const DigestSize = 32

// ZeroId is the distinguished all-zero id. No content hashes to it.
var ZeroId Id

// Id is an opaque content hash. Equality is bytewise; no other structure
// is assumed of it. FileId, SymlinkId, TreeId, CommitId, ConflictId, OpId
// and ViewId are all Id in different clothes so that the type system
// keeps them apart without duplicating the hashing machinery.
type Id [DigestSize]byte

type (
	FileId     = Id
	SymlinkId  = Id
	TreeId     = Id
	CommitId   = Id
	ConflictId = Id
	ChangeId   = Id
	OpId       = Id
	ViewId     = Id
)

// NewId decodes a hex string into an Id, ignoring malformed input (the
// zero Id is returned). Use ParseId when the caller must distinguish a
// bad string from a legitimately absent id.
func NewId(s string) Id {
	id, _ := ParseId(s)
	return id
}

// ParseId decodes a hex string into an Id, reporting malformed input.
func ParseId(s string) (Id, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return ZeroId, fmt.Errorf("plumbing: %q is not a valid object id: %w", s, err)
	}
	var id Id
	n := copy(id[:], b)
	if n != DigestSize || len(b) != DigestSize {
		return ZeroId, fmt.Errorf("plumbing: %q has the wrong width for an object id", s)
	}
	return id, nil
}

func (id Id) IsZero() bool { return id == ZeroId }

func (id Id) String() string { return hex.EncodeToString(id[:]) }

// Prefix returns the first n hex digits of the id (the whole hex string
// if n is larger). It does no disambiguation; callers doing real
// disambiguation must consult an index (see opresolve).
func (id Id) Prefix(n int) string {
	s := id.String()
	if n > len(s) {
		n = len(s)
	}
	return s[:n]
}

func (id Id) Bytes() []byte { return id[:] }

func (id Id) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *Id) UnmarshalText(text []byte) error {
	parsed, err := ParseId(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id Id) MarshalJSON() ([]byte, error) { return json.Marshal(id.String()) }

func (id *Id) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseId(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// IdSlice attaches sort.Interface to []Id, increasing lexicographically.
type IdSlice []Id

func (p IdSlice) Len() int           { return len(p) }
func (p IdSlice) Less(i, j int) bool { return bytes.Compare(p[i][:], p[j][:]) < 0 }
func (p IdSlice) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }

func SortIds(ids []Id) { sort.Sort(IdSlice(ids)) }

// Hasher wraps the BLAKE3 hash used for the engine's native ids (HashBytes,
// the in-memory store, operation-log and kvtable segment names). The
// Git-compatible backend does not use it: it names every object it
// stores, conflict objects included, by the SHA-1 of its Git framing.
type Hasher struct {
	h *blake3.Hasher
}

func NewHasher() Hasher { return Hasher{h: blake3.New()} }

func (h Hasher) Write(p []byte) (int, error) { return h.h.Write(p) }

func (h Hasher) Sum() Id {
	var id Id
	sum := h.h.Sum(nil)
	copy(id[:], sum)
	return id
}

// HashBytes is a convenience for the common case of hashing one buffer.
func HashBytes(kind string, b []byte) Id {
	h := NewHasher()
	_, _ = h.Write([]byte(kind))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(b)
	return h.Sum()
}
