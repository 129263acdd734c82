// Copyright (c) sigilvc authors.
// SPDX-License-Identifier: Apache-2.0

// Package gitbackend implements store.Backend on top of a Git-compatible
// loose-object directory: files, trees and symlinks are native Git blobs
// and trees, commits are native Git commits carrying the engine's extra
// metadata (change id, predecessors, open/pruned flags) as header lines,
// and conflict objects are represented as specially-suffixed tree
// entries pointing at a JSON-encoded blob, exactly as described by the
// engine's external interface contract for a Git-compatible backend.
package gitbackend

import (
	"bytes"
	"crypto/sha1"
	"fmt"
	"sort"
	"strconv"

	"github.com/klauspost/compress/zstd"

	"github.com/sigilvc/sigil/plumbing"
	"github.com/sigilvc/sigil/plumbing/filemode"
)

// objectKind mirrors the three Git object types this backend writes (blob, tree, commit); loose objects are framed as
// "<kind> <size>\0<payload>" before hashing and compression, same as
// upstream Git.
type objectKind string

const (
	kindBlob   objectKind = "blob"
	kindTree   objectKind = "tree"
	kindCommit objectKind = "commit"
)

func frameObject(kind objectKind, payload []byte) []byte {
	header := fmt.Sprintf("%s %d\x00", kind, len(payload))
	framed := make([]byte, 0, len(header)+len(payload))
	framed = append(framed, header...)
	framed = append(framed, payload...)
	return framed
}

// hashObject computes the id the backend assigns to a framed object. The
// engine's own content-addressing (plumbing.HashBytes) is BLAKE3; this
// backend instead reports the SHA-1 a real Git peer would compute, since
// Backend.HashLength documents that a backend fixes its own width and
// objects stored here must interoperate with a Git object database.
func hashObject(framed []byte) plumbing.Id {
	sum := sha1.Sum(framed)
	var id plumbing.Id
	copy(id[:], sum[:])
	return id
}

var zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
var zstdDecoder, _ = zstd.NewReader(nil)

func compress(p []byte) []byte {
	return zstdEncoder.EncodeAll(p, make([]byte, 0, len(p)))
}

func decompress(p []byte) ([]byte, error) {
	return zstdDecoder.DecodeAll(p, nil)
}

// encodeTree serializes a tree the way Git does: entries sorted by raw
// name bytes, each rendered as "<mode> <name>\x00<20-byte-id>". Conflict
// entries are written under a name with the conflictSuffix appended and
// the tree-specific KindConflict id substituted for the normal id, so
// that a plain Git client (or fsck) sees a well-formed tree whose
// ".conflict" entries just look like any other blob.
func encodeTree(entries []treeRow) []byte {
	sorted := append([]treeRow(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].sortKey < sorted[j].sortKey })
	var buf bytes.Buffer
	for _, e := range sorted {
		buf.WriteString(strconv.FormatUint(uint64(e.mode), 8))
		buf.WriteByte(' ')
		buf.WriteString(e.name)
		buf.WriteByte(0)
		buf.Write(e.id[:20])
	}
	return buf.Bytes()
}

type treeRow struct {
	mode    filemode.FileMode
	name    string
	id      plumbing.Id
	sortKey string
}

// gitSortKey reproduces Git's tree entry ordering: a directory entry
// sorts as though its name had a trailing '/'.
func gitSortKey(name string, mode filemode.FileMode) string {
	if mode == filemode.Dir {
		return name + "/"
	}
	return name
}

func decodeTree(payload []byte) ([]treeRow, error) {
	var rows []treeRow
	for len(payload) > 0 {
		sp := bytes.IndexByte(payload, ' ')
		if sp < 0 {
			return nil, fmt.Errorf("gitbackend: truncated tree entry (mode)")
		}
		modeOctal := string(payload[:sp])
		mode, err := strconv.ParseUint(modeOctal, 8, 32)
		if err != nil {
			return nil, fmt.Errorf("gitbackend: bad mode %q: %w", modeOctal, err)
		}
		payload = payload[sp+1:]
		nul := bytes.IndexByte(payload, 0)
		if nul < 0 {
			return nil, fmt.Errorf("gitbackend: truncated tree entry (name)")
		}
		name := string(payload[:nul])
		payload = payload[nul+1:]
		if len(payload) < 20 {
			return nil, fmt.Errorf("gitbackend: truncated tree entry (id)")
		}
		var id plumbing.Id
		copy(id[:], payload[:20])
		payload = payload[20:]
		rows = append(rows, treeRow{mode: filemode.FileMode(mode), name: name, id: id})
	}
	return rows, nil
}
