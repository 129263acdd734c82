package memstore

import (
	"encoding/binary"
	"strconv"

	"github.com/sigilvc/sigil/plumbing"
	"github.com/sigilvc/sigil/store"
)

// hashTree, hashCommit and hashConflict give the memory backend its own
// deterministic content addressing. They need not match any on-disk
// format (that is gitbackend's job); they only need to be stable so that
// two writes of equal content produce equal ids, mirroring the
// content-addressing contract every Backend must honor.

func hashTree(t *store.Tree) plumbing.Id {
	h := plumbing.NewHasher()
	for _, e := range t.Entries {
		_, _ = h.Write([]byte(e.Name))
		_, _ = h.Write([]byte{0, byte(e.Value.Kind)})
		_, _ = h.Write(e.Value.Id[:])
		if e.Value.Executable {
			_, _ = h.Write([]byte{1})
		} else {
			_, _ = h.Write([]byte{0})
		}
	}
	return h.Sum()
}

func hashCommit(c *store.Commit) plumbing.Id {
	h := plumbing.NewHasher()
	for _, p := range c.Parents {
		_, _ = h.Write(p[:])
	}
	_, _ = h.Write(c.RootTree[:])
	_, _ = h.Write(c.ChangeId[:])
	_, _ = h.Write([]byte(c.Author.Name))
	_, _ = h.Write([]byte(c.Author.Email))
	_, _ = h.Write(i64bytes(c.Author.When))
	_, _ = h.Write([]byte(c.Committer.Name))
	_, _ = h.Write([]byte(c.Committer.Email))
	_, _ = h.Write(i64bytes(c.Committer.When))
	_, _ = h.Write(c.Description)
	for _, p := range c.Predecessors {
		_, _ = h.Write(p[:])
	}
	return h.Sum()
}

func hashConflict(c *store.Conflict) plumbing.Id {
	h := plumbing.NewHasher()
	_, _ = h.Write([]byte(strconv.Itoa(len(c.Adds))))
	for _, v := range c.Adds {
		writeTermHash(h, v)
	}
	for _, v := range c.Removes {
		writeTermHash(h, v)
	}
	return h.Sum()
}

func writeTermHash(h plumbing.Hasher, v *store.TreeValue) {
	if v == nil {
		_, _ = h.Write([]byte{0xff})
		return
	}
	_, _ = h.Write([]byte{byte(v.Kind)})
	_, _ = h.Write(v.Id[:])
	if v.Executable {
		_, _ = h.Write([]byte{1})
	} else {
		_, _ = h.Write([]byte{0})
	}
}

func i64bytes(v int64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	return b[:]
}
