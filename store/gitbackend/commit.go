package gitbackend

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/sigilvc/sigil/plumbing"
	"github.com/sigilvc/sigil/store"
)

// Commit headers carrying engine metadata that has no native Git
// counterpart. They are ordinary header lines in the commit object,
// the same mechanism Git itself uses for "gpgsig": anything before the
// blank line separating headers from the message body.
const (
	headerParent       = "parent"
	headerTree         = "tree"
	headerAuthor       = "author"
	headerCommitter    = "committer"
	headerChangeId     = "change-id"
	headerPredecessor  = "predecessor"
	headerIsOpen       = "is-open"
	headerIsPruned     = "is-pruned"
)

func encodeSignature(s store.Signature) string {
	return fmt.Sprintf("%s <%s> %d +0000", s.Name, s.Email, s.When)
}

func decodeSignature(line string) store.Signature {
	open := strings.LastIndexByte(line, '<')
	closeB := strings.LastIndexByte(line, '>')
	var s store.Signature
	if open < 0 || closeB < 0 || closeB < open {
		return s
	}
	s.Name = strings.TrimSpace(line[:open])
	s.Email = line[open+1 : closeB]
	rest := strings.TrimSpace(line[closeB+1:])
	if sp := strings.IndexByte(rest, ' '); sp > 0 {
		rest = rest[:sp]
	}
	when, _ := strconv.ParseInt(rest, 10, 64)
	s.When = when
	return s
}

func (b *Backend) ReadCommit(ctx context.Context, id plumbing.CommitId) (*store.Commit, error) {
	if v, ok := b.cacheGet("commit:" + id.String()); ok {
		return v.(*store.Commit), nil
	}
	payload, err := b.readFramed(kindCommit, id)
	if err != nil {
		return nil, err
	}
	c, err := decodeCommit(payload)
	if err != nil {
		return nil, plumbing.Backend("decode commit", err)
	}
	b.cacheSet("commit:"+id.String(), c, int64(len(payload)))
	return c, nil
}

func (b *Backend) WriteCommit(ctx context.Context, c *store.Commit) (plumbing.CommitId, error) {
	payload := encodeCommit(c)
	framed := frameObject(kindCommit, payload)
	id := hashObject(framed)
	if err := writeLoose(b.Root, id, defaultHashLength, framed); err != nil {
		return plumbing.ZeroId, err
	}
	if err := b.addKeepRef(id); err != nil {
		return plumbing.ZeroId, err
	}
	return id, nil
}

func encodeCommit(c *store.Commit) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %s\n", headerTree, c.RootTree)
	for _, p := range c.Parents {
		fmt.Fprintf(&buf, "%s %s\n", headerParent, p)
	}
	fmt.Fprintf(&buf, "%s %s\n", headerAuthor, encodeSignature(c.Author))
	fmt.Fprintf(&buf, "%s %s\n", headerCommitter, encodeSignature(c.Committer))
	if !c.ChangeId.IsZero() {
		fmt.Fprintf(&buf, "%s %s\n", headerChangeId, c.ChangeId)
	}
	for _, p := range c.Predecessors {
		fmt.Fprintf(&buf, "%s %s\n", headerPredecessor, p)
	}
	if c.IsOpen {
		fmt.Fprintf(&buf, "%s %s\n", headerIsOpen, "true")
	}
	if c.IsPruned {
		fmt.Fprintf(&buf, "%s %s\n", headerIsPruned, "true")
	}
	buf.WriteByte('\n')
	buf.Write(c.Description)
	return buf.Bytes()
}

func decodeCommit(payload []byte) (*store.Commit, error) {
	c := &store.Commit{}
	scanner := bufio.NewScanner(bytes.NewReader(payload))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			break
		}
		sp := strings.IndexByte(line, ' ')
		if sp < 0 {
			return nil, fmt.Errorf("malformed commit header %q", line)
		}
		key, value := line[:sp], line[sp+1:]
		switch key {
		case headerTree:
			id, err := plumbing.ParseId(value)
			if err != nil {
				return nil, err
			}
			c.RootTree = id
		case headerParent:
			id, err := plumbing.ParseId(value)
			if err != nil {
				return nil, err
			}
			c.Parents = append(c.Parents, id)
		case headerAuthor:
			c.Author = decodeSignature(value)
		case headerCommitter:
			c.Committer = decodeSignature(value)
		case headerChangeId:
			id, err := plumbing.ParseId(value)
			if err != nil {
				return nil, err
			}
			c.ChangeId = id
		case headerPredecessor:
			id, err := plumbing.ParseId(value)
			if err != nil {
				return nil, err
			}
			c.Predecessors = append(c.Predecessors, id)
		case headerIsOpen:
			c.IsOpen = value == "true"
		case headerIsPruned:
			c.IsPruned = value == "true"
		default:
			// Unknown header: ignore, matching Git's tolerance of
			// headers it does not itself understand (e.g. gpgsig).
		}
	}
	body := payload
	if headerEnd := findHeaderEnd(payload); headerEnd >= 0 {
		body = payload[headerEnd:]
	} else {
		body = nil
	}
	c.Description = body
	return c, scanner.Err()
}

func findHeaderEnd(payload []byte) int {
	sep := []byte("\n\n")
	i := bytes.Index(payload, sep)
	if i < 0 {
		return -1
	}
	return i + len(sep)
}

// addKeepRef references every engine-created commit from a dedicated
// namespace so that a peer's reachability-based garbage collection never
// reclaims it purely for lack of a branch pointing at it; the operation
// log, not Git refs, is this engine's source of truth for what is live.
func (b *Backend) addKeepRef(id plumbing.CommitId) error {
	return writeRefFile(b.Root, "refs/keep/"+uuid.NewString(), id)
}
