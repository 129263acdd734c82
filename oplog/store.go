package oplog

import (
	"encoding/json"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/sigilvc/sigil/merge"
	"github.com/sigilvc/sigil/optional"
	"github.com/sigilvc/sigil/plumbing"
)

// diskOperation and diskView are the JSON envelopes operations and views
// are serialized as; ids are content hashes of this exact encoding, so
// the envelope's field order and names are part of the format and must
// not change casually. Following the sidecar-metadata convention in
// modules/zeta/object/object.go, which uses encoding/json for
// bookkeeping that never needs Git-wire compatibility, this stays plain
// JSON rather than adopting a binary format the store layer (C1)
// already owns.
type diskOperation struct {
	ViewId      string            `json:"view_id"`
	Parents     []string          `json:"parents"`
	Description string            `json:"description"`
	Tags        map[string]string `json:"tags,omitempty"`
	Start       time.Time         `json:"start"`
	End         time.Time         `json:"end"`
	Hostname    string            `json:"hostname,omitempty"`
	Username    string            `json:"username,omitempty"`
	Args        []string          `json:"args,omitempty"`
}

// diskOptionId is the on-disk shape of an optional.Option[plumbing.Id]: a
// bare hex string cannot tell "absent" apart from the zero id, so
// presence is recorded explicitly rather than overloading an empty
// string.
type diskOptionId struct {
	Present bool   `json:"present"`
	Id      string `json:"id,omitempty"`
}

func encodeOptionId(o optional.Option[plumbing.Id]) diskOptionId {
	if !o.IsSome() {
		return diskOptionId{}
	}
	return diskOptionId{Present: true, Id: o.Unwrap().String()}
}

func decodeOptionId(d diskOptionId) optional.Option[plumbing.Id] {
	if !d.Present {
		return optional.None[plumbing.Id]()
	}
	return optional.Some(plumbing.NewId(d.Id))
}

// diskBranchState is a BranchState's on-disk shape: the Merge's adds and
// removes, term by term.
type diskBranchState struct {
	Adds    []diskOptionId `json:"adds"`
	Removes []diskOptionId `json:"removes,omitempty"`
}

func encodeBranchState(m BranchState) diskBranchState {
	adds := make([]diskOptionId, m.NumAdds())
	for i, a := range m.Adds() {
		adds[i] = encodeOptionId(a)
	}
	removes := make([]diskOptionId, m.NumRemoves())
	for i, r := range m.Removes() {
		removes[i] = encodeOptionId(r)
	}
	return diskBranchState{Adds: adds, Removes: removes}
}

func decodeBranchState(d diskBranchState) BranchState {
	adds := make([]optional.Option[plumbing.Id], len(d.Adds))
	for i, a := range d.Adds {
		adds[i] = decodeOptionId(a)
	}
	removes := make([]optional.Option[plumbing.Id], len(d.Removes))
	for i, r := range d.Removes {
		removes[i] = decodeOptionId(r)
	}
	return merge.New(adds, removes)
}

type diskRemoteBranch struct {
	Name    string          `json:"name"`
	Remote  string          `json:"remote"`
	Target  diskBranchState `json:"target"`
	Tracked bool            `json:"tracked,omitempty"`
}

type diskView struct {
	RootTree       string                      `json:"root_tree"`
	WCCommits      map[string]string           `json:"wc_commits,omitempty"`
	LocalBranches  map[string]diskBranchState  `json:"local_branches,omitempty"`
	RemoteBranches []diskRemoteBranch          `json:"remote_branches,omitempty"`
	Tags           map[string]diskBranchState  `json:"tags,omitempty"`
	GitRefs        map[string]string           `json:"git_refs,omitempty"`
	GitHead        diskOptionId                `json:"git_head"`
}

// Store is the on-disk home of the operation log: content-addressed
// operation and view files, a heads/ directory of current-frontier
// markers, and a lock file serializing reconciliation. Grounded on the
// write-temp-then-rename idiom in store/gitbackend/storage.go.
type Store struct {
	dir string
}

func Open(dir string) (*Store, error) {
	for _, sub := range []string{"operations", "views", "heads"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return nil, fmt.Errorf("oplog: create %s dir: %w", sub, err)
		}
	}
	return &Store{dir: dir}, nil
}

func (s *Store) lockPath() string { return filepath.Join(s.dir, "lock") }

func (s *Store) withLock(fn func() error) error {
	f, err := os.OpenFile(s.lockPath(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return plumbing.NewErrResourceLocked("oplog", s.dir)
		}
		return fmt.Errorf("oplog: acquire lock: %w", err)
	}
	defer func() {
		_ = f.Close()
		_ = os.Remove(s.lockPath())
	}()
	return fn()
}

func writeContentAddressed(dir string, data []byte) (plumbing.Id, error) {
	id := plumbing.HashBytes("oplog-entry", data)
	path := filepath.Join(dir, id.String())
	if _, err := os.Stat(path); err == nil {
		return id, nil
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return plumbing.ZeroId, fmt.Errorf("oplog: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return plumbing.ZeroId, fmt.Errorf("oplog: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return plumbing.ZeroId, fmt.Errorf("oplog: fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return plumbing.ZeroId, fmt.Errorf("oplog: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return plumbing.ZeroId, fmt.Errorf("oplog: rename into place: %w", err)
	}
	return id, nil
}

func (s *Store) WriteView(v *View) (plumbing.ViewId, error) {
	dv := diskView{
		RootTree:  v.RootTree.String(),
		WCCommits: map[string]string{},
		GitRefs:   map[string]string{},
		GitHead:   encodeOptionId(v.GitHead),
	}
	for ws, id := range v.WCCommits {
		dv.WCCommits[ws] = id.String()
	}
	for name, ref := range v.GitRefs {
		dv.GitRefs[name] = ref.String()
	}
	if len(v.LocalBranches) > 0 {
		dv.LocalBranches = make(map[string]diskBranchState, len(v.LocalBranches))
		for name, state := range v.LocalBranches {
			dv.LocalBranches[name] = encodeBranchState(state)
		}
	}
	if len(v.Tags) > 0 {
		dv.Tags = make(map[string]diskBranchState, len(v.Tags))
		for name, state := range v.Tags {
			dv.Tags[name] = encodeBranchState(state)
		}
	}
	for key, rb := range v.RemoteBranches {
		dv.RemoteBranches = append(dv.RemoteBranches, diskRemoteBranch{
			Name:    key.Name,
			Remote:  key.Remote,
			Target:  encodeBranchState(rb.Target),
			Tracked: rb.Tracked,
		})
	}
	data, err := json.Marshal(dv)
	if err != nil {
		return plumbing.ZeroId, fmt.Errorf("oplog: encode view: %w", err)
	}
	return writeContentAddressed(filepath.Join(s.dir, "views"), data)
}

func (s *Store) ReadView(id plumbing.ViewId) (*View, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, "views", id.String()))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, plumbing.NotFound(id)
		}
		return nil, plumbing.Backend("read view", err)
	}
	var dv diskView
	if err := json.Unmarshal(data, &dv); err != nil {
		return nil, fmt.Errorf("oplog: decode view %s: %w", id, err)
	}
	v := &View{
		RootTree:  plumbing.NewId(dv.RootTree),
		WCCommits: map[string]plumbing.CommitId{},
		GitRefs:   map[string]plumbing.CommitId{},
		GitHead:   decodeOptionId(dv.GitHead),
	}
	for ws, hex := range dv.WCCommits {
		v.WCCommits[ws] = plumbing.NewId(hex)
	}
	for name, hex := range dv.GitRefs {
		v.GitRefs[name] = plumbing.NewId(hex)
	}
	if len(dv.LocalBranches) > 0 {
		v.LocalBranches = make(map[string]BranchState, len(dv.LocalBranches))
		for name, state := range dv.LocalBranches {
			v.LocalBranches[name] = decodeBranchState(state)
		}
	}
	if len(dv.Tags) > 0 {
		v.Tags = make(map[string]BranchState, len(dv.Tags))
		for name, state := range dv.Tags {
			v.Tags[name] = decodeBranchState(state)
		}
	}
	for _, drb := range dv.RemoteBranches {
		if v.RemoteBranches == nil {
			v.RemoteBranches = make(map[RemoteBranchKey]RemoteBranch, len(dv.RemoteBranches))
		}
		v.RemoteBranches[RemoteBranchKey{Name: drb.Name, Remote: drb.Remote}] = RemoteBranch{
			Target:  decodeBranchState(drb.Target),
			Tracked: drb.Tracked,
		}
	}
	return v, nil
}

// stampProvenance fills in Hostname, Username, and Args when the caller
// left them unset, the same way a real operation log records who ran
// what and from where without requiring every call site to know it.
func stampProvenance(op *Operation) {
	if op.Hostname == "" {
		if h, err := os.Hostname(); err == nil {
			op.Hostname = h
		}
	}
	if op.Username == "" {
		if u, err := user.Current(); err == nil {
			op.Username = u.Username
		}
	}
	if op.Args == nil {
		op.Args = append([]string(nil), os.Args...)
	}
}

func (s *Store) WriteOperation(op *Operation) (plumbing.OpId, error) {
	parents := make([]string, len(op.Parents))
	for i, p := range op.Parents {
		parents[i] = p.String()
	}
	dop := diskOperation{
		ViewId:      op.ViewId.String(),
		Parents:     parents,
		Description: op.Description,
		Tags:        op.Tags,
		Start:       op.Start,
		End:         op.End,
		Hostname:    op.Hostname,
		Username:    op.Username,
		Args:        op.Args,
	}
	data, err := json.Marshal(dop)
	if err != nil {
		return plumbing.ZeroId, fmt.Errorf("oplog: encode operation: %w", err)
	}
	return writeContentAddressed(filepath.Join(s.dir, "operations"), data)
}

func (s *Store) ReadOperation(id plumbing.OpId) (*Operation, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, "operations", id.String()))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, plumbing.NotFound(id)
		}
		return nil, plumbing.Backend("read operation", err)
	}
	var dop diskOperation
	if err := json.Unmarshal(data, &dop); err != nil {
		return nil, fmt.Errorf("oplog: decode operation %s: %w", id, err)
	}
	parents := make([]plumbing.OpId, len(dop.Parents))
	for i, p := range dop.Parents {
		parents[i] = plumbing.NewId(p)
	}
	return &Operation{
		ViewId:      plumbing.NewId(dop.ViewId),
		Parents:     parents,
		Description: dop.Description,
		Tags:        dop.Tags,
		Start:       dop.Start,
		End:         dop.End,
		Hostname:    dop.Hostname,
		Username:    dop.Username,
		Args:        dop.Args,
	}, nil
}

// ListOperationIds enumerates every operation id this store has a file
// for, used by package opresolve to disambiguate hex prefixes.
func (s *Store) ListOperationIds() ([]plumbing.OpId, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, "operations"))
	if err != nil {
		return nil, fmt.Errorf("oplog: list operations: %w", err)
	}
	ids := make([]plumbing.OpId, 0, len(entries))
	for _, e := range entries {
		id, err := plumbing.ParseId(e.Name())
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Store) headsDir() string { return filepath.Join(s.dir, "heads") }

func (s *Store) Heads() ([]plumbing.OpId, error) {
	entries, err := os.ReadDir(s.headsDir())
	if err != nil {
		return nil, fmt.Errorf("oplog: list heads: %w", err)
	}
	ids := make([]plumbing.OpId, 0, len(entries))
	for _, e := range entries {
		id, err := plumbing.ParseId(e.Name())
		if err != nil {
			continue // stray non-id file; ignore rather than fail the whole read
		}
		if _, err := s.ReadOperation(id); err != nil {
			continue // marker whose operation file is missing: ignored per §4.8
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Publish writes op and its view, then atomically (per file) adds the
// new head marker and removes each parent's, per §4.8's three-step
// sequence. It does not itself resolve multiple heads into one; see
// Head. Hostname/Username/Args are stamped onto op first when the
// caller left them unset.
func (s *Store) Publish(op *Operation) (plumbing.OpId, error) {
	stampProvenance(op)
	id, err := s.WriteOperation(op)
	if err != nil {
		return plumbing.ZeroId, err
	}
	if err := os.WriteFile(filepath.Join(s.headsDir(), id.String()), nil, 0644); err != nil {
		return plumbing.ZeroId, fmt.Errorf("oplog: write head marker: %w", err)
	}
	for _, p := range op.Parents {
		_ = os.Remove(filepath.Join(s.headsDir(), p.String())) // best-effort, see §4.8
	}
	return id, nil
}
