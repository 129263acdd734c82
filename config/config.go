// Package config implements the engine's layered TOML configuration:
// system, user-global, and per-repository files overwritten in that
// order, the way modules/zeta/config layers its own zeta.toml files.
package config

import (
	"fmt"

	"github.com/sigilvc/sigil/conflict"
)

// ErrBadConfigKey reports a config key that is not "section.field"
// shaped.
type ErrBadConfigKey struct{ key string }

func (err *ErrBadConfigKey) Error() string {
	return fmt.Sprintf("bad config key %q", err.key)
}

func IsErrBadConfigKey(err error) bool {
	_, ok := err.(*ErrBadConfigKey)
	return ok
}

func overwrite(a, b string) string {
	if len(b) != 0 {
		return b
	}
	return a
}

// User identifies the author of commits and operations written by this
// engine instance.
type User struct {
	Name  string `toml:"name,omitempty"`
	Email string `toml:"email,omitempty"`
}

func (u *User) Empty() bool { return u == nil || len(u.Name) == 0 || len(u.Email) == 0 }

func (u *User) Overwrite(o *User) {
	u.Name = overwrite(u.Name, o.Name)
	u.Email = overwrite(u.Email, o.Email)
}

// Core controls where the engine's stores live on disk and how large
// their in-memory caches are allowed to grow.
type Core struct {
	ObjectsDir      string      `toml:"objectsDir,omitempty"`
	KVTableDir      string      `toml:"kvtableDir,omitempty"`
	OplogDir        string      `toml:"oplogDir,omitempty"`
	CacheMaxCost    int64       `toml:"cacheMaxCost,omitzero"`
	SparseDirs      StringArray `toml:"sparse,omitempty"`
	ConcurrentGoros int         `toml:"concurrency,omitzero"`
}

func (c *Core) Overwrite(o *Core) {
	c.ObjectsDir = overwrite(c.ObjectsDir, o.ObjectsDir)
	c.KVTableDir = overwrite(c.KVTableDir, o.KVTableDir)
	c.OplogDir = overwrite(c.OplogDir, o.OplogDir)
	if o.CacheMaxCost > 0 {
		c.CacheMaxCost = o.CacheMaxCost
	}
	if o.ConcurrentGoros > 0 {
		c.ConcurrentGoros = o.ConcurrentGoros
	}
	if len(o.SparseDirs) != 0 {
		c.SparseDirs = o.SparseDirs
	}
}

// Merge controls which textual conflict-marker style (C3) new unresolved
// conflicts are materialized in.
type Merge struct {
	ConflictStyle string `toml:"conflictStyle,omitempty"`
}

func (m *Merge) Overwrite(o *Merge) {
	m.ConflictStyle = overwrite(m.ConflictStyle, o.ConflictStyle)
}

var conflictStyles = map[string]conflict.Style{
	"diff":     conflict.StyleDiff,
	"snapshot": conflict.StyleSnapshot,
	"git":      conflict.StyleGit,
	"diff3":    conflict.StyleDiff3,
}

// Style resolves the configured conflict style name, defaulting to
// StyleDiff (which, like StyleSnapshot, is defined for any arity) when
// unset.
func (m Merge) Style() (conflict.Style, error) {
	if m.ConflictStyle == "" {
		return conflict.StyleDiff, nil
	}
	style, ok := conflictStyles[m.ConflictStyle]
	if !ok {
		return 0, fmt.Errorf("config: unknown merge.conflictStyle %q", m.ConflictStyle)
	}
	return style, nil
}

// Gc controls how aggressively Store.Gc (C8) reclaims unreachable
// operations and views.
type Gc struct {
	MaxAgeRaw Duration `toml:"maxAge,omitempty"`
}

const defaultGcMaxAge = 14 * 24 // hours, i.e. 14 days

func (g Gc) MaxAge() Duration {
	if g.MaxAgeRaw.Duration <= 0 {
		return Duration{Duration: defaultGcMaxAge * hour}
	}
	return g.MaxAgeRaw
}

func (g *Gc) Overwrite(o *Gc) {
	if o.MaxAgeRaw.Duration > 0 {
		g.MaxAgeRaw = o.MaxAgeRaw
	}
}

type Config struct {
	Core  Core  `toml:"core,omitempty"`
	User  User  `toml:"user,omitempty"`
	Merge Merge `toml:"merge,omitempty"`
	Gc    Gc    `toml:"gc,omitempty"`
}

// Overwrite applies co on top of c, the same layering direction the
// teacher's own Config.Overwrite uses: c starts as the less specific
// (system/global) config, co is the more specific (repository) one.
func (c *Config) Overwrite(co *Config) {
	c.Core.Overwrite(&co.Core)
	c.User.Overwrite(&co.User)
	c.Merge.Overwrite(&co.Merge)
	c.Gc.Overwrite(&co.Gc)
}
