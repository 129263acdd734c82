package config

import (
	"fmt"
	"time"
)

// StringArray accepts either a bare TOML string or an array of strings
// for the same key, so a one-entry sparse/ignore list doesn't force the
// author to write `sparse = ["only-one"]`.
type StringArray []string

func (a *StringArray) UnmarshalTOML(data any) error {
	switch v := data.(type) {
	case string:
		*a = []string{v}
	case []any:
		vv := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return fmt.Errorf("config: expected string in array, got %T", e)
			}
			vv = append(vv, s)
		}
		*a = vv
	default:
		return fmt.Errorf("config: unexpected type %T for string array", data)
	}
	return nil
}

const hour = time.Hour

// Duration accepts a Go duration string ("36h", "15m") in TOML, where a
// bare toml.Duration-less decode would otherwise require minutes as an
// integer.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}
