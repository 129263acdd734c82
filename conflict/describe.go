package conflict

import (
	"fmt"

	"github.com/sigilvc/sigil/store"
)

// Describe renders a one-line human-readable summary of a conflict
// object, for callers that list conflicted paths without materializing
// full content (e.g. a status view).
func Describe(c *store.Conflict) string {
	sides := len(c.Adds)
	word := "sides"
	if sides == 1 {
		word = "side"
	}
	return fmt.Sprintf("%d %s, %d removed", sides, word, len(c.Removes))
}
