package matching

import (
	"fmt"
	"slices"
	"strings"

	"github.com/khanglvm/posematch/internal/posedb"
)

// InterruptMode controls when the playing selection is abandoned for a
// fresh search.
type InterruptMode int

const (
	DoNotInterrupt InterruptMode = iota
	InterruptOnDatabaseChange
	InterruptOnDatabaseChangeAndInvalidate
	ForceInterrupt
	ForceInterruptAndInvalidate
)

var interruptModeNames = []string{
	"do_not_interrupt",
	"interrupt_on_database_change",
	"interrupt_on_database_change_and_invalidate",
	"force_interrupt",
	"force_interrupt_and_invalidate",
}

func (m InterruptMode) String() string {
	if m < 0 || int(m) >= len(interruptModeNames) {
		return fmt.Sprintf("InterruptMode(%d)", int(m))
	}
	return interruptModeNames[m]
}

// ParseInterruptMode parses the names produced by String. Dashes may be
// used in place of underscores.
func ParseInterruptMode(s string) (InterruptMode, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	if name == "" {
		return DoNotInterrupt, nil
	}
	for i, n := range interruptModeNames {
		if n == name {
			return InterruptMode(i), nil
		}
	}
	return DoNotInterrupt, fmt.Errorf("unknown interrupt mode %q (valid: %s)", s, strings.Join(interruptModeNames, ", "))
}

// EvaluateInterrupt decides whether the next search must ignore the
// continuing pose (forceInterrupt) and whether the current result must be
// dropped before anything else happens (invalidate).
//
// The database-change modes only trigger when there is a current database
// and it is not among requested.
func EvaluateInterrupt(mode InterruptMode, current *posedb.Database, requested []*posedb.Database) (forceInterrupt, invalidate bool) {
	changed := current != nil && !slices.Contains(requested, current)

	switch mode {
	case DoNotInterrupt:
		return false, false
	case InterruptOnDatabaseChange:
		return changed, false
	case InterruptOnDatabaseChangeAndInvalidate:
		return changed, changed
	case ForceInterrupt:
		return true, false
	case ForceInterruptAndInvalidate:
		return true, true
	}
	posedb.Check(false, "invalid interrupt mode %d", int(mode))
	return false, false
}
