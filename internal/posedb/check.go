package posedb

import (
	"fmt"
	"log"
)

// Check reports whether cond holds. A failed check is a programming error:
// builds tagged posedebug panic, other builds log it and let the caller
// take its safe fallback.
func Check(cond bool, format string, args ...any) bool {
	if cond {
		return true
	}
	msg := fmt.Sprintf(format, args...)
	if debugAssertions {
		panic("posedb: invariant violated: " + msg)
	}
	log.Printf("Error: invariant violated: %s", msg)
	return false
}
