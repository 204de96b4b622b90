package history

import "fmt"

// VerifyChain checks that entries, ordered oldest first, describe one
// unbroken path: the first entry is a creation, each entry starts where the
// previous one ended, and sequences strictly increase.
func VerifyChain(entries []*Entry) error {
	for i, e := range entries {
		if i == 0 {
			if !e.IsCreation() {
				return fmt.Errorf("history starts at %s, not at creation", e.PreviousStatus())
			}
			continue
		}

		prev := entries[i-1]
		if e.PreviousStatus() != prev.NewStatus() {
			return fmt.Errorf("entry %d starts at %s but entry %d ended at %s",
				e.Sequence(), e.PreviousStatus(), prev.Sequence(), prev.NewStatus())
		}
		if e.Sequence() <= prev.Sequence() {
			return fmt.Errorf("sequence %d does not follow %d", e.Sequence(), prev.Sequence())
		}
		if e.EntityID() != prev.EntityID() || e.EntityType() != prev.EntityType() {
			return fmt.Errorf("entry %d belongs to a different entity", e.Sequence())
		}
	}
	return nil
}
