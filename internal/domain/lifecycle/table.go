// Package lifecycle holds the pieces shared by every status state machine:
// the transition table, entity kinds, actors and the clock.
package lifecycle

import (
	"fmt"

	"github.com/medtrip/service-lifecycle/pkg/domain"
)

// Table is a closed status vocabulary and the transitions allowed between its
// members. It is immutable after construction.
type Table[S ~string] struct {
	order []S
	next  map[S][]S
}

// NewTable builds a table. Every status must appear in order, and every
// target in next must itself be a known status; violations panic because the
// tables are package-level literals.
func NewTable[S ~string](order []S, next map[S][]S) *Table[S] {
	known := make(map[S]struct{}, len(order))
	for _, s := range order {
		known[s] = struct{}{}
	}
	if len(known) != len(next) {
		panic(fmt.Sprintf("lifecycle: table has %d statuses but %d transition rows", len(known), len(next)))
	}
	for from, targets := range next {
		if _, ok := known[from]; !ok {
			panic(fmt.Sprintf("lifecycle: unknown source status %q", from))
		}
		for _, to := range targets {
			if _, ok := known[to]; !ok {
				panic(fmt.Sprintf("lifecycle: unknown target status %q from %q", to, from))
			}
		}
	}
	return &Table[S]{order: order, next: next}
}

// IsValid reports whether s belongs to the vocabulary.
func (t *Table[S]) IsValid(s S) bool {
	_, ok := t.next[s]
	return ok
}

// Statuses returns the vocabulary in lifecycle order.
func (t *Table[S]) Statuses() []S {
	out := make([]S, len(t.order))
	copy(out, t.order)
	return out
}

// Allowed returns the statuses reachable in one step from s.
func (t *Table[S]) Allowed(s S) []S {
	targets := t.next[s]
	out := make([]S, len(targets))
	copy(out, targets)
	return out
}

// CanTransition reports whether from → to is listed in the table.
func (t *Table[S]) CanTransition(from, to S) bool {
	for _, target := range t.next[from] {
		if target == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s allows no further transitions. Unknown
// statuses are treated as terminal.
func (t *Table[S]) IsTerminal(s S) bool {
	return len(t.next[s]) == 0
}

// Check returns an InvalidTransition domain error unless from → to is allowed.
// A transition to the current status is always rejected.
func (t *Table[S]) Check(from, to S) error {
	if t.CanTransition(from, to) {
		return nil
	}
	allowed := t.Allowed(from)
	names := make([]string, len(allowed))
	for i, s := range allowed {
		names[i] = string(s)
	}
	return domain.NewInvalidTransitionError(string(from), string(to), names)
}
