package state

import (
	"fmt"
	"slices"
)

// Phase is the last stage a run completed successfully.
type Phase string

const (
	PhaseNone       Phase = ""
	PhasePlanned    Phase = "planned"
	PhaseBuilt      Phase = "built"
	PhaseTested     Phase = "tested"
	PhaseReviewed   Phase = "reviewed"
	PhaseDocumented Phase = "documented"
)

// String returns "uninitialized" for the zero phase.
func (p Phase) String() string {
	if p == PhaseNone {
		return "uninitialized"
	}

	return string(p)
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	_, ok := predecessors[p]

	return ok || p == PhaseNone
}

// predecessors lists the phases a run may be in when a stage producing
// the key phase starts. Re-running a completed stage is allowed so a
// failed chain can be resumed from any point.
var predecessors = map[Phase][]Phase{
	PhasePlanned:    {PhaseNone, PhasePlanned, PhaseBuilt, PhaseTested, PhaseReviewed, PhaseDocumented},
	PhaseBuilt:      {PhasePlanned, PhaseBuilt, PhaseTested, PhaseReviewed, PhaseDocumented},
	PhaseTested:     {PhaseBuilt, PhaseTested, PhaseReviewed, PhaseDocumented},
	PhaseReviewed:   {PhaseBuilt, PhaseTested, PhaseReviewed, PhaseDocumented},
	PhaseDocumented: {PhaseBuilt, PhaseTested, PhaseReviewed, PhaseDocumented},
}

// CanEnter reports whether a stage producing to may start from from.
func CanEnter(from, to Phase) bool {
	return slices.Contains(predecessors[to], from)
}

// Advance records that the stage producing to has completed.
func (s *WorkflowState) Advance(to Phase) error {
	if !CanEnter(s.Phase, to) {
		return fmt.Errorf("cannot move from %s to %s", s.Phase, to)
	}
	s.Phase = to

	return nil
}
