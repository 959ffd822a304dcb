package display

import (
	"github.com/valksor/go-adw/internal/state"
)

// PhaseDisplay maps persisted phases to user-friendly names.
var PhaseDisplay = map[state.Phase]string{
	state.PhaseNone:       "New",
	state.PhasePlanned:    "Planned",
	state.PhaseBuilt:      "Built",
	state.PhaseTested:     "Tested",
	state.PhaseReviewed:   "Reviewed",
	state.PhaseDocumented: "Documented",
}

// PhaseDescription says what the run has produced so far.
var PhaseDescription = map[state.Phase]string{
	state.PhaseNone:       "No stage has completed yet",
	state.PhasePlanned:    "Plan committed on the issue branch",
	state.PhaseBuilt:      "Plan implemented",
	state.PhaseTested:     "Test suite passing",
	state.PhaseReviewed:   "Implementation reviewed against the plan",
	state.PhaseDocumented: "Documentation written",
}

// FormatPhase returns the display name of p, or p itself when unknown.
func FormatPhase(p state.Phase) string {
	if name, ok := PhaseDisplay[p]; ok {
		return name
	}

	return string(p)
}

// FormatPhaseColored returns the colored display name of p.
func FormatPhaseColored(p state.Phase) string {
	return ColorPhase(p, FormatPhase(p))
}

// NextStepsFor suggests the commands that continue a run.
func NextStepsFor(st *state.WorkflowState) []NextStep {
	n := st.IssueNumber
	if n == "" {
		n = "<issue-number>"
	}
	cmd := func(stage string) string {
		return "adw " + stage + " " + n + " " + st.ADWID
	}

	switch st.Phase {
	case state.PhaseNone:
		return []NextStep{{Command: cmd("plan"), Description: "Plan the issue"}}
	case state.PhasePlanned:
		return []NextStep{{Command: cmd("build"), Description: "Implement the plan"}}
	case state.PhaseBuilt:
		return []NextStep{
			{Command: cmd("test"), Description: "Run and fix the test suite"},
			{Command: cmd("review"), Description: "Review against the plan"},
		}
	case state.PhaseTested:
		return []NextStep{{Command: cmd("review"), Description: "Review against the plan"}}
	case state.PhaseReviewed:
		return []NextStep{{Command: cmd("document"), Description: "Write feature documentation"}}
	default:
		return nil
	}
}
