package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/valksor/go-adw/internal/pipeline"
	"github.com/valksor/go-adw/internal/state"
)

// FormatStateInfo renders a run for humans. Empty fields are left out.
func FormatStateInfo(st *state.WorkflowState) string {
	var sb strings.Builder
	f := NewFormatter().SetIndent(1)

	fmt.Fprintf(&sb, "Run: %s\n", Bold(st.ADWID))

	phase := FormatPhaseColored(st.Phase)
	if desc := PhaseDescription[st.Phase]; desc != "" {
		phase += " - " + Muted(desc)
	}
	sb.WriteString(f.KeyValue("Phase", phase))

	rows := []struct{ key, value string }{
		{"Issue", st.IssueNumber},
		{"Class", st.IssueClass.Name()},
		{"Branch", st.BranchName},
		{"Plan", st.PlanFile},
		{"Spec", st.SpecFile},
		{"Patch", st.PatchFile},
		{"Docs", st.DocumentationPath},
		{"PR", st.PRURL},
	}
	for _, r := range rows {
		if r.value != "" {
			sb.WriteString(f.KeyValue(r.key, r.value))
		}
	}
	if len(st.ReviewScreenshots) > 0 {
		sb.WriteString(f.KeyValue("Screenshots", fmt.Sprintf("%d", len(st.ReviewScreenshots))))
		sb.WriteString(NewFormatter().SetIndent(2).List(st.ReviewScreenshots))
	}

	return sb.String()
}

// FormatHistory renders the save log of a run.
func FormatHistory(entries []state.HistoryEntry) string {
	if len(entries) == 0 {
		return Muted("No saves recorded") + "\n"
	}

	f := NewFormatter()
	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{f.Timestamp(e.Time), e.Stage, FormatPhase(e.Phase), Dim(f.Truncate(e.Digest, 12))}
	}

	return f.Table([]string{"TIME", "STAGE", "PHASE", "DIGEST"}, rows)
}

// FormatVariants lists the available pipelines.
func FormatVariants(variants []pipeline.Variant) string {
	rows := make([][]string, len(variants))
	for i, v := range variants {
		rows[i] = []string{v.Name, v.Stages(), v.Description}
	}

	return NewFormatter().Table([]string{"PIPELINE", "STAGES", "DESCRIPTION"}, rows)
}

// NextStep represents a single next step suggestion.
type NextStep struct {
	Command     string
	Description string
}

// FormatNextSteps formats the "Next steps:" section consistently.
func FormatNextSteps(steps []NextStep) string {
	if len(steps) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(Muted("Next steps:"))
	sb.WriteString("\n")

	maxLen := 0
	for _, s := range steps {
		if len(s.Command) > maxLen {
			maxLen = len(s.Command)
		}
	}

	for _, s := range steps {
		fmt.Fprintf(&sb, "  %s%s  %s\n",
			Cyan(s.Command),
			strings.Repeat(" ", maxLen-len(s.Command)),
			Muted("- "+s.Description),
		)
	}

	return sb.String()
}

// PrintNextSteps writes the next steps for st to w.
func PrintNextSteps(w io.Writer, st *state.WorkflowState) {
	fmt.Fprint(w, FormatNextSteps(NextStepsFor(st)))
}
