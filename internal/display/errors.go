package display

import (
	"errors"
	"fmt"
	"strings"

	"github.com/valksor/go-adw/internal/config"
	"github.com/valksor/go-adw/internal/pipeline"
	"github.com/valksor/go-adw/internal/state"
	"github.com/valksor/go-adw/internal/workflow"
)

// Suggestion represents a suggested action for error recovery.
type Suggestion struct {
	Command     string
	Description string
}

// ErrorWithSuggestions formats an error message with actionable suggestions.
func ErrorWithSuggestions(message string, suggestions []Suggestion) string {
	var sb strings.Builder

	sb.WriteString(ErrorMsg("%s", message))
	sb.WriteString("\n")

	if len(suggestions) > 0 {
		sb.WriteString("\n")
		sb.WriteString(Muted("Suggested actions:"))
		sb.WriteString("\n")
		for _, s := range suggestions {
			fmt.Fprintf(&sb, "  %s %s - %s\n", Muted("•"), Cyan(s.Command), s.Description)
		}
	}

	return sb.String()
}

// FormatError renders err for the terminal with the commands that recover
// from it.
func FormatError(err error) string {
	return ErrorWithSuggestions(err.Error(), SuggestionsFor(err))
}

// SuggestionsFor derives recovery commands from err.
func SuggestionsFor(err error) []Suggestion {
	var out []Suggestion

	var stepErr *pipeline.StepError
	var stageErr *workflow.StageError
	switch {
	case errors.As(err, &stepErr):
		out = append(out, Suggestion{
			Command:     fmt.Sprintf("adw %s <issue-number> %s", stepErr.Stage, stepErr.ADWID),
			Description: "Resume from the failed stage",
		})
	case errors.As(err, &stageErr) && stageErr.ADWID != "":
		if errors.Is(err, state.ErrNotFound) {
			out = append(out, Suggestion{
				Command:     "adw plan <issue-number> " + stageErr.ADWID,
				Description: "Create the run state first",
			})
		} else {
			out = append(out, Suggestion{
				Command:     fmt.Sprintf("adw %s <issue-number> %s", strings.TrimPrefix(stageErr.Stage, "adw_"), stageErr.ADWID),
				Description: "Re-run the stage",
			})
		}
		out = append(out, Suggestion{
			Command:     "adw state " + stageErr.ADWID,
			Description: "Inspect the saved state",
		})
	}

	if errors.Is(err, config.ErrMissingExecutable) {
		out = append(out, Suggestion{
			Command:     "export " + config.EnvAgentPath + "=$(which claude)",
			Description: "Point adw at the agent CLI",
		})
	}

	return out
}
