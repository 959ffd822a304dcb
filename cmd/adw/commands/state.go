package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/valksor/go-adw/internal/display"
)

var (
	stateJSON    bool
	stateHistory bool
)

var stateCmd = &cobra.Command{
	Use:     "state <adw-id>",
	Short:   "Show the persisted state of a run",
	GroupID: "info",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := openStore()
		st, err := store.Load(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		switch {
		case stateJSON:
			return st.ToStdout(out)
		case stateHistory:
			entries, err := store.History(st.ADWID)
			if err != nil {
				return err
			}
			fmt.Fprint(out, display.FormatHistory(entries))
		default:
			fmt.Fprint(out, display.FormatStateInfo(st))
			display.PrintNextSteps(out, st)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(stateCmd)

	stateCmd.Flags().BoolVar(&stateJSON, "json", false, "Print the raw state JSON")
	stateCmd.Flags().BoolVar(&stateHistory, "history", false, "Show the saved state transitions")
	stateCmd.MarkFlagsMutuallyExclusive("json", "history")
}
