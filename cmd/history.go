package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past exam results, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd, nil, nil)
		if err != nil {
			return err
		}
		defer e.Close()

		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		if clear, _ := cmd.Flags().GetBool("clear"); clear {
			if err := e.history.Clear(ctx); err != nil {
				return err
			}
			fmt.Fprintln(out, "History cleared")
			return nil
		}

		results := e.history.Load(ctx)
		if len(results) == 0 {
			fmt.Fprintln(out, "No exams taken yet")
			return nil
		}
		slices.Reverse(results)

		fmt.Fprintf(out, "%-16s  %-6s  %9s  %5s  %10s  %s\n",
			"Date", "Cat", "Score", "Basic", "Specialist", "Result")
		fmt.Fprintln(out, strings.Repeat("─", 64))
		for _, r := range results {
			verdict := "failed"
			if r.Passed {
				verdict = "passed"
			}
			fmt.Fprintf(out, "%-16s  %-6s  %4d/%-4d  %5d  %10d  %s\n",
				r.Timestamp.Local().Format("2006-01-02 15:04"), r.Category,
				r.Score, r.MaxPoints, r.BasicScore, r.SpecialistScore, verdict)
		}
		fmt.Fprintf(out, "\n%d results\n", len(results))
		return nil
	},
}

func init() {
	historyCmd.Flags().Bool("clear", false, "Delete all stored results")
}
