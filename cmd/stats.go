package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/prawko/prawko/internal/learn"
	"github.com/prawko/prawko/internal/timer"
)

var statsCmd = &cobra.Command{
	Use:   "stats [category]",
	Short: "Show exam results and learning progress per category",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd, nil, nil)
		if err != nil {
			return err
		}
		defer e.Close()

		ctx := cmd.Context()
		var cats []string
		if len(args) == 1 {
			cats = []string{strings.ToUpper(args[0])}
		} else if meta, err := e.fetchMeta(ctx); err == nil {
			for _, c := range meta.Categories {
				cats = append(cats, c.ID)
			}
		} else {
			e.log.Warn().Err(err).Msg("meta not loaded, listing categories from history")
			for _, r := range e.history.Load(ctx) {
				if !slices.Contains(cats, r.Category) {
					cats = append(cats, r.Category)
				}
			}
			slices.Sort(cats)
		}
		if len(cats) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No categories")
			return nil
		}

		progress := learn.NewProgress(e.store.KV(), timer.RealClock, e.log)
		now := timer.RealClock.Now()
		out := cmd.OutOrStdout()

		fmt.Fprintf(out, "%-6s  %8s  %6s  %4s  %4s  %5s  %5s  %5s  %4s\n",
			"Cat", "Attempts", "Passed", "Best", "Last", "Seen", "Right", "Wrong", "Due")
		fmt.Fprintln(out, strings.Repeat("─", 64))

		for _, c := range cats {
			st, _ := e.history.CategoryStats(ctx, c)
			var seen, right, wrong, due int
			for _, entry := range progress.Entries(ctx, c) {
				if !entry.Seen() {
					continue
				}
				seen++
				if entry.CorrectStreak > 0 {
					right++
				} else {
					wrong++
				}
				if entry.IsDue(now) {
					due++
				}
			}
			fmt.Fprintf(out, "%-6s  %8d  %6d  %4d  %4d  %5d  %5d  %5d  %4d\n",
				c, st.Attempts, st.Passed, st.BestScore, st.LastScore, seen, right, wrong, due)
		}
		return nil
	},
}
