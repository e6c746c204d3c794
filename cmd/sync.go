package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/prawko/prawko/internal/contentsync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch the latest question set into the local cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd, nil, nil)
		if err != nil {
			return err
		}
		defer e.Close()

		out := cmd.OutOrStdout()
		s := contentsync.New(e.worker, e.storage, e.content, e.store.KV(), e.network, e.log)
		report, err := s.Sync(cmd.Context(), func(p contentsync.Progress) {
			fmt.Fprintf(out, "%-10s %s\n", p.Stage, p.Message)
		})
		if err != nil {
			return fmt.Errorf("sync: %w", err)
		}

		if !report.Updated {
			fmt.Fprintf(out, "\nAlready up to date (%s)\n", displayVersion(report.Version))
			return nil
		}
		fmt.Fprintf(out, "\nUpdated %s -> %s: %d categories, %d questions\n",
			displayVersion(report.Previous), displayVersion(report.Version),
			report.Categories, report.Questions)
		if len(report.Removed) > 0 {
			fmt.Fprintf(out, "Dropped stale entries: %s\n", strings.Join(report.Removed, ", "))
		}
		return nil
	},
}

func displayVersion(v string) string {
	if v == "" {
		return "unversioned"
	}
	return v
}
