package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/prawko/prawko/internal/offline"
)

var downloadCmd = &cobra.Command{
	Use:   "download <category>",
	Short: "Download every media file of a category for offline use",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		category := strings.ToUpper(args[0])

		e, err := openEnv(cmd, nil, nil)
		if err != nil {
			return err
		}
		defer e.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		out := cmd.OutOrStdout()
		res, err := e.offline.Download(ctx, category, func(p offline.Progress) {
			pct := 0
			if p.Total > 0 {
				pct = p.Completed * 100 / p.Total
			}
			fmt.Fprintf(out, "\r%s: %d/%d (%d%%)", category, p.Completed, p.Total, pct)
		})
		fmt.Fprintln(out)
		if err != nil {
			return fmt.Errorf("download %s: %w", category, err)
		}

		switch {
		case res.Cancelled:
			fmt.Fprintln(out, "Download cancelled")
		case res.Success:
			fmt.Fprintf(out, "%s is available offline (%d files)\n", category, res.Total)
		default:
			return fmt.Errorf("%d of %d files failed; run download again to retry", res.Failed, res.Total)
		}
		return nil
	},
}

var downloadedCmd = &cobra.Command{
	Use:   "downloaded",
	Short: "List categories available offline",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd, nil, nil)
		if err != nil {
			return err
		}
		defer e.Close()

		out := cmd.OutOrStdout()
		set := e.offline.Reconcile(cmd.Context())
		if len(set) == 0 {
			fmt.Fprintln(out, "No categories downloaded")
			return nil
		}

		cats := make([]string, 0, len(set))
		for c := range set {
			cats = append(cats, c)
		}
		slices.Sort(cats)
		for _, c := range cats {
			urls, _ := e.offline.Manifest(cmd.Context(), c)
			fmt.Fprintf(out, "%-6s %5d files\n", c, len(urls))
		}
		return nil
	},
}
