package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/prawko/prawko/internal/learn"
	"github.com/prawko/prawko/internal/timer"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset learner data",
	Long:  "Forget learning progress, queue modes and exam history. Downloaded media stays cached.",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			fmt.Fprint(out, "This erases all progress and exam history. Type \"yes\" to continue: ")
			line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if strings.TrimSpace(strings.ToLower(line)) != "yes" {
				fmt.Fprintln(out, "Aborted")
				return nil
			}
		}

		e, err := openEnv(cmd, nil, nil)
		if err != nil {
			return err
		}
		defer e.Close()

		ctx := cmd.Context()
		kv := e.store.KV()
		if err := learn.NewProgress(kv, timer.RealClock, e.log).Reset(ctx); err != nil {
			return err
		}
		if err := learn.NewModes(kv, e.log).Reset(ctx); err != nil {
			return fmt.Errorf("reset queue modes: %w", err)
		}
		if err := e.history.Clear(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "Learner data reset")
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
}
