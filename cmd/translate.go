package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/prawko/prawko/internal/llm"
	"github.com/prawko/prawko/internal/logging"
	"github.com/prawko/prawko/internal/translate"
)

var translateCmd = &cobra.Command{
	Use:   "translate <input>... <output>",
	Short: "Machine-translate question texts with an LLM provider",
	Long: `Translate question texts and answer options from category payloads
(files or directories) into a JSON map keyed by question id. Existing
translations in the output file are kept, so an interrupted run resumes
where it stopped.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		log := logging.Setup(cfg.LogLevel, cfg.LogFormat, nil)

		inputs, out := args[:len(args)-1], args[len(args)-1]
		questions, err := translate.LoadQuestions(inputs...)
		if err != nil {
			return err
		}

		llmCfg := llm.ConfigFromEnv()
		if p, _ := cmd.Flags().GetString("provider"); p != "" {
			llmCfg.Provider = p
		} else if llmCfg.Validate() != nil {
			if discovered, ok := llm.DiscoverConfig(); ok {
				llmCfg = discovered
			}
		}
		if err := llmCfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		provider, err := llm.NewProvider(ctx, llmCfg, log)
		if err != nil {
			return err
		}

		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")
		batch, _ := cmd.Flags().GetInt("batch")
		t := translate.New(translate.Options{
			Provider:  provider,
			From:      from,
			To:        to,
			BatchSize: batch,
			Log:       log,
		})

		w := cmd.OutOrStdout()
		report, err := t.Run(ctx, questions, out, func(p translate.Progress) {
			fmt.Fprintf(w, "\rTranslated %d/%d", p.Done, p.Total)
		})
		fmt.Fprintln(w)
		if report != nil {
			fmt.Fprintf(w, "%d questions, %d strings sent, %d already done, %d failed\n",
				report.Questions, report.Items, report.Skipped, report.Failed)
			fmt.Fprintf(w, "Tokens: %d in / %d out", report.Usage.InputTokens, report.Usage.OutputTokens)
			if report.CostUSD > 0 {
				fmt.Fprintf(w, " (~$%.4f)", report.CostUSD)
			}
			fmt.Fprintln(w)
		}
		return err
	},
}

func init() {
	translateCmd.Flags().String("from", "Polish", "Source language")
	translateCmd.Flags().String("to", "English", "Target language")
	translateCmd.Flags().Int("batch", translate.DefaultBatchSize, "Strings per LLM request")
	translateCmd.Flags().String("provider", "", "LLM provider: anthropic, openai, openrouter or gemini")
}
