package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"semsql/internal/app"
	"semsql/internal/config"
	"semsql/internal/service/generator"
)

func newGenerateCmd(opts *globalOptions) *cobra.Command {
	var (
		model      string
		cachePath  string
		schemaFile string
	)

	cmd := &cobra.Command{
		Use:   "generate <question> [question...]",
		Short: "Turn questions into SQL via the model and the compiler",
		Long: "Looks each question up in the response cache under every candidate model, asks the model on a miss\n" +
			"(paced and retried), and compiles the generated query. The model endpoint is configured with\n" +
			"LLM_BASE_URL, LLM_API_KEY and LLM_MODEL; without a key only cached answers are served.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(".env"); err != nil {
				opts.logger.Warn("could not load .env", "error", err)
			}
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			applyString(&cfg.LLM.Model, model, opts.prof.Model)
			applyString(&cfg.CachePath, cachePath, opts.prof.CachePath)
			applyString(&cfg.SchemaFile, schemaFile, opts.prof.SchemaFile)
			// Execution is not needed to answer questions.
			cfg.WarehouseDSN = ""

			a, err := app.New(cmd.Context(), app.Deps{Cfg: cfg, Logger: opts.logger})
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				ans, err := a.Pipeline.Answer(cmd.Context(), generator.Question{Text: args[0]})
				if err != nil {
					return err
				}
				if getOutputFormat(cmd) == "json" {
					return PrintJSON(out, ans)
				}
				opts.logger.Info("answered", "model", ans.Model, "cached", ans.Cached)
				_, _ = fmt.Fprintln(out, ans.SQL)
				return nil
			}

			questions := make([]generator.Question, len(args))
			for i, q := range args {
				questions[i] = generator.Question{ID: strconv.Itoa(i + 1), Text: q}
			}
			results, err := a.Pipeline.AnswerAll(cmd.Context(), questions)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				if err := PrintJSON(out, results); err != nil {
					return err
				}
			} else {
				printBatch(out, results)
			}
			for _, r := range results {
				if r.Error != "" {
					return &exitError{code: 1}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "Model to ask on a cache miss (default LLM_MODEL)")
	cmd.Flags().StringVar(&cachePath, "cache", "", "Response cache file (default CACHE_PATH)")
	cmd.Flags().StringVar(&schemaFile, "schema", "", "Table description given to the model (default SCHEMA_FILE)")

	return cmd
}

// applyString sets *dst to the flag value, else the profile value, keeping
// the environment value when both are empty.
func applyString(dst *string, flag, profile string) {
	switch {
	case flag != "":
		*dst = flag
	case profile != "":
		*dst = profile
	}
}

func printBatch(w io.Writer, results []generator.BatchResult) {
	rows := make([][]string, len(results))
	for i, r := range results {
		row := []string{r.QuestionID, strconv.Itoa(r.Status), "", "", r.Error}
		if r.Answer != nil {
			row[2] = r.Answer.Model
			row[3] = strconv.FormatBool(r.Answer.Cached)
			row[4] = strings.ReplaceAll(r.Answer.SQL, "\n", " ")
		}
		rows[i] = row
	}
	PrintTable(w, []string{"id", "status", "model", "cached", "sql"}, rows)
}
