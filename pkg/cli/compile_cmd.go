package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"semsql/internal/declarative"
	"semsql/internal/domain"
	"semsql/internal/service/semantic"
)

// queryInput is the --query/--layer pair shared by compile, explain and run.
type queryInput struct {
	queryPath string
	layerPath string
}

func (in *queryInput) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&in.queryPath, "query", "", "Generated query document or bare query file (.json, .yaml)")
	cmd.Flags().StringVar(&in.layerPath, "layer", "", "Semantic layer file; required for a bare query")
	_ = cmd.MarkFlagRequired("query")
}

func (in *queryInput) load() (*domain.GeneratedQuery, error) {
	return declarative.LoadQueryFile(in.queryPath, in.layerPath)
}

func (in *queryInput) paths() []string {
	if in.layerPath == "" {
		return []string{in.queryPath}
	}
	return []string{in.queryPath, in.layerPath}
}

func newCompileCmd(opts *globalOptions) *cobra.Command {
	var (
		in    queryInput
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile a query into SQL",
		Long: "Reads a generated query document (query_json + semantic_layer_json) or a bare query plus --layer,\n" +
			"and prints the compiled SQL. With --watch the files are recompiled whenever they change.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc := semantic.NewService(opts.logger)
			compileOnce := func(ctx context.Context) error {
				gq, err := in.load()
				if err != nil {
					return err
				}
				sql, err := svc.Compile(ctx, *gq)
				if err != nil {
					return err
				}
				return printSQL(cmd.OutOrStdout(), getOutputFormat(cmd), sql)
			}

			if !watch {
				return compileOnce(cmd.Context())
			}

			ctx := cmd.Context()
			if err := compileOnce(ctx); err != nil {
				reportWatchError(cmd.ErrOrStderr(), err)
			}
			opts.logger.Info("watching for changes", "paths", in.paths())
			return declarative.Watch(ctx, in.paths(), declarative.DefaultDebounce, opts.logger, func() {
				if err := compileOnce(ctx); err != nil {
					reportWatchError(cmd.ErrOrStderr(), err)
				}
			})
		},
	}

	in.bind(cmd)
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Recompile when the input files change")

	return cmd
}

func newExplainCmd(opts *globalOptions) *cobra.Command {
	var in queryInput

	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Show how a query compiles",
		Long:  "Prints the anchor table, join path and each clause of the compiled query.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gq, err := in.load()
			if err != nil {
				return err
			}
			plan, err := semantic.NewService(opts.logger).Explain(cmd.Context(), *gq)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return PrintJSON(cmd.OutOrStdout(), plan)
			}
			printPlan(cmd.OutOrStdout(), plan)
			return nil
		},
	}

	in.bind(cmd)
	return cmd
}

func printSQL(w io.Writer, format, sql string) error {
	if format == "json" {
		return PrintJSON(w, map[string]string{"sql": sql})
	}
	_, err := fmt.Fprintln(w, sql)
	return err
}

func printPlan(w io.Writer, plan *semantic.QueryPlan) {
	PrintDetail(w, map[string]interface{}{
		"anchor":   plan.Anchor,
		"tables":   plan.Tables,
		"select":   plan.SelectItems,
		"where":    plan.Where,
		"group_by": plan.GroupBy,
		"having":   plan.Having,
	})
	if len(plan.JoinPath) > 0 {
		_, _ = fmt.Fprintln(w)
		rows := make([][]string, len(plan.JoinPath))
		for i, j := range plan.JoinPath {
			rows[i] = []string{j.Table, j.One, j.Many, j.Predicate}
		}
		PrintTable(w, []string{"join", "one", "many", "on"}, rows)
	}
	_, _ = fmt.Fprintf(w, "\n%s\n", plan.SQL)
}

func reportWatchError(w io.Writer, err error) {
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
}
