package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"semsql/internal/service/semantic"
	"semsql/internal/warehouse"
)

func newRunCmd(opts *globalOptions) *cobra.Command {
	var (
		in  queryInput
		dsn string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compile a query and execute it on DuckDB",
		Long:  "Compiles like 'compile' and executes the SQL against the DuckDB database at --dsn (default WAREHOUSE_DSN).",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Apply precedence: flag > env > profile
			if dsn == "" {
				dsn = os.Getenv("WAREHOUSE_DSN")
			}
			if dsn == "" {
				dsn = opts.prof.DSN
			}
			if dsn == "" {
				return fmt.Errorf("--dsn is required (or set WAREHOUSE_DSN)")
			}

			gq, err := in.load()
			if err != nil {
				return err
			}

			wh, err := warehouse.Open(cmd.Context(), dsn, opts.logger)
			if err != nil {
				return err
			}
			defer wh.Close() //nolint:errcheck

			svc := semantic.NewService(opts.logger)
			svc.SetWarehouse(wh)
			out, err := svc.Run(cmd.Context(), *gq)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if getOutputFormat(cmd) == "json" {
				return PrintJSON(w, map[string]interface{}{
					"sql":        out.Plan.SQL,
					"columns":    out.Result.Columns,
					"rows":       out.Result.Rows,
					"total_rows": out.Result.TotalRows,
				})
			}
			rows := make([][]string, len(out.Result.Rows))
			for i, r := range out.Result.Rows {
				cells := make([]string, len(r))
				for j, v := range r {
					cells[j] = formatCell(v)
				}
				rows[i] = cells
			}
			PrintTable(w, out.Result.Columns, rows)
			_, _ = fmt.Fprintf(w, "(%d row(s))\n", out.Result.TotalRows)
			return nil
		},
	}

	in.bind(cmd)
	cmd.Flags().StringVar(&dsn, "dsn", "", "DuckDB database path or DSN")

	return cmd
}
