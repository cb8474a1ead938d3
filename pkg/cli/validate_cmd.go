package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"semsql/internal/declarative"
)

func newValidateCmd(_ *globalOptions) *cobra.Command {
	var (
		layerPath string
		queryPath string
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate semantic layer and query files offline",
		Long: "Checks a semantic layer for missing fields, duplicate names and malformed joins, and, with --query,\n" +
			"checks that every referenced metric, dimension and filter field is declared. All problems are reported.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				path string
				errs []declarative.ValidationError
			)
			switch {
			case queryPath != "":
				gq, err := declarative.LoadQueryFile(queryPath, layerPath)
				if err != nil {
					return fmt.Errorf("load query: %w", err)
				}
				path = queryPath
				errs = append(errs, declarative.ValidateLayer(&gq.SemanticLayer)...)
				errs = append(errs, declarative.ValidateQuery(&gq.Query, &gq.SemanticLayer)...)
			case layerPath != "":
				layer, err := declarative.LoadSemanticLayer(layerPath)
				if err != nil {
					return fmt.Errorf("load layer: %w", err)
				}
				path = layerPath
				errs = declarative.ValidateLayer(layer)
			default:
				return fmt.Errorf("one of --layer or --query is required")
			}

			out := cmd.OutOrStdout()
			if getOutputFormat(cmd) == "json" {
				if err := declarative.FormatJSON(out, path, errs); err != nil {
					return err
				}
			} else {
				declarative.FormatText(out, path, errs, !isColorTerminal(out))
			}
			if len(errs) > 0 {
				return &exitError{code: 1}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&layerPath, "layer", "", "Semantic layer file (.json, .yaml)")
	cmd.Flags().StringVar(&queryPath, "query", "", "Query file; checked against its embedded layer or --layer")

	return cmd
}
