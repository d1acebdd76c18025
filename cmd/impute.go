package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dataloom-cli/internal/impute"
	"github.com/KaramelBytes/dataloom-cli/internal/organize"
	"github.com/KaramelBytes/dataloom-cli/internal/pipeline"
)

var (
	impSheetName  string
	impMethods    []string
	impAuto       bool
	impExportPath string
)

var imputeCmd = &cobra.Command{
	Use:   "impute <file|url|->",
	Short: "Show missing values per column and optionally fill them",
	Long: `Without --method or --auto, lists missing counts and the suggested method per column.
Methods: mean, median, mode, forward_fill, backward_fill, interpolate, constant, delete, knn, custom.
Steps run in the order given; a failing step is reported and skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps, err := parseSteps(impMethods)
		if err != nil {
			return err
		}
		doc, err := loadDocument(cmd.Context(), cmd, args[0], impSheetName)
		if err != nil {
			return err
		}
		res, err := pipeline.Run(cmd.Context(), doc, pipeline.Options{
			Organize:   organize.Options{Email: emailConfig(-1)},
			Impute:     cfg.Impute,
			Steps:      steps,
			AutoImpute: impAuto,
			Session:    openSession(cmd),
			Logger:     logger,
		})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if res.Empty() {
			fmt.Fprintln(out, "Nothing to impute: input is empty")
			return nil
		}
		printMissing(out, res.Missing)
		if rep := res.Imputed; rep != nil {
			fmt.Fprintln(out)
			for _, o := range rep.Columns {
				if o.Err != nil {
					fmt.Fprintf(out, "✗ %s (%s): %s\n", o.Column, o.Applied, o.Error)
					continue
				}
				fmt.Fprintf(out, "✓ %s: %s filled %d", o.Column, o.Applied, o.Imputed)
				if o.RowsDropped > 0 {
					fmt.Fprintf(out, ", dropped %d rows", o.RowsDropped)
				}
				fmt.Fprintln(out)
			}
			fmt.Fprintf(out, "Quality: %.1f -> %.1f\n", res.Quality.Score, res.FinalQuality.Score)
		}
		if impExportPath != "" {
			return exportCSV(cmd, impExportPath, res.Final)
		}
		return nil
	},
}

func printMissing(w io.Writer, stats []impute.ColumnStats) {
	fmt.Fprintf(w, "%-24s %-12s %8s %8s  %s\n", "COLUMN", "KIND", "MISSING", "PCT", "SUGGESTED")
	for _, cs := range stats {
		fmt.Fprintf(w, "%-24s %-12s %8d %7.1f%%  %s\n", cs.Column, cs.Kind, cs.Missing, cs.MissingPct, cs.Suggested)
	}
}

func init() {
	rootCmd.AddCommand(imputeCmd)
	imputeCmd.Flags().StringVar(&impSheetName, "sheet-name", "", "XLSX: sheet name to read")
	imputeCmd.Flags().StringArrayVarP(&impMethods, "method", "m", nil, "imputation step column=method[:value] (repeatable)")
	imputeCmd.Flags().BoolVar(&impAuto, "auto", false, "apply the suggested method to every column with missing values")
	imputeCmd.Flags().StringVar(&impExportPath, "export", "", "write the imputed table as CSV")
}
