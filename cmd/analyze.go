package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dataloom-cli/internal/organize"
	"github.com/KaramelBytes/dataloom-cli/internal/pipeline"
)

var (
	anaOutputPath string
	anaFormat     string
	anaSheetName  string
	anaSortColumn string
	anaDescending bool
	anaAutoImpute bool
	anaMethods    []string
	anaExportPath string
	anaRedetect   bool
	anaMailbox    bool
	anaThreshold  int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file|url|->",
	Short: "Classify a dataset, organize it and report missing values and quality",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps, err := parseSteps(anaMethods)
		if err != nil {
			return err
		}
		doc, err := loadDocument(cmd.Context(), cmd, args[0], anaSheetName)
		if err != nil {
			return err
		}
		if anaMailbox {
			doc.Mailbox = true
		}
		res, err := pipeline.Run(cmd.Context(), doc, pipeline.Options{
			Organize: organize.Options{
				Descending: anaDescending,
				SortColumn: anaSortColumn,
				Email:      emailConfig(anaThreshold),
			},
			Impute:     cfg.Impute,
			Steps:      steps,
			AutoImpute: anaAutoImpute,
			Redetect:   anaRedetect,
			Session:    openSession(cmd),
			Logger:     logger,
		})
		if err != nil {
			return err
		}
		body, err := res.Render(anaFormat)
		if err != nil {
			return err
		}
		if err := writeOutput(cmd, anaOutputPath, body, "analysis"); err != nil {
			return err
		}
		if anaExportPath != "" {
			if res.Empty() {
				return fmt.Errorf("nothing to export: input is empty")
			}
			return exportCSV(cmd, anaExportPath, res.Final)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&anaOutputPath, "output", "o", "", "optional path to write the report")
	analyzeCmd.Flags().StringVarP(&anaFormat, "format", "f", "markdown", "report format: markdown|json|yaml")
	analyzeCmd.Flags().StringVar(&anaSheetName, "sheet-name", "", "XLSX: sheet name to analyze (default first sheet)")
	analyzeCmd.Flags().StringVar(&anaSortColumn, "sort", "", "cross-sectional data: column to sort by")
	analyzeCmd.Flags().BoolVar(&anaDescending, "descending", false, "sort time series and cross-sectional data descending")
	analyzeCmd.Flags().BoolVar(&anaAutoImpute, "impute", false, "apply the suggested imputation to every column with missing values")
	analyzeCmd.Flags().StringArrayVar(&anaMethods, "method", nil, "imputation step column=method[:value] (repeatable, applied in order)")
	analyzeCmd.Flags().StringVar(&anaExportPath, "export", "", "write the organized (and imputed) table as CSV")
	analyzeCmd.Flags().BoolVar(&anaRedetect, "redetect", false, "ignore the cached structure verdict")
	analyzeCmd.Flags().BoolVar(&anaMailbox, "mailbox", false, "treat the input as a mailbox export")
	analyzeCmd.Flags().IntVar(&anaThreshold, "spam-threshold", -1, "spam threshold override (default from config)")
}
