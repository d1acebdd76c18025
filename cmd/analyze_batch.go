package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/dataloom-cli/internal/organize"
	"github.com/KaramelBytes/dataloom-cli/internal/pipeline"
)

var (
	abOutputDir  string
	abFormat     string
	abSheetName  string
	abAutoImpute bool
	abJobs       int
	abQuiet      bool
)

type batchItem struct {
	path    string
	outFile string
	body    []byte
	err     error
}

var analyzeBatchCmd = &cobra.Command{
	Use:   "analyze-batch <files...>",
	Short: "Analyze multiple files concurrently, one report per file",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files := expandInputs(args)
		if len(files) == 0 {
			return fmt.Errorf("no input files matched")
		}
		ext, err := formatExt(abFormat)
		if err != nil {
			return err
		}
		items := make([]batchItem, len(files))
		taken := map[string]struct{}{}
		for i, f := range files {
			items[i].path = f
			if abOutputDir != "" {
				items[i].outFile = uniqueOutFile(abOutputDir, f, ext, taken)
			}
		}
		if abOutputDir != "" {
			if err := os.MkdirAll(abOutputDir, 0o755); err != nil {
				return err
			}
		}

		session := openSession(cmd)
		jobs := abJobs
		if jobs <= 0 {
			jobs = runtime.NumCPU()
		}
		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(jobs)
		for i := range items {
			it := &items[i]
			g.Go(func() error {
				doc, err := loadDocument(ctx, cmd, it.path, abSheetName)
				if err != nil {
					it.err = err
					return nil
				}
				res, err := pipeline.Run(ctx, doc, pipeline.Options{
					Organize:   organize.Options{Email: emailConfig(-1)},
					Impute:     cfg.Impute,
					AutoImpute: abAutoImpute,
					Session:    session,
					Logger:     logger.With(zap.String("file", it.path)),
				})
				if err != nil {
					it.err = err
					return nil
				}
				it.body, it.err = res.Render(abFormat)
				return ctx.Err()
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		failed := 0
		out := cmd.OutOrStdout()
		for i, it := range items {
			if !abQuiet {
				fmt.Fprintf(out, "[%d/%d] %s\n", i+1, len(items), filepath.Base(it.path))
			}
			if it.err != nil {
				failed++
				fmt.Fprintf(cmd.ErrOrStderr(), "✗ %s: %v\n", it.path, it.err)
				continue
			}
			if it.outFile != "" {
				if err := os.WriteFile(it.outFile, it.body, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", it.outFile, err)
				}
				if !abQuiet {
					fmt.Fprintf(out, "✓ Wrote %s\n", it.outFile)
				}
				continue
			}
			if !abQuiet {
				fmt.Fprintln(out, string(it.body))
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, len(items))
		}
		return nil
	},
}

// expandInputs resolves globs, keeps literal paths that exist, and
// removes duplicates.
func expandInputs(args []string) []string {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			// treat as literal path if exists
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files
}

func formatExt(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "markdown", "md":
		return ".summary.md", nil
	case "json":
		return ".summary.json", nil
	case "yaml", "yml":
		return ".summary.yaml", nil
	default:
		return "", fmt.Errorf("unsupported --format: %s (use markdown|json|yaml)", format)
	}
}

// uniqueOutFile picks <base><ext> in dir, adding __2, __3... when the name is
// taken on disk or by an earlier input of the same batch.
func uniqueOutFile(dir, path, ext string, taken map[string]struct{}) string {
	base := filepath.Base(path)
	safe := strings.TrimSuffix(base, filepath.Ext(base))
	cand := filepath.Join(dir, safe+ext)
	for idx := 2; ; idx++ {
		_, used := taken[cand]
		_, statErr := os.Stat(cand)
		if !used && os.IsNotExist(statErr) {
			break
		}
		cand = filepath.Join(dir, fmt.Sprintf("%s__%d%s", safe, idx, ext))
	}
	taken[cand] = struct{}{}
	return cand
}

func init() {
	rootCmd.AddCommand(analyzeBatchCmd)
	analyzeBatchCmd.Flags().StringVarP(&abOutputDir, "output-dir", "o", "", "write one report per input into this directory")
	analyzeBatchCmd.Flags().StringVarP(&abFormat, "format", "f", "markdown", "report format: markdown|json|yaml")
	analyzeBatchCmd.Flags().StringVar(&abSheetName, "sheet-name", "", "XLSX: sheet name to analyze")
	analyzeBatchCmd.Flags().BoolVar(&abAutoImpute, "impute", false, "apply suggested imputation in every report")
	analyzeBatchCmd.Flags().IntVarP(&abJobs, "jobs", "j", 0, "files processed concurrently (default: number of CPUs)")
	analyzeBatchCmd.Flags().BoolVar(&abQuiet, "quiet", false, "suppress progress and non-essential output")
}
