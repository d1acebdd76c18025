package cmd

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dataloom-cli/internal/email"
	"github.com/KaramelBytes/dataloom-cli/internal/impute"
	"github.com/KaramelBytes/dataloom-cli/internal/ingest"
	"github.com/KaramelBytes/dataloom-cli/internal/table"
	"github.com/KaramelBytes/dataloom-cli/internal/utils"
)

// loadDocument reads a local path, an http(s) URL, or "-" for stdin.
func loadDocument(ctx context.Context, cmd *cobra.Command, src, sheet string) (*ingest.Document, error) {
	opt := ingestOptions(sheet)
	switch {
	case src == "-":
		return ingest.FromReader(ctx, "stdin", cmd.InOrStdin(), opt)
	case strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://"):
		return ingest.FromURL(ctx, src, opt)
	default:
		return ingest.FromFile(ctx, src, opt)
	}
}

// parseSteps reads --method values of the form column=method or
// column=method:value (value for custom and constant).
func parseSteps(specs []string) ([]impute.Step, error) {
	steps := make([]impute.Step, 0, len(specs))
	for _, arg := range specs {
		col, rest, ok := strings.Cut(arg, "=")
		col = strings.TrimSpace(col)
		if !ok || col == "" {
			return nil, fmt.Errorf("invalid --method %q (use column=method[:value])", arg)
		}
		name, value, hasValue := strings.Cut(rest, ":")
		step := impute.Step{Column: col}
		if strings.TrimSpace(name) != "" && !strings.EqualFold(strings.TrimSpace(name), "auto") {
			m, err := impute.ParseMethod(name)
			if err != nil {
				return nil, fmt.Errorf("--method %q: %w", arg, err)
			}
			step.Method = m
		}
		if hasValue {
			v := value
			step.Value = &v
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// emailConfig is the configured email settings with an optional threshold override.
func emailConfig(threshold int) *email.Config {
	c := cfg.Email
	if threshold >= 0 {
		c.SpamThreshold = threshold
	}
	return &c
}

// writeOutput prints body, or writes it to path when one is given.
func writeOutput(cmd *cobra.Command, path string, body []byte, what string) error {
	if path == "" {
		out := cmd.OutOrStdout()
		if _, err := out.Write(body); err != nil {
			return err
		}
		if !bytes.HasSuffix(body, []byte("\n")) {
			fmt.Fprintln(out)
		}
		return nil
	}
	if err := utils.SafeWriteFile(path, body); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s to %s\n", what, path)
	return nil
}

// exportCSV writes t as CSV to path.
func exportCSV(cmd *cobra.Command, path string, t *table.Table) error {
	var buf bytes.Buffer
	if err := t.WriteCSV(&buf); err != nil {
		return err
	}
	return writeOutput(cmd, path, buf.Bytes(), "table")
}
