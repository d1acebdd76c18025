package pipeline

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/dataloom-cli/internal/analysis"
	"github.com/KaramelBytes/dataloom-cli/internal/impute"
	"github.com/KaramelBytes/dataloom-cli/internal/organize"
	"github.com/KaramelBytes/dataloom-cli/internal/structure"
	"github.com/KaramelBytes/dataloom-cli/internal/utils"
)

// SampleRows is how many rows of the final table the Markdown report shows.
const SampleRows = 5

// Summary is the serializable view of a Result.
type Summary struct {
	RunID         string                   `json:"run_id" yaml:"run_id"`
	Source        string                   `json:"source,omitempty" yaml:"source,omitempty"`
	Format        string                   `json:"format,omitempty" yaml:"format,omitempty"`
	Rows          int                      `json:"rows" yaml:"rows"`
	Columns       int                      `json:"columns" yaml:"columns"`
	Delimiter     string                   `json:"delimiter" yaml:"delimiter"`
	Degraded      bool                     `json:"degraded,omitempty" yaml:"degraded,omitempty"`
	Verdict       structure.Verdict        `json:"verdict" yaml:"verdict"`
	VerdictCached bool                     `json:"verdict_cached,omitempty" yaml:"verdict_cached,omitempty"`
	Profiles      []analysis.ColumnProfile `json:"profiles" yaml:"profiles"`
	Organize      *organize.Result         `json:"organize,omitempty" yaml:"organize,omitempty"`
	OrganizeError string                   `json:"organize_error,omitempty" yaml:"organize_error,omitempty"`
	Missing       []impute.ColumnStats     `json:"missing,omitempty" yaml:"missing,omitempty"`
	Imputation    *impute.Report           `json:"imputation,omitempty" yaml:"imputation,omitempty"`
	Quality       analysis.Quality         `json:"quality" yaml:"quality"`
	FinalQuality  *analysis.Quality        `json:"final_quality,omitempty" yaml:"final_quality,omitempty"`
	Warnings      []string                 `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Summary flattens r for JSON and YAML output.
func (r *Result) Summary() Summary {
	s := Summary{
		RunID:         r.RunID,
		Source:        r.Name,
		Format:        r.Format,
		Rows:          r.Raw.NumRows(),
		Columns:       r.Raw.NumCols(),
		Delimiter:     r.Delimiter.String(),
		Degraded:      r.Degraded,
		Verdict:       r.Verdict,
		VerdictCached: r.VerdictCached,
		Profiles:      r.Profiles,
		Organize:      r.Organized,
		Missing:       r.Missing,
		Imputation:    r.Imputed,
		Quality:       r.Quality,
		Warnings:      r.Warnings,
	}
	if r.Organized != nil && r.Organized.Err != nil {
		s.OrganizeError = r.Organized.Err.Error()
	}
	if r.Imputed != nil {
		q := r.FinalQuality
		s.FinalQuality = &q
	}
	return s
}

// Render formats r as markdown, json or yaml.
func (r *Result) Render(format string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "markdown", "md":
		return []byte(r.Markdown()), nil
	case "json":
		return utils.PrettyJSON(r.Summary())
	case "yaml", "yml":
		b, err := yaml.Marshal(r.Summary())
		if err != nil {
			return nil, fmt.Errorf("marshal yaml: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (use markdown, json or yaml)", format)
	}
}

// Markdown renders a compact report of every stage.
func (r *Result) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if r.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", r.Name))
	}
	b.WriteString(fmt.Sprintf("Rows: %d\n", r.Raw.NumRows()))
	b.WriteString(fmt.Sprintf("Columns: %d\n", r.Raw.NumCols()))
	if r.Empty() {
		b.WriteString("\nNothing to classify: input is empty.\n")
		return b.String()
	}
	b.WriteString(fmt.Sprintf("Delimiter: %s\n\n", r.Delimiter))

	b.WriteString("[STRUCTURE]\n")
	b.WriteString(fmt.Sprintf("Type: %s\n", r.Verdict.Kind))
	if r.Verdict.DateColumn != "" {
		b.WriteString(fmt.Sprintf("Date column: %s\n", safeName(r.Verdict.DateColumn)))
	}
	if r.Verdict.EntityColumn != "" {
		b.WriteString(fmt.Sprintf("Entity column: %s\n", safeName(r.Verdict.EntityColumn)))
	}
	if r.VerdictCached {
		b.WriteString("(verdict reused from cache)\n")
	}
	b.WriteString("\n")

	b.WriteString("[SCHEMA]\n")
	for _, p := range r.Profiles {
		b.WriteString(fmt.Sprintf("- %s: %s (non-null %d, missing %.1f%%)", safeName(p.Name), p.Kind, p.NonNull, p.MissingPct()))
		if len(p.Examples) > 0 && (p.Kind == analysis.KindCategorical || p.Kind == analysis.KindText) {
			ex := make([]string, len(p.Examples))
			for i, e := range p.Examples {
				ex[i] = safeVal(e)
			}
			b.WriteString("; e.g. " + strings.Join(ex, ", "))
		}
		b.WriteString("\n")
	}

	if o := r.Organized; o != nil {
		b.WriteString("\n[ORGANIZATION]\n")
		switch {
		case o.Err != nil:
			b.WriteString(fmt.Sprintf("Not organized: %v\n", o.Err))
		case !o.Organized:
			b.WriteString("Left as-is (no structure-specific organization)\n")
		default:
			writeOrganized(&b, o)
		}
	}

	if len(r.Missing) > 0 {
		b.WriteString("\n[MISSING VALUES]\n")
		anyMissing := false
		for _, cs := range r.Missing {
			if cs.Missing == 0 {
				continue
			}
			anyMissing = true
			b.WriteString(fmt.Sprintf("- %s: %d missing (%.1f%%), suggested %s", safeName(cs.Column), cs.Missing, cs.MissingPct, cs.Suggested))
			if cs.Normality != nil {
				b.WriteString(fmt.Sprintf(" (normality p=%.3f)", *cs.Normality))
			}
			b.WriteString("\n")
		}
		if !anyMissing {
			b.WriteString("No missing values\n")
		}
	}

	if rep := r.Imputed; rep != nil {
		b.WriteString("\n[IMPUTATION]\n")
		b.WriteString(fmt.Sprintf("Run: %s\n", rep.RunID))
		for _, o := range rep.Columns {
			switch {
			case o.Err != nil:
				b.WriteString(fmt.Sprintf("- %s: %s failed: %s\n", safeName(o.Column), o.Applied, o.Error))
			case o.RowsDropped > 0:
				b.WriteString(fmt.Sprintf("- %s: %s dropped %d rows\n", safeName(o.Column), o.Applied, o.RowsDropped))
			default:
				b.WriteString(fmt.Sprintf("- %s: %s filled %d values\n", safeName(o.Column), o.Applied, o.Imputed))
			}
		}
		b.WriteString(fmt.Sprintf("Rows: %d -> %d\n", rep.RowsBefore, rep.RowsAfter))
	}

	b.WriteString("\n[QUALITY]\n")
	writeQuality(&b, "Score", r.Quality)
	if r.Imputed != nil {
		writeQuality(&b, "After imputation", r.FinalQuality)
	}

	if t := r.Final; !t.Empty() {
		b.WriteString("\n[HEAD AND SAMPLE ROWS]\n")
		cols := t.Columns()
		for i := range cols {
			cols[i] = safeVal(safeName(cols[i]))
		}
		b.WriteString("| " + strings.Join(cols, " | ") + " |\n")
		b.WriteString("|" + strings.Repeat(" --- |", len(cols)) + "\n")
		n := t.NumRows()
		if n > SampleRows {
			n = SampleRows
		}
		for i := 0; i < n; i++ {
			row := t.Row(i)
			for j, v := range row {
				v = safeVal(v)
				if len(v) > 80 {
					v = v[:77] + "..."
				}
				row[j] = v
			}
			b.WriteString("| " + strings.Join(row, " | ") + " |\n")
		}
	}

	if len(r.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range r.Warnings {
			b.WriteString("- " + w + "\n")
		}
	}
	return b.String()
}

func writeOrganized(b *strings.Builder, o *organize.Result) {
	switch o.Verdict.Kind {
	case structure.TimeSeries:
		b.WriteString(fmt.Sprintf("Sorted by %s\n", safeName(o.Verdict.DateColumn)))
		if s := o.Span; s != nil && s.Valid > 0 {
			b.WriteString(fmt.Sprintf("Span: %s to %s (%.0f days, %d valid, %d invalid)\n",
				s.Min.Format("2006-01-02"), s.Max.Format("2006-01-02"), s.Days(), s.Valid, s.Invalid))
		}
	case structure.Panel:
		b.WriteString(fmt.Sprintf("Sorted by %s, %s\n", safeName(o.Verdict.EntityColumn), safeName(o.Verdict.DateColumn)))
		if bal := o.Balance; bal != nil {
			state := "unbalanced"
			if bal.Balanced {
				state = "balanced"
			}
			b.WriteString(fmt.Sprintf("Entities: %d, %s (observations %d to %d)\n", bal.Entities, state, bal.MinObs, bal.MaxObs))
		}
	case structure.Email:
		if s := o.Email; s != nil {
			b.WriteString(fmt.Sprintf("Messages: %d in %d threads (largest %d)\n", s.Messages, s.Threads, s.LargestThread))
			b.WriteString(fmt.Sprintf("Replies: %d, average response %.2f h\n", s.Replies, s.AvgResponseHours))
			b.WriteString(fmt.Sprintf("Flagged as spam: %d\n", s.SpamCount))
			for _, sc := range s.TopSenders {
				b.WriteString(fmt.Sprintf("- %s (%d)\n", safeVal(sc.Sender), sc.Count))
			}
		}
	default:
		b.WriteString("Organized\n")
	}
	for _, n := range o.Notes {
		b.WriteString("Note: " + n + "\n")
	}
}

func writeQuality(b *strings.Builder, label string, q analysis.Quality) {
	b.WriteString(fmt.Sprintf("%s: %.1f/100 (missing %.1f%%, duplicate rows %d)\n", label, q.Score, q.MissingPct, q.DuplicateRows))
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
