// Package pipeline runs the stages tokenize, profile, classify, organize,
// impute and score in order. Each stage consumes only the previous stage's
// output; the pipeline itself holds no state between runs beyond an optional
// caller-owned Session.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KaramelBytes/dataloom-cli/internal/analysis"
	"github.com/KaramelBytes/dataloom-cli/internal/impute"
	"github.com/KaramelBytes/dataloom-cli/internal/ingest"
	"github.com/KaramelBytes/dataloom-cli/internal/organize"
	"github.com/KaramelBytes/dataloom-cli/internal/structure"
	"github.com/KaramelBytes/dataloom-cli/internal/table"
	"github.com/KaramelBytes/dataloom-cli/internal/tokenize"
)

// Options configure one run.
type Options struct {
	Organize organize.Options
	Impute   impute.Options
	// Steps is the imputation batch. When empty and AutoImpute is set, every
	// column with missing values gets its suggested method.
	Steps      []impute.Step
	AutoImpute bool
	// Redetect ignores remembered verdicts.
	Redetect bool
	Session  *Session
	Logger   *zap.Logger
}

// Result carries every stage's output. Tables are never shared between
// stages: Raw, Organized.Table and Final are distinct values.
type Result struct {
	RunID     string
	Name      string
	Format    string
	Delimiter tokenize.Delimiter
	Degraded  bool

	Raw      *table.Table
	Profiles []analysis.ColumnProfile
	Verdict  structure.Verdict
	// VerdictCached is set when the verdict came from the Session.
	VerdictCached bool

	Organized *organize.Result
	Missing   []impute.ColumnStats
	Imputed   *impute.Report
	Final     *table.Table

	Quality      analysis.Quality
	FinalQuality analysis.Quality
	Warnings     []string
}

// Empty reports a run over empty input: nothing was classified.
func (r *Result) Empty() bool { return r == nil || r.Raw.Empty() }

// Run ingests a parsed document and runs every stage.
func Run(ctx context.Context, doc *ingest.Document, opt Options) (*Result, error) {
	if doc == nil {
		return nil, errors.New("pipeline: nil document")
	}
	tok, err := doc.Tokenize()
	if err != nil {
		return nil, fmt.Errorf("tokenize %s: %w", doc.Name, err)
	}
	res, err := run(ctx, doc.Name, tok, doc.Mailbox, opt)
	if res != nil {
		res.Format = doc.Format
		if doc.Skipped > 0 {
			log := opt.Logger
			if log == nil {
				log = zap.NewNop()
			}
			res.warn(log.With(zap.String("source", doc.Name)), fmt.Sprintf("skipped %d unreadable messages", doc.Skipped))
		}
	}
	return res, err
}

// RunText tokenizes raw text and runs every stage.
func RunText(ctx context.Context, name, text string, opt Options) (*Result, error) {
	tok, err := tokenize.Tokenize(text)
	if err != nil {
		return nil, fmt.Errorf("tokenize %s: %w", name, err)
	}
	return run(ctx, name, tok, false, opt)
}

// RunTable runs every stage after tokenization on an existing table.
func RunTable(ctx context.Context, name string, t *table.Table, fromMailbox bool, opt Options) (*Result, error) {
	if t == nil {
		t = &table.Table{}
	}
	return run(ctx, name, &tokenize.Result{Table: t}, fromMailbox, opt)
}

func run(ctx context.Context, name string, tok *tokenize.Result, fromMailbox bool, opt Options) (*Result, error) {
	log := opt.Logger
	if log == nil {
		log = zap.NewNop()
	}
	res := &Result{
		RunID:     uuid.NewString(),
		Name:      name,
		Raw:       tok.Table,
		Delimiter: tok.Delimiter,
		Degraded:  tok.Degraded,
	}
	log = log.With(zap.String("run_id", res.RunID), zap.String("source", name))

	if errors.Is(tok.Err(), tokenize.ErrEmptyInput) {
		log.Debug("empty input, nothing to classify")
		res.Final = res.Raw
		return res, nil
	}
	if tok.Degraded {
		res.warn(log, "no tabular structure detected; using single Content column")
	}
	if tok.Padded > 0 || tok.Truncated > 0 {
		log.Debug("reconciled ragged rows", zap.Int("padded", tok.Padded), zap.Int("truncated", tok.Truncated))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res.Profiles = analysis.Profile(res.Raw)
	res.Quality = analysis.Score(res.Raw)

	res.Verdict, res.VerdictCached = res.classify(log, opt, fromMailbox)
	log.Debug("classified", zap.Stringer("verdict", res.Verdict), zap.Bool("cached", res.VerdictCached))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res.Organized = organize.Organize(res.Raw, res.Verdict, opt.Organize)
	for _, n := range res.Organized.Notes {
		log.Info("column recovered", zap.String("note", n))
		res.Warnings = append(res.Warnings, n)
	}
	if err := res.Organized.Err; err != nil {
		res.warn(log, fmt.Sprintf("could not organize as %s: %v", res.Verdict.Kind, err))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cur := res.Organized.Table
	res.Missing = impute.Analyze(cur, opt.Impute)
	for _, cs := range res.Missing {
		if cs.Fallback != "" {
			log.Debug("normality test fallback", zap.String("column", cs.Column), zap.String("reason", cs.Fallback))
		}
	}
	steps := opt.Steps
	if len(steps) == 0 && opt.AutoImpute {
		steps = autoSteps(res.Missing)
	}
	if len(steps) > 0 {
		var rep *impute.Report
		cur, rep = impute.Batch(cur, steps, opt.Impute)
		res.Imputed = rep
		for _, o := range rep.Failed() {
			res.warn(log, fmt.Sprintf("imputation of %s failed: %v", o.Column, o.Err))
		}
	}
	res.Final = cur
	res.FinalQuality = analysis.Score(cur)
	return res, nil
}

// classify consults the session before running the classifier. A remembered
// verdict whose columns are gone is forgotten and re-derived. Mailbox input
// is cached under its own key since origin alone can make a table Email.
func (r *Result) classify(log *zap.Logger, opt Options, fromMailbox bool) (structure.Verdict, bool) {
	key := verdictKey(r.Raw, fromMailbox)
	if s := opt.Session; s != nil && !opt.Redetect {
		if v, ok := s.Verdict(key); ok {
			err := v.Validate(r.Raw)
			if err == nil {
				return v, true
			}
			log.Warn("discarding stale verdict", zap.Error(err))
			if err := s.Forget(key); err != nil {
				log.Warn("could not drop stale verdict", zap.Error(err))
			}
		}
	}
	v, err := structure.Classify(r.Raw, r.Profiles, structure.Options{FromMailbox: fromMailbox})
	if err != nil {
		r.warn(log, fmt.Sprintf("classification failed, treating as %s: %v", structure.General, err))
	}
	if s := opt.Session; s != nil {
		if err := s.Remember(key, v); err != nil {
			log.Warn("could not persist verdict", zap.Error(err))
		}
	}
	return v, false
}

func verdictKey(t *table.Table, fromMailbox bool) string {
	key := t.Hash()
	if fromMailbox {
		key += ":mailbox"
	}
	return key
}

func (r *Result) warn(log *zap.Logger, msg string) {
	log.Warn(msg)
	r.Warnings = append(r.Warnings, msg)
}

// autoSteps picks every column with missing values whose suggestion needs no
// caller-supplied value.
func autoSteps(stats []impute.ColumnStats) []impute.Step {
	var steps []impute.Step
	for _, cs := range stats {
		if cs.Missing == 0 || cs.Suggested == impute.Custom {
			continue
		}
		steps = append(steps, impute.Step{Column: cs.Column, Method: cs.Suggested})
	}
	return steps
}
