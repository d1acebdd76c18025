// Package ingest reads files, URLs and streams into documents the tokenizer
// can turn into tables.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/KaramelBytes/dataloom-cli/internal/tokenize"
)

var (
	// ErrIngestionTimeout is returned when reading input exceeds the deadline.
	ErrIngestionTimeout = errors.New("ingestion timed out")
	// ErrUnsupported indicates a binary format no parser understands.
	ErrUnsupported = errors.New("unsupported input format")
	// ErrTooLarge is returned when input exceeds Options.MaxBytes.
	ErrTooLarge = errors.New("input exceeds size limit")
)

// Defaults for Options.
const (
	DefaultTimeout  = 30 * time.Second
	DefaultMaxBytes = 64 << 20
)

// Options bound a single ingestion.
type Options struct {
	Timeout  time.Duration
	MaxBytes int64
	// Sheet selects a workbook sheet by name; empty means the first sheet.
	Sheet  string
	Client *http.Client
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxBytes <= 0 {
		o.MaxBytes = DefaultMaxBytes
	}
	if o.Client == nil {
		o.Client = http.DefaultClient
	}
	return o
}

// Document is ingested input: either raw text for the tokenizer or records
// that are already tabular (spreadsheets, HTML and mail exports).
type Document struct {
	Name    string
	Format  string
	Text    string
	Records [][]string
	// Mailbox is set for mbox/eml sources; their tables classify as email.
	Mailbox bool
	// Skipped counts mailbox messages that could not be read.
	Skipped int
}

// Tokenize turns the document into a table.
func (d *Document) Tokenize() (*tokenize.Result, error) {
	if d.Records != nil {
		return tokenize.FromRecords(d.Records), nil
	}
	return tokenize.Tokenize(d.Text)
}

// Probe is what parsers see when deciding whether they handle an input.
type Probe struct {
	Name string
	MIME *mimetype.MIME
	Head []byte
}

// Ext is the lowercased file extension of the probe name.
func (p Probe) Ext() string { return strings.ToLower(filepath.Ext(p.Name)) }

// Is reports whether the sniffed type or one of its parents is mime.
func (p Probe) Is(mime string) bool {
	for m := p.MIME; m != nil; m = m.Parent() {
		if m.Is(mime) {
			return true
		}
	}
	return false
}

// Parser converts one input format into a Document.
type Parser interface {
	CanParse(p Probe) bool
	Parse(p Probe, opt Options, content []byte) (*Document, error)
}

var registry []Parser

// Register adds a parser; earlier registrations win.
func Register(p Parser) {
	registry = append(registry, p)
}

func init() {
	Register(xlsxParser{})
	Register(docxParser{})
	Register(htmlParser{})
	Register(mboxParser{})
	Register(emlParser{})
	Register(textParser{})
}

// Parse dispatches content to the first parser that accepts it.
func Parse(name string, content []byte, opt Options) (*Document, error) {
	opt = opt.withDefaults()
	head := content
	if len(head) > 4096 {
		head = head[:4096]
	}
	p := Probe{Name: name, MIME: mimetype.Detect(content), Head: head}
	for _, parser := range registry {
		if parser.CanParse(p) {
			doc, err := parser.Parse(p, opt, content)
			if err != nil {
				return nil, err
			}
			if doc.Name == "" {
				doc.Name = name
			}
			return doc, nil
		}
	}
	return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupported, name, p.MIME.String())
}

// FromFile reads and parses a local file.
func FromFile(ctx context.Context, file string, opt Options) (*Document, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()
	return FromReader(ctx, filepath.Base(file), f, opt)
}

// FromURL fetches and parses a remote document.
func FromURL(ctx context.Context, rawURL string, opt Options) (*Document, error) {
	opt = opt.withDefaults()
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid url %q", rawURL)
	}
	ctx, cancel := context.WithTimeout(ctx, opt.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := opt.Client.Do(req)
	if err != nil {
		return nil, classify(ctx, fmt.Errorf("fetch %s: %w", u.Redacted(), err))
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: status %d", u.Redacted(), resp.StatusCode)
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." {
		name = u.Host + ".html"
	}
	return fromReader(ctx, name, resp.Body, resp.Body, opt)
}

// FromReader reads r under the configured timeout and size limit.
func FromReader(ctx context.Context, name string, r io.Reader, opt Options) (*Document, error) {
	opt = opt.withDefaults()
	ctx, cancel := context.WithTimeout(ctx, opt.Timeout)
	defer cancel()
	// r belongs to the caller. On timeout the read goroutine is abandoned
	// and exits once r returns, which for stdin may be never.
	return fromReader(ctx, name, r, nil, opt)
}

// fromReader closes body, when set, as soon as ctx ends so the read
// goroutine unblocks.
func fromReader(ctx context.Context, name string, r io.Reader, body io.Closer, opt Options) (*Document, error) {
	type result struct {
		b   []byte
		err error
	}
	ch := make(chan result, 1)
	go func() {
		b, err := io.ReadAll(io.LimitReader(r, opt.MaxBytes+1))
		ch <- result{b, err}
	}()
	select {
	case <-ctx.Done():
		if body != nil {
			_ = body.Close()
		}
		return nil, classify(ctx, ctx.Err())
	case res := <-ch:
		if res.err != nil {
			return nil, classify(ctx, fmt.Errorf("read input: %w", res.err))
		}
		if int64(len(res.b)) > opt.MaxBytes {
			return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, opt.MaxBytes)
		}
		return Parse(name, res.b, opt)
	}
}

func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrIngestionTimeout, err)
	}
	return err
}
