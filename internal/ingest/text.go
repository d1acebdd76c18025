package ingest

import "strings"

type textParser struct{}

var textExts = map[string]string{
	".txt": "text", ".csv": "csv", ".tsv": "tsv", ".tab": "tsv", ".dat": "text",
	".psv": "text", ".md": "markdown", ".markdown": "markdown", "": "text",
}

// CanParse accepts known text extensions and anything that sniffs as text.
// Binary content behind a text extension is rejected later by the tokenizer.
func (textParser) CanParse(p Probe) bool {
	if _, ok := textExts[p.Ext()]; ok {
		return true
	}
	return p.Is("text/plain")
}

func (textParser) Parse(p Probe, _ Options, content []byte) (*Document, error) {
	format, ok := textExts[p.Ext()]
	if !ok {
		format = "text"
	}
	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	if format == "markdown" {
		for strings.Contains(text, "\n\n\n") {
			text = strings.ReplaceAll(text, "\n\n\n", "\n\n")
		}
	}
	return &Document{Format: format, Text: text}, nil
}
