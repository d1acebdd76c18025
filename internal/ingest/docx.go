package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

type docxParser struct{}

func (docxParser) CanParse(p Probe) bool {
	return p.Ext() == ".docx" || p.Is(docxMIME)
}

// Parse extracts the first table of word/document.xml as records, or the
// paragraph text when the document has no table.
func (docxParser) Parse(_ Probe, _ Options, content []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	var docXML []byte
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open document.xml: %w", err)
		}
		docXML, err = io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read document.xml: %w", err)
		}
		break
	}
	if len(docXML) == 0 {
		return nil, fmt.Errorf("document.xml not found in DOCX")
	}
	recs, text, err := walkDocx(docXML)
	if err != nil {
		return nil, fmt.Errorf("parse document.xml: %w", err)
	}
	if len(recs) >= 2 {
		return &Document{Format: "docx", Records: recs}, nil
	}
	return &Document{Format: "docx", Text: text}, nil
}

// walkDocx streams WordprocessingML: w:tr/w:tc inside the first top-level
// w:tbl become records, every w:p outside tables becomes a text line. Only
// w:t runs carry text.
func walkDocx(b []byte) ([][]string, string, error) {
	dec := xml.NewDecoder(bytes.NewReader(b))
	var (
		recs      [][]string
		lines     []string
		row       []string
		cell      strings.Builder
		para      strings.Builder
		depth     int
		tablesEnd int
		inText    bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				depth++
			case "tr":
				if depth == 1 && tablesEnd == 0 {
					row = nil
				}
			case "tc":
				cell.Reset()
			case "t":
				inText = true
			case "tab":
				if depth == 0 {
					para.WriteByte('\t')
				} else {
					cell.WriteByte(' ')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "tbl":
				depth--
				if depth == 0 {
					tablesEnd++
				}
			case "tr":
				if depth == 1 && tablesEnd == 0 && len(row) > 0 {
					recs = append(recs, row)
				}
			case "tc":
				if depth == 1 {
					row = append(row, strings.Join(strings.Fields(cell.String()), " "))
				}
			case "p":
				if depth == 0 {
					lines = append(lines, para.String())
					para.Reset()
				} else {
					cell.WriteByte(' ')
				}
			}
		case xml.CharData:
			if !inText {
				continue
			}
			if depth == 0 {
				para.Write(t)
			} else {
				cell.Write(t)
			}
		}
	}
	return recs, strings.TrimSpace(strings.Join(lines, "\n")), nil
}
