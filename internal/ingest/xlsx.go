package ingest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type xlsxParser struct{}

func (xlsxParser) CanParse(p Probe) bool {
	return p.Ext() == ".xlsx" || p.Ext() == ".xlsm" || p.Is(xlsxMIME)
}

// Parse reads the selected sheet (or the first one) as formatted cell text.
func (xlsxParser) Parse(p Probe, opt Options, content []byte) (*Document, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx %s has no sheets", p.Name)
	}
	sheet := sheets[0]
	if opt.Sheet != "" {
		sheet = ""
		for _, s := range sheets {
			if strings.EqualFold(s, opt.Sheet) {
				sheet = s
				break
			}
		}
		if sheet == "" {
			return nil, fmt.Errorf("sheet %q not found in workbook %s; available sheets: %s",
				opt.Sheet, p.Name, strings.Join(sheets, ", "))
		}
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if rows == nil {
		rows = [][]string{}
	}
	return &Document{Name: fmt.Sprintf("%s (sheet: %s)", p.Name, sheet), Format: "xlsx", Records: rows}, nil
}
