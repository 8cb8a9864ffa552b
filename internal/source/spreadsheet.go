package source

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/finwrap-dev/finwrap/internal/frame"
)

// SpreadsheetLoader reads the first sheet of .xlsx and .xls workbooks. The
// first row is the header. Cells are read as displayed and typed by
// inference, like CSV.
type SpreadsheetLoader struct{}

// Kind returns KindSpreadsheet.
func (l *SpreadsheetLoader) Kind() Kind { return KindSpreadsheet }

// Load reads every workbook and concatenates their first sheets.
func (l *SpreadsheetLoader) Load(ctx context.Context, paths []string) (*frame.Frame, error) {
	var (
		header []string
		rows   [][]string
	)
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var (
			sheet [][]string
			err   error
		)
		if strings.EqualFold(filepath.Ext(p), ".xls") {
			sheet, err = readXLS(p)
		} else {
			sheet, err = readXLSX(p)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		if len(sheet) == 0 {
			return nil, fmt.Errorf("%s: empty sheet", p)
		}
		h := trimTrailingEmpty(sheet[0])
		if header == nil {
			header = h
		} else if !slices.Equal(header, h) {
			return nil, fmt.Errorf("%s: header %v does not match %v", p, h, header)
		}
		rows = append(rows, sheet[1:]...)
	}
	return inferFrame(header, rows)
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func readXLS(path string) ([][]string, error) {
	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows := make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, row.LastCol())
		for j := range cells {
			cells[j] = row.Col(j)
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func trimTrailingEmpty(row []string) []string {
	end := len(row)
	for end > 0 && strings.TrimSpace(row[end-1]) == "" {
		end--
	}
	return row[:end]
}
