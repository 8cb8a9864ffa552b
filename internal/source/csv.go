package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/finwrap-dev/finwrap/internal/frame"
)

// CSVLoader reads comma-separated files with a header row. Every file must
// carry the same header.
type CSVLoader struct{}

// Kind returns KindCSV.
func (l *CSVLoader) Kind() Kind { return KindCSV }

// Load reads and concatenates the files, then infers column types.
func (l *CSVLoader) Load(ctx context.Context, paths []string) (*frame.Frame, error) {
	var (
		header []string
		rows   [][]string
	)
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h, recs, err := readCSVFile(p)
		if err != nil {
			return nil, err
		}
		if header == nil {
			header = h
		} else if !slices.Equal(header, h) {
			return nil, fmt.Errorf("%s: header %v does not match %v", p, h, header)
		}
		rows = append(rows, recs...)
	}
	return inferFrame(header, rows)
}

func readCSVFile(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening csv: %w", err)
	}
	defer f.Close()
	return readCSV(f, path)
}

func readCSV(r io.Reader, name string) ([]string, [][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 0

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("%s: empty csv", name)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s header: %w", name, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return header, records, nil
}
