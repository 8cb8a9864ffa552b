package source

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/finwrap-dev/finwrap/internal/frame"
)

var floatPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// inferFrame builds a frame from textual cells, picking the narrowest type
// every non-empty cell of a column parses as. Empty cells are null. Values
// such as "1,234.56" stay textual.
func inferFrame(header []string, rows [][]string) (*frame.Frame, error) {
	names := normalizeHeader(header)
	cols := make([]*frame.Series, len(names))
	for j, name := range names {
		cells := make([]string, len(rows))
		for i, row := range rows {
			if j < len(row) {
				cells[i] = row[j]
			}
		}
		s, err := inferSeries(name, cells)
		if err != nil {
			return nil, err
		}
		cols[j] = s
	}
	return frame.New(cols...)
}

func normalizeHeader(header []string) []string {
	names := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for j, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("column_%d", j+1)
		}
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name = fmt.Sprintf("%s_duplicated_%d", name, n-1)
		} else {
			seen[name] = 1
		}
		names[j] = name
	}
	return names
}

func inferSeries(name string, cells []string) (*frame.Series, error) {
	typ := inferType(cells)
	values := make([]any, len(cells))
	for i, c := range cells {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		switch typ {
		case frame.Int64:
			n, err := strconv.ParseInt(c, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("column %q row %d: %w", name, i+1, err)
			}
			values[i] = n
		case frame.Float64:
			f, err := strconv.ParseFloat(c, 64)
			if err != nil {
				return nil, fmt.Errorf("column %q row %d: %w", name, i+1, err)
			}
			values[i] = f
		case frame.Bool:
			values[i] = strings.EqualFold(c, "true")
		default:
			values[i] = cells[i]
		}
	}
	return frame.NewSeries(name, typ, values), nil
}

func inferType(cells []string) frame.DataType {
	isInt, isFloat, isBool, seen := true, true, true, false
	for _, c := range cells {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		seen = true
		if isInt {
			if _, err := strconv.ParseInt(c, 10, 64); err != nil {
				isInt = false
			}
		}
		if isFloat && !floatPattern.MatchString(c) {
			isFloat = false
		}
		if isBool && !strings.EqualFold(c, "true") && !strings.EqualFold(c, "false") {
			isBool = false
		}
		if !isInt && !isFloat && !isBool {
			return frame.String
		}
	}
	switch {
	case !seen:
		return frame.String
	case isInt:
		return frame.Int64
	case isFloat:
		return frame.Float64
	case isBool:
		return frame.Bool
	}
	return frame.String
}
