package source

import (
	"context"
	"fmt"
	"os"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/arrow/array"
	"github.com/apache/arrow/go/v15/arrow/memory"
	"github.com/apache/arrow/go/v15/parquet"
	"github.com/apache/arrow/go/v15/parquet/pqarrow"

	"github.com/finwrap-dev/finwrap/internal/frame"
)

// ParquetLoader reads parquet files through arrow.
type ParquetLoader struct{}

// Kind returns KindParquet.
func (l *ParquetLoader) Kind() Kind { return KindParquet }

// Load reads each file and stacks them. Files must share a schema.
func (l *ParquetLoader) Load(ctx context.Context, paths []string) (*frame.Frame, error) {
	frames := make([]*frame.Frame, 0, len(paths))
	for _, p := range paths {
		f, err := readParquet(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		frames = append(frames, f)
	}
	return frame.Vstack(frames...)
}

func readParquet(ctx context.Context, path string) (*frame.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening parquet: %w", err)
	}
	defer f.Close()

	mem := memory.DefaultAllocator
	tbl, err := pqarrow.ReadTable(ctx, f, parquet.NewReaderProperties(mem), pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, fmt.Errorf("reading parquet: %w", err)
	}
	defer tbl.Release()

	schema := tbl.Schema()
	cols := make([]*frame.Series, 0, int(tbl.NumCols()))
	for i := 0; i < int(tbl.NumCols()); i++ {
		field := schema.Field(i)
		typ, err := arrowType(field.Type)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", field.Name, err)
		}
		values := make([]any, 0, int(tbl.NumRows()))
		for _, chunk := range tbl.Column(i).Data().Chunks() {
			values, err = appendArrowValues(values, chunk)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", field.Name, err)
			}
		}
		cols = append(cols, frame.NewSeries(field.Name, typ, values))
	}
	return frame.New(cols...)
}

func arrowType(dt arrow.DataType) (frame.DataType, error) {
	switch dt.ID() {
	case arrow.STRING, arrow.LARGE_STRING:
		return frame.String, nil
	case arrow.FLOAT64, arrow.FLOAT32:
		return frame.Float64, nil
	case arrow.INT64, arrow.INT32, arrow.INT16, arrow.INT8,
		arrow.UINT32, arrow.UINT16, arrow.UINT8:
		return frame.Int64, nil
	case arrow.BOOL:
		return frame.Bool, nil
	case arrow.TIMESTAMP, arrow.DATE32, arrow.DATE64:
		return frame.Datetime, nil
	case arrow.NULL:
		return frame.Null, nil
	}
	return frame.Null, fmt.Errorf("unsupported parquet type %s", dt)
}

func appendArrowValues(values []any, arr arrow.Array) ([]any, error) {
	n := arr.Len()
	switch a := arr.(type) {
	case *array.String:
		for i := 0; i < n; i++ {
			values = append(values, nullOr(a, i, func() any { return a.Value(i) }))
		}
	case *array.LargeString:
		for i := 0; i < n; i++ {
			values = append(values, nullOr(a, i, func() any { return a.Value(i) }))
		}
	case *array.Float64:
		for i := 0; i < n; i++ {
			values = append(values, nullOr(a, i, func() any { return a.Value(i) }))
		}
	case *array.Float32:
		for i := 0; i < n; i++ {
			values = append(values, nullOr(a, i, func() any { return float64(a.Value(i)) }))
		}
	case *array.Int64:
		for i := 0; i < n; i++ {
			values = append(values, nullOr(a, i, func() any { return a.Value(i) }))
		}
	case *array.Int32:
		for i := 0; i < n; i++ {
			values = append(values, nullOr(a, i, func() any { return int64(a.Value(i)) }))
		}
	case *array.Int16:
		for i := 0; i < n; i++ {
			values = append(values, nullOr(a, i, func() any { return int64(a.Value(i)) }))
		}
	case *array.Int8:
		for i := 0; i < n; i++ {
			values = append(values, nullOr(a, i, func() any { return int64(a.Value(i)) }))
		}
	case *array.Uint32:
		for i := 0; i < n; i++ {
			values = append(values, nullOr(a, i, func() any { return int64(a.Value(i)) }))
		}
	case *array.Uint16:
		for i := 0; i < n; i++ {
			values = append(values, nullOr(a, i, func() any { return int64(a.Value(i)) }))
		}
	case *array.Uint8:
		for i := 0; i < n; i++ {
			values = append(values, nullOr(a, i, func() any { return int64(a.Value(i)) }))
		}
	case *array.Boolean:
		for i := 0; i < n; i++ {
			values = append(values, nullOr(a, i, func() any { return a.Value(i) }))
		}
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		for i := 0; i < n; i++ {
			values = append(values, nullOr(a, i, func() any { return frame.TruncateMicro(a.Value(i).ToTime(unit)) }))
		}
	case *array.Date32:
		for i := 0; i < n; i++ {
			values = append(values, nullOr(a, i, func() any { return frame.TruncateMicro(a.Value(i).ToTime()) }))
		}
	case *array.Date64:
		for i := 0; i < n; i++ {
			values = append(values, nullOr(a, i, func() any { return frame.TruncateMicro(a.Value(i).ToTime()) }))
		}
	case *array.Null:
		for i := 0; i < n; i++ {
			values = append(values, nil)
		}
	default:
		return nil, fmt.Errorf("unsupported arrow array %T", arr)
	}
	return values, nil
}

func nullOr(arr arrow.Array, i int, value func() any) any {
	if arr.IsNull(i) {
		return nil
	}
	return value()
}
