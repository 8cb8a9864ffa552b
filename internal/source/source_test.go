package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/arrow/array"
	"github.com/apache/arrow/go/v15/arrow/memory"
	"github.com/apache/arrow/go/v15/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/finwrap-dev/finwrap/internal/frame"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestDetect(t *testing.T) {
	kind, err := Detect([]string{"a.csv", "b.CSV"})
	require.NoError(t, err)
	assert.Equal(t, KindCSV, kind)

	kind, err = Detect([]string{"a.xls"})
	require.NoError(t, err)
	assert.Equal(t, KindSpreadsheet, kind)

	kind, err = Detect([]string{"a.parquet"})
	require.NoError(t, err)
	assert.Equal(t, KindParquet, kind)
}

func TestDetect_Errors(t *testing.T) {
	_, err := Detect(nil)
	assert.ErrorIs(t, err, ErrNoFiles)

	_, err = Detect([]string{"a.csv", "b.parquet"})
	assert.ErrorIs(t, err, ErrMixedExtensions)

	_, err = Detect([]string{"a.xlsx", "b.xls"})
	assert.ErrorIs(t, err, ErrMixedExtensions)

	_, err = Detect([]string{"a.json"})
	var unsupported *UnsupportedTypeError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, ".json", unsupported.Ext)
	assert.Equal(t, "a.json", unsupported.Path)
}

func TestScan_ValidatesBeforeReading(t *testing.T) {
	// Nonexistent files: Scan must fail on the extension, not on I/O.
	_, err := Scan([]string{"/nope/a.csv", "/nope/b.xlsx"})
	assert.ErrorIs(t, err, ErrMixedExtensions)

	lf, err := Scan([]string{"/nope/a.csv"})
	require.NoError(t, err)
	_, err = lf.CollectSchema(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestScan_CSV(t *testing.T) {
	lf, err := Scan([]string{"../../testdata/transactions.csv"})
	require.NoError(t, err)

	schema, err := lf.CollectSchema(context.Background())
	require.NoError(t, err)
	assert.Equal(t, frame.Schema{
		{Name: "Date", Type: frame.String},
		{Name: "Description", Type: frame.String},
		{Name: "Amount", Type: frame.String},
		{Name: "Fees", Type: frame.Float64},
		{Name: "Currency", Type: frame.String},
	}, schema)

	f, err := lf.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, f.Height())

	amount, err := f.Column("Amount")
	require.NoError(t, err)
	assert.Equal(t, "1,200.00", amount.Value(0))
}

func TestScan_CSVMultipleFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.csv", "\ufeffdate,amount\n2024-01-01,1\n")
	b := writeFile(t, dir, "b.csv", "date,amount\n2024-01-02,2\n2024-01-03,\n")

	lf, err := Scan([]string{a, b})
	require.NoError(t, err)
	f, err := lf.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, frame.Schema{{Name: "date", Type: frame.String}, {Name: "amount", Type: frame.Int64}}, f.Schema())
	amount, _ := f.Column("amount")
	assert.Equal(t, []any{int64(1), int64(2), nil}, amount.Values())
}

func TestScan_CSVHeaderMismatch(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.csv", "date,amount\n2024-01-01,1\n")
	b := writeFile(t, dir, "b.csv", "when,amount\n2024-01-02,2\n")

	lf, err := Scan([]string{a, b})
	require.NoError(t, err)
	_, err = lf.Collect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")
}

func TestScan_LoadsOnce(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "a.csv", "date,amount\n2024-01-01,1\n")

	lf, err := Scan([]string{p})
	require.NoError(t, err)
	_, err = lf.CollectSchema(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Remove(p))
	f, err := lf.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, f.Height())
}

func TestInferType(t *testing.T) {
	tests := []struct {
		name  string
		cells []string
		want  frame.DataType
	}{
		{"ints", []string{"1", "-2", ""}, frame.Int64},
		{"floats", []string{"1", "2.5", "1e3"}, frame.Float64},
		{"thousands separator", []string{"1,234.56"}, frame.String},
		{"bools", []string{"true", "FALSE"}, frame.Bool},
		{"all empty", []string{"", " "}, frame.String},
		{"mixed", []string{"1", "abc"}, frame.String},
		{"not a number", []string{"NaN", "inf"}, frame.String},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, inferType(tt.cells))
		})
	}
}

func TestNormalizeHeader(t *testing.T) {
	assert.Equal(t,
		[]string{"a", "column_2", "a_duplicated_0", "a_duplicated_1"},
		normalizeHeader([]string{" a ", "", "a", "a"}),
	)
}

func TestScan_Parquet(t *testing.T) {
	p := filepath.Join(t.TempDir(), "data.parquet")

	mem := memory.NewGoAllocator()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "date", Type: arrow.FixedWidthTypes.Timestamp_us, Nullable: true},
		{Name: "label", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "amount", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	}, nil)
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	d1 := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	d2 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	b.Field(0).(*array.TimestampBuilder).AppendValues([]arrow.Timestamp{arrow.Timestamp(d1.UnixMicro()), arrow.Timestamp(d2.UnixMicro())}, nil)
	b.Field(1).(*array.StringBuilder).AppendValues([]string{"Coffee", ""}, []bool{true, false})
	b.Field(2).(*array.Float64Builder).AppendValues([]float64{-5, 1200}, nil)
	rec := b.NewRecord()
	defer rec.Release()

	tbl := array.NewTableFromRecords(schema, []arrow.Record{rec})
	defer tbl.Release()

	out, err := os.Create(p)
	require.NoError(t, err)
	// WriteTable closes out.
	require.NoError(t, pqarrow.WriteTable(tbl, out, 1024, nil, pqarrow.DefaultWriterProps()))

	lf, err := Scan([]string{p})
	require.NoError(t, err)
	f, err := lf.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, frame.Schema{
		{Name: "date", Type: frame.Datetime},
		{Name: "label", Type: frame.String},
		{Name: "amount", Type: frame.Float64},
	}, f.Schema())
	assert.Equal(t, []any{d1, d2}, mustColumn(t, f, "date").Values())
	assert.Equal(t, []any{"Coffee", nil}, mustColumn(t, f, "label").Values())
	assert.Equal(t, []any{-5.0, 1200.0}, mustColumn(t, f, "amount").Values())
}

func TestScan_XLSX(t *testing.T) {
	p := filepath.Join(t.TempDir(), "data.xlsx")

	wb := excelize.NewFile()
	sheet := wb.GetSheetName(0)
	require.NoError(t, wb.SetSheetRow(sheet, "A1", &[]any{"Date", "Label", "Amount"}))
	require.NoError(t, wb.SetSheetRow(sheet, "A2", &[]any{"2024-01-01", "Coffee", 5.5}))
	require.NoError(t, wb.SetSheetRow(sheet, "A3", &[]any{"2024-01-02", "Rent", 1200}))
	require.NoError(t, wb.SaveAs(p))
	require.NoError(t, wb.Close())

	lf, err := Scan([]string{p})
	require.NoError(t, err)
	f, err := lf.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"Date", "Label", "Amount"}, f.Schema().Names())
	assert.Equal(t, []any{5.5, 1200.0}, mustColumn(t, f, "Amount").Values())
	assert.Equal(t, []any{"Coffee", "Rent"}, mustColumn(t, f, "Label").Values())
}

func mustColumn(t *testing.T, f *frame.Frame, name string) *frame.Series {
	t.Helper()
	s, err := f.Column(name)
	require.NoError(t, err)
	return s
}
