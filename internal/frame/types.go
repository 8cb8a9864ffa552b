package frame

import (
	"fmt"
	"strings"
)

// DataType is the logical type of a column.
//
// Values are stored as: Bool -> bool, Int64 -> int64, Float64 -> float64,
// String -> string, Datetime -> time.Time (microsecond precision, UTC).
// A nil value is null regardless of type.
type DataType uint8

const (
	Null DataType = iota
	Bool
	Int64
	Float64
	String
	Datetime
)

var typeNames = [...]string{"null", "bool", "i64", "f64", "str", "datetime[us]"}

func (t DataType) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("DataType(%d)", uint8(t))
}

// IsTextual reports whether values of the type are strings.
func (t DataType) IsTextual() bool { return t == String }

// IsNumeric reports whether values of the type are integers or floats.
func (t DataType) IsNumeric() bool { return t == Int64 || t == Float64 }

// Field is a named, typed column in a Schema.
type Field struct {
	Name string
	Type DataType
}

// Schema is the ordered list of columns of a frame.
type Schema []Field

// Names returns the column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// Get returns the type of the named column.
func (s Schema) Get(name string) (DataType, bool) {
	for _, f := range s {
		if f.Name == name {
			return f.Type, true
		}
	}
	return Null, false
}

// Has reports whether the schema contains the named column.
func (s Schema) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Equal reports whether both schemas have the same columns in the same order.
func (s Schema) Equal(other Schema) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

func (s Schema) String() string {
	parts := make([]string, len(s))
	for i, f := range s {
		parts[i] = f.Name + ": " + f.Type.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
