package source

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/finwrap-dev/finwrap/internal/frame"
)

// Kind is a supported source file family.
type Kind string

const (
	KindCSV         Kind = "csv"
	KindParquet     Kind = "parquet"
	KindSpreadsheet Kind = "spreadsheet"
)

var extensions = map[string]Kind{
	".csv":     KindCSV,
	".parquet": KindParquet,
	".xlsx":    KindSpreadsheet,
	".xls":     KindSpreadsheet,
}

var (
	// ErrNoFiles is returned when an account lists no file paths.
	ErrNoFiles = errors.New("no source files")
	// ErrMixedExtensions is returned when the paths of one account do not
	// share a single extension.
	ErrMixedExtensions = errors.New("source files must share one extension")
)

// UnsupportedTypeError reports a file extension with no loader.
type UnsupportedTypeError struct {
	Path string
	Ext  string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported file type %q for %s", e.Ext, e.Path)
}

// Loader reads every path into one frame. All paths share an extension.
type Loader interface {
	Kind() Kind
	Load(ctx context.Context, paths []string) (*frame.Frame, error)
}

// Registry binds each Kind to its loader.
type Registry struct {
	loaders map[Kind]Loader
}

// NewRegistry creates an empty loader registry.
func NewRegistry() *Registry {
	return &Registry{loaders: make(map[Kind]Loader)}
}

// Register adds a loader. Panics on duplicate kind.
func (r *Registry) Register(l Loader) {
	if _, ok := r.loaders[l.Kind()]; ok {
		panic("duplicate loader kind: " + string(l.Kind()))
	}
	r.loaders[l.Kind()] = l
}

// Get returns the loader for kind, or nil.
func (r *Registry) Get(kind Kind) Loader {
	return r.loaders[kind]
}

// DefaultRegistry returns a registry with all built-in loaders.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&CSVLoader{})
	r.Register(&ParquetLoader{})
	r.Register(&SpreadsheetLoader{})
	return r
}

// Detect returns the Kind shared by all paths.
func Detect(paths []string) (Kind, error) {
	if len(paths) == 0 {
		return "", ErrNoFiles
	}
	var first string
	for i, p := range paths {
		ext := strings.ToLower(filepath.Ext(p))
		if _, ok := extensions[ext]; !ok {
			return "", &UnsupportedTypeError{Path: p, Ext: ext}
		}
		if i == 0 {
			first = ext
		} else if ext != first {
			return "", fmt.Errorf("%w: %s is %q, %s is %q", ErrMixedExtensions, paths[0], first, p, ext)
		}
	}
	return extensions[first], nil
}

// Scan validates paths and returns a lazy source over them. Files are read
// at most once, the first time the schema or the data is requested.
func (r *Registry) Scan(paths []string) (*frame.LazyFrame, error) {
	kind, err := Detect(paths)
	if err != nil {
		return nil, err
	}
	l := r.Get(kind)
	if l == nil {
		return nil, fmt.Errorf("no loader registered for %s", kind)
	}

	files := append([]string(nil), paths...)
	var (
		mu     sync.Mutex
		loaded *frame.Frame
	)
	load := func(ctx context.Context) (*frame.Frame, error) {
		mu.Lock()
		defer mu.Unlock()
		if loaded != nil {
			return loaded, nil
		}
		f, err := l.Load(ctx, files)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", strings.Join(files, ", "), err)
		}
		loaded = f
		return f, nil
	}

	return frame.Scan(
		func(ctx context.Context) (frame.Schema, error) {
			f, err := load(ctx)
			if err != nil {
				return nil, err
			}
			return f.Schema(), nil
		},
		load,
	), nil
}

// Scan is DefaultRegistry().Scan.
func Scan(paths []string) (*frame.LazyFrame, error) {
	return DefaultRegistry().Scan(paths)
}
