package bagels

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"

	"github.com/finwrap-dev/finwrap/internal/logger"
)

// BinaryNotFoundError is returned when the bagels executable cannot be run.
type BinaryNotFoundError struct {
	Binary string
	Err    error
}

func (e *BinaryNotFoundError) Error() string {
	return fmt.Sprintf("%s not found, check that bagels is installed: %v", e.Binary, e.Err)
}

func (e *BinaryNotFoundError) Unwrap() error { return e.Err }

// LocateDatabase asks bagels for its database path by running
// "<binary> locate database" and reading the last line of its output.
func LocateDatabase(ctx context.Context, binary string) (string, error) {
	log := logger.FromContext(ctx)
	log.Info().Str("binary", binary).Msg("locating bagels database")

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, "locate", "database")
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		var execErr *exec.Error
		var pathErr *fs.PathError
		if errors.As(err, &execErr) || (errors.As(err, &pathErr) && errors.Is(err, fs.ErrNotExist)) {
			log.Error().Err(err).Str("binary", binary).Msg("failed to locate bagels binary")
			return "", &BinaryNotFoundError{Binary: binary, Err: err}
		}
		return "", fmt.Errorf("%s locate database: %s: %w", binary, strings.TrimSpace(stderr.String()), err)
	}

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	path := strings.TrimSpace(lines[len(lines)-1])
	if path == "" {
		return "", fmt.Errorf("%s locate database: no path in output", binary)
	}
	log.Debug().Str("path", path).Msg("database located")
	return path, nil
}
