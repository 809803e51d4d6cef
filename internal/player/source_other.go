//go:build !linux && !windows

package player

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
)

// DefaultSource returns a source that reports player detection as unsupported.
func DefaultSource(bool, *slog.Logger) WindowSource {
	return SourceFunc(func(context.Context) ([]Window, error) {
		return nil, fmt.Errorf("player detection is not supported on %s", runtime.GOOS)
	})
}
