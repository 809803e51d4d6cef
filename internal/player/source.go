package player

import (
	"context"
	"strings"
)

// Window is one candidate player window or process.
type Window struct {
	PID     int      `json:"pid"`
	Exe     string   `json:"exe"`
	Title   string   `json:"title,omitempty"`
	Cmdline []string `json:"cmdline,omitempty"`
}

// WindowSource enumerates candidate player windows.
type WindowSource interface {
	ListCandidateWindows(ctx context.Context) ([]Window, error)
}

// SourceFunc adapts a function to WindowSource.
type SourceFunc func(ctx context.Context) ([]Window, error)

func (f SourceFunc) ListCandidateWindows(ctx context.Context) ([]Window, error) { return f(ctx) }

// Combine merges several sources. Windows sharing a PID are folded together,
// keeping the first non-empty title and command line. A failing source is
// skipped as long as another source succeeds.
func Combine(sources ...WindowSource) WindowSource {
	return SourceFunc(func(ctx context.Context) ([]Window, error) {
		var (
			out      []Window
			byPID    = make(map[int]int)
			firstErr error
			okCount  int
		)
		for _, src := range sources {
			if src == nil {
				continue
			}
			windows, err := src.ListCandidateWindows(ctx)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			okCount++
			for _, w := range windows {
				idx, seen := byPID[w.PID]
				if !seen || w.PID == 0 {
					byPID[w.PID] = len(out)
					out = append(out, w)
					continue
				}
				merged := out[idx]
				if strings.TrimSpace(merged.Title) == "" {
					merged.Title = w.Title
				}
				if len(merged.Cmdline) == 0 {
					merged.Cmdline = w.Cmdline
				}
				if merged.Exe == "" {
					merged.Exe = w.Exe
				}
				out[idx] = merged
			}
		}
		if okCount == 0 && firstErr != nil {
			return nil, firstErr
		}
		return out, nil
	})
}
