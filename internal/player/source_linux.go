//go:build linux

package player

import "log/slog"

// DefaultSource returns the platform window source. MPRIS titles are merged
// with procfs command lines when enabled.
func DefaultSource(mpris bool, logger *slog.Logger) WindowSource {
	procs := NewProcSource()
	if !mpris {
		return procs
	}
	return Combine(NewMPRISSource(logger), procs)
}
