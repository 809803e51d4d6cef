package player

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// ProcSource lists processes from a procfs tree. It carries no window titles;
// the playing file is recovered from the command line.
type ProcSource struct {
	fs   afero.Fs
	root string
}

// NewProcSource reads /proc on the host filesystem.
func NewProcSource() *ProcSource {
	return &ProcSource{fs: afero.NewOsFs(), root: "/proc"}
}

// NewProcSourceFs reads a procfs layout rooted at root on fsys.
func NewProcSourceFs(fsys afero.Fs, root string) *ProcSource {
	return &ProcSource{fs: fsys, root: root}
}

func (p *ProcSource) ListCandidateWindows(ctx context.Context) ([]Window, error) {
	entries, err := afero.ReadDir(p.fs, p.root)
	if err != nil {
		return nil, err
	}
	var out []Window
	for _, entry := range entries {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !entry.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(entry.Name())
		if err != nil || pid <= 0 {
			continue
		}
		dir := filepath.Join(p.root, entry.Name())
		raw, err := afero.ReadFile(p.fs, filepath.Join(dir, "cmdline"))
		if err != nil || len(raw) == 0 {
			continue
		}
		args := strings.Split(strings.TrimRight(string(raw), "\x00"), "\x00")
		exe := ""
		if comm, err := afero.ReadFile(p.fs, filepath.Join(dir, "comm")); err == nil {
			exe = strings.TrimSpace(string(comm))
		}
		if exe == "" && len(args) > 0 {
			exe = filepath.Base(args[0])
		}
		out = append(out, Window{PID: pid, Exe: exe, Cmdline: args})
	}
	return out, nil
}
