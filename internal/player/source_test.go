package player

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
)

func TestTrimPlayerSuffix(t *testing.T) {
	tests := map[string]string{
		"Show - 01.mkv - mpv":                    "Show - 01.mkv",
		"Show - 01.mkv - VLC media player":       "Show - 01.mkv",
		"[SubsPlease] Show - 02.mkv - PotPlayer": "[SubsPlease] Show - 02.mkv",
		"Show - 03":                              "Show - 03",
		"  mpv  ":                                "mpv",
	}
	for in, want := range tests {
		if got := TrimPlayerSuffix(in); got != want {
			t.Errorf("TrimPlayerSuffix(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCurrentFile(t *testing.T) {
	title, path := currentFile(Window{Exe: "PotPlayerMini64.exe", Title: "PotPlayer", Cmdline: []string{"potplayer", `D:\anime\Show - 04.mkv`}})
	if title != "Show - 04" || path != `D:\anime\Show - 04.mkv` {
		t.Fatalf("idle title should fall back to cmdline, got %q %q", title, path)
	}
	if title, _ := currentFile(Window{Exe: "mpv", Cmdline: []string{"mpv", "--no-config"}}); title != "" {
		t.Fatalf("expected no file, got %q", title)
	}
}

func TestProcSource(t *testing.T) {
	fsys := afero.NewMemMapFs()
	files := map[string]string{
		"/proc/100/cmdline": "mpv\x00--fs\x00/v/Show - 01.mkv\x00",
		"/proc/100/comm":    "mpv\n",
		"/proc/200/cmdline": "",
		"/proc/300/cmdline": "/usr/bin/vlc\x00/v/Other - 02.mkv\x00",
		"/proc/self/comm":   "bash\n",
	}
	for path, content := range files {
		if err := afero.WriteFile(fsys, path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}

	windows, err := NewProcSourceFs(fsys, "/proc").ListCandidateWindows(context.Background())
	if err != nil {
		t.Fatalf("ListCandidateWindows: %v", err)
	}
	if len(windows) != 2 {
		t.Fatalf("expected 2 processes, got %+v", windows)
	}
	byPID := map[int]Window{}
	for _, w := range windows {
		byPID[w.PID] = w
	}
	if w := byPID[100]; w.Exe != "mpv" || len(w.Cmdline) != 3 || w.Cmdline[2] != "/v/Show - 01.mkv" {
		t.Fatalf("unexpected mpv entry %+v", w)
	}
	if w := byPID[300]; w.Exe != "vlc" {
		t.Fatalf("exe should fall back to argv[0] basename, got %+v", w)
	}
}

func TestCombineMergesByPID(t *testing.T) {
	titles := SourceFunc(func(context.Context) ([]Window, error) {
		return []Window{{PID: 7, Exe: "mpv", Title: "Show - 01"}}, nil
	})
	procs := SourceFunc(func(context.Context) ([]Window, error) {
		return []Window{{PID: 7, Exe: "mpv", Cmdline: []string{"mpv", "a.mkv"}}, {PID: 8, Exe: "vlc"}}, nil
	})
	broken := SourceFunc(func(context.Context) ([]Window, error) { return nil, errors.New("down") })

	windows, err := Combine(titles, broken, procs).ListCandidateWindows(context.Background())
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if len(windows) != 2 {
		t.Fatalf("expected 2 merged windows, got %+v", windows)
	}
	if windows[0].Title != "Show - 01" || len(windows[0].Cmdline) != 2 {
		t.Fatalf("windows for pid 7 not merged: %+v", windows[0])
	}

	if _, err := Combine(broken).ListCandidateWindows(context.Background()); err == nil {
		t.Fatal("expected error when every source fails")
	}
}
