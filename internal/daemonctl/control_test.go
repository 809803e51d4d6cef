package daemonctl

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"shikiwatch/internal/history"
	"shikiwatch/internal/testsupport"
)

func TestProcessInfo(t *testing.T) {
	dir := t.TempDir()
	pidPath := filepath.Join(dir, "shikiwatch.pid")

	alive, pid, err := ProcessInfo(pidPath)
	if err != nil || alive || pid != 0 {
		t.Fatalf("missing pid file = %v %d %v", alive, pid, err)
	}

	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	alive, pid, err = ProcessInfo(pidPath)
	if err != nil || !alive || pid != os.Getpid() {
		t.Fatalf("own pid = %v %d %v", alive, pid, err)
	}

	if err := os.WriteFile(pidPath, []byte("not-a-pid"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := ProcessInfo(pidPath); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestStopAndTerminateNotRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := StopAndTerminate(cfg, 0); !errors.Is(err, ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestForceKillRefusesSelf(t *testing.T) {
	dir := t.TempDir()
	pidPath := filepath.Join(dir, "shikiwatch.pid")
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ForceKillProcess(pidPath, "", 0); err == nil {
		t.Fatal("expected refusal to kill current process")
	}
	if _, err := ForceKillProcess(filepath.Join(dir, "missing.pid"), "", 0); err == nil {
		t.Fatal("expected error without a pid")
	}
}

func TestBuildStatusSnapshotOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Record(context.Background(), history.Record{
		UserID:   testsupport.TestUserID,
		ItemName: "Mushishi",
		Episode:  5,
		Outcome:  history.OutcomeUpdated,
		Message:  "Updated Mushishi to episode 5",
	}); err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := listener.Addr().String()
	_ = listener.Close()

	status, err := BuildStatusSnapshot(context.Background(), NewClient(addr, "", nil), cfg)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot: %v", err)
	}
	if status.Running || status.UserID != testsupport.TestUserID {
		t.Fatalf("unexpected offline status: %+v", status)
	}
	if status.Cache.Exists {
		t.Fatal("no list cache should exist yet")
	}
	if status.LastScrobble == nil || !status.LastScrobble.Success || status.LastScrobble.Message != "Updated Mushishi to episode 5" {
		t.Fatalf("unexpected last scrobble: %+v", status.LastScrobble)
	}
}
