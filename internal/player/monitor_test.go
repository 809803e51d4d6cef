package player

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"testing/synctest"
	"time"
)

type fakeSource struct {
	mu      sync.Mutex
	windows []Window
	err     error
}

func (f *fakeSource) set(windows ...Window) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windows = windows
	f.err = nil
}

func (f *fakeSource) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeSource) ListCandidateWindows(context.Context) ([]Window, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return slices.Clone(f.windows), nil
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

func (r *recorder) last() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func mpvWindow(title string) Window {
	return Window{PID: 10, Exe: "mpv", Title: title + " - mpv"}
}

func expectKinds(t *testing.T, rec *recorder, want ...EventKind) {
	t.Helper()
	if got := rec.kinds(); !slices.Equal(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
}

func TestMonitorSessionLifecycle(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		src := &fakeSource{}
		src.set(mpvWindow("[Group] Show Name - 05 [1080p].mkv"))
		rec := &recorder{}
		m := New(src, rec.handle, WithPlayers([]string{"mpv"}), WithInterval(5*time.Second), WithMinWatch(time.Minute))

		if err := m.Start(context.Background()); err != nil {
			t.Fatalf("Start: %v", err)
		}
		defer m.Stop()
		synctest.Wait()
		expectKinds(t, rec, EventDetected)
		detected := rec.last()
		if detected.Candidate.SeriesNameRaw != "Show Name" || detected.Candidate.Episode != 5 {
			t.Fatalf("unexpected candidate %+v", detected.Candidate)
		}
		if detected.Session.SessionID == "" || detected.Session.ProcessID != 10 {
			t.Fatalf("unexpected session %+v", detected.Session)
		}

		time.Sleep(55 * time.Second)
		synctest.Wait()
		expectKinds(t, rec, EventDetected)

		time.Sleep(5 * time.Second)
		synctest.Wait()
		expectKinds(t, rec, EventDetected, EventWatched)
		watched := rec.last()
		if watched.Elapsed != time.Minute || watched.Session.SessionID != detected.Session.SessionID {
			t.Fatalf("unexpected watched event %+v", watched)
		}

		time.Sleep(30 * time.Second)
		synctest.Wait()
		expectKinds(t, rec, EventDetected, EventWatched)

		src.set(mpvWindow("[Group] Show Name - 06 [1080p].mkv"))
		time.Sleep(5 * time.Second)
		synctest.Wait()
		expectKinds(t, rec, EventDetected, EventWatched, EventFileChanged, EventDetected)
		if ep := rec.last().Candidate.Episode; ep != 6 {
			t.Fatalf("expected episode 6 after file change, got %d", ep)
		}

		src.set()
		time.Sleep(5 * time.Second)
		synctest.Wait()
		expectKinds(t, rec, EventDetected, EventWatched, EventFileChanged, EventDetected, EventClosed, EventPlayerClosed)
		if len(m.Sessions()) != 0 {
			t.Fatalf("sessions not dropped: %+v", m.Sessions())
		}
	})
}

func TestMonitorRewatchAfterReopenFiresAgain(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		src := &fakeSource{}
		rec := &recorder{}
		m := New(src, rec.handle, WithPlayers([]string{"mpv"}), WithMinWatch(10*time.Second))
		ctx := context.Background()

		src.set(mpvWindow("Mushishi - 07.mkv"))
		m.Poll(ctx)
		time.Sleep(10 * time.Second)
		m.Poll(ctx)
		src.set()
		m.Poll(ctx)
		src.set(mpvWindow("Mushishi - 07.mkv"))
		m.Poll(ctx)
		time.Sleep(10 * time.Second)
		m.Poll(ctx)

		expectKinds(t, rec,
			EventDetected, EventWatched, EventClosed, EventPlayerClosed,
			EventDetected, EventWatched)
	})
}

func TestMonitorSameFileInTwoPlayersFiresOnce(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		src := &fakeSource{}
		rec := &recorder{}
		m := New(src, rec.handle, WithPlayers([]string{"mpv", "vlc"}), WithMinWatch(10*time.Second))
		ctx := context.Background()

		src.set(
			Window{PID: 1, Exe: "mpv", Title: "Mushishi - 07.mkv - mpv"},
			Window{PID: 2, Exe: "vlc", Title: "Mushishi - 07.mkv - VLC media player"},
		)
		m.Poll(ctx)
		time.Sleep(10 * time.Second)
		m.Poll(ctx)

		expectKinds(t, rec, EventDetected, EventDetected, EventWatched)
	})
}

func TestMonitorFiltersAndFallbacks(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		src := &fakeSource{}
		rec := &recorder{}
		m := New(src, rec.handle, WithPlayers([]string{"PotPlayerMini64.exe", "vlc"}))

		src.set(
			Window{PID: 1, Exe: "firefox", Title: "Show - 01.mkv"},
			Window{PID: 2, Exe: `C:\Program Files\DAUM\PotPlayer\PotPlayerMini64.exe`, Title: "Frieren - 12.mp4 - PotPlayer"},
			Window{PID: 3, Exe: "vlc", Cmdline: []string{"vlc", "--fullscreen", "/media/anime/Mob Psycho 100 - 03.mkv"}},
			Window{PID: 4, Exe: "vlc", Title: "VLC media player"},
			Window{PID: 5, Exe: "potplayermini64", Title: "holiday_video"},
		)
		m.Poll(context.Background())

		expectKinds(t, rec, EventDetected, EventDetected)
		sessions := m.Sessions()
		if len(sessions) != 3 {
			t.Fatalf("expected sessions for pids 2, 3 and 5, got %+v", sessions)
		}
		if sessions[1].FilePath != "/media/anime/Mob Psycho 100 - 03.mkv" || sessions[1].ObservedTitle != "Mob Psycho 100 - 03" {
			t.Fatalf("command line fallback not used: %+v", sessions[1])
		}
		if sessions[0].ObservedTitle != "Frieren - 12.mp4" {
			t.Fatalf("player suffix not trimmed: %q", sessions[0].ObservedTitle)
		}
	})
}

func TestMonitorCancelScrobble(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		src := &fakeSource{}
		rec := &recorder{}
		m := New(src, rec.handle, WithPlayers([]string{"mpv"}), WithMinWatch(10*time.Second))
		ctx := context.Background()

		src.set(mpvWindow("Mushishi - 07.mkv"))
		m.Poll(ctx)
		if n := m.CancelScrobble(); n != 1 {
			t.Fatalf("CancelScrobble = %d, want 1", n)
		}
		time.Sleep(20 * time.Second)
		m.Poll(ctx)
		expectKinds(t, rec, EventDetected)
		if n := m.CancelScrobble(); n != 0 {
			t.Fatalf("second CancelScrobble = %d, want 0", n)
		}
	})
}

func TestMonitorSourceErrorKeepsState(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		src := &fakeSource{}
		rec := &recorder{}
		m := New(src, rec.handle, WithPlayers([]string{"mpv"}))
		ctx := context.Background()

		src.set(mpvWindow("Mushishi - 07.mkv"))
		m.Poll(ctx)
		src.fail(errors.New("bus gone"))
		m.Poll(ctx)
		m.Poll(ctx)

		expectKinds(t, rec, EventDetected)
		if len(m.Sessions()) != 1 {
			t.Fatal("a failed poll must not drop sessions")
		}
	})
}

func TestMonitorStartStop(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		m := New(&fakeSource{}, nil, WithPlayers([]string{"mpv"}))
		if err := m.Start(context.Background()); err != nil {
			t.Fatalf("Start: %v", err)
		}
		if err := m.Start(context.Background()); err == nil {
			t.Fatal("expected error on second Start")
		}
		if !m.Running() {
			t.Fatal("expected Running after Start")
		}
		m.Stop()
		m.Stop()
		if m.Running() {
			t.Fatal("expected not running after Stop")
		}
	})

	if err := New(nil, nil).Start(context.Background()); err == nil {
		t.Fatal("expected error without a source")
	}
}
