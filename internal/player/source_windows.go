//go:build windows

package player

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                   = windows.NewLazySystemDLL("user32.dll")
	procGetWindowTextW       = user32.NewProc("GetWindowTextW")
	procGetWindowTextLengthW = user32.NewProc("GetWindowTextLengthW")

	enumMu      sync.Mutex
	enumHandles []windows.HWND
	// EnumWindows callbacks are a scarce resource; one is shared by all calls.
	enumCallback = windows.NewCallback(func(hwnd windows.HWND, _ uintptr) uintptr {
		enumHandles = append(enumHandles, hwnd)
		return 1
	})
)

// WindowsSource lists visible top-level windows with their owning process.
type WindowsSource struct{}

// DefaultSource returns the EnumWindows source; MPRIS does not exist here.
func DefaultSource(bool, *slog.Logger) WindowSource {
	return WindowsSource{}
}

func (WindowsSource) ListCandidateWindows(ctx context.Context) ([]Window, error) {
	enumMu.Lock()
	enumHandles = enumHandles[:0]
	err := windows.EnumWindows(enumCallback, nil)
	handles := append([]windows.HWND(nil), enumHandles...)
	enumMu.Unlock()
	if err != nil {
		return nil, err
	}

	exeByPID := make(map[uint32]string)
	var out []Window
	for _, hwnd := range handles {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !windows.IsWindowVisible(hwnd) {
			continue
		}
		title := windowText(hwnd)
		if title == "" {
			continue
		}
		var pid uint32
		if _, err := windows.GetWindowThreadProcessId(hwnd, &pid); err != nil || pid == 0 {
			continue
		}
		exe, ok := exeByPID[pid]
		if !ok {
			exe = processExe(pid)
			exeByPID[pid] = exe
		}
		if exe == "" {
			continue
		}
		out = append(out, Window{PID: int(pid), Exe: exe, Title: title})
	}
	return out, nil
}

func windowText(hwnd windows.HWND) string {
	n, _, _ := procGetWindowTextLengthW.Call(uintptr(hwnd))
	if n == 0 {
		return ""
	}
	buf := make([]uint16, n+1)
	procGetWindowTextW.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	return windows.UTF16ToString(buf)
}

func processExe(pid uint32) string {
	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return ""
	}
	defer windows.CloseHandle(handle)
	buf := make([]uint16, windows.MAX_LONG_PATH)
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(handle, 0, &buf[0], &size); err != nil {
		return ""
	}
	return filepath.Base(windows.UTF16ToString(buf[:size]))
}
