//go:build linux

package player

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"

	"shikiwatch/internal/logging"
)

const (
	mprisPrefix     = "org.mpris.MediaPlayer2."
	mprisObjectPath = "/org/mpris/MediaPlayer2"
	mprisPlayer     = "org.mpris.MediaPlayer2.Player"
)

// MPRISSource reads the current track title of MPRIS-capable players over the
// D-Bus session bus.
type MPRISSource struct {
	logger *slog.Logger

	mu   sync.Mutex
	conn *dbus.Conn
}

// NewMPRISSource creates a source that connects lazily on first use.
func NewMPRISSource(logger *slog.Logger) *MPRISSource {
	return &MPRISSource{logger: logging.NewComponentLogger(logger, "mpris")}
}

func (m *MPRISSource) connection() (*dbus.Conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != nil && m.conn.Connected() {
		return m.conn, nil
	}
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, err
	}
	m.conn = conn
	return conn, nil
}

// Close releases the bus connection.
func (m *MPRISSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return nil
	}
	err := m.conn.Close()
	m.conn = nil
	return err
}

func (m *MPRISSource) ListCandidateWindows(ctx context.Context) ([]Window, error) {
	conn, err := m.connection()
	if err != nil {
		return nil, err
	}
	var names []string
	if err := conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		return nil, err
	}
	var out []Window
	for _, name := range names {
		if !strings.HasPrefix(name, mprisPrefix) {
			continue
		}
		obj := conn.Object(name, mprisObjectPath)
		status, err := obj.GetProperty(mprisPlayer + ".PlaybackStatus")
		if err == nil {
			if s, _ := status.Value().(string); s == "Stopped" {
				continue
			}
		}
		metaVariant, err := obj.GetProperty(mprisPlayer + ".Metadata")
		if err != nil {
			m.logger.Debug("mpris metadata unavailable", logging.String("bus_name", name), logging.Error(err))
			continue
		}
		meta, _ := metaVariant.Value().(map[string]dbus.Variant)
		var pid uint32
		if err := conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.GetConnectionUnixProcessID", 0, name).Store(&pid); err != nil {
			m.logger.Debug("mpris pid lookup failed", logging.String("bus_name", name), logging.Error(err))
		}
		out = append(out, windowFromMetadata(name, pid, meta))
	}
	return out, nil
}

// windowFromMetadata maps an MPRIS bus name and track metadata to a Window.
// The player name is the first bus-name segment after the MPRIS prefix.
func windowFromMetadata(busName string, pid uint32, meta map[string]dbus.Variant) Window {
	player := strings.TrimPrefix(busName, mprisPrefix)
	if idx := strings.IndexByte(player, '.'); idx >= 0 {
		player = player[:idx]
	}
	w := Window{PID: int(pid), Exe: player}
	if v, ok := meta["xesam:title"]; ok {
		w.Title, _ = v.Value().(string)
	}
	if v, ok := meta["xesam:url"]; ok {
		if raw, _ := v.Value().(string); raw != "" {
			if u, err := url.Parse(raw); err == nil && u.Scheme == "file" {
				w.Cmdline = []string{player, u.Path}
			}
		}
	}
	return w
}
