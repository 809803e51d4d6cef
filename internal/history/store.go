package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Outcome classifies a scrobble attempt.
type Outcome string

const (
	OutcomeUpdated   Outcome = "updated"
	OutcomeCompleted Outcome = "completed"
	OutcomeRejected  Outcome = "rejected"
	OutcomeNoMatch   Outcome = "no_match"
	OutcomeFailed    Outcome = "failed"
)

// Record is one journal row.
type Record struct {
	ID            int64     `json:"id"`
	RecordedAt    time.Time `json:"recorded_at"`
	UserID        int64     `json:"user_id"`
	RateID        int64     `json:"rate_id,omitempty"`
	ItemID        int64     `json:"item_id,omitempty"`
	ItemName      string    `json:"item_name,omitempty"`
	ObservedTitle string    `json:"observed_title,omitempty"`
	Episode       int       `json:"episode"`
	Outcome       Outcome   `json:"outcome"`
	NewStatus     string    `json:"new_status,omitempty"`
	Message       string    `json:"message,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// Stats aggregates outcome counts across the whole journal.
type Stats struct {
	Total     int             `json:"total"`
	ByOutcome map[Outcome]int `json:"by_outcome"`
	Last      time.Time       `json:"last,omitzero"`
}

// Store manages the journal database.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
	defaultRecentLimit      = 20
)

// Open creates or connects to the journal at path.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("history path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, now: time.Now}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record appends rec to the journal and returns it with ID and timestamp set.
func (s *Store) Record(ctx context.Context, rec Record) (Record, error) {
	if rec.Outcome == "" {
		return Record{}, errors.New("history record requires an outcome")
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = s.now()
	}
	rec.RecordedAt = rec.RecordedAt.UTC()

	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx,
			`INSERT INTO scrobbles (
                recorded_at, user_id, rate_id, item_id, item_name, observed_title,
                episode, outcome, new_status, message, correlation_id
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.RecordedAt.Format(time.RFC3339Nano),
			rec.UserID,
			rec.RateID,
			rec.ItemID,
			rec.ItemName,
			rec.ObservedTitle,
			rec.Episode,
			string(rec.Outcome),
			rec.NewStatus,
			rec.Message,
			rec.CorrelationID,
		)
		return execErr
	})
	if err != nil {
		return Record{}, fmt.Errorf("insert history record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Record{}, fmt.Errorf("history record id: %w", err)
	}
	rec.ID = id
	return rec, nil
}

// Recent returns up to limit records, newest first. A non-positive limit uses
// a default of 20.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, recorded_at, user_id, rate_id, item_id, item_name, observed_title,
                episode, outcome, new_status, message, correlation_id
         FROM scrobbles ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}

// Stats aggregates outcome counts.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{ByOutcome: make(map[Outcome]int)}
	rows, err := s.db.QueryContext(ctx, "SELECT outcome, COUNT(1) FROM scrobbles GROUP BY outcome")
	if err != nil {
		return stats, fmt.Errorf("query history stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			outcome string
			count   int
		)
		if err := rows.Scan(&outcome, &count); err != nil {
			return stats, fmt.Errorf("scan history stats: %w", err)
		}
		stats.ByOutcome[Outcome(outcome)] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("iterate history stats: %w", err)
	}

	var last sql.NullString
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(recorded_at) FROM scrobbles").Scan(&last); err != nil {
		return stats, fmt.Errorf("query last scrobble: %w", err)
	}
	if last.Valid {
		if ts, err := time.Parse(time.RFC3339Nano, last.String); err == nil {
			stats.Last = ts
		}
	}
	return stats, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		rec        Record
		recordedAt string
		outcome    string
	)
	if err := row.Scan(
		&rec.ID,
		&recordedAt,
		&rec.UserID,
		&rec.RateID,
		&rec.ItemID,
		&rec.ItemName,
		&rec.ObservedTitle,
		&rec.Episode,
		&outcome,
		&rec.NewStatus,
		&rec.Message,
		&rec.CorrelationID,
	); err != nil {
		return Record{}, fmt.Errorf("scan history record: %w", err)
	}
	rec.Outcome = Outcome(outcome)
	if ts, err := time.Parse(time.RFC3339Nano, recordedAt); err == nil {
		rec.RecordedAt = ts
	}
	return rec, nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
