package listcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/afero"

	"shikiwatch/internal/fileutil"
	"shikiwatch/internal/logging"
	"shikiwatch/internal/services"
	"shikiwatch/internal/watchlist"
)

// DefaultMaxAge is the age after which a list document is considered stale.
const DefaultMaxAge = 24 * time.Hour

// Store provides per-user atomic access to the cached list documents.
type Store struct {
	dir       string
	fs        afero.Fs
	fileLocks bool
	logger    *slog.Logger
	now       func() time.Time

	mu    sync.Mutex
	users map[string]*sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithFs swaps the backing filesystem. File locks are only taken on the OS
// filesystem.
func WithFs(fsys afero.Fs) Option {
	return func(s *Store) {
		if fsys != nil {
			s.fs = fsys
			_, s.fileLocks = fsys.(*afero.OsFs)
		}
	}
}

// WithClock overrides the time source used for timestamps and age checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a store rooted at dir.
func New(dir string, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		dir:       dir,
		fs:        afero.NewOsFs(),
		fileLocks: true,
		logger:    logging.NewComponentLogger(logger, "listcache"),
		now:       time.Now,
		users:     make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the cache directory.
func (s *Store) Dir() string { return s.dir }

// ListPath returns the list document path for a user and kind.
func (s *Store) ListPath(userID int64, kind watchlist.Kind) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_list_%d.json", kindOrAnime(kind), userID))
}

// DetailsPath returns the detail document path for a user and kind.
func (s *Store) DetailsPath(userID int64, kind watchlist.Kind) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_details_%d.json", kindOrAnime(kind), userID))
}

func kindOrAnime(kind watchlist.Kind) watchlist.Kind {
	if kind == "" {
		return watchlist.KindAnime
	}
	return kind
}

// lockUser serializes load-modify-write for one document and takes the
// advisory file lock next to it.
func (s *Store) lockUser(path string) (func(), error) {
	s.mu.Lock()
	m, ok := s.users[path]
	if !ok {
		m = &sync.Mutex{}
		s.users[path] = m
	}
	s.mu.Unlock()

	m.Lock()
	if !s.fileLocks {
		return m.Unlock, nil
	}
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		m.Unlock()
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	fl := flock.New(path + ".lock")
	if err := fl.Lock(); err != nil {
		m.Unlock()
		return nil, fmt.Errorf("lock %s: %w", filepath.Base(path), err)
	}
	return func() {
		_ = fl.Unlock()
		m.Unlock()
	}, nil
}

// Load returns the user's list document. It reports false when the file is
// missing, unreadable, malformed, or belongs to another user.
func (s *Store) Load(userID int64, kind watchlist.Kind) (*watchlist.CacheDocument, bool) {
	path := s.ListPath(userID, kind)
	unlock, err := s.lockUser(path)
	if err != nil {
		s.warnLoad(path, err)
		return nil, false
	}
	defer unlock()
	return s.loadLocked(path, userID)
}

func (s *Store) loadLocked(path string, userID int64) (*watchlist.CacheDocument, bool) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.warnLoad(path, err)
		}
		return nil, false
	}
	var doc watchlist.CacheDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		s.warnLoad(path, fmt.Errorf("parse cache file: %w", err))
		return nil, false
	}
	if doc.UserID != userID {
		logging.WarnWithContext(s.logger, "list cache belongs to another user", "list_cache_user_mismatch",
			logging.String("path", path),
			logging.Int64(logging.FieldUserID, userID),
			logging.Int64("cached_user_id", doc.UserID),
			logging.String(logging.FieldErrorHint, "the list will be fetched again"),
			logging.String(logging.FieldImpact, "cached list ignored"),
		)
		return nil, false
	}
	if err := doc.Validate(); err != nil {
		s.warnLoad(path, err)
		return nil, false
	}
	if doc.Groups == nil {
		doc.Groups = make(map[watchlist.Status][]watchlist.TrackedEntry)
	}
	return &doc, true
}

func (s *Store) warnLoad(path string, err error) {
	logging.WarnWithContext(s.logger, "failed to load list cache", "list_cache_load_failed",
		logging.String("path", path),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "the list will be fetched again; clear the cache if this repeats"),
		logging.String(logging.FieldImpact, "cached list ignored"),
	)
}

// ReplaceAll overwrites the user's document, stamping it with the current time.
func (s *Store) ReplaceAll(doc *watchlist.CacheDocument) error {
	if doc == nil || doc.UserID <= 0 {
		return services.Wrap(services.ErrValidation, "listcache", "replace", "document requires a positive user id", nil)
	}
	if err := doc.Validate(); err != nil {
		return services.Wrap(services.ErrValidation, "listcache", "replace", "invalid document", err)
	}
	doc.Kind = kindOrAnime(doc.Kind)
	path := s.ListPath(doc.UserID, doc.Kind)
	unlock, err := s.lockUser(path)
	if err != nil {
		return err
	}
	defer unlock()

	if removed := fileutil.RemoveTempFiles(s.fs, path); removed > 0 {
		s.logger.Debug("removed stale temp files", logging.Int("count", removed))
	}
	doc.Timestamp = s.now()
	if err := fileutil.WriteJSONAtomic(s.fs, path, doc); err != nil {
		return fmt.Errorf("persist list cache: %w", err)
	}
	s.logger.Debug("list cache replaced",
		logging.Int64(logging.FieldUserID, doc.UserID),
		logging.String("kind", string(doc.Kind)),
		logging.Int("entry_count", doc.Count()),
	)
	return nil
}

// MergeUpdate applies fields to the entry with rateID and persists the result.
// It returns false without writing when the document or the entry is missing.
func (s *Store) MergeUpdate(userID int64, kind watchlist.Kind, rateID int64, fields watchlist.Fields) (watchlist.TrackedEntry, bool, error) {
	path := s.ListPath(userID, kind)
	unlock, err := s.lockUser(path)
	if err != nil {
		return watchlist.TrackedEntry{}, false, err
	}
	defer unlock()

	doc, ok := s.loadLocked(path, userID)
	if !ok {
		return watchlist.TrackedEntry{}, false, nil
	}
	updated, ok := doc.Update(rateID, fields)
	if !ok {
		return watchlist.TrackedEntry{}, false, nil
	}
	if err := fileutil.WriteJSONAtomic(s.fs, path, doc); err != nil {
		return watchlist.TrackedEntry{}, false, fmt.Errorf("persist list cache: %w", err)
	}
	s.logger.Debug("list cache entry updated",
		logging.Int64(logging.FieldUserID, userID),
		logging.Int64(logging.FieldRateID, rateID),
		logging.String("status", string(updated.Status)),
		logging.Int("progress", updated.Progress()),
	)
	return updated, true, nil
}

// InsertEntry adds a new entry to an existing document.
func (s *Store) InsertEntry(userID int64, kind watchlist.Kind, entry watchlist.TrackedEntry) error {
	path := s.ListPath(userID, kind)
	unlock, err := s.lockUser(path)
	if err != nil {
		return err
	}
	defer unlock()

	doc, ok := s.loadLocked(path, userID)
	if !ok {
		return services.Wrap(services.ErrNotFound, "listcache", "insert", "no cached list for user", nil)
	}
	if err := doc.Insert(entry); err != nil {
		return services.Wrap(services.ErrValidation, "listcache", "insert", "", err)
	}
	if err := fileutil.WriteJSONAtomic(s.fs, path, doc); err != nil {
		return fmt.Errorf("persist list cache: %w", err)
	}
	return nil
}

// IsFresh reports whether the user's document exists and is younger than maxAge.
// A non-positive maxAge means DefaultMaxAge.
func (s *Store) IsFresh(userID int64, kind watchlist.Kind, maxAge time.Duration) bool {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	doc, ok := s.Load(userID, kind)
	if !ok || doc.Timestamp.IsZero() {
		return false
	}
	return s.now().Sub(doc.Timestamp) < maxAge
}
