package listcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/afero"

	"shikiwatch/internal/fileutil"
	"shikiwatch/internal/logging"
	"shikiwatch/internal/watchlist"
)

// DetailsDocument is the persisted set of detail records for one user.
type DetailsDocument struct {
	UserID    int64                            `json:"user_id"`
	Kind      watchlist.Kind                   `json:"kind,omitempty"`
	Timestamp time.Time                        `json:"timestamp"`
	Items     map[int64]watchlist.DetailedInfo `json:"items"`
}

// LoadDetails returns the user's detail records, or false when absent or invalid.
func (s *Store) LoadDetails(userID int64, kind watchlist.Kind) (map[int64]watchlist.DetailedInfo, bool) {
	path := s.DetailsPath(userID, kind)
	unlock, err := s.lockUser(path)
	if err != nil {
		s.warnLoad(path, err)
		return nil, false
	}
	defer unlock()

	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.warnLoad(path, err)
		}
		return nil, false
	}
	var doc DetailsDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		s.warnLoad(path, fmt.Errorf("parse details file: %w", err))
		return nil, false
	}
	if doc.UserID != userID {
		s.logger.Info("ignoring detail cache for another user",
			logging.String("path", path),
			logging.Int64("cached_user_id", doc.UserID),
		)
		return nil, false
	}
	if doc.Items == nil {
		doc.Items = make(map[int64]watchlist.DetailedInfo)
	}
	return doc.Items, true
}

// SaveDetails replaces the user's detail document.
func (s *Store) SaveDetails(userID int64, kind watchlist.Kind, items map[int64]watchlist.DetailedInfo) error {
	kind = kindOrAnime(kind)
	path := s.DetailsPath(userID, kind)
	unlock, err := s.lockUser(path)
	if err != nil {
		return err
	}
	defer unlock()

	doc := DetailsDocument{UserID: userID, Kind: kind, Timestamp: s.now(), Items: items}
	if err := fileutil.WriteJSONAtomic(s.fs, path, doc); err != nil {
		return fmt.Errorf("persist details cache: %w", err)
	}
	return nil
}

// ClearDetails removes the user's detail document.
func (s *Store) ClearDetails(userID int64, kind watchlist.Kind) error {
	_, err := s.removeAll([]string{s.DetailsPath(userID, kind)})
	return err
}
