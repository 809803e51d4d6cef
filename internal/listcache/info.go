package listcache

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"shikiwatch/internal/fileutil"
	"shikiwatch/internal/logging"
	"shikiwatch/internal/watchlist"
)

// Info summarizes a cached list document.
type Info struct {
	Exists       bool                     `json:"exists"`
	Path         string                   `json:"path"`
	UserID       int64                    `json:"user_id"`
	Kind         watchlist.Kind           `json:"kind"`
	Timestamp    time.Time                `json:"timestamp,omitzero"`
	Age          time.Duration            `json:"age"`
	SizeBytes    int64                    `json:"size_bytes"`
	Total        int                      `json:"total"`
	StatusCounts map[watchlist.Status]int `json:"status_counts,omitempty"`
}

// AgeHours returns the document age in hours.
func (i Info) AgeHours() float64 { return i.Age.Hours() }

// Info reports the state of the user's document. A missing or invalid document
// yields Exists=false.
func (s *Store) Info(userID int64, kind watchlist.Kind) Info {
	kind = kindOrAnime(kind)
	info := Info{Path: s.ListPath(userID, kind), UserID: userID, Kind: kind}
	stat, err := s.fs.Stat(info.Path)
	if err != nil {
		return info
	}
	doc, ok := s.Load(userID, kind)
	if !ok {
		return info
	}
	info.Exists = true
	info.SizeBytes = stat.Size()
	info.Timestamp = doc.Timestamp
	if !doc.Timestamp.IsZero() {
		info.Age = s.now().Sub(doc.Timestamp)
	}
	info.Total = doc.Count()
	info.StatusCounts = doc.Counts()
	return info
}

// Clear removes every document belonging to userID. It returns the number of
// files removed.
func (s *Store) Clear(userID int64) (int, error) {
	var paths []string
	for _, kind := range []watchlist.Kind{watchlist.KindAnime, watchlist.KindManga} {
		paths = append(paths, s.ListPath(userID, kind), s.DetailsPath(userID, kind))
	}
	return s.removeAll(paths)
}

// ClearAll removes every list and detail document in the cache directory.
func (s *Store) ClearAll() (int, error) {
	var paths []string
	for _, pattern := range []string{"*_list_*.json", "*_details_*.json"} {
		matches, err := afero.Glob(s.fs, filepath.Join(s.dir, pattern))
		if err != nil {
			return 0, fmt.Errorf("glob %s: %w", pattern, err)
		}
		paths = append(paths, matches...)
	}
	return s.removeAll(paths)
}

func (s *Store) removeAll(paths []string) (int, error) {
	removed := 0
	for _, path := range paths {
		unlock, err := s.lockUser(path)
		if err != nil {
			return removed, err
		}
		fileutil.RemoveTempFiles(s.fs, path)
		err = s.fs.Remove(path)
		unlock()
		switch {
		case err == nil:
			removed++
			s.logger.Debug("removed cache file", logging.String("path", path))
		case os.IsNotExist(err):
		default:
			return removed, fmt.Errorf("remove %s: %w", filepath.Base(path), err)
		}
	}
	return removed, nil
}
