package synonyms

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"shikiwatch/internal/logging"
	"shikiwatch/internal/textutil"
	"shikiwatch/internal/watchlist"
)

const (
	warmSaveEvery    = 20
	refreshSaveEvery = 10
)

// Fetcher retrieves a single detail record from the remote service.
type Fetcher interface {
	GetItemDetails(ctx context.Context, kind watchlist.Kind, itemID int64) (watchlist.DetailedInfo, error)
}

// Store persists detail records per user.
type Store interface {
	LoadDetails(userID int64, kind watchlist.Kind) (map[int64]watchlist.DetailedInfo, bool)
	SaveDetails(userID int64, kind watchlist.Kind, items map[int64]watchlist.DetailedInfo) error
	ClearDetails(userID int64, kind watchlist.Kind) error
}

// Cache holds detail records and their normalized names in memory.
type Cache struct {
	fetcher Fetcher
	store   Store
	kind    watchlist.Kind
	logger  *slog.Logger

	mu      sync.RWMutex
	userID  int64
	details map[int64]watchlist.DetailedInfo
	names   map[int64][]string

	group singleflight.Group
	wg    sync.WaitGroup

	lifeMu sync.Mutex
	life   context.Context
	stop   context.CancelFunc
}

// New creates a cache for one list kind.
func New(fetcher Fetcher, store Store, kind watchlist.Kind, logger *slog.Logger) *Cache {
	if kind == "" {
		kind = watchlist.KindAnime
	}
	c := &Cache{
		fetcher: fetcher,
		store:   store,
		kind:    kind,
		logger:  logging.NewComponentLogger(logger, "synonyms"),
		details: make(map[int64]watchlist.DetailedInfo),
		names:   make(map[int64][]string),
	}
	c.life, c.stop = context.WithCancel(context.Background())
	return c
}

// Names returns the normalized alternate names for itemID.
func (c *Cache) Names(itemID int64) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.names[itemID]
}

// Detail returns the cached detail record for itemID.
func (c *Cache) Detail(itemID int64) (watchlist.DetailedInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.details[itemID]
	return info, ok
}

// Len returns the number of cached detail records.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.details)
}

// Wait blocks until background fetches finish.
func (c *Cache) Wait() { c.wg.Wait() }

// Stop cancels background fetches and waits for them to return. Warm-ups
// started after Stop run normally.
func (c *Cache) Stop() {
	c.lifeMu.Lock()
	c.stop()
	c.life, c.stop = context.WithCancel(context.Background())
	c.lifeMu.Unlock()
	c.wg.Wait()
}

// background derives a context for work that outlives the caller: it keeps
// ctx's values, ignores its cancellation and ends on Stop.
func (c *Cache) background(ctx context.Context) (context.Context, context.CancelFunc) {
	c.lifeMu.Lock()
	life := c.life
	c.lifeMu.Unlock()
	bg, cancel := context.WithCancel(context.WithoutCancel(ctx))
	release := context.AfterFunc(life, cancel)
	return bg, func() {
		release()
		cancel()
	}
}

// EnsureWarm makes sure every entry has a detail record. Missing records are
// fetched in the background; the fetch keeps running after ctx is cancelled
// and stops on Stop. When nothing is missing no network call is made. A call
// that joins a warm-up already running for the user fetches whatever that
// warm-up did not cover once it finishes.
func (c *Cache) EnsureWarm(ctx context.Context, userID int64, entries []watchlist.TrackedEntry) {
	c.loadFromDisk(userID)

	missing := c.missingIDs(entries)
	if len(missing) == 0 {
		return
	}
	c.logger.Info("fetching missing detail records",
		logging.String(logging.FieldEventType, "synonym_warm_started"),
		logging.Int64(logging.FieldUserID, userID),
		logging.Int("missing", len(missing)),
	)

	bg, cancel := c.background(ctx)
	key := fmt.Sprintf("warm:%d", userID)
	c.wg.Go(func() {
		defer cancel()
		for bg.Err() == nil {
			own := new(int)
			v, _, _ := c.group.Do(key, func() (any, error) {
				c.fetchMissing(bg, userID, c.missingIDs(entries))
				return own, nil
			})
			if v == own || len(c.missingIDs(entries)) == 0 {
				return
			}
		}
	})
}

func (c *Cache) loadFromDisk(userID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.userID == userID && len(c.details) > 0 {
		return
	}
	if c.userID != userID {
		c.details = make(map[int64]watchlist.DetailedInfo)
		c.names = make(map[int64][]string)
		c.userID = userID
	}
	if c.store == nil {
		return
	}
	items, ok := c.store.LoadDetails(userID, c.kind)
	if !ok {
		return
	}
	for id, info := range items {
		c.putLocked(id, info)
	}
	c.logger.Debug("loaded detail cache", logging.Int("count", len(items)))
}

func (c *Cache) missingIDs(entries []watchlist.TrackedEntry) []int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := make(map[int64]struct{}, len(entries))
	var missing []int64
	for _, entry := range entries {
		id := entry.ItemID()
		if id <= 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := c.details[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func (c *Cache) fetchMissing(ctx context.Context, userID int64, ids []int64) {
	fetched := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		if _, ok := c.Detail(id); ok {
			continue
		}
		info, err := c.fetcher.GetItemDetails(ctx, c.kind, id)
		if err != nil {
			c.logger.Debug("detail fetch failed",
				logging.Int64(logging.FieldItemID, id),
				logging.Error(err),
			)
			continue
		}
		c.put(id, info)
		fetched++
		if fetched%warmSaveEvery == 0 {
			c.save(userID)
		}
	}
	if fetched > 0 {
		c.save(userID)
	}
	c.logger.Info("detail warm-up finished",
		logging.String(logging.FieldEventType, "synonym_warm_finished"),
		logging.Int64(logging.FieldUserID, userID),
		logging.Int("fetched", fetched),
		logging.Int("requested", len(ids)),
	)
}

func (c *Cache) put(id int64, info watchlist.DetailedInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putLocked(id, info)
}

func (c *Cache) putLocked(id int64, info watchlist.DetailedInfo) {
	if info.ItemID == 0 {
		info.ItemID = id
	}
	c.details[id] = info
	var names []string
	seen := make(map[string]struct{})
	for _, alt := range info.AltNames() {
		normalized := textutil.Normalize(alt)
		if normalized == "" {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		names = append(names, normalized)
	}
	c.names[id] = names
}

func (c *Cache) save(userID int64) {
	if c.store == nil {
		return
	}
	c.mu.RLock()
	snapshot := make(map[int64]watchlist.DetailedInfo, len(c.details))
	for id, info := range c.details {
		snapshot[id] = info
	}
	c.mu.RUnlock()

	if err := c.store.SaveDetails(userID, c.kind, snapshot); err != nil {
		logging.WarnWithContext(c.logger, "failed to save detail cache", "synonym_save_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check cache directory permissions"),
			logging.String(logging.FieldImpact, "detail records will be fetched again after restart"),
		)
	}
}

// ForceInvalidate drops the memory and disk records, then warms every entry again.
func (c *Cache) ForceInvalidate(ctx context.Context, userID int64, entries []watchlist.TrackedEntry) error {
	c.mu.Lock()
	c.details = make(map[int64]watchlist.DetailedInfo)
	c.names = make(map[int64][]string)
	c.userID = userID
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.ClearDetails(userID, c.kind); err != nil {
			return fmt.Errorf("clear detail cache: %w", err)
		}
	}
	c.logger.Info("detail cache invalidated",
		logging.String(logging.FieldEventType, "synonym_invalidated"),
		logging.Int64(logging.FieldUserID, userID),
	)
	c.EnsureWarm(ctx, userID, entries)
	return nil
}
