package shikimori

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"shikiwatch/internal/services"
	"shikiwatch/internal/watchlist"
)

func ratesPath(userID int64, kind watchlist.Kind) string {
	if kind == watchlist.KindManga {
		return fmt.Sprintf("/users/%d/manga_rates", userID)
	}
	return fmt.Sprintf("/users/%d/anime_rates", userID)
}

// GetUserList returns the user's rates of the given kind. An empty status
// returns every status. Pages are requested until a short or empty page.
func (c *Client) GetUserList(ctx context.Context, userID int64, kind watchlist.Kind, status watchlist.Status) ([]watchlist.TrackedEntry, error) {
	if userID <= 0 {
		return nil, services.Wrap(services.ErrValidation, component, "get user list", "user id must be positive", nil)
	}
	var all []watchlist.TrackedEntry
	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("page", strconv.Itoa(page))
		query.Set("limit", strconv.Itoa(pageLimit))
		if status != "" {
			query.Set("status", string(status))
		}
		var batch []watchlist.TrackedEntry
		if err := c.get(ctx, "get user list", ratesPath(userID, kind), query, &batch); err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < pageLimit {
			break
		}
	}
	return all, nil
}

// FetchDocument downloads the full list and groups it into a cache document.
func (c *Client) FetchDocument(ctx context.Context, userID int64, kind watchlist.Kind) (*watchlist.CacheDocument, error) {
	entries, err := c.GetUserList(ctx, userID, kind, "")
	if err != nil {
		return nil, err
	}
	doc := watchlist.NewDocument(userID, kind, entries)
	doc.Timestamp = time.Now()
	return doc, nil
}

type userRate struct {
	UserID     int64             `json:"user_id,omitempty"`
	TargetID   int64             `json:"target_id,omitempty"`
	TargetType string            `json:"target_type,omitempty"`
	Episodes   *int              `json:"episodes,omitempty"`
	Chapters   *int              `json:"chapters,omitempty"`
	Score      *int              `json:"score,omitempty"`
	Status     *watchlist.Status `json:"status,omitempty"`
	Rewatches  *int              `json:"rewatches,omitempty"`
}

type userRateEnvelope struct {
	UserRate userRate `json:"user_rate"`
}

func rateFromFields(kind watchlist.Kind, fields watchlist.Fields) userRate {
	rate := userRate{Score: fields.Score, Status: fields.Status, Rewatches: fields.Rewatches}
	if kind == watchlist.KindManga {
		rate.Chapters = fields.Progress
	} else {
		rate.Episodes = fields.Progress
	}
	return rate
}

// UpdateProgress patches a user rate. Only set fields are sent.
func (c *Client) UpdateProgress(ctx context.Context, kind watchlist.Kind, rateID int64, fields watchlist.Fields) error {
	if rateID <= 0 {
		return services.Wrap(services.ErrValidation, component, "update rate", "rate id must be positive", nil)
	}
	if fields.Empty() {
		return services.Wrap(services.ErrValidation, component, "update rate", "no fields to update", nil)
	}
	body := userRateEnvelope{UserRate: rateFromFields(kind, fields)}
	return c.send(ctx, "update rate", http.MethodPatch, fmt.Sprintf("/user_rates/%d", rateID), nil, body, nil, http.StatusOK)
}

// AddToList creates a rate for itemID and returns it. The returned entry has no
// embedded item; callers attach the catalogue record they already hold.
func (c *Client) AddToList(ctx context.Context, userID int64, kind watchlist.Kind, itemID int64, status watchlist.Status) (watchlist.TrackedEntry, error) {
	if userID <= 0 || itemID <= 0 {
		return watchlist.TrackedEntry{}, services.Wrap(services.ErrValidation, component, "add rate", "user and item ids must be positive", nil)
	}
	if status == "" {
		status = watchlist.StatusPlanned
	}
	targetType := "Anime"
	if kind == watchlist.KindManga {
		targetType = "Manga"
	}
	body := userRateEnvelope{UserRate: userRate{
		UserID:     userID,
		TargetID:   itemID,
		TargetType: targetType,
		Status:     &status,
	}}
	var created watchlist.TrackedEntry
	if err := c.send(ctx, "add rate", http.MethodPost, "/user_rates", nil, body, &created, http.StatusCreated, http.StatusOK); err != nil {
		return watchlist.TrackedEntry{}, err
	}
	if created.Status == "" {
		created.Status = status
	}
	return created, nil
}

// DeleteFromList removes a rate. A rate that is already gone counts as deleted.
func (c *Client) DeleteFromList(ctx context.Context, rateID int64) error {
	if rateID <= 0 {
		return services.Wrap(services.ErrValidation, component, "delete rate", "rate id must be positive", nil)
	}
	err := c.send(ctx, "delete rate", http.MethodDelete, fmt.Sprintf("/user_rates/%d", rateID), nil, nil, nil, http.StatusNoContent, http.StatusOK)
	if errors.Is(err, services.ErrNotFound) {
		return nil
	}
	return err
}
