package shikimori

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"shikiwatch/internal/services"
	"shikiwatch/internal/watchlist"
)

// User is the authenticated account returned by whoami.
type User struct {
	ID       int64  `json:"id"`
	Nickname string `json:"nickname"`
	URL      string `json:"url,omitempty"`
}

func catalogPath(kind watchlist.Kind) string {
	if kind == watchlist.KindManga {
		return "/mangas"
	}
	return "/animes"
}

// GetItemDetails fetches the detail record carrying the item's alternate names.
func (c *Client) GetItemDetails(ctx context.Context, kind watchlist.Kind, itemID int64) (watchlist.DetailedInfo, error) {
	if itemID <= 0 {
		return watchlist.DetailedInfo{}, services.Wrap(services.ErrValidation, component, "get details", "item id must be positive", nil)
	}
	var info watchlist.DetailedInfo
	if err := c.get(ctx, "get details", fmt.Sprintf("%s/%d", catalogPath(kind), itemID), nil, &info); err != nil {
		return watchlist.DetailedInfo{}, err
	}
	if info.ItemID == 0 {
		info.ItemID = itemID
	}
	info.FetchedAt = time.Now()
	return info, nil
}

// SearchItems searches the catalogue ordered by popularity.
func (c *Client) SearchItems(ctx context.Context, kind watchlist.Kind, query string, limit int) ([]watchlist.Item, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, services.Wrap(services.ErrValidation, component, "search", "query must not be empty", nil)
	}
	if limit <= 0 {
		limit = 10
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("order", "popularity")
	var items []watchlist.Item
	if err := c.get(ctx, "search", catalogPath(kind), params, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// WhoAmI returns the account that owns the access token.
func (c *Client) WhoAmI(ctx context.Context) (User, error) {
	var user User
	if err := c.get(ctx, "whoami", "/users/whoami", nil, &user); err != nil {
		return User{}, err
	}
	if user.ID == 0 {
		return User{}, services.Wrap(services.ErrUnauthorized, component, "whoami", "token is not bound to a user", nil)
	}
	return user, nil
}
