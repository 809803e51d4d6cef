package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"shikiwatch/internal/daemonrun"
	"shikiwatch/internal/logging"
	"shikiwatch/internal/services"
	"shikiwatch/internal/watchlist"
)

// searchResult is the --json shape of one `search` row.
type searchResult struct {
	Item   watchlist.Item `json:"item"`
	RateID int64          `json:"rateId,omitempty"`
	Status string         `json:"status,omitempty"`
}

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the Shikimori catalogue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
				items, err := rt.Client.SearchItems(cmd.Context(), watchlist.KindAnime, query, limit)
				if err != nil {
					return err
				}
				listed := make(map[int64]watchlist.TrackedEntry)
				if entries, err := rt.Coordinator.Entries(cmd.Context()); err == nil {
					for _, e := range entries {
						listed[e.ItemID()] = e
					}
				}

				results := make([]searchResult, 0, len(items))
				for _, item := range items {
					res := searchResult{Item: item}
					if e, ok := listed[item.ID]; ok {
						res.RateID = e.RateID
						res.Status = string(e.Status)
					}
					results = append(results, res)
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, results)
				}
				out := cmd.OutOrStdout()
				if len(results) == 0 {
					fmt.Fprintf(out, "No catalogue entries for %q\n", query)
					return nil
				}
				fmt.Fprintln(out, renderSearchResults(results))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of results")
	return cmd
}

func renderSearchResults(results []searchResult) string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		listed := "-"
		if r.RateID != 0 {
			listed = fmt.Sprintf("%s (rate %d)", r.Status, r.RateID)
		}
		rows = append(rows, []string{
			strconv.FormatInt(r.Item.ID, 10),
			r.Item.Name,
			r.Item.Russian,
			totalLabel(r.Item.Episodes),
			listed,
		})
	}
	return renderTable(rows, "ID>", "Name", "Russian", "Episodes>", "In list")
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	var statusFlag string
	cmd := &cobra.Command{
		Use:   "add <item-id>",
		Short: "Add a catalogue item to the anime list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := parseID(args[0], "item id")
			if err != nil {
				return err
			}
			status, err := watchlist.ParseStatus(statusFlag)
			if err != nil {
				return err
			}
			return ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
				entry, err := addToList(cmd, rt, itemID, status)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, entry)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s as %s (rate %d)\n", entry.Name(), entry.Status, entry.RateID)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&statusFlag, "status", "s", string(watchlist.StatusPlanned), "Initial list status")
	return cmd
}

// addToList creates the remote rate and records it in the cached list. With
// no cached list yet the whole list is fetched instead.
func addToList(cmd *cobra.Command, rt *daemonrun.Runtime, itemID int64, status watchlist.Status) (watchlist.TrackedEntry, error) {
	ctx := cmd.Context()
	entry, err := rt.Client.AddToList(ctx, rt.UserID(), watchlist.KindAnime, itemID, status)
	if err != nil {
		return watchlist.TrackedEntry{}, err
	}

	item := watchlist.Item{ID: itemID}
	if info, err := rt.Client.GetItemDetails(ctx, watchlist.KindAnime, itemID); err == nil {
		item = watchlist.Item{
			ID:            itemID,
			Name:          info.Name,
			Russian:       info.Russian,
			Status:        info.Status,
			Episodes:      info.Episodes,
			EpisodesAired: info.EpisodesAired,
		}
	} else {
		rt.Logger.Debug("catalogue details unavailable", logging.Int64(logging.FieldItemID, itemID), logging.Error(err))
	}
	entry.Anime = &item

	err = rt.Lists.InsertEntry(rt.UserID(), watchlist.KindAnime, entry)
	switch {
	case err == nil:
		rt.Synonyms.EnsureWarm(ctx, rt.UserID(), []watchlist.TrackedEntry{entry})
	case errors.Is(err, services.ErrNotFound):
		if _, err := rt.Coordinator.Refresh(ctx); err != nil {
			return entry, fmt.Errorf("rate %d created but the list could not be reloaded: %w", entry.RateID, err)
		}
	default:
		return entry, err
	}
	return entry, nil
}

// removeResult is the --json shape of `remove`.
type removeResult struct {
	RateID  int64 `json:"rateId"`
	Entries int   `json:"entries"`
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <rate-id>",
		Short: "Remove an entry from the anime list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rateID, err := parseID(args[0], "rate id")
			if err != nil {
				return err
			}
			return ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
				if err := rt.Client.DeleteFromList(cmd.Context(), rateID); err != nil {
					return err
				}
				doc, err := rt.Coordinator.Refresh(cmd.Context())
				if err != nil {
					return fmt.Errorf("rate %d removed but the list could not be reloaded: %w", rateID, err)
				}
				res := removeResult{RateID: rateID, Entries: doc.Count()}
				if ctx.jsonOutput() {
					return writeJSON(cmd, res)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed rate %d; %d entries remain\n", res.RateID, res.Entries)
				return nil
			})
		},
	}
}

func parseID(raw, what string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, services.Wrap(services.ErrValidation, "cli", "parse id", fmt.Sprintf("%s must be a positive integer", what), err)
	}
	return id, nil
}
