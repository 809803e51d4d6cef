package main

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/spf13/cobra"

	"shikiwatch/internal/api"
	"shikiwatch/internal/daemonctl"
	"shikiwatch/internal/daemonrun"
	"shikiwatch/internal/watchlist"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string
	var filter string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the cached anime list",
		RunE: func(cmd *cobra.Command, args []string) error {
			var status watchlist.Status
			if s := strings.TrimSpace(statusFilter); s != "" {
				parsed, err := watchlist.ParseStatus(s)
				if err != nil {
					return err
				}
				status = parsed
			}
			return ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
				entries, err := rt.Coordinator.Entries(cmd.Context())
				if err != nil {
					return err
				}
				entries = filterEntries(entries, status, filter)
				if ctx.jsonOutput() {
					return writeJSON(cmd, entries)
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "No matching entries")
					return nil
				}
				fmt.Fprintln(out, renderEntries(entries))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&statusFilter, "status", "s", "", "Only show entries with this status")
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "Fuzzy filter on entry names")
	return cmd
}

// filterEntries keeps entries with the given status (any when empty) and,
// when search is set, ranks fuzzy name matches best first.
func filterEntries(entries []watchlist.TrackedEntry, status watchlist.Status, search string) []watchlist.TrackedEntry {
	filtered := make([]watchlist.TrackedEntry, 0, len(entries))
	for _, e := range entries {
		if status == "" || e.Status == status {
			filtered = append(filtered, e)
		}
	}
	search = strings.TrimSpace(search)
	if search == "" {
		slices.SortStableFunc(filtered, func(a, b watchlist.TrackedEntry) int {
			return strings.Compare(strings.ToLower(a.Name()), strings.ToLower(b.Name()))
		})
		return filtered
	}

	names := make([]string, len(filtered))
	for i, e := range filtered {
		names[i] = e.Name()
	}
	ranks := fuzzy.RankFindNormalizedFold(search, names)
	sort.Sort(ranks)
	out := make([]watchlist.TrackedEntry, 0, len(ranks))
	for _, r := range ranks {
		out = append(out, filtered[r.OriginalIndex])
	}
	return out
}

func renderEntries(entries []watchlist.TrackedEntry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		score := "-"
		if e.Score > 0 {
			score = fmt.Sprintf("%d", e.Score)
		}
		updated := "-"
		if !e.UpdatedAt.IsZero() {
			updated = humanize.Time(e.UpdatedAt)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", e.RateID),
			e.Name(),
			string(e.Status),
			fmt.Sprintf("%d/%s", e.Progress(), totalLabel(e.Total())),
			score,
			updated,
		})
	}
	return renderTable(rows, "Rate>", "Name", "Status", "Progress>", "Score>", "Updated")
}

func newRefreshCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Reload the anime list from Shikimori",
		RunE: func(cmd *cobra.Command, args []string) error {
			var n int
			err := ctx.daemonOrLocal(cmd,
				func(client *daemonctl.Client) error {
					var err error
					n, err = client.Refresh(cmd.Context())
					return err
				},
				func(rt *daemonrun.Runtime) error {
					doc, err := rt.Coordinator.Refresh(cmd.Context())
					if err != nil {
						return err
					}
					n = doc.Count()
					return nil
				},
			)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, api.RefreshResponse{Entries: n})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Refreshed anime list: %d entries\n", n)
			return nil
		},
	}
}
