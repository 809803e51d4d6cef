package main

import (
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"shikiwatch/internal/api"
	"shikiwatch/internal/daemonctl"
	"shikiwatch/internal/daemonrun"
	"shikiwatch/internal/watchlist"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the local list cache",
	}

	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Show list cache metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			lists, err := ctx.lists(cmd)
			if err != nil {
				return err
			}
			info := api.FromCacheInfo(lists.Info(cfg.Shikimori.UserID, watchlist.KindAnime))
			details, _ := lists.LoadDetails(cfg.Shikimori.UserID, watchlist.KindAnime)
			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]any{"list": info, "details": len(details)})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Path:     %s\n", info.Path)
			if !info.Exists {
				fmt.Fprintln(out, "Status:   not cached")
				return nil
			}
			fmt.Fprintf(out, "Entries:  %d\n", info.Total)
			fmt.Fprintf(out, "Size:     %s\n", humanize.Bytes(uint64(max(info.SizeBytes, 0))))
			if updated, ok := parseAPITime(info.UpdatedAt); ok {
				fmt.Fprintf(out, "Updated:  %s (%s)\n", humanize.Time(updated), info.UpdatedAt)
			}
			fmt.Fprintf(out, "Fresh:    %s\n", yesNo(info.AgeHours < cfg.Cache.MaxAge().Hours()))
			fmt.Fprintf(out, "Synonyms: %d titles\n", len(details))
			statuses := make([]string, 0, len(info.StatusCounts))
			for status := range info.StatusCounts {
				statuses = append(statuses, status)
			}
			sort.Strings(statuses)
			for _, status := range statuses {
				fmt.Fprintf(out, "  %-11s %d\n", status+":", info.StatusCounts[status])
			}
			return nil
		},
	}

	var all bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete cached list and synonym documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			lists, err := ctx.lists(cmd)
			if err != nil {
				return err
			}
			var n int
			if all {
				n, err = lists.ClearAll()
			} else {
				n, err = lists.Clear(cfg.Shikimori.UserID)
			}
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]int{"removed": n})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cache file(s)\n", n)
			return nil
		},
	}
	clearCmd.Flags().BoolVar(&all, "all", false, "Remove documents for every user")

	cacheCmd.AddCommand(infoCmd, clearCmd)
	return cacheCmd
}

func newSynonymsCommand(ctx *commandContext) *cobra.Command {
	synCmd := &cobra.Command{
		Use:   "synonyms",
		Short: "Manage the title synonym cache",
	}

	refreshCmd := &cobra.Command{
		Use:   "refresh",
		Short: "Fetch synonyms for list entries that have none cached",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
				n := rt.Synonyms.RefreshNow(cmd.Context(), rt.UserID())
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]int{"fetched": n, "synonyms": rt.Synonyms.Len()})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Fetched %d new title(s); %d cached\n", n, rt.Synonyms.Len())
				return nil
			})
		},
	}

	invalidateCmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Drop and refetch every cached synonym set",
		RunE: func(cmd *cobra.Command, args []string) error {
			var n int
			err := ctx.daemonOrLocal(cmd,
				func(client *daemonctl.Client) error {
					var err error
					n, err = client.InvalidateSynonyms(cmd.Context())
					return err
				},
				func(rt *daemonrun.Runtime) error {
					entries, err := rt.Coordinator.Entries(cmd.Context())
					if err != nil {
						return err
					}
					if err := rt.Synonyms.ForceInvalidate(cmd.Context(), rt.UserID(), entries); err != nil {
						return err
					}
					n = rt.Synonyms.Len()
					return nil
				},
			)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, api.InvalidateResponse{Synonyms: n})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Synonym cache rebuilt: %d titles\n", n)
			return nil
		},
	}

	synCmd.AddCommand(refreshCmd, invalidateCmd)
	return synCmd
}
