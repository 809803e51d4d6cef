package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"shikiwatch/internal/api"
	"shikiwatch/internal/daemonctl"
	"shikiwatch/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent scrobble attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.History(cmd.Context(), limit)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				resp, err = localHistory(ctx, cmd, limit)
			}
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, resp)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderHistory(resp, time.Now()))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of rows to show")
	return cmd
}

func localHistory(ctx *commandContext, cmd *cobra.Command, limit int) (api.HistoryResponse, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return api.HistoryResponse{}, err
	}
	if !cfg.History.Enabled {
		return api.HistoryResponse{}, errors.New("history journal is disabled (history.enabled = false)")
	}
	if _, err := os.Stat(cfg.History.Path); errors.Is(err, os.ErrNotExist) {
		return api.HistoryResponse{Counts: map[string]int{}}, nil
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return api.HistoryResponse{}, err
	}
	defer store.Close()
	records, err := store.Recent(cmd.Context(), limit)
	if err != nil {
		return api.HistoryResponse{}, err
	}
	stats, err := store.Stats(cmd.Context())
	if err != nil {
		return api.HistoryResponse{}, err
	}
	return api.FromHistory(records, stats), nil
}

func renderHistory(resp api.HistoryResponse, now time.Time) string {
	if len(resp.Entries) == 0 {
		return "No scrobbles recorded yet\n"
	}
	rows := make([][]string, 0, len(resp.Entries))
	for _, e := range resp.Entries {
		when := e.RecordedAt
		if t, ok := parseAPITime(e.RecordedAt); ok {
			when = humanize.RelTime(t, now, "ago", "from now")
		}
		name := e.ItemName
		if name == "" {
			name = e.ObservedTitle
		}
		rows = append(rows, []string{when, name, fmt.Sprintf("%d", e.Episode), e.Outcome, e.Message})
	}
	var b strings.Builder
	b.WriteString(renderTable(rows, "When", "Title", "Ep>", "Outcome", "Message"))
	b.WriteString("\n")

	outcomes := make([]string, 0, len(resp.Counts))
	for outcome := range resp.Counts {
		outcomes = append(outcomes, outcome)
	}
	sort.Strings(outcomes)
	parts := make([]string, 0, len(outcomes))
	for _, outcome := range outcomes {
		parts = append(parts, fmt.Sprintf("%s %d", outcome, resp.Counts[outcome]))
	}
	fmt.Fprintf(&b, "Total %s", humanize.Comma(int64(resp.Total)))
	if len(parts) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(parts, ", "))
	}
	b.WriteString("\n")
	return b.String()
}
