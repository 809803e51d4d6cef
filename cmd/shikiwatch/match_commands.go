package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"shikiwatch/internal/api"
	"shikiwatch/internal/daemonctl"
	"shikiwatch/internal/daemonrun"
	"shikiwatch/internal/matcher"
	"shikiwatch/internal/textutil"
	"shikiwatch/internal/titleparse"
	"shikiwatch/internal/watchlist"
)

func newParseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "parse <title>...",
		Short:       "Show how window titles or filenames are parsed",
		Args:        cobra.MinimumNArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			type parsedTitle struct {
				Title     string         `json:"title"`
				Matched   bool           `json:"matched"`
				Candidate *api.Candidate `json:"candidate,omitempty"`
				Rule      string         `json:"rule,omitempty"`
			}
			results := make([]parsedTitle, 0, len(args))
			for _, title := range args {
				entry := parsedTitle{Title: title}
				if c, ok := titleparse.Parse(title); ok {
					converted := api.FromCandidate(c)
					entry.Matched = true
					entry.Candidate = &converted
					entry.Rule = c.Source
				}
				results = append(results, entry)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, results)
			}
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				if !r.Matched {
					rows = append(rows, []string{r.Title, "-", "-", "-", "no match"})
					continue
				}
				season := "-"
				if r.Candidate.Season > 0 {
					season = fmt.Sprintf("%d", r.Candidate.Season)
				}
				rows = append(rows, []string{r.Title, r.Candidate.Series, season, fmt.Sprintf("%d", r.Candidate.Episode), r.Rule})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(rows, "Title", "Series", "Season>", "Episode>", "Rule"))
			return nil
		},
	}
}

func newMatchCommand(ctx *commandContext) *cobra.Command {
	var episode int
	cmd := &cobra.Command{
		Use:   "match <title or name>",
		Short: "Show which list entry a title resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			candidate, ok := titleparse.Parse(args[0])
			if !ok {
				name := titleparse.CleanName(titleparse.Stem(args[0]))
				candidate = watchlist.EpisodeCandidate{SeriesNameRaw: name, SeriesNameNormalized: textutil.Normalize(name)}
			}
			if episode > 0 {
				candidate.Episode = episode
			}
			if candidate.SeriesNameNormalized == "" {
				return fmt.Errorf("no series name found in %q", args[0])
			}

			return ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
				entries, err := rt.Coordinator.Entries(cmd.Context())
				if err != nil {
					return err
				}
				rt.Synonyms.EnsureWarm(cmd.Context(), rt.UserID(), entries)
				rt.Synonyms.Wait()

				m, found := rt.Matcher.FindBestMatch(candidate, entries)
				if ctx.jsonOutput() {
					payload := map[string]any{"candidate": api.FromCandidate(candidate), "matched": found}
					if found {
						payload["match"] = api.FromMatches([]matcher.Match{m})[0]
					}
					return writeJSON(cmd, payload)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Parsed: %s", candidate.SeriesNameRaw)
				if candidate.Episode > 0 {
					fmt.Fprintf(out, " episode %d", candidate.Episode)
				}
				fmt.Fprintln(out)
				if !found {
					fmt.Fprintf(out, "No list entry above threshold %.2f\n", rt.Matcher.Threshold())
					return nil
				}
				fmt.Fprintf(out, "Matched: %s (rate %d, %s %d/%s) via %q score %.3f\n",
					m.Entry.Name(), m.Entry.RateID, m.Entry.Status, m.Entry.Progress(), totalLabel(m.Entry.Total()),
					m.MatchedName, m.Score)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&episode, "episode", "e", 0, "Episode number override")
	return cmd
}

func newSuggestCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "suggest <name>",
		Short: "List near-miss entries for a series name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			var resp api.SuggestResponse
			err := ctx.daemonOrLocal(cmd,
				func(client *daemonctl.Client) error {
					var err error
					resp, err = client.Suggest(cmd.Context(), query, limit)
					return err
				},
				func(rt *daemonrun.Runtime) error {
					entries, err := rt.Coordinator.Entries(cmd.Context())
					if err != nil {
						return err
					}
					resp = api.SuggestResponse{Query: query, Suggestions: api.FromMatches(rt.Matcher.Suggest(query, entries, limit))}
					return nil
				},
			)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, resp)
			}
			out := cmd.OutOrStdout()
			if len(resp.Suggestions) == 0 {
				fmt.Fprintf(out, "No suggestions for %q\n", query)
				return nil
			}
			rows := make([][]string, 0, len(resp.Suggestions))
			for _, s := range resp.Suggestions {
				rows = append(rows, []string{
					fmt.Sprintf("%.3f", s.Score),
					s.Name,
					s.MatchedName,
					s.Status,
					fmt.Sprintf("%d/%s", s.Progress, totalLabel(s.Total)),
				})
			}
			fmt.Fprintln(out, renderTable(rows, "Score>", "Name", "Matched On", "Status", "Progress>"))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum suggestions")
	return cmd
}

func totalLabel(total int) string {
	if total <= 0 {
		return "?"
	}
	return fmt.Sprintf("%d", total)
}
