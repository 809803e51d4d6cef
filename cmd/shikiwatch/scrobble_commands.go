package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"shikiwatch/internal/api"
	"shikiwatch/internal/daemonctl"
	"shikiwatch/internal/daemonrun"
	"shikiwatch/internal/titleparse"
)

func newScrobbleCommand(ctx *commandContext) *cobra.Command {
	var episode int
	var name string
	cmd := &cobra.Command{
		Use:   "scrobble <title or file> [episode]",
		Short: "Record an episode as watched",
		Long: "Record an episode as watched on Shikimori. The title is parsed like a player window title; " +
			"--episode and --name override the parsed values. The running daemon handles the request when " +
			"available, otherwise it is processed in-process.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 2 {
				n, err := strconv.Atoi(args[1])
				if err != nil || n <= 0 {
					return fmt.Errorf("episode must be a positive integer, got %q", args[1])
				}
				episode = n
			}
			req, err := buildScrobbleRequest(args[0], name, episode)
			if err != nil {
				return err
			}

			var result api.ScrobbleResult
			err = ctx.daemonOrLocal(cmd,
				func(client *daemonctl.Client) error {
					var err error
					result, err = client.Scrobble(cmd.Context(), req)
					return err
				},
				func(rt *daemonrun.Runtime) error {
					seriesName := req.Name
					if seriesName == "" {
						if parsed, ok := titleparse.Parse(req.Title); ok {
							seriesName = parsed.SeriesNameRaw
						} else {
							seriesName = titleparse.CleanName(titleparse.Stem(req.Title))
						}
					}
					result = api.FromResult(rt.Coordinator.ScrobbleName(cmd.Context(), seriesName, req.Episode))
					return nil
				},
			)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, result)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, result.Message)
			if !result.Success {
				return fmt.Errorf("scrobble %s", result.Kind)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&episode, "episode", "e", 0, "Episode number (defaults to the parsed episode)")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Series name (defaults to the parsed name)")
	return cmd
}

func buildScrobbleRequest(title, name string, episode int) (api.ScrobbleRequest, error) {
	title = strings.TrimSpace(title)
	name = strings.TrimSpace(name)
	if title == "" && name == "" {
		return api.ScrobbleRequest{}, fmt.Errorf("title is required")
	}
	if episode < 0 {
		return api.ScrobbleRequest{}, fmt.Errorf("episode must be positive")
	}
	if episode == 0 {
		parsed, ok := titleparse.Parse(title)
		if !ok {
			return api.ScrobbleRequest{}, fmt.Errorf("no episode number found in %q; pass --episode", title)
		}
		episode = parsed.Episode
	}
	return api.ScrobbleRequest{Title: title, Name: name, Episode: episode}, nil
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Skip the pending scrobble for the episodes playing now",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			n, err := client.Cancel(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, api.CancelResponse{Cancelled: n})
			}
			if n == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No playback sessions to cancel")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cancelled scrobbling for %d session(s)\n", n)
			return nil
		},
	}
}
