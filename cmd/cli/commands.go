package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var (
	team1     []string
	team2     []string
	timestamp string
	season    int
	mode      string
	view      string
)

func init() {
	recordCmd.Flags().StringSliceVar(&team1, "team1", nil, "Players of team 1")
	recordCmd.Flags().StringSliceVar(&team2, "team2", nil, "Players of team 2")
	recordCmd.Flags().StringVar(&timestamp, "at", "", "Logical match time (RFC 3339), defaults to now")
	recordCmd.Flags().IntVar(&season, "season", 0, "Season number, 0 for the current one")
	standingsCmd.Flags().StringVar(&mode, "mode", "raw", "raw, per-game or projected")
	standingsCmd.Flags().StringVar(&view, "view", "all", "all rosters, or teams to drop solo players")
	matchesCmd.Flags().IntVar(&season, "season", 0, "Season number, 0 for all")

	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(signInCmd)
	rootCmd.AddCommand(leagueCmd)
	rootCmd.AddCommand(matchesCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(deleteLastCmd)
	rootCmd.AddCommand(standingsCmd)
	rootCmd.AddCommand(setPinCmd)
	rootCmd.AddCommand(verifyPinCmd)
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the health of the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/health")
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Get application metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/metrics")
	},
}

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Assign lock boundaries to matches that are missing one",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodPost, "/process", nil)
	},
}

var signInCmd = &cobra.Command{
	Use:   "sign-in",
	Short: "Get an anonymous principal token",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodPost, "/auth/anonymous", nil)
	},
}

var leagueCmd = &cobra.Command{
	Use:   "league <league>",
	Short: "Show the full state of a league",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/leagues/" + url.PathEscape(args[0]))
	},
}

var matchesCmd = &cobra.Command{
	Use:   "matches <league>",
	Short: "List the matches of a league",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest(fmt.Sprintf("/leagues/%s/matches?season=%d", url.PathEscape(args[0]), season))
	},
}

var recordCmd = &cobra.Command{
	Use:   "record <league> <score>",
	Short: "Record a match, score as 2-1 or 1-1,2-2,4-3 for extra time and penalties",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := scoreBody(args[1])
		if err != nil {
			return err
		}
		body["team1"] = team1
		body["team2"] = team2
		body["timestamp"] = timestamp
		body["season"] = season
		return performRequest(http.MethodPost, "/leagues/"+url.PathEscape(args[0])+"/matches", body)
	},
}

var deleteLastCmd = &cobra.Command{
	Use:   "delete-last <league>",
	Short: "Delete the most recently recorded match",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodDelete, "/leagues/"+url.PathEscape(args[0])+"/matches/last", nil)
	},
}

var standingsCmd = &cobra.Command{
	Use:   "standings <league>",
	Short: "Show the team table of a league",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q := url.Values{"mode": {mode}, "view": {view}}
		return performGetRequest("/leagues/" + url.PathEscape(args[0]) + "/standings?" + q.Encode())
	},
}

var setPinCmd = &cobra.Command{
	Use:   "set-pin <league> <pin>",
	Short: "Set the first admin PIN of a league",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodPost, "/admin/set-pin", map[string]any{"leagueId": args[0], "pin": args[1]})
	},
}

var verifyPinCmd = &cobra.Command{
	Use:   "verify-pin <league> <pin>",
	Short: "Get an admin claim for a league",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodPost, "/admin/verify-pin", map[string]any{"leagueId": args[0], "pin": args[1]})
	},
}

// scoreBody turns "2-1" or "1-1,2-2,4-3" into the score fields of a match.
func scoreBody(score string) (map[string]any, error) {
	keys := [][2]string{
		{"team1Score", "team2Score"},
		{"team1ExtraTimeScore", "team2ExtraTimeScore"},
		{"team1PenaltiesScore", "team2PenaltiesScore"},
	}
	parts := strings.Split(score, ",")
	if len(parts) > len(keys) {
		return nil, fmt.Errorf("too many score parts in %q", score)
	}
	body := map[string]any{}
	for i, part := range parts {
		left, right, ok := strings.Cut(strings.TrimSpace(part), "-")
		if !ok {
			return nil, fmt.Errorf("score %q is not of the form a-b", part)
		}
		a, err := strconv.Atoi(left)
		if err != nil {
			return nil, fmt.Errorf("invalid score %q: %w", part, err)
		}
		b, err := strconv.Atoi(right)
		if err != nil {
			return nil, fmt.Errorf("invalid score %q: %w", part, err)
		}
		body[keys[i][0]] = a
		body[keys[i][1]] = b
	}
	return body, nil
}

func performGetRequest(endpoint string) error {
	return performRequest(http.MethodGet, endpoint, nil)
}

func performRequest(method, endpoint string, payload any) error {
	url := host + endpoint
	fmt.Printf("Making request to %s\n", url)

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if claim != "" {
		req.Header.Set("X-Admin-Claim", claim)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	fmt.Printf("Status Code: %d\n", resp.StatusCode)
	fmt.Println("Response Body:")
	fmt.Println(string(respBody))

	return nil
}
