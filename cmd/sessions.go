package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/grovetools/wagate/cli"
	"github.com/grovetools/wagate/pkg/models"
	"github.com/spf13/cobra"
)

// NewSessionsCmd returns the command listing the sessions of a running gateway.
func NewSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List sessions of the running gateway",
		Example: `  wagate sessions
  wagate sessions --json
  wagate sessions --url http://gateway.internal:8000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			url, _ := cmd.Flags().GetString("url")
			if url == "" {
				cfg, _, err := cli.LoadConfig(cmd)
				if err != nil {
					return err
				}
				url = baseURL(cfg.Server.Listen)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), probeTimeout)
			defer cancel()
			records, err := fetchSessions(ctx, url)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if cli.GetOptions(cmd).JSONOutput {
				data, err := json.MarshalIndent(models.SessionsResponse{Sessions: records}, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
			}
			printSessions(out, records)
			return nil
		},
	}
	cmd.Flags().String("url", "", "Gateway base URL (default: derived from server.listen)")
	return cmd
}

func fetchSessions(ctx context.Context, base string) ([]models.SessionRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/sessions", nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway unreachable at %s: %w", base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var status models.StatusResponse
		if json.Unmarshal(body, &status) == nil && status.Message != "" {
			return nil, fmt.Errorf("gateway returned %s: %s", resp.Status, status.Message)
		}
		return nil, fmt.Errorf("gateway returned %s", resp.Status)
	}

	var payload models.SessionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode sessions: %w", err)
	}
	return payload.Sessions, nil
}

func printSessions(w io.Writer, records []models.SessionRecord) {
	t := cli.DefaultTheme
	if len(records) == 0 {
		fmt.Fprintln(w, t.Muted.Render("No sessions"))
		return
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		ready := t.Muted.Render("no")
		if r.Ready {
			ready = t.Success.Render("yes")
		}
		rows = append(rows, []string{r.ID, ready, r.Description})
	}
	fmt.Fprint(w, cli.RenderTable([]string{"ID", "READY", "DESCRIPTION"}, rows, cli.TerminalWidth(120)))
}
