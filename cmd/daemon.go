package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/grovetools/wagate/cli"
	"github.com/grovetools/wagate/internal/gateway/pidfile"
	"github.com/grovetools/wagate/logging"
	"github.com/grovetools/wagate/pkg/paths"
	"github.com/grovetools/wagate/pkg/process"
	"github.com/spf13/cobra"
)

const probeTimeout = 3 * time.Second

// NewStopCmd returns the command that stops a running gateway.
func NewStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, running, err := pidfile.Running(paths.PidFilePath())
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}
			pretty := logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())
			if !running {
				pretty.InfoPretty("Gateway is not running")
				return nil
			}

			if err := process.Terminate(rec.PID); err != nil {
				return fmt.Errorf("failed to stop process %d: %w", rec.PID, err)
			}
			if rec.Listen != "" {
				pretty.Success(fmt.Sprintf("Sent SIGTERM to process %d serving %s", rec.PID, rec.Listen))
			} else {
				pretty.Success(fmt.Sprintf("Sent SIGTERM to process %d", rec.PID))
			}
			return nil
		},
	}
}

// StatusOutput is the JSON form of `wagate status`.
type StatusOutput struct {
	Running bool   `json:"running"`
	PID     int    `json:"pid,omitempty"`
	URL     string `json:"url,omitempty"`
	Store   string `json:"store,omitempty"`
	Ready   bool   `json:"ready"`
	Detail  string `json:"detail,omitempty"`
}

// NewStatusCmd returns the command that reports whether the gateway runs and is ready.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check gateway status",
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, running, err := pidfile.Running(paths.PidFilePath())
			if err != nil {
				return fmt.Errorf("error: %w", err)
			}

			status := StatusOutput{Running: running, PID: rec.PID, Store: rec.Store}
			if running {
				listen := rec.Listen
				if listen == "" {
					// Older gateways only recorded their PID.
					cfg, _, err := cli.LoadConfig(cmd)
					if err != nil {
						return err
					}
					listen = cfg.Server.Listen
				}
				status.URL = baseURL(listen)
				ctx, cancel := context.WithTimeout(cmd.Context(), probeTimeout)
				defer cancel()
				status.Ready, status.Detail = probeReady(ctx, status.URL)
			}

			out := cmd.OutOrStdout()
			if cli.GetOptions(cmd).JSONOutput {
				data, err := json.MarshalIndent(status, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			pretty := logging.NewPrettyLogger().WithWriter(out)
			if !running {
				pretty.InfoPretty("Gateway is not running")
				return nil
			}
			pretty.Field("PID", status.PID)
			pretty.Field("URL", status.URL)
			if status.Store != "" {
				pretty.Field("Store", status.Store)
			}
			if status.Ready {
				pretty.Success("Gateway is ready")
			} else {
				pretty.WarnPretty("Gateway is not ready: " + status.Detail)
			}
			return nil
		},
	}
}

// baseURL turns a listen address into a URL reachable from this host.
func baseURL(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "http://" + listen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// probeReady queries the readiness endpoint and returns the failing checks.
func probeReady(ctx context.Context, base string) (bool, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/ready?full=1", nil)
	if err != nil {
		return false, err.Error()
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false, err.Error()
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		return true, ""
	}

	var checks map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&checks); err != nil {
		return false, resp.Status
	}
	var failing []string
	for name, result := range checks {
		if result != "OK" {
			failing = append(failing, name+": "+result)
		}
	}
	if len(failing) == 0 {
		return false, resp.Status
	}
	sort.Strings(failing)
	return false, strings.Join(failing, ", ")
}
