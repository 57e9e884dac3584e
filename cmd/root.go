// Package cmd holds the wagate command tree.
package cmd

import (
	"github.com/grovetools/wagate/cli"
	"github.com/grovetools/wagate/version"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the wagate command with all subcommands.
func NewRootCmd() *cobra.Command {
	root := cli.NewStandardCommand("wagate", "Multi-tenant messaging session gateway")
	root.Long = `Runs messaging sessions for many tenants behind one HTTP API. Each session
is paired by scanning a QR code pushed over the websocket channel and is
recovered automatically after a restart.

Examples:
  # Run the gateway in the foreground
  wagate serve

  # List sessions of the running gateway
  wagate sessions

  # Follow the gateway log
  wagate logs -f`

	cli.SetVersionTemplate(root, version.GetInfo())

	root.AddCommand(NewServeCmd())
	root.AddCommand(NewStopCmd())
	root.AddCommand(NewStatusCmd())
	root.AddCommand(NewSessionsCmd())
	root.AddCommand(NewLogsCmd())
	root.AddCommand(NewConfigCmd())
	root.AddCommand(NewPathsCmd())
	root.AddCommand(cli.NewVersionCommand("wagate"))
	return root
}
