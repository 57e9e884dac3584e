package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/grovetools/wagate/pkg/paths"
	"github.com/spf13/cobra"
)

// PathsOutput lists the directories and files wagate uses.
type PathsOutput struct {
	ConfigDir string `json:"config_dir"`
	DataDir   string `json:"data_dir"`
	StateDir  string `json:"state_dir"`
	LogDir    string `json:"log_dir"`
	Store     string `json:"store"`
	DeviceDir string `json:"device_dir"`
	PidFile   string `json:"pid_file"`
}

func NewPathsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paths",
		Short: "Print the paths used by wagate",
		Long: `Print the paths used by wagate in JSON format.

WAGATE_HOME moves every directory under one root. Otherwise the XDG
Base Directory variables are honored:
- config_dir: wagate.yml
- data_dir: the session collection and credential stores
- state_dir: pid file and logs`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := PathsOutput{
				ConfigDir: paths.ConfigDir(),
				DataDir:   paths.DataDir(),
				StateDir:  paths.StateDir(),
				LogDir:    paths.LogDir(),
				Store:     paths.StorePath(),
				DeviceDir: paths.DeviceDir(),
				PidFile:   paths.PidFilePath(),
			}

			jsonData, err := json.MarshalIndent(output, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal paths to JSON: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(jsonData))
			return nil
		},
	}

	return cmd
}
