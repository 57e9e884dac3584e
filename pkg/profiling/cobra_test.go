package profiling

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfilerWritesRequestedProfiles(t *testing.T) {
	dir := t.TempDir()
	cpu := filepath.Join(dir, "cpu.pprof")
	mem := filepath.Join(dir, "mem.pprof")

	p := NewCobraProfiler()
	cmd := &cobra.Command{Use: "serve"}
	p.AddFlags(cmd)
	require.NoError(t, cmd.Flags().Parse([]string{"--cpu-profile", cpu, "--mem-profile", mem}))

	require.NoError(t, p.Start(logrus.NewEntry(logrus.New())))
	p.Stop()

	for _, path := range []string{cpu, mem} {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
}

func TestProfilerWithoutFlagsIsNoop(t *testing.T) {
	p := NewCobraProfiler()
	require.NoError(t, p.Start(logrus.NewEntry(logrus.New())))
	p.Stop()
}
