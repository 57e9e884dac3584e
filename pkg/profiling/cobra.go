// Package profiling adds pprof flags to long-running commands.
package profiling

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// CobraProfiler encapsulates profiling state and flag management for Cobra apps.
type CobraProfiler struct {
	cpuProfileFile *os.File
	cpuProfilePath string
	memProfilePath string
	log            *logrus.Entry
}

// NewCobraProfiler creates a new profiler.
func NewCobraProfiler() *CobraProfiler {
	return &CobraProfiler{}
}

// AddFlags adds the profiling flags to the given Cobra command.
func (p *CobraProfiler) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.cpuProfilePath, "cpu-profile", "", "Write a CPU profile to file until the command exits")
	cmd.Flags().StringVar(&p.memProfilePath, "mem-profile", "", "Write a heap profile to file when the command exits")
}

// Start begins CPU profiling if requested. Stop reports through log.
func (p *CobraProfiler) Start(log *logrus.Entry) error {
	p.log = log
	if p.cpuProfilePath == "" {
		return nil
	}
	f, err := os.Create(p.cpuProfilePath)
	if err != nil {
		return fmt.Errorf("could not create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return fmt.Errorf("could not start CPU profile: %w", err)
	}
	p.cpuProfileFile = f
	return nil
}

// Stop finalizes profiling and writes the requested profiles.
func (p *CobraProfiler) Stop() {
	if p.cpuProfileFile != nil {
		pprof.StopCPUProfile()
		p.cpuProfileFile.Close()
		p.cpuProfileFile = nil
		p.log.WithField("path", p.cpuProfilePath).Info("CPU profile written")
	}

	if p.memProfilePath == "" {
		return
	}
	f, err := os.Create(p.memProfilePath)
	if err != nil {
		p.log.WithError(err).Error("Could not create memory profile")
		return
	}
	defer f.Close()
	runtime.GC() // get up-to-date statistics
	if err := pprof.WriteHeapProfile(f); err != nil {
		p.log.WithError(err).Error("Could not write memory profile")
		return
	}
	p.log.WithField("path", p.memProfilePath).Info("Memory profile written")
}
