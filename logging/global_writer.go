package logging

import (
	"io"
	"os"
	"sync/atomic"
)

// stderrSink is the writer every logger uses for its terminal output. Tests and
// the serve command can redirect it without rebuilding loggers.
type stderrSink struct {
	w atomic.Pointer[io.Writer]
}

func (s *stderrSink) Write(p []byte) (int, error) {
	return (*s.w.Load()).Write(p)
}

func (s *stderrSink) set(w io.Writer) {
	s.w.Store(&w)
}

var globalSink = newStderrSink(os.Stderr)

func newStderrSink(w io.Writer) *stderrSink {
	s := &stderrSink{}
	s.set(w)
	return s
}

// SetGlobalOutput redirects the stderr sink of every logger.
func SetGlobalOutput(w io.Writer) {
	globalSink.set(w)
}

// GetGlobalOutput returns the writer backing the stderr sink.
func GetGlobalOutput() io.Writer {
	return globalSink
}
