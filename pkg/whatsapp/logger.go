package whatsapp

import (
	"github.com/sirupsen/logrus"
	waLog "go.mau.fi/whatsmeow/util/log"
)

// logAdapter routes protocol library logs into logrus.
type logAdapter struct {
	entry *logrus.Entry
}

var _ waLog.Logger = logAdapter{}

func newLogAdapter(entry *logrus.Entry) waLog.Logger {
	return logAdapter{entry: entry}
}

func (l logAdapter) Warnf(msg string, args ...interface{})  { l.entry.Warnf(msg, args...) }
func (l logAdapter) Errorf(msg string, args ...interface{}) { l.entry.Errorf(msg, args...) }
func (l logAdapter) Infof(msg string, args ...interface{})  { l.entry.Debugf(msg, args...) }
func (l logAdapter) Debugf(msg string, args ...interface{}) { l.entry.Tracef(msg, args...) }

func (l logAdapter) Sub(module string) waLog.Logger {
	if prev, ok := l.entry.Data["module"].(string); ok && prev != "" {
		module = prev + "/" + module
	}
	return logAdapter{entry: l.entry.WithField("module", module)}
}
