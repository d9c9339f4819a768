// SPDX-License-Identifier: GPL-3.0-or-later

package lansim

import "github.com/sirupsen/logrus"

// Logger is the leveled logging interface the simulation components
// write to. The core never writes files itself: pass [NewLogrusLogger]
// to observe a run, or leave the default no-op logger in place.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)

	// WithField returns a logger that annotates every entry with the
	// given key/value pair (e.g., the owning device name).
	WithField(key string, value any) Logger
}

// NewLogrusLogger adapts a logrus logger or entry to the [Logger]
// interface.
func NewLogrusLogger(log logrus.FieldLogger) Logger {
	return &logrusLogger{log: log}
}

// logrusLogger adapts [logrus.FieldLogger] to [Logger].
type logrusLogger struct {
	log logrus.FieldLogger
}

var _ Logger = &logrusLogger{}

// Debugf implements [Logger].
func (l *logrusLogger) Debugf(format string, args ...any) {
	l.log.Debugf(format, args...)
}

// Infof implements [Logger].
func (l *logrusLogger) Infof(format string, args ...any) {
	l.log.Infof(format, args...)
}

// Warnf implements [Logger].
func (l *logrusLogger) Warnf(format string, args ...any) {
	l.log.Warnf(format, args...)
}

// Errorf implements [Logger].
func (l *logrusLogger) Errorf(format string, args ...any) {
	l.log.Errorf(format, args...)
}

// WithField implements [Logger].
func (l *logrusLogger) WithField(key string, value any) Logger {
	return &logrusLogger{log: l.log.WithField(key, value)}
}

// NopLogger returns a [Logger] that discards everything.
func NopLogger() Logger {
	return nopLogger{}
}

type nopLogger struct{}

var _ Logger = nopLogger{}

func (nopLogger) Debugf(format string, args ...any) {}

func (nopLogger) Infof(format string, args ...any) {}

func (nopLogger) Warnf(format string, args ...any) {}

func (nopLogger) Errorf(format string, args ...any) {}

func (nopLogger) WithField(key string, value any) Logger { return nopLogger{} }
