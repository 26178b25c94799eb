package logger

import (
	"github.com/sirupsen/logrus"
)

// LogrusLogger forwards printf-style calls to a logrus entry so that every
// component log line carries the same structured fields.
type LogrusLogger struct {
	entry *logrus.Entry
}

func NewLogrusLogger(l *logrus.Logger) *LogrusLogger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return &LogrusLogger{entry: logrus.NewEntry(l)}
}

// WithField returns a logger that attaches key=value to every line.
func (l *LogrusLogger) WithField(key string, value interface{}) *LogrusLogger {
	return &LogrusLogger{entry: l.entry.WithField(key, value)}
}

func (l *LogrusLogger) WithFields(fields map[string]interface{}) *LogrusLogger {
	return &LogrusLogger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

func (l *LogrusLogger) Debug(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

func (l *LogrusLogger) Info(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

func (l *LogrusLogger) Error(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}
