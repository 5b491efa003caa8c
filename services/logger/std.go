package logsvc

import (
	"log"

	"github.com/darasahq/darasa/core"
)

// StdLogger writes to the standard logger only. Used in tests and when no
// Rollbar token is configured.
type StdLogger struct {
	std     *log.Logger
	enabled bool
}

var _ core.Logger = (*StdLogger)(nil)

func NewStdLogger(std *log.Logger) *StdLogger {
	if std == nil {
		std = log.Default()
	}
	return &StdLogger{std: std, enabled: true}
}

func (l *StdLogger) Enable(enabled bool) { l.enabled = enabled }

func (l *StdLogger) print(msg string, args []interface{}) {
	if !l.enabled {
		return
	}
	l.std.Println(msg)
	for _, arg := range args {
		l.std.Printf("%+v\n", arg)
	}
}

func (l *StdLogger) Debug(msg string, args ...interface{}) { l.print(msg, args) }
func (l *StdLogger) Info(msg string, args ...interface{})  { l.print(msg, args) }
func (l *StdLogger) Warn(msg string, args ...interface{})  { l.print(msg, args) }

func (l *StdLogger) Error(msg string, err error, args ...interface{}) {
	if err != nil {
		args = append(args, err)
	}
	l.print(msg, args)
}
