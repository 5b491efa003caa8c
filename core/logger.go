package core

// Logger is any service that can report application events, optionally
// shipping them to an external error tracker.
type Logger interface {
	Enable(enabled bool)
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	// Error reports a failure. Extra args may include the acting user
	// (to tag the report) and arbitrary context values.
	Error(msg string, err error, args ...interface{})
}
