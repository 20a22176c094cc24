package core

// Logger is any service that can log messages with increasing severity.
// Extra args are implementation-defined; implementations may special-case
// known types (errors, users) for reporting.
type Logger interface {
	Enable(enabled bool)
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
