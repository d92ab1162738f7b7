// Package xlog provides structured, level-gated logging shared by every
// challenge server, backed by pterm the way the teacher's tunnel tool logs.
package xlog

import (
	"github.com/google/uuid"
	"github.com/pterm/pterm"
)

func init() {
	pterm.DefaultLogger.ShowTime = true
	pterm.DefaultLogger.TimeFormat = "02 Jan 2006 15:04:05"
}

// Debug logs a debug-level message. Hidden unless EnableDebug was called.
func Debug(format string, args ...interface{}) {
	pterm.Debug.Printfln(format, args...)
}

// Info logs an info-level message.
func Info(format string, args ...interface{}) {
	pterm.Info.Printfln(format, args...)
}

// Warn logs a warning-level message.
func Warn(format string, args ...interface{}) {
	pterm.Warning.Printfln(format, args...)
}

// Error logs an error-level message.
func Error(format string, args ...interface{}) {
	pterm.Error.Printfln(format, args...)
}

// Success logs a success-level message.
func Success(format string, args ...interface{}) {
	pterm.Success.Printfln(format, args...)
}

// EnableDebug turns on debug-level output.
func EnableDebug() {
	pterm.DefaultLogger.Level = pterm.LogLevelDebug
	pterm.EnableDebugMessages()
}

// NewConnID returns a short correlation id for tagging the log lines of one
// accepted connection or LRCP session, playing the role the teacher's
// socketID hash plays in its "[%08x]" log prefixes.
func NewConnID() string {
	id := uuid.New()
	return id.String()[:8]
}
