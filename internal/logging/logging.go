// Package logging builds the structured logger shared by the server and CLI.
package logging

import (
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// New returns a logger writing to w. level is one of debug, info, warn,
// error or none; when empty, development environments log at debug and
// everything else at info.
func New(w io.Writer, env, level string) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	})
	if env == "production" {
		l.SetFormatter(log.JSONFormatter)
	}
	l.SetLevel(ParseLevel(env, level))
	return l
}

// ParseLevel maps a level name to a log.Level.
func ParseLevel(env, level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DebugLevel
	case "info":
		return log.InfoLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	case "none":
		return log.FatalLevel
	}
	if env == "development" {
		return log.DebugLevel
	}
	return log.InfoLevel
}
