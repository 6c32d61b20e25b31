// Package logger is the process-wide structured logger for testgen.
//
// Logs go to stderr so command output on stdout stays pipeable.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/gookit/slog"
	"github.com/gookit/slog/handler"
)

// Logger is the minimal logging surface used across the module.
type Logger interface {
	Debug(args ...any)
	Info(args ...any)
	Warn(args ...any)
	Error(args ...any)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Fields holds structured log fields.
type Fields map[string]any

// Log is the global logger. It works at warn level before Init is called.
var Log Logger = NewLogger("warn")

// Init replaces the global logger with one at the given level.
// An empty level keeps warn.
func Init(level string) {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		level = "warn"
	}
	Log = NewLogger(level)
}

// NewLogger builds a gookit/slog logger writing text lines to stderr.
func NewLogger(level string) Logger {
	return newLogger(os.Stderr, level)
}

func newLogger(w io.Writer, level string) *slog.Logger {
	logLevel := slog.LevelByName(level)

	var levels slog.Levels
	for _, lv := range slog.AllLevels {
		if lv <= logLevel {
			levels = append(levels, lv)
		}
	}

	h := handler.NewIOWriterHandler(w, levels)
	h.SetFormatter(slog.NewTextFormatter("[{{datetime}}] [{{level}}] {{message}} {{data}}\n"))

	return slog.NewWithHandlers(h)
}

func DebugWithFields(msg string, fields Fields) {
	if lg, ok := Log.(*slog.Logger); ok {
		lg.WithData(slog.M(fields)).Debug(msg)
		return
	}
	Log.Debug(msg)
}

func InfoWithFields(msg string, fields Fields) {
	if lg, ok := Log.(*slog.Logger); ok {
		lg.WithData(slog.M(fields)).Info(msg)
		return
	}
	Log.Info(msg)
}

func WarnWithFields(msg string, fields Fields) {
	if lg, ok := Log.(*slog.Logger); ok {
		lg.WithData(slog.M(fields)).Warn(msg)
		return
	}
	Log.Warn(msg)
}

func ErrorWithFields(msg string, fields Fields) {
	if lg, ok := Log.(*slog.Logger); ok {
		lg.WithData(slog.M(fields)).Error(msg)
		return
	}
	Log.Error(msg)
}
