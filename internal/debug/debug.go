// Package debug emits structured trace lines for fetch, match and edit
// operations when debugging is enabled.
//
// A trace line looks like:
//
//	[debug] op=match title="Fix login bug" by=title number=5
//
// Lines go to the configured writer (stdout by default) and, when a log file
// is configured, also to a size-rotated file.
package debug

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures a trace Logger.
type Options struct {
	// Enabled turns tracing on. A disabled Logger discards everything.
	Enabled bool

	// Out receives trace lines (default: os.Stdout)
	Out io.Writer

	// File, when set, also receives trace lines through a rotating writer
	File string

	// MaxSizeMB is the rotation size for File (default: 10)
	MaxSizeMB int
}

// Logger writes trace lines. The zero value and a nil *Logger are valid and
// discard everything.
type Logger struct {
	logger *log.Logger
	file   *lumberjack.Logger
}

// New creates a trace logger from options.
func New(opts Options) *Logger {
	if !opts.Enabled {
		return &Logger{}
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	l := &Logger{}
	if opts.File != "" {
		size := opts.MaxSizeMB
		if size <= 0 {
			size = 10
		}
		l.file = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    size,
			MaxBackups: 3,
			Compress:   false,
		}
		out = io.MultiWriter(out, l.file)
	}
	l.logger = log.New(out, "[debug] ", 0)
	return l
}

// Enabled reports whether trace lines are written.
func (l *Logger) Enabled() bool {
	return l != nil && l.logger != nil
}

// Trace writes one line for op with alternating key/value pairs.
// A trailing key without a value is written with an empty value.
func (l *Logger) Trace(op string, kv ...any) {
	if !l.Enabled() {
		return
	}
	l.logger.Print(Format(op, kv...))
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Format renders op and key/value pairs as a single logfmt style line.
func Format(op string, kv ...any) string {
	var b strings.Builder
	b.WriteString("op=")
	b.WriteString(quote(op))
	for i := 0; i < len(kv); i += 2 {
		b.WriteByte(' ')
		b.WriteString(fmt.Sprint(kv[i]))
		b.WriteByte('=')
		if i+1 < len(kv) {
			b.WriteString(quote(fmt.Sprint(kv[i+1])))
		}
	}
	return b.String()
}

func quote(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\"=") {
		return strconv.Quote(s)
	}
	return s
}

// EnvEnabled interprets the value of a debug environment variable.
// Any non-empty value other than an explicit false ("0", "false", "no",
// "off") enables debugging.
func EnvEnabled(value string) bool {
	v := strings.TrimSpace(value)
	if v == "" {
		return false
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	switch strings.ToLower(v) {
	case "no", "off":
		return false
	}
	return true
}
