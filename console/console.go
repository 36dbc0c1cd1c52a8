// Package console defines the sink contract for the guest console object and
// ships backends for common destinations.
package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/caffeineduck/quickjs/value"
)

// Level is a console severity, ordered from most to least verbose.
type Level int

const (
	Trace Level = iota
	Debug
	Log
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Trace:
		return "trace"
	case Debug:
		return "debug"
	case Log:
		return "log"
	case Info:
		return "info"
	case Warn:
		return "warn"
	case Error:
		return "error"
	}
	return "unknown"
}

// ParseLevel maps a console method name to its Level.
func ParseLevel(s string) (Level, bool) {
	switch s {
	case "trace":
		return Trace, true
	case "debug":
		return Debug, true
	case "log":
		return Log, true
	case "info":
		return Info, true
	case "warn":
		return Warn, true
	case "error":
		return Error, true
	}
	return Log, false
}

// Backend receives console calls made by guest code. values are released by
// the caller after Log returns.
type Backend interface {
	Log(level Level, values []value.Value)
}

// NopBackend drops everything.
type NopBackend struct{}

func (NopBackend) Log(Level, []value.Value) {}

// WriterBackend renders console lines to an io.Writer.
type WriterBackend struct {
	W io.Writer
}

func NewWriterBackend(w io.Writer) *WriterBackend { return &WriterBackend{W: w} }

func (b *WriterBackend) Log(level Level, values []value.Value) {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = Render(v)
	}
	fmt.Fprintf(b.W, "[%s] %s\n", level, strings.Join(parts, " "))
}

// Render formats a single console argument the way browsers print them:
// strings bare, everything else in debug form.
func Render(v value.Value) string {
	if s, ok := v.AsString(); ok {
		return s
	}
	return v.String()
}
