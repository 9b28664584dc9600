// Package xlog is a small leveled, contextual logger in the idiom of
// go-ethereum's log package: a root logger, per-component New(ctx...)
// loggers, a level filter, and a terminal handler that colorizes output
// when writing to an interactive TTY.
package xlog

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Level mirrors go-ethereum's log.Lvl ordering: lower is more severe.
type Level int

const (
	LvlError Level = iota
	LvlWarn
	LvlInfo
	LvlDebug
	LvlTrace
)

// ParseLevel parses one of "error", "warn", "info", "debug", "trace"
// (case-insensitive), the vocabulary accepted by Config.Node.LogLevel.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "error":
		return LvlError, nil
	case "warn":
		return LvlWarn, nil
	case "info":
		return LvlInfo, nil
	case "debug":
		return LvlDebug, nil
	case "trace":
		return LvlTrace, nil
	default:
		return 0, fmt.Errorf("xlog: unrecognized level %q", s)
	}
}

func (l Level) String() string {
	switch l {
	case LvlError:
		return "ERROR"
	case LvlWarn:
		return "WARN"
	case LvlInfo:
		return "INFO"
	case LvlDebug:
		return "DEBUG"
	case LvlTrace:
		return "TRACE"
	default:
		return "?????"
	}
}

var levelColor = map[Level]color.Attribute{
	LvlError: color.FgRed,
	LvlWarn:  color.FgYellow,
	LvlInfo:  color.FgGreen,
	LvlDebug: color.FgCyan,
	LvlTrace: color.FgMagenta,
}

// Logger writes leveled, contextual log lines.
type Logger struct {
	name string
	ctx  []interface{}
}

var (
	rootMu     sync.RWMutex
	rootLevel  = LvlInfo
	rootOut    io.Writer
	rootColor  bool
	rootCaller bool
)

func init() {
	SetOutput(os.Stderr)
}

// SetOutput sets the root logger's destination, auto-detecting terminal
// color support the way go-ethereum's log.StreamHandler(os.Stderr, ...)
// does via mattn/go-isatty, wrapping in mattn/go-colorable for Windows
// console compatibility.
func SetOutput(w io.Writer) {
	rootMu.Lock()
	defer rootMu.Unlock()
	rootOut = w
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		rootOut = colorable.NewColorable(f)
		rootColor = true
	} else {
		rootColor = false
	}
}

// SetLevel sets the root log level; records below this level are dropped.
func SetLevel(l Level) {
	rootMu.Lock()
	defer rootMu.Unlock()
	rootLevel = l
}

// SetCallerInfo toggles appending the immediate caller's file:line (via
// go-stack/stack) to each record, useful for Trace-level debugging.
func SetCallerInfo(on bool) {
	rootMu.Lock()
	defer rootMu.Unlock()
	rootCaller = on
}

// New creates a component logger carrying the given key/value context
// pairs, appended to every record it emits.
func New(ctx ...interface{}) *Logger {
	return &Logger{ctx: ctx}
}

// Named returns a copy of l tagged with a component name, shown as the
// first field of every record.
func (l *Logger) Named(name string) *Logger {
	return &Logger{name: name, ctx: l.ctx}
}

// With returns a copy of l with additional context key/value pairs.
func (l *Logger) With(ctx ...interface{}) *Logger {
	merged := make([]interface{}, 0, len(l.ctx)+len(ctx))
	merged = append(merged, l.ctx...)
	merged = append(merged, ctx...)
	return &Logger{name: l.name, ctx: merged}
}

func (l *Logger) log(lvl Level, msg string, ctx []interface{}) {
	rootMu.RLock()
	level, out, useColor, caller := rootLevel, rootOut, rootColor, rootCaller
	rootMu.RUnlock()

	if lvl > level {
		return
	}

	var b strings.Builder
	ts := time.Now().Format("2006-01-02T15:04:05.000")
	if useColor {
		c := color.New(levelColor[lvl])
		fmt.Fprintf(&b, "%s %s ", ts, c.Sprintf("%-5s", lvl))
	} else {
		fmt.Fprintf(&b, "%s %-5s ", ts, lvl)
	}
	if l.name != "" {
		fmt.Fprintf(&b, "[%s] ", l.name)
	}
	b.WriteString(msg)

	all := make([]interface{}, 0, len(l.ctx)+len(ctx))
	all = append(all, l.ctx...)
	all = append(all, ctx...)
	for i := 0; i+1 < len(all); i += 2 {
		fmt.Fprintf(&b, " %v=%v", all[i], all[i+1])
	}
	if caller {
		// Frame 0 is log, 1 is the level method (Info, Error, ...), 2 is
		// the code that called it.
		fmt.Fprintf(&b, " caller=%+v", stack.Caller(2))
	}
	b.WriteByte('\n')
	io.WriteString(out, b.String())
}

func (l *Logger) Error(msg string, ctx ...interface{}) { l.log(LvlError, msg, ctx) }
func (l *Logger) Warn(msg string, ctx ...interface{})  { l.log(LvlWarn, msg, ctx) }
func (l *Logger) Info(msg string, ctx ...interface{})  { l.log(LvlInfo, msg, ctx) }
func (l *Logger) Debug(msg string, ctx ...interface{}) { l.log(LvlDebug, msg, ctx) }
func (l *Logger) Trace(msg string, ctx ...interface{}) { l.log(LvlTrace, msg, ctx) }

var root = New()

// Root returns the package-level default logger, mirroring go-ethereum's
// log.Root().
func Root() *Logger { return root }
