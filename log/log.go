// Package log is a small leveled logger, modeled on the teacher's
// log/message split: callers build a Message describing what happened and
// the logger renders it either as a human-readable line or, with
// --json, as a JSON line. All writes are funneled through a single
// goroutine so that concurrent producer/merger/worker/coordinator
// goroutines never interleave partial lines on stdout.
package log

import (
	"fmt"
	"os"
)

// Level is a logging severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	default:
		return "#"
	}
}

func LevelFromString(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "warning":
		return LevelWarning
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Message is anything that can render itself both as a human-readable line
// and as a JSON document.
type Message interface {
	String() string
	JSON() string
}

var stdoutCh chan string

var (
	level  Level
	asJSON bool
	done   chan struct{}
)

// Init starts the background writer goroutine. It must be called once,
// before any other function in this package, and Close must be called
// before process exit so that buffered lines are flushed.
func Init(lvl Level, jsonOutput bool) {
	level = lvl
	asJSON = jsonOutput
	stdoutCh = make(chan string, 10000)
	done = make(chan struct{})
	go func() {
		for line := range stdoutCh {
			fmt.Fprintln(os.Stdout, line)
		}
		close(done)
	}()
}

// Close drains any buffered log lines and stops the writer goroutine.
func Close() {
	if stdoutCh == nil {
		return
	}
	close(stdoutCh)
	<-done
}

func render(lvl Level, msg Message) string {
	if asJSON {
		return msg.JSON()
	}
	return fmt.Sprintf("%-7s %s", lvl, msg.String())
}

func printf(lvl Level, msg Message) {
	if lvl < level || stdoutCh == nil {
		return
	}
	stdoutCh <- render(lvl, msg)
}

// Debug logs a debug-level message.
func Debug(msg Message) { printf(LevelDebug, msg) }

// Info logs an info-level message.
func Info(msg Message) { printf(LevelInfo, msg) }

// Warning logs a warning-level message.
func Warning(msg Message) { printf(LevelWarning, msg) }

// Error logs an error-level message. Error-level messages are always
// printed regardless of the configured level.
func Error(msg Message) {
	if stdoutCh == nil {
		return
	}
	stdoutCh <- render(LevelError, msg)
}
