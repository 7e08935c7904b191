package log

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// JobStart announces the beginning of a sort or distributed job.
type JobStart struct {
	Mode      string `json:"mode"`
	Input     string `json:"input,omitempty"`
	SizeBytes int64  `json:"size_bytes"`
}

func (m JobStart) String() string {
	if m.Input == "" {
		return fmt.Sprintf("%s: starting", m.Mode)
	}
	return fmt.Sprintf("%s: %s (%s)", m.Mode, m.Input, humanize.IBytes(uint64(m.SizeBytes)))
}

func (m JobStart) JSON() string { return toJSON(m) }

// Summary announces the successful completion of a job, with its wall-clock
// duration. It is the "print summary timings" requirement from the
// error-handling design.
type Summary struct {
	Mode     string        `json:"mode"`
	Duration time.Duration `json:"duration_ms"`
	Detail   string        `json:"detail,omitempty"`
}

func (m Summary) String() string {
	if m.Detail == "" {
		return fmt.Sprintf("%s: done in %s", m.Mode, m.Duration.Round(time.Millisecond))
	}
	return fmt.Sprintf("%s: done in %s (%s)", m.Mode, m.Duration.Round(time.Millisecond), m.Detail)
}

func (m Summary) JSON() string { return toJSON(m) }

// Failure is the single stderr/stdout diagnostic line per failure required
// by the error-handling design.
type Failure struct {
	Op  string `json:"op"`
	Err string `json:"error"`
}

func (m Failure) String() string {
	return fmt.Sprintf("%s: %s", m.Op, cleanupSpaces(m.Err))
}

func (m Failure) JSON() string {
	m.Err = cleanupSpaces(m.Err)
	return toJSON(m)
}

// DebugMessage is a free-form diagnostic line, used sparingly for
// phase-transition tracing (e.g. "thread 3: wrote part_7"). Named
// DebugMessage rather than Debug because log.Debug is already the
// package-level function that logs at debug level.
type DebugMessage struct {
	Content string `json:"content"`
}

func (m DebugMessage) String() string { return m.Content }
func (m DebugMessage) JSON() string   { return toJSON(m) }

func toJSON(v interface{}) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func cleanupSpaces(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	s = strings.ReplaceAll(s, "  ", " ")
	return strings.TrimSpace(s)
}
