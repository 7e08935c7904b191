// Package progress renders a live progress bar over a job's byte
// throughput, the way the teacher's progress package wraps a bar library
// behind increment/add methods instead of exposing the bar directly. This
// module uses vbauerster/mpb instead of the teacher's cheggaaa/pb — picked
// because the distributed coordinator needs one bar per worker, which mpb's
// container model expresses directly.
package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Bar wraps a single mpb bar tracking bytes transferred for one named
// stage (e.g. a shard send, a shard receive, a local sort).
type Bar struct {
	mu   sync.Mutex
	bar  *mpb.Bar
	done int64
}

// Tracker owns the bar container for a whole run and is safe for
// concurrent use: the coordinator creates one Bar per worker goroutine
// from the same Tracker.
type Tracker struct {
	progress *mpb.Progress
}

// NewTracker creates a Tracker writing to w. Pass io.Discard to disable
// rendering (e.g. in tests).
func NewTracker(w io.Writer) *Tracker {
	return &Tracker{
		progress: mpb.New(mpb.WithOutput(w), mpb.WithWidth(64), mpb.WithRefreshRate(150*time.Millisecond)),
	}
}

// AddBar registers a new byte-counted bar named name with the given total.
func (t *Tracker) AddBar(name string, total int64) *Bar {
	b := t.progress.AddBar(total,
		mpb.PrependDecorators(decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DindentRight})),
		mpb.AppendDecorators(
			decor.CountersKibiByte("% .2f / % .2f"),
			decor.Name(" "),
			decor.EwmaSpeed(decor.SizeB1024(0), "% .2f", 30),
		),
	)
	return &Bar{bar: b}
}

// Add advances the bar by n bytes.
func (b *Bar) Add(n int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.done += n
	b.bar.IncrInt64(n)
}

// SetTotal updates the bar's total, for cases where the size isn't known
// until the transfer begins (e.g. a worker receiving a shard of unknown-
// until-negotiated size).
func (b *Bar) SetTotal(total int64) {
	b.bar.SetTotal(total, false)
}

// Done marks the bar as complete regardless of its current total.
func (b *Bar) Done() {
	b.bar.SetTotal(-1, true)
}

// Wait blocks until every bar registered on the tracker has completed
// rendering, so a CLI command can print its summary after the bars.
func (t *Tracker) Wait() {
	t.progress.Wait()
}

// CountingReader wraps an io.Reader and reports every read to a Bar, for
// wiring progress into io.Copy-based transfers without threading a
// counter through the copy loop by hand.
type CountingReader struct {
	R   io.Reader
	Bar *Bar
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.R.Read(p)
	if n > 0 && c.Bar != nil {
		c.Bar.Add(int64(n))
	}
	return n, err
}

var _ io.Reader = (*CountingReader)(nil)

// Label formats a human stage label for a bar name, e.g. "shard 3 -> w3".
func Label(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}
