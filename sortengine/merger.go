package sortengine

import (
	"bufio"
	"container/heap"
	"fmt"
	"io"
	"os"

	errorpkg "github.com/dsort/dsort/error"
	"github.com/dsort/dsort/record"
	"github.com/dsort/dsort/stats"
)

// Merge performs a k-way merge of the sorted run files in runPaths,
// writing the globally sorted output to outPath. It does not delete the
// run files; callers own that lifecycle decision (the single-threaded sort
// deletes them immediately, the multi-threaded sort's stage-1 runs are
// deleted by the thread that produced them after its stage-2 merge).
//
// A run file is opened once and read sequentially; the heap holds at most
// one record per run at a time (a HeapCursor), keeping merge memory at
// O(N) records regardless of run size. Ties between equal records are
// broken arbitrarily (cursorHeap compares record values only) and are not
// observable after concatenation.
//
// s, if non-nil, is incremented once per record written to outPath.
func Merge(runPaths []string, outPath string, recordSize int, s *stats.Stats) error {
	readers := make([]*runReader, 0, len(runPaths))
	defer func() {
		for _, r := range readers {
			r.Close()
		}
	}()

	for _, path := range runPaths {
		r, err := openRun(path, recordSize)
		if err != nil {
			return errorpkg.New(errorpkg.KindIO, "merge", err)
		}
		readers = append(readers, r)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return errorpkg.New(errorpkg.KindIO, "merge", fmt.Errorf("create output %s: %w", outPath, err))
	}
	w := bufio.NewWriterSize(out, 1<<20)

	h := &cursorHeap{}
	heap.Init(h)
	for i, r := range readers {
		rec, ok, err := r.next()
		if err != nil {
			out.Close()
			return errorpkg.New(errorpkg.KindIO, "merge", err)
		}
		if ok {
			heap.Push(h, cursor{runIndex: i, value: rec})
		}
	}

	for h.Len() > 0 {
		top := heap.Pop(h).(cursor)
		if _, err := w.Write(top.value); err != nil {
			out.Close()
			return errorpkg.New(errorpkg.KindIO, "merge", fmt.Errorf("write output %s: %w", outPath, err))
		}
		if s != nil {
			s.Increment(stats.RecordsMerged)
		}

		rec, ok, err := readers[top.runIndex].next()
		if err != nil {
			out.Close()
			return errorpkg.New(errorpkg.KindIO, "merge", err)
		}
		if ok {
			heap.Push(h, cursor{runIndex: top.runIndex, value: rec})
		}
	}

	if err := w.Flush(); err != nil {
		out.Close()
		return errorpkg.New(errorpkg.KindIO, "merge", fmt.Errorf("flush output %s: %w", outPath, err))
	}
	if err := out.Close(); err != nil {
		return errorpkg.New(errorpkg.KindIO, "merge", fmt.Errorf("close output %s: %w", outPath, err))
	}
	return nil
}

// cursor is the merger's working entity: a pair (run index, current
// record). The invariant while it sits in the heap is that value is the
// smallest unread record of run runIndex.
type cursor struct {
	runIndex int
	value    []byte
}

// cursorHeap is a min-heap of cursors ordered by record value, ascending.
type cursorHeap []cursor

func (h cursorHeap) Len() int            { return len(h) }
func (h cursorHeap) Less(i, j int) bool  { return record.Less(h[i].value, h[j].value) }
func (h cursorHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *cursorHeap) Push(x interface{}) { *h = append(*h, x.(cursor)) }
func (h *cursorHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// runReader reads fixed-width records sequentially from one run file. buf
// is allocated once and reused for every record: the merge loop always
// writes (copies) a cursor's value before calling next() again on that same
// run, so there is never more than one live reference to buf at a time.
type runReader struct {
	f    *os.File
	br   *bufio.Reader
	size int
	buf  []byte
}

func openRun(path string, recordSize int) (*runReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open run file %s: %w", path, err)
	}
	return &runReader{f: f, br: bufio.NewReaderSize(f, 1<<20), size: recordSize, buf: make([]byte, recordSize)}, nil
}

// next returns the run's next record, or ok=false when the run is
// exhausted. A partial read (fewer than size bytes, more than zero) after
// the first record is treated as end-of-run rather than a fatal error —
// the defensive policy the component design allows implementations to
// choose, documented here rather than left implicit.
//
// The returned slice aliases r.buf and is only valid until the next call
// to next() on this runReader; callers must consume it (e.g. write it out)
// before reading again.
func (r *runReader) next() ([]byte, bool, error) {
	n, err := io.ReadFull(r.br, r.buf)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read run file: %w", err)
	}
	if n != r.size {
		return nil, false, nil
	}
	return r.buf, true, nil
}

func (r *runReader) Close() error {
	return r.f.Close()
}
