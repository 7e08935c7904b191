// Package sortengine implements the external-memory sort engine: the run
// producer, the k-way merger, and the single- and multi-threaded sorts
// built on top of them. This is the hard engineering core of the module;
// it is hand-written against the exact contracts in the component design
// rather than delegated to a generic external-sort library, because those
// contracts (run file naming, per-thread scratch layout, the specific
// partition formula) are the point of the exercise (see DESIGN.md).
package sortengine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	errorpkg "github.com/dsort/dsort/error"
	"github.com/dsort/dsort/record"
	"github.com/dsort/dsort/stats"
)

// ProduceOptions configures the run producer.
type ProduceOptions struct {
	// RecordSize is R, the fixed record width in bytes.
	RecordSize int
	// MemoryBudget is M, the maximum number of bytes held in memory for a
	// single run before it is sorted and spilled.
	MemoryBudget int64
	// PathFor returns the scratch path for the i-th run file (zero-based).
	PathFor func(i int) string
	// Stats, if non-nil, is incremented as runs are produced.
	Stats *stats.Stats
}

// Produce reads r in chunks of MemoryBudget bytes rounded down to a whole
// number of records, sorts each chunk in memory
// using the byte-lexicographic comparator, and writes it as a sorted run
// file via opts.PathFor. It returns the run file paths in the order they
// were written. A short trailing read of fewer than RecordSize bytes is
// silently discarded, per the partial-final-record policy.
func Produce(ctx context.Context, r io.Reader, opts ProduceOptions) ([]string, error) {
	if opts.RecordSize <= 0 {
		return nil, errorpkg.New(errorpkg.KindConfig, "produce-runs",
			fmt.Errorf("record size must be positive, got %d", opts.RecordSize))
	}
	if opts.MemoryBudget < int64(opts.RecordSize) {
		return nil, errorpkg.New(errorpkg.KindConfig, "produce-runs",
			fmt.Errorf("memory budget %d is smaller than a single record (%d bytes)", opts.MemoryBudget, opts.RecordSize))
	}
	// Round the buffer down to whole records so every chunk starts on a
	// record boundary and no record is split between two chunks.
	buf := make([]byte, opts.MemoryBudget-opts.MemoryBudget%int64(opts.RecordSize))
	var runs []string

	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return runs, ctx.Err()
		default:
		}

		n, err := readFull(r, buf)
		if err != nil {
			return runs, errorpkg.New(errorpkg.KindIO, "produce-runs", err)
		}
		if n == 0 {
			break
		}

		usable := record.Truncate(n, opts.RecordSize)
		if usable == 0 {
			break
		}

		chunk := buf[:usable]
		slice, err := record.NewSlice(chunk, opts.RecordSize)
		if err != nil {
			return runs, errorpkg.New(errorpkg.KindInvariant, "produce-runs", err)
		}
		sort.Sort(slice)

		path := opts.PathFor(i)
		if err := writeRun(path, chunk); err != nil {
			return runs, errorpkg.New(errorpkg.KindIO, "produce-runs", err)
		}
		runs = append(runs, path)
		if opts.Stats != nil {
			opts.Stats.Increment(stats.RunProduced)
		}

		if n < len(buf) {
			// short read: reader is exhausted.
			break
		}
	}

	return runs, nil
}

// readFull reads from r until buf is full, r returns an error, or r is
// exhausted, returning the number of bytes actually filled. Unlike
// io.ReadFull it does not treat a short final read as an error: it is the
// normal way a chunked read of the last, partial chunk of a file ends.
func readFull(r io.Reader, buf []byte) (int, error) {
	var n int
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			if err == io.EOF {
				return n, nil
			}
			return n, err
		}
		if m == 0 {
			// reader made no progress without an error; treat as drained
			// rather than spinning forever.
			break
		}
	}
	return n, nil
}

func writeRun(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create run directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create run file %s: %w", path, err)
	}

	w := bufio.NewWriterSize(f, 1<<20)
	if _, err := w.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write run file %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush run file %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close run file %s: %w", path, err)
	}
	return nil
}
