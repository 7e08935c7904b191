package sortengine

import (
	"context"
	"fmt"
	"io"
	"os"

	errorpkg "github.com/dsort/dsort/error"
	"github.com/dsort/dsort/progress"
	"github.com/dsort/dsort/record"
	"github.com/dsort/dsort/scratch"
	"github.com/dsort/dsort/stats"
)

// Options configures a sort job shared by the single- and multi-threaded
// engines.
type Options struct {
	// RecordSize is R.
	RecordSize int
	// MemoryBudget is M, the per-run-producer in-memory byte budget.
	MemoryBudget int64
	// ScratchDir is the parent directory new scratch namespaces are
	// created under ("" for the OS temp directory).
	ScratchDir string
	// Workers is T, the number of parallel shards for the multi-threaded
	// sort. Zero means the default of runtime.NumCPU()+2.
	Workers int
	// Stats, if non-nil, is incremented as the sort progresses.
	Stats *stats.Stats
	// Progress, if non-nil, is advanced by one read's worth of bytes for
	// every chunk read from the input during the produce phase.
	Progress *progress.Bar
}

func (o Options) recordSize() int {
	if o.RecordSize <= 0 {
		return record.DefaultSize
	}
	return o.RecordSize
}

func (o Options) memoryBudget() int64 {
	if o.MemoryBudget <= 0 {
		return record.DefaultMemoryBudget
	}
	return o.MemoryBudget
}

// Sort performs a single-threaded external sort of inputPath into
// outputPath: it composes Produce and Merge, then deletes its run files.
// This is the 4.3 "single-threaded external sort" contract.
func Sort(ctx context.Context, inputPath, outputPath string, opts Options) error {
	in, err := os.Open(inputPath)
	if err != nil {
		return errorpkg.New(errorpkg.KindIO, "sort", fmt.Errorf("open input %s: %w", inputPath, err))
	}
	defer in.Close()

	ns, err := scratch.New(opts.ScratchDir)
	if err != nil {
		return errorpkg.New(errorpkg.KindIO, "sort", err)
	}
	defer ns.Close()

	var reader io.Reader = in
	if opts.Progress != nil {
		reader = &progress.CountingReader{R: in, Bar: opts.Progress}
	}

	runs, err := Produce(ctx, reader, ProduceOptions{
		RecordSize:   opts.recordSize(),
		MemoryBudget: opts.memoryBudget(),
		PathFor:      ns.RunPath,
		Stats:        opts.Stats,
	})
	if err != nil {
		return err
	}

	if err := Merge(runs, outputPath, opts.recordSize(), opts.Stats); err != nil {
		return err
	}

	for _, run := range runs {
		if err := scratch.RemoveAll(run); err != nil {
			return errorpkg.New(errorpkg.KindIO, "sort", fmt.Errorf("remove run file %s: %w", run, err))
		}
	}
	return nil
}
