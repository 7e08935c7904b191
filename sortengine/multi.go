package sortengine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	errorpkg "github.com/dsort/dsort/error"
	"github.com/dsort/dsort/parallel"
	"github.com/dsort/dsort/progress"
	"github.com/dsort/dsort/scratch"
	"github.com/dsort/dsort/shard"
)

// workerCount resolves T = hardware_concurrency + 2, or the configured
// override. The "+2" is heuristic overlap for I/O-bound phases (design
// notes §9); it is exposed here as the Options.Workers tunable rather than
// hard-coded.
func (o Options) workerCount() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.NumCPU() + 2
}

// SortMT performs a multi-threaded external sort of inputPath into
// outputPath: it partitions the input into T record-aligned shards, runs
// Produce+Merge per shard concurrently producing T per-thread sorted
// files, then merges those T files once more into the final output. This
// is the 4.4 "multi-threaded external sort" contract; it is also what the
// worker node applies to its received shard.
func SortMT(ctx context.Context, inputPath, outputPath string, opts Options) error {
	info, err := os.Stat(inputPath)
	if err != nil {
		return errorpkg.New(errorpkg.KindIO, "sort-mt", fmt.Errorf("stat input %s: %w", inputPath, err))
	}

	recordSize := opts.recordSize()
	aligned := int64(recordSize) * (info.Size() / int64(recordSize))
	workers := opts.workerCount()

	shards, err := shard.Partition(aligned, recordSize, workers)
	if err != nil {
		return errorpkg.New(errorpkg.KindConfig, "sort-mt", err)
	}

	ns, err := scratch.New(opts.ScratchDir)
	if err != nil {
		return errorpkg.New(errorpkg.KindIO, "sort-mt", err)
	}
	defer ns.Close()

	threadOutputs := make([]string, workers)

	group := parallel.NewGroup(ctx, workers)
	for _, s := range shards {
		s := s
		group.Go(func() error {
			return produceAndMergeShard(group.Context(), inputPath, s, ns, opts, threadOutputs)
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	// Drop the (possibly empty, when workers > number of records) slots
	// with no data before the final merge: an empty shard never produces a
	// thread output file.
	var nonEmpty []string
	for _, p := range threadOutputs {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}

	if err := Merge(nonEmpty, outputPath, recordSize, opts.Stats); err != nil {
		return err
	}

	for _, p := range nonEmpty {
		if err := scratch.RemoveAll(p); err != nil {
			return errorpkg.New(errorpkg.KindIO, "sort-mt", fmt.Errorf("remove thread output %s: %w", p, err))
		}
	}
	return nil
}

// produceAndMergeShard runs stage 1 (produce sorted runs from the shard's
// byte range, in the thread's private scratch subdirectory) and stage 2
// (merge those runs into one per-thread sorted file at the namespace
// root), then deletes the stage-1 runs. Each thread writes only to its own
// index of threadOutputs, so no lock is needed even though the slice is
// shared across goroutines (see package parallel's doc comment).
func produceAndMergeShard(ctx context.Context, inputPath string, s shard.Shard, ns *scratch.Namespace, opts Options, threadOutputs []string) error {
	if s.Size == 0 {
		return nil
	}

	f, err := os.Open(inputPath)
	if err != nil {
		return errorpkg.New(errorpkg.KindIO, "sort-mt", fmt.Errorf("open input %s: %w", inputPath, err))
	}
	defer f.Close()

	tid := s.Index
	section := io.NewSectionReader(f, s.Offset, s.Size)

	var reader io.Reader = section
	if opts.Progress != nil {
		reader = &progress.CountingReader{R: section, Bar: opts.Progress}
	}

	runs, err := Produce(ctx, reader, ProduceOptions{
		RecordSize:   opts.recordSize(),
		MemoryBudget: opts.memoryBudget(),
		PathFor: func(i int) string {
			return ns.ThreadRunPath(tid, i)
		},
		Stats: opts.Stats,
	})
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		return nil
	}

	out := ns.ThreadOutputPath(tid)
	if err := Merge(runs, out, opts.recordSize(), opts.Stats); err != nil {
		return err
	}

	threadDir := filepath.Dir(ns.ThreadRunPath(tid, 0))
	if err := scratch.RemoveAll(threadDir); err != nil {
		return errorpkg.New(errorpkg.KindIO, "sort-mt", fmt.Errorf("remove thread scratch dir: %w", err))
	}

	threadOutputs[tid] = out
	return nil
}
