// Package worker implements the distributed sort's worker (slave) node: it
// connects to a coordinator, receives a byte-stream shard, sorts it with
// the multi-threaded engine, and streams the sorted shard back over a
// second connection. Grounded on original_source/slave.cpp's Slave::run,
// carried over as two sequential TCP sessions rather than one multiplexed
// one, per the wire protocol's explicit two-session contract.
package worker

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	errorpkg "github.com/dsort/dsort/error"
	"github.com/dsort/dsort/log"
	"github.com/dsort/dsort/scratch"
	"github.com/dsort/dsort/sortengine"
	"github.com/dsort/dsort/stats"
	"github.com/dsort/dsort/transport"
)

// Options configures a single worker run.
type Options struct {
	// Address is the coordinator's host:port.
	Address string
	// ScratchDir is the parent directory the worker's scratch namespace is
	// created under ("" for the OS temp directory).
	ScratchDir string
	// RecordSize is R.
	RecordSize int
	// MemoryBudget is M, the per-shard-shard (thread) producer budget.
	MemoryBudget int64
	// Workers is T for the local multi-threaded sort of the received
	// shard. Zero means runtime.NumCPU()+2.
	Workers int
	// DialTimeout bounds each of the two connection attempts. Zero means
	// no timeout.
	DialTimeout time.Duration
	// Stats, if non-nil, is incremented as the worker runs.
	Stats *stats.Stats
}

// Run executes one worker job end to end: connect, receive, sort, connect,
// send. It exits after exactly one job, matching the state machine
// Start -> Connected_in -> Receiving -> Sorted -> Connected_out -> Sent ->
// Exit in spec 4.7; any failure returns a non-nil error instead of
// transitioning further.
func Run(ctx context.Context, opts Options) error {
	ns, err := scratch.New(opts.ScratchDir)
	if err != nil {
		return errorpkg.New(errorpkg.KindIO, "worker", err)
	}
	defer ns.Close()

	inputPath := ns.InputPath()
	if err := receiveShard(ctx, opts, inputPath); err != nil {
		return err
	}

	outputPath := ns.SortedOutputPath()
	sortOpts := sortengine.Options{
		RecordSize:   opts.RecordSize,
		MemoryBudget: opts.MemoryBudget,
		ScratchDir:   ns.Root(),
		Workers:      opts.Workers,
		Stats:        opts.Stats,
	}
	if err := sortengine.SortMT(ctx, inputPath, outputPath, sortOpts); err != nil {
		return err
	}
	if err := os.Remove(inputPath); err != nil {
		return errorpkg.New(errorpkg.KindIO, "worker", fmt.Errorf("remove received shard: %w", err))
	}

	if err := sendResult(ctx, opts, outputPath); err != nil {
		return err
	}
	return nil
}

// receiveShard opens the input session: connect, then copy everything the
// coordinator sends (until it closes its write side) into a local file.
func receiveShard(ctx context.Context, opts Options, inputPath string) error {
	conn, err := dial(ctx, opts)
	if err != nil {
		return errorpkg.New(errorpkg.KindNetwork, "worker-receive", err)
	}
	defer conn.Close()

	log.Debug(log.DebugMessage{Content: fmt.Sprintf("connected to coordinator %s for input session", opts.Address)})

	f, err := os.Create(inputPath)
	if err != nil {
		return errorpkg.New(errorpkg.KindIO, "worker-receive", fmt.Errorf("create %s: %w", inputPath, err))
	}
	defer f.Close()

	if _, err := transport.Receive(f, conn); err != nil {
		return errorpkg.New(errorpkg.KindNetwork, "worker-receive", fmt.Errorf("receive shard: %w", err))
	}
	return nil
}

// sendResult opens the output session: reconnect, stream the sorted file,
// then close the connection to signal end of stream.
func sendResult(ctx context.Context, opts Options, outputPath string) error {
	conn, err := dial(ctx, opts)
	if err != nil {
		return errorpkg.New(errorpkg.KindNetwork, "worker-send", err)
	}
	defer conn.Close()

	f, err := os.Open(outputPath)
	if err != nil {
		return errorpkg.New(errorpkg.KindIO, "worker-send", fmt.Errorf("open %s: %w", outputPath, err))
	}
	defer f.Close()

	if _, err := transport.Send(conn, f); err != nil {
		return errorpkg.New(errorpkg.KindNetwork, "worker-send", fmt.Errorf("send sorted shard: %w", err))
	}
	return nil
}

func dial(ctx context.Context, opts Options) (net.Conn, error) {
	d := net.Dialer{Timeout: opts.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", opts.Address)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", opts.Address, err)
	}
	return conn, nil
}
