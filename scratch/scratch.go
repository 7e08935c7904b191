// Package scratch manages the on-disk scratch namespace a sort job uses for
// its run files. Each job gets a directory named after a freshly generated
// UUID, so two concurrent local jobs started from the same working
// directory never collide on a run file name (data model invariant: "no
// two concurrent sort jobs share a scratch name") — the original C++
// sorter instead wrote part_<i> directly into the current directory and
// relied on never running two jobs from the same directory at once.
package scratch

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Namespace is a job-scoped scratch directory. Run files and per-thread
// sub-namespaces live under it; Close removes the whole tree in one call,
// the "scoped acquisition... removed on all exit paths" idea from the
// design notes, applied via defer at every call site instead of scattered
// remove() calls.
type Namespace struct {
	root string
}

// New creates a fresh scratch namespace under base (base must already
// exist; "" means the OS temp directory).
func New(base string) (*Namespace, error) {
	if base == "" {
		base = os.TempDir()
	}
	root := filepath.Join(base, "distsort-"+uuid.NewString())
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("scratch: create namespace: %w", err)
	}
	return &Namespace{root: root}, nil
}

// Root returns the namespace's root directory.
func (n *Namespace) Root() string { return n.root }

// RunPath returns the path for the i-th run file at the namespace's root,
// e.g. part_0, part_1, ... (single-threaded sort naming).
func (n *Namespace) RunPath(i int) string {
	return filepath.Join(n.root, fmt.Sprintf("part_%d", i))
}

// ThreadRunPath returns the path for the i-th run file produced by thread
// tid, e.g. thread3/part_0 (multi-threaded sort, stage 1 naming).
func (n *Namespace) ThreadRunPath(tid, i int) string {
	return filepath.Join(n.root, fmt.Sprintf("thread%d", tid), fmt.Sprintf("part_%d", i))
}

// ThreadOutputPath returns the path for thread tid's stage-2 merged output
// at the namespace root, e.g. part_3 (multi-threaded sort, stage 2 naming).
func (n *Namespace) ThreadOutputPath(tid int) string {
	return filepath.Join(n.root, fmt.Sprintf("part_%d", tid))
}

// SlavePartPath returns the path the coordinator stores the result received
// from the connection accepted at index idx in the second wave, e.g.
// slave0.part.
func (n *Namespace) SlavePartPath(idx int) string {
	return filepath.Join(n.root, fmt.Sprintf("slave%d.part", idx))
}

// InputPath returns the path a worker writes its received shard to before
// sorting it, named after the original implementation's "slave.input".
func (n *Namespace) InputPath() string {
	return filepath.Join(n.root, "slave.input")
}

// SortedOutputPath returns the path a worker writes its sorted shard to
// before sending it back, named after the original implementation's
// "sorted.output".
func (n *Namespace) SortedOutputPath() string {
	return filepath.Join(n.root, "sorted.output")
}

// EnsureDir creates the directory containing path, if it doesn't exist yet
// (used for per-thread subdirectories created lazily on first write).
func EnsureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

// RemoveAll removes path (a run file or a whole sub-namespace directory).
func RemoveAll(path string) error {
	return os.RemoveAll(path)
}

// Close removes the namespace's entire directory tree. It is safe to call
// on a namespace whose directory no longer exists.
func (n *Namespace) Close() error {
	return os.RemoveAll(n.root)
}
