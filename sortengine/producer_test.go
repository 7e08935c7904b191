package sortengine

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/dsort/dsort/record"
)

func TestProduceSortsEachChunk(t *testing.T) {
	const size = 100
	dir := t.TempDir()
	data := randomRecords(1, 37, size)

	runs, err := Produce(context.Background(), bytes.NewReader(data), ProduceOptions{
		RecordSize:   size,
		MemoryBudget: int64(10 * size), // forces multiple chunks
		PathFor: func(i int) string {
			return filepath.Join(dir, fmt.Sprintf("run_%d", i))
		},
	})
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if len(runs) != 4 { // 37 records / 10 per chunk -> 4 chunks (10,10,10,7)
		t.Fatalf("got %d runs, want 4", len(runs))
	}

	for _, path := range runs {
		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read run %s: %v", path, err)
		}
		recs := splitRecords(content, size)
		for i := 1; i < len(recs); i++ {
			if record.Less(recs[i], recs[i-1]) {
				t.Fatalf("run %s not sorted at record %d", path, i)
			}
		}
	}
}

func TestProduceDiscardsPartialFinalRecord(t *testing.T) {
	const size = 100
	dir := t.TempDir()
	data := randomRecords(2, 5, size)
	data = append(data, []byte{1, 2, 3}...) // trailing partial record

	runs, err := Produce(context.Background(), bytes.NewReader(data), ProduceOptions{
		RecordSize:   size,
		MemoryBudget: int64(100 * size),
		PathFor: func(i int) string {
			return filepath.Join(dir, fmt.Sprintf("run_%d", i))
		},
	})
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	content, err := os.ReadFile(runs[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(content) != 5*size {
		t.Fatalf("run length = %d, want %d (partial trailing record discarded)", len(content), 5*size)
	}
}

// TestProduceAcceptsMisalignedMemoryBudget checks that a memory budget
// which isn't an exact multiple of the record size is accepted rather than
// rejected: a budget of 250 bytes against 100-byte records reads
// floor(250/100) = 2 whole records per chunk, so no record is split
// between chunks and every input record ends up in exactly one run.
func TestProduceAcceptsMisalignedMemoryBudget(t *testing.T) {
	const size = 100
	dir := t.TempDir()
	data := randomRecords(5, 25, size) // 2500 bytes: 12 chunks of 200 bytes, then one of 100

	runs, err := Produce(context.Background(), bytes.NewReader(data), ProduceOptions{
		RecordSize:   size,
		MemoryBudget: 250,
		PathFor: func(i int) string {
			return filepath.Join(dir, fmt.Sprintf("run_%d", i))
		},
	})
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if len(runs) != 13 {
		t.Fatalf("got %d runs, want 13", len(runs))
	}

	var total int
	for i, path := range runs {
		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read run %s: %v", path, err)
		}
		wantLen := 200 // floor(250/100)*100
		if i == len(runs)-1 {
			wantLen = 100
		}
		if len(content) != wantLen {
			t.Fatalf("run %s length = %d, want %d", path, len(content), wantLen)
		}
		recs := splitRecords(content, size)
		for i := 1; i < len(recs); i++ {
			if record.Less(recs[i], recs[i-1]) {
				t.Fatalf("run %s not sorted at record %d", path, i)
			}
		}
		total += len(content)
	}
	if want := 25 * size; total != want {
		t.Fatalf("total bytes across runs = %d, want %d", total, want)
	}
}

func TestProduceRejectsBudgetSmallerThanRecord(t *testing.T) {
	_, err := Produce(context.Background(), bytes.NewReader(nil), ProduceOptions{
		RecordSize:   100,
		MemoryBudget: 50,
		PathFor:      func(i int) string { return "" },
	})
	if err == nil {
		t.Fatal("expected error for memory budget smaller than one record")
	}
}

func TestProduceEmptyInputYieldsNoRuns(t *testing.T) {
	runs, err := Produce(context.Background(), bytes.NewReader(nil), ProduceOptions{
		RecordSize:   100,
		MemoryBudget: 1000,
		PathFor:      func(i int) string { return "" },
	})
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("got %d runs, want 0", len(runs))
	}
}
