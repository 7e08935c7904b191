package master_test

import (
	"bytes"
	"context"
	"math/rand"
	"net"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dsort/dsort/master"
	"github.com/dsort/dsort/sortengine"
	"github.com/dsort/dsort/transport"
)

const recordSize = 100

func randomInput(seed int64, n int) []byte {
	r := rand.New(rand.NewSource(seed))
	buf := make([]byte, n*recordSize)
	r.Read(buf)
	return buf
}

func sortedReference(data []byte) []byte {
	n := len(data) / recordSize
	recs := make([][]byte, n)
	for i := range recs {
		recs[i] = data[i*recordSize : (i+1)*recordSize]
	}
	sort.Slice(recs, func(i, j int) bool { return bytes.Compare(recs[i], recs[j]) < 0 })
	out := make([]byte, 0, len(data))
	for _, r := range recs {
		out = append(out, r...)
	}
	return out
}

// fakeWorker mimics worker.Run against a real coordinator without going
// through the CLI layer, so the test can inject a slow send-back.
func fakeWorker(t *testing.T, addr string, delayBeforeSend time.Duration) {
	t.Helper()
	dir := t.TempDir()

	conn, err := dialWithRetry(addr)
	if err != nil {
		t.Errorf("worker dial (input session): %v", err)
		return
	}
	inputPath := filepath.Join(dir, "input")
	f, err := os.Create(inputPath)
	if err != nil {
		t.Errorf("create input: %v", err)
		return
	}
	if _, err := transport.Receive(f, conn); err != nil {
		t.Errorf("worker receive shard: %v", err)
		return
	}
	f.Close()
	conn.Close()

	outputPath := filepath.Join(dir, "output")
	if err := sortengine.Sort(context.Background(), inputPath, outputPath, sortengine.Options{RecordSize: recordSize, MemoryBudget: 100 * recordSize}); err != nil {
		t.Errorf("worker local sort: %v", err)
		return
	}

	if delayBeforeSend > 0 {
		time.Sleep(delayBeforeSend)
	}

	outConn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Errorf("worker dial (output session): %v", err)
		return
	}
	defer outConn.Close()

	out, err := os.Open(outputPath)
	if err != nil {
		t.Errorf("open sorted output: %v", err)
		return
	}
	defer out.Close()
	if _, err := transport.Send(outConn, out); err != nil {
		t.Errorf("worker send sorted shard: %v", err)
	}
}

func TestCoordinatorWithInProcessWorkers(t *testing.T) {
	const numWorkers = 4
	dir := t.TempDir()

	data := randomInput(42, 977) // not evenly divisible by numWorkers
	inputPath := filepath.Join(dir, "input")
	if err := os.WriteFile(inputPath, data, 0o644); err != nil {
		t.Fatal(err)
	}
	outputPath := filepath.Join(dir, "output")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		delay := time.Duration(0)
		if i == numWorkers-1 {
			delay = 50 * time.Millisecond // slow-worker scenario
		}
		wg.Add(1)
		go func(delay time.Duration) {
			defer wg.Done()
			fakeWorker(t, addr, delay)
		}(delay)
	}

	opts := master.Options{
		Address:    addr,
		Workers:    numWorkers,
		InputPath:  inputPath,
		OutputPath: outputPath,
		ScratchDir: dir,
		RecordSize: recordSize,
	}
	if err := master.Run(context.Background(), opts); err != nil {
		t.Fatalf("master.Run: %v", err)
	}
	wg.Wait()

	got, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatal(err)
	}
	want := sortedReference(data)
	if !bytes.Equal(got, want) {
		t.Fatal("distributed sort output does not match reference: records lost, duplicated, or misordered")
	}
}

// dialWithRetry retries the connection a fake worker makes for its input
// session: the test reserves the listener port (to hand out a stable
// address) and closes it again before master.Run binds it, so the first
// few connection attempts may race a "connection refused". Only the very first dial of a worker's lifetime needs this;
// the output-session dial always finds the coordinator already listening.
func dialWithRetry(addr string) (net.Conn, error) {
	var lastErr error
	for i := 0; i < 100; i++ {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		time.Sleep(5 * time.Millisecond)
	}
	return nil, lastErr
}
