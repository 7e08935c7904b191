// Package shard computes record-aligned byte ranges of an input file, the
// partitioning scheme both the multi-threaded sort (one shard per thread)
// and the coordinator (one shard per worker) use to split work. Shards
// partition the input exactly: concatenated in index order they reproduce
// it byte for byte.
package shard

import "fmt"

// Shard is a contiguous, record-aligned byte range [Offset, Offset+Size) of
// an input file.
type Shard struct {
	Index  int
	Offset int64
	Size   int64
}

// Partition splits a file of fileSize bytes, holding fileSize/recordSize
// records, into n record-aligned shards whose sizes differ by at most one
// record. fileSize must already be truncated to a multiple of recordSize;
// Partition does not truncate it itself, callers own that policy (see
// record.Truncate).
//
// This is the "q, rem" formula from the partitioning design: with
// n_rec = fileSize/recordSize, q = n_rec/n, rem = n_rec%n, the first rem
// shards get q+1 records and the rest get q records. Partition boundaries
// therefore always fall on record boundaries.
func Partition(fileSize int64, recordSize, n int) ([]Shard, error) {
	if recordSize <= 0 {
		return nil, fmt.Errorf("shard: record size must be positive, got %d", recordSize)
	}
	if n <= 0 {
		return nil, fmt.Errorf("shard: shard count must be positive, got %d", n)
	}
	if fileSize%int64(recordSize) != 0 {
		return nil, fmt.Errorf("shard: file size %d is not a multiple of record size %d", fileSize, recordSize)
	}

	numRecords := fileSize / int64(recordSize)
	q := numRecords / int64(n)
	rem := numRecords % int64(n)

	shards := make([]Shard, n)
	var offset int64
	for i := 0; i < n; i++ {
		count := q
		if int64(i) < rem {
			count++
		}
		size := count * int64(recordSize)
		shards[i] = Shard{Index: i, Offset: offset, Size: size}
		offset += size
	}
	return shards, nil
}
