package sortengine

import (
	"math/rand"
	"sort"
)

// randomRecords returns n concatenated R-byte records with random contents,
// seeded deterministically so test failures reproduce.
func randomRecords(seed int64, n, size int) []byte {
	r := rand.New(rand.NewSource(seed))
	buf := make([]byte, n*size)
	r.Read(buf)
	return buf
}

// splitRecords slices buf into a [][]byte of size-byte records, for
// building expected output with sort.Slice as an independent check from
// the package's own record.Slice sort.Interface implementation.
func splitRecords(buf []byte, size int) [][]byte {
	n := len(buf) / size
	out := make([][]byte, n)
	for i := 0; i < n; i++ {
		out[i] = buf[i*size : (i+1)*size]
	}
	return out
}

func sortedCopy(buf []byte, size int) []byte {
	recs := splitRecords(buf, size)
	cp := make([][]byte, len(recs))
	for i, r := range recs {
		c := make([]byte, len(r))
		copy(c, r)
		cp[i] = c
	}
	sort.Slice(cp, func(i, j int) bool {
		for k := 0; k < size; k++ {
			if cp[i][k] != cp[j][k] {
				return cp[i][k] < cp[j][k]
			}
		}
		return false
	})
	out := make([]byte, 0, len(buf))
	for _, r := range cp {
		out = append(out, r...)
	}
	return out
}
