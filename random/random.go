// Package random provides the process-wide entropy behind order code
// suffixes. The generator is seeded from crypto/rand at startup so
// concurrently started replicas do not mint the same codes.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	mrand "math/rand"
	"time"
)

func init() {
	var b [8]byte
	_, err := crand.Read(b[:])
	if err != nil {
		mrand.Seed(time.Now().UnixNano())
		return
	}
	mrand.Seed(int64(binary.LittleEndian.Uint64(b[:])))
}

// Number returns a uniform value in [0, n).
func Number(n int64) int64 {
	return mrand.Int63n(n)
}
