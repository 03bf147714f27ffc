package stone

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// GetCopyBuf pulls a buffer from the pool.
func getCopyBuf() []byte {
	b := bufpool.Get()
	if b == nil {
		// 1 MiB is a reasonable unit for draining content blobs.
		return make([]byte, 1024*1024)
	}
	return b.([]byte)
}

// PutCopyBuf returns a buffer to the pool.
func putCopyBuf(b []byte) { bufpool.Put(b) }

// GetZstd pulls an initialized decoder from the pool.
func getZstd() *zstd.Decoder {
	d := zstdpool.Get()
	if d == nil {
		var err error
		if d, err = zstd.NewReader(nil); err != nil {
			// Should *never* happen -- a nil Reader causes only internal setup allocations.
			panic(fmt.Sprintf("error creating zstd reader: %v", err))
		}
	}
	return d.(*zstd.Decoder)
}

// PutZstd returns a decoder to the pool.
func putZstd(d *zstd.Decoder) { zstdpool.Put(d) }

// Package-level pools for the respective objects.
var (
	bufpool  sync.Pool
	zstdpool sync.Pool
)
