package stone

import (
	"context"
	"fmt"
	"iter"
)

// Index record disk format: start:u64 end:u64 digest:[16]u8.
const indexRecordSize = 32

// IndexRecord addresses one file within the decompressed content payload.
//
// Start and End are byte offsets into the plain content blob; End is
// exclusive. Digest is the XXH3-128 of the addressed range.
type IndexRecord struct {
	Start  uint64
	End    uint64
	Digest [16]byte
}

// Size returns the length of the addressed range.
func (r IndexRecord) Size() uint64 { return r.End - r.Start }

// Indexes iterates the records of an index payload.
//
// Ranges may overlap or arrive out of order; each must only lie within the
// content payload, which is checked when the range is extracted.
func (p *Payload) Indexes(_ context.Context) iter.Seq2[IndexRecord, error] {
	return func(yield func(IndexRecord, error) bool) {
		buf, err := p.records(KindIndex)
		if err != nil {
			yield(IndexRecord{}, err)
			return
		}
		off := 0
		for n := uint64(0); n < p.hdr.NumRecords; n++ {
			if off == len(buf) {
				yield(IndexRecord{}, &RecordCountError{Declared: p.hdr.NumRecords, Decoded: n})
				return
			}
			if len(buf)-off < indexRecordSize {
				yield(IndexRecord{}, fmt.Errorf("stone: index record: %w", ErrTruncated))
				return
			}
			var rec IndexRecord
			rec.Start = be.Uint64(buf[off:])
			rec.End = be.Uint64(buf[off+8:])
			copy(rec.Digest[:], buf[off+16:off+indexRecordSize])
			if rec.Start > rec.End {
				yield(IndexRecord{}, fmt.Errorf("stone: index record start %d > end %d: %w",
					rec.Start, rec.End, ErrFormat))
				return
			}
			off += indexRecordSize
			if !yield(rec, nil) {
				return
			}
		}
		if off != len(buf) {
			yield(IndexRecord{}, fmt.Errorf("stone: %d trailing bytes after %d index records: %w",
				len(buf)-off, p.hdr.NumRecords, ErrFormat))
		}
	}
}
