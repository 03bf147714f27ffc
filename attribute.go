package stone

import (
	"context"
	"fmt"
	"iter"
)

// Attribute record disk format: key_len:u64 value_len:u64, then the key and
// value bytes.
const attributeHeaderSize = 16

// AttributeRecord is one extended attribute entry.
type AttributeRecord struct {
	Key   []byte
	Value []byte
}

// Attributes iterates the records of an attributes payload.
func (p *Payload) Attributes(_ context.Context) iter.Seq2[AttributeRecord, error] {
	return func(yield func(AttributeRecord, error) bool) {
		buf, err := p.records(KindAttributes)
		if err != nil {
			yield(AttributeRecord{}, err)
			return
		}
		off := 0
		for n := uint64(0); n < p.hdr.NumRecords; n++ {
			if off == len(buf) {
				yield(AttributeRecord{}, &RecordCountError{Declared: p.hdr.NumRecords, Decoded: n})
				return
			}
			rec, sz, err := parseAttribute(buf[off:])
			if err != nil {
				yield(AttributeRecord{}, err)
				return
			}
			off += sz
			if !yield(rec, nil) {
				return
			}
		}
		if off != len(buf) {
			yield(AttributeRecord{}, fmt.Errorf("stone: %d trailing bytes after %d attribute records: %w",
				len(buf)-off, p.hdr.NumRecords, ErrFormat))
		}
	}
}

// ParseAttribute decodes one attribute record from the front of b, reporting
// how many bytes it occupied.
func parseAttribute(b []byte) (AttributeRecord, int, error) {
	if len(b) < attributeHeaderSize {
		return AttributeRecord{}, 0, fmt.Errorf("stone: attribute record header: %w", ErrTruncated)
	}
	keyLen := be.Uint64(b[0:])
	valLen := be.Uint64(b[8:])
	rest := uint64(len(b) - attributeHeaderSize)
	// Both lengths are u64s straight off the file; compare before adding.
	if keyLen > rest || valLen > rest-keyLen {
		return AttributeRecord{}, 0, fmt.Errorf("stone: attribute record body: %w", ErrTruncated)
	}
	sz := attributeHeaderSize + int(keyLen) + int(valLen)
	rec := AttributeRecord{
		Key:   append([]byte(nil), b[attributeHeaderSize:attributeHeaderSize+int(keyLen)]...),
		Value: append([]byte(nil), b[attributeHeaderSize+int(keyLen):sz]...),
	}
	return rec, sz, nil
}
