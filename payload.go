package stone

import (
	"context"
	"fmt"
	"io"

	"github.com/quay/zlog"
	"github.com/zeebo/xxh3"
)

// PayloadKind discriminates what a payload frame carries.
type PayloadKind uint8

// Payload kinds defined by format V1.
const (
	KindMeta PayloadKind = iota + 1
	KindContent
	KindLayout
	KindIndex
	KindAttributes
	KindDumb
)

// Compression is the per-payload body encoding.
type Compression uint8

// Compression kinds defined by format V1.
const (
	CompressionNone Compression = iota + 1
	CompressionZstd
)

// Payload header disk layout.
const (
	offsetStoredSize  = 0  // 00-07: stored (on-disk) body size
	offsetPlainSize   = 8  // 08-15: logical body size after decompression
	offsetChecksum    = 16 // 16-23: XXH3-64 checksum
	offsetNumRecords  = 24 // 24-27: record count
	offsetPayloadVer  = 28 // 28-29: payload version
	offsetKind        = 30 // 30: payload kind
	offsetCompression = 31 // 31: compression
)

// PayloadHeader describes a single payload frame.
//
// The checksum is an XXH3-64 of the stored bytes for record payloads, and of
// the plain bytes for the content payload.
type PayloadHeader struct {
	StoredSize  uint64
	PlainSize   uint64
	Checksum    [8]byte
	NumRecords  uint64
	Version     uint16
	Kind        PayloadKind
	Compression Compression
}

// UnmarshalBinary decodes a 32-byte payload header block.
func (h *PayloadHeader) UnmarshalBinary(b []byte) error {
	if len(b) < payloadHeaderSize {
		return io.ErrShortBuffer
	}
	h.StoredSize = be.Uint64(b[offsetStoredSize:])
	h.PlainSize = be.Uint64(b[offsetPlainSize:])
	copy(h.Checksum[:], b[offsetChecksum:offsetNumRecords])
	h.NumRecords = uint64(be.Uint32(b[offsetNumRecords:]))
	h.Version = be.Uint16(b[offsetPayloadVer:])
	h.Kind = PayloadKind(b[offsetKind])
	h.Compression = Compression(b[offsetCompression])
	return nil
}

// Payload is a handle on one payload frame.
//
// A Payload is superseded by the next [Reader.NextPayload] call and must not
// outlive its Reader. Record payloads are buffered in full when the handle is
// created; the content payload stays on disk until opened with
// [Reader.OpenContent].
type Payload struct {
	r         *Reader
	hdr       PayloadHeader
	bodyStart int64
	plain     []byte
	content   *ContentReader
	closed    bool
}

// ReadPayload reads the payload header at the current source position and
// materialises the body for record payloads.
func (r *Reader) readPayload(ctx context.Context) (*Payload, error) {
	b := make([]byte, payloadHeaderSize)
	if _, err := io.ReadFull(r.src, b); err != nil {
		return nil, fmt.Errorf("stone: reading payload header: %w", mapEOF(err))
	}
	p := Payload{r: r}
	if err := p.hdr.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	if p.hdr.Compression == CompressionNone && p.hdr.StoredSize != p.hdr.PlainSize {
		return nil, fmt.Errorf("stone: uncompressed payload with stored size %d != plain size %d: %w",
			p.hdr.StoredSize, p.hdr.PlainSize, ErrFormat)
	}
	pos, err := r.src.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("stone: seeking payload body: %w", err)
	}
	p.bodyStart = pos
	zlog.Debug(ctx).
		Stringer("kind", p.hdr.Kind).
		Stringer("compression", p.hdr.Compression).
		Uint64("stored_size", p.hdr.StoredSize).
		Uint64("plain_size", p.hdr.PlainSize).
		Uint64("num_records", p.hdr.NumRecords).
		Msg("payload frame")
	if p.hdr.Kind == KindContent {
		// Left on disk; decompressed on demand by a ContentReader.
		return &p, nil
	}
	if err := p.buffer(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Buffer reads the stored bytes of a record payload, verifies the payload
// checksum and decompresses into the plain buffer. Record streams are small,
// so the whole plain body is held in memory.
func (p *Payload) buffer() error {
	stored := make([]byte, p.hdr.StoredSize)
	if _, err := io.ReadFull(p.r.src, stored); err != nil {
		return fmt.Errorf("stone: reading payload body: %w", mapEOF(err))
	}
	if sum := xxh3.Hash(stored); sum != be.Uint64(p.hdr.Checksum[:]) {
		var got [8]byte
		be.PutUint64(got[:], sum)
		return &ChecksumMismatchError{
			Expected: append([]byte(nil), p.hdr.Checksum[:]...),
			Actual:   got[:],
		}
	}
	switch p.hdr.Compression {
	case CompressionZstd:
		dec := getZstd()
		plain, err := dec.DecodeAll(stored, make([]byte, 0, p.hdr.PlainSize))
		putZstd(dec)
		if err != nil {
			return fmt.Errorf("stone: decompressing payload: %w", err)
		}
		if uint64(len(plain)) != p.hdr.PlainSize {
			return fmt.Errorf("stone: payload decompressed to %d bytes, header declares %d: %w",
				len(plain), p.hdr.PlainSize, ErrTruncated)
		}
		p.plain = plain
	default:
		// Unknown compression kinds are surfaced when something needs the
		// plain bytes, not before.
		p.plain = stored
	}
	return nil
}

// Header returns the decoded payload header.
func (p *Payload) Header() PayloadHeader {
	return p.hdr
}

// Close releases the payload's buffers and repositions the source at the next
// frame boundary. It is idempotent and legal without having drained the
// records.
func (p *Payload) Close() error {
	if p.closed {
		return nil
	}
	p.release()
	if p.r.closed {
		return nil
	}
	if _, err := p.r.src.Seek(p.bodyStart+int64(p.hdr.StoredSize), io.SeekStart); err != nil {
		return fmt.Errorf("stone: seeking past payload: %w", err)
	}
	return nil
}

// Release drops buffers and detaches without touching the source.
func (p *Payload) release() {
	p.closed = true
	p.plain = nil
	if p.content != nil {
		c := p.content
		p.content = nil
		c.Close()
	}
	if p.r.cur == p {
		p.r.cur = nil
	}
}

// Records returns the plain record buffer, guarding kind and liveness. Every
// record iterator funnels through here.
func (p *Payload) records(want PayloadKind) ([]byte, error) {
	if p.closed {
		return nil, ErrClosed
	}
	if p.hdr.Kind != want {
		return nil, &WrongPayloadKindError{Want: want, Got: p.hdr.Kind}
	}
	switch p.hdr.Compression {
	case CompressionNone, CompressionZstd:
	default:
		return nil, fmt.Errorf("stone: payload compression %v: %w", p.hdr.Compression, ErrFormat)
	}
	return p.plain, nil
}
