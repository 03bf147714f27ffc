package stone

import (
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/quay/zlog"
	"github.com/zeebo/xxh3"
)

// ContentReader streams the decompressed content payload.
//
// Reads return plain bytes in order while an XXH3-64 runs alongside; once the
// stream has been driven to EOF, [ContentReader.ChecksumValid] reports
// whether the bytes match the payload header. Individual files are carved out
// with [ContentReader.Extract].
//
// The ContentReader borrows the Reader's source. It must be closed before the
// Reader advances to another payload.
type ContentReader struct {
	p      *Payload
	lim    *io.LimitedReader
	dec    *zstd.Decoder
	hash   *xxh3.Hasher
	pos    uint64
	eof    bool
	ok     bool
	closed bool
}

// OpenContent opens the content payload p for streaming or range extraction.
func (r *Reader) OpenContent(p *Payload) (*ContentReader, error) {
	if r.closed {
		return nil, ErrClosed
	}
	if p.closed {
		return nil, ErrClosed
	}
	if p.hdr.Kind != KindContent {
		return nil, &WrongPayloadKindError{Want: KindContent, Got: p.hdr.Kind}
	}
	if p.content != nil {
		return nil, fmt.Errorf("stone: content payload already open: %w", ErrFormat)
	}
	c := ContentReader{
		p:    p,
		hash: xxh3.New(),
	}
	if err := c.rewind(); err != nil {
		return nil, err
	}
	p.content = &c
	return &c, nil
}

// Rewind positions the source at the body start and readies a fresh
// decompression and checksum state.
func (c *ContentReader) rewind() error {
	r := c.p.r
	if _, err := r.src.Seek(c.p.bodyStart, io.SeekStart); err != nil {
		return fmt.Errorf("stone: seeking content body: %w", err)
	}
	c.lim = &io.LimitedReader{R: r.src, N: int64(c.p.hdr.StoredSize)}
	if c.p.hdr.Compression == CompressionZstd {
		if c.dec == nil {
			c.dec = getZstd()
		}
		if err := c.dec.Reset(c.lim); err != nil {
			return fmt.Errorf("stone: resetting zstd decoder: %w", err)
		}
	}
	c.hash.Reset()
	c.pos = 0
	c.eof = false
	c.ok = false
	return nil
}

// Read returns the next plain bytes of the content blob.
//
// The running checksum is folded over everything read; after Read reports
// [io.EOF] the result of [ContentReader.ChecksumValid] is meaningful.
func (c *ContentReader) Read(dst []byte) (int, error) {
	if c.closed {
		return 0, ErrClosed
	}
	var n int
	var err error
	if c.dec != nil {
		n, err = c.dec.Read(dst)
	} else {
		n, err = c.lim.Read(dst)
	}
	if n > 0 {
		c.hash.Write(dst[:n])
		c.pos += uint64(n)
	}
	switch err {
	case nil:
	case io.EOF:
		c.eof = true
		c.ok = c.pos == c.p.hdr.PlainSize &&
			c.hash.Sum64() == be.Uint64(c.p.hdr.Checksum[:])
	default:
		if c.dec != nil {
			err = fmt.Errorf("stone: decompressing content: %w", err)
		} else {
			err = fmt.Errorf("stone: reading content: %w", err)
		}
	}
	return n, err
}

// BufHint returns a sensible buffer size for draining the stream.
func (c *ContentReader) BufHint() int {
	const def = 1024 * 1024
	if sz := c.p.hdr.PlainSize; sz > 0 && sz < def {
		return int(sz)
	}
	return def
}

// ChecksumValid reports whether the plain bytes match the payload checksum.
// It only reports true once the stream has been read to EOF.
func (c *ContentReader) ChecksumValid() bool {
	return c.eof && c.ok
}

// Extract writes the plain byte range addressed by rec to dst and verifies
// the record's XXH3-128 digest against the copied bytes.
//
// Extraction decompresses forward: pulling non-overlapping records in
// ascending Start order completes in a single pass over the blob with
// constant memory. A record starting behind the current position (the End of
// the previous extraction, so also an overlapping one) forces a rewind and a
// fresh pass, which also restarts the running stream checksum.
func (c *ContentReader) Extract(rec IndexRecord, dst io.Writer) error {
	if c.closed {
		return ErrClosed
	}
	if rec.Start > rec.End || rec.End > c.p.hdr.PlainSize {
		return fmt.Errorf("stone: index range [%d,%d) outside content of %d bytes: %w",
			rec.Start, rec.End, c.p.hdr.PlainSize, ErrFormat)
	}
	if rec.Start < c.pos {
		if err := c.rewind(); err != nil {
			return err
		}
	}
	buf := getCopyBuf()
	defer putCopyBuf(buf)
	if skip := rec.Start - c.pos; skip > 0 {
		n, err := io.CopyBuffer(io.Discard, io.LimitReader(c, int64(skip)), buf)
		if err != nil {
			return err
		}
		if uint64(n) != skip {
			return fmt.Errorf("stone: content ended %d bytes short of index range: %w",
				skip-uint64(n), ErrTruncated)
		}
	}
	h := xxh3.New()
	want := int64(rec.Size())
	n, err := io.CopyBuffer(io.MultiWriter(dst, h), io.LimitReader(c, want), buf)
	if err != nil {
		return err
	}
	if n != want {
		return fmt.Errorf("stone: content ended %d bytes into index range: %w", n, ErrTruncated)
	}
	if sum := h.Sum128().Bytes(); sum != rec.Digest {
		return &ChecksumMismatchError{
			Expected: append([]byte(nil), rec.Digest[:]...),
			Actual:   append([]byte(nil), sum[:]...),
		}
	}
	return nil
}

// Unpack drains the remaining stream into dst and verifies the payload
// checksum at EOF.
func (c *ContentReader) Unpack(ctx context.Context, dst io.Writer) error {
	buf := getCopyBuf()
	defer putCopyBuf(buf)
	n, err := io.CopyBuffer(dst, c, buf)
	if err != nil {
		return err
	}
	zlog.Debug(ctx).
		Int64("plain_bytes", n).
		Bool("checksum_valid", c.ChecksumValid()).
		Msg("content payload drained")
	if !c.ChecksumValid() {
		var got [8]byte
		be.PutUint64(got[:], c.hash.Sum64())
		return &ChecksumMismatchError{
			Expected: append([]byte(nil), c.p.hdr.Checksum[:]...),
			Actual:   got[:],
		}
	}
	return nil
}

// Close releases the decoder. Close is idempotent; a closed ContentReader
// must not be reused.
func (c *ContentReader) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.dec != nil {
		putZstd(c.dec)
		c.dec = nil
	}
	if c.p.content == c {
		c.p.content = nil
	}
	return nil
}
