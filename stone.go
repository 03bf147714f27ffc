// Package stone implements a reader for the stone binary package container.
//
// A stone archive is a fixed 32-byte header followed by a sequence of framed
// payloads. Payloads carry either typed records (file-system layout, package
// metadata, content-index entries, extended attributes) or a single
// zstd-compressed blob of concatenated file contents, addressable through the
// index records.
//
// The integrity checks implemented here (XXH3-64 per payload, XXH3-128 per
// indexed content range) are not cryptographic. They guard against accidental
// corruption, not tampering.
package stone

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/quay/zlog"
)

// Source is the byte source an archive is read from.
//
// Reads and seeks are only ever issued from the goroutine driving the
// [Reader]; implementations do not need to be safe for concurrent use. An
// [os.File] or [bytes.Reader] satisfies Source directly, and arbitrary host
// I/O can be adapted by implementing the two interfaces.
type Source interface {
	io.Reader
	io.Seeker
}

// Version is the archive format version reported by [Read].
type Version uint32

// Format versions understood by this package.
const (
	VersionV1 Version = 1
)

// Reader is a forward-only reader over a stone archive.
//
// A Reader exclusively owns its Source: distinct archives may be read
// concurrently on distinct Readers, but a single Reader must not be shared
// across goroutines.
type Reader struct {
	src       Source
	version   Version
	v1        HeaderV1
	remaining int
	cur       *Payload
	closed    bool
}

// Read reads the archive header from src and returns a Reader positioned at
// the first payload, along with the archive's format version.
func Read(ctx context.Context, src Source) (*Reader, Version, error) {
	b := make([]byte, headerSize)
	if _, err := io.ReadFull(src, b); err != nil {
		return nil, 0, fmt.Errorf("stone: reading archive header: %w", mapEOF(err))
	}
	if !bytes.Equal(b[:4], magic[:]) {
		return nil, 0, ErrBadMagic
	}
	v := Version(be.Uint32(b[offsetVersion:]))
	if v != VersionV1 {
		return nil, 0, &UnsupportedVersionError{Version: uint32(v)}
	}
	r := Reader{
		src:     src,
		version: v,
	}
	if err := r.v1.UnmarshalBinary(b); err != nil {
		return nil, 0, err
	}
	r.remaining = int(r.v1.NumPayloads)
	zlog.Debug(ctx).
		Int("num_payloads", r.remaining).
		Stringer("file_type", r.v1.FileType).
		Msg("parsed archive header")
	return &r, v, nil
}

// ReadFile is [Read] over an open file.
func ReadFile(ctx context.Context, f *os.File) (*Reader, Version, error) {
	return Read(ctx, f)
}

// ReadBuffer is [Read] over an in-memory archive.
func ReadBuffer(ctx context.Context, buf []byte) (*Reader, Version, error) {
	return Read(ctx, bytes.NewReader(buf))
}

// HeaderV1 returns the decoded V1 archive header.
func (r *Reader) HeaderV1() (HeaderV1, error) {
	if r.closed {
		return HeaderV1{}, ErrClosed
	}
	return r.v1, nil
}

// NextPayload advances to the next payload frame.
//
// Any previously returned Payload is closed, its buffers released and the
// source repositioned at the frame boundary, whether or not its records were
// drained. NextPayload reports [io.EOF] once all payloads named by the
// archive header have been returned.
func (r *Reader) NextPayload(ctx context.Context) (*Payload, error) {
	if r.closed {
		return nil, ErrClosed
	}
	if r.cur != nil {
		if err := r.cur.Close(); err != nil {
			return nil, err
		}
	}
	if r.remaining == 0 {
		return nil, io.EOF
	}
	p, err := r.readPayload(ctx)
	if err != nil {
		return nil, err
	}
	r.remaining--
	r.cur = p
	return p, nil
}

// UnpackContent drains the content payload p into dst, verifying the payload
// checksum at EOF.
func (r *Reader) UnpackContent(ctx context.Context, p *Payload, dst io.Writer) error {
	c, err := r.OpenContent(p)
	if err != nil {
		return err
	}
	defer c.Close()
	return c.Unpack(ctx, dst)
}

// Close releases the Reader.
//
// Any live Payload or ContentReader obtained from it is invalidated. Close is
// idempotent and does not close the underlying Source.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.cur != nil {
		p := r.cur
		r.cur = nil
		p.release()
	}
	return nil
}
