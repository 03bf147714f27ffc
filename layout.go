package stone

import (
	"context"
	"fmt"
	"iter"

	"github.com/quay/zlog"
)

// LayoutFileType is the target file type of a layout record.
type LayoutFileType uint8

// File types defined by format V1. Unknown values are preserved.
const (
	// Regular file.
	FileRegular LayoutFileType = iota + 1
	// Symbolic link.
	FileSymlink
	// Directory node.
	FileDirectory
	// Character device.
	FileCharacterDevice
	// Block device.
	FileBlockDevice
	// FIFO node.
	FileFifo
	// UNIX socket.
	FileSocket
)

/*
Layout record disk format:

A 32-byte fixed prefix, then the source bytes, then the target bytes.

	uid:u32 gid:u32 mode:u32 tag:u32
	source_len:u16 target_len:u16
	file_type:u8
	reserved:[11]u8

Which slot means what depends on the file type: regular files store the
XXH3-128 content hash in the source slot and the name in the target slot,
symlinks store the link source and target, and every other node kind stores
its path in the target slot with an empty source.
*/
const (
	layoutPrefixSize = 32

	layoutOffsetUID       = 0
	layoutOffsetGID       = 4
	layoutOffsetMode      = 8
	layoutOffsetTag       = 12
	layoutOffsetSourceLen = 16
	layoutOffsetTargetLen = 18
	layoutOffsetFileType  = 20
)

// LayoutRecord describes how one installed file should appear on disk.
type LayoutRecord struct {
	UID      uint32
	GID      uint32
	Mode     uint32
	Tag      uint32
	FileType LayoutFileType
	// Hash is the XXH3-128 of the file contents. Only set for regular
	// files; it keys the corresponding index record.
	Hash []byte
	// Source is the link source for symlinks. For unknown file types the
	// raw source bytes are preserved here.
	Source string
	// Target is the file name for regular files, the link target for
	// symlinks, and the path for every other node kind.
	Target string
}

// Layouts iterates the records of a layout payload.
//
// Iteration stops at the first error. Exactly the number of records declared
// by the payload header are produced; a short or over-long record stream is
// an error on the final yield.
func (p *Payload) Layouts(ctx context.Context) iter.Seq2[LayoutRecord, error] {
	return func(yield func(LayoutRecord, error) bool) {
		buf, err := p.records(KindLayout)
		if err != nil {
			yield(LayoutRecord{}, err)
			return
		}
		off := 0
		for n := uint64(0); n < p.hdr.NumRecords; n++ {
			if off == len(buf) {
				yield(LayoutRecord{}, &RecordCountError{Declared: p.hdr.NumRecords, Decoded: n})
				return
			}
			rec, sz, err := parseLayout(ctx, buf[off:])
			if err != nil {
				yield(LayoutRecord{}, err)
				return
			}
			off += sz
			if !yield(rec, nil) {
				return
			}
		}
		if off != len(buf) {
			yield(LayoutRecord{}, fmt.Errorf("stone: %d trailing bytes after %d layout records: %w",
				len(buf)-off, p.hdr.NumRecords, ErrFormat))
		}
	}
}

// ParseLayout decodes one layout record from the front of b, reporting how
// many bytes it occupied.
func parseLayout(ctx context.Context, b []byte) (LayoutRecord, int, error) {
	if len(b) < layoutPrefixSize {
		return LayoutRecord{}, 0, fmt.Errorf("stone: layout record prefix: %w", ErrTruncated)
	}
	srcLen := int(be.Uint16(b[layoutOffsetSourceLen:]))
	tgtLen := int(be.Uint16(b[layoutOffsetTargetLen:]))
	sz := layoutPrefixSize + srcLen + tgtLen
	if len(b) < sz {
		return LayoutRecord{}, 0, fmt.Errorf("stone: layout record body: %w", ErrTruncated)
	}
	rec := LayoutRecord{
		UID:      be.Uint32(b[layoutOffsetUID:]),
		GID:      be.Uint32(b[layoutOffsetGID:]),
		Mode:     be.Uint32(b[layoutOffsetMode:]),
		Tag:      be.Uint32(b[layoutOffsetTag:]),
		FileType: LayoutFileType(b[layoutOffsetFileType]),
	}
	source := b[layoutPrefixSize : layoutPrefixSize+srcLen]
	target := b[layoutPrefixSize+srcLen : sz]
	switch rec.FileType {
	case FileRegular:
		rec.Hash = append([]byte(nil), source...)
		rec.Target = string(target)
	case FileSymlink:
		rec.Source = string(source)
		rec.Target = string(target)
	case FileDirectory, FileCharacterDevice, FileBlockDevice, FileFifo, FileSocket:
		rec.Target = string(target)
	default:
		// Forward compatibility: keep both slots raw and carry on.
		zlog.Debug(ctx).
			Uint8("file_type", uint8(rec.FileType)).
			Msg("unknown layout file type")
		rec.Source = string(source)
		rec.Target = string(target)
	}
	return rec, sz, nil
}
