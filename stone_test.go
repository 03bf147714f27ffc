package stone

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/quay/zlog"
	"github.com/zeebo/xxh3"
)

// Fixture builders. The writer side of the format is not implemented by this
// module, so tests assemble archives by hand.

func frame(t *testing.T, kind PayloadKind, comp Compression, numRecords uint64, plain []byte) []byte {
	t.Helper()
	stored := plain
	if comp == CompressionZstd {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			t.Fatal(err)
		}
		stored = enc.EncodeAll(plain, nil)
		if err := enc.Close(); err != nil {
			t.Fatal(err)
		}
	}
	sum := xxh3.Hash(stored)
	if kind == KindContent {
		sum = xxh3.Hash(plain)
	}
	b := make([]byte, payloadHeaderSize, payloadHeaderSize+len(stored))
	be.PutUint64(b[offsetStoredSize:], uint64(len(stored)))
	be.PutUint64(b[offsetPlainSize:], uint64(len(plain)))
	be.PutUint64(b[offsetChecksum:], sum)
	be.PutUint32(b[offsetNumRecords:], uint32(numRecords))
	be.PutUint16(b[offsetPayloadVer:], 1)
	b[offsetKind] = byte(kind)
	b[offsetCompression] = byte(comp)
	return append(b, stored...)
}

func archive(t *testing.T, ft FileType, frames ...[]byte) []byte {
	t.Helper()
	b := make([]byte, headerSize)
	copy(b, magic[:])
	be.PutUint32(b[offsetVersion:], uint32(VersionV1))
	be.PutUint16(b[offsetNumPayloads:], uint16(len(frames)))
	b[offsetFileType] = byte(ft)
	for _, f := range frames {
		b = append(b, f...)
	}
	return b
}

func layoutRecordBytes(uid, gid, mode, tag uint32, ft LayoutFileType, source, target []byte) []byte {
	b := make([]byte, layoutPrefixSize, layoutPrefixSize+len(source)+len(target))
	be.PutUint32(b[layoutOffsetUID:], uid)
	be.PutUint32(b[layoutOffsetGID:], gid)
	be.PutUint32(b[layoutOffsetMode:], mode)
	be.PutUint32(b[layoutOffsetTag:], tag)
	be.PutUint16(b[layoutOffsetSourceLen:], uint16(len(source)))
	be.PutUint16(b[layoutOffsetTargetLen:], uint16(len(target)))
	b[layoutOffsetFileType] = byte(ft)
	b = append(b, source...)
	return append(b, target...)
}

func metaRecordBytes(tag MetaTag, typ MetaType, value []byte) []byte {
	b := make([]byte, metaHeaderSize, metaHeaderSize+len(value))
	be.PutUint32(b[0:], uint32(len(value)))
	be.PutUint16(b[4:], uint16(tag))
	b[6] = byte(typ)
	return append(b, value...)
}

func metaStringBytes(tag MetaTag, s string) []byte {
	return metaRecordBytes(tag, TypeString, []byte(s))
}

func metaUint64Bytes(tag MetaTag, v uint64) []byte {
	var b [8]byte
	be.PutUint64(b[:], v)
	return metaRecordBytes(tag, TypeUint64, b[:])
}

func indexRecordBytes(start, end uint64, digest [16]byte) []byte {
	b := make([]byte, indexRecordSize)
	be.PutUint64(b[0:], start)
	be.PutUint64(b[8:], end)
	copy(b[16:], digest[:])
	return b
}

func attrRecordBytes(key, value []byte) []byte {
	b := make([]byte, attributeHeaderSize, attributeHeaderSize+len(key)+len(value))
	be.PutUint64(b[0:], uint64(len(key)))
	be.PutUint64(b[8:], uint64(len(value)))
	b = append(b, key...)
	return append(b, value...)
}

// PackageFixture builds an archive shaped like a small binary package: meta,
// layout, index and content payloads, the content addressed by the index.
type packageFixture struct {
	archive []byte
	blob    []byte
	files   [][]byte
	index   []IndexRecord
}

func buildPackage(t *testing.T, comp Compression) *packageFixture {
	t.Helper()
	fix := packageFixture{
		files: [][]byte{
			bytes.Repeat([]byte("#!/bin/bash\ncomplete -r\n"), 64),
			[]byte("case $1 in\nesac\n"),
			bytes.Repeat([]byte{0x7f, 'E', 'L', 'F'}, 512),
		},
	}
	for _, f := range fix.files {
		start := uint64(len(fix.blob))
		fix.blob = append(fix.blob, f...)
		fix.index = append(fix.index, IndexRecord{
			Start:  start,
			End:    uint64(len(fix.blob)),
			Digest: xxh3.Hash128(f).Bytes(),
		})
	}

	meta := slices2(
		metaStringBytes(TagName, "bash-completion"),
		metaStringBytes(TagVersion, "2.11"),
		metaUint64Bytes(TagRelease, 1),
		metaStringBytes(TagArchitecture, "x86_64"),
	)
	var layout []byte
	var nLayout uint64
	for i, rec := range fix.index {
		digest := rec.Digest
		name := []byte{'f', byte('0' + i)}
		layout = append(layout, layoutRecordBytes(0, 0, 0o644, 0, FileRegular, digest[:], name)...)
		nLayout++
	}
	var index []byte
	for _, rec := range fix.index {
		index = append(index, indexRecordBytes(rec.Start, rec.End, rec.Digest)...)
	}

	fix.archive = archive(t, FileTypeBinary,
		frame(t, KindMeta, comp, 4, meta),
		frame(t, KindLayout, comp, nLayout, layout),
		frame(t, KindIndex, comp, uint64(len(fix.index)), index),
		frame(t, KindContent, comp, 0, fix.blob),
	)
	return &fix
}

func slices2(bs ...[]byte) []byte {
	var out []byte
	for _, b := range bs {
		out = append(out, b...)
	}
	return out
}

// TestPackage walks a full binary-package archive end to end: payload order,
// meta values, layout file types, the index record count and the content
// blob, whose checksum UnpackContent verifies.
func TestPackage(t *testing.T) {
	for _, comp := range []Compression{CompressionNone, CompressionZstd} {
		t.Run(comp.String(), func(t *testing.T) {
			ctx := zlog.Test(context.Background(), t)
			fix := buildPackage(t, comp)
			r, v, err := ReadBuffer(ctx, fix.archive)
			if err != nil {
				t.Fatal(err)
			}
			defer r.Close()
			if v != VersionV1 {
				t.Errorf("got version %d, want %d", v, VersionV1)
			}
			hdr, err := r.HeaderV1()
			if err != nil {
				t.Fatal(err)
			}
			if got, want := hdr.NumPayloads, uint16(4); got != want {
				t.Errorf("got %d payloads, want %d", got, want)
			}
			if hdr.FileType != FileTypeBinary {
				t.Errorf("got file type %v, want %v", hdr.FileType, FileTypeBinary)
			}

			var kinds []PayloadKind
			var metas map[MetaTag]any
			var layouts []LayoutRecord
			var index []IndexRecord
			var content bytes.Buffer
			for {
				p, err := r.NextPayload(ctx)
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					t.Fatal(err)
				}
				kinds = append(kinds, p.Header().Kind)
				switch p.Header().Kind {
				case KindMeta:
					metas = make(map[MetaTag]any)
					for rec, err := range p.Metas(ctx) {
						if err != nil {
							t.Fatal(err)
						}
						metas[rec.Tag] = rec.Value
					}
				case KindLayout:
					for rec, err := range p.Layouts(ctx) {
						if err != nil {
							t.Fatal(err)
						}
						layouts = append(layouts, rec)
					}
				case KindIndex:
					for rec, err := range p.Indexes(ctx) {
						if err != nil {
							t.Fatal(err)
						}
						index = append(index, rec)
					}
				case KindContent:
					if err := r.UnpackContent(ctx, p, &content); err != nil {
						t.Fatal(err)
					}
				}
			}

			wantKinds := []PayloadKind{KindMeta, KindLayout, KindIndex, KindContent}
			for i, k := range wantKinds {
				if kinds[i] != k {
					t.Fatalf("payload %d: got kind %v, want %v", i, kinds[i], k)
				}
			}
			if got := string(metas[TagName].([]byte)); got != "bash-completion" {
				t.Errorf("got name %q", got)
			}
			if got := string(metas[TagVersion].([]byte)); got != "2.11" {
				t.Errorf("got version %q", got)
			}
			if got := metas[TagRelease].(uint64); got != 1 {
				t.Errorf("got release %d", got)
			}
			if got := string(metas[TagArchitecture].([]byte)); got != "x86_64" {
				t.Errorf("got architecture %q", got)
			}
			for i, rec := range layouts {
				if rec.FileType != FileRegular {
					t.Errorf("layout %d: got file type %v", i, rec.FileType)
				}
			}
			if len(index) != len(fix.index) {
				t.Fatalf("got %d index records, want %d", len(index), len(fix.index))
			}
			if !bytes.Equal(content.Bytes(), fix.blob) {
				t.Error("content blob does not round-trip")
			}
		})
	}
}

// TestTruncation chops a well-formed archive at every byte offset and
// requires an error every time. Silent success on a truncated archive would
// mean a frame or record was not bounds-checked.
func TestTruncation(t *testing.T) {
	ctx := zlog.Test(context.Background(), t)
	fix := buildPackage(t, CompressionZstd)
	walk := func(data []byte) error {
		r, _, err := Read(ctx, bytes.NewReader(data))
		if err != nil {
			return err
		}
		defer r.Close()
		for {
			p, err := r.NextPayload(ctx)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			switch p.Header().Kind {
			case KindMeta:
				for _, err := range p.Metas(ctx) {
					if err != nil {
						return err
					}
				}
			case KindLayout:
				for _, err := range p.Layouts(ctx) {
					if err != nil {
						return err
					}
				}
			case KindIndex:
				for _, err := range p.Indexes(ctx) {
					if err != nil {
						return err
					}
				}
			case KindContent:
				if err := r.UnpackContent(ctx, p, io.Discard); err != nil {
					return err
				}
			}
		}
	}
	if err := walk(fix.archive); err != nil {
		t.Fatalf("intact archive: %v", err)
	}
	for off := range len(fix.archive) {
		if err := walk(fix.archive[:off]); err == nil {
			t.Fatalf("truncation at %d: silent success", off)
		}
	}
}

// TestPayloadBodyBitFlip flips bytes inside a record payload body and
// requires the stored-bytes checksum to catch each one.
func TestPayloadBodyBitFlip(t *testing.T) {
	ctx := zlog.Test(context.Background(), t)
	meta := metaStringBytes(TagName, "nano")
	arc := archive(t, FileTypeBinary, frame(t, KindMeta, CompressionNone, 1, meta))
	bodyStart := headerSize + payloadHeaderSize
	for off := bodyStart; off < len(arc); off++ {
		mut := append([]byte(nil), arc...)
		mut[off] ^= 0x80
		r, _, err := ReadBuffer(ctx, mut)
		if err != nil {
			t.Fatal(err)
		}
		_, err = r.NextPayload(ctx)
		var cerr *ChecksumMismatchError
		if !errors.As(err, &cerr) {
			t.Fatalf("flip at %d: got %v, want checksum mismatch", off, err)
		}
		r.Close()
	}
}

func TestCloseIdempotent(t *testing.T) {
	ctx := zlog.Test(context.Background(), t)
	fix := buildPackage(t, CompressionNone)
	r, _, err := ReadBuffer(ctx, fix.archive)
	if err != nil {
		t.Fatal(err)
	}
	p, err := r.NextPayload(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for range 2 {
		if err := p.Close(); err != nil {
			t.Error(err)
		}
		if err := r.Close(); err != nil {
			t.Error(err)
		}
	}
	if _, err := r.NextPayload(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("got %v, want ErrClosed", err)
	}
}
