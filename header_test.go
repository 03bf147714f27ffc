package stone

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/quay/zlog"
)

// TestHeaderOnly decodes a bare 32-byte header announcing four payloads and
// checks that attempting to read the first payload reports truncation.
func TestHeaderOnly(t *testing.T) {
	ctx := zlog.Test(context.Background(), t)
	b := make([]byte, headerSize)
	copy(b, magic[:])
	be.PutUint32(b[offsetVersion:], 1)
	be.PutUint16(b[offsetNumPayloads:], 4)
	b[offsetFileType] = byte(FileTypeBinary)

	r, v, err := ReadBuffer(ctx, b)
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
	want := HeaderV1{NumPayloads: 4, FileType: FileTypeBinary}
	if !cmp.Equal(hdr, want) {
		t.Error(cmp.Diff(hdr, want))
	}
	if _, err := r.NextPayload(ctx); !errors.Is(err, ErrTruncated) {
		t.Errorf("got %v, want ErrTruncated", err)
	}
}

func TestBadMagic(t *testing.T) {
	ctx := zlog.Test(context.Background(), t)
	b := make([]byte, headerSize)
	for i := range b {
		b[i] = 0xFF
	}
	if _, _, err := ReadBuffer(ctx, b); !errors.Is(err, ErrBadMagic) {
		t.Errorf("got %v, want ErrBadMagic", err)
	}
}

func TestUnsupportedVersion(t *testing.T) {
	ctx := zlog.Test(context.Background(), t)
	b := make([]byte, headerSize)
	copy(b, magic[:])
	be.PutUint32(b[offsetVersion:], 2)
	_, _, err := ReadBuffer(ctx, b)
	var verr *UnsupportedVersionError
	if !errors.As(err, &verr) {
		t.Fatalf("got %v, want UnsupportedVersionError", err)
	}
	if verr.Version != 2 {
		t.Errorf("got version %d, want 2", verr.Version)
	}
}

func TestShortHeader(t *testing.T) {
	ctx := zlog.Test(context.Background(), t)
	b := make([]byte, headerSize/2)
	copy(b, magic[:])
	if _, _, err := ReadBuffer(ctx, b); !errors.Is(err, ErrTruncated) {
		t.Errorf("got %v, want ErrTruncated", err)
	}
}
