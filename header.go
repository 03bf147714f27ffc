package stone

import (
	"encoding/binary"
	"io"
)

// All multi-byte integers in the format are big-endian.
var be = binary.BigEndian

// Magic is the leading four bytes of every stone archive, "\0mos".
var magic = [4]byte{0x00, 0x6d, 0x6f, 0x73}

// Serialized sizes.
const (
	headerSize        = 32
	payloadHeaderSize = 32
)

// Archive header disk layout.
const (
	offsetMagic       = 0  // 00-03: magic
	offsetVersion     = 4  // 04-07: format version
	offsetNumPayloads = 8  // 08-09: payload count (v1)
	offsetFileType    = 10 // 10: file type (v1)
	// 11-31: reserved
)

// FileType is the well-known archive type recorded in a V1 header.
type FileType uint8

// Known file types. Values absent here are preserved numerically; callers
// decide whether to reject them.
const (
	// Binary package.
	FileTypeBinary FileType = iota + 1
	// Delta package.
	FileTypeDelta
	// Repository index (legacy).
	FileTypeRepository
	// Build manifest (legacy).
	FileTypeBuildManifest
)

// HeaderV1 is the version-specific portion of a V1 archive header.
type HeaderV1 struct {
	NumPayloads uint16
	FileType    FileType
}

// UnmarshalBinary decodes the V1 fields out of a full 32-byte header block.
// The magic and version are assumed to have been checked by the caller.
func (h *HeaderV1) UnmarshalBinary(b []byte) error {
	if len(b) < headerSize {
		return io.ErrShortBuffer
	}
	h.NumPayloads = be.Uint16(b[offsetNumPayloads:])
	h.FileType = FileType(b[offsetFileType])
	return nil
}
