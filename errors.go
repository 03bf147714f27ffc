package stone

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// Sentinel errors reported by this package. All errors coming out of the
// reader can be inspected with [errors.Is] / [errors.As]; failures of the
// underlying [Source] and of the zstd decoder are wrapped and remain
// reachable through the chain.
var (
	// ErrBadMagic is reported when the archive does not begin with the
	// stone magic.
	ErrBadMagic = errors.New("stone: bad magic")

	// ErrTruncated is reported when a frame or record extends past its
	// container.
	ErrTruncated = errors.New("stone: truncated")

	// ErrFormat is reported when a frame or record is shaped in a way the
	// format forbids, e.g. an uncompressed payload whose stored and plain
	// sizes disagree, or trailing bytes after the final record.
	ErrFormat = errors.New("stone: format error")

	// ErrClosed is reported when a Reader, Payload, or ContentReader is
	// used after being closed.
	ErrClosed = errors.New("stone: closed")
)

// UnsupportedVersionError is reported when the archive header carries a
// version this package does not understand.
type UnsupportedVersionError struct {
	Version uint32
}

// Error implements error.
func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("stone: unsupported header version %d", e.Version)
}

// ChecksumMismatchError is reported when a payload checksum or an index range
// digest does not match the decoded bytes.
type ChecksumMismatchError struct {
	Expected []byte
	Actual   []byte
}

// Error implements error.
func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("stone: checksum mismatch: expected %s, got %s",
		hex.EncodeToString(e.Expected), hex.EncodeToString(e.Actual))
}

// RecordCountError is reported when a record iterator exhausts the payload
// buffer having produced a different number of records than the payload
// header declared.
type RecordCountError struct {
	Declared uint64
	Decoded  uint64
}

// Error implements error.
func (e *RecordCountError) Error() string {
	return fmt.Sprintf("stone: record count mismatch: header declares %d, decoded %d", e.Declared, e.Decoded)
}

// WrongPayloadKindError is reported when a record iterator or content
// operation is invoked on a payload of a different kind.
type WrongPayloadKindError struct {
	Want PayloadKind
	Got  PayloadKind
}

// Error implements error.
func (e *WrongPayloadKindError) Error() string {
	return fmt.Sprintf("stone: wrong payload kind: want %v, got %v", e.Want, e.Got)
}

// MapEOF turns the EOF flavors reported mid-structure into ErrTruncated.
// A short read inside a frame means the archive ended before the count the
// header promised.
func mapEOF(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTruncated
	}
	return err
}
