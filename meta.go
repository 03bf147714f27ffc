package stone

import (
	"context"
	"fmt"
	"iter"

	"github.com/quay/zlog"
)

// MetaTag identifies what a metadata record describes.
type MetaTag uint16

// Tags defined by format V1. Unknown values are preserved.
const (
	TagName MetaTag = iota + 1
	TagArchitecture
	TagVersion
	TagSummary
	TagDescription
	TagHomepage
	TagSourceID
	TagDepends
	TagProvides
	TagConflicts
	TagRelease
	TagLicense
	TagBuildRelease
	TagPackageURI
	TagPackageHash
	TagPackageSize
	TagBuildDepends
	TagSourceURI
	TagSourcePath
	TagSourceRef
)

// MetaType is the primitive type of a metadata value.
type MetaType uint8

// Primitive types defined by format V1. Unknown values are preserved.
const (
	TypeInt8 MetaType = iota + 1
	TypeUint8
	TypeInt16
	TypeUint16
	TypeInt32
	TypeUint32
	TypeInt64
	TypeUint64
	TypeString
	TypeDependency
	TypeProvider
)

// DependencyKind is the namespace a dependency or provider name lives in.
type DependencyKind uint8

// Dependency kinds defined by format V1. Unknown values are preserved.
const (
	// Plain package name.
	DependencyPackageName DependencyKind = iota
	// Soname-based dependency.
	DependencySharedLibrary
	// Pkgconfig .pc dependency.
	DependencyPkgConfig
	// Special interpreter (PT_INTERP) needed to run the binaries.
	DependencyInterpreter
	// CMake module.
	DependencyCMake
	// Python module.
	DependencyPython
	// Binary in /usr/bin.
	DependencyBinary
	// Binary in /usr/sbin.
	DependencySystemBinary
	// Emul32-compatible pkgconfig .pc dependency.
	DependencyPkgConfig32
)

// Dependency is a typed package relationship.
type Dependency struct {
	Kind DependencyKind
	Name string
}

// Provider is a typed capability exported by a package. It shares the
// dependency wire shape.
type Provider struct {
	Kind DependencyKind
	Name string
}

/*
Meta record disk format:

	length:u32 tag:u16 type:u8 pad:u8

then length bytes of value. Integer values are big-endian at their declared
width. Dependency and provider values are a kind byte followed by the name;
the length field is the authoritative bound and a single trailing NUL is
stripped.
*/
const metaHeaderSize = 8

// MetaRecord is one metadata entry.
//
// Value holds the decoded primitive: int8/uint8/.../uint64 for the integer
// types, []byte for strings (raw bytes, usually but not necessarily valid
// UTF-8), [Dependency] or [Provider] for relationship types, and the raw
// value bytes for unknown types.
type MetaRecord struct {
	Tag   MetaTag
	Type  MetaType
	Value any
}

// Metas iterates the records of a meta payload.
func (p *Payload) Metas(ctx context.Context) iter.Seq2[MetaRecord, error] {
	return func(yield func(MetaRecord, error) bool) {
		buf, err := p.records(KindMeta)
		if err != nil {
			yield(MetaRecord{}, err)
			return
		}
		off := 0
		for n := uint64(0); n < p.hdr.NumRecords; n++ {
			if off == len(buf) {
				yield(MetaRecord{}, &RecordCountError{Declared: p.hdr.NumRecords, Decoded: n})
				return
			}
			rec, sz, err := parseMeta(ctx, buf[off:])
			if err != nil {
				yield(MetaRecord{}, err)
				return
			}
			off += sz
			if !yield(rec, nil) {
				return
			}
		}
		if off != len(buf) {
			yield(MetaRecord{}, fmt.Errorf("stone: %d trailing bytes after %d meta records: %w",
				len(buf)-off, p.hdr.NumRecords, ErrFormat))
		}
	}
}

// ParseMeta decodes one meta record from the front of b, reporting how many
// bytes it occupied.
func parseMeta(ctx context.Context, b []byte) (MetaRecord, int, error) {
	if len(b) < metaHeaderSize {
		return MetaRecord{}, 0, fmt.Errorf("stone: meta record header: %w", ErrTruncated)
	}
	length := int(be.Uint32(b[0:]))
	rec := MetaRecord{
		Tag:  MetaTag(be.Uint16(b[4:])),
		Type: MetaType(b[6]),
	}
	sz := metaHeaderSize + length
	if len(b) < sz {
		return MetaRecord{}, 0, fmt.Errorf("stone: meta record value: %w", ErrTruncated)
	}
	v := b[metaHeaderSize:sz]
	var err error
	rec.Value, err = decodeMetaValue(ctx, rec.Type, v)
	if err != nil {
		return MetaRecord{}, 0, err
	}
	return rec, sz, nil
}

func decodeMetaValue(ctx context.Context, typ MetaType, v []byte) (any, error) {
	var width int
	switch typ {
	case TypeInt8, TypeUint8:
		width = 1
	case TypeInt16, TypeUint16:
		width = 2
	case TypeInt32, TypeUint32:
		width = 4
	case TypeInt64, TypeUint64:
		width = 8
	}
	if width != 0 && len(v) != width {
		return nil, fmt.Errorf("stone: meta value is %d bytes, type %v needs %d: %w", len(v), typ, width, ErrFormat)
	}
	switch typ {
	case TypeInt8:
		return int8(v[0]), nil
	case TypeUint8:
		return v[0], nil
	case TypeInt16:
		return int16(be.Uint16(v)), nil
	case TypeUint16:
		return be.Uint16(v), nil
	case TypeInt32:
		return int32(be.Uint32(v)), nil
	case TypeUint32:
		return be.Uint32(v), nil
	case TypeInt64:
		return int64(be.Uint64(v)), nil
	case TypeUint64:
		return be.Uint64(v), nil
	case TypeString:
		return append([]byte(nil), v...), nil
	case TypeDependency, TypeProvider:
		if len(v) < 1 {
			return nil, fmt.Errorf("stone: empty dependency value: %w", ErrTruncated)
		}
		kind := DependencyKind(v[0])
		name := v[1:]
		// Some writers NUL-terminate the name; the length field is
		// authoritative, so strip at most one trailing NUL.
		if n := len(name); n > 0 && name[n-1] == 0 {
			name = name[:n-1]
		}
		if typ == TypeProvider {
			return Provider{Kind: kind, Name: string(name)}, nil
		}
		return Dependency{Kind: kind, Name: string(name)}, nil
	default:
		zlog.Debug(ctx).
			Uint8("type", uint8(typ)).
			Msg("unknown meta primitive type")
		return append([]byte(nil), v...), nil
	}
}
