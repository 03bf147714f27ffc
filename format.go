package stone

import "fmt"

// Human-readable names for the format's enums, mirroring the reference
// formatting helpers. Unknown discriminants render as "unknown(N)" rather
// than failing; the numeric value stays available on the typed constant.

// String implements fmt.Stringer.
func (t FileType) String() string {
	switch t {
	case FileTypeBinary:
		return "binary"
	case FileTypeDelta:
		return "delta"
	case FileTypeRepository:
		return "repository"
	case FileTypeBuildManifest:
		return "build-manifest"
	}
	return fmt.Sprintf("unknown(%d)", uint8(t))
}

// String implements fmt.Stringer.
func (k PayloadKind) String() string {
	switch k {
	case KindMeta:
		return "meta"
	case KindContent:
		return "content"
	case KindLayout:
		return "layout"
	case KindIndex:
		return "index"
	case KindAttributes:
		return "attributes"
	case KindDumb:
		return "dumb"
	}
	return fmt.Sprintf("unknown(%d)", uint8(k))
}

// String implements fmt.Stringer.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	}
	return fmt.Sprintf("unknown(%d)", uint8(c))
}

// String implements fmt.Stringer.
func (t LayoutFileType) String() string {
	switch t {
	case FileRegular:
		return "regular"
	case FileSymlink:
		return "symlink"
	case FileDirectory:
		return "directory"
	case FileCharacterDevice:
		return "character-device"
	case FileBlockDevice:
		return "block-device"
	case FileFifo:
		return "fifo"
	case FileSocket:
		return "socket"
	}
	return fmt.Sprintf("unknown(%d)", uint8(t))
}

// String implements fmt.Stringer.
func (t MetaTag) String() string {
	switch t {
	case TagName:
		return "name"
	case TagArchitecture:
		return "architecture"
	case TagVersion:
		return "version"
	case TagSummary:
		return "summary"
	case TagDescription:
		return "description"
	case TagHomepage:
		return "homepage"
	case TagSourceID:
		return "source-id"
	case TagDepends:
		return "depends"
	case TagProvides:
		return "provides"
	case TagConflicts:
		return "conflicts"
	case TagRelease:
		return "release"
	case TagLicense:
		return "license"
	case TagBuildRelease:
		return "build-release"
	case TagPackageURI:
		return "package-uri"
	case TagPackageHash:
		return "package-hash"
	case TagPackageSize:
		return "package-size"
	case TagBuildDepends:
		return "build-depends"
	case TagSourceURI:
		return "source-uri"
	case TagSourcePath:
		return "source-path"
	case TagSourceRef:
		return "source-ref"
	}
	return fmt.Sprintf("unknown(%d)", uint16(t))
}

// String implements fmt.Stringer.
func (t MetaType) String() string {
	switch t {
	case TypeInt8:
		return "int8"
	case TypeUint8:
		return "uint8"
	case TypeInt16:
		return "int16"
	case TypeUint16:
		return "uint16"
	case TypeInt32:
		return "int32"
	case TypeUint32:
		return "uint32"
	case TypeInt64:
		return "int64"
	case TypeUint64:
		return "uint64"
	case TypeString:
		return "string"
	case TypeDependency:
		return "dependency"
	case TypeProvider:
		return "provider"
	}
	return fmt.Sprintf("unknown(%d)", uint8(t))
}

// String implements fmt.Stringer.
func (k DependencyKind) String() string {
	switch k {
	case DependencyPackageName:
		return "name"
	case DependencySharedLibrary:
		return "soname"
	case DependencyPkgConfig:
		return "pkgconfig"
	case DependencyInterpreter:
		return "interpreter"
	case DependencyCMake:
		return "cmake"
	case DependencyPython:
		return "python"
	case DependencyBinary:
		return "binary"
	case DependencySystemBinary:
		return "sysbinary"
	case DependencyPkgConfig32:
		return "pkgconfig32"
	}
	return fmt.Sprintf("unknown(%d)", uint8(k))
}
