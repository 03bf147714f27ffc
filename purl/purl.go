// Package purl derives package URLs from decoded stone metadata.
package purl

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/package-url/packageurl-go"

	stone "github.com/serpent-os/go-stone"
)

// Type is the purl type used for stone packages.
const Type = "stone"

// ErrIncomplete is reported when the metadata is missing a field the purl
// needs.
var ErrIncomplete = errors.New("purl: metadata missing required tag")

// FromMeta folds the records of a meta payload into a package URL of the
// shape pkg:stone/<name>@<version>-<release>?arch=<architecture>.
//
// Records with tags the purl does not use are ignored; an error from the
// underlying iterator aborts the fold.
func FromMeta(ctx context.Context, records iter.Seq2[stone.MetaRecord, error]) (packageurl.PackageURL, error) {
	var name, version, arch string
	var release uint64
	var haveRelease bool
	for rec, err := range records {
		if err != nil {
			return packageurl.PackageURL{}, fmt.Errorf("purl: reading meta records: %w", err)
		}
		switch rec.Tag {
		case stone.TagName:
			name = metaString(rec)
		case stone.TagVersion:
			version = metaString(rec)
		case stone.TagArchitecture:
			arch = metaString(rec)
		case stone.TagRelease:
			if v, ok := rec.Value.(uint64); ok {
				release, haveRelease = v, true
			}
		}
	}
	if name == "" {
		return packageurl.PackageURL{}, fmt.Errorf("%w: %v", ErrIncomplete, stone.TagName)
	}
	if version == "" {
		return packageurl.PackageURL{}, fmt.Errorf("%w: %v", ErrIncomplete, stone.TagVersion)
	}
	if haveRelease {
		version = fmt.Sprintf("%s-%d", version, release)
	}
	var q packageurl.Qualifiers
	if arch != "" {
		q = append(q, packageurl.Qualifier{Key: "arch", Value: arch})
	}
	return *packageurl.NewPackageURL(Type, "", name, version, q, ""), nil
}

// MetaString pulls the string form out of a record's value, tolerating the
// raw-bytes representation.
func metaString(rec stone.MetaRecord) string {
	switch v := rec.Value.(type) {
	case []byte:
		return string(v)
	case string:
		return v
	}
	return ""
}
