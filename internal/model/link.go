// Package model defines the IMS data model: the typed records persisted by
// internal/store and exchanged over the HTTP API, plus their invariants.
package model

import (
	"fmt"
	"strings"
)

// ArtifactLinkType enumerates the supported object-store backends for an
// ArtifactLink. Only "s3" is implemented; the type is still modeled as a
// string enum because the wire schema allows (and the manifest validator
// must reject) other values.
type ArtifactLinkType string

const (
	ArtifactLinkTypeS3 ArtifactLinkType = "s3"
)

// ArtifactLink is a pointer into the object store, shared by Recipe, Image,
// and manifest artifact entries.
type ArtifactLink struct {
	Path string           `json:"path" validate:"required"`
	ETag string           `json:"etag,omitempty"`
	Type ArtifactLinkType `json:"type" validate:"required,oneof=s3"`
}

// Equal reports whether two links are identical, used to make link PATCH
// idempotent (same value -> 200 no-op rather than 409 PatchConflict).
func (l ArtifactLink) Equal(other ArtifactLink) bool {
	return l.Path == other.Path && l.Type == other.Type &&
		strings.Trim(l.ETag, `"`) == strings.Trim(other.ETag, `"`)
}

// S3URL is a parsed "s3://bucket/key[?query]" ArtifactLink.Path.
type S3URL struct {
	Bucket string
	Key    string
}

// ParseS3URL parses an s3:// URL into its bucket and key. It intentionally
// avoids net/url's query-stripping semantics for the key: a literal '?' in
// an S3 key is legal, so everything after the bucket is treated as the key.
func ParseS3URL(raw string) (S3URL, error) {
	const scheme = "s3://"
	if !strings.HasPrefix(raw, scheme) {
		return S3URL{}, fmt.Errorf("artifact link path %q is not an s3:// url", raw)
	}
	rest := strings.TrimPrefix(raw, scheme)
	idx := strings.IndexByte(rest, '/')
	if idx < 0 || idx == len(rest)-1 {
		return S3URL{}, fmt.Errorf("artifact link path %q has no object key", raw)
	}
	return S3URL{Bucket: rest[:idx], Key: rest[idx+1:]}, nil
}

func (u S3URL) String() string {
	return fmt.Sprintf("s3://%s/%s", u.Bucket, u.Key)
}
