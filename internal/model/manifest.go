package model

import "time"

// ManifestArtifactTypeSquashfsPrefix is the type prefix identifying the
// root filesystem artifact among a manifest's entries (§4.C step 7).
const ManifestArtifactTypeSquashfsPrefix = "application/vnd.cray.image.rootfs.squashfs"

// ManifestArtifactTypeManifest identifies the recovered manifest entry
// inside a deleted_manifest.json (§4.D image undelete cascade).
const ManifestArtifactTypeManifest = "application/vnd.cray.image.manifest"

// ImageManifestVersion10 is the only supported manifest schema version.
const ImageManifestVersion10 = "1.0"

// ManifestArtifact is one entry of an ImageManifest's artifact list.
type ManifestArtifact struct {
	Type string       `json:"type"`
	MD5  string       `json:"md5,omitempty"`
	Link ArtifactLink `json:"link"`
}

// ImageManifest is the JSON document an Image's link points to: the list of
// artifacts (kernel, initrd, parameters, rootfs squashfs) that make up a
// built image.
type ImageManifest struct {
	Version   string             `json:"version"`
	Created   time.Time          `json:"created"`
	Artifacts []ManifestArtifact `json:"artifacts"`
}

// DeletedManifest is written to deleted/<id>/deleted_manifest.json during
// the Image soft-delete cascade (§4.D) and carries the recovered,
// rekeyed artifact links so undelete can restore them.
type DeletedManifest struct {
	Created   time.Time          `json:"created"`
	Artifacts []ManifestArtifact `json:"artifacts"`
}
