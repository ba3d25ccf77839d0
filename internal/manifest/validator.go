// Package manifest implements the image manifest validator (§4.C): the
// seven-step check that a candidate ArtifactLink resolves to a
// well-formed image manifest with exactly one rootfs squashfs artifact.
package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Cray-HPE/ims-sub000/internal/apierrors"
	"github.com/Cray-HPE/ims-sub000/internal/model"
	"github.com/Cray-HPE/ims-sub000/internal/objectstore"
)

// Validator runs the §4.C validation sequence against the object store.
type Validator struct {
	gateway       objectstore.Gateway
	maxSizeBytes  int64
}

// New builds a Validator bounded by maxSizeBytes (MAX_IMAGE_MANIFEST_SIZE_BYTES).
func New(gateway objectstore.Gateway, maxSizeBytes int64) *Validator {
	return &Validator{gateway: gateway, maxSizeBytes: maxSizeBytes}
}

// Validate runs all seven steps against link and returns the decoded
// manifest plus the single rootfs artifact on success. Every failure
// returns a 4xx *apierrors.Problem, never a 5xx: KindBadRequest for an
// unsupported manifest version or a rootfs count other than one, and
// KindValidationFailure for the other steps.
func (v *Validator) Validate(ctx context.Context, link model.ArtifactLink) (model.ImageManifest, model.ManifestArtifact, error) {
	var manifest model.ImageManifest
	var rootfs model.ManifestArtifact

	u, err := model.ParseS3URL(link.Path)
	if err != nil {
		return manifest, rootfs, apierrors.Wrap(apierrors.KindValidationFailure, "manifest link is not a valid s3:// url", err)
	}

	// Step 1: artifact exists.
	head, err := v.gateway.Head(ctx, u.Bucket, u.Key)
	if err != nil {
		return manifest, rootfs, apierrors.Wrap(apierrors.KindValidationFailure, fmt.Sprintf("manifest object %s does not exist", link.Path), err)
	}

	// Step 2: size bound.
	if head.ContentLength >= v.maxSizeBytes {
		return manifest, rootfs, apierrors.Newf(apierrors.KindValidationFailure,
			"manifest object %s is %d bytes, exceeding the %d byte limit", link.Path, head.ContentLength, v.maxSizeBytes)
	}

	body, err := v.gateway.Get(ctx, u.Bucket, u.Key)
	if err != nil {
		return manifest, rootfs, apierrors.Wrap(apierrors.KindValidationFailure, fmt.Sprintf("manifest object %s could not be read", link.Path), err)
	}

	// Step 3: UTF-8 JSON.
	if !utf8.Valid(body) {
		return manifest, rootfs, apierrors.Newf(apierrors.KindValidationFailure, "manifest object %s is not valid UTF-8", link.Path)
	}
	if err := json.Unmarshal(body, &manifest); err != nil {
		return manifest, rootfs, apierrors.Wrap(apierrors.KindValidationFailure, fmt.Sprintf("manifest object %s is not valid JSON", link.Path), err)
	}

	// Step 4: version. Unsupported version is a 400 per §7, not a 422:
	// the manifest was read fine, its schema is simply one we don't speak.
	if manifest.Version != model.ImageManifestVersion10 {
		return manifest, rootfs, apierrors.Newf(apierrors.KindBadRequest, "manifest version %q is not supported", manifest.Version)
	}

	// Step 5: artifact list shape.
	if len(manifest.Artifacts) == 0 {
		return manifest, rootfs, apierrors.Newf(apierrors.KindValidationFailure, "manifest has no artifacts")
	}
	for i, a := range manifest.Artifacts {
		if a.Link.Type != model.ArtifactLinkTypeS3 {
			return manifest, rootfs, apierrors.Newf(apierrors.KindValidationFailure, "manifest artifact %d has unsupported link type %q", i, a.Link.Type)
		}
		if strings.TrimSpace(a.Link.Path) == "" {
			return manifest, rootfs, apierrors.Newf(apierrors.KindValidationFailure, "manifest artifact %d has an empty link path", i)
		}
		if strings.TrimSpace(a.Type) == "" {
			return manifest, rootfs, apierrors.Newf(apierrors.KindValidationFailure, "manifest artifact %d has an empty type", i)
		}
	}

	// Step 6: each artifact's link resolves.
	rootfsCount := 0
	for i, a := range manifest.Artifacts {
		au, err := model.ParseS3URL(a.Link.Path)
		if err != nil {
			return manifest, rootfs, apierrors.Wrap(apierrors.KindValidationFailure, fmt.Sprintf("manifest artifact %d link is not a valid s3:// url", i), err)
		}
		if _, err := v.gateway.Head(ctx, au.Bucket, au.Key); err != nil {
			return manifest, rootfs, apierrors.Wrap(apierrors.KindValidationFailure, fmt.Sprintf("manifest artifact %d (%s) does not resolve", i, a.Link.Path), err)
		}
		if strings.HasPrefix(a.Type, model.ManifestArtifactTypeSquashfsPrefix) {
			rootfsCount++
			rootfs = a
		}
	}

	// Step 7: exactly one rootfs squashfs artifact. §7 lists "no rootfs /
	// multiple rootfs" under BadRequest, not ValidationFailure.
	if rootfsCount != 1 {
		return manifest, rootfs, apierrors.Newf(apierrors.KindBadRequest,
			"manifest must contain exactly one artifact of type %s*, found %d", model.ManifestArtifactTypeSquashfsPrefix, rootfsCount)
	}

	return manifest, rootfs, nil
}
