// Package lifecycle implements the artifact lifecycle primitives of §4.D:
// soft-delete/soft-undelete/hard-delete of object-store links, and the
// Image soft-delete/undelete manifest cascade.
package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/Cray-HPE/ims-sub000/internal/apierrors"
	"github.com/Cray-HPE/ims-sub000/internal/manifest"
	"github.com/Cray-HPE/ims-sub000/internal/model"
	"github.com/Cray-HPE/ims-sub000/internal/objectstore"
)

const deletedPrefix = "deleted/"

// Lifecycle implements the §4.D operations against an object-store
// Gateway and the manifest Validator (for reading, not re-validating,
// a manifest during a cascade).
type Lifecycle struct {
	gateway   objectstore.Gateway
	validator *manifest.Validator
	log       logr.Logger
}

// New builds a Lifecycle.
func New(gateway objectstore.Gateway, validator *manifest.Validator, log logr.Logger) *Lifecycle {
	return &Lifecycle{gateway: gateway, validator: validator, log: log}
}

// SoftDelete validates link via A.head, then rewrites its key to
// "deleted/<key>" by copy-then-delete in the same bucket (§4.D), returning
// the new link with an updated etag.
func (l *Lifecycle) SoftDelete(ctx context.Context, link model.ArtifactLink) (model.ArtifactLink, error) {
	u, err := model.ParseS3URL(link.Path)
	if err != nil {
		return model.ArtifactLink{}, apierrors.Wrap(apierrors.KindValidationFailure, "artifact link is not a valid s3:// url", err)
	}
	if _, err := l.gateway.Head(ctx, u.Bucket, u.Key); err != nil {
		return model.ArtifactLink{}, apierrors.Wrap(apierrors.KindResourceNotFound, fmt.Sprintf("artifact %s does not exist", link.Path), err)
	}

	dstKey := deletedPrefix + u.Key
	if err := l.gateway.Copy(ctx, u.Bucket, u.Key, u.Bucket, dstKey); err != nil {
		return model.ArtifactLink{}, apierrors.Wrap(apierrors.KindInternal, fmt.Sprintf("soft-deleting %s", link.Path), err)
	}
	if err := l.gateway.Delete(ctx, u.Bucket, u.Key); err != nil {
		return model.ArtifactLink{}, apierrors.Wrap(apierrors.KindInternal, fmt.Sprintf("removing original object after soft-delete of %s", link.Path), err)
	}

	head, err := l.gateway.Head(ctx, u.Bucket, dstKey)
	if err != nil {
		return model.ArtifactLink{}, apierrors.Wrap(apierrors.KindInternal, fmt.Sprintf("confirming soft-deleted object %s/%s", u.Bucket, dstKey), err)
	}
	return model.ArtifactLink{Path: model.S3URL{Bucket: u.Bucket, Key: dstKey}.String(), ETag: head.ETag, Type: model.ArtifactLinkTypeS3}, nil
}

// SoftUndelete reverses SoftDelete: link's key must start with
// "deleted/"; the prefix is stripped and the copy-then-delete runs in
// reverse.
func (l *Lifecycle) SoftUndelete(ctx context.Context, link model.ArtifactLink) (model.ArtifactLink, error) {
	u, err := model.ParseS3URL(link.Path)
	if err != nil {
		return model.ArtifactLink{}, apierrors.Wrap(apierrors.KindValidationFailure, "artifact link is not a valid s3:// url", err)
	}
	if !strings.HasPrefix(u.Key, deletedPrefix) {
		return model.ArtifactLink{}, apierrors.Newf(apierrors.KindBadRequest, "artifact %s is not soft-deleted", link.Path)
	}

	dstKey := strings.TrimPrefix(u.Key, deletedPrefix)
	if err := l.gateway.Copy(ctx, u.Bucket, u.Key, u.Bucket, dstKey); err != nil {
		return model.ArtifactLink{}, apierrors.Wrap(apierrors.KindInternal, fmt.Sprintf("soft-undeleting %s", link.Path), err)
	}
	if err := l.gateway.Delete(ctx, u.Bucket, u.Key); err != nil {
		return model.ArtifactLink{}, apierrors.Wrap(apierrors.KindInternal, fmt.Sprintf("removing deleted object after undelete of %s", link.Path), err)
	}

	head, err := l.gateway.Head(ctx, u.Bucket, dstKey)
	if err != nil {
		return model.ArtifactLink{}, apierrors.Wrap(apierrors.KindInternal, fmt.Sprintf("confirming undeleted object %s/%s", u.Bucket, dstKey), err)
	}
	return model.ArtifactLink{Path: model.S3URL{Bucket: u.Bucket, Key: dstKey}.String(), ETag: head.ETag, Type: model.ArtifactLinkTypeS3}, nil
}

// HardDelete permanently removes the object a link points to.
func (l *Lifecycle) HardDelete(ctx context.Context, link model.ArtifactLink) error {
	u, err := model.ParseS3URL(link.Path)
	if err != nil {
		return apierrors.Wrap(apierrors.KindValidationFailure, "artifact link is not a valid s3:// url", err)
	}
	if err := l.gateway.Delete(ctx, u.Bucket, u.Key); err != nil {
		return apierrors.Wrap(apierrors.KindInternal, fmt.Sprintf("hard-deleting %s", link.Path), err)
	}
	return nil
}

// SoftDeleteImage runs the Image soft-delete cascade: soft-delete every
// manifest artifact, soft-delete the manifest itself, then write a
// deleted_manifest.json recording the recovered artifact list. It
// returns the image's new link, pointing at the deleted_manifest.json.
//
// Per §5 this cascade is not atomic: a failure partway through leaves
// partial progress, recoverable by re-running delete (idempotent per
// step) or undelete.
func (l *Lifecycle) SoftDeleteImage(ctx context.Context, imageID string, link model.ArtifactLink) (model.ArtifactLink, error) {
	img, _, err := l.validator.Validate(ctx, link)
	if err != nil {
		return model.ArtifactLink{}, err
	}

	recovered := make([]model.ManifestArtifact, 0, len(img.Artifacts))
	for _, a := range img.Artifacts {
		newLink, err := l.SoftDelete(ctx, a.Link)
		if err != nil {
			return model.ArtifactLink{}, fmt.Errorf("soft-deleting artifact %s of image %s: %w", a.Link.Path, imageID, err)
		}
		recovered = append(recovered, model.ManifestArtifact{Type: a.Type, MD5: a.MD5, Link: newLink})
	}

	manifestLink, err := l.SoftDelete(ctx, link)
	if err != nil {
		return model.ArtifactLink{}, fmt.Errorf("soft-deleting manifest of image %s: %w", imageID, err)
	}
	recovered = append(recovered, model.ManifestArtifact{
		Type: model.ManifestArtifactTypeManifest,
		Link: manifestLink,
	})

	u, _ := model.ParseS3URL(link.Path)
	deletedManifestKey := fmt.Sprintf("deleted/%s/deleted_manifest.json", imageID)
	body, err := json.Marshal(model.DeletedManifest{Created: time.Now().UTC(), Artifacts: recovered})
	if err != nil {
		return model.ArtifactLink{}, fmt.Errorf("marshaling deleted_manifest.json for image %s: %w", imageID, err)
	}
	if err := l.gateway.Put(ctx, u.Bucket, deletedManifestKey, body); err != nil {
		return model.ArtifactLink{}, apierrors.Wrap(apierrors.KindInternal, fmt.Sprintf("writing deleted_manifest.json for image %s", imageID), err)
	}

	head, err := l.gateway.Head(ctx, u.Bucket, deletedManifestKey)
	if err != nil {
		return model.ArtifactLink{}, apierrors.Wrap(apierrors.KindInternal, fmt.Sprintf("confirming deleted_manifest.json for image %s", imageID), err)
	}
	return model.ArtifactLink{
		Path: model.S3URL{Bucket: u.Bucket, Key: deletedManifestKey}.String(),
		ETag: head.ETag,
		Type: model.ArtifactLinkTypeS3,
	}, nil
}

// UndeleteImage reverses SoftDeleteImage: read deleted_manifest.json, then
// soft_undelete each entry. The entry whose Type is
// ManifestArtifactTypeManifest yields the original manifest link to
// restore onto the image record. Per §4.D, a single artifact's undelete
// failure is logged and the rest proceed; the deleted_manifest.json is
// still hard-deleted and the caller still moves the record to live.
func (l *Lifecycle) UndeleteImage(ctx context.Context, imageID string, deletedManifestLink model.ArtifactLink) (model.ArtifactLink, error) {
	u, err := model.ParseS3URL(deletedManifestLink.Path)
	if err != nil {
		return model.ArtifactLink{}, apierrors.Wrap(apierrors.KindValidationFailure, "deleted_manifest link is not a valid s3:// url", err)
	}
	body, err := l.gateway.Get(ctx, u.Bucket, u.Key)
	if err != nil {
		return model.ArtifactLink{}, apierrors.Wrap(apierrors.KindInternal, fmt.Sprintf("reading deleted_manifest.json for image %s", imageID), err)
	}
	var dm model.DeletedManifest
	if err := json.Unmarshal(body, &dm); err != nil {
		return model.ArtifactLink{}, apierrors.Wrap(apierrors.KindInternal, fmt.Sprintf("parsing deleted_manifest.json for image %s", imageID), err)
	}

	var originalManifestLink model.ArtifactLink
	var sawManifest bool
	for _, a := range dm.Artifacts {
		restored, err := l.SoftUndelete(ctx, a.Link)
		if err != nil {
			l.log.Error(err, "undelete of image artifact failed, continuing with remaining artifacts", "image_id", imageID, "artifact_type", a.Type)
			continue
		}
		if a.Type == model.ManifestArtifactTypeManifest {
			originalManifestLink = restored
			sawManifest = true
		}
	}

	if err := l.HardDelete(ctx, deletedManifestLink); err != nil {
		l.log.Error(err, "hard-deleting deleted_manifest.json after undelete failed", "image_id", imageID)
	}

	if !sawManifest {
		return model.ArtifactLink{}, apierrors.Newf(apierrors.KindInternal, "deleted_manifest.json for image %s had no manifest entry to restore", imageID)
	}
	return originalManifestLink, nil
}

// SoftDeleteRecipe is the simple single-object form: no manifest cascade.
func (l *Lifecycle) SoftDeleteRecipe(ctx context.Context, link model.ArtifactLink) (model.ArtifactLink, error) {
	return l.SoftDelete(ctx, link)
}

// UndeleteRecipe is the simple single-object reverse of SoftDeleteRecipe.
func (l *Lifecycle) UndeleteRecipe(ctx context.Context, link model.ArtifactLink) (model.ArtifactLink, error) {
	return l.SoftUndelete(ctx, link)
}
