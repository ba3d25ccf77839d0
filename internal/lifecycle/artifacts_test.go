package lifecycle

import (
	"context"
	"testing"

	"github.com/go-logr/logr"

	"github.com/Cray-HPE/ims-sub000/internal/manifest"
	"github.com/Cray-HPE/ims-sub000/internal/model"
	"github.com/Cray-HPE/ims-sub000/internal/objectstore"
)

func TestSoftDeleteThenUndeleteRoundTrip(t *testing.T) {
	fake := objectstore.NewFake()
	fake.Seed("ims", "recipes/r1/recipe.tar.gz", []byte("recipe-bytes"), nil)
	l := New(fake, manifest.New(fake, 1<<20), logr.Discard())

	link := model.ArtifactLink{Path: "s3://ims/recipes/r1/recipe.tar.gz", Type: model.ArtifactLinkTypeS3}

	deletedLink, err := l.SoftDeleteRecipe(context.Background(), link)
	if err != nil {
		t.Fatalf("SoftDeleteRecipe: %v", err)
	}
	if deletedLink.Path != "s3://ims/deleted/recipes/r1/recipe.tar.gz" {
		t.Errorf("deletedLink.Path = %q", deletedLink.Path)
	}
	if _, err := fake.Head(context.Background(), "ims", "recipes/r1/recipe.tar.gz"); err == nil {
		t.Error("original object should no longer exist after soft-delete")
	}

	restoredLink, err := l.UndeleteRecipe(context.Background(), deletedLink)
	if err != nil {
		t.Fatalf("UndeleteRecipe: %v", err)
	}
	if restoredLink.Path != link.Path {
		t.Errorf("restoredLink.Path = %q, want %q", restoredLink.Path, link.Path)
	}
	if _, err := fake.Head(context.Background(), "ims", "deleted/recipes/r1/recipe.tar.gz"); err == nil {
		t.Error("deleted object should no longer exist after undelete")
	}
}

func TestSoftUndeleteRejectsNonDeletedKey(t *testing.T) {
	fake := objectstore.NewFake()
	fake.Seed("ims", "recipes/r1/recipe.tar.gz", []byte("recipe-bytes"), nil)
	l := New(fake, manifest.New(fake, 1<<20), logr.Discard())

	_, err := l.SoftUndelete(context.Background(), model.ArtifactLink{Path: "s3://ims/recipes/r1/recipe.tar.gz", Type: model.ArtifactLinkTypeS3})
	if err == nil {
		t.Fatal("expected an error for undeleting a key not under deleted/")
	}
}

func TestImageSoftDeleteUndeleteCascade(t *testing.T) {
	fake := objectstore.NewFake()
	fake.Seed("ims", "images/img1/kernel", []byte("kernel-bytes"), nil)
	fake.Seed("ims", "images/img1/rootfs", []byte("rootfs-bytes"), nil)
	manifestJSON := []byte(`{
		"version": "1.0",
		"artifacts": [
			{"type": "application/vnd.cray.image.kernel", "link": {"path": "s3://ims/images/img1/kernel", "type": "s3"}},
			{"type": "application/vnd.cray.image.rootfs.squashfs", "link": {"path": "s3://ims/images/img1/rootfs", "type": "s3"}}
		]
	}`)
	fake.Seed("ims", "images/img1/manifest.json", manifestJSON, nil)

	v := manifest.New(fake, 1<<20)
	l := New(fake, v, logr.Discard())

	originalLink := model.ArtifactLink{Path: "s3://ims/images/img1/manifest.json", Type: model.ArtifactLinkTypeS3}
	deletedManifestLink, err := l.SoftDeleteImage(context.Background(), "img1", originalLink)
	if err != nil {
		t.Fatalf("SoftDeleteImage: %v", err)
	}
	if deletedManifestLink.Path != "s3://ims/deleted/img1/deleted_manifest.json" {
		t.Errorf("deletedManifestLink.Path = %q", deletedManifestLink.Path)
	}

	for _, key := range []string{"images/img1/kernel", "images/img1/rootfs", "images/img1/manifest.json"} {
		if _, err := fake.Head(context.Background(), "ims", key); err == nil {
			t.Errorf("original object %s should no longer exist after cascade", key)
		}
	}

	restoredManifestLink, err := l.UndeleteImage(context.Background(), "img1", deletedManifestLink)
	if err != nil {
		t.Fatalf("UndeleteImage: %v", err)
	}
	if restoredManifestLink.Path != originalLink.Path {
		t.Errorf("restoredManifestLink.Path = %q, want %q", restoredManifestLink.Path, originalLink.Path)
	}

	for _, key := range []string{"images/img1/kernel", "images/img1/rootfs", "images/img1/manifest.json"} {
		if _, err := fake.Head(context.Background(), "ims", key); err != nil {
			t.Errorf("restored object %s should exist after undelete: %v", key, err)
		}
	}
	if _, err := fake.Head(context.Background(), "ims", "deleted/img1/deleted_manifest.json"); err == nil {
		t.Error("deleted_manifest.json should be hard-deleted after a successful undelete")
	}
}
