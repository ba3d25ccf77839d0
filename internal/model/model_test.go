package model

import "testing"

func TestParseS3URL(t *testing.T) {
	u, err := ParseS3URL("s3://ims/recipes/abc.tar.gz")
	if err != nil {
		t.Fatalf("ParseS3URL: %v", err)
	}
	if u.Bucket != "ims" || u.Key != "recipes/abc.tar.gz" {
		t.Errorf("ParseS3URL = %+v", u)
	}
	if got := u.String(); got != "s3://ims/recipes/abc.tar.gz" {
		t.Errorf("String() = %q", got)
	}
}

func TestParseS3URLInvalid(t *testing.T) {
	cases := []string{"http://ims/key", "s3://bucket-only", "s3://bucket/"}
	for _, c := range cases {
		if _, err := ParseS3URL(c); err == nil {
			t.Errorf("ParseS3URL(%q) should error", c)
		}
	}
}

func TestArtifactLinkEqual(t *testing.T) {
	a := ArtifactLink{Path: "s3://b/k", ETag: `"abc123"`, Type: ArtifactLinkTypeS3}
	b := ArtifactLink{Path: "s3://b/k", ETag: "abc123", Type: ArtifactLinkTypeS3}
	if !a.Equal(b) {
		t.Error("links differing only by etag quoting should be equal")
	}
	c := ArtifactLink{Path: "s3://b/other", ETag: "abc123", Type: ArtifactLinkTypeS3}
	if a.Equal(c) {
		t.Error("links with different paths should not be equal")
	}
}

func TestApplyMetadata(t *testing.T) {
	existing := map[string]string{"env": "prod"}
	val := "x86"
	ops := []MetadataOp{
		{Operation: MetadataOpSet, Key: "arch", Value: &val},
		{Operation: MetadataOpRemove, Key: "env"},
		{Operation: MetadataOpRemove, Key: "absent"},
	}
	got := ApplyMetadata(existing, ops)
	if got["arch"] != "x86" {
		t.Errorf("arch = %q, want x86", got["arch"])
	}
	if _, ok := got["env"]; ok {
		t.Error("env should have been removed")
	}
	if _, ok := existing["arch"]; ok {
		t.Error("ApplyMetadata must not mutate the input map")
	}
}
