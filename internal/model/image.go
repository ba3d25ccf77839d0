package model

import "time"

// Image references a manifest describing a root filesystem plus
// kernel/initrd/parameters artifacts.
type Image struct {
	ID       string            `json:"id"`
	Name     string            `json:"name" validate:"required"`
	Link     *ArtifactLink     `json:"link,omitempty"`
	Arch     Arch              `json:"arch" validate:"required,oneof=x86_64 aarch64"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Created  time.Time         `json:"created"`
}

type DeletedImage struct {
	Image
	Deleted time.Time `json:"deleted"`
}

// ImageInput is the POST /images request body.
type ImageInput struct {
	Name     string            `json:"name" validate:"required"`
	Link     *ArtifactLink     `json:"link,omitempty"`
	Arch     Arch              `json:"arch" validate:"required,oneof=x86_64 aarch64"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func NewImage(id string, in ImageInput, created time.Time) Image {
	return Image{
		ID:       id,
		Name:     in.Name,
		Link:     in.Link,
		Arch:     in.Arch,
		Metadata: in.Metadata,
		Created:  created,
	}
}

// MetadataOpKind is the kind of a single metadata change operation in an
// ImagePatch.
type MetadataOpKind string

const (
	MetadataOpSet    MetadataOpKind = "set"
	MetadataOpRemove MetadataOpKind = "remove"
)

// MetadataOp is one entry of ImagePatch.Metadata: an upsert or remove keyed
// by Key against the image's metadata map.
type MetadataOp struct {
	Operation MetadataOpKind `json:"operation" validate:"required,oneof=set remove"`
	Key       string         `json:"key" validate:"required"`
	Value     *string        `json:"value,omitempty"`
}

// ImagePatch is the PATCH /images/{id} body. Link is a single-shot
// nil->value set. Arch is a plain replace. Metadata is a list of upsert/
// remove operations applied in order against the stored metadata map.
type ImagePatch struct {
	Link     *ArtifactLink `json:"link,omitempty"`
	Arch     *Arch         `json:"arch,omitempty"`
	Metadata []MetadataOp  `json:"metadata,omitempty"`
}

// ApplyMetadata applies a list of set/remove operations to a copy of the
// image's metadata map, returning the new map. A remove of an absent key is
// a no-op (§7 idempotency rule), never an error.
func ApplyMetadata(existing map[string]string, ops []MetadataOp) map[string]string {
	result := make(map[string]string, len(existing))
	for k, v := range existing {
		result[k] = v
	}
	for _, op := range ops {
		switch op.Operation {
		case MetadataOpSet:
			value := ""
			if op.Value != nil {
				value = *op.Value
			}
			result[op.Key] = value
		case MetadataOpRemove:
			delete(result, op.Key)
		}
	}
	return result
}
