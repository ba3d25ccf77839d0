package model

import "time"

type RecipeType string

const (
	RecipeTypeKiwiNG  RecipeType = "kiwi-ng"
	RecipeTypePacker  RecipeType = "packer"
)

type LinuxDistribution string

const (
	DistroSLES12  LinuxDistribution = "sles12"
	DistroSLES15  LinuxDistribution = "sles15"
	DistroCentOS7 LinuxDistribution = "centos7"
)

type Arch string

const (
	ArchX86_64  Arch = "x86_64"
	ArchAarch64 Arch = "aarch64"
)

// TemplateDictEntry is one element of a Recipe's ordered template_dictionary.
type TemplateDictEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Recipe references a build-definition archive in the object store.
type Recipe struct {
	ID                string              `json:"id"`
	Name              string              `json:"name" validate:"required"`
	Link              *ArtifactLink       `json:"link,omitempty"`
	RecipeType        RecipeType          `json:"recipe_type" validate:"required,oneof=kiwi-ng packer"`
	LinuxDistribution LinuxDistribution   `json:"linux_distribution" validate:"required,oneof=sles12 sles15 centos7"`
	Arch              Arch                `json:"arch" validate:"required,oneof=x86_64 aarch64"`
	RequireDKMS       bool                `json:"require_dkms"`
	TemplateDictionary []TemplateDictEntry `json:"template_dictionary,omitempty"`
	Created           time.Time           `json:"created"`
}

type DeletedRecipe struct {
	Recipe
	Deleted time.Time `json:"deleted"`
}

// RecipeInput is the POST /recipes request body.
type RecipeInput struct {
	Name               string              `json:"name" validate:"required"`
	Link               *ArtifactLink       `json:"link,omitempty"`
	RecipeType         RecipeType          `json:"recipe_type" validate:"required,oneof=kiwi-ng packer"`
	LinuxDistribution  LinuxDistribution   `json:"linux_distribution" validate:"required,oneof=sles12 sles15 centos7"`
	Arch               Arch                `json:"arch" validate:"required,oneof=x86_64 aarch64"`
	RequireDKMS        bool                `json:"require_dkms"`
	TemplateDictionary []TemplateDictEntry `json:"template_dictionary,omitempty"`
}

func NewRecipe(id string, in RecipeInput, created time.Time) Recipe {
	return Recipe{
		ID:                 id,
		Name:               in.Name,
		Link:               in.Link,
		RecipeType:         in.RecipeType,
		LinuxDistribution:  in.LinuxDistribution,
		Arch:               in.Arch,
		RequireDKMS:        in.RequireDKMS,
		TemplateDictionary: in.TemplateDictionary,
		Created:            created,
	}
}

// RecipeLinkPatch is the PATCH /recipes/{id} body: a single-shot set of Link
// from nil to a value. Any other field is rejected by the handler.
type RecipeLinkPatch struct {
	Link ArtifactLink `json:"link" validate:"required"`
}
