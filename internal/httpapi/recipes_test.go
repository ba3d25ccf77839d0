package httpapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/Cray-HPE/ims-sub000/internal/objectstore"
)

func TestDeleteRecipeCascadeFalseLeavesArtifactInPlace(t *testing.T) {
	gw := objectstore.NewFake()
	gw.Seed("ims", "recipes/recipe1/recipe.tgz", []byte("recipe-bytes"), nil)
	s := newTestServerWithGateway(t, gw)

	rec := doRequest(t, s.Router(), http.MethodPost, "/v2/recipes",
		`{"name":"test-recipe","link":{"path":"s3://ims/recipes/recipe1/recipe.tgz","type":"s3"},"recipe_type":"kiwi-ng","linux_distribution":"sles15","arch":"x86_64"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create recipe = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decoding create response: %v", err)
	}

	rec = doRequest(t, s.Router(), http.MethodDelete, "/v2/recipes/"+created.ID+"?cascade=false", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE ?cascade=false = %d, want 204: %s", rec.Code, rec.Body.String())
	}

	if _, err := gw.Head(nil, "ims", "recipes/recipe1/recipe.tgz"); err != nil {
		t.Errorf("recipe artifact was removed despite cascade=false: %v", err)
	}
}

func TestDeleteRecipeCascadeTrueSoftDeletesArtifact(t *testing.T) {
	gw := objectstore.NewFake()
	gw.Seed("ims", "recipes/recipe1/recipe.tgz", []byte("recipe-bytes"), nil)
	s := newTestServerWithGateway(t, gw)

	rec := doRequest(t, s.Router(), http.MethodPost, "/v2/recipes",
		`{"name":"test-recipe","link":{"path":"s3://ims/recipes/recipe1/recipe.tgz","type":"s3"},"recipe_type":"kiwi-ng","linux_distribution":"sles15","arch":"x86_64"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create recipe = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decoding create response: %v", err)
	}

	rec = doRequest(t, s.Router(), http.MethodDelete, "/v2/recipes/"+created.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE (default cascade) = %d, want 204: %s", rec.Code, rec.Body.String())
	}

	if _, err := gw.Head(nil, "ims", "recipes/recipe1/recipe.tgz"); err == nil {
		t.Error("recipe artifact still present at its original key after a cascading delete")
	}
}
