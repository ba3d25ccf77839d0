package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-logr/logr"

	"github.com/Cray-HPE/ims-sub000/internal/lifecycle"
	"github.com/Cray-HPE/ims-sub000/internal/manifest"
	"github.com/Cray-HPE/ims-sub000/internal/model"
	"github.com/Cray-HPE/ims-sub000/internal/objectstore"
	"github.com/Cray-HPE/ims-sub000/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return newTestServerWithGateway(t, objectstore.NewFake())
}

func newTestServerWithGateway(t *testing.T, gw objectstore.Gateway) *Server {
	t.Helper()
	dir := t.TempDir()

	publicKeys := store.NewRegistry(
		openStore(t, dir, "v2.2_public_keys.json", func(p model.PublicKey) string { return p.ID }),
		openStore(t, dir, "v3.1_deleted_public_keys.json", func(p model.DeletedPublicKey) string { return p.ID }),
	)
	recipes := store.NewRegistry(
		openStore(t, dir, "v2.2_recipes.json", func(r model.Recipe) string { return r.ID }),
		openStore(t, dir, "v3.1_deleted_recipes.json", func(r model.DeletedRecipe) string { return r.ID }),
	)
	images := store.NewRegistry(
		openStore(t, dir, "v2.2_images.json", func(i model.Image) string { return i.ID }),
		openStore(t, dir, "v3.1_deleted_images.json", func(i model.DeletedImage) string { return i.ID }),
	)
	remoteNodes := openStore(t, dir, "v3.1_remote_build_nodes.json", func(n model.RemoteBuildNode) string { return n.XName })

	validator := manifest.New(gw, 1<<20)

	return New(Deps{
		PublicKeys:  publicKeys,
		Recipes:     recipes,
		Images:      images,
		RemoteNodes: remoteNodes,
		Lifecycle:   lifecycle.New(gw, validator, logr.Discard()),
		Validator:   validator,
		Gateway:     gw,
		Log:         logr.Discard(),
	})
}

func openStore[T any](t *testing.T, dir, name string, keyFunc store.KeyFunc[T]) *store.Store[T] {
	t.Helper()
	s, err := store.Open[T](filepath.Join(dir, name), logr.Discard(), keyFunc)
	if err != nil {
		t.Fatalf("opening %s: %v", name, err)
	}
	return s
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndVersionEndpoints(t *testing.T) {
	r := newTestServer(t).Router()

	rec := doRequest(t, r, http.MethodGet, "/healthz/live", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /healthz/live = %d, want 200", rec.Code)
	}

	rec = doRequest(t, r, http.MethodGet, "/healthz/ready", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /healthz/ready (no Ready checker) = %d, want 200", rec.Code)
	}

	rec = doRequest(t, r, http.MethodGet, "/version", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /version = %d, want 200", rec.Code)
	}
	var v struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding /version body: %v", err)
	}
	if v.Version == "" {
		t.Error("version field is empty")
	}
}

func TestReadyEndpointReflectsReadyChecker(t *testing.T) {
	s := newTestServer(t)
	s.deps.Ready = func(ctx context.Context) error {
		return context.DeadlineExceeded
	}
	rec := doRequest(t, s.Router(), http.MethodGet, "/healthz/ready", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("GET /healthz/ready = %d, want 503", rec.Code)
	}
}

func TestCreateGetDeletePublicKey(t *testing.T) {
	r := newTestServer(t).Router()

	rec := doRequest(t, r, http.MethodPost, "/v2/public-keys", `{"name":"test","public_key":"ssh-ed25519 AAAA test"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /v2/public-keys = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var created model.PublicKey
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decoding create response: %v", err)
	}
	if created.ID == "" {
		t.Fatal("created public key has no id")
	}

	rec = doRequest(t, r, http.MethodGet, "/v2/public-keys/"+created.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /v2/public-keys/%s = %d, want 200", created.ID, rec.Code)
	}

	rec = doRequest(t, r, http.MethodDelete, "/v2/public-keys/"+created.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE /v2/public-keys/%s = %d, want 204", created.ID, rec.Code)
	}

	rec = doRequest(t, r, http.MethodGet, "/v2/public-keys/"+created.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("GET deleted public key = %d, want 404", rec.Code)
	}

	rec = doRequest(t, r, http.MethodGet, "/v3/deleted/public-keys/"+created.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /v3/deleted/public-keys/%s = %d, want 200: %s", created.ID, rec.Code, rec.Body.String())
	}
}

func TestCreatePublicKeyValidationFailure(t *testing.T) {
	r := newTestServer(t).Router()

	rec := doRequest(t, r, http.MethodPost, "/v2/public-keys", `{"name":""}`)
	if rec.Code != http.StatusBadRequest && rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("POST /v2/public-keys with missing fields = %d, want a validation-failure status", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Content-Type = %q, want application/problem+json", ct)
	}
}

func TestUnknownDeletedKindReturnsBadRequest(t *testing.T) {
	r := newTestServer(t).Router()

	rec := doRequest(t, r, http.MethodGet, "/v3/deleted/widgets", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("GET /v3/deleted/widgets = %d, want 400", rec.Code)
	}
}
