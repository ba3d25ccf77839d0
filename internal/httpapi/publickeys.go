package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Cray-HPE/ims-sub000/internal/apierrors"
	"github.com/Cray-HPE/ims-sub000/internal/model"
)

func (s *Server) mountPublicKeys(r chi.Router) {
	r.Route("/public-keys", func(r chi.Router) {
		r.Get("/", s.listPublicKeys)
		r.Post("/", s.createPublicKey)
		r.Get("/{id}", s.getPublicKey)
		r.Delete("/{id}", s.deletePublicKey)
	})
}

func (s *Server) listPublicKeys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, listRecords(s.deps.PublicKeys.Live))
}

func (s *Server) createPublicKey(w http.ResponseWriter, r *http.Request) {
	var in model.PublicKeyInput
	if err := decodeBody(r, &in); err != nil {
		writeProblem(w, r, err)
		return
	}
	if err := validateStruct(in); err != nil {
		writeProblem(w, r, err)
		return
	}
	pk := model.NewPublicKey(uuid.NewString(), in, time.Now().UTC())
	if err := s.deps.PublicKeys.Live.Put(pk.ID, pk); err != nil {
		writeProblem(w, r, apierrors.Wrap(apierrors.KindInternal, "persisting public key", err))
		return
	}
	writeJSON(w, http.StatusCreated, pk)
}

func (s *Server) getPublicKey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	pk, ok := s.deps.PublicKeys.Live.Get(id)
	if !ok {
		writeProblem(w, r, apierrors.Newf(apierrors.KindResourceNotFound, "public key %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, pk)
}

// deletePublicKey soft-deletes: a PublicKey has no object-store artifact
// to cascade (§4.D applies only to links), so this is a pure registry
// move stamped with the deletion time.
func (s *Server) deletePublicKey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	pk, ok := s.deps.PublicKeys.Live.Get(id)
	if !ok {
		writeProblem(w, r, apierrors.Newf(apierrors.KindResourceNotFound, "public key %s not found", id))
		return
	}
	deleted := model.DeletedPublicKey{PublicKey: pk, Deleted: time.Now().UTC()}
	if err := s.deps.PublicKeys.MoveToDeleted(id, deleted); err != nil {
		writeProblem(w, r, apierrors.Wrap(apierrors.KindInternal, "soft-deleting public key", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
