package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Cray-HPE/ims-sub000/internal/apierrors"
)

const (
	kindPublicKeys = "public-keys"
	kindRecipes    = "recipes"
	kindImages     = "images"
)

func (s *Server) mountDeleted(r chi.Router) {
	r.Route("/deleted/{kind}", func(r chi.Router) {
		r.Get("/", s.listDeleted)
		r.Get("/{id}", s.getDeleted)
		r.Patch("/{id}", s.patchDeleted)
		r.Delete("/{id}", s.hardDeleteDeleted)
	})
}

func (s *Server) listDeleted(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "kind") {
	case kindPublicKeys:
		writeJSON(w, http.StatusOK, listRecords(s.deps.PublicKeys.Deleted))
	case kindRecipes:
		writeJSON(w, http.StatusOK, listRecords(s.deps.Recipes.Deleted))
	case kindImages:
		writeJSON(w, http.StatusOK, listRecords(s.deps.Images.Deleted))
	default:
		writeProblem(w, r, unknownKind(r))
	}
}

func (s *Server) getDeleted(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	switch chi.URLParam(r, "kind") {
	case kindPublicKeys:
		v, ok := s.deps.PublicKeys.Deleted.Get(id)
		if !ok {
			writeProblem(w, r, notFoundDeleted(kindPublicKeys, id))
			return
		}
		writeJSON(w, http.StatusOK, v)
	case kindRecipes:
		v, ok := s.deps.Recipes.Deleted.Get(id)
		if !ok {
			writeProblem(w, r, notFoundDeleted(kindRecipes, id))
			return
		}
		writeJSON(w, http.StatusOK, v)
	case kindImages:
		v, ok := s.deps.Images.Deleted.Get(id)
		if !ok {
			writeProblem(w, r, notFoundDeleted(kindImages, id))
			return
		}
		writeJSON(w, http.StatusOK, v)
	default:
		writeProblem(w, r, unknownKind(r))
	}
}

// undeletePatch is the PATCH /deleted/{kind}/{id} request body: the only
// supported operation is "undelete" (§6).
type undeletePatch struct {
	Operation string `json:"operation" validate:"required,oneof=undelete"`
}

func (s *Server) patchDeleted(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var patch undeletePatch
	if err := decodeBody(r, &patch); err != nil {
		writeProblem(w, r, err)
		return
	}
	if err := validateStruct(patch); err != nil {
		writeProblem(w, r, err)
		return
	}

	switch chi.URLParam(r, "kind") {
	case kindPublicKeys:
		s.undeletePublicKey(w, r, id)
	case kindRecipes:
		s.undeleteRecipe(w, r, id)
	case kindImages:
		s.undeleteImage(w, r, id)
	default:
		writeProblem(w, r, unknownKind(r))
	}
}

func (s *Server) undeletePublicKey(w http.ResponseWriter, r *http.Request, id string) {
	d, ok := s.deps.PublicKeys.Deleted.Get(id)
	if !ok {
		writeProblem(w, r, notFoundDeleted(kindPublicKeys, id))
		return
	}
	if err := s.deps.PublicKeys.Restore(id, d.PublicKey); err != nil {
		writeProblem(w, r, apierrors.Wrap(apierrors.KindInternal, "undeleting public key", err))
		return
	}
	writeJSON(w, http.StatusOK, d.PublicKey)
}

func (s *Server) undeleteRecipe(w http.ResponseWriter, r *http.Request, id string) {
	d, ok := s.deps.Recipes.Deleted.Get(id)
	if !ok {
		writeProblem(w, r, notFoundDeleted(kindRecipes, id))
		return
	}
	recipe := d.Recipe
	if recipe.Link != nil {
		restored, err := s.deps.Lifecycle.UndeleteRecipe(r.Context(), *recipe.Link)
		if err != nil {
			writeProblem(w, r, err)
			return
		}
		recipe.Link = &restored
	}
	if err := s.deps.Recipes.Restore(id, recipe); err != nil {
		writeProblem(w, r, apierrors.Wrap(apierrors.KindInternal, "undeleting recipe", err))
		return
	}
	writeJSON(w, http.StatusOK, recipe)
}

func (s *Server) undeleteImage(w http.ResponseWriter, r *http.Request, id string) {
	d, ok := s.deps.Images.Deleted.Get(id)
	if !ok {
		writeProblem(w, r, notFoundDeleted(kindImages, id))
		return
	}
	img := d.Image
	if img.Link != nil {
		restored, err := s.deps.Lifecycle.UndeleteImage(r.Context(), id, *img.Link)
		if err != nil {
			writeProblem(w, r, err)
			return
		}
		img.Link = &restored
	}
	if err := s.deps.Images.Restore(id, img); err != nil {
		writeProblem(w, r, apierrors.Wrap(apierrors.KindInternal, "undeleting image", err))
		return
	}
	writeJSON(w, http.StatusOK, img)
}

// hardDeleteDeleted permanently removes a deleted-mapping record and its
// remaining object-store contents (§3 Lifecycle: hard-delete).
func (s *Server) hardDeleteDeleted(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	switch chi.URLParam(r, "kind") {
	case kindPublicKeys:
		if !s.deps.PublicKeys.Deleted.Contains(id) {
			writeProblem(w, r, notFoundDeleted(kindPublicKeys, id))
			return
		}
		if err := s.deps.PublicKeys.Deleted.Delete(id); err != nil {
			writeProblem(w, r, apierrors.Wrap(apierrors.KindInternal, "hard-deleting public key", err))
			return
		}
	case kindRecipes:
		d, ok := s.deps.Recipes.Deleted.Get(id)
		if !ok {
			writeProblem(w, r, notFoundDeleted(kindRecipes, id))
			return
		}
		if d.Link != nil {
			if err := s.deps.Lifecycle.HardDelete(r.Context(), *d.Link); err != nil {
				writeProblem(w, r, err)
				return
			}
		}
		if err := s.deps.Recipes.Deleted.Delete(id); err != nil {
			writeProblem(w, r, apierrors.Wrap(apierrors.KindInternal, "hard-deleting recipe", err))
			return
		}
	case kindImages:
		d, ok := s.deps.Images.Deleted.Get(id)
		if !ok {
			writeProblem(w, r, notFoundDeleted(kindImages, id))
			return
		}
		if d.Link != nil {
			if err := s.deps.Lifecycle.HardDelete(r.Context(), *d.Link); err != nil {
				writeProblem(w, r, err)
				return
			}
		}
		if err := s.deps.Images.Deleted.Delete(id); err != nil {
			writeProblem(w, r, apierrors.Wrap(apierrors.KindInternal, "hard-deleting image", err))
			return
		}
	default:
		writeProblem(w, r, unknownKind(r))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func unknownKind(r *http.Request) error {
	return apierrors.Newf(apierrors.KindBadRequest, "unknown deleted-resource kind %q", chi.URLParam(r, "kind"))
}

func notFoundDeleted(kind, id string) error {
	return apierrors.Newf(apierrors.KindResourceNotFound, "deleted %s %s not found", kind, id)
}
