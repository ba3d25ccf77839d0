package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Cray-HPE/ims-sub000/internal/apierrors"
	"github.com/Cray-HPE/ims-sub000/internal/model"
)

func (s *Server) mountRecipes(r chi.Router) {
	r.Route("/recipes", func(r chi.Router) {
		r.Get("/", s.listRecipes)
		r.Post("/", s.createRecipe)
		r.Get("/{id}", s.getRecipe)
		r.Delete("/{id}", s.deleteRecipe)
		r.Patch("/{id}", s.patchRecipe)
	})
}

func (s *Server) listRecipes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, listRecords(s.deps.Recipes.Live))
}

func (s *Server) createRecipe(w http.ResponseWriter, r *http.Request) {
	var in model.RecipeInput
	if err := decodeBody(r, &in); err != nil {
		writeProblem(w, r, err)
		return
	}
	if err := validateStruct(in); err != nil {
		writeProblem(w, r, err)
		return
	}
	if in.Link != nil {
		if conflict := s.recipeLinkConflict(*in.Link, ""); conflict {
			writeProblem(w, r, apierrors.Newf(apierrors.KindValidationFailure, "recipe link %s is already in use by another recipe", in.Link.Path))
			return
		}
	}
	recipe := model.NewRecipe(uuid.NewString(), in, time.Now().UTC())
	if err := s.deps.Recipes.Live.Put(recipe.ID, recipe); err != nil {
		writeProblem(w, r, apierrors.Wrap(apierrors.KindInternal, "persisting recipe", err))
		return
	}
	writeJSON(w, http.StatusCreated, recipe)
}

func (s *Server) getRecipe(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	recipe, ok := s.deps.Recipes.Live.Get(id)
	if !ok {
		writeProblem(w, r, apierrors.Newf(apierrors.KindResourceNotFound, "recipe %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, recipe)
}

func (s *Server) deleteRecipe(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	recipe, ok := s.deps.Recipes.Live.Get(id)
	if !ok {
		writeProblem(w, r, apierrors.Newf(apierrors.KindResourceNotFound, "recipe %s not found", id))
		return
	}

	if recipe.Link != nil && queryBool(r, "cascade", true) {
		newLink, err := s.deps.Lifecycle.SoftDeleteRecipe(r.Context(), *recipe.Link)
		if err != nil {
			writeProblem(w, r, err)
			return
		}
		recipe.Link = &newLink
	}
	deleted := model.DeletedRecipe{Recipe: recipe, Deleted: time.Now().UTC()}
	if err := s.deps.Recipes.MoveToDeleted(id, deleted); err != nil {
		writeProblem(w, r, apierrors.Wrap(apierrors.KindInternal, "soft-deleting recipe", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// patchRecipe implements the single-shot link set (§3): link is immutable
// once set. The same-value repeat is a no-op 200; any other value while
// already set is a 409 PatchConflict.
func (s *Server) patchRecipe(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	recipe, ok := s.deps.Recipes.Live.Get(id)
	if !ok {
		writeProblem(w, r, apierrors.Newf(apierrors.KindResourceNotFound, "recipe %s not found", id))
		return
	}

	var patch model.RecipeLinkPatch
	if err := decodeBody(r, &patch); err != nil {
		writeProblem(w, r, err)
		return
	}
	if err := validateStruct(patch); err != nil {
		writeProblem(w, r, err)
		return
	}

	if recipe.Link != nil {
		if recipe.Link.Equal(patch.Link) {
			writeJSON(w, http.StatusOK, recipe)
			return
		}
		writeProblem(w, r, apierrors.Newf(apierrors.KindPatchConflict, "recipe %s already has a link set", id))
		return
	}

	if s.recipeLinkConflict(patch.Link, id) {
		writeProblem(w, r, apierrors.Newf(apierrors.KindValidationFailure, "recipe link %s is already in use by another recipe", patch.Link.Path))
		return
	}

	recipe.Link = &patch.Link
	if err := s.deps.Recipes.Live.Put(id, recipe); err != nil {
		writeProblem(w, r, apierrors.Wrap(apierrors.KindInternal, "persisting patched recipe", err))
		return
	}
	writeJSON(w, http.StatusOK, recipe)
}

// recipeLinkConflict reports whether link.Path is already used by a live
// recipe other than excludeID (§3: "Recipe links must be globally unique
// across live recipes").
func (s *Server) recipeLinkConflict(link model.ArtifactLink, excludeID string) bool {
	for _, id := range s.deps.Recipes.Live.Iter() {
		if id == excludeID {
			continue
		}
		other, ok := s.deps.Recipes.Live.Get(id)
		if !ok || other.Link == nil {
			continue
		}
		if other.Link.Path == link.Path {
			return true
		}
	}
	return false
}
