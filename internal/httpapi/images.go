package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Cray-HPE/ims-sub000/internal/apierrors"
	"github.com/Cray-HPE/ims-sub000/internal/model"
)

func (s *Server) mountImages(r chi.Router) {
	r.Route("/images", func(r chi.Router) {
		r.Get("/", s.listImages)
		r.Post("/", s.createImage)
		r.Get("/{id}", s.getImage)
		r.Delete("/{id}", s.deleteImage)
		r.Patch("/{id}", s.patchImage)
	})
}

func (s *Server) listImages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, listRecords(s.deps.Images.Live))
}

func (s *Server) createImage(w http.ResponseWriter, r *http.Request) {
	var in model.ImageInput
	if err := decodeBody(r, &in); err != nil {
		writeProblem(w, r, err)
		return
	}
	if err := validateStruct(in); err != nil {
		writeProblem(w, r, err)
		return
	}
	if in.Link != nil {
		if _, _, err := s.deps.Validator.Validate(r.Context(), *in.Link); err != nil {
			writeProblem(w, r, err)
			return
		}
	}
	img := model.NewImage(uuid.NewString(), in, time.Now().UTC())
	if err := s.deps.Images.Live.Put(img.ID, img); err != nil {
		writeProblem(w, r, apierrors.Wrap(apierrors.KindInternal, "persisting image", err))
		return
	}
	writeJSON(w, http.StatusCreated, img)
}

func (s *Server) getImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	img, ok := s.deps.Images.Live.Get(id)
	if !ok {
		writeProblem(w, r, apierrors.Newf(apierrors.KindResourceNotFound, "image %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, img)
}

// deleteImage runs the §4.D manifest cascade: every artifact the image's
// manifest names is soft-deleted, then the manifest itself, then the
// image record moves live->deleted with its link repointed at the
// generated deleted_manifest.json.
func (s *Server) deleteImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	img, ok := s.deps.Images.Live.Get(id)
	if !ok {
		writeProblem(w, r, apierrors.Newf(apierrors.KindResourceNotFound, "image %s not found", id))
		return
	}

	if img.Link != nil && queryBool(r, "cascade", true) {
		newLink, err := s.deps.Lifecycle.SoftDeleteImage(r.Context(), id, *img.Link)
		if err != nil {
			writeProblem(w, r, err)
			return
		}
		img.Link = &newLink
	}
	deleted := model.DeletedImage{Image: img, Deleted: time.Now().UTC()}
	if err := s.deps.Images.MoveToDeleted(id, deleted); err != nil {
		writeProblem(w, r, apierrors.Wrap(apierrors.KindInternal, "soft-deleting image", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// patchImage applies the three supported PATCH shapes (§3): single-shot
// link set, arch replace, and metadata set/remove operations, any subset
// of which may appear in one request.
func (s *Server) patchImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	img, ok := s.deps.Images.Live.Get(id)
	if !ok {
		writeProblem(w, r, apierrors.Newf(apierrors.KindResourceNotFound, "image %s not found", id))
		return
	}

	var patch model.ImagePatch
	if err := decodeBody(r, &patch); err != nil {
		writeProblem(w, r, err)
		return
	}
	if err := validateStruct(patch); err != nil {
		writeProblem(w, r, err)
		return
	}

	if patch.Link != nil {
		switch {
		case img.Link == nil:
			img.Link = patch.Link
		case img.Link.Equal(*patch.Link):
			// no-op, §7 idempotency rule
		default:
			writeProblem(w, r, apierrors.Newf(apierrors.KindPatchConflict, "image %s already has a link set", id))
			return
		}
	}

	if patch.Arch != nil {
		switch *patch.Arch {
		case model.ArchX86_64, model.ArchAarch64:
			img.Arch = *patch.Arch
		default:
			writeProblem(w, r, apierrors.Newf(apierrors.KindValidationFailure, "unsupported arch %q", *patch.Arch))
			return
		}
	}

	if len(patch.Metadata) > 0 {
		img.Metadata = model.ApplyMetadata(img.Metadata, patch.Metadata)
	}

	if err := s.deps.Images.Live.Put(id, img); err != nil {
		writeProblem(w, r, apierrors.Wrap(apierrors.KindInternal, "persisting patched image", err))
		return
	}
	writeJSON(w, http.StatusOK, img)
}
