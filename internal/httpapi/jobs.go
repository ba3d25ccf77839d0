package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Cray-HPE/ims-sub000/internal/apierrors"
	"github.com/Cray-HPE/ims-sub000/internal/jobcontroller"
	"github.com/Cray-HPE/ims-sub000/internal/model"
)

func (s *Server) mountJobs(r chi.Router) {
	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", s.listJobs)
		r.Post("/", s.createJob)
		r.Delete("/", s.deleteJobCollection)
		r.Get("/{id}", s.getJob)
		r.Delete("/{id}", s.deleteJob)
		r.Patch("/{id}", s.patchJob)
	})
}

// jobFilterFromQuery parses the status/job_type/age query parameters
// shared by GET and DELETE /v3/jobs (§6).
func jobFilterFromQuery(r *http.Request) (jobcontroller.Filter, error) {
	q := r.URL.Query()
	filter := jobcontroller.Filter{
		Status:  model.JobStatus(q.Get("status")),
		JobType: model.JobType(q.Get("job_type")),
	}
	if filter.Status != "" && !model.ValidJobStatus(filter.Status) {
		return filter, apierrors.Newf(apierrors.KindBadRequest, "unknown status filter %q", filter.Status)
	}
	if filter.JobType != "" && filter.JobType != model.JobTypeCreate && filter.JobType != model.JobTypeCustomize {
		return filter, apierrors.Newf(apierrors.KindBadRequest, "unknown job_type filter %q", filter.JobType)
	}
	if age := q.Get("age"); age != "" {
		d, err := jobcontroller.ParseAge(age)
		if err != nil {
			return filter, err
		}
		filter.MaxAge = d
	}
	return filter, nil
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	filter, err := jobFilterFromQuery(r)
	if err != nil {
		writeProblem(w, r, err)
		return
	}
	all := listRecords(s.deps.Jobs.Jobs)
	now := time.Now().UTC()
	matched := make([]model.Job, 0, len(all))
	for _, job := range all {
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if filter.JobType != "" && job.JobType != filter.JobType {
			continue
		}
		if filter.MaxAge > 0 && now.Sub(job.Created) < filter.MaxAge {
			continue
		}
		matched = append(matched, job)
	}
	writeJSON(w, http.StatusOK, matched)
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	var in model.JobInput
	if err := decodeBody(r, &in); err != nil {
		writeProblem(w, r, err)
		return
	}
	if err := validateStruct(in); err != nil {
		writeProblem(w, r, err)
		return
	}
	job, err := s.deps.Jobs.Create(r.Context(), in)
	if err != nil {
		writeProblem(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, ok := s.deps.Jobs.Jobs.Get(id)
	if !ok {
		writeProblem(w, r, apierrors.Newf(apierrors.KindResourceNotFound, "job %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) deleteJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.deps.Jobs.Delete(r.Context(), id); err != nil {
		writeProblem(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteJobCollection(w http.ResponseWriter, r *http.Request) {
	filter, err := jobFilterFromQuery(r)
	if err != nil {
		writeProblem(w, r, err)
		return
	}
	_, errs := s.deps.Jobs.DeleteCollection(r.Context(), filter)
	if len(errs) > 0 {
		s.deps.Log.Error(errs[0], "errors during job collection delete", "count", len(errs))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) patchJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var patch model.JobPatch
	if err := decodeBody(r, &patch); err != nil {
		writeProblem(w, r, err)
		return
	}
	job, err := s.deps.Jobs.Patch(r.Context(), id, patch)
	if err != nil {
		writeProblem(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}
