package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Cray-HPE/ims-sub000/internal/apierrors"
	"github.com/Cray-HPE/ims-sub000/internal/model"
)

func (s *Server) mountRemoteBuildNodes(r chi.Router) {
	r.Route("/remote-build-nodes", func(r chi.Router) {
		r.Get("/", s.listRemoteBuildNodes)
		r.Post("/", s.createRemoteBuildNode)
		r.Delete("/{xname}", s.deleteRemoteBuildNode)
	})
}

// listRemoteBuildNodes computes each registered node's status on demand
// (§3: "Status is computed on demand, not stored"), probing sequentially
// in registration order so results are stable across pages.
func (s *Server) listRemoteBuildNodes(w http.ResponseWriter, r *http.Request) {
	nodes := listRecords(s.deps.RemoteNodes)
	statuses := make([]model.RemoteNodeStatus, 0, len(nodes))
	for _, n := range nodes {
		if s.deps.Prober != nil {
			statuses = append(statuses, s.deps.Prober.Probe(n.XName))
		} else {
			statuses = append(statuses, model.NewRemoteNodeStatus(n.XName))
		}
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (s *Server) createRemoteBuildNode(w http.ResponseWriter, r *http.Request) {
	var in model.RemoteBuildNode
	if err := decodeBody(r, &in); err != nil {
		writeProblem(w, r, err)
		return
	}
	if err := validateStruct(in); err != nil {
		writeProblem(w, r, err)
		return
	}
	if err := s.deps.RemoteNodes.Put(in.XName, in); err != nil {
		writeProblem(w, r, apierrors.Wrap(apierrors.KindInternal, "persisting remote build node", err))
		return
	}
	writeJSON(w, http.StatusCreated, in)
}

func (s *Server) deleteRemoteBuildNode(w http.ResponseWriter, r *http.Request) {
	xname := chi.URLParam(r, "xname")
	if !s.deps.RemoteNodes.Contains(xname) {
		writeProblem(w, r, apierrors.Newf(apierrors.KindResourceNotFound, "remote build node %s not found", xname))
		return
	}
	if err := s.deps.RemoteNodes.Delete(xname); err != nil {
		writeProblem(w, r, apierrors.Wrap(apierrors.KindInternal, "deleting remote build node", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
