package remotenode

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/Cray-HPE/ims-sub000/internal/model"
)

// Scheduler picks a remote build node for a job, per §4.E.
type Scheduler struct {
	prober *Prober
}

// NewScheduler builds a Scheduler over the given Prober.
func NewScheduler(prober *Prober) *Scheduler {
	return &Scheduler{prober: prober}
}

// Pick probes every registered node (in parallel, bounded, but preserving
// the registration order for the tie-break) and returns the xname of the
// node with the smallest NumCurrentJobs among those that are
// AbleToRunJobs and match arch. Ties are broken by iteration (= slice)
// order. Returns "" if no node matches — the caller falls back to
// in-cluster placement, never an error (§4.G failure semantics).
func (s *Scheduler) Pick(ctx context.Context, nodes []model.RemoteBuildNode, arch model.Arch) string {
	if len(nodes) == 0 {
		return ""
	}

	statuses := make([]model.RemoteNodeStatus, len(nodes))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, n := range nodes {
		i, n := i, n
		g.Go(func() error {
			statuses[i] = s.prober.Probe(n.XName)
			return nil
		})
	}
	_ = g.Wait() // Probe never returns an error; only degrades status fields.

	best := -1
	for i, st := range statuses {
		if !st.AbleToRunJobs || st.NodeArch != string(arch) {
			continue
		}
		if best == -1 || st.NumCurrentJobs < statuses[best].NumCurrentJobs {
			best = i
		}
	}
	if best == -1 {
		return ""
	}
	return statuses[best].XName
}
