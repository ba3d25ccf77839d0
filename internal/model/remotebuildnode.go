package model

// RemoteBuildNode is a cluster-attached machine running container workloads
// outside Kubernetes, identified by its hardware xname. Its status is
// computed on demand by internal/remotenode, never stored.
type RemoteBuildNode struct {
	XName string `json:"xname" validate:"required"`
}

// UnknownNumJobs is the sentinel job count used when the load probe fails;
// it's large enough that any node with a real count is always preferred.
const UnknownNumJobs = 10000

// RemoteNodeStatus is the on-demand computed status of one RemoteBuildNode.
type RemoteNodeStatus struct {
	XName          string `json:"xname"`
	SSHStatus      string `json:"ssh_status"`
	PodmanStatus   string `json:"podman_status"`
	NodeArch       string `json:"node_arch"`
	NumCurrentJobs int    `json:"num_current_jobs"`
	AbleToRunJobs  bool   `json:"able_to_run_jobs"`
}

// NewRemoteNodeStatus seeds a status value with the defaults used before any
// probe succeeds.
func NewRemoteNodeStatus(xname string) RemoteNodeStatus {
	return RemoteNodeStatus{
		XName:          xname,
		SSHStatus:      "unknown",
		PodmanStatus:   "unknown",
		NodeArch:       "unknown",
		NumCurrentJobs: UnknownNumJobs,
		AbleToRunJobs:  false,
	}
}
