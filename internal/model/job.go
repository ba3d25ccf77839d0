package model

import (
	"fmt"
	"time"
)

type JobType string

const (
	JobTypeCreate    JobType = "create"
	JobTypeCustomize JobType = "customize"
)

type JobStatus string

const (
	JobStatusCreating           JobStatus = "creating"
	JobStatusFetchingImage      JobStatus = "fetching_image"
	JobStatusFetchingRecipe     JobStatus = "fetching_recipe"
	JobStatusWaitingForRepos    JobStatus = "waiting_for_repos"
	JobStatusBuildingImage      JobStatus = "building_image"
	JobStatusPackagingArtifacts JobStatus = "packaging_artifacts"
	JobStatusWaitingOnUser      JobStatus = "waiting_on_user"
	JobStatusError              JobStatus = "error"
	JobStatusSuccess            JobStatus = "success"
)

// IsTerminal reports whether status is one that triggers release of the
// job's network service and destination rule (§3 Job invariants).
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusError || s == JobStatusSuccess
}

var validJobStatuses = map[JobStatus]bool{
	JobStatusCreating: true, JobStatusFetchingImage: true, JobStatusFetchingRecipe: true,
	JobStatusWaitingForRepos: true, JobStatusBuildingImage: true, JobStatusPackagingArtifacts: true,
	JobStatusWaitingOnUser: true, JobStatusError: true, JobStatusSuccess: true,
}

func ValidJobStatus(s JobStatus) bool { return validJobStatuses[s] }

const (
	KernelFileNameX86    = "vmlinuz"
	KernelFileNameAarch64 = "Image"
	DefaultInitrdFileName            = "initrd"
	DefaultKernelParametersFileName  = "kernel-parameters"
)

// SSHConnectionInfo is the resolved external/in-cluster address for one ssh
// container, filled in by the job controller at create time.
type SSHConnectionInfo struct {
	Host string `json:"host"`
	Port int    `json:"port,omitempty"`
}

// SSHContainer describes one debug/interactive container attached to a job.
type SSHContainer struct {
	Name           string                        `json:"name" validate:"required"`
	Jail           bool                          `json:"jail"`
	Status         string                        `json:"status,omitempty"`
	ConnectionInfo map[string]SSHConnectionInfo `json:"connection_info,omitempty"`
}

// Job is a build ("create") or customize job driving the orchestration
// engine in internal/jobcontroller.
type Job struct {
	ID                       string         `json:"id"`
	JobType                  JobType        `json:"job_type" validate:"required,oneof=create customize"`
	ArtifactID               string         `json:"artifact_id" validate:"required"`
	PublicKeyID              string         `json:"public_key_id,omitempty"`
	EnableDebug              bool           `json:"enable_debug"`
	ImageRootArchiveName     string         `json:"image_root_archive_name" validate:"required"`
	KernelFileName           string         `json:"kernel_file_name,omitempty"`
	InitrdFileName           string         `json:"initrd_file_name"`
	KernelParametersFileName string         `json:"kernel_parameters_file_name"`
	SSHContainers            []SSHContainer `json:"ssh_containers,omitempty"`
	RequireDKMS              bool           `json:"require_dkms"`
	Arch                     Arch           `json:"arch"`
	BuildEnvSizeGiB          int            `json:"build_env_size_gib" validate:"min=1"`
	JobMemSizeGiB            int            `json:"job_mem_size_gib" validate:"min=1"`
	Status                   JobStatus      `json:"status"`
	ResultantImageID         string         `json:"resultant_image_id,omitempty"`

	KubernetesJob       string `json:"kubernetes_job,omitempty"`
	KubernetesService   string `json:"kubernetes_service,omitempty"`
	KubernetesConfigMap string `json:"kubernetes_configmap,omitempty"`
	KubernetesPVC       string `json:"kubernetes_pvc,omitempty"`
	KubernetesSecret    string `json:"kubernetes_secret,omitempty"`
	KubernetesNamespace string `json:"kubernetes_namespace,omitempty"`

	RemoteBuildNode string    `json:"remote_build_node"`
	Created         time.Time `json:"created"`
}

// JobInput is the POST /jobs request body, before defaults/invariants are
// applied by the job controller.
type JobInput struct {
	JobType                  JobType        `json:"job_type" validate:"required,oneof=create customize"`
	ArtifactID               string         `json:"artifact_id" validate:"required"`
	PublicKeyID              string         `json:"public_key_id,omitempty"`
	EnableDebug              bool           `json:"enable_debug"`
	ImageRootArchiveName     string         `json:"image_root_archive_name" validate:"required"`
	KernelFileName           string         `json:"kernel_file_name,omitempty"`
	InitrdFileName           string         `json:"initrd_file_name,omitempty"`
	KernelParametersFileName string         `json:"kernel_parameters_file_name,omitempty"`
	SSHContainers            []SSHContainer `json:"ssh_containers,omitempty"`
	RequireDKMS              *bool          `json:"require_dkms,omitempty"`
	BuildEnvSizeGiB          int            `json:"build_env_size_gib,omitempty"`
	JobMemSizeGiB            int            `json:"job_mem_size_gib,omitempty"`
}

// JobPatch is the PATCH /jobs/{id} body. Only status and resultant_image_id
// are mutable (§7).
type JobPatch struct {
	Status           *JobStatus `json:"status,omitempty"`
	ResultantImageID *string    `json:"resultant_image_id,omitempty"`
}

// NormalizeSSHContainers enforces the §3 ssh_container invariants:
//   - create jobs reject user-supplied ssh_containers
//   - create jobs with enable_debug get exactly one {name:"debug",jail:false}
//   - customize jobs with no ssh_containers get one {name:"customize",jail:false}
//   - at most one ssh_container total (current limit)
func NormalizeSSHContainers(jobType JobType, enableDebug bool, in []SSHContainer) ([]SSHContainer, error) {
	switch jobType {
	case JobTypeCreate:
		if len(in) > 0 {
			return nil, fmt.Errorf("ssh_containers may not be supplied for job_type=create")
		}
		if enableDebug {
			in = []SSHContainer{{Name: "debug", Jail: false}}
		}
	case JobTypeCustomize:
		if len(in) == 0 {
			in = []SSHContainer{{Name: "customize", Jail: false}}
		}
	default:
		return nil, fmt.Errorf("unsupported job_type %q", jobType)
	}
	if len(in) > 1 {
		return nil, fmt.Errorf("at most one ssh_container is supported per job")
	}
	return in, nil
}

// DefaultKernelFileName returns the arch-appropriate default kernel file
// name when the caller didn't supply one.
func DefaultKernelFileName(arch Arch) string {
	if arch == ArchAarch64 {
		return KernelFileNameAarch64
	}
	return KernelFileNameX86
}

// ResolveRequireDKMS applies the §3 rule that aarch64 jobs always require
// dkms regardless of input, and that a create job inherits the recipe's
// require_dkms when the caller didn't specify one.
func ResolveRequireDKMS(arch Arch, requested *bool, recipeDefault bool) bool {
	if arch == ArchAarch64 {
		return true
	}
	if requested != nil {
		return *requested
	}
	return recipeDefault
}
