// Package jobcontroller implements the job lifecycle controller of §4.G:
// accepting validated job requests, resolving the source artifact and its
// download material, deciding isolation runtime and placement, driving
// the cluster workload synthesizer, and persisting Job records through
// the record store.
package jobcontroller

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/Cray-HPE/ims-sub000/internal/apierrors"
	"github.com/Cray-HPE/ims-sub000/internal/clustersynth"
	"github.com/Cray-HPE/ims-sub000/internal/config"
	"github.com/Cray-HPE/ims-sub000/internal/manifest"
	"github.com/Cray-HPE/ims-sub000/internal/model"
	"github.com/Cray-HPE/ims-sub000/internal/objectstore"
	"github.com/Cray-HPE/ims-sub000/internal/remotenode"
	"github.com/Cray-HPE/ims-sub000/internal/store"
)

// Controller implements §4.G's operations. It is pure-Go orchestration:
// every cluster/object-store side effect is delegated to a collaborator
// (internal/clustersynth, internal/objectstore, internal/manifest,
// internal/remotenode); Controller's own job is sequencing them and
// keeping the Job record in internal/store consistent with what actually
// got created.
type Controller struct {
	Jobs        *store.Store[model.Job]
	Recipes     *store.Store[model.Recipe]
	Images      *store.Store[model.Image]
	PublicKeys  *store.Store[model.PublicKey]
	RemoteNodes *store.Store[model.RemoteBuildNode]

	Gateway   objectstore.Gateway
	Validator *manifest.Validator
	Scheduler *remotenode.Scheduler
	Synth     clustersynth.Applier

	Cfg config.Options
	Log logr.Logger

	// Metrics is optional instrumentation invoked on job creation/
	// terminal-status transitions. A nil Metrics is a silent no-op.
	Metrics Metrics
}

// Metrics is the subset of internal/metrics a Controller reports through.
// It is an interface here so unit tests don't need to stand up a real
// Prometheus registry.
type Metrics interface {
	ObserveJobCreated(jobType model.JobType)
	ObserveJobTerminal(status model.JobStatus)
	ObserveJobDuration(d time.Duration)
}

// noopMetrics satisfies Metrics when the caller doesn't wire one in.
type noopMetrics struct{}

func (noopMetrics) ObserveJobCreated(model.JobType)    {}
func (noopMetrics) ObserveJobTerminal(model.JobStatus) {}
func (noopMetrics) ObserveJobDuration(time.Duration)   {}

func (c *Controller) metrics() Metrics {
	if c.Metrics == nil {
		return noopMetrics{}
	}
	return c.Metrics
}

// Create validates and resolves request, decides placement, synthesizes
// the job's cluster resources, and persists the resulting Job record
// (§4.G create).
func (c *Controller) Create(ctx context.Context, in model.JobInput) (model.Job, error) {
	switch in.JobType {
	case model.JobTypeCreate, model.JobTypeCustomize:
	default:
		return model.Job{}, apierrors.Newf(apierrors.KindBadRequest, "unsupported job_type %q", in.JobType)
	}

	resolved, err := c.resolveArtifact(ctx, in)
	if err != nil {
		return model.Job{}, err
	}

	sshContainers, err := model.NormalizeSSHContainers(in.JobType, in.EnableDebug, in.SSHContainers)
	if err != nil {
		return model.Job{}, apierrors.Wrap(apierrors.KindBadRequest, "invalid ssh_containers", err)
	}

	publicKeyText := ""
	if in.PublicKeyID != "" {
		pk, ok := c.PublicKeys.Get(in.PublicKeyID)
		if !ok {
			return model.Job{}, apierrors.Newf(apierrors.KindValidationFailure, "public key %s not found", in.PublicKeyID)
		}
		publicKeyText = pk.PublicKey
	}

	requireDKMS := model.ResolveRequireDKMS(resolved.arch, in.RequireDKMS, resolved.recipeDKMSDefault)

	kernelFileName := in.KernelFileName
	if kernelFileName == "" {
		kernelFileName = model.DefaultKernelFileName(resolved.arch)
	}
	initrdFileName := in.InitrdFileName
	if initrdFileName == "" {
		initrdFileName = model.DefaultInitrdFileName
	}
	kernelParamsFileName := in.KernelParametersFileName
	if kernelParamsFileName == "" {
		kernelParamsFileName = model.DefaultKernelParametersFileName
	}

	buildEnvSize := in.BuildEnvSizeGiB
	if buildEnvSize <= 0 {
		buildEnvSize = c.Cfg.DefaultImageSizeGiB
	}
	jobMemSize := in.JobMemSizeGiB
	if jobMemSize <= 0 {
		jobMemSize = c.Cfg.DefaultJobMemSizeGiB
	}

	now := time.Now().UTC()
	job := model.Job{
		ID:                       uuid.NewString(),
		JobType:                  in.JobType,
		ArtifactID:               in.ArtifactID,
		PublicKeyID:              in.PublicKeyID,
		EnableDebug:              in.EnableDebug,
		ImageRootArchiveName:     in.ImageRootArchiveName,
		KernelFileName:           kernelFileName,
		InitrdFileName:           initrdFileName,
		KernelParametersFileName: kernelParamsFileName,
		SSHContainers:            sshContainers,
		RequireDKMS:              requireDKMS,
		Arch:                     resolved.arch,
		BuildEnvSizeGiB:          buildEnvSize,
		JobMemSizeGiB:            jobMemSize,
		Status:                   model.JobStatusCreating,
		KubernetesNamespace:      c.Cfg.DefaultJobNamespace,
		Created:                  now,
	}

	placement := c.placement(ctx, job.Arch, requireDKMS)
	job.RemoteBuildNode = placement.remoteXName

	downloadURL, err := c.Gateway.PresignGet(ctx, resolved.linkBucket, resolved.linkKey, c.Cfg.S3.URLExpiration)
	if err != nil {
		return model.Job{}, apierrors.Wrap(apierrors.KindInternal, "presigning artifact download URL", err)
	}

	externalHostname := fmt.Sprintf("%s.ims.%s.%s", job.ID, c.Cfg.CustomerAccessSubnetName, c.Cfg.CustomerAccessNetworkDomain)
	params := c.composeParams(job, resolved, placement, publicKeyText, downloadURL, externalHostname)

	names, err := c.Synth.CreateAll(ctx, job.KubernetesNamespace, job.JobType, resolved.recipeType, params)
	job.KubernetesConfigMap = names.ConfigMap
	job.KubernetesService = names.Service
	job.KubernetesJob = names.Workload
	job.KubernetesPVC = names.PVC
	job.KubernetesSecret = names.Secret
	if err != nil {
		// §4.G failure semantics: nothing is rolled back automatically.
		// The Job record is persisted with whatever resource names did
		// get created, named on it, so the caller can still DELETE it by
		// id to clean up. Job creation still fails with an error; a
		// failure of that persist is only logged.
		job.Status = model.JobStatusError
		if perr := c.Jobs.Put(job.ID, job); perr != nil {
			c.Log.Error(perr, "persisting partially-created job record after synth failure", "job_id", job.ID)
		}
		if _, ok := apierrors.As(err); ok {
			return job, err
		}
		return job, apierrors.Wrap(apierrors.KindInternal, "creating cluster resources for job", err)
	}

	for i := range job.SSHContainers {
		job.SSHContainers[i].Status = "pending"
		job.SSHContainers[i].ConnectionInfo = map[string]model.SSHConnectionInfo{
			"external": {Host: externalHostname},
			"internal": {Host: fmt.Sprintf("%s.%s.svc.cluster.local", names.Service, job.KubernetesNamespace)},
		}
	}

	if err := c.Jobs.Put(job.ID, job); err != nil {
		return model.Job{}, apierrors.Wrap(apierrors.KindInternal, "persisting job record", err)
	}
	c.metrics().ObserveJobCreated(job.JobType)
	return job, nil
}

// resolvedArtifact is what Create needs out of the source Recipe/Image:
// the arch to build for, the dkms default to inherit, the download link,
// and (for create jobs) the recipe type the template loader keys on.
type resolvedArtifact struct {
	arch               model.Arch
	recipeDKMSDefault  bool
	recipeType         model.RecipeType
	templateDictionary []model.TemplateDictEntry
	linkBucket         string
	linkKey            string
	linkMD5            string
}

func (c *Controller) resolveArtifact(ctx context.Context, in model.JobInput) (resolvedArtifact, error) {
	switch in.JobType {
	case model.JobTypeCreate:
		recipe, ok := c.Recipes.Get(in.ArtifactID)
		if !ok {
			return resolvedArtifact{}, apierrors.Newf(apierrors.KindValidationFailure, "recipe %s not found", in.ArtifactID)
		}
		if recipe.Link == nil {
			return resolvedArtifact{}, apierrors.Newf(apierrors.KindValidationFailure, "recipe %s has no link", in.ArtifactID)
		}
		u, err := model.ParseS3URL(recipe.Link.Path)
		if err != nil {
			return resolvedArtifact{}, apierrors.Wrap(apierrors.KindValidationFailure, "recipe link is not a valid s3:// url", err)
		}
		return resolvedArtifact{
			arch:               recipe.Arch,
			recipeDKMSDefault:  recipe.RequireDKMS,
			recipeType:         recipe.RecipeType,
			templateDictionary: recipe.TemplateDictionary,
			linkBucket:         u.Bucket,
			linkKey:            u.Key,
			linkMD5:            recipe.Link.ETag,
		}, nil

	case model.JobTypeCustomize:
		image, ok := c.Images.Get(in.ArtifactID)
		if !ok {
			return resolvedArtifact{}, apierrors.Newf(apierrors.KindValidationFailure, "image %s not found", in.ArtifactID)
		}
		if image.Link == nil {
			return resolvedArtifact{}, apierrors.Newf(apierrors.KindValidationFailure, "image %s has no link", in.ArtifactID)
		}
		_, rootfs, err := c.Validator.Validate(ctx, *image.Link)
		if err != nil {
			return resolvedArtifact{}, err
		}
		u, err := model.ParseS3URL(rootfs.Link.Path)
		if err != nil {
			return resolvedArtifact{}, apierrors.Wrap(apierrors.KindValidationFailure, "manifest rootfs link is not a valid s3:// url", err)
		}
		return resolvedArtifact{
			arch:              image.Arch,
			recipeDKMSDefault: c.Cfg.JobEnableDKMS,
			linkBucket:        u.Bucket,
			linkKey:           u.Key,
			linkMD5:           rootfs.MD5,
		}, nil
	}
	return resolvedArtifact{}, apierrors.Newf(apierrors.KindBadRequest, "unsupported job_type %q", in.JobType)
}

// placementDecision is the isolation/placement outcome of §4.G: which
// runtime class (if any) the workload uses, whether it runs privileged,
// and which remote node (if any) it was scheduled onto.
type placementDecision struct {
	runtimeClassName  string
	securityPrivilege bool
	remoteXName       string
}

func (c *Controller) placement(ctx context.Context, arch model.Arch, requireDKMS bool) placementDecision {
	d := placementDecision{}
	if requireDKMS {
		d.securityPrivilege = true
		d.runtimeClassName = c.Cfg.JobKataRuntime
		if arch == model.ArchAarch64 {
			d.runtimeClassName = c.Cfg.JobAarch64Runtime
		}
	}

	nodes := c.remoteNodeRecords()
	xname := c.Scheduler.Pick(ctx, nodes, arch)
	if xname != "" {
		d.remoteXName = xname
		// The remote node supplies isolation; clear the in-cluster
		// sandbox runtime class (§4.G).
		d.runtimeClassName = ""
	}
	return d
}

func (c *Controller) remoteNodeRecords() []model.RemoteBuildNode {
	ids := c.RemoteNodes.Iter()
	nodes := make([]model.RemoteBuildNode, 0, len(ids))
	for _, id := range ids {
		if n, ok := c.RemoteNodes.Get(id); ok {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

func (c *Controller) composeParams(job model.Job, resolved resolvedArtifact, placement placementDecision, publicKeyText, downloadURL, externalHostname string) map[string]string {
	params := map[string]string{
		"job_id":                      job.ID,
		"namespace":                   job.KubernetesNamespace,
		"arch":                        string(job.Arch),
		"build_env_size_gib":          fmt.Sprintf("%d", job.BuildEnvSizeGiB),
		"job_mem_size_gib":            fmt.Sprintf("%d", job.JobMemSizeGiB),
		"download_url":                downloadURL,
		"md5":                         resolved.linkMD5,
		"public_key":                  publicKeyText,
		"image_root_archive_name":    job.ImageRootArchiveName,
		"kernel_file_name":            job.KernelFileName,
		"initrd_file_name":            job.InitrdFileName,
		"kernel_parameters_file_name": job.KernelParametersFileName,
		"runtime_class_name":          placement.runtimeClassName,
		"security_privilege":          fmt.Sprintf("%t", placement.securityPrivilege),
		"s3_ims_bucket":               c.Cfg.S3.IMSBucket,
		"s3_boot_images_bucket":       c.Cfg.S3.BootImagesBucket,
		"hostname":                    externalHostname,
	}
	if job.JobType == model.JobTypeCreate {
		dict, _ := json.Marshal(resolved.templateDictionary)
		params["recipe_type"] = string(resolved.recipeType)
		params["template_dictionary"] = string(dict)
	}
	return params
}

// Delete invokes the synthesizer's full delete (every resource the job
// owns) and, on success, removes the Job record (§4.G delete).
func (c *Controller) Delete(ctx context.Context, id string) error {
	job, ok := c.Jobs.Get(id)
	if !ok {
		return apierrors.Newf(apierrors.KindResourceNotFound, "job %s not found", id)
	}
	if errs := c.Synth.DeleteAll(ctx, job.KubernetesNamespace, namesFromJob(job), false); len(errs) > 0 {
		return apierrors.Wrap(apierrors.KindInternal, "deleting job cluster resources", joinErrors(errs))
	}
	if err := c.Jobs.Delete(id); err != nil {
		return apierrors.Wrap(apierrors.KindInternal, "removing job record", err)
	}
	return nil
}

// Filter narrows DeleteCollection to a subset of jobs, per spec §6's
// query parameters on DELETE /v3/jobs.
type Filter struct {
	Status  model.JobStatus
	JobType model.JobType
	MaxAge  time.Duration // zero means "no age filter"
}

// DeleteCollection deletes every job matching filter, invoking F's full
// delete for each and purging only the ones that succeeded. All
// individual errors are collected and returned together (§4.G).
func (c *Controller) DeleteCollection(ctx context.Context, filter Filter) ([]string, []error) {
	now := time.Now().UTC()
	var deleted []string
	var errs []error

	for _, id := range c.Jobs.Iter() {
		job, ok := c.Jobs.Get(id)
		if !ok {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if filter.JobType != "" && job.JobType != filter.JobType {
			continue
		}
		if filter.MaxAge > 0 && now.Sub(job.Created) < filter.MaxAge {
			continue
		}

		if delErrs := c.Synth.DeleteAll(ctx, job.KubernetesNamespace, namesFromJob(job), false); len(delErrs) > 0 {
			errs = append(errs, fmt.Errorf("job %s: %w", id, joinErrors(delErrs)))
			continue
		}
		if err := c.Jobs.Delete(id); err != nil {
			errs = append(errs, fmt.Errorf("job %s: removing record: %w", id, err))
			continue
		}
		deleted = append(deleted, id)
	}
	return deleted, errs
}

// Patch applies a JobPatch (§7: only status and resultant_image_id are
// mutable). Transitioning into a terminal status releases the service
// and DestinationRule via a partial delete, tolerating resources already
// absent (idempotent repeat of the same terminal PATCH, §7).
func (c *Controller) Patch(ctx context.Context, id string, patch model.JobPatch) (model.Job, error) {
	job, ok := c.Jobs.Get(id)
	if !ok {
		return model.Job{}, apierrors.Newf(apierrors.KindResourceNotFound, "job %s not found", id)
	}

	wasTerminal := job.Status.IsTerminal()

	if patch.ResultantImageID != nil {
		job.ResultantImageID = *patch.ResultantImageID
	}
	if patch.Status != nil {
		if !model.ValidJobStatus(*patch.Status) {
			return model.Job{}, apierrors.Newf(apierrors.KindValidationFailure, "unsupported job status %q", *patch.Status)
		}
		job.Status = *patch.Status
	}

	// §5: "PATCH into terminal status deletes strictly before the record
	// update is persisted." A repeat PATCH into the same terminal status
	// is a no-op on release (already-absent resources are tolerated by
	// the partial delete below) but we still only release once per
	// transition to avoid re-deleting a service a later job reused the
	// name for; since names are job-scoped that's purely defensive.
	if job.Status.IsTerminal() && !wasTerminal {
		if errs := c.Synth.DeleteAll(ctx, job.KubernetesNamespace, namesFromJob(job), true); len(errs) > 0 {
			c.Log.Error(joinErrors(errs), "releasing job network resources on terminal transition failed", "job_id", id)
		}
		job.KubernetesService = ""
		c.metrics().ObserveJobTerminal(job.Status)
		c.metrics().ObserveJobDuration(time.Since(job.Created))
	}

	if err := c.Jobs.Put(id, job); err != nil {
		return model.Job{}, apierrors.Wrap(apierrors.KindInternal, "persisting patched job record", err)
	}
	return job, nil
}

func namesFromJob(job model.Job) clustersynth.CreatedNames {
	return clustersynth.CreatedNames{
		Namespace: job.KubernetesNamespace,
		ConfigMap: job.KubernetesConfigMap,
		Service:   job.KubernetesService,
		Workload:  job.KubernetesJob,
		PVC:       job.KubernetesPVC,
		Secret:    job.KubernetesSecret,
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	msg := fmt.Sprintf("%d errors: ", len(errs))
	for i, e := range errs {
		if i > 0 {
			msg += "; "
		}
		msg += e.Error()
	}
	return fmt.Errorf("%s", msg)
}
