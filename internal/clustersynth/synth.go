package clustersynth

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/controller-runtime/pkg/client"
	ctrllog "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/Cray-HPE/ims-sub000/internal/model"
)

// destinationRuleGVK is the Istio CRD the synthesizer manages without a
// typed client, the same unstructured.Unstructured approach the pack uses
// for CRDs it doesn't vendor a generated client for.
var destinationRuleGVK = schema.GroupVersionKind{
	Group:   "networking.istio.io",
	Version: "v1beta1",
	Kind:    "DestinationRule",
}

// SigningKeySecretName is the ConfigMap/Secret name §4.I publishes and
// §4.F copies into each job's namespace.
const SigningKeySecretName = "cray-ims-remote-keys"

// Applier is the subset of Synthesizer that internal/jobcontroller drives.
// It's declared here, next to the implementation, so jobcontroller can
// depend on the interface and substitute a fake in tests rather than
// standing up a real (or envtest) Kubernetes client.
type Applier interface {
	CreateAll(ctx context.Context, namespace string, jobType model.JobType, recipeType model.RecipeType, params map[string]string) (CreatedNames, error)
	DeleteAll(ctx context.Context, namespace string, names CreatedNames, partial bool) []error
}

// Synthesizer renders and applies a job's Kubernetes resources (§4.F).
type Synthesizer struct {
	k8sClient     client.Client
	templates     *TemplateLoader
	signingKeySrc string // namespace the system signing-key secret lives in
}

// New builds a Synthesizer.
func New(k8sClient client.Client, templates *TemplateLoader, signingKeySourceNamespace string) *Synthesizer {
	return &Synthesizer{k8sClient: k8sClient, templates: templates, signingKeySrc: signingKeySourceNamespace}
}

// CreatedNames is the bookkeeping §4.F step 4 records on the Job: the
// name it assigned to each resource kind.
type CreatedNames struct {
	ConfigMap   string
	Service     string
	Workload    string
	PVC         string
	Secret      string
	Namespace   string
}

// CreateAll renders and applies a job's resources in the deterministic
// order required by §5: configmap -> service -> workload -> pvc ->
// DestinationRule -> secret. It stops at the first unretryable failure;
// whatever succeeded so far is reflected in the returned CreatedNames so
// the caller can invoke DeleteAll to roll back.
func (s *Synthesizer) CreateAll(ctx context.Context, namespace string, jobType model.JobType, recipeType model.RecipeType, params map[string]string) (CreatedNames, error) {
	names := CreatedNames{Namespace: namespace}

	for _, resource := range []Resource{ResourceConfigMap, ResourceService, ResourceWorkload, ResourcePVC} {
		rendered, err := s.templates.Render(jobType, recipeType, resource, params)
		if err != nil {
			return names, fmt.Errorf("clustersynth: rendering %s: %w", resource, err)
		}
		obj := &unstructured.Unstructured{}
		if err := yamlToUnstructured(rendered.YAML, obj); err != nil {
			return names, fmt.Errorf("clustersynth: decoding rendered %s: %w", resource, err)
		}
		obj.SetNamespace(namespace)

		if err := withRetry(ctx, func() error { return s.k8sClient.Create(ctx, obj) }); err != nil {
			return names, fmt.Errorf("clustersynth: applying %s %s: %w", resource, rendered.Name, err)
		}

		switch resource {
		case ResourceConfigMap:
			names.ConfigMap = rendered.Name
		case ResourceService:
			names.Service = rendered.Name
		case ResourceWorkload:
			names.Workload = rendered.Name
		case ResourcePVC:
			names.PVC = rendered.Name
		}
	}

	if err := s.createDestinationRule(ctx, namespace, names.Service); err != nil {
		return names, fmt.Errorf("clustersynth: creating destination rule for %s: %w", names.Service, err)
	}

	secretName, err := s.copySigningKeySecret(ctx, namespace, names.Service)
	if err != nil {
		// Non-fatal per §4.F: "Failure to copy is logged, not fatal."
		ctrllog.FromContext(ctx).Error(err, "copying signing-key secret into job namespace failed", "namespace", namespace)
		names.Secret = ""
	} else {
		names.Secret = secretName
	}

	return names, nil
}

// DeleteAll removes a job's resources in the order service, workload,
// configmap, pvc, secret, and removes the DestinationRule last. Missing-resource
// errors are tolerated; other errors accumulate into the returned slice.
// When partial is true (a terminal-status PATCH, §4.G), only the service
// and DestinationRule are removed, preserving the workload/configmap/
// pvc/secret so logs survive.
func (s *Synthesizer) DeleteAll(ctx context.Context, namespace string, names CreatedNames, partial bool) []error {
	var errs []error

	deleteOne := func(obj client.Object) {
		if err := s.k8sClient.Delete(ctx, obj); err != nil && !k8serrors.IsNotFound(err) {
			errs = append(errs, err)
		}
	}

	if names.Service != "" {
		deleteOne(&corev1.Service{ObjectMeta: metav1.ObjectMeta{Name: names.Service, Namespace: namespace}})
	}

	if !partial {
		if names.Workload != "" {
			// The workload kind varies by job_type (Job vs Pod); callers that
			// need precise GVK deletion pass a pre-populated client.Object in
			// a future revision. For the common batchv1.Job case:
			deleteOne(&unstructured.Unstructured{Object: map[string]interface{}{
				"apiVersion": "batch/v1",
				"kind":       "Job",
				"metadata":   map[string]interface{}{"name": names.Workload, "namespace": namespace},
			}})
		}
		if names.ConfigMap != "" {
			deleteOne(&corev1.ConfigMap{ObjectMeta: metav1.ObjectMeta{Name: names.ConfigMap, Namespace: namespace}})
		}
		if names.PVC != "" {
			deleteOne(&corev1.PersistentVolumeClaim{ObjectMeta: metav1.ObjectMeta{Name: names.PVC, Namespace: namespace}})
		}
		if names.Secret != "" {
			deleteOne(&corev1.Secret{ObjectMeta: metav1.ObjectMeta{Name: names.Secret, Namespace: namespace}})
		}
	}

	dr := &unstructured.Unstructured{}
	dr.SetGroupVersionKind(destinationRuleGVK)
	dr.SetName(destinationRuleName(names.Service))
	dr.SetNamespace(namespace)
	deleteOne(dr)

	return errs
}

// createDestinationRule creates an Istio DestinationRule that disables
// mTLS from inside the mesh to the job's service (§4.F).
func (s *Synthesizer) createDestinationRule(ctx context.Context, namespace, serviceName string) error {
	dr := &unstructured.Unstructured{}
	dr.SetGroupVersionKind(destinationRuleGVK)
	dr.SetName(destinationRuleName(serviceName))
	dr.SetNamespace(namespace)
	dr.Object["spec"] = map[string]interface{}{
		"host": fmt.Sprintf("%s.%s.svc.cluster.local", serviceName, namespace),
		"trafficPolicy": map[string]interface{}{
			"tls": map[string]interface{}{"mode": "DISABLE"},
		},
	}
	return withRetry(ctx, func() error { return s.k8sClient.Create(ctx, dr) })
}

func destinationRuleName(serviceName string) string {
	return serviceName + "-disable-mtls"
}

// copySigningKeySecret copies the system signing-key secret into the
// job's namespace under a per-job name (§4.F).
func (s *Synthesizer) copySigningKeySecret(ctx context.Context, namespace, jobServiceName string) (string, error) {
	var src corev1.Secret
	if err := s.k8sClient.Get(ctx, client.ObjectKey{Namespace: s.signingKeySrc, Name: SigningKeySecretName}, &src); err != nil {
		return "", fmt.Errorf("reading source signing-key secret: %w", err)
	}

	destName := jobServiceName + "-signing-key"
	dest := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: destName, Namespace: namespace},
		Data:       src.Data,
		Type:       src.Type,
	}
	if err := s.k8sClient.Create(ctx, dest); err != nil {
		return "", fmt.Errorf("creating copied signing-key secret: %w", err)
	}
	return destName, nil
}
