package clustersynth

import (
	"context"
	"testing"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/Cray-HPE/ims-sub000/internal/model"
)

func newSynthScheme(t *testing.T) *runtime.Scheme {
	t.Helper()
	s := runtime.NewScheme()
	utilruntime.Must(corev1.AddToScheme(s))
	return s
}

func writeCreateTemplates(t *testing.T, root string) {
	t.Helper()
	writeTemplate(t, root, "create/kiwi-ng/image_configmap_create.yaml.template", `
apiVersion: v1
kind: ConfigMap
metadata:
  name: ${job_id}-configmap
`)
	writeTemplate(t, root, "create/kiwi-ng/image_service_create.yaml.template", `
apiVersion: v1
kind: Service
metadata:
  name: ${job_id}-service
`)
	writeTemplate(t, root, "create/kiwi-ng/image_workload_create.yaml.template", `
apiVersion: batch/v1
kind: Job
metadata:
  name: ${job_id}-workload
`)
	writeTemplate(t, root, "create/kiwi-ng/image_pvc_create.yaml.template", `
apiVersion: v1
kind: PersistentVolumeClaim
metadata:
  name: ${job_id}-pvc
`)
}

func TestCreateAllAppliesAllResources(t *testing.T) {
	root := t.TempDir()
	writeCreateTemplates(t, root)

	k8sClient := fake.NewClientBuilder().WithScheme(newSynthScheme(t)).Build()
	s := New(k8sClient, NewTemplateLoader(root), "services")

	names, err := s.CreateAll(context.Background(), "ims", model.JobTypeCreate, model.RecipeTypeKiwiNG, map[string]string{"job_id": "job-1"})
	if err != nil {
		t.Fatalf("CreateAll: %v", err)
	}
	if names.ConfigMap != "job-1-configmap" || names.Service != "job-1-service" ||
		names.Workload != "job-1-workload" || names.PVC != "job-1-pvc" {
		t.Fatalf("CreateAll names = %+v, want all four populated", names)
	}
	if names.Secret != "" {
		t.Errorf("Secret = %q, want empty (no source signing-key secret seeded)", names.Secret)
	}

	var cm corev1.ConfigMap
	if err := k8sClient.Get(context.Background(), client.ObjectKey{Namespace: "ims", Name: "job-1-configmap"}, &cm); err != nil {
		t.Errorf("expected configmap job-1-configmap to exist: %v", err)
	}

	dr := &unstructured.Unstructured{}
	dr.SetGroupVersionKind(destinationRuleGVK)
	if err := k8sClient.Get(context.Background(), client.ObjectKey{Namespace: "ims", Name: "job-1-service-disable-mtls"}, dr); err != nil {
		t.Errorf("expected DestinationRule job-1-service-disable-mtls to exist: %v", err)
	}
}

func TestCreateAllCopiesSigningKeySecretWhenPresent(t *testing.T) {
	root := t.TempDir()
	writeCreateTemplates(t, root)

	seed := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: SigningKeySecretName, Namespace: "services"},
		Data:       map[string][]byte{"private_key": []byte("pem-bytes")},
	}
	k8sClient := fake.NewClientBuilder().WithScheme(newSynthScheme(t)).WithObjects(seed).Build()
	s := New(k8sClient, NewTemplateLoader(root), "services")

	names, err := s.CreateAll(context.Background(), "ims", model.JobTypeCreate, model.RecipeTypeKiwiNG, map[string]string{"job_id": "job-2"})
	if err != nil {
		t.Fatalf("CreateAll: %v", err)
	}
	if names.Secret != "job-2-service-signing-key" {
		t.Fatalf("Secret = %q, want job-2-service-signing-key", names.Secret)
	}

	var copied corev1.Secret
	if err := k8sClient.Get(context.Background(), client.ObjectKey{Namespace: "ims", Name: names.Secret}, &copied); err != nil {
		t.Fatalf("expected copied secret: %v", err)
	}
	if string(copied.Data["private_key"]) != "pem-bytes" {
		t.Errorf("copied secret data = %q, want pem-bytes", copied.Data["private_key"])
	}
}

func TestDeleteAllPartialPreservesWorkloadAndConfigMap(t *testing.T) {
	root := t.TempDir()
	writeCreateTemplates(t, root)
	k8sClient := fake.NewClientBuilder().WithScheme(newSynthScheme(t)).Build()
	s := New(k8sClient, NewTemplateLoader(root), "services")

	names, err := s.CreateAll(context.Background(), "ims", model.JobTypeCreate, model.RecipeTypeKiwiNG, map[string]string{"job_id": "job-3"})
	if err != nil {
		t.Fatalf("CreateAll: %v", err)
	}

	if errs := s.DeleteAll(context.Background(), "ims", names, true); len(errs) != 0 {
		t.Fatalf("DeleteAll(partial) errs = %v, want none", errs)
	}

	var cm corev1.ConfigMap
	if err := k8sClient.Get(context.Background(), client.ObjectKey{Namespace: "ims", Name: names.ConfigMap}, &cm); err != nil {
		t.Errorf("expected configmap to survive a partial delete: %v", err)
	}

	workload := &unstructured.Unstructured{}
	workload.SetAPIVersion("batch/v1")
	workload.SetKind("Job")
	if err := k8sClient.Get(context.Background(), client.ObjectKey{Namespace: "ims", Name: names.Workload}, workload); err != nil {
		t.Errorf("expected workload to survive a partial delete: %v", err)
	}

	var svc corev1.Service
	if err := k8sClient.Get(context.Background(), client.ObjectKey{Namespace: "ims", Name: names.Service}, &svc); err == nil {
		t.Error("expected service to be removed by a partial delete")
	}
}
