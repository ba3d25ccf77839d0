package keyprovisioner

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
)

func newScheme(t *testing.T) *runtime.Scheme {
	t.Helper()
	scheme := runtime.NewScheme()
	if err := corev1.AddToScheme(scheme); err != nil {
		t.Fatalf("adding corev1 to scheme: %v", err)
	}
	return scheme
}

// fakeVaultServer stands in for a transit-engine endpoint, scripted to
// return a fixed exportable EC keypair and "sign" any public key with a
// canned certificate string.
func fakeVaultServer(t *testing.T) *httptest.Server {
	t.Helper()

	priv, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	if err != nil {
		t.Fatalf("generating test key: %v", err)
	}
	der, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		t.Fatalf("marshaling test key: %v", err)
	}
	privatePEM := string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}))

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/auth/kubernetes/login", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"auth": map[string]string{"client_token": "test-token"},
		})
	})
	mux.HandleFunc("/v1/transit/keys/test-key", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/v1/transit/export/signing-key/test-key", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"keys": map[string]string{"1": privatePEM},
			},
		})
	})
	mux.HandleFunc("/v1/ssh-role/sign/compute", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"signed_key": "ssh-ed25519-cert-v01@openssh.com AAAA... fake-cert"},
		})
	})

	return httptest.NewServer(mux)
}

func TestProvisionPublishesConfigMapToAllNamespaces(t *testing.T) {
	srv := fakeVaultServer(t)
	defer srv.Close()

	tokenFile := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(tokenFile, []byte("fake-jwt"), 0o600); err != nil {
		t.Fatalf("writing fake token: %v", err)
	}

	fakeClient := fake.NewClientBuilder().WithScheme(newScheme(t)).Build()

	p := New(fakeClient, Options{
		VaultAddr:     srv.URL,
		TransitKey:    "test-key",
		Role:          "ssh-role",
		Namespaces:    []string{"services", "ims"},
		KubeTokenPath: tokenFile,
	}, logr.Discard())

	if err := p.Provision(context.Background()); err != nil {
		t.Fatalf("Provision: %v", err)
	}

	for _, ns := range []string{"services", "ims"} {
		var cm corev1.ConfigMap
		if err := fakeClient.Get(context.Background(), client.ObjectKey{Namespace: ns, Name: ConfigMapName}, &cm); err != nil {
			t.Fatalf("reading config map in %s: %v", ns, err)
		}
		if cm.Data[keyPrivateKey] == "" || cm.Data[keyPublicKey] == "" || cm.Data[keyCertificate] == "" {
			t.Errorf("config map in %s missing expected keys: %+v", ns, cm.Data)
		}
	}
}

func TestProvisionSkipsWhenAlreadyBootstrapped(t *testing.T) {
	fakeClient := fake.NewClientBuilder().WithScheme(newScheme(t)).WithObjects(&corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{Namespace: "services", Name: ConfigMapName},
		Data:       map[string]string{keyPrivateKey: "existing"},
	}).Build()

	// A Vault address that would error on any request proves Provision
	// never calls out when the primary namespace is already bootstrapped.
	p := New(fakeClient, Options{
		VaultAddr:  "http://127.0.0.1:0",
		TransitKey: "test-key",
		Role:       "ssh-role",
		Namespaces: []string{"services", "ims"},
	}, logr.Discard())

	if err := p.Provision(context.Background()); err != nil {
		t.Fatalf("Provision: %v", err)
	}

	var cm corev1.ConfigMap
	if err := fakeClient.Get(context.Background(), client.ObjectKey{Namespace: "ims", Name: ConfigMapName}, &cm); err == nil {
		t.Errorf("expected no config map published to ims namespace, found one")
	}
}
