package keyprovisioner

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"golang.org/x/crypto/ssh"
	corev1 "k8s.io/api/core/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// ConfigMapName is the published artifact name, matching
// clustersynth.SigningKeySecretName so F can copy what I publishes.
const ConfigMapName = "cray-ims-remote-keys"

const (
	keyPrivateKey    = "private_key"
	keyPublicKey     = "public_key"
	keyCertificate   = "certificate"
	defaultTokenPath = "/var/run/secrets/kubernetes.io/serviceaccount/token"
)

// Options configures a Provisioner.
type Options struct {
	VaultAddr     string
	TransitKey    string
	Role          string
	Namespaces    []string // published to every namespace in order; e.g. {"services", "ims"}
	KubeTokenPath string   // defaults to the projected service-account token path
}

// Provisioner runs the §4.I at-most-once signing-key bootstrap: derive (or
// reuse) a cluster CA keypair from a transit engine, have it sign the
// public half into a certificate, and publish all three as a ConfigMap
// into every configured namespace. Grounded on
// original_source/src/server/vault.py's ims_pubkey_update_main flow, which
// does the same create-key / export / sign / publish sequence against
// Kubernetes ConfigMaps in the "services" and "ims" namespaces.
type Provisioner struct {
	vault     *VaultClient
	k8sClient client.Client
	opts      Options
	log       logr.Logger
}

// New builds a Provisioner.
func New(k8sClient client.Client, opts Options, log logr.Logger) *Provisioner {
	if opts.KubeTokenPath == "" {
		opts.KubeTokenPath = defaultTokenPath
	}
	return &Provisioner{
		vault:     NewVaultClient(opts.VaultAddr, opts.TransitKey, opts.Role),
		k8sClient: k8sClient,
		opts:      opts,
		log:       log.WithName("keyprovisioner"),
	}
}

// Provision performs the bootstrap exactly once: if the ConfigMap already
// exists in the first configured namespace, it's left untouched and
// Provision returns nil immediately, matching vault.py's guard against
// re-signing a certificate on every pod restart.
func (p *Provisioner) Provision(ctx context.Context) error {
	if len(p.opts.Namespaces) == 0 {
		return fmt.Errorf("keyprovisioner: no namespaces configured")
	}

	primary := p.opts.Namespaces[0]
	var existing corev1.ConfigMap
	err := p.k8sClient.Get(ctx, client.ObjectKey{Namespace: primary, Name: ConfigMapName}, &existing)
	if err == nil {
		p.log.Info("signing key already provisioned, skipping bootstrap", "namespace", primary)
		return nil
	}
	if !k8serrors.IsNotFound(err) {
		return fmt.Errorf("keyprovisioner: checking existing config map: %w", err)
	}

	tokenBytes, err := os.ReadFile(p.opts.KubeTokenPath)
	if err != nil {
		return fmt.Errorf("keyprovisioner: reading service account token: %w", err)
	}

	token, err := p.vault.Authenticate(ctx, string(tokenBytes))
	if err != nil {
		return err
	}

	if err := p.vault.CreateExportableKey(ctx, token); err != nil {
		return err
	}

	privatePEM, err := p.vault.GetExportableKey(ctx, token)
	if err != nil {
		return err
	}

	publicAuthorizedKey, err := derivePublicKey(privatePEM)
	if err != nil {
		return fmt.Errorf("keyprovisioner: deriving public key: %w", err)
	}

	certificate, err := p.vault.SignPublicKey(ctx, token, publicAuthorizedKey)
	if err != nil {
		return err
	}

	return p.publish(ctx, privatePEM, publicAuthorizedKey, certificate)
}

// derivePublicKey parses the PEM-encoded EC private key Vault's transit
// export returns and renders the corresponding OpenSSH authorized_keys
// line, the Go equivalent of vault.py shelling out to `ssh-keygen -y`.
func derivePublicKey(privatePEM string) (string, error) {
	block, _ := pem.Decode([]byte(privatePEM))
	if block == nil {
		return "", fmt.Errorf("no PEM block found in exported key")
	}
	ecKey, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return "", fmt.Errorf("parsing EC private key: %w", err)
	}
	signer, err := ssh.NewSignerFromKey(ecKey)
	if err != nil {
		return "", fmt.Errorf("building ssh signer: %w", err)
	}
	return string(ssh.MarshalAuthorizedKey(signer.PublicKey())), nil
}

// publish writes the ConfigMap into every configured namespace, creating
// it where absent and updating it where (unexpectedly) present.
func (p *Provisioner) publish(ctx context.Context, privateKey, publicKey, certificate string) error {
	for _, ns := range p.opts.Namespaces {
		cm := &corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{Name: ConfigMapName, Namespace: ns},
			Data: map[string]string{
				keyPrivateKey:  privateKey,
				keyPublicKey:   publicKey,
				keyCertificate: certificate,
			},
		}
		if err := p.k8sClient.Create(ctx, cm); err != nil {
			if k8serrors.IsAlreadyExists(err) {
				if err := p.k8sClient.Update(ctx, cm); err != nil {
					return fmt.Errorf("keyprovisioner: updating config map in %s: %w", ns, err)
				}
				continue
			}
			return fmt.Errorf("keyprovisioner: creating config map in %s: %w", ns, err)
		}
		p.log.Info("published signing key config map", "namespace", ns)
	}
	return nil
}
