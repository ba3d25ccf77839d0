// Package keyprovisioner implements the signing-key provisioner of §4.I:
// a one-time startup bootstrap of a cluster-wide SSH CA keypair and
// certificate via a secret-manager transit engine, published as a
// ConfigMap to two namespaces.
//
// No example repo in the pack vendors a HashiCorp Vault Go SDK, so
// VaultClient is a small net/http + encoding/json REST client against
// Vault's transit HTTP API, grounded directly on
// original_source/src/server/vault.py (DESIGN.md: standard-library
// justified, no ecosystem client to ground on in the pack).
package keyprovisioner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// VaultClient talks to a Vault-shaped transit engine over its HTTP API,
// the same four endpoints vault.py drives: kubernetes auth, transit key
// create, transit key export, and a certificate-signing role.
type VaultClient struct {
	BaseURL    string // e.g. "http://cray-vault.vault:8200"
	TransitKey string // e.g. "ecdsa-p384-compute-imsssh-key"
	Role       string // e.g. "ssh_user_certs_compute"

	httpClient *http.Client
}

// NewVaultClient builds a VaultClient with a bounded request timeout,
// matching §5's "each outbound HTTP call has a bounded timeout" rule.
func NewVaultClient(baseURL, transitKey, role string) *VaultClient {
	return &VaultClient{
		BaseURL:    baseURL,
		TransitKey: transitKey,
		Role:       role,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Authenticate exchanges a Kubernetes service-account JWT for a Vault
// client token via the kubernetes auth method, mirroring
// vault_authentication() in vault.py.
func (v *VaultClient) Authenticate(ctx context.Context, kubeJWT string) (string, error) {
	payload := map[string]string{"jwt": kubeJWT, "role": v.Role}
	var out struct {
		Auth struct {
			ClientToken string `json:"client_token"`
		} `json:"auth"`
	}
	if err := v.doJSON(ctx, http.MethodPost, "/v1/auth/kubernetes/login", payload, &out); err != nil {
		return "", fmt.Errorf("keyprovisioner: vault authentication: %w", err)
	}
	return out.Auth.ClientToken, nil
}

// CreateExportableKey creates the transit signing key if it doesn't
// already exist, mirroring create_exportable_key().
func (v *VaultClient) CreateExportableKey(ctx context.Context, token string) error {
	payload := map[string]string{"type": "ecdsa-p384", "exportable": "true"}
	path := fmt.Sprintf("/v1/transit/keys/%s", v.TransitKey)
	if err := v.doJSONAuth(ctx, http.MethodPost, path, token, payload, nil); err != nil {
		return fmt.Errorf("keyprovisioner: creating transit key: %w", err)
	}
	return nil
}

// GetExportableKey fetches the current signing private key material,
// mirroring get_exportable_key(). Vault versions transit keys starting
// at "1"; the provisioner only ever deals with the first version.
func (v *VaultClient) GetExportableKey(ctx context.Context, token string) (string, error) {
	path := fmt.Sprintf("/v1/transit/export/signing-key/%s", v.TransitKey)
	var out struct {
		Data struct {
			Keys map[string]string `json:"keys"`
		} `json:"data"`
	}
	if err := v.doJSONAuth(ctx, http.MethodGet, path, token, nil, &out); err != nil {
		return "", fmt.Errorf("keyprovisioner: exporting signing key: %w", err)
	}
	key, ok := out.Data.Keys["1"]
	if !ok {
		return "", fmt.Errorf("keyprovisioner: exported key response had no version 1")
	}
	return key, nil
}

// SignPublicKey signs publicKey as a long-lived user certificate via the
// configured role, mirroring sign_public_key().
func (v *VaultClient) SignPublicKey(ctx context.Context, token, publicKey string) (string, error) {
	payload := map[string]string{
		"public_key":       publicKey,
		"ttl":              "87600h",
		"valid_principals": "root",
		"key_id":           "ims compute node root",
	}
	path := fmt.Sprintf("/v1/%s/sign/compute", v.Role)
	var out struct {
		Data struct {
			SignedKey string `json:"signed_key"`
		} `json:"data"`
	}
	if err := v.doJSONAuth(ctx, http.MethodPost, path, token, payload, &out); err != nil {
		return "", fmt.Errorf("keyprovisioner: signing public key: %w", err)
	}
	return out.Data.SignedKey, nil
}

func (v *VaultClient) doJSONAuth(ctx context.Context, method, path, token string, body, out any) error {
	return v.request(ctx, method, path, map[string]string{"X-Vault-Token": token}, body, out)
}

func (v *VaultClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	return v.request(ctx, method, path, nil, body, out)
}

func (v *VaultClient) request(ctx context.Context, method, path string, headers map[string]string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, v.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, val := range headers {
		req.Header.Set(k, val)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
