// Package remotenode implements the remote-build-node prober and
// scheduler of §4.E: SSH-based status probing of hardware nodes outside
// the cluster, and placement of jobs onto the least-loaded matching node.
package remotenode

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/Cray-HPE/ims-sub000/internal/model"
)

// commandTimeout bounds each SSH command the prober issues, per §5's
// "bounded per-command" SSH timeout requirement.
const commandTimeout = 10 * time.Second

// Runner executes a command over an established connection to one node
// and returns its trimmed stdout. The real implementation opens an SSH
// session per command (matching the one-shot nature of each probe);
// tests substitute a scripted fake.
type Runner interface {
	Run(xname, command string) (stdout string, err error)
}

// SSHRunner is the production Runner, authenticating with the private
// key provisioned by internal/keyprovisioner (§4.I).
type SSHRunner struct {
	PrivateKeyPath string
	User           string
	Port           int
}

// NewSSHRunner loads and validates the private key file once; §4.E
// requires the scheduler to treat a missing or malformed key file as
// "no nodes available" rather than probing with no credential.
func NewSSHRunner(privateKeyPath, user string, port int) (*SSHRunner, error) {
	if _, err := loadSigner(privateKeyPath); err != nil {
		return nil, fmt.Errorf("remotenode: private key %s is not usable: %w", privateKeyPath, err)
	}
	return &SSHRunner{PrivateKeyPath: privateKeyPath, User: user, Port: port}, nil
}

func loadSigner(path string) (ssh.Signer, error) {
	keyBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ssh.ParsePrivateKey(keyBytes)
}

// Run opens a fresh SSH connection to xname and runs command, bounded by
// commandTimeout.
func (r *SSHRunner) Run(xname, command string) (string, error) {
	signer, err := loadSigner(r.PrivateKeyPath)
	if err != nil {
		return "", fmt.Errorf("loading private key: %w", err)
	}

	cfg := &ssh.ClientConfig{
		User:            r.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         commandTimeout,
	}
	addr := net.JoinHostPort(xname, strconv.Itoa(r.Port))
	client, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		return "", fmt.Errorf("dialing %s: %w", addr, err)
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("opening session on %s: %w", addr, err)
	}
	defer session.Close()

	var out bytes.Buffer
	session.Stdout = &out
	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()
	select {
	case err := <-done:
		if err != nil {
			return "", fmt.Errorf("running %q on %s: %w", command, addr, err)
		}
	case <-time.After(commandTimeout):
		return "", fmt.Errorf("running %q on %s: timed out after %s", command, addr, commandTimeout)
	}
	return strings.TrimSpace(out.String()), nil
}

// archCommand, toolchainCommand, and loadCommand are the three probes of
// §4.E's table.
const (
	archCommand      = "uname -i"
	toolchainCommand = "which podman"
	loadCommand      = "ls -d1 /tmp/* 2>/dev/null | grep -c /tmp/ims_"
)

// Metrics is the subset of internal/metrics a Prober reports probe
// outcomes through. It is an interface here so unit tests don't need a
// real Prometheus registry.
type Metrics interface {
	ObserveRemoteProbe(result string)
}

// noopMetrics satisfies Metrics when the caller doesn't wire one in.
type noopMetrics struct{}

func (noopMetrics) ObserveRemoteProbe(string) {}

// Prober runs the three §4.E probes against one node.
type Prober struct {
	runner Runner

	// Metrics is optional instrumentation invoked once per Probe call.
	// A nil Metrics is a silent no-op.
	Metrics Metrics
}

// NewProber builds a Prober over the given Runner.
func NewProber(runner Runner) *Prober {
	return &Prober{runner: runner}
}

func (p *Prober) metrics() Metrics {
	if p.Metrics == nil {
		return noopMetrics{}
	}
	return p.Metrics
}

// Probe runs all three commands against xname and computes the derived
// status fields, degrading to the sentinel values on a command's failure
// (§4.E: only SSH/arch/toolchain failures disqualify a node; load-count
// failure does not).
func (p *Prober) Probe(xname string) model.RemoteNodeStatus {
	status := model.NewRemoteNodeStatus(xname)
	defer func() {
		result := "unreachable"
		if status.SSHStatus == "reachable" {
			result = "ok"
		}
		p.metrics().ObserveRemoteProbe(result)
	}()

	archOut, err := p.runner.Run(xname, archCommand)
	if err != nil {
		status.SSHStatus = "unreachable"
		return status
	}
	status.SSHStatus = "reachable"

	switch {
	case strings.Contains(archOut, "aarch64"):
		status.NodeArch = string(model.ArchAarch64)
	case strings.Contains(archOut, "x86"):
		status.NodeArch = string(model.ArchX86_64)
	default:
		status.NodeArch = "unknown"
	}
	if status.NodeArch == "unknown" {
		return status
	}

	toolchainOut, err := p.runner.Run(xname, toolchainCommand)
	if err != nil || !strings.Contains(toolchainOut, "/usr/bin/podman") {
		status.PodmanStatus = "absent"
		return status
	}
	status.PodmanStatus = "present"
	status.AbleToRunJobs = true

	loadOut, err := p.runner.Run(xname, loadCommand)
	if err != nil {
		status.NumCurrentJobs = model.UnknownNumJobs
		return status
	}
	n, err := strconv.Atoi(strings.TrimSpace(loadOut))
	if err != nil {
		status.NumCurrentJobs = model.UnknownNumJobs
		return status
	}
	status.NumCurrentJobs = n
	return status
}
