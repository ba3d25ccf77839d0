// Copyright Contributors to the Cray-HPE IMS project

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/Cray-HPE/ims-sub000/internal/clustersynth"
	"github.com/Cray-HPE/ims-sub000/internal/config"
	"github.com/Cray-HPE/ims-sub000/internal/httpapi"
	"github.com/Cray-HPE/ims-sub000/internal/jobcontroller"
	"github.com/Cray-HPE/ims-sub000/internal/keyprovisioner"
	"github.com/Cray-HPE/ims-sub000/internal/lifecycle"
	"github.com/Cray-HPE/ims-sub000/internal/logging"
	"github.com/Cray-HPE/ims-sub000/internal/manifest"
	"github.com/Cray-HPE/ims-sub000/internal/metrics"
	"github.com/Cray-HPE/ims-sub000/internal/model"
	"github.com/Cray-HPE/ims-sub000/internal/objectstore"
	"github.com/Cray-HPE/ims-sub000/internal/remotenode"
	"github.com/Cray-HPE/ims-sub000/internal/store"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the IMS HTTP API server",
	Long: `Start the IMS HTTP API server, exposing the v2/v3 REST routes over
the record store, object store, and cluster workload synthesizer.`,
	RunE: runServe,
}

var (
	serveAddress         string
	serveVaultAddr       string
	serveVaultTransitKey string
	serveVaultRole       string
	serveSSHUser         string
	serveSSHPort         int
	servePrivateKeyPath  string
)

func init() {
	serveCmd.Flags().StringVar(&serveAddress, "address", ":8080",
		"The address the server binds to")
	serveCmd.Flags().StringVar(&serveVaultAddr, "vault-address", "http://cray-vault.vault:8200",
		"Base URL of the signing-key transit engine")
	serveCmd.Flags().StringVar(&serveVaultTransitKey, "vault-transit-key", "ecdsa-p384-compute-imsssh-key",
		"Transit engine key name used for the remote-node CA keypair")
	serveCmd.Flags().StringVar(&serveVaultRole, "vault-role", "ssh_user_certs_compute",
		"Transit engine role used to sign the remote-node CA certificate")
	serveCmd.Flags().StringVar(&serveSSHUser, "remote-node-ssh-user", "root",
		"SSH user used to probe and drive remote build nodes")
	serveCmd.Flags().IntVar(&serveSSHPort, "remote-node-ssh-port", 22,
		"SSH port used to probe and drive remote build nodes")
	serveCmd.Flags().StringVar(&servePrivateKeyPath, "signing-key-path", "/etc/ims/keys/private_key",
		"Local path the signing-key provisioner's private key is mounted at")
}

// scheme is the runtime scheme for the cluster client, covering the core
// types and CRDs clustersynth and keyprovisioner manage.
var scheme = runtime.NewScheme()

func init() {
	utilruntime.Must(corev1.AddToScheme(scheme))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	log := logging.New(cfg.LogLevel).WithName("ims-server")
	ctrl.SetLogger(log)

	restCfg, err := ctrl.GetConfig()
	if err != nil {
		return fmt.Errorf("getting kubeconfig: %w", err)
	}
	k8sClient, err := client.New(restCfg, client.Options{Scheme: scheme})
	if err != nil {
		return fmt.Errorf("building kubernetes client: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provisioner := keyprovisioner.New(k8sClient, keyprovisioner.Options{
		VaultAddr:  serveVaultAddr,
		TransitKey: serveVaultTransitKey,
		Role:       serveVaultRole,
		Namespaces: []string{"services", cfg.DefaultJobNamespace},
	}, log)
	if err := provisioner.Provision(ctx); err != nil {
		log.Error(err, "signing key provisioning failed, continuing without remote-node capability")
	}

	gateway, err := objectstore.NewS3Gateway(ctx, cfg.S3)
	if err != nil {
		return fmt.Errorf("building object store gateway: %w", err)
	}

	jobs, err := store.Open[model.Job](cfg.DataStorePath+"/v2.2_jobs.json", log, func(j model.Job) string { return j.ID })
	if err != nil {
		return fmt.Errorf("opening jobs store: %w", err)
	}
	recipesLive, err := store.Open[model.Recipe](cfg.DataStorePath+"/v2.2_recipes.json", log, func(r model.Recipe) string { return r.ID })
	if err != nil {
		return fmt.Errorf("opening recipes store: %w", err)
	}
	recipesDeleted, err := store.Open[model.DeletedRecipe](cfg.DataStorePath+"/v3.1_deleted_recipes.json", log, func(r model.DeletedRecipe) string { return r.ID })
	if err != nil {
		return fmt.Errorf("opening deleted recipes store: %w", err)
	}
	imagesLive, err := store.Open[model.Image](cfg.DataStorePath+"/v2.2_images.json", log, func(i model.Image) string { return i.ID })
	if err != nil {
		return fmt.Errorf("opening images store: %w", err)
	}
	imagesDeleted, err := store.Open[model.DeletedImage](cfg.DataStorePath+"/v3.1_deleted_images.json", log, func(i model.DeletedImage) string { return i.ID })
	if err != nil {
		return fmt.Errorf("opening deleted images store: %w", err)
	}
	publicKeysLive, err := store.Open[model.PublicKey](cfg.DataStorePath+"/v2.2_public_keys.json", log, func(p model.PublicKey) string { return p.ID })
	if err != nil {
		return fmt.Errorf("opening public keys store: %w", err)
	}
	publicKeysDeleted, err := store.Open[model.DeletedPublicKey](cfg.DataStorePath+"/v3.1_deleted_public_keys.json", log, func(p model.DeletedPublicKey) string { return p.ID })
	if err != nil {
		return fmt.Errorf("opening deleted public keys store: %w", err)
	}
	remoteNodes, err := store.Open[model.RemoteBuildNode](cfg.DataStorePath+"/v3.1_remote_build_nodes.json", log, func(n model.RemoteBuildNode) string { return n.XName })
	if err != nil {
		return fmt.Errorf("opening remote build nodes store: %w", err)
	}

	validator := manifest.New(gateway, cfg.MaxImageManifestSizeBytes)
	lc := lifecycle.New(gateway, validator, log)
	templates := clustersynth.NewTemplateLoader(cfg.JobTemplatePath)
	synth := clustersynth.New(k8sClient, templates, "services")

	m := metrics.New()

	runner, err := remotenode.NewSSHRunner(servePrivateKeyPath, serveSSHUser, serveSSHPort)
	var prober *remotenode.Prober
	if err != nil {
		log.Error(err, "remote build node ssh identity unavailable, remote placement disabled")
		prober = remotenode.NewProber(unreachableRunner{})
	} else {
		prober = remotenode.NewProber(runner)
	}
	prober.Metrics = m
	scheduler := remotenode.NewScheduler(prober)

	controller := &jobcontroller.Controller{
		Jobs:        jobs,
		Recipes:     recipesLive,
		Images:      imagesLive,
		PublicKeys:  publicKeysLive,
		RemoteNodes: remoteNodes,
		Gateway:     gateway,
		Validator:   validator,
		Scheduler:   scheduler,
		Synth:       synth,
		Cfg:         cfg,
		Log:         log,
		Metrics:     m,
	}

	srv := httpapi.New(httpapi.Deps{
		PublicKeys:  store.NewRegistry(publicKeysLive, publicKeysDeleted),
		Recipes:     store.NewRegistry(recipesLive, recipesDeleted),
		Images:      store.NewRegistry(imagesLive, imagesDeleted),
		RemoteNodes: remoteNodes,
		Jobs:        controller,
		Lifecycle:   lc,
		Validator:   validator,
		Scheduler:   scheduler,
		Prober:      prober,
		Gateway:     gateway,
		Metrics:     m.Handler(),
		Ready: func(ctx context.Context) error {
			var ns corev1.NamespaceList
			return k8sClient.List(ctx, &ns, client.Limit(1))
		},
		Log: log,
	})

	httpServer := &http.Server{
		Addr:              serveAddress,
		Handler:           srv.Router(),
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	errChan := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", "address", serveAddress)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

// unreachableRunner stands in for a remote-node Runner when the signing
// key's private half isn't available locally, so the scheduler degrades
// to "no remote nodes" instead of probing with no credential (§4.I).
type unreachableRunner struct{}

func (unreachableRunner) Run(string, string) (string, error) {
	return "", fmt.Errorf("remote build node ssh identity unavailable")
}
