// Package config loads the IMS server's environment-driven configuration
// into a single Options value, the way the teacher's server.Options groups
// flags into one struct passed down to every component at construction time.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Options holds every environment-sourced setting for cmd/ims-server. Each
// field documents the environment variable it's read from (§6).
type Options struct {
	// DataStorePath is HACK_DATA_STORE: the directory internal/store writes
	// its versioned JSON record files under.
	DataStorePath string

	// LogLevel is LOG_LEVEL ("debug", "info", "warn", "error").
	LogLevel string

	// S3 holds the object-store gateway's connection settings.
	S3 S3Options

	// MaxImageManifestSizeBytes is MAX_IMAGE_MANIFEST_SIZE_BYTES, the cap
	// the manifest validator enforces on HEAD'd manifest objects (§4.C).
	MaxImageManifestSizeBytes int64

	// JobTemplatePath is IMS_JOB_TEMPLATE_PATH, the root directory
	// internal/clustersynth loads create/customize templates from.
	JobTemplatePath string

	// DefaultJobNamespace is DEFAULT_IMS_JOB_NAMESPACE.
	DefaultJobNamespace string

	// DefaultImageSizeGiB is DEFAULT_IMS_IMAGE_SIZE, the default PVC size
	// for a job's build environment.
	DefaultImageSizeGiB int

	// DefaultJobMemSizeGiB is DEFAULT_IMS_JOB_MEM_SIZE.
	DefaultJobMemSizeGiB int

	// JobEnableDKMS is JOB_ENABLE_DKMS, the require_dkms value a customize
	// job gets when its request doesn't set one (create jobs inherit the
	// recipe's require_dkms instead).
	JobEnableDKMS bool

	// JobKataRuntime is JOB_KATA_RUNTIME, the runtimeClassName used for
	// sandboxed (non-aarch64) job pods.
	JobKataRuntime string

	// JobAarch64Runtime is JOB_AARCH64_RUNTIME, the runtimeClassName used
	// for aarch64 job pods.
	JobAarch64Runtime string

	// CustomerAccessNetworkAccessPool is
	// JOB_CUSTOMER_ACCESS_NETWORK_ACCESS_POOL.
	CustomerAccessNetworkAccessPool string

	// CustomerAccessSubnetName is JOB_CUSTOMER_ACCESS_SUBNET_NAME.
	CustomerAccessSubnetName string

	// CustomerAccessNetworkDomain is JOB_CUSTOMER_ACCESS_NETWORK_DOMAIN.
	CustomerAccessNetworkDomain string
}

// S3Options groups the object-store gateway's connection and timeout
// settings, read from the S3_* variables (§6).
type S3Options struct {
	Endpoint          string
	AccessKey         string
	SecretKey         string
	SSLValidate       bool
	STSEndpoint       string
	STSAccessKey      string
	STSSecretKey      string
	IMSBucket         string
	BootImagesBucket  string
	URLExpiration     time.Duration
	ConnectTimeout    time.Duration
	ReadTimeout       time.Duration
}

// Load reads Options from the process environment, applying the same
// defaults the original service shipped (§6). It returns an error only
// when a variable is present but unparsable; missing variables fall back
// to their default silently, matching the teacher's tolerant flag parsing.
func Load() (Options, error) {
	o := Options{
		DataStorePath:                   getEnv("HACK_DATA_STORE", "/data"),
		LogLevel:                        getEnv("LOG_LEVEL", "info"),
		MaxImageManifestSizeBytes:       1 << 20,
		JobTemplatePath:                 getEnv("IMS_JOB_TEMPLATE_PATH", "/mnt/ims-templates"),
		DefaultJobNamespace:             getEnv("DEFAULT_IMS_JOB_NAMESPACE", "ims"),
		DefaultImageSizeGiB:             30,
		DefaultJobMemSizeGiB:            768,
		JobEnableDKMS:                   false,
		JobKataRuntime:                  getEnv("JOB_KATA_RUNTIME", "kata-qemu"),
		JobAarch64Runtime:               getEnv("JOB_AARCH64_RUNTIME", ""),
		CustomerAccessNetworkAccessPool: getEnv("JOB_CUSTOMER_ACCESS_NETWORK_ACCESS_POOL", "customer-access"),
		CustomerAccessSubnetName:        getEnv("JOB_CUSTOMER_ACCESS_SUBNET_NAME", "bootstrap_dhcp"),
		CustomerAccessNetworkDomain:     getEnv("JOB_CUSTOMER_ACCESS_NETWORK_DOMAIN", "can.local"),
		S3: S3Options{
			Endpoint:         getEnv("S3_ENDPOINT", ""),
			AccessKey:        getEnv("S3_ACCESS_KEY", ""),
			SecretKey:        getEnv("S3_SECRET_KEY", ""),
			STSEndpoint:      getEnv("S3_STS_ENDPOINT", ""),
			STSAccessKey:     getEnv("S3_STS_ACCESS_KEY", ""),
			STSSecretKey:     getEnv("S3_STS_SECRET_KEY", ""),
			IMSBucket:        getEnv("S3_IMS_BUCKET", "ims"),
			BootImagesBucket: getEnv("S3_BOOT_IMAGES_BUCKET", "boot-images"),
			URLExpiration:    10 * time.Minute,
			ConnectTimeout:   5 * time.Second,
			ReadTimeout:      10 * time.Second,
		},
	}

	var err error
	if o.MaxImageManifestSizeBytes, err = getEnvInt64("MAX_IMAGE_MANIFEST_SIZE_BYTES", o.MaxImageManifestSizeBytes); err != nil {
		return Options{}, err
	}
	if o.DefaultImageSizeGiB, err = getEnvInt("DEFAULT_IMS_IMAGE_SIZE", o.DefaultImageSizeGiB); err != nil {
		return Options{}, err
	}
	if o.DefaultJobMemSizeGiB, err = getEnvInt("DEFAULT_IMS_JOB_MEM_SIZE", o.DefaultJobMemSizeGiB); err != nil {
		return Options{}, err
	}
	if o.JobEnableDKMS, err = getEnvBool("JOB_ENABLE_DKMS", o.JobEnableDKMS); err != nil {
		return Options{}, err
	}
	if o.S3.SSLValidate, err = getEnvBool("S3_SSL_VALIDATE", true); err != nil {
		return Options{}, err
	}
	if o.S3.URLExpiration, err = getEnvSeconds("S3_URL_EXPIRATION", o.S3.URLExpiration); err != nil {
		return Options{}, err
	}
	if o.S3.ConnectTimeout, err = getEnvSeconds("S3_CONNECT_TIMEOUT", o.S3.ConnectTimeout); err != nil {
		return Options{}, err
	}
	if o.S3.ReadTimeout, err = getEnvSeconds("S3_READ_TIMEOUT", o.S3.ReadTimeout); err != nil {
		return Options{}, err
	}

	return o, nil
}

func getEnv(name, def string) string {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		return v
	}
	return def
}

func getEnvInt(name string, def int) (int, error) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return n, nil
}

func getEnvInt64(name string, def int64) (int64, error) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return n, nil
}

func getEnvBool(name string, def bool) (bool, error) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", name, err)
	}
	return b, nil
}

func getEnvSeconds(name string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return time.Duration(n) * time.Second, nil
}
