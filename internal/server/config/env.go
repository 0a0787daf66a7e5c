package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables. The first four keep the names used by existing
// deployments of the datalake stack.
const (
	envAdminAccessKey   = "ADMIN_AK"
	envAdminSecretKey   = "ADMIN_SK"
	envRegistryEndpoint = "CEPH_RGW_URL"
	envKafkaBrokers     = "KAFKA_EP"

	envAdminTokenSecret = "LAKEADMIN_TOKEN_SECRET"
	envPublicCreds      = "LAKEADMIN_PUBLIC_CREDENTIALS"
	envStoreBackend     = "LAKEADMIN_STORE_BACKEND"
	envDatabaseDSN      = "LAKEADMIN_DATABASE_DSN"
	envS3Bucket         = "LAKEADMIN_S3_BUCKET"
	envKubeConfig       = "LAKEADMIN_KUBECONFIG"
	envKubeNamespace    = "LAKEADMIN_NAMESPACE"
	envGatewayImage     = "LAKEADMIN_GATEWAY_IMAGE"
	envBackendTimeout   = "LAKEADMIN_BACKEND_TIMEOUT"
	envLogLevel         = "LAKEADMIN_LOG_LEVEL"
)

// parseEnv overlays values from environment variables that are set and
// non-empty. Malformed durations are ignored.
func parseEnv(config *Config) {
	setString(&config.AdminAccessKey, os.Getenv(envAdminAccessKey))
	setString(&config.AdminSecretKey, os.Getenv(envAdminSecretKey))
	setString(&config.RegistryEndpoint, os.Getenv(envRegistryEndpoint))
	if v := os.Getenv(envKafkaBrokers); v != "" {
		config.KafkaBrokers = splitList(v)
	}
	setString(&config.AdminTokenSecret, os.Getenv(envAdminTokenSecret))
	if v, err := strconv.ParseBool(os.Getenv(envPublicCreds)); err == nil {
		config.PublicCredentialLookup = v
	}
	setString(&config.StoreBackend, os.Getenv(envStoreBackend))
	setString(&config.DatabaseDSN, os.Getenv(envDatabaseDSN))
	setString(&config.S3Bucket, os.Getenv(envS3Bucket))
	setString(&config.KubeConfigPath, os.Getenv(envKubeConfig))
	setString(&config.KubeNamespace, os.Getenv(envKubeNamespace))
	setString(&config.GatewayImage, os.Getenv(envGatewayImage))
	setString(&config.LogLevel, os.Getenv(envLogLevel))
	if v := os.Getenv(envBackendTimeout); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			config.BackendTimeout = d
		}
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

