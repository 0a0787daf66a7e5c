package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/lakeadmin/internal/flagx"
	"github.com/dmitrijs2005/lakeadmin/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations
// accept "10s"-style strings or integer nanoseconds. Only fields present
// (non-zero) in the file override the current values.
type JsonConfig struct {
	HTTPAddr    string `json:"http_addr"`
	GRPCAddr    string `json:"grpc_addr"`
	MetricsPath string `json:"metrics_path"`
	LogLevel    string `json:"log_level"`

	AdminTokenSecret   string         `json:"admin_token_secret"`
	AdminTokenValidity timex.Duration `json:"admin_token_validity"`

	PublicCredentialLookup *bool `json:"public_credential_lookup"`

	RegistryEndpoint string `json:"registry_endpoint"`
	AdminAccessKey   string `json:"admin_access_key"`
	AdminSecretKey   string `json:"admin_secret_key"`

	StoreBackend   string `json:"store_backend"`
	DatabaseDSN    string `json:"database_dsn"`
	S3BaseEndpoint string `json:"s3_base_endpoint"`
	S3Region       string `json:"s3_region"`
	S3Bucket       string `json:"s3_bucket"`

	KafkaBrokers []string `json:"kafka_brokers"`
	EventTopic   string   `json:"event_topic"`
	TenantTopic  string   `json:"tenant_topic"`
	EventSender  string   `json:"event_sender"`

	KubeConfigPath string `json:"kube_config_path"`
	KubeNamespace  string `json:"kube_namespace"`
	GatewayImage   string `json:"gateway_image"`
	BackendURL     string `json:"backend_url"`

	BackendTimeout        timex.Duration `json:"backend_timeout"`
	ActivationConcurrency int            `json:"activation_concurrency"`
	ActivateOnStartup     *bool          `json:"activate_on_startup"`
	ActivateOnCreate      *bool          `json:"activate_on_create"`
}

// parseJson loads the file named by -c/-config into config. Without the flag
// nothing happens. An unreadable file or invalid JSON panics, since the
// process cannot start with a configuration it was told to use.
func parseJson(config *Config) {

	jsonConfigFile := flagx.ConfigFileFlag()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.GRPCAddr, c.GRPCAddr)
	setString(&config.MetricsPath, c.MetricsPath)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.AdminTokenSecret, c.AdminTokenSecret)
	if c.AdminTokenValidity.Duration > 0 {
		config.AdminTokenValidity = c.AdminTokenValidity.Duration
	}
	setString(&config.RegistryEndpoint, c.RegistryEndpoint)
	setString(&config.AdminAccessKey, c.AdminAccessKey)
	setString(&config.AdminSecretKey, c.AdminSecretKey)
	setString(&config.StoreBackend, c.StoreBackend)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3Bucket, c.S3Bucket)
	if len(c.KafkaBrokers) > 0 {
		config.KafkaBrokers = c.KafkaBrokers
	}
	setString(&config.EventTopic, c.EventTopic)
	setString(&config.TenantTopic, c.TenantTopic)
	setString(&config.EventSender, c.EventSender)
	setString(&config.KubeConfigPath, c.KubeConfigPath)
	setString(&config.KubeNamespace, c.KubeNamespace)
	setString(&config.GatewayImage, c.GatewayImage)
	setString(&config.BackendURL, c.BackendURL)
	if c.BackendTimeout.Duration > 0 {
		config.BackendTimeout = c.BackendTimeout.Duration
	}
	if c.ActivationConcurrency > 0 {
		config.ActivationConcurrency = c.ActivationConcurrency
	}
	if c.ActivateOnStartup != nil {
		config.ActivateOnStartup = *c.ActivateOnStartup
	}
	if c.PublicCredentialLookup != nil {
		config.PublicCredentialLookup = *c.PublicCredentialLookup
	}
	if c.ActivateOnCreate != nil {
		config.ActivateOnCreate = *c.ActivateOnCreate
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
