package config

import (
	"flag"
	"os"
	"strings"

	"github.com/dmitrijs2005/lakeadmin/internal/flagx"
)

var (
	valueFlags = []string{
		"-a", "-g", "-s", "-r", "-ak", "-sk", "-store", "-d", "-e", "-b",
		"-k", "-kubeconfig", "-n", "-image", "-backend", "-t", "-w", "-log-level",
	}
	boolFlags = []string{"-activate-on-startup", "-activate-on-create", "-public-credentials"}
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-a string          HTTP API bind address (e.g. ":8080")
//	-g string          gRPC health bind address
//	-s string          admin token HMAC secret
//	-r string          Ceph RGW endpoint (registry and default S3 endpoint)
//	-ak / -sk string   RGW admin access/secret key
//	-store string      credential store backend: s3 | postgres
//	-d string          PostgreSQL DSN
//	-e string          S3 base endpoint
//	-b string          S3 bucket holding the document collections
//	-k string          comma-separated Kafka brokers
//	-kubeconfig string kubeconfig path (empty: in-cluster)
//	-n string          namespace for gateway deployments
//	-image string      gateway image
//	-backend string    backend URL gateways proxy to
//	-t duration        bound on every external call (e.g. 10s)
//	-w int             concurrent tenant activations
//	-log-level string  debug | info | warn | error
//	-activate-on-startup, -activate-on-create
//	-public-credentials  credential lookup without a token (gateways send none)
//
// os.Args is filtered with flagx.FilterArgs first so the -c/-config flag
// handled by the JSON loader does not trip this flag set.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], valueFlags, boolFlags...)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run the HTTP API")
	fs.StringVar(&config.GRPCAddr, "g", config.GRPCAddr, "address and port to run the gRPC health endpoint")
	fs.StringVar(&config.AdminTokenSecret, "s", config.AdminTokenSecret, "admin token secret")
	fs.StringVar(&config.RegistryEndpoint, "r", config.RegistryEndpoint, "Ceph RGW endpoint")
	fs.StringVar(&config.AdminAccessKey, "ak", config.AdminAccessKey, "RGW admin access key")
	fs.StringVar(&config.AdminSecretKey, "sk", config.AdminSecretKey, "RGW admin secret key")
	fs.StringVar(&config.StoreBackend, "store", config.StoreBackend, "credential store backend (s3|postgres)")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	brokers := fs.String("k", strings.Join(config.KafkaBrokers, ","), "Kafka brokers, comma separated")
	fs.StringVar(&config.KubeConfigPath, "kubeconfig", config.KubeConfigPath, "kubeconfig path")
	fs.StringVar(&config.KubeNamespace, "n", config.KubeNamespace, "gateway namespace")
	fs.StringVar(&config.GatewayImage, "image", config.GatewayImage, "gateway image")
	fs.StringVar(&config.BackendURL, "backend", config.BackendURL, "gateway backend URL")
	fs.DurationVar(&config.BackendTimeout, "t", config.BackendTimeout, "external call timeout")
	fs.IntVar(&config.ActivationConcurrency, "w", config.ActivationConcurrency, "concurrent tenant activations")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level")
	fs.BoolVar(&config.ActivateOnStartup, "activate-on-startup", config.ActivateOnStartup, "activate every tenant gateway at startup")
	fs.BoolVar(&config.ActivateOnCreate, "activate-on-create", config.ActivateOnCreate, "activate the gateway of every new tenant")
	fs.BoolVar(&config.PublicCredentialLookup, "public-credentials", config.PublicCredentialLookup,
		"serve credential lookups without a token; gateways that resolve keys through the API send none")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.KafkaBrokers = splitList(*brokers)
}
