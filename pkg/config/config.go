// Package config defines the installer configuration consumed by the
// orchestrator and the CLI.
package config

import (
	"github.com/cyberedu/rangectl/pkg/common"
)

// Config is the root installer configuration.
type Config struct {
	Namespace string        `yaml:"namespace,omitempty" toml:"namespace,omitempty"`
	Node      string        `yaml:"node,omitempty" toml:"node,omitempty"`
	Domain    string        `yaml:"domain,omitempty" toml:"domain,omitempty"`
	IngressIP string        `yaml:"ingressIP,omitempty" toml:"ingressIP,omitempty"`
	Database  DatabaseSpec  `yaml:"database,omitempty" toml:"database,omitempty"`
	Storage   StorageSpec   `yaml:"storage,omitempty" toml:"storage,omitempty"`
	Tools     ToolsSpec     `yaml:"tools,omitempty" toml:"tools,omitempty"`
	Log       LogSpec       `yaml:"log,omitempty" toml:"log,omitempty"`
	Ingress   IngressSpec   `yaml:"ingress,omitempty" toml:"ingress,omitempty"`
	Certs     CertsSpec     `yaml:"certs,omitempty" toml:"certs,omitempty"`
	Instances InstancesSpec `yaml:"instances,omitempty" toml:"instances,omitempty"`
}

// DatabaseSpec configures the PostgreSQL install.
type DatabaseSpec struct {
	Name     string `yaml:"name,omitempty" toml:"name,omitempty"`
	User     string `yaml:"user,omitempty" toml:"user,omitempty"`
	Password string `yaml:"password,omitempty" toml:"password,omitempty"`
	// UseExisting skips in-cluster provisioning and runs credentials
	// verification and the schema migration against Host instead.
	UseExisting bool   `yaml:"useExisting,omitempty" toml:"useExisting,omitempty"`
	Host        string `yaml:"host,omitempty" toml:"host,omitempty"`
	Image       string `yaml:"image,omitempty" toml:"image,omitempty"`
	StorageSize string `yaml:"storageSize,omitempty" toml:"storageSize,omitempty"`
}

// StorageSpec configures the host-local fallback used when no storage class
// can satisfy a claim.
type StorageSpec struct {
	HostPathRoot string `yaml:"hostPathRoot,omitempty" toml:"hostPathRoot,omitempty"`
}

// ToolsSpec pins tool binaries and version floors.
type ToolsSpec struct {
	Kubectl           string `yaml:"kubectl,omitempty" toml:"kubectl,omitempty"`
	Helm              string `yaml:"helm,omitempty" toml:"helm,omitempty"`
	MinKubectlVersion string `yaml:"minKubectlVersion,omitempty" toml:"minKubectlVersion,omitempty"`
}

// LogSpec configures the file sink of the logger.
type LogSpec struct {
	File       string `yaml:"file,omitempty" toml:"file,omitempty"`
	FileOutput bool   `yaml:"fileOutput,omitempty" toml:"fileOutput,omitempty"`
	Verbose    bool   `yaml:"verbose,omitempty" toml:"verbose,omitempty"`
}

// IngressSpec configures the ingress-nginx helm release.
type IngressSpec struct {
	ChartRepo    string `yaml:"chartRepo,omitempty" toml:"chartRepo,omitempty"`
	ChartVersion string `yaml:"chartVersion,omitempty" toml:"chartVersion,omitempty"`
}

// CertsSpec configures TLS issuance.
type CertsSpec struct {
	Email        string `yaml:"email,omitempty" toml:"email,omitempty"`
	ChartRepo    string `yaml:"chartRepo,omitempty" toml:"chartRepo,omitempty"`
	ChartVersion string `yaml:"chartVersion,omitempty" toml:"chartVersion,omitempty"`
	Staging      bool   `yaml:"staging,omitempty" toml:"staging,omitempty"`
}

// InstancesSpec tunes the stuck-instance retry monitor.
type InstancesSpec struct {
	ScanLimit       int `yaml:"scanLimit,omitempty" toml:"scanLimit,omitempty"`
	IntervalSeconds int `yaml:"intervalSeconds,omitempty" toml:"intervalSeconds,omitempty"`
}

// SetDefaults fills zero fields with working defaults.
func SetDefaults(cfg *Config) {
	if cfg.Namespace == "" {
		cfg.Namespace = common.DefaultNamespace
	}
	if cfg.Database.Name == "" {
		cfg.Database.Name = "edu"
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "admin"
	}
	if cfg.Database.Image == "" {
		cfg.Database.Image = "postgres:15-alpine"
	}
	if cfg.Database.StorageSize == "" {
		cfg.Database.StorageSize = "2Gi"
	}
	if cfg.Storage.HostPathRoot == "" {
		cfg.Storage.HostPathRoot = "/var/lib/cyberange"
	}
	if cfg.Tools.Kubectl == "" {
		cfg.Tools.Kubectl = common.ToolKubectl
	}
	if cfg.Tools.Helm == "" {
		cfg.Tools.Helm = common.ToolHelm
	}
	if cfg.Tools.MinKubectlVersion == "" {
		cfg.Tools.MinKubectlVersion = "1.24.0"
	}
	if cfg.Log.File == "" {
		cfg.Log.File = "rangectl.log"
	}
	if cfg.Ingress.ChartRepo == "" {
		cfg.Ingress.ChartRepo = "https://kubernetes.github.io/ingress-nginx"
	}
	if cfg.Certs.ChartRepo == "" {
		cfg.Certs.ChartRepo = "https://charts.jetstack.io"
	}
	if cfg.Instances.ScanLimit <= 0 {
		cfg.Instances.ScanLimit = common.DefaultMonitorScanLimit
	}
	if cfg.Instances.IntervalSeconds <= 0 {
		cfg.Instances.IntervalSeconds = 60
	}
}
