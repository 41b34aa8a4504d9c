package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/cyberedu/rangectl/pkg/errors/validation"
)

// Load reads an installer configuration file, applies defaults and
// validates it. YAML and TOML are both accepted; the format is detected
// from the file extension.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return nil, errors.New("configuration file path cannot be empty")
	}

	raw, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config file '%s'", configPath)
	}

	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".toml":
		return LoadFromTOML(raw)
	default:
		return LoadFromBytes(raw)
	}
}

// LoadFromBytes unmarshals YAML content, applies defaults and validates.
func LoadFromBytes(yamlBytes []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(yamlBytes, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal yaml config")
	}
	return finish(&cfg)
}

// LoadFromTOML unmarshals TOML content, applies defaults and validates.
func LoadFromTOML(tomlBytes []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(tomlBytes, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal toml config")
	}
	return finish(&cfg)
}

func finish(cfg *Config) (*Config, error) {
	SetDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the orchestrator cannot act on. All
// problems are reported at once rather than one per run.
func Validate(cfg *Config) error {
	verrs := &validation.ValidationErrors{}
	if cfg.Namespace == "" {
		verrs.AddError("namespace", "must not be empty")
	}
	if cfg.Database.Name == "" {
		verrs.AddError("database.name", "must not be empty")
	}
	if cfg.Database.User == "" {
		verrs.AddError("database.user", "must not be empty")
	}
	if cfg.Database.UseExisting && cfg.Database.Host == "" {
		verrs.AddError("database.host", "required when useExisting is set")
	}
	if !strings.HasPrefix(cfg.Storage.HostPathRoot, "/") {
		verrs.AddError("storage.hostPathRoot", fmt.Sprintf("must be an absolute path, got '%s'", cfg.Storage.HostPathRoot))
	}
	if cfg.Instances.ScanLimit < 1 {
		verrs.AddError("instances.scanLimit", "must be at least 1")
	}
	if cfg.Domain != "" && !validation.IsValidDomain(cfg.Domain) {
		verrs.AddError("domain", fmt.Sprintf("'%s' is not a valid DNS name", cfg.Domain))
	}
	if cfg.IngressIP != "" && !validation.IsValidIP(cfg.IngressIP) {
		verrs.AddError("ingressIP", fmt.Sprintf("'%s' is not a valid IP address", cfg.IngressIP))
	}
	if verrs.HasErrors() {
		return errors.Errorf("invalid configuration:\n%s", verrs.Error())
	}
	return nil
}
