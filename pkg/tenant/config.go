package tenant

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/geoserve/confgen/pkg/permissions"
	"github.com/geoserve/confgen/pkg/resource"
)

// ConfigFileBase is the tenant config file name without extension.
const ConfigFileBase = "tenantConfig"

// GeneratorConfig holds the tenant-level generator settings.
type GeneratorConfig struct {
	Tenant                 string          `json:"tenant" yaml:"tenant"`
	ConfigDBURL            string          `json:"config_db_url,omitempty" yaml:"config_db_url,omitempty"`
	ProjectMetadataDir     string          `json:"project_metadata_dir,omitempty" yaml:"project_metadata_dir,omitempty"`
	ValidateSchema         bool            `json:"validate_schema,omitempty" yaml:"validate_schema,omitempty"`
	Schedule               string          `json:"schedule,omitempty" yaml:"schedule,omitempty"`
	DefaultAllow           bool            `json:"default_allow" yaml:"default_allow"`
	InheritInfoPermissions bool            `json:"inherit_info_permissions,omitempty" yaml:"inherit_info_permissions,omitempty"`
	ForceReadOnlyDatasets  bool            `json:"force_readonly_datasets,omitempty" yaml:"force_readonly_datasets,omitempty"`
	IgnoreErrors           bool            `json:"ignore_errors,omitempty" yaml:"ignore_errors,omitempty"`
	CustomResourceTypes    []resource.Type `json:"custom_resource_types,omitempty" yaml:"custom_resource_types,omitempty"`
}

// DeclaredResource is a tenant-declared resource record in a service
// override block. Parent references another declared resource by name.
type DeclaredResource struct {
	Type   string `json:"type" yaml:"type"`
	Name   string `json:"name" yaml:"name"`
	Parent string `json:"parent,omitempty" yaml:"parent,omitempty"`
}

// DeclaredGrant is a tenant-declared permission record in a service
// override block.
type DeclaredGrant struct {
	Role string `json:"role" yaml:"role"`
	Type string `json:"type" yaml:"type"`
	Name string `json:"name" yaml:"name"`
}

// ServiceSpec declares one service to generate a config document for.
// Config is copied verbatim into the output document. When Resources or
// Permissions are set they fully replace the store-derived records for the
// service's resource types.
type ServiceSpec struct {
	Name            string                 `json:"name" yaml:"name"`
	GeneratorConfig map[string]interface{} `json:"generator_config,omitempty" yaml:"generator_config,omitempty"`
	Config          map[string]interface{} `json:"config" yaml:"config"`
	Resources       []DeclaredResource     `json:"resources,omitempty" yaml:"resources,omitempty"`
	Permissions     []DeclaredGrant        `json:"permissions,omitempty" yaml:"permissions,omitempty"`
}

// HasOverrides reports whether the spec declares resource or permission
// records bypassing the store.
func (s *ServiceSpec) HasOverrides() bool {
	return len(s.Resources) > 0 || len(s.Permissions) > 0
}

// Config is the parsed tenant configuration.
type Config struct {
	Generator GeneratorConfig `json:"config" yaml:"config"`
	Services  []ServiceSpec   `json:"services" yaml:"services"`
}

// Tenant returns the tenant name, defaulting to "default" as the original
// deployment convention.
func (c *Config) Tenant() string {
	if c.Generator.Tenant == "" {
		return "default"
	}
	return c.Generator.Tenant
}

// Policy assembles the generation policy from the generator config.
func (c *Config) Policy() permissions.Policy {
	return permissions.Policy{
		DefaultAllow:           c.Generator.DefaultAllow,
		InheritInfoPermissions: c.Generator.InheritInfoPermissions,
		ForceReadOnlyDatasets:  c.Generator.ForceReadOnlyDatasets,
		IgnoreErrors:           c.Generator.IgnoreErrors,
		CustomResourceTypes:    c.Generator.CustomResourceTypes,
	}
}

// Service returns the spec with the given name, or nil.
func (c *Config) Service(name string) *ServiceSpec {
	for i := range c.Services {
		if c.Services[i].Name == name {
			return &c.Services[i]
		}
	}
	return nil
}

// Validate checks structural constraints of the config. A service name
// appearing twice with override blocks is ambiguous and rejected.
func (c *Config) Validate() error {
	counts := make(map[string]int)
	overrides := make(map[string]bool)
	for i := range c.Services {
		s := &c.Services[i]
		if s.Name == "" {
			return fmt.Errorf("service %d has no name", i)
		}
		counts[s.Name]++
		if s.HasOverrides() {
			overrides[s.Name] = true
		}
	}
	for name, n := range counts {
		if n > 1 && overrides[name] {
			return fmt.Errorf("%w: service %q declared %d times",
				permissions.ErrAmbiguousOverride, name, n)
		}
	}
	return nil
}

// Load reads and parses a tenant config file. JSON files may contain
// comments and trailing commas; .yaml/.yml files are parsed as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tenant config: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse tenant config %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(jsonc.ToJSON(data), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse tenant config %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Locate finds the tenant config file under dir, preferring JSON over YAML.
func Locate(dir string) (string, error) {
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		path := filepath.Join(dir, ConfigFileBase+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no %s.{json,yaml} in %s", ConfigFileBase, dir)
}
