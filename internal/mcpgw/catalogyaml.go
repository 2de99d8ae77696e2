package mcpgw

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlCatalogFile mirrors catalogFile but for the optional YAML on-disk
// representation (SPEC_FULL.md §2 domain stack: the JSON catalog from
// spec.md §6 remains canonical; YAML is accepted as an alternate
// representation so the round-trip property in §8.1 can be exercised
// against either encoding).
type yamlCatalogFile struct {
	MCPServers map[string]yamlCatalogEntry `yaml:"mcpServers"`
}

type yamlCatalogEntry struct {
	Type           string            `yaml:"type"`
	Enabled        *bool             `yaml:"enabled"`
	TimeoutSeconds int               `yaml:"timeout_seconds"`
	Description    string            `yaml:"description"`
	Command        string            `yaml:"command"`
	Args           []string          `yaml:"args"`
	Env            map[string]string `yaml:"env"`
	URL            string            `yaml:"url"`
	Auth           *yamlCatalogAuth  `yaml:"auth"`
}

type yamlCatalogAuth struct {
	Type       string `yaml:"type"`
	Token      string `yaml:"token"`
	HeaderName string `yaml:"header_name"`
}

// LoadCatalogYAML reads a YAML catalog at path and parses it with the same
// defaulting and validation rules as LoadCatalog.
func LoadCatalogYAML(path, basePath string, defaultTimeout int) (map[string]*ServerParams, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errInvalidConfig("", fmt.Sprintf("read yaml catalog %q", path), err)
	}
	return ParseCatalogYAML(data, basePath, defaultTimeout)
}

// ParseCatalogYAML parses YAML catalog bytes already read into memory by
// converting through the JSON catalogEntry shape, so defaulting and
// validation logic lives in exactly one place (buildParams in params.go).
func ParseCatalogYAML(data []byte, basePath string, defaultTimeout int) (map[string]*ServerParams, error) {
	var file yamlCatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errInvalidConfig("", "parse yaml catalog", err)
	}
	if defaultTimeout <= 0 {
		defaultTimeout = defaultTimeoutSeconds
	}

	out := make(map[string]*ServerParams, len(file.MCPServers))
	for name, y := range file.MCPServers {
		entry := catalogEntry{
			Type:           y.Type,
			Enabled:        y.Enabled,
			TimeoutSeconds: y.TimeoutSeconds,
			Description:    y.Description,
			Command:        y.Command,
			Args:           y.Args,
			Env:            y.Env,
			URL:            y.URL,
		}
		if y.Auth != nil {
			entry.Auth = &catalogAuth{Type: y.Auth.Type, Token: y.Auth.Token, HeaderName: y.Auth.HeaderName}
		}
		p, err := buildParams(name, entry, basePath, defaultTimeout)
		if err != nil {
			return nil, err
		}
		out[name] = p
	}
	return out, nil
}

// SerializeYAML renders params back into the YAML catalog shape, the YAML
// counterpart of Serialize in params.go.
func SerializeYAML(params map[string]*ServerParams) ([]byte, error) {
	file := yamlCatalogFile{MCPServers: make(map[string]yamlCatalogEntry, len(params))}
	for name, p := range params {
		entry := yamlCatalogEntry{
			Type:           string(p.Transport),
			Enabled:        &p.Enabled,
			TimeoutSeconds: p.TimeoutSeconds,
			Description:    p.Description,
			Command:        p.Command,
			Args:           p.Args,
			Env:            p.Env,
			URL:            p.URL,
		}
		if p.Auth != nil {
			entry.Auth = &yamlCatalogAuth{
				Type:       authJSONType(p.Auth.Scheme),
				Token:      p.Auth.Token,
				HeaderName: p.Auth.HeaderName,
			}
		}
		file.MCPServers[name] = entry
	}
	return yaml.Marshal(file)
}
