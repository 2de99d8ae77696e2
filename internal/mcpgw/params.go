package mcpgw

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Transport identifies which driver a ServerParams entry uses.
type Transport string

const (
	TransportStdio Transport = "stdio"
	TransportHTTP  Transport = "http"
)

// AuthScheme identifies how an http ServerParams authenticates to its peer.
type AuthScheme string

const (
	AuthBearer AuthScheme = "bearer"
	AuthAPIKey AuthScheme = "apiKey"
)

// Auth describes the optional authentication block of an http server entry.
type Auth struct {
	Scheme     AuthScheme
	Token      string
	HeaderName string // apiKey only; defaults to "X-API-Key"
}

// ServerParams is the immutable, validated configuration for one catalog
// entry. Once constructed by the loader it never changes; Manager.Reload
// re-dials with the same ServerParams and does not re-read the catalog.
type ServerParams struct {
	Name           string
	Transport      Transport
	Enabled        bool
	TimeoutSeconds int
	Description    string

	// stdio only
	Command string
	Args    []string
	Env     map[string]string

	// http only
	URL  string
	Auth *Auth
}

// defaultTimeoutSeconds is used whenever a catalog entry omits
// timeout_seconds and the caller does not supply its own manager default.
const defaultTimeoutSeconds = 60

// catalogFile mirrors the top-level JSON document described in spec.md §6.
type catalogFile struct {
	MCPServers map[string]catalogEntry `json:"mcpServers"`
}

type catalogEntry struct {
	Type           string            `json:"type"`
	Enabled        *bool             `json:"enabled"`
	TimeoutSeconds int               `json:"timeout_seconds"`
	Description    string            `json:"description"`
	Command        string            `json:"command"`
	Args           []string          `json:"args"`
	Env            map[string]string `json:"env"`
	URL            string            `json:"url"`
	Auth           *catalogAuth      `json:"auth"`
}

type catalogAuth struct {
	Type       string `json:"type"`
	Token      string `json:"token"`
	HeaderName string `json:"header_name"`
}

// LoadCatalog reads and parses the JSON catalog at path, applying defaults
// and validating invariants. It performs no I/O beyond reading path and
// never mutates global state — callers are free to discard the result
// without side effects.
//
// basePath is substituted for the {BASE_PATH} placeholder in stdio env
// values; defaultTimeout is used for entries that omit timeout_seconds.
func LoadCatalog(path, basePath string, defaultTimeout int) (map[string]*ServerParams, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errInvalidConfig("", fmt.Sprintf("read catalog %q", path), err)
	}
	return ParseCatalog(data, basePath, defaultTimeout)
}

// ParseCatalog parses catalog JSON already read into memory. Exposed
// separately from LoadCatalog so tests (and the YAML sibling loader) don't
// need a filesystem round-trip.
func ParseCatalog(data []byte, basePath string, defaultTimeout int) (map[string]*ServerParams, error) {
	var file catalogFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, errInvalidConfig("", "parse catalog", err)
	}
	if defaultTimeout <= 0 {
		defaultTimeout = defaultTimeoutSeconds
	}

	out := make(map[string]*ServerParams, len(file.MCPServers))
	for name, entry := range file.MCPServers {
		p, err := buildParams(name, entry, basePath, defaultTimeout)
		if err != nil {
			return nil, err
		}
		out[name] = p
	}
	return out, nil
}

func buildParams(name string, entry catalogEntry, basePath string, defaultTimeout int) (*ServerParams, error) {
	transport := Transport(entry.Type)
	if transport == "" {
		// Backward-compatible default: only infer stdio when a command is present.
		if strings.TrimSpace(entry.Command) != "" {
			transport = TransportStdio
		} else {
			return nil, errInvalidConfig(name, "missing transport and no command to infer stdio from", nil)
		}
	}
	if transport != TransportStdio && transport != TransportHTTP {
		return nil, errInvalidConfig(name, fmt.Sprintf("unknown transport %q", transport), nil)
	}

	enabled := true
	if entry.Enabled != nil {
		enabled = *entry.Enabled
	}

	timeout := entry.TimeoutSeconds
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	p := &ServerParams{
		Name:           name,
		Transport:      transport,
		Enabled:        enabled,
		TimeoutSeconds: timeout,
		Description:    entry.Description,
	}

	switch transport {
	case TransportStdio:
		cmd := strings.TrimSpace(entry.Command)
		if cmd == "" {
			return nil, errInvalidConfig(name, "stdio server requires a non-empty command", nil)
		}
		p.Command = entry.Command
		p.Args = append([]string(nil), entry.Args...)
		p.Env = expandEnv(entry.Env, basePath)

	case TransportHTTP:
		if strings.TrimSpace(entry.URL) == "" {
			return nil, errInvalidConfig(name, "http server requires a url", nil)
		}
		parsed, err := url.Parse(entry.URL)
		if err != nil || !parsed.IsAbs() {
			return nil, errInvalidConfig(name, fmt.Sprintf("url %q is not an absolute URI", entry.URL), err)
		}
		p.URL = entry.URL
		if entry.Auth != nil {
			a, err := buildAuth(name, entry.Auth)
			if err != nil {
				return nil, err
			}
			p.Auth = a
		}
	}

	return p, nil
}

func buildAuth(server string, a *catalogAuth) (*Auth, error) {
	var scheme AuthScheme
	switch a.Type {
	case "bearer":
		scheme = AuthBearer
	case "api_key":
		scheme = AuthAPIKey
	default:
		return nil, errInvalidConfig(server, fmt.Sprintf("unknown auth type %q", a.Type), nil)
	}
	headerName := a.HeaderName
	if scheme == AuthAPIKey && headerName == "" {
		headerName = "X-API-Key"
	}
	return &Auth{Scheme: scheme, Token: a.Token, HeaderName: headerName}, nil
}

// expandEnv resolves the {BASE_PATH} placeholder in env values; any other
// placeholder-looking text passes through unchanged. Values are strings
// already, per the catalog schema, so no coercion is needed beyond the
// substitution itself.
func expandEnv(env map[string]string, basePath string) map[string]string {
	if len(env) == 0 {
		return nil
	}
	out := make(map[string]string, len(env))
	for k, v := range env {
		out[k] = strings.ReplaceAll(v, "{BASE_PATH}", basePath)
	}
	return out
}

// Serialize renders params back into the catalog JSON shape. Used by the
// catalog round-trip property: load(C) then Serialize(params) must be
// semantically equal to C modulo default insertion.
func Serialize(params map[string]*ServerParams) ([]byte, error) {
	file := catalogFile{MCPServers: make(map[string]catalogEntry, len(params))}
	for name, p := range params {
		entry := catalogEntry{
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
			entry.Auth = &catalogAuth{
				Type:       authJSONType(p.Auth.Scheme),
				Token:      p.Auth.Token,
				HeaderName: p.Auth.HeaderName,
			}
		}
		file.MCPServers[name] = entry
	}
	return json.MarshalIndent(file, "", "  ")
}

func authJSONType(s AuthScheme) string {
	if s == AuthAPIKey {
		return "api_key"
	}
	return "bearer"
}
