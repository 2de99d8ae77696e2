package mcpgw

import (
	"strings"
	"testing"
)

func TestParseCatalog_StdioDefaults(t *testing.T) {
	data := []byte(`{
		"mcpServers": {
			"files": {
				"type": "stdio",
				"command": "python3",
				"args": ["server.py"],
				"env": {"ROOT": "{BASE_PATH}/data"}
			}
		}
	}`)

	out, err := ParseCatalog(data, "/srv/gateway", 45)
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}
	p, ok := out["files"]
	if !ok {
		t.Fatalf("missing entry %q", "files")
	}
	if p.Transport != TransportStdio {
		t.Errorf("Transport = %q, want stdio", p.Transport)
	}
	if !p.Enabled {
		t.Error("Enabled should default to true when omitted")
	}
	if p.TimeoutSeconds != 45 {
		t.Errorf("TimeoutSeconds = %d, want 45 (the supplied default)", p.TimeoutSeconds)
	}
	if p.Env["ROOT"] != "/srv/gateway/data" {
		t.Errorf("Env[ROOT] = %q, want {BASE_PATH} expanded", p.Env["ROOT"])
	}
}

func TestParseCatalog_InfersStdioFromCommand(t *testing.T) {
	data := []byte(`{"mcpServers": {"legacy": {"command": "node", "args": ["index.js"]}}}`)
	out, err := ParseCatalog(data, "", 30)
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}
	if out["legacy"].Transport != TransportStdio {
		t.Errorf("Transport = %q, want inferred stdio", out["legacy"].Transport)
	}
}

func TestParseCatalog_HTTPWithBearerAuth(t *testing.T) {
	data := []byte(`{
		"mcpServers": {
			"remote": {
				"type": "http",
				"url": "https://mcp.example.com/sse",
				"auth": {"type": "bearer", "token": "s3cret"}
			}
		}
	}`)
	out, err := ParseCatalog(data, "", 30)
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}
	p := out["remote"]
	if p.Transport != TransportHTTP {
		t.Errorf("Transport = %q, want http", p.Transport)
	}
	if p.Auth == nil || p.Auth.Scheme != AuthBearer || p.Auth.Token != "s3cret" {
		t.Errorf("Auth = %+v, want bearer/s3cret", p.Auth)
	}
}

func TestParseCatalog_HTTPApiKeyDefaultsHeaderName(t *testing.T) {
	data := []byte(`{
		"mcpServers": {
			"remote": {
				"type": "http",
				"url": "https://mcp.example.com/sse",
				"auth": {"type": "api_key", "token": "k"}
			}
		}
	}`)
	out, err := ParseCatalog(data, "", 30)
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}
	if out["remote"].Auth.HeaderName != "X-API-Key" {
		t.Errorf("HeaderName = %q, want default X-API-Key", out["remote"].Auth.HeaderName)
	}
}

func TestParseCatalog_RejectsMissingCommand(t *testing.T) {
	data := []byte(`{"mcpServers": {"bad": {"type": "stdio"}}}`)
	_, err := ParseCatalog(data, "", 30)
	if err == nil {
		t.Fatal("expected error for stdio entry with no command")
	}
	if !IsKind(err, KindInvalidConfig) {
		t.Errorf("expected KindInvalidConfig, got %v", err)
	}
}

func TestParseCatalog_RejectsRelativeHTTPURL(t *testing.T) {
	data := []byte(`{"mcpServers": {"bad": {"type": "http", "url": "/not-absolute"}}}`)
	_, err := ParseCatalog(data, "", 30)
	if err == nil || !IsKind(err, KindInvalidConfig) {
		t.Fatalf("expected KindInvalidConfig for relative url, got %v", err)
	}
}

func TestParseCatalog_RejectsUnknownTransport(t *testing.T) {
	data := []byte(`{"mcpServers": {"bad": {"type": "carrier-pigeon", "command": "x"}}}`)
	_, err := ParseCatalog(data, "", 30)
	if err == nil || !IsKind(err, KindInvalidConfig) {
		t.Fatalf("expected KindInvalidConfig for unknown transport, got %v", err)
	}
}

func TestParseCatalog_ExplicitDisabled(t *testing.T) {
	data := []byte(`{"mcpServers": {"off": {"command": "x", "enabled": false}}}`)
	out, err := ParseCatalog(data, "", 30)
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}
	if out["off"].Enabled {
		t.Error("Enabled should be false when explicitly set")
	}
}

func TestSerialize_RoundTrip(t *testing.T) {
	data := []byte(`{
		"mcpServers": {
			"files": {"type": "stdio", "command": "python3", "args": ["s.py"], "enabled": true, "timeout_seconds": 20},
			"remote": {"type": "http", "url": "https://x.example.com", "auth": {"type": "bearer", "token": "t"}}
		}
	}`)
	params, err := ParseCatalog(data, "", 30)
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}

	serialized, err := Serialize(params)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	roundTripped, err := ParseCatalog(serialized, "", 30)
	if err != nil {
		t.Fatalf("ParseCatalog(Serialize(...)): %v", err)
	}
	if len(roundTripped) != len(params) {
		t.Fatalf("round trip changed entry count: got %d, want %d", len(roundTripped), len(params))
	}
	for name, want := range params {
		got, ok := roundTripped[name]
		if !ok {
			t.Fatalf("round trip lost entry %q", name)
		}
		if got.Transport != want.Transport || got.Command != want.Command || got.URL != want.URL {
			t.Errorf("round trip changed entry %q: got %+v, want %+v", name, got, want)
		}
	}
}

func TestExpandEnv_LeavesUnknownPlaceholdersAlone(t *testing.T) {
	env := map[string]string{"A": "{BASE_PATH}/x", "B": "{OTHER}/y"}
	out := expandEnv(env, "/root")
	if out["A"] != "/root/x" {
		t.Errorf("A = %q", out["A"])
	}
	if !strings.Contains(out["B"], "{OTHER}") {
		t.Errorf("B should leave unrelated placeholder untouched, got %q", out["B"])
	}
}
