package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/mcprelay/gateway/internal/agent"
	"github.com/mcprelay/gateway/internal/llm/openai"
	"github.com/mcprelay/gateway/internal/mcpgw"
	"github.com/mcprelay/gateway/internal/mcpgw/reexporter"
	"github.com/mcprelay/gateway/internal/tool"
	"github.com/mcprelay/gateway/internal/tool/builtin"
	"github.com/mcprelay/gateway/internal/web"
	"github.com/mcprelay/gateway/pkg/config"
)

func main() {
	config.LoadEnv()

	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Println("║           MCP Gateway v0.1            ║")
	fmt.Println("║   client aggregator · re-exporter    ║")
	fmt.Println("╚══════════════════════════════════════╝")

	llmClient, err := openai.NewClientFromEnv()
	if err != nil {
		log.Fatalf("❌ Failed to initialize LLM client: %v", err)
	}
	fmt.Printf("🤖 LLM: %s\n", llmClient.GetName())

	registry := tool.NewRegistry()
	registry.Register(builtin.NewTimeTool())
	if err := registry.InitAll(context.Background()); err != nil {
		log.Fatalf("❌ Failed to initialize built-in tools: %v", err)
	}
	defer registry.CloseAll()
	fmt.Printf("🛠️  Built-in tools: %d registered\n", len(registry.List()))

	basePath := config.BasePath()
	catalogPath := os.Getenv("MCP_CATALOG")
	if catalogPath == "" {
		catalogPath = "mcp.json"
	}
	defaultTimeout := 30
	if v := os.Getenv("MCP_DEFAULT_TIMEOUT_SECONDS"); v != "" {
		if n, parseErr := strconv.Atoi(v); parseErr == nil && n > 0 {
			defaultTimeout = n
		}
	}

	manager := mcpgw.NewManager(defaultTimeout)

	if _, statErr := os.Stat(catalogPath); statErr == nil {
		catalog, loadErr := mcpgw.LoadCatalog(catalogPath, basePath, defaultTimeout)
		if loadErr != nil {
			log.Fatalf("❌ Failed to load MCP catalog %q: %v", catalogPath, loadErr)
		}
		summary, initErr := manager.Initialize(context.Background(), catalog)
		if initErr != nil {
			log.Printf("⚠️  MCP catalog initialize: %v", initErr)
		}
		fmt.Printf("🔌 %s\n", summary.String())
		for name, reason := range summary.Failed {
			log.Printf("⚠️  MCP server %q failed to start: %s", name, reason)
		}
	} else {
		fmt.Printf("🔌 No MCP catalog at %q, starting with zero upstream servers\n", catalogPath)
	}
	defer manager.Shutdown(context.Background())

	peers := mcpgw.NewPeerRegistry(manager)

	collaborator := agent.New(llmClient, registry)

	authToken, err := config.GatewayAuthToken()
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	reexp := reexporter.New(manager, collaborator, authToken)

	reexportMode := os.Getenv("REEXPORT_MODE")
	switch reexportMode {
	case "stdio":
		go func() {
			if listenErr := reexp.ListenStdio(context.Background()); listenErr != nil {
				log.Printf("⚠️  re-exporter (stdio) stopped: %v", listenErr)
			}
		}()
		fmt.Println("📡 Re-exporter: stdio")
	case "off", "disabled":
		fmt.Println("📡 Re-exporter: disabled")
	default:
		port := 9090
		if v := os.Getenv("REEXPORT_PORT"); v != "" {
			if n, parseErr := strconv.Atoi(v); parseErr == nil {
				port = n
			}
		}
		baseURL := os.Getenv("REEXPORT_BASE_URL")
		if baseURL == "" {
			baseURL = fmt.Sprintf("http://localhost:%d", port)
		}
		go func() {
			if listenErr := reexp.ListenAndServeSSE(context.Background(), port, baseURL); listenErr != nil {
				log.Printf("⚠️  re-exporter (sse) stopped: %v", listenErr)
			}
		}()
		fmt.Printf("📡 Re-exporter: sse @ %s\n", baseURL)
	}

	handlers := web.NewHandlers(manager, peers, collaborator)
	server := web.NewServer(handlers)
	if err := server.Start(); err != nil {
		log.Fatalf("❌ Server error: %v", err)
	}
}
