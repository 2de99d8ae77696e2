package web

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Server holds the gateway's REST/SSE surface: the part of the system
// spec.md §1 calls "surrounding functionality ... OUT of scope", specified
// here only at the point it touches the MCP core (§6 "Exposed to external
// collaborators").
type Server struct {
	mux      *http.ServeMux
	handlers *Handlers
}

// NewServer wires routes against handlers.
func NewServer(handlers *Handlers) *Server {
	s := &Server{mux: http.NewServeMux(), handlers: handlers}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/mcp/servers", s.handlers.HandleListServers)
	s.mux.HandleFunc("POST /api/mcp/peers", s.handlers.HandleAddPeer)
	s.mux.HandleFunc("DELETE /api/mcp/peers/{name}", s.handlers.HandleRemovePeer)
	s.mux.HandleFunc("POST /api/mcp/servers/{name}/reload", s.handlers.HandleReload)
	s.mux.HandleFunc("POST /api/mcp/reload", s.handlers.HandleReloadAll)
	s.mux.HandleFunc("POST /api/chat", s.handlers.HandleChat)
}

// Start begins listening on WEB_HOST:WEB_PORT with graceful shutdown on
// SIGINT/SIGTERM, in the reference's own startup style.
func (s *Server) Start() error {
	port := os.Getenv("WEB_PORT")
	if port == "" {
		port = "8080"
	}
	host := os.Getenv("WEB_HOST")
	if host == "" {
		host = "127.0.0.1"
	}
	addr := host + ":" + port

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		log.Printf("[web] received signal %v, shutting down gracefully", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[web] graceful shutdown error: %v", err)
		}
	}()

	log.Printf("[web] gateway REST/SSE surface listening at http://%s", addr)
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		log.Printf("[web] server stopped gracefully")
		return nil
	}
	return err
}
