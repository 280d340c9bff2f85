// Package relay forwards image uploads from the scanner client to the gateway
// and passes the gateway's answer back unchanged.
package relay

import (
	"log/slog"
	"net/http"
	"time"
)

// Server handles HTTP requests for the relay
type Server struct {
	client *http.Client
	mux    *http.ServeMux
}

// NewServer creates a new Server with default mux. A zero timeout means
// gateway calls never time out.
func NewServer(timeout time.Duration) *Server {
	return NewServerWithDeps(&http.Client{Timeout: timeout}, http.NewServeMux())
}

// NewServerWithDeps creates a new Server with a custom HTTP client and mux for testing
func NewServerWithDeps(client *http.Client, mux *http.ServeMux) *Server {
	s := &Server{
		client: client,
		mux:    mux,
	}
	s.registerRoutes()
	return s
}

// corsMiddleware adds CORS headers to responses
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)

		// Handle preflight OPTIONS requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Api-Url")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/scan", s.handleScan)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	slog.Info("Starting relay", "address", addr)
	return http.ListenAndServe(addr, s)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.corsMiddleware(s.mux).ServeHTTP(w, r)
}
