package scanning

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	maxUploadSize = int64(50 << 20) // 50MB
	// UploadField is the multipart field the gateway reads the image from
	UploadField = "file"
)

// Server exposes a Scanner over HTTP
type Server struct {
	scanner Scanner
	timeout time.Duration
	mux     *http.ServeMux
}

// NewServer creates a new Server. A zero timeout leaves scans unbounded.
func NewServer(scanner Scanner, timeout time.Duration) *Server {
	s := &Server{
		scanner: scanner,
		timeout: timeout,
		mux:     http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /{$}", s.handleHome)
	s.mux.HandleFunc("POST /analyze", s.handleAnalyze)
	return s
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	slog.Info("Starting gateway", "address", addr)
	return http.ListenAndServe(addr, s)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "Document scanning gateway online"})
}

// handleAnalyze classifies the uploaded image. Scanner failures are reported
// with status 200 and an error document so clients can display them.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "Field required: file"})
		return
	}

	f, header, err := r.FormFile(UploadField)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "Field required: file"})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"error": err.Error()})
		return
	}

	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Le fichier doit être une image."})
		return
	}

	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	doc, err := s.scanner.ScanDocument(ctx, data, contentType)
	if err != nil {
		slog.Error("Failed to scan document",
			"filename", header.Filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		writeJSON(w, http.StatusOK, map[string]string{
			"error":   "Echec de l'analyse IA",
			"details": err.Error(),
		})
		return
	}

	slog.Info("Scanned document", "filename", header.Filename, "duration", time.Since(start))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}
