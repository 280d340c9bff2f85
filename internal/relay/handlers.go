package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/zombor/doc-scanner/internal/scan"
)

const (
	maxFormSize = int64(50 << 20) // 50MB
	// gatewayField is the multipart field the gateway expects the image in
	gatewayField = "file"
)

// writeJSON writes v with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

// handleHealth reports that the relay is up
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleScan forwards the uploaded image to the gateway named in the x-api-url header
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFormSize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		slog.Error("Error parsing multipart form", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	f, header, err := r.FormFile(scan.ImageField)
	if err != nil {
		writeError(w, http.StatusBadRequest, "No image provided")
		return
	}
	defer f.Close()

	apiURL := strings.TrimSpace(r.Header.Get(scan.EndpointHeader))
	if apiURL == "" {
		writeError(w, http.StatusBadRequest, "API endpoint not configured")
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	img := scan.Image{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}
	body, contentType, err := scan.MultipartBody(gatewayField, img)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, apiURL, body)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	req.Header.Set("Content-Type", contentType)

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		slog.Error("Proxy error", "gateway", apiURL, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("reading gateway response: %v", err))
		return
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Warn("Gateway returned an error", "gateway", apiURL, "status", resp.StatusCode)
		writeError(w, resp.StatusCode, fmt.Sprintf("Backend API error: %d - %s", resp.StatusCode, string(respBody)))
		return
	}

	if !json.Valid(respBody) {
		writeError(w, http.StatusInternalServerError, "Backend API returned invalid JSON")
		return
	}

	slog.Info("Relayed scan",
		"filename", header.Filename,
		"file_size", len(data),
		"duration", time.Since(start),
	)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(respBody)
}
