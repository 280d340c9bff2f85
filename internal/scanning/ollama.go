package scanning

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const ollamaSystemPrompt = "Tu lis des factures et des étiquettes de vin et tu en extrais les informations avec précision."

// Ollama implements the Scanner interface with a local vision model
type Ollama struct {
	chatURL string
	model   string
	client  *http.Client
}

// NewOllama creates a new Ollama Scanner instance.
// Vision models such as llava or qwen2-vl are required.
func NewOllama(baseURL string, modelName string) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if modelName == "" {
		modelName = "llava"
	}

	return &Ollama{
		chatURL: strings.TrimRight(baseURL, "/") + "/api/chat",
		model:   modelName,
		client:  &http.Client{Timeout: 120 * time.Second}, // vision models are slow
	}, nil
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// ScanDocument classifies the image and extracts its fields
func (o *Ollama) ScanDocument(ctx context.Context, imageData []byte, contentType string) (json.RawMessage, error) {
	answer, err := o.chat(ctx, []ollamaMessage{
		{Role: "system", Content: ollamaSystemPrompt},
		{
			Role:    "user",
			Content: documentScanPrompt,
			Images:  []string{base64.StdEncoding.EncodeToString(imageData)},
		},
	})
	if err != nil {
		return nil, err
	}

	doc, err := parseDocumentJSON(answer)
	if err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	return doc, nil
}

// chat sends one non-streaming JSON-mode exchange and returns the answer text
func (o *Ollama) chat(ctx context.Context, messages []ollamaMessage) (string, error) {
	payload, err := json.Marshal(ollamaChatRequest{
		Model:    o.model,
		Messages: messages,
		Format:   "json",
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.chatURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling ollama API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var answer ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	return answer.Message.Content, nil
}

// Close is a no-op; the HTTP client holds nothing to release
func (o *Ollama) Close() error {
	return nil
}
