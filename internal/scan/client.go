package scan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

const (
	// ScanPath is the relay route accepting image uploads
	ScanPath = "/api/scan"
	// EndpointHeader carries the gateway URL to the relay
	EndpointHeader = "x-api-url"
	// ImageField is the multipart field the relay reads the image from
	ImageField = "image"
)

// Scanner runs a single image through the relay
type Scanner interface {
	Scan(ctx context.Context, img Image, endpoint string) Outcome
}

// Client is the Scanner talking to a relay over HTTP
type Client struct {
	relayURL   string
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient creates a Client for the relay at relayURL.
// A zero timeout means requests never time out.
func NewClient(relayURL string, timeout time.Duration) *Client {
	return NewClientWithDeps(relayURL, &http.Client{Timeout: timeout}, slog.Default())
}

// NewClientWithDeps creates a Client with a custom HTTP client and logger for testing
func NewClientWithDeps(relayURL string, httpClient *http.Client, log *slog.Logger) *Client {
	return &Client{
		relayURL:   strings.TrimRight(relayURL, "/"),
		httpClient: httpClient,
		log:        log,
	}
}

// Scan uploads img to the relay, which forwards it to endpoint.
// Failures are reported in the returned Outcome, never as a panic.
func (c *Client) Scan(ctx context.Context, img Image, endpoint string) Outcome {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return failure(&Error{Kind: ErrConfiguration})
	}
	if len(img.Data) == 0 {
		return failure(&Error{Kind: ErrValidation, Err: fmt.Errorf("no image provided for %q", img.Name)})
	}
	if err := ctx.Err(); err != nil {
		return failure(transportError(err))
	}

	body, contentType, err := MultipartBody(ImageField, img)
	if err != nil {
		return failure(&Error{Kind: ErrValidation, Err: fmt.Errorf("building upload: %w", err)})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.relayURL+ScanPath, body)
	if err != nil {
		return failure(&Error{Kind: ErrTransport, Err: fmt.Errorf("creating request: %w", err)})
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(EndpointHeader, endpoint)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("Scan request failed", "filename", img.Name, "error", err)
		return failure(transportError(err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure(transportError(fmt.Errorf("reading response: %w", err)))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Warn("Relay returned an error",
			"filename", img.Name,
			"status", resp.StatusCode,
			"duration", time.Since(start),
		)
		return failure(&Error{
			Kind:       ErrUpstream,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		})
	}

	var payload json.RawMessage
	if err := json.Unmarshal(data, &payload); err != nil {
		return failure(&Error{Kind: ErrMalformedResponse, Body: string(data), Err: err})
	}

	c.log.Info("Scan completed", "filename", img.Name, "duration", time.Since(start))
	return success(payload)
}

func transportError(err error) *Error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &Error{Kind: ErrTimeout, Err: err}
	}
	return &Error{Kind: ErrTransport, Err: err}
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// MultipartBody encodes img as the only field of a multipart form
func MultipartBody(field string, img Image) (*bytes.Buffer, string, error) {
	var b bytes.Buffer
	writer := multipart.NewWriter(&b)

	name := img.Name
	if name == "" {
		name = "image"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(name)))
	h.Set("Content-Type", img.DetectContentType())

	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("creating form part: %w", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, "", fmt.Errorf("writing form part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("closing form: %w", err)
	}
	return &b, writer.FormDataContentType(), nil
}
