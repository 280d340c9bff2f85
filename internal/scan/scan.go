// Package scan drives document images through the relay and tracks the
// outcome of each scan, alone or as part of a batch.
package scan

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
)

// Image is a single uploaded document image
type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

// DetectContentType fills in ContentType when it is empty, from the file
// extension first and then from the data itself
func (img Image) DetectContentType() string {
	if ct := strings.ToLower(strings.TrimSpace(img.ContentType)); ct != "" {
		return ct
	}
	switch strings.ToLower(filepath.Ext(img.Name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	case ".bmp":
		return "image/bmp"
	case ".tif", ".tiff":
		return "image/tiff"
	case ".avif":
		return "image/avif"
	}
	if len(img.Data) > 0 {
		if sniffed := http.DetectContentType(img.Data); strings.HasPrefix(sniffed, "image/") {
			return sniffed
		}
	}
	return "application/octet-stream"
}

// ImageRef points at the preview of the analyzed image. The zero value means no preview.
type ImageRef string

// Outcome is the terminal result of one scan attempt.
// Exactly one of Payload and Err is set.
type Outcome struct {
	Payload json.RawMessage
	Err     error
	Image   ImageRef
}

// Succeeded reports whether the scan produced a payload
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

// Message returns the human readable failure message, or "" on success
func (o Outcome) Message() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

func success(payload json.RawMessage) Outcome {
	return Outcome{Payload: payload}
}

func failure(err error) Outcome {
	return Outcome{Err: err}
}

// Kind returns the sentinel kind of err, or ErrTransport when err carries no kind
func Kind(err error) error {
	if err == nil {
		return nil
	}
	var scanErr *Error
	if errors.As(err, &scanErr) {
		return scanErr.Kind
	}
	return ErrTransport
}
