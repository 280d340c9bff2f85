package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/peterbourgon/ff/v4"
	"github.com/zombor/doc-scanner/internal/relay"
	"github.com/zombor/doc-scanner/internal/scanning"
)

func (a *app) relayCommand(parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("relay").SetParent(parent)
	port := fs.IntLong("port", 3000, "HTTP server port")
	upstreamTimeout := fs.DurationLong("upstream-timeout", 0, "Timeout for gateway calls (0 disables it)")

	return &ff.Command{
		Name:      "relay",
		Usage:     "doc-scanner relay [FLAGS]",
		ShortHelp: "run the relay that forwards scans to the configured gateway",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			server := relay.NewServer(*upstreamTimeout)
			return serve(ctx, fmt.Sprintf(":%d", *port), server.Start)
		},
	}
}

func (a *app) gatewayCommand(parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("gateway").SetParent(parent)
	var (
		port        = fs.IntLong("port", 8000, "HTTP server port")
		scannerType = fs.StringLong("scanner", "gemini", "Scanner type: 'gemini' or 'ollama'")
		geminiKey   = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel = fs.StringLong("gemini-model", "gemini-2.5-flash-lite", "Google Gemini model name")
		ollamaURL   = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, llava-phi3, qwen2-vl)")
		scanTimeout = fs.DurationLong("scan-timeout", 0, "Timeout for one model call (0 disables it)")
	)

	return &ff.Command{
		Name:      "gateway",
		Usage:     "doc-scanner gateway [FLAGS]",
		ShortHelp: "run the document analysis gateway",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			var (
				scanner scanning.Scanner
				err     error
			)
			switch *scannerType {
			case "gemini":
				apiKey := *geminiKey
				if apiKey == "" {
					apiKey = os.Getenv("GEMINI_API_KEY")
				}
				if apiKey == "" {
					return fmt.Errorf("gemini API key is required: set --gemini-key or GEMINI_API_KEY")
				}
				slog.Info("Initializing Gemini scanner...", "model", *geminiModel)
				scanner, err = scanning.NewGemini(apiKey, *geminiModel)
			case "ollama":
				slog.Info("Initializing Ollama scanner...", "url", *ollamaURL, "model", *ollamaModel)
				scanner, err = scanning.NewOllama(*ollamaURL, *ollamaModel)
			default:
				return fmt.Errorf("invalid scanner type %q: want gemini or ollama", *scannerType)
			}
			if err != nil {
				return err
			}
			defer scanner.Close()

			server := scanning.NewServer(scanner, *scanTimeout)
			return serve(ctx, fmt.Sprintf(":%d", *port), server.Start)
		},
	}
}

// serve runs start in the background until it fails or ctx is cancelled
func serve(ctx context.Context, addr string, start func(string) error) error {
	errc := make(chan error, 1)
	go func() {
		errc <- start(addr)
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))

	select {
	case err := <-errc:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("Shutting down...")
		return nil
	}
}
