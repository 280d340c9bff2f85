package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/zombor/doc-scanner/internal/scan"
	"github.com/zombor/doc-scanner/internal/settings"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

// app holds the flags shared by every subcommand
type app struct {
	dbPath   *string
	relayURL *string
	timeout  *time.Duration
	stdout   io.Writer
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	rootFlags := ff.NewFlagSet("doc-scanner")
	a := &app{
		dbPath:   rootFlags.StringLong("db", "doc-scanner.db", "Settings database file path"),
		relayURL: rootFlags.StringLong("relay-url", "http://localhost:3000", "Relay base URL"),
		timeout:  rootFlags.DurationLong("timeout", 2*time.Minute, "Per image scan timeout (0 disables it)"),
		stdout:   os.Stdout,
	}

	root := &ff.Command{
		Name:      "doc-scanner",
		Usage:     "doc-scanner [FLAGS] <SUBCOMMAND>",
		ShortHelp: "scan invoices and wine labels through the relay",
		Flags:     rootFlags,
		Subcommands: []*ff.Command{
			a.configCommand(rootFlags),
			a.scanCommand(rootFlags),
			a.batchCommand(rootFlags),
			a.relayCommand(rootFlags),
			a.gatewayCommand(rootFlags),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := root.ParseAndRun(ctx, os.Args[1:], ff.WithEnvVarPrefix("DOC_SCANNER"))
	switch {
	case err == nil:
	case errors.Is(err, ff.ErrHelp), errors.Is(err, ff.ErrNoExec):
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Command(root.GetSelected()))
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func (a *app) openSettings() (*settings.BoltStore, error) {
	store, err := settings.NewBoltStore(*a.dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening settings: %w", err)
	}
	return store, nil
}

// endpoint reads the configured gateway URL. An unset endpoint is not an
// error here; the scan client reports it per image.
func (a *app) endpoint() (string, error) {
	store, err := a.openSettings()
	if err != nil {
		return "", err
	}
	defer store.Close()
	return store.Endpoint()
}

func (a *app) client() *scan.Client {
	return scan.NewClient(*a.relayURL, *a.timeout)
}
