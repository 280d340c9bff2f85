package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/zombor/doc-scanner/internal/result"
	"github.com/zombor/doc-scanner/internal/scan"
)

func (a *app) configCommand(parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("config").SetParent(parent)

	show := &ff.Command{
		Name:      "show",
		Usage:     "doc-scanner config show",
		ShortHelp: "print the configured gateway endpoint",
		Flags:     ff.NewFlagSet("show").SetParent(fs),
		Exec: func(ctx context.Context, args []string) error {
			endpoint, err := a.endpoint()
			if err != nil {
				return err
			}
			if endpoint == "" {
				fmt.Fprintln(a.stdout, "(non configuré)")
				return nil
			}
			fmt.Fprintln(a.stdout, endpoint)
			return nil
		},
	}

	set := &ff.Command{
		Name:      "set",
		Usage:     "doc-scanner config set <url>",
		ShortHelp: "store the gateway endpoint",
		Flags:     ff.NewFlagSet("set").SetParent(fs),
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return errors.New("config set takes exactly one URL")
			}
			return a.setEndpoint(args[0])
		},
	}

	unset := &ff.Command{
		Name:      "clear",
		Usage:     "doc-scanner config clear",
		ShortHelp: "remove the gateway endpoint",
		Flags:     ff.NewFlagSet("clear").SetParent(fs),
		Exec: func(ctx context.Context, args []string) error {
			return a.setEndpoint("")
		},
	}

	return &ff.Command{
		Name:        "config",
		Usage:       "doc-scanner config <show|set|clear>",
		ShortHelp:   "manage the gateway endpoint",
		Flags:       fs,
		Subcommands: []*ff.Command{show, set, unset},
	}
}

func (a *app) setEndpoint(endpoint string) error {
	store, err := a.openSettings()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.SetEndpoint(endpoint); err != nil {
		return err
	}
	slog.Info("Gateway endpoint updated", "endpoint", strings.TrimSpace(endpoint))
	return nil
}

func (a *app) scanCommand(parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("scan").SetParent(parent)
	outDir := fs.StringLong("out", "", "Directory to write the JSON result to")
	previewDir := fs.StringLong("previews", filepath.Join(os.TempDir(), "doc-scanner-previews"), "Preview directory")

	return &ff.Command{
		Name:      "scan",
		Usage:     "doc-scanner scan [FLAGS] <image>",
		ShortHelp: "analyze one invoice or wine label",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return errors.New("scan takes exactly one image")
			}
			img, err := readImage(args[0])
			if err != nil {
				return err
			}
			endpoint, err := a.endpoint()
			if err != nil {
				return err
			}
			previews, err := scan.NewLocalPreviews(*previewDir)
			if err != nil {
				return err
			}

			session := scan.NewSession(a.client(), previews)
			defer session.Reset()

			fmt.Fprintf(a.stdout, "Analyse de %s...\n", img.Name)
			outcome, ok := session.Start(ctx, img, endpoint)
			if !ok {
				return nil
			}
			if !outcome.Succeeded() {
				return outcome.Err
			}

			if err := result.Render(a.stdout, result.Classify(outcome.Payload)); err != nil {
				return err
			}
			if *outDir == "" {
				return nil
			}
			path, err := writeDownload(*outDir, result.SingleDownloadName(time.Now()), outcome.Payload)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Résultat enregistré: %s\n", path)
			return nil
		},
	}
}

func (a *app) batchCommand(parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("batch").SetParent(parent)
	outDir := fs.StringLong("out", "", "Directory to write one JSON result per successful image")

	return &ff.Command{
		Name:      "batch",
		Usage:     "doc-scanner batch [FLAGS] <image>...",
		ShortHelp: "analyze several images one after another",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return errors.New("batch takes at least one image")
			}

			var images []scan.Image
			for _, path := range args {
				img, err := readImage(path)
				if err != nil {
					return err
				}
				if !strings.HasPrefix(img.DetectContentType(), "image/") {
					slog.Warn("Skipping non-image file", "file", path)
					continue
				}
				images = append(images, img)
			}
			if len(images) == 0 {
				return errors.New("no images to analyze")
			}

			endpoint, err := a.endpoint()
			if err != nil {
				return err
			}

			batch := scan.NewBatch(a.client(), scan.NewTracker())
			final := batch.ProcessAll(ctx, images, endpoint, progressPrinter(a.stdout))

			if err := printBatch(a.stdout, final); err != nil {
				return err
			}
			if *outDir == "" {
				return nil
			}
			fileNames := make([]string, len(final.Items))
			for i, item := range final.Items {
				fileNames[i] = item.FileName
			}
			names := result.DownloadNames(fileNames)
			for i, item := range final.Items {
				if item.Status != scan.StatusSuccess {
					continue
				}
				if _, err := writeDownload(*outDir, names[i], item.Payload); err != nil {
					return err
				}
			}
			fmt.Fprintf(a.stdout, "Résultats enregistrés dans %s\n", *outDir)
			return nil
		},
	}
}

func readImage(path string) (scan.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return scan.Image{}, fmt.Errorf("reading image: %w", err)
	}
	return scan.Image{Name: filepath.Base(path), Data: data}, nil
}

func writeDownload(dir, name string, payload []byte) (string, error) {
	data, err := result.DownloadJSON(payload)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing result: %w", err)
	}
	return path, nil
}

var statusLabels = map[scan.Status]string{
	scan.StatusPending:    "En attente",
	scan.StatusProcessing: "En cours",
	scan.StatusSuccess:    "Succès",
	scan.StatusError:      "Erreur",
}

// progressPrinter prints one line per item status change
func progressPrinter(w io.Writer) func(scan.Snapshot) {
	var last scan.Snapshot
	return func(s scan.Snapshot) {
		if last.BatchID != s.BatchID {
			fmt.Fprintf(w, "Analyse de %d images\n", len(s.Items))
			last = s
			return
		}
		for i, item := range s.Items {
			if i < len(last.Items) && last.Items[i].Status == item.Status {
				continue
			}
			line := fmt.Sprintf("[%d/%d] %s: %s", i+1, len(s.Items), item.FileName, statusLabels[item.Status])
			if item.Status == scan.StatusError {
				line += " (" + item.ErrorMessage + ")"
			}
			fmt.Fprintln(w, line)
		}
		last = s
	}
}

func printBatch(w io.Writer, s scan.Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tFichier\tStatut\tRésultat")
	for i, item := range s.Items {
		detail := item.ErrorMessage
		if item.Status == scan.StatusSuccess {
			detail = result.Summary(result.Classify(item.Payload))
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, item.FileName, statusLabels[item.Status], detail)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	c := s.Counts()
	_, err := fmt.Fprintf(w, "Total: %d  Réussis: %d  Erreurs: %d\n", c.Total, c.Succeeded, c.Failed)
	return err
}
