package result

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// DownloadJSON formats payload for saving to disk. Keys and values are left
// untouched; only whitespace changes.
func DownloadJSON(payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(payload), "", "  "); err != nil {
		return nil, fmt.Errorf("formatting payload: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// DownloadName is the file name of the JSON saved for a batch item
func DownloadName(fileName string) string {
	return downloadBase(fileName) + "-result.json"
}

// DownloadNames names the downloads of a whole batch, one per file name and
// in the same order. Names that would repeat get a -2, -3... suffix so that
// no download overwrites another.
func DownloadNames(fileNames []string) []string {
	names := make([]string, len(fileNames))
	used := make(map[string]bool, len(fileNames))
	for i, fileName := range fileNames {
		name := DownloadName(fileName)
		for n := 2; used[name]; n++ {
			name = fmt.Sprintf("%s-%d-result.json", downloadBase(fileName), n)
		}
		used[name] = true
		names[i] = name
	}
	return names
}

func downloadBase(fileName string) string {
	base := filepath.Base(fileName)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "scan"
	}
	return base
}

// SingleDownloadName is the file name of the JSON saved for a single scan
func SingleDownloadName(t time.Time) string {
	return fmt.Sprintf("scan-result-%d.json", t.UnixMilli())
}
