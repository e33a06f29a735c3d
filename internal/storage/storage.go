// Package storage manages the output directory holding downloadable
// artifacts (CSV exports, fetched GeoTIFFs) and maps them to public URLs.
package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var safeName = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

type Store struct {
	dir string
	log *slog.Logger
	now func() time.Time
	hc  *http.Client
}

func New(dir string, log *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir, log: log, now: time.Now, hc: &http.Client{Timeout: 5 * time.Minute}}, nil
}

// Resolve maps a requested filename to its path under the output directory.
// Names with separators or other unexpected characters are rejected, which
// also blocks path traversal.
func (s *Store) Resolve(filename string) (string, bool) {
	if !safeName.MatchString(filename) {
		return "", false
	}
	p := filepath.Join(s.dir, filename)
	if fi, err := os.Stat(p); err != nil || fi.IsDir() {
		return "", false
	}
	return p, true
}

// DownloadURL is the API path clients fetch an artifact from.
func DownloadURL(filename string) string {
	return "/api/data/download/" + filename
}

// WriteCSV writes rows (header first) to a fresh artifact and returns its
// filename.
func (s *Store) WriteCSV(prefix string, header []string, rows [][]string) (string, error) {
	name := fmt.Sprintf("%s_%d.csv", sanitizePrefix(prefix), s.now().UnixMilli())
	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return "", err
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	return name, w.Error()
}

// Fetch downloads a backend artifact URL into the output directory and
// returns the local filename.
func (s *Store) Fetch(url, prefix, ext string) (string, error) {
	resp, err := s.hc.Get(url)
	if err != nil {
		return "", fmt.Errorf("fetch artifact: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("fetch artifact: status %d", resp.StatusCode)
	}

	name := fmt.Sprintf("%s_%d.%s", sanitizePrefix(prefix), s.now().UnixMilli(), ext)
	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return "", err
	}
	return name, f.Close()
}

// Import copies a local file into the output directory as a fresh artifact
// and returns its filename.
func (s *Store) Import(src, prefix, ext string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	name := fmt.Sprintf("%s_%d.%s", sanitizePrefix(prefix), s.now().UnixMilli(), ext)
	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, in); err != nil {
		f.Close()
		return "", err
	}
	return name, f.Close()
}

// Path returns the absolute path of a stored artifact.
func (s *Store) Path(filename string) string {
	return filepath.Join(s.dir, filename)
}

// CleanupOlderThan removes artifacts past the retention window.
func (s *Store) CleanupOlderThan(retention time.Duration) int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.log.Warn("output cleanup failed", "err", err)
		return 0
	}
	cutoff := s.now().Add(-retention)
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		fi, err := e.Info()
		if err != nil || fi.ModTime().After(cutoff) {
			continue
		}
		if os.Remove(filepath.Join(s.dir, e.Name())) == nil {
			removed++
		}
	}
	if removed > 0 {
		s.log.Info("output cleanup", "removed", removed)
	}
	return removed
}

// Stats summarizes the output directory for health reporting.
type Stats struct {
	Files int   `json:"files"`
	Bytes int64 `json:"bytes"`
}

func (s *Store) Stats() Stats {
	var st Stats
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return st
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		st.Files++
		st.Bytes += fi.Size()
	}
	return st
}

// FormatValue renders a numeric cell for CSV output.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func sanitizePrefix(p string) string {
	p = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, p)
	if p == "" {
		p = "export"
	}
	return p
}
