package scanner

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"invoice-scanner-go/internal/fsutil"
	"invoice-scanner-go/internal/model"
)

// ErrSummaryNotFound is returned for an unknown or malformed summary name
var ErrSummaryNotFound = errors.New("scan summary not found")

var summaryNameRe = regexp.MustCompile(`^scan_summary_\d{8}_\d{6}(_[0-9a-f]{8})?\.json$`)

// SummaryName returns the file name of a summary:
// scan_summary_YYYYMMDD_HHMMSS.json
func SummaryName(s *model.Summary) string {
	return fmt.Sprintf("scan_summary_%s.json", s.StartedAt.Format("20060102_150405"))
}

// WriteSummary writes s into dir and returns the file path. Summaries are
// never overwritten; a second scan in the same second gets a scan id suffix.
func WriteSummary(dir string, s *model.Summary) (string, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode scan summary: %w", err)
	}

	path := filepath.Join(dir, SummaryName(s))
	if _, err := os.Stat(path); err == nil {
		name := fmt.Sprintf("scan_summary_%s_%s.json", s.StartedAt.Format("20060102_150405"), shortID(s.ScanID))
		path = filepath.Join(dir, name)
	}

	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func shortID(scanID string) string {
	hex := make([]byte, 0, 8)
	for i := 0; i < len(scanID) && len(hex) < 8; i++ {
		c := scanID[i]
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') {
			hex = append(hex, c)
		}
	}
	for len(hex) < 8 {
		hex = append(hex, '0')
	}
	return string(hex)
}

// ListSummaries returns the summary file names in dir, newest first
func ListSummaries(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list summaries: %w", err)
	}

	names := []string{}
	for _, e := range entries {
		if !e.IsDir() && summaryNameRe.MatchString(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

// ReadSummary loads one summary by file name
func ReadSummary(dir, name string) (*model.Summary, error) {
	if !summaryNameRe.MatchString(name) {
		return nil, ErrSummaryNotFound
	}
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrSummaryNotFound
		}
		return nil, fmt.Errorf("failed to read summary %s: %w", name, err)
	}

	var s model.Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode summary %s: %w", name, err)
	}
	return &s, nil
}
