package result

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

const (
	ExtendedSummaryFile = "extended_summary.json"
	LatestLink          = "latest"
)

var (
	// ErrMissingArtifact marks an expected run file that does not exist.
	ErrMissingArtifact = errors.New("missing artifact")
	// ErrMalformedFile marks a file that exists but is not the expected document.
	ErrMalformedFile = errors.New("malformed file")
)

// CreateReportDir makes a timestamped directory under baseDir/reports and
// points baseDir/latest at it.
func CreateReportDir(baseDir string) (string, error) {
	stamp := time.Now().UTC().Format("2006-01-02T15-04-05")
	dir, err := filepath.Abs(filepath.Join(baseDir, "reports", stamp))
	if err != nil {
		return "", fmt.Errorf("resolving report dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating report dir: %w", err)
	}
	latest := filepath.Join(baseDir, LatestLink)
	os.Remove(latest)
	if err := os.Symlink(dir, latest); err != nil {
		return "", fmt.Errorf("creating latest symlink: %w", err)
	}
	return dir, nil
}

func readArtifact(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, ErrMissingArtifact)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

// ReadEvalFile decodes a dataset-eval list. Entries that are not JSON
// objects are dropped; a document that is not a list is ErrMalformedFile.
func ReadEvalFile(path string) ([]EvalRecord, error) {
	data, err := readArtifact(path)
	if err != nil {
		return nil, err
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing %s: %w: %v", path, ErrMalformedFile, err)
	}
	records := make([]EvalRecord, 0, len(raw))
	for _, r := range raw {
		var rec EvalRecord
		if err := json.Unmarshal(r, &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func WriteEvalFile(path string, records []EvalRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating eval dir: %w", err)
	}
	if records == nil {
		records = []EvalRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling eval records: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadExtendedSummary decodes dir/extended_summary.json.
func ReadExtendedSummary(path string) (*ExtendedSummary, error) {
	data, err := readArtifact(path)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("parsing %s: %w: not a JSON object", path, ErrMalformedFile)
	}
	var s ExtendedSummary
	if err := json.Unmarshal(data, &s); err != nil {
		// A type mismatch on one field leaves that field unset; the decoder
		// keeps going, so the rest of the document is still usable.
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return nil, fmt.Errorf("parsing %s: %w: %v", path, ErrMalformedFile, err)
		}
	}
	return &s, nil
}

func WriteExtendedSummary(dir string, s *ExtendedSummary) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating log dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling extended summary: %w", err)
	}
	path := filepath.Join(dir, ExtendedSummaryFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing extended summary: %w", err)
	}
	return path, nil
}
