package catalog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// File names inside a catalog directory.
const (
	catalogFileJSON  = "catalog.json"
	catalogFileJSONL = "catalog.jsonl"
	summaryFile      = "catalog_summary.json"
)

// Store persists catalog snapshots under a directory. It is an explicit
// value handed to callers; there is no process-wide instance.
type Store struct {
	Dir string
}

// NewStore returns a store rooted at dir.
func NewStore(dir string) *Store { return &Store{Dir: dir} }

// Write persists the records and summary. Format is "json" (one document) or
// "jsonl" (one record per line). Both files are written atomically so a
// crashed build never leaves a half-written catalog behind.
func (s *Store) Write(records []ObjectRecord, summary *Summary, format string) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create catalog directory: %w", err)
	}

	switch format {
	case "", "json":
		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode catalog: %w", err)
		}
		if err := writeFileAtomic(filepath.Join(s.Dir, catalogFileJSON), append(data, '\n')); err != nil {
			return err
		}
	case "jsonl":
		var sb strings.Builder
		enc := json.NewEncoder(&sb)
		for _, r := range records {
			if err := enc.Encode(r); err != nil {
				return fmt.Errorf("failed to encode catalog record: %w", err)
			}
		}
		if err := writeFileAtomic(filepath.Join(s.Dir, catalogFileJSONL), []byte(sb.String())); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown catalog format %q (want json or jsonl)", format)
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	return writeFileAtomic(filepath.Join(s.Dir, summaryFile), append(data, '\n'))
}

// Read loads the persisted records, accepting either layout.
func (s *Store) Read() ([]ObjectRecord, error) {
	jsonPath := filepath.Join(s.Dir, catalogFileJSON)
	if data, err := os.ReadFile(jsonPath); err == nil {
		var records []ObjectRecord
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", jsonPath, err)
		}
		return records, nil
	}

	jsonlPath := filepath.Join(s.Dir, catalogFileJSONL)
	f, err := os.Open(jsonlPath)
	if err != nil {
		return nil, fmt.Errorf("no catalog found in %s: %w", s.Dir, err)
	}
	defer f.Close()

	var records []ObjectRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var r ObjectRecord
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", jsonlPath, err)
		}
		records = append(records, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", jsonlPath, err)
	}
	return records, nil
}

// ReadSummary loads the persisted build summary without touching the object
// records.
func (s *Store) ReadSummary() (*Summary, error) {
	path := filepath.Join(s.Dir, summaryFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("no catalog summary in %s (run a catalog build first): %w", s.Dir, err)
	}
	var summary Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return &summary, nil
}

// writeFileAtomic writes via a temp file and rename so readers see either
// the old content or the new, never a partial write.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
