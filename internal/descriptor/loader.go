package descriptor

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Loader reads descriptor lists from their JSON interchange format.
type Loader struct {
	maxFileSize int64
}

// NewLoader creates a descriptor loader with the given file size limit. A
// non-positive limit falls back to 10MB.
func NewLoader(maxFileSize int64) *Loader {
	if maxFileSize <= 0 {
		maxFileSize = 10 * 1024 * 1024
	}
	return &Loader{maxFileSize: maxFileSize}
}

// LoadFile reads an ordered descriptor list from a file.
func (l *Loader) LoadFile(path string) ([]Record, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot access descriptor file: %w", err)
	}
	if info.Size() > l.maxFileSize {
		return nil, fmt.Errorf("descriptor file too large: %d bytes (max: %d bytes)", info.Size(), l.maxFileSize)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open descriptor file: %w", err)
	}
	defer f.Close()

	return l.Load(f)
}

// Load reads an ordered descriptor list from a reader. The input is either a
// bare JSON array of records or an object with a top-level "fields" array.
func (l *Loader) Load(r io.Reader) ([]Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor data: %w", err)
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err == nil {
		return normalize(records), nil
	}

	var wrapped struct {
		Fields []Record `json:"fields"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse descriptor list: %w", err)
	}
	return normalize(wrapped.Fields), nil
}

// normalize resolves absent optional fields to their documented defaults so
// downstream code never has to special-case missing values.
func normalize(records []Record) []Record {
	for i := range records {
		if records[i].Page < 1 {
			records[i].Page = 1
		}
		if records[i].FieldType == "" {
			records[i].FieldType = FieldTypeUnknown
		}
	}
	return records
}
