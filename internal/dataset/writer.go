// Package dataset persists finished datasets.
package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/XeTute/Synthetic-Data-Generation/internal/models"
)

// ErrEmpty is returned when there is nothing to save
var ErrEmpty = errors.New("no records to save")

// Writer accepts a finished sequence of records and persists it
type Writer interface {
	Write(records []models.Record) error
}

// FileWriter writes records to a file. ".jsonl" files get one record per
// line, everything else a 2-space indented JSON array.
type FileWriter struct {
	Path string
}

// NewFileWriter creates a writer for path
func NewFileWriter(path string) *FileWriter {
	return &FileWriter{Path: path}
}

// Write encodes records and replaces the file atomically
func (w *FileWriter) Write(records []models.Record) error {
	return Save(w.Path, records)
}

// Save writes records to path through a temporary file in the same directory
func Save(path string, records []models.Record) error {
	if len(records) == 0 {
		return ErrEmpty
	}

	data, err := Encode(path, records)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("error syncing %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error closing %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("error setting permissions on %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("error writing to file %s: %w", path, err)
	}
	return nil
}

// Encode serializes records in the format selected by the extension of path
func Encode(path string, records []models.Record) ([]byte, error) {
	if strings.EqualFold(filepath.Ext(path), ".jsonl") {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		for _, record := range records {
			if err := enc.Encode(record); err != nil {
				return nil, fmt.Errorf("error encoding record: %w", err)
			}
		}
		return buf.Bytes(), nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return nil, fmt.Errorf("error encoding dataset: %w", err)
	}
	return buf.Bytes(), nil
}

// Load reads a dataset written by Save
func Load(path string) ([]models.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var records []models.Record
	if strings.EqualFold(filepath.Ext(path), ".jsonl") {
		dec := json.NewDecoder(bytes.NewReader(data))
		for dec.More() {
			var record models.Record
			if err := dec.Decode(&record); err != nil {
				return nil, fmt.Errorf("error parsing JSONL line: %w", err)
			}
			records = append(records, record)
		}
		return records, nil
	}

	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("error parsing JSON: %w", err)
	}
	return records, nil
}
