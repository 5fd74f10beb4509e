// Package fileio implements the FileRead/FileWrite effects: reading a file
// into a Payload.Data per a configured data_type, and writing the current
// payload's data back out (append or truncate).
package fileio

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/songokas/hvents/pkg/models"
)

// Read opens path and decodes its contents per dataType ("text", "bytes",
// or "json" — default "text").
func Read(path, dataType string) (models.Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return models.Data{}, fmt.Errorf("file_read %q: %w", path, err)
	}
	return Decode(raw, dataType)
}

// Decode interprets raw bytes per dataType, the shared conversion FileRead
// and Execute's stdout capture both go through.
func Decode(raw []byte, dataType string) (models.Data, error) {
	switch dataType {
	case "", "text":
		return models.TextData(string(raw)), nil
	case "bytes":
		return models.BytesData(raw), nil
	case "json":
		var v map[string]interface{}
		if err := json.Unmarshal(raw, &v); err != nil {
			return models.Data{}, fmt.Errorf("decode json: %w", err)
		}
		return models.StructuredData(v), nil
	default:
		return models.Data{}, fmt.Errorf("unrecognized data_type %q", dataType)
	}
}

// Write appends (or, if truncate, overwrites) data's byte representation to
// path, creating the file if it does not exist.
func Write(path string, truncate bool, data models.Data) error {
	flags := os.O_CREATE | os.O_WRONLY
	if truncate {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("file_write %q: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(data.AsBytes()); err != nil {
		return fmt.Errorf("file_write %q: %w", path, err)
	}
	return nil
}
