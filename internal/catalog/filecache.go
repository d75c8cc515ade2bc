package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileCache reads and writes the on-disk stats dataset snapshot as
// {data, lastUpdated} JSON.
type FileCache struct {
	path string
}

type fileEnvelope struct {
	Data        json.RawMessage `json:"data"`
	LastUpdated time.Time       `json:"lastUpdated"`
}

// NewFileCache points the cache at the supplied file path.
func NewFileCache(path string) *FileCache {
	return &FileCache{path: path}
}

// Read loads the cached dataset and its timestamp.
func (f *FileCache) Read() (json.RawMessage, time.Time, error) {
	if f == nil || f.path == "" {
		return nil, time.Time{}, errors.New("file cache not configured")
	}
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return nil, time.Time{}, err
	}
	var envelope fileEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, time.Time{}, fmt.Errorf("decode cache file: %w", err)
	}
	if len(envelope.Data) == 0 {
		return nil, time.Time{}, errors.New("cache file has no data")
	}
	return envelope.Data, envelope.LastUpdated, nil
}

// Write stores the dataset with its fetch timestamp.
func (f *FileCache) Write(data json.RawMessage, at time.Time) error {
	if f == nil || f.path == "" {
		return errors.New("file cache not configured")
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	raw, err := json.Marshal(fileEnvelope{Data: data, LastUpdated: at})
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, raw, 0o644)
}
