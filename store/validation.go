package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"mnemosyne/types"
)

const validationFileName = "validated_partitions.json"

// validationFile is validated_partitions.json's on-disk shape: an array of
// only the valid dates, sorted ascending.
type validationFile struct {
	ValidPartitions []string `json:"valid_partitions"`
}

// ValidationFilePath returns the path to this store's validation cache.
func (s *PartitionStore[T]) ValidationFilePath() string {
	return filepath.Join(s.Root, validationFileName)
}

// LoadValidationJSON reads the validation cache. A missing file is not an
// error: it means no partition has ever been validated, matching the
// dataset's lazily-populated cache semantics.
func (s *PartitionStore[T]) LoadValidationJSON() (map[types.Date]bool, error) {
	path := s.ValidationFilePath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[types.Date]bool{}, nil
		}
		return nil, &types.ReadError{Path: path, Cause: err}
	}

	var raw validationFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	out := make(map[types.Date]bool, len(raw.ValidPartitions))
	for _, k := range raw.ValidPartitions {
		d, err := types.ParseDate(k)
		if err != nil {
			return nil, fmt.Errorf("parse %s: bad date %q: %w", path, k, err)
		}
		out[d] = true
	}
	return out, nil
}

// SaveValidationJSON writes the validation cache atomically: it writes to a
// uniquely-named temp file in the same directory, then renames it over the
// final path. A crash mid-write leaves either the old cache or nothing,
// never a half-written one. Only valid dates are persisted, matching the
// `{"valid_partitions": [...]}` interchange format.
func (s *PartitionStore[T]) SaveValidationJSON(valid map[types.Date]bool) error {
	if err := os.MkdirAll(s.Root, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", s.Root, err)
	}

	dates := make([]string, 0, len(valid))
	for d, v := range valid {
		if v {
			dates = append(dates, d.String())
		}
	}
	sort.Strings(dates)

	data, err := json.MarshalIndent(validationFile{ValidPartitions: dates}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal validation cache: %w", err)
	}

	finalPath := s.ValidationFilePath()
	tmpPath := filepath.Join(s.Root, fmt.Sprintf(".%s.%s.tmp", validationFileName, uuid.New().String()))

	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename %s -> %s: %w", tmpPath, finalPath, err)
	}
	return nil
}
