package dataset

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/blake2b"

	"breachstudy/internal/errors"
)

// IntegrityManifest records a checksum per input file so a run documents
// exactly which inputs produced which outputs.
type IntegrityManifest struct {
	GeneratedAt time.Time            `json:"generated_at"`
	Files       map[string]FileEntry `json:"files"`
}

// FileEntry is the recorded state of one input file
type FileEntry struct {
	Path     string `json:"path"`
	SizeByte int64  `json:"size_bytes"`
	BLAKE2b  string `json:"blake2b_256"`
}

// BuildManifest hashes the given input files. Missing files are skipped so
// optional enrichment sources don't block a run.
func BuildManifest(paths []string) (*IntegrityManifest, error) {
	m := &IntegrityManifest{
		GeneratedAt: time.Now().UTC(),
		Files:       make(map[string]FileEntry),
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, errors.NewStorageError(fmt.Sprintf("failed to stat %s", path), err)
		}

		sum, err := hashFile(path)
		if err != nil {
			return nil, err
		}

		m.Files[filepath.Base(path)] = FileEntry{
			Path:     path,
			SizeByte: info.Size(),
			BLAKE2b:  sum,
		}
	}

	return m, nil
}

// Save writes the manifest as indented JSON
func (m *IntegrityManifest) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.NewStorageError("failed to marshal integrity manifest", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.NewStorageError("failed to write integrity manifest", err)
	}
	return nil
}

// LoadManifest reads a previously saved manifest
func LoadManifest(path string) (*IntegrityManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewStorageError("failed to read integrity manifest", err)
	}
	var m IntegrityManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.NewParsingError("failed to unmarshal integrity manifest", err)
	}
	return &m, nil
}

// Verify re-hashes the recorded files and returns the names whose content
// changed since the manifest was built.
func (m *IntegrityManifest) Verify() ([]string, error) {
	var changed []string
	for name, entry := range m.Files {
		sum, err := hashFile(entry.Path)
		if err != nil {
			return nil, err
		}
		if sum != entry.BLAKE2b {
			changed = append(changed, name)
		}
	}
	return changed, nil
}

func hashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", errors.NewStorageError(fmt.Sprintf("failed to open %s for hashing", path), err)
	}
	defer file.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", fmt.Errorf("create blake2b hasher: %w", err)
	}
	if _, err := io.Copy(h, file); err != nil {
		return "", errors.NewStorageError(fmt.Sprintf("failed to hash %s", path), err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
