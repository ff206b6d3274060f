package configloader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader reads static AI configuration files (the agent library) relative
// to a base directory. JSON and YAML are both accepted; the format is picked
// from the file extension.
type Loader struct {
	baseDir string
}

// NewLoader creates a new configuration loader.
func NewLoader(baseDir string) *Loader {
	return &Loader{
		baseDir: baseDir,
	}
}

// Load reads a single file and unmarshals it into target.
// Unknown JSON fields are rejected so that typos in the library fail at startup.
func (l *Loader) Load(subPath string, target any) error {
	data, err := l.ReadFileWithFallback(subPath)
	if err != nil {
		return fmt.Errorf("read file %s: %w", subPath, err)
	}

	switch strings.ToLower(filepath.Ext(subPath)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, target); err != nil {
			return fmt.Errorf("unmarshal YAML %s: %w", subPath, err)
		}
	case ".json", "":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(target); err != nil {
			return fmt.Errorf("unmarshal JSON %s: %w", subPath, err)
		}
	default:
		return fmt.Errorf("unsupported config format %q for %s", filepath.Ext(subPath), subPath)
	}

	return nil
}

// ReadFileWithFallback tries to read file from path relative to baseDir,
// then falls back to executable directory for production builds.
// Absolute paths are read as-is.
func (l *Loader) ReadFileWithFallback(path string) ([]byte, error) {
	if filepath.IsAbs(path) {
		return os.ReadFile(path)
	}

	absPath := filepath.Join(l.baseDir, path)
	data, err := os.ReadFile(absPath)
	if err == nil {
		return data, nil
	}

	execPath, execErr := os.Executable()
	if execErr != nil {
		return nil, err
	}

	execAbsPath := filepath.Join(filepath.Dir(execPath), l.baseDir, path)
	data, fallbackErr := os.ReadFile(execAbsPath)
	if fallbackErr != nil {
		// Report the primary location, it is the one operators configure.
		return nil, err
	}
	return data, nil
}
