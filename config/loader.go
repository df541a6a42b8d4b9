package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ExternalConfigFiles are the file names probed for external options,
// in priority order. The first one present is used.
var ExternalConfigFiles = []string{
	"proxy.config.yaml",
	"proxy.config.yml",
	"proxy.config.json",
}

// ErrNoExternalConfig is returned by LoadExternal when no config file exists.
var ErrNoExternalConfig = errors.New("no external proxy config file found")

// LoadExternal reads the first external config file found in dir.
// A file that exists but can't be read or parsed is reported as an
// error and the remaining candidates are not tried.
func LoadExternal(dir string) (*FileConfig, string, error) {
	for _, name := range ExternalConfigFiles {
		path := filepath.Join(dir, name)

		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, path, fmt.Errorf("error reading %s: %w", path, err)
		}

		fileConfig, err := ParseFileConfig(name, data)
		if err != nil {
			return nil, path, fmt.Errorf("error parsing %s: %w", path, err)
		}

		return fileConfig, path, nil
	}

	return nil, "", ErrNoExternalConfig
}

// ParseFileConfig decodes data as JSON or YAML depending on the extension of name.
func ParseFileConfig(name string, data []byte) (*FileConfig, error) {
	var fileConfig FileConfig

	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		if err := json.Unmarshal(data, &fileConfig); err != nil {
			return nil, err
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fileConfig); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported config file extension %q", filepath.Ext(name))
	}

	return &fileConfig, nil
}
