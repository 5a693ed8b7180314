package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// LoadOrCreate decodes the TOML file at filename into v. A missing file is
// created from v's current contents, so callers pass v pre-filled with
// defaults.
func LoadOrCreate(filename string, v interface{}) error {
	b, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return WriteTOML(filename, v)
	}
	if err != nil {
		return err
	}
	return toml.Unmarshal(b, v)
}

// WriteTOML replaces filename with v encoded as TOML, creating parent
// directories as needed.
func WriteTOML(filename string, v interface{}) error {
	b, err := toml.Marshal(v)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(filename, b, 0644)
}
