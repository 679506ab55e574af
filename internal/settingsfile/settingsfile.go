// Package settingsfile reads the optional .charlock/settings.yaml and keeps a
// lock.Store in sync with it while the file is edited.
package settingsfile

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/character-lock/internal/lock"
)

// Load reads path and returns its overrides. A missing file reports ok=false
// and no error.
func Load(path string) (overrides lock.Overrides, ok bool, err error) {
	if path == "" {
		return lock.Overrides{}, false, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return lock.Overrides{}, false, nil
		}
		return lock.Overrides{}, false, fmt.Errorf("settingsfile: read %s: %w", path, err)
	}
	overrides, err = Parse(data)
	if err != nil {
		return lock.Overrides{}, false, fmt.Errorf("settingsfile: %s: %w", path, err)
	}
	return overrides, true, nil
}

// Parse decodes a settings payload. Unknown keys are rejected so a typo does
// not silently leave a lock in its previous state.
func Parse(data []byte) (lock.Overrides, error) {
	var overrides lock.Overrides
	if len(bytes.TrimSpace(data)) == 0 {
		return overrides, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&overrides); err != nil {
		return lock.Overrides{}, fmt.Errorf("decode settings: %w", err)
	}
	return overrides, nil
}

// Write stores s at path as a full settings document.
func Write(path string, s lock.Settings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("settingsfile: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("settingsfile: write %s: %w", path, err)
	}
	return nil
}
