package plugins

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kingrea/character-lock/internal/config"
	"github.com/kingrea/character-lock/internal/lock"
)

// Catalog indexes the built-in preset plus every preset found on disk.
type Catalog struct {
	presets map[string]PresetFile
}

// DiscoverPresets loads YAML and Go presets from the project's presets directory.
func DiscoverPresets(cfg *config.Config) (*Catalog, error) {
	if cfg == nil {
		return LoadPresets("")
	}
	return LoadPresets(cfg.PresetsDir())
}

// LoadPresets builds a catalog from dir. A file may redefine the built-in
// "default" preset; any other repeated ID is an error.
func LoadPresets(dir string) (*Catalog, error) {
	files, err := loadAllPresetFiles(dir)
	if err != nil {
		return nil, err
	}
	catalog := &Catalog{presets: map[string]PresetFile{
		DefaultPresetID: {Preset: builtinPreset(), Path: "builtin"},
	}}
	seen := make(map[string]string)
	for _, file := range files {
		id := file.Preset.ID
		if existing, ok := seen[id]; ok {
			return nil, fmt.Errorf("plugin: duplicate preset id %s (%s and %s)", id, existing, file.Path)
		}
		seen[id] = file.Path
		catalog.presets[id] = file
	}
	return catalog, nil
}

// Lookup returns the preset registered under id.
func (c *Catalog) Lookup(id string) (PresetDefinition, bool) {
	file, ok := c.presets[strings.ToLower(strings.TrimSpace(id))]
	return file.Preset, ok
}

// Settings resolves the full lock settings of preset id.
func (c *Catalog) Settings(id string) (lock.Settings, error) {
	def, ok := c.Lookup(id)
	if !ok {
		return lock.Settings{}, fmt.Errorf("plugin: unknown preset %s (available: %s)", id, strings.Join(c.IDs(), ", "))
	}
	return def.Resolve(), nil
}

// IDs returns a sorted list of preset identifiers.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.presets))
	for id := range c.presets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Files returns every preset with its source, sorted by ID.
func (c *Catalog) Files() []PresetFile {
	files := make([]PresetFile, 0, len(c.presets))
	for _, id := range c.IDs() {
		files = append(files, c.presets[id])
	}
	return files
}

func loadAllPresetFiles(dir string) ([]PresetFile, error) {
	yamlPresets, err := LoadPresetDir(dir)
	if err != nil {
		return nil, err
	}
	goPresets, err := LoadGoPresetDir(dir)
	if err != nil {
		return nil, err
	}
	return append(yamlPresets, goPresets...), nil
}
