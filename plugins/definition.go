package plugins

import (
	"fmt"
	"strings"

	"github.com/kingrea/character-lock/internal/lock"
)

// DefaultPresetID names the built-in preset that mirrors lock.DefaultSettings.
const DefaultPresetID = "default"

// PresetDefinition describes a named set of lock settings loaded from disk.
//
// The struct mirrors the on-disk schema under .charlock/presets/*.yaml. Every
// settings key is optional; unset keys fall back to the built-in defaults.
type PresetDefinition struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name,omitempty" yaml:"name,omitempty"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Settings    lock.Overrides `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// Normalized returns a trimmed copy of the definition. Lock texts are left
// verbatim; the applicator trims them when it prepends.
func (def PresetDefinition) Normalized() PresetDefinition {
	return PresetDefinition{
		ID:          strings.ToLower(strings.TrimSpace(def.ID)),
		Name:        strings.TrimSpace(def.Name),
		Description: strings.TrimSpace(def.Description),
		Settings:    def.Settings,
	}
}

// Validate ensures the preset can be referenced by ID.
func (def PresetDefinition) Validate() error {
	normalized := def.Normalized()
	if normalized.ID == "" {
		return fmt.Errorf("plugin: preset id is required")
	}
	if strings.ContainsAny(normalized.ID, " \t/\\") {
		return fmt.Errorf("plugin: preset id %q must not contain spaces or path separators", normalized.ID)
	}
	return nil
}

// Resolve returns the full settings the preset describes.
func (def PresetDefinition) Resolve() lock.Settings {
	return def.Settings.ApplyTo(lock.DefaultSettings())
}

// DisplayName returns Name, or the ID when no name is set.
func (def PresetDefinition) DisplayName() string {
	if def.Name != "" {
		return def.Name
	}
	return def.ID
}

func builtinPreset() PresetDefinition {
	return PresetDefinition{
		ID:          DefaultPresetID,
		Name:        "Default",
		Description: "Built-in character lock texts.",
	}
}
