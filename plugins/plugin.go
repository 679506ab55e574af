// Package plugins holds the character lock plugin and its preset loaders.
package plugins

import (
	"fmt"

	"github.com/kingrea/character-lock/internal/host"
)

// Info describes a plugin's identity.
type Info struct {
	ID          string
	Name        string
	Description string
	Version     string
}

// Validate ensures the info block is well-formed.
func (i Info) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("plugin: id is required")
	}
	if i.Name == "" {
		return fmt.Errorf("plugin: name is required for %s", i.ID)
	}
	if i.Version == "" {
		return fmt.Errorf("plugin: version is required for %s", i.ID)
	}
	return nil
}

// Plugin is implemented by everything the host can load. SetupUI runs before
// the host builds its UI and is where components and hooks are requested;
// PostUISetup runs afterwards and may insert panels next to those components.
type Plugin interface {
	Info() Info
	SetupUI(h host.Host) error
	PostUISetup(h host.Host) error
}

// Install validates each plugin and runs both setup phases against h. All
// SetupUI calls finish before the first PostUISetup, as in the host.
func Install(h host.Host, plugins ...Plugin) error {
	if h == nil {
		return fmt.Errorf("plugin: host is required")
	}
	for _, p := range plugins {
		if err := p.Info().Validate(); err != nil {
			return err
		}
	}
	for _, p := range plugins {
		if err := p.SetupUI(h); err != nil {
			return fmt.Errorf("plugin: setup %s: %w", p.Info().ID, err)
		}
	}
	for _, p := range plugins {
		if err := p.PostUISetup(h); err != nil {
			return fmt.Errorf("plugin: post setup %s: %w", p.Info().ID, err)
		}
	}
	return nil
}
