// Package host describes what a plugin may ask of the host application and
// provides Registry, an in-process host used by the CLI, the hook bridge and
// tests.
package host

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/character-lock/internal/task"
)

const (
	// EventBeforeTaskEnqueue fires with the task descriptor right before the
	// host adds the task to its queue.
	EventBeforeTaskEnqueue = "before_task_enqueue"

	// ComponentPrompt and ComponentNegativePrompt are the host's prompt inputs.
	ComponentPrompt         = "prompt"
	ComponentNegativePrompt = "negative_prompt"
)

// ErrNoHooks is returned by Dispatch when nothing is registered for the event.
var ErrNoHooks = errors.New("host: no hooks registered")

// HookFunc receives a task descriptor and returns it, possibly mutated.
type HookFunc func(task.Descriptor) task.Descriptor

// PanelBuilder constructs a UI panel the host renders next to a component.
type PanelBuilder func() tea.Model

// Host is the capability contract a plugin relies on.
type Host interface {
	RegisterHook(event string, fn HookFunc) error
	RequestComponent(name string) error
	InsertAfter(anchor string, build PanelBuilder) error
}

// Registry is a minimal Host that stores hooks, requested components and
// panel insertions, and dispatches hooks serially in registration order.
type Registry struct {
	mu         sync.RWMutex
	hooks      map[string][]HookFunc
	components map[string]struct{}
	panels     map[string][]PanelBuilder
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		hooks:      map[string][]HookFunc{},
		components: map[string]struct{}{},
		panels:     map[string][]PanelBuilder{},
	}
}

// RegisterHook appends fn to the hooks for event.
func (r *Registry) RegisterHook(event string, fn HookFunc) error {
	event = normalizeName(event)
	if event == "" {
		return fmt.Errorf("host: event name is required")
	}
	if fn == nil {
		return fmt.Errorf("host: hook is required for %s", event)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[event] = append(r.hooks[event], fn)
	return nil
}

// RequestComponent records that a plugin needs access to a host component.
func (r *Registry) RequestComponent(name string) error {
	name = normalizeName(name)
	if name == "" {
		return fmt.Errorf("host: component name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components[name] = struct{}{}
	return nil
}

// InsertAfter places a panel after anchor. The anchor must have been requested.
func (r *Registry) InsertAfter(anchor string, build PanelBuilder) error {
	anchor = normalizeName(anchor)
	if anchor == "" {
		return fmt.Errorf("host: anchor component is required")
	}
	if build == nil {
		return fmt.Errorf("host: panel builder is required for %s", anchor)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.components[anchor]; !ok {
		return fmt.Errorf("host: component %s was not requested", anchor)
	}
	r.panels[anchor] = append(r.panels[anchor], build)
	return nil
}

// Dispatch runs every hook registered for event, threading d through them.
func (r *Registry) Dispatch(event string, d task.Descriptor) (task.Descriptor, error) {
	event = normalizeName(event)
	r.mu.RLock()
	hooks := append([]HookFunc(nil), r.hooks[event]...)
	r.mu.RUnlock()
	if len(hooks) == 0 {
		return d, fmt.Errorf("%w for %s", ErrNoHooks, event)
	}
	for _, hook := range hooks {
		d = hook(d)
	}
	return d, nil
}

// HasHooks reports whether anything is registered for event.
func (r *Registry) HasHooks(event string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.hooks[normalizeName(event)]) > 0
}

// Components returns the sorted list of requested components.
func (r *Registry) Components() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.components))
	for name := range r.components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Panels returns the builders inserted after anchor, in insertion order.
func (r *Registry) Panels(anchor string) []PanelBuilder {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]PanelBuilder(nil), r.panels[normalizeName(anchor)]...)
}

func normalizeName(name string) string {
	return strings.TrimSpace(name)
}
