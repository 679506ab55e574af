package plugins

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/character-lock/internal/host"
	"github.com/kingrea/character-lock/internal/lock"
	"github.com/kingrea/character-lock/internal/task"
	"github.com/kingrea/character-lock/internal/tui"
)

const (
	CharacterLockID          = "character-lock"
	CharacterLockName        = "Character Lock Prompt"
	CharacterLockVersion     = "1.2.0"
	CharacterLockDescription = "Prevents character switching with dynamic prompts & strong-lock for Continue/LastVideo."
)

// CharacterLock prepends lock text to prompts before the host enqueues a task
// and exposes a settings panel right under the prompt box.
type CharacterLock struct {
	applicator *lock.Applicator
	logger     lock.Logger
}

// CharacterLockOption customizes CharacterLock construction.
type CharacterLockOption func(*CharacterLock)

// WithPluginLogger routes applicator and save messages to l.
func WithPluginLogger(l lock.Logger) CharacterLockOption {
	return func(p *CharacterLock) {
		p.logger = l
	}
}

// NewCharacterLock builds the plugin around store. A nil store starts from the defaults.
func NewCharacterLock(store *lock.Store, opts ...CharacterLockOption) *CharacterLock {
	p := &CharacterLock{}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	var applicatorOpts []lock.ApplicatorOption
	if p.logger != nil {
		applicatorOpts = append(applicatorOpts, lock.WithLogger(p.logger))
	}
	p.applicator = lock.NewApplicator(store, applicatorOpts...)
	return p
}

// Info implements Plugin.
func (p *CharacterLock) Info() Info {
	return Info{
		ID:          CharacterLockID,
		Name:        CharacterLockName,
		Description: CharacterLockDescription,
		Version:     CharacterLockVersion,
	}
}

// Store returns the live settings store.
func (p *CharacterLock) Store() *lock.Store {
	return p.applicator.Store()
}

// SetupUI requests the prompt components and registers the enqueue hook.
func (p *CharacterLock) SetupUI(h host.Host) error {
	if err := h.RequestComponent(host.ComponentPrompt); err != nil {
		return err
	}
	if err := h.RequestComponent(host.ComponentNegativePrompt); err != nil {
		return err
	}
	return h.RegisterHook(host.EventBeforeTaskEnqueue, p.ApplyLocks)
}

// PostUISetup places the settings panel after the prompt box.
func (p *CharacterLock) PostUISetup(h host.Host) error {
	return h.InsertAfter(host.ComponentPrompt, p.buildPanel)
}

// ApplyLocks is the before_task_enqueue hook.
func (p *CharacterLock) ApplyLocks(d task.Descriptor) task.Descriptor {
	return p.applicator.ApplyLocks(d)
}

// SaveSettings overwrites every setting and returns the confirmation notice.
func (p *CharacterLock) SaveSettings(s lock.Settings) string {
	p.Store().Update(s)
	return tui.SavedNotice
}

func (p *CharacterLock) buildPanel() tea.Model {
	return tui.NewPanel(p.Store().Snapshot(), p.SaveSettings)
}
