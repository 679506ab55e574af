// Package lock prepends character-lock text to a task's prompt fields.
//
// Settings live in a Store that the settings panel (or any other UI layer)
// overwrites at runtime; the Applicator reads a fresh snapshot on every call,
// so a save takes effect on the next enqueue without a restart.
package lock

const (
	// DefaultLockPrompt is prepended to the main prompt for normal tasks.
	DefaultLockPrompt = "Keep the character consistent. Do not change identity, body type or gender."

	// DefaultNegLockPrompt is prepended to the negative prompt for normal tasks.
	DefaultNegLockPrompt = "style switching, anime to realistic, realistic to anime, character replacement, new person appearing, random face change, identity drift, uncontrolled morphing, background jump"

	// DefaultStrongLock replaces DefaultLockPrompt for continuation tasks.
	DefaultStrongLock = "ABSOLUTELY lock character AND visual STYLE across all frames." +
		"This is a CONTINUATION of the same scene." +
		"The final transformed appearance MUST remain identical." +
		"No new character, no face replacement, no style change." +
		"If anime style is used, stay anime. If realistic, stay realistic." +
		"Background, lighting and proportions must remain consistent. "

	// DefaultStrongNeg replaces DefaultNegLockPrompt for continuation tasks.
	DefaultStrongNeg = "style change, anime to photorealistic, photorealistic to anime," +
		"character swap, face replacement,identity drift after transformation, unwanted reversion, flicker, distortion, background inconsistency, model drift"
)

// Settings holds the three switches and four text templates of the plugin.
// Text is accepted verbatim; only surrounding whitespace is trimmed at apply time.
type Settings struct {
	Enabled       bool   `json:"enabled" yaml:"enabled"`
	NegEnabled    bool   `json:"neg_enabled" yaml:"neg_enabled"`
	AutoStrong    bool   `json:"auto_strong" yaml:"auto_strong"`
	LockPrompt    string `json:"lock_prompt" yaml:"lock_prompt"`
	NegLockPrompt string `json:"neg_lock_prompt" yaml:"neg_lock_prompt"`
	StrongLock    string `json:"strong_lock" yaml:"strong_lock"`
	StrongNeg     string `json:"strong_neg" yaml:"strong_neg"`
}

// DefaultSettings returns the settings a fresh plugin instance starts with.
func DefaultSettings() Settings {
	return Settings{
		Enabled:       true,
		NegEnabled:    true,
		AutoStrong:    true,
		LockPrompt:    DefaultLockPrompt,
		NegLockPrompt: DefaultNegLockPrompt,
		StrongLock:    DefaultStrongLock,
		StrongNeg:     DefaultStrongNeg,
	}
}

// Overrides is the partial form of Settings used by preset and settings files.
// Nil fields keep whatever the base settings carry.
type Overrides struct {
	Enabled       *bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	NegEnabled    *bool   `json:"neg_enabled,omitempty" yaml:"neg_enabled,omitempty"`
	AutoStrong    *bool   `json:"auto_strong,omitempty" yaml:"auto_strong,omitempty"`
	LockPrompt    *string `json:"lock_prompt,omitempty" yaml:"lock_prompt,omitempty"`
	NegLockPrompt *string `json:"neg_lock_prompt,omitempty" yaml:"neg_lock_prompt,omitempty"`
	StrongLock    *string `json:"strong_lock,omitempty" yaml:"strong_lock,omitempty"`
	StrongNeg     *string `json:"strong_neg,omitempty" yaml:"strong_neg,omitempty"`
}

// ApplyTo returns base with every non-nil override applied.
func (o Overrides) ApplyTo(base Settings) Settings {
	if o.Enabled != nil {
		base.Enabled = *o.Enabled
	}
	if o.NegEnabled != nil {
		base.NegEnabled = *o.NegEnabled
	}
	if o.AutoStrong != nil {
		base.AutoStrong = *o.AutoStrong
	}
	if o.LockPrompt != nil {
		base.LockPrompt = *o.LockPrompt
	}
	if o.NegLockPrompt != nil {
		base.NegLockPrompt = *o.NegLockPrompt
	}
	if o.StrongLock != nil {
		base.StrongLock = *o.StrongLock
	}
	if o.StrongNeg != nil {
		base.StrongNeg = *o.StrongNeg
	}
	return base
}

// IsZero reports whether no override is set.
func (o Overrides) IsZero() bool {
	return o == Overrides{}
}
