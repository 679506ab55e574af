package lock

import (
	"strings"

	"github.com/kingrea/character-lock/internal/task"
)

// ContinueTaskType is the task_type value hosts use for video continuation.
const ContinueTaskType = "video_continue"

// Tier names which lock text a task receives.
type Tier string

const (
	TierNone   Tier = "none"
	TierNormal Tier = "normal"
	TierStrong Tier = "strong"
)

// Logger records applicator decisions. It matches logging.Logger's signature.
type Logger interface {
	Printf(format string, args ...any)
}

// Applicator rewrites prompt fields from the settings in a Store.
type Applicator struct {
	store  *Store
	logger Logger
}

// ApplicatorOption customizes Applicator construction.
type ApplicatorOption func(*Applicator)

// WithLogger injects a logger for per-task decisions.
func WithLogger(l Logger) ApplicatorOption {
	return func(a *Applicator) {
		a.logger = l
	}
}

// NewApplicator binds an applicator to store. A nil store gets the defaults.
func NewApplicator(store *Store, opts ...ApplicatorOption) *Applicator {
	if store == nil {
		store = NewDefaultStore()
	}
	a := &Applicator{store: store}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Store exposes the settings store the applicator reads from.
func (a *Applicator) Store() *Store {
	return a.store
}

// IsContinuation reports whether d extends a prior video: mode mentions
// "continue" (any case), last_video is truthy, or task_type is video_continue.
func IsContinuation(d task.Descriptor) bool {
	mode := strings.ToLower(d.String(task.KeyMode))
	return strings.Contains(mode, "continue") ||
		d.Bool(task.KeyLastVideo) ||
		d.String(task.KeyTaskType) == ContinueTaskType
}

// Classify returns the tier a call to ApplyLocks would use under s.
// TierNone means neither field would change.
func Classify(s Settings, d task.Descriptor) Tier {
	if !s.Enabled && !s.NegEnabled {
		return TierNone
	}
	if s.AutoStrong && IsContinuation(d) {
		return TierStrong
	}
	return TierNormal
}

// ApplyLocks prefixes the prompt and negative prompt of d in place and returns
// it. Calling it twice prepends twice; retries are the host's concern.
func (a *Applicator) ApplyLocks(d task.Descriptor) task.Descriptor {
	if d == nil {
		d = task.Descriptor{}
	}
	s := a.store.Snapshot()
	tier := Classify(s, d)

	if tier == TierStrong {
		if s.Enabled {
			d.Prepend(task.KeyPrompt, strings.TrimSpace(s.StrongLock))
		}
		if s.NegEnabled {
			d.Prepend(task.KeyNegativePrompt, strings.TrimSpace(s.StrongNeg))
		}
		a.logf("lock: strong lock applied (mode=%q)", d.String(task.KeyMode))
		return d
	}

	if s.Enabled {
		d.Prepend(task.KeyPrompt, strings.TrimSpace(s.LockPrompt))
	}
	if s.NegEnabled {
		d.Prepend(task.KeyNegativePrompt, strings.TrimSpace(s.NegLockPrompt))
	}
	if tier == TierNormal {
		a.logf("lock: normal lock applied (mode=%q)", d.String(task.KeyMode))
	}
	return d
}

func (a *Applicator) logf(format string, args ...any) {
	if a.logger == nil {
		return
	}
	a.logger.Printf(format, args...)
}
