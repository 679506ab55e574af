package lock

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kingrea/character-lock/internal/task"
)

func testSettings() Settings {
	return Settings{
		Enabled:       true,
		NegEnabled:    true,
		AutoStrong:    true,
		LockPrompt:    "  keep identity  ",
		NegLockPrompt: "\tidentity drift\n",
		StrongLock:    " STRONG LOCK ",
		StrongNeg:     " strong neg ",
	}
}

func TestApplyLocksStrongForContinueMode(t *testing.T) {
	app := NewApplicator(NewStore(testSettings()))
	got := app.ApplyLocks(task.Descriptor{
		"mode":            "continue_last",
		"prompt":          "a knight walks",
		"negative_prompt": "blurry",
	})
	want := task.Descriptor{
		"mode":            "continue_last",
		"prompt":          "STRONG LOCK\na knight walks",
		"negative_prompt": "strong neg\nblurry",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("descriptor mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyLocksNormalForFreshMode(t *testing.T) {
	app := NewApplicator(NewStore(testSettings()))
	got := app.ApplyLocks(task.Descriptor{
		"mode":            "t2v",
		"prompt":          "a knight walks",
		"negative_prompt": "blurry",
	})
	want := task.Descriptor{
		"mode":            "t2v",
		"prompt":          "keep identity\na knight walks",
		"negative_prompt": "identity drift\nblurry",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("descriptor mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyLocksNormalWhenAutoStrongDisabled(t *testing.T) {
	s := testSettings()
	s.AutoStrong = false
	app := NewApplicator(NewStore(s))
	got := app.ApplyLocks(task.Descriptor{"mode": "Continue Video", "prompt": "p"})
	if got.String(task.KeyPrompt) != "keep identity\np" {
		t.Fatalf("expected normal lock, got %q", got.String(task.KeyPrompt))
	}
}

func TestIsContinuation(t *testing.T) {
	cases := []struct {
		name string
		d    task.Descriptor
		want bool
	}{
		{"mode substring", task.Descriptor{"mode": "continue_last"}, true},
		{"mode case-insensitive", task.Descriptor{"mode": "Video CONTINUE"}, true},
		{"last video flag", task.Descriptor{"mode": "t2v", "last_video": true}, true},
		{"last video false", task.Descriptor{"mode": "t2v", "last_video": false}, false},
		{"task type", task.Descriptor{"task_type": "video_continue"}, true},
		{"task type case-sensitive", task.Descriptor{"task_type": "VIDEO_CONTINUE"}, false},
		{"fresh", task.Descriptor{"mode": "i2v"}, false},
		{"empty", task.Descriptor{}, false},
	}
	for _, tc := range cases {
		if got := IsContinuation(tc.d); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestApplyLocksLastVideoUsesStrongRegardlessOfMode(t *testing.T) {
	app := NewApplicator(NewStore(testSettings()))
	got := app.ApplyLocks(task.Descriptor{"mode": "t2v", "last_video": true, "prompt": "p"})
	if !strings.HasPrefix(got.String(task.KeyPrompt), "STRONG LOCK\n") {
		t.Fatalf("expected strong lock, got %q", got.String(task.KeyPrompt))
	}
}

func TestApplyLocksDisabledLeavesFieldsUnchanged(t *testing.T) {
	s := testSettings()
	s.Enabled = false
	app := NewApplicator(NewStore(s))
	for _, mode := range []string{"t2v", "continue_last"} {
		got := app.ApplyLocks(task.Descriptor{"mode": mode, "prompt": "p", "negative_prompt": "n"})
		if got.String(task.KeyPrompt) != "p" {
			t.Fatalf("mode %s: prompt changed to %q", mode, got.String(task.KeyPrompt))
		}
		if got.String(task.KeyNegativePrompt) == "n" {
			t.Fatalf("mode %s: negative prompt should still be locked", mode)
		}
	}

	s = testSettings()
	s.NegEnabled = false
	app = NewApplicator(NewStore(s))
	for _, mode := range []string{"t2v", "continue_last"} {
		got := app.ApplyLocks(task.Descriptor{"mode": mode, "prompt": "p", "negative_prompt": "n"})
		if got.String(task.KeyNegativePrompt) != "n" {
			t.Fatalf("mode %s: negative prompt changed to %q", mode, got.String(task.KeyNegativePrompt))
		}
	}
}

func TestApplyLocksMissingFieldsDefaultToEmpty(t *testing.T) {
	app := NewApplicator(NewStore(testSettings()))
	got := app.ApplyLocks(task.Descriptor{})
	want := task.Descriptor{
		"prompt":          "keep identity\n",
		"negative_prompt": "identity drift\n",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("descriptor mismatch (-want +got):\n%s", diff)
	}
	if got := app.ApplyLocks(nil); got == nil {
		t.Fatalf("nil descriptor must come back as an empty record")
	}
}

func TestApplyLocksMutatesInPlace(t *testing.T) {
	app := NewApplicator(NewStore(testSettings()))
	d := task.Descriptor{"prompt": "p"}
	app.ApplyLocks(d)
	if d.String(task.KeyPrompt) != "keep identity\np" {
		t.Fatalf("expected in-place mutation, got %q", d.String(task.KeyPrompt))
	}
}

func TestApplyLocksIsNotIdempotent(t *testing.T) {
	app := NewApplicator(NewStore(testSettings()))
	d := task.Descriptor{"prompt": "p"}
	app.ApplyLocks(d)
	app.ApplyLocks(d)
	if got := d.String(task.KeyPrompt); got != "keep identity\nkeep identity\np" {
		t.Fatalf("expected double prepend, got %q", got)
	}
}

func TestStoreUpdateTakesEffectOnNextCall(t *testing.T) {
	store := NewStore(testSettings())
	app := NewApplicator(store)
	next := testSettings()
	next.LockPrompt = "new lock"
	store.Update(next)
	got := app.ApplyLocks(task.Descriptor{"prompt": "p"})
	if got.String(task.KeyPrompt) != "new lock\np" {
		t.Fatalf("expected updated lock text, got %q", got.String(task.KeyPrompt))
	}
}

func TestDefaultSettingsStrongLockIsTrimmed(t *testing.T) {
	app := NewApplicator(nil)
	got := app.ApplyLocks(task.Descriptor{"task_type": "video_continue", "prompt": "p"})
	want := strings.TrimSpace(DefaultStrongLock) + "\np"
	if got.String(task.KeyPrompt) != want {
		t.Fatalf("expected trimmed default strong lock, got %q", got.String(task.KeyPrompt))
	}
}

func TestClassify(t *testing.T) {
	s := testSettings()
	if got := Classify(s, task.Descriptor{"mode": "continue"}); got != TierStrong {
		t.Fatalf("expected strong, got %s", got)
	}
	if got := Classify(s, task.Descriptor{"mode": "t2v"}); got != TierNormal {
		t.Fatalf("expected normal, got %s", got)
	}
	s.Enabled, s.NegEnabled = false, false
	if got := Classify(s, task.Descriptor{"mode": "continue"}); got != TierNone {
		t.Fatalf("expected none, got %s", got)
	}
}

type recordingLogger struct {
	lines []string
}

func (r *recordingLogger) Printf(format string, args ...any) {
	r.lines = append(r.lines, fmt.Sprintf(format, args...))
}

func TestApplicatorLogsTier(t *testing.T) {
	logger := &recordingLogger{}
	app := NewApplicator(NewStore(testSettings()), WithLogger(logger))
	app.ApplyLocks(task.Descriptor{"mode": "continue"})
	if len(logger.lines) != 1 || !strings.Contains(logger.lines[0], "strong") {
		t.Fatalf("expected one strong log line, got %v", logger.lines)
	}
}
