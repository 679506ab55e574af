package eventbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kingrea/character-lock/internal/config"
	"github.com/kingrea/character-lock/internal/host"
	"github.com/kingrea/character-lock/internal/lock"
	"github.com/kingrea/character-lock/internal/task"
)

func TestSettingsFromConfigHonorsEnv(t *testing.T) {
	t.Setenv(EnvPort, "9001")
	t.Setenv(EnvHost, "0.0.0.0")
	t.Setenv(EnvEnabled, "false")
	t.Setenv(EnvMaxBody, "2048")
	t.Setenv(EnvTimeout, "5s")
	t.Setenv(EnvTierAttempts, "5")
	settings, err := SettingsFromConfig(&config.Config{})
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if settings.Port != 9001 {
		t.Fatalf("expected port 9001, got %d", settings.Port)
	}
	if settings.Host != "0.0.0.0" {
		t.Fatalf("expected host override, got %s", settings.Host)
	}
	if settings.Enabled {
		t.Fatalf("expected enabled=false from env override")
	}
	if settings.MaxBodyBytes != 2048 || settings.ReadTimeout != 5*time.Second || settings.WriteTimeout != 5*time.Second {
		t.Fatalf("unexpected limits %+v", settings)
	}
	if settings.TierAttempts != 5 {
		t.Fatalf("expected 5 tier attempts, got %d", settings.TierAttempts)
	}
}

func TestSettingsFromConfigRejectsMalformedEnv(t *testing.T) {
	cases := map[string]string{
		EnvPort:         "99999",
		EnvMaxBody:      "big",
		EnvTimeout:      "-1s",
		EnvEnabled:      "maybe",
		EnvTierAttempts: "0",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := SettingsFromConfig(nil); err == nil || !strings.Contains(err.Error(), key) {
				t.Fatalf("expected error naming %s, got %v", key, err)
			}
		})
	}
}

func TestSettingsFromConfigReadsBridgeBlock(t *testing.T) {
	enabled := false
	cfg := &config.Config{Project: config.ProjectConfig{Bridge: config.BridgeConfig{
		Enabled:      &enabled,
		Port:         9100,
		MaxBodyBytes: 512,
		IdleTimeout:  time.Minute * 2,
	}}}
	settings, err := SettingsFromConfig(cfg)
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if settings.Enabled || settings.Port != 9100 || settings.MaxBodyBytes != 512 || settings.IdleTimeout != 2*time.Minute {
		t.Fatalf("bridge block not applied: %+v", settings)
	}
	if settings.Host != DefaultHost || settings.ReadTimeout <= 0 {
		t.Fatalf("unset fields should keep defaults: %+v", settings)
	}
}

func TestSettingsFromConfigDefaults(t *testing.T) {
	settings, err := SettingsFromConfig(nil)
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if settings.Address() != "127.0.0.1:8765" {
		t.Fatalf("unexpected default address %s", settings.Address())
	}
	if settings.MaxBodyBytes != DefaultMaxBodyBytes || !settings.Enabled || settings.TierAttempts != DefaultTierAttempts {
		t.Fatalf("unexpected defaults %+v", settings)
	}
}

func testSettings() lock.Settings {
	return lock.Settings{
		Enabled:       true,
		NegEnabled:    true,
		AutoStrong:    true,
		LockPrompt:    "lock",
		NegLockPrompt: "neg",
		StrongLock:    "strong",
		StrongNeg:     "strong neg",
	}
}

func newBridge(t *testing.T, maxBody int64) (*Server, *lock.Store) {
	t.Helper()
	store := lock.NewStore(testSettings())
	applicator := lock.NewApplicator(store)
	reg := host.NewRegistry()
	if err := reg.RegisterHook(host.EventBeforeTaskEnqueue, applicator.ApplyLocks); err != nil {
		t.Fatalf("register hook: %v", err)
	}
	settings := Settings{Enabled: true, Host: "127.0.0.1", Port: 0, MaxBodyBytes: maxBody, ReadTimeout: time.Second, WriteTimeout: time.Second, IdleTimeout: time.Second}
	srv := NewServer(settings, WithDispatcher(reg), WithSettingsStore(store))
	return srv, store
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHookRoundTripsDescriptor(t *testing.T) {
	srv, _ := newBridge(t, 4096)
	rec := postJSON(t, srv.Handler(), "/hooks/before_task_enqueue", `{"mode":"continue_last","prompt":"walk","seed":12345678901234567,"last_video":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get(TierHeader); got != string(lock.TierStrong) {
		t.Fatalf("expected strong tier header, got %q", got)
	}
	var out map[string]any
	dec := json.NewDecoder(rec.Body)
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out["prompt"] != "strong\nwalk" {
		t.Fatalf("unexpected prompt %q", out["prompt"])
	}
	if out["negative_prompt"] != "strong neg\n" {
		t.Fatalf("unexpected negative prompt %q", out["negative_prompt"])
	}
	if out["seed"] != json.Number("12345678901234567") {
		t.Fatalf("numbers must round-trip exactly, got %v", out["seed"])
	}
}

// racingDispatcher applies an update to the store while the first n calls
// are in flight, the way a concurrent PUT /settings would.
type racingDispatcher struct {
	inner   Dispatcher
	store   *lock.Store
	updates []lock.Settings
	calls   int
}

func (r *racingDispatcher) Dispatch(event string, d task.Descriptor) (task.Descriptor, error) {
	if r.calls < len(r.updates) {
		r.store.Update(r.updates[r.calls])
	}
	r.calls++
	return r.inner.Dispatch(event, d)
}

func (r *racingDispatcher) HasHooks(event string) bool { return r.inner.HasHooks(event) }

func TestTierHeaderMatchesAppliedLockWhenSettingsChangeMidCall(t *testing.T) {
	store := lock.NewStore(testSettings())
	reg := host.NewRegistry()
	if err := reg.RegisterHook(host.EventBeforeTaskEnqueue, lock.NewApplicator(store).ApplyLocks); err != nil {
		t.Fatalf("register hook: %v", err)
	}
	noStrong := testSettings()
	noStrong.AutoStrong = false
	racer := &racingDispatcher{inner: reg, store: store, updates: []lock.Settings{noStrong}}
	srv := NewServer(Settings{Enabled: true}, WithDispatcher(racer), WithSettingsStore(store))

	rec := postJSON(t, srv.Handler(), "/hooks/before_task_enqueue", `{"mode":"continue","prompt":"walk"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get(TierHeader); got != string(lock.TierNormal) {
		t.Fatalf("expected normal tier after the update, got %q", got)
	}
	var out task.Descriptor
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.String(task.KeyPrompt) != "lock\nwalk" {
		t.Fatalf("prompt should carry exactly one normal lock, got %q", out.String(task.KeyPrompt))
	}
	if racer.calls != 2 {
		t.Fatalf("expected one re-run, got %d calls", racer.calls)
	}
}

func TestTierHeaderOmittedWhenSettingsNeverSettle(t *testing.T) {
	store := lock.NewStore(testSettings())
	reg := host.NewRegistry()
	if err := reg.RegisterHook(host.EventBeforeTaskEnqueue, lock.NewApplicator(store).ApplyLocks); err != nil {
		t.Fatalf("register hook: %v", err)
	}
	racer := &racingDispatcher{inner: reg, store: store, updates: []lock.Settings{testSettings(), testSettings()}}
	srv := NewServer(Settings{Enabled: true, TierAttempts: 2}, WithDispatcher(racer), WithSettingsStore(store))

	rec := postJSON(t, srv.Handler(), "/hooks/before_task_enqueue", `{"prompt":"p"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get(TierHeader); got != "" {
		t.Fatalf("tier header should be omitted, got %q", got)
	}
	if racer.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", racer.calls)
	}
}

func TestHookRejectsBadRequests(t *testing.T) {
	srv, _ := newBridge(t, 64)
	h := srv.Handler()
	cases := []struct {
		name string
		path string
		body string
		want int
	}{
		{"unknown event", "/hooks/after_task_done", `{}`, http.StatusNotFound},
		{"invalid json", "/hooks/before_task_enqueue", `{"mode":`, http.StatusBadRequest},
		{"array body", "/hooks/before_task_enqueue", `[1,2]`, http.StatusBadRequest},
		{"null body", "/hooks/before_task_enqueue", `null`, http.StatusBadRequest},
		{"empty body", "/hooks/before_task_enqueue", ``, http.StatusBadRequest},
		{"too large", "/hooks/before_task_enqueue", `{"prompt":"` + strings.Repeat("a", 512) + `"}`, http.StatusRequestEntityTooLarge},
	}
	for _, tc := range cases {
		rec := postJSON(t, h, tc.path, tc.body)
		if rec.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, rec.Code)
		}
	}
	req := httptest.NewRequest(http.MethodGet, "/hooks/before_task_enqueue", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestSettingsEndpointHotReloads(t *testing.T) {
	srv, store := newBridge(t, 4096)
	h := srv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/settings", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var current lock.Settings
	if err := json.NewDecoder(rec.Body).Decode(&current); err != nil {
		t.Fatalf("decode settings: %v", err)
	}
	if current != store.Snapshot() {
		t.Fatalf("GET /settings mismatch: %+v", current)
	}

	next := current
	next.LockPrompt = "fresh lock"
	next.NegEnabled = false
	buf, _ := json.Marshal(next)
	req = httptest.NewRequest(http.MethodPut, "/settings", bytes.NewReader(buf))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.Snapshot() != next {
		t.Fatalf("store not updated: %+v", store.Snapshot())
	}

	rec = postJSON(t, h, "/hooks/before_task_enqueue", `{"mode":"t2v","prompt":"p","negative_prompt":"n"}`)
	var out task.Descriptor
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.String(task.KeyPrompt) != "fresh lock\np" || out.String(task.KeyNegativePrompt) != "n" {
		t.Fatalf("next hook call should see new settings, got %+v", out)
	}

	req = httptest.NewRequest(http.MethodPut, "/settings", strings.NewReader(`{"enabeld":true}`))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown settings field should be rejected, got %d", rec.Code)
	}
}

func TestServerServesHealthAndHooks(t *testing.T) {
	t.Parallel()
	srv, _ := newBridge(t, 1024)
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
	})
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start server: %v", err)
	}
	base := srv.BaseURL()
	resp, err := http.Get(base + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || health.Status != string(StatusReady) || !health.Hooks {
		t.Fatalf("unexpected health %d %+v", resp.StatusCode, health)
	}
	resp, err = http.Post(base+"/hooks/before_task_enqueue", "application/json", strings.NewReader(`{"prompt":"p"}`))
	if err != nil {
		t.Fatalf("post hook: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if srv.Status() != StatusDraining {
		t.Fatalf("expected draining status, got %s", srv.Status())
	}
}

func TestServerDisabled(t *testing.T) {
	srv := NewServer(Settings{Enabled: false})
	if err := srv.Start(context.Background()); err != ErrServerDisabled {
		t.Fatalf("expected ErrServerDisabled, got %v", err)
	}
}
