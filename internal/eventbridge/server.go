package eventbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kingrea/character-lock/internal/host"
	"github.com/kingrea/character-lock/internal/lock"
	"github.com/kingrea/character-lock/internal/task"
)

// ServerStatus reports runtime lifecycle states for the HTTP server.
type ServerStatus string

const (
	StatusStarting ServerStatus = "starting"
	StatusReady    ServerStatus = "ready"
	StatusDraining ServerStatus = "draining"
)

// ErrServerDisabled is returned by Start when the bridge is switched off in config.
var ErrServerDisabled = errors.New("eventbridge: server disabled")

// Server exposes the host hooks and the settings store over HTTP so a host
// running in another process can call the plugin before it enqueues a task.
type Server struct {
	settings   Settings
	dispatcher Dispatcher
	store      SettingsStore
	logger     Logger
	clock      func() time.Time

	mu        sync.RWMutex
	server    *http.Server
	listener  net.Listener
	status    ServerStatus
	startTime time.Time
}

// Option customizes server construction.
type Option func(*Server)

// WithDispatcher sets the hook dispatcher. Without one every hook call is a 404.
func WithDispatcher(d Dispatcher) Option {
	return func(s *Server) {
		if d != nil {
			s.dispatcher = d
		}
	}
}

// WithSettingsStore enables the /settings endpoint.
func WithSettingsStore(store SettingsStore) Option {
	return func(s *Server) {
		if store != nil {
			s.store = store
		}
	}
}

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock allows tests to control timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewServer prepares a bridge server using the provided settings.
func NewServer(settings Settings, opts ...Option) *Server {
	s := &Server{
		settings: settings,
		logger:   nopLogger{},
		clock:    func() time.Time { return time.Now().UTC() },
		status:   StatusStarting,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler returns the bridge routes without binding a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/hooks/", s.handleHook)
	mux.HandleFunc("/settings", s.handleSettings)
	return mux
}

// Start binds the TCP listener and begins serving HTTP traffic.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("eventbridge: server is nil")
	}
	if !s.settings.Enabled {
		return ErrServerDisabled
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return fmt.Errorf("eventbridge: server already started")
	}
	addr := s.settings.Address()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("eventbridge: listen %s: %w", addr, err)
	}
	s.listener = listener
	s.startTime = s.clock()
	server := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.settings.ReadTimeout,
		WriteTimeout: s.settings.WriteTimeout,
		IdleTimeout:  s.settings.IdleTimeout,
	}
	if ctx != nil {
		server.BaseContext = func(net.Listener) context.Context { return ctx }
	}
	s.server = server
	s.status = StatusReady
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("eventbridge: serve error: %v", err)
		}
	}()
	s.logger.Printf("eventbridge: listening on %s", listener.Addr().String())
	return nil
}

// Shutdown stops accepting new connections and waits for in-flight requests to exit.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil || s.server == nil {
		return nil
	}
	s.status = StatusDraining
	deadline := ctx
	if deadline == nil {
		var cancel context.CancelFunc
		deadline, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	if err := s.server.Shutdown(deadline); err != nil {
		return err
	}
	s.listener = nil
	s.server = nil
	return nil
}

// Addr returns the bound TCP address once the server has started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// BaseURL returns the HTTP base URL (scheme + host:port) for the running server.
func (s *Server) BaseURL() string {
	addr := s.Addr()
	if addr == "" {
		return "http://" + s.settings.Address()
	}
	return "http://" + addr
}

// Status reports the server's lifecycle state.
func (s *Server) Status() ServerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Server) uptimeSeconds() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.startTime.IsZero() {
		return 0
	}
	return int64(s.clock().Sub(s.startTime).Seconds())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", fmt.Sprintf("%s, %s", http.MethodGet, http.MethodHead))
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	resp := healthResponse{
		Status:        string(s.Status()),
		Version:       ProtocolVersion,
		Hooks:         s.dispatcher != nil && s.dispatcher.HasHooks(host.EventBeforeTaskEnqueue),
		UptimeSeconds: s.uptimeSeconds(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	event := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/hooks/"))
	if event == "" || strings.Contains(event, "/") {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown hook"})
		return
	}
	if s.dispatcher == nil || !s.dispatcher.HasHooks(event) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no hooks registered for " + event})
		return
	}
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	var desc task.Descriptor
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&desc); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if desc == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body must be a JSON object"})
		return
	}
	if event != host.EventBeforeTaskEnqueue || s.store == nil {
		out, err := s.dispatcher.Dispatch(event, desc)
		if err != nil {
			s.dispatchFailed(w, event, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
		return
	}
	out, tier, err := s.dispatchWithTier(event, desc)
	if err != nil {
		s.dispatchFailed(w, event, err)
		return
	}
	if tier != "" {
		w.Header().Set(TierHeader, string(tier))
	}
	writeJSON(w, http.StatusOK, out)
}

// dispatchWithTier runs the hooks on a fresh copy of desc and reports the tier
// they used. The tier is only known when no settings update landed during the
// call; otherwise the call is re-run, up to TierAttempts times, and the last
// result is returned with an empty tier.
func (s *Server) dispatchWithTier(event string, desc task.Descriptor) (task.Descriptor, lock.Tier, error) {
	attempts := s.settings.TierAttempts
	if attempts < 1 {
		attempts = DefaultTierAttempts
	}
	var out task.Descriptor
	for i := 0; i < attempts; i++ {
		settings, before := s.store.SnapshotRevision()
		tier := lock.Classify(settings, desc)
		var err error
		out, err = s.dispatcher.Dispatch(event, desc.Clone())
		if err != nil {
			return nil, "", err
		}
		if s.store.Revision() == before {
			return out, tier, nil
		}
	}
	s.logger.Printf("eventbridge: settings kept changing during %s, tier header omitted", event)
	return out, "", nil
}

func (s *Server) dispatchFailed(w http.ResponseWriter, event string, err error) {
	s.logger.Printf("eventbridge: dispatch %s: %v", event, err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "hook dispatch failed"})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "settings not available"})
		return
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		writeJSON(w, http.StatusOK, s.store.Snapshot())
	case http.MethodPut:
		body, ok := s.readBody(w, r)
		if !ok {
			return
		}
		var next lock.Settings
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&next); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid settings: " + err.Error()})
			return
		}
		s.store.Update(next)
		writeJSON(w, http.StatusOK, s.store.Snapshot())
	default:
		w.Header().Set("Allow", fmt.Sprintf("%s, %s, %s", http.MethodGet, http.MethodHead, http.MethodPut))
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

// readBody enforces the payload limit and writes the error response itself.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if r.Body == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "empty body"})
		return nil, false
	}
	limit := s.settings.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	reader := http.MaxBytesReader(w, r.Body, limit)
	defer reader.Close()
	body, err := io.ReadAll(reader)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "payload exceeds limit"})
			return nil, false
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unable to read body"})
		return nil, false
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "empty body"})
		return nil, false
	}
	return body, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}
