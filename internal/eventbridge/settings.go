package eventbridge

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kingrea/character-lock/internal/config"
)

const (
	// DefaultHost is the loopback interface used when no host override is provided.
	DefaultHost = "127.0.0.1"
	// DefaultPort is the default TCP port for the bridge server.
	DefaultPort = 8765
	// DefaultMaxBodyBytes limits a hook descriptor to 1 MB.
	DefaultMaxBodyBytes int64 = 1 << 20
	// DefaultTierAttempts bounds how often a hook call is re-run when the
	// settings change while it is in flight.
	DefaultTierAttempts = 3

	defaultReadTimeout  = 15 * time.Second
	defaultWriteTimeout = 15 * time.Second
	defaultIdleTimeout  = 60 * time.Second
)

// Environment overrides read by SettingsFromConfig.
const (
	EnvEnabled      = "CHARLOCK_BRIDGE_ENABLED"
	EnvHost         = "CHARLOCK_BRIDGE_HOST"
	EnvPort         = "CHARLOCK_BRIDGE_PORT"
	EnvMaxBody      = "CHARLOCK_BRIDGE_MAX_BODY"
	EnvTimeout      = "CHARLOCK_BRIDGE_TIMEOUT"
	EnvTierAttempts = "CHARLOCK_BRIDGE_TIER_ATTEMPTS"
)

// Settings captures runtime configuration for the HTTP hook bridge.
type Settings struct {
	Enabled      bool
	Host         string
	Port         int
	MaxBodyBytes int64
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// TierAttempts is how many times a before_task_enqueue call may run
	// before the tier header is left off.
	TierAttempts int
}

// DefaultSettings returns the bridge defaults used when config.yaml is silent.
func DefaultSettings() Settings {
	return Settings{
		Enabled:      true,
		Host:         DefaultHost,
		Port:         DefaultPort,
		MaxBodyBytes: DefaultMaxBodyBytes,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
		TierAttempts: DefaultTierAttempts,
	}
}

// SettingsFromConfig layers the bridge block of config.yaml and then the
// CHARLOCK_BRIDGE_* environment over the defaults. A malformed environment
// value is an error rather than a silent fallback.
func SettingsFromConfig(cfg *config.Config) (Settings, error) {
	settings := DefaultSettings()
	if cfg != nil {
		settings.merge(cfg.Project.Bridge)
	}
	if err := settings.mergeEnv(os.LookupEnv); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

func (s *Settings) merge(raw config.BridgeConfig) {
	if raw.Enabled != nil {
		s.Enabled = *raw.Enabled
	}
	if host := strings.TrimSpace(raw.Host); host != "" {
		s.Host = host
	}
	if raw.Port > 0 {
		s.Port = raw.Port
	}
	if raw.MaxBodyBytes > 0 {
		s.MaxBodyBytes = raw.MaxBodyBytes
	}
	if raw.ReadTimeout > 0 {
		s.ReadTimeout = raw.ReadTimeout
	}
	if raw.WriteTimeout > 0 {
		s.WriteTimeout = raw.WriteTimeout
	}
	if raw.IdleTimeout > 0 {
		s.IdleTimeout = raw.IdleTimeout
	}
}

type envBinding struct {
	key   string
	apply func(s *Settings, value string) error
}

var envBindings = []envBinding{
	{EnvEnabled, func(s *Settings, v string) error {
		enabled, err := strconv.ParseBool(v)
		s.Enabled = enabled
		return err
	}},
	{EnvHost, func(s *Settings, v string) error {
		s.Host = v
		return nil
	}},
	{EnvPort, func(s *Settings, v string) error {
		port, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		if port <= 0 || port > 65535 {
			return fmt.Errorf("port %d out of range", port)
		}
		s.Port = port
		return nil
	}},
	{EnvMaxBody, func(s *Settings, v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return err
		}
		if n <= 0 {
			return fmt.Errorf("must be positive")
		}
		s.MaxBodyBytes = n
		return nil
	}},
	{EnvTimeout, func(s *Settings, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		if d <= 0 {
			return fmt.Errorf("must be positive")
		}
		s.ReadTimeout, s.WriteTimeout = d, d
		return nil
	}},
	{EnvTierAttempts, func(s *Settings, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		if n < 1 {
			return fmt.Errorf("must be at least 1")
		}
		s.TierAttempts = n
		return nil
	}},
}

func (s *Settings) mergeEnv(lookup func(string) (string, bool)) error {
	for _, b := range envBindings {
		value, ok := lookup(b.key)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		if err := b.apply(s, strings.TrimSpace(value)); err != nil {
			return fmt.Errorf("eventbridge: %s=%q: %w", b.key, value, err)
		}
	}
	return nil
}

// Address returns the TCP bind address in host:port form.
func (s Settings) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
