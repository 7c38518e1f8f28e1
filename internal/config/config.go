package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kballard/go-shellquote"

	"github.com/firefly-engineering/edgerelay/internal/errors"
)

const (
	DefaultListen       = ":8000"
	DefaultRuntime      = "process"
	DefaultInstancePort = 8080
	DefaultSleepAfter   = 30 * time.Second
	DefaultStartTimeout = 30 * time.Second

	// ServerPortKey carries the instance listening port into the backend.
	ServerPortKey = "SERVER_PORT"

	envPrefix = "EDGERELAY_"
)

// RequiredKeys are the configuration entries every backend start needs.
var RequiredKeys = []string{
	"SMTP_HOST",
	"SMTP_PORT",
	"SMTP_USERNAME",
	"SMTP_PASSWORD",
	"RECIPIENT_EMAIL",
	"API_KEY",
}

// Mapping is the set of key/value entries injected into an instance at start.
type Mapping map[string]string

// Clone returns an independent copy of the mapping.
func (m Mapping) Clone() Mapping {
	out := make(Mapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Equal reports whether both mappings hold the same entries.
func (m Mapping) Equal(other Mapping) bool {
	if len(m) != len(other) {
		return false
	}
	for k, v := range m {
		if ov, ok := other[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Environ renders the mapping as sorted KEY=VALUE pairs.
func (m Mapping) Environ() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+m[k])
	}
	return env
}

// Validate checks that every required entry is present and non-empty.
// Values are passed through verbatim and never format-checked.
func (m Mapping) Validate() error {
	var missing []string
	for _, k := range RequiredKeys {
		if m[k] == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return errors.ConfigError(fmt.Sprintf("missing required configuration: %s", strings.Join(missing, ", ")), nil)
	}
	return nil
}

// Duration is a time.Duration that decodes from strings such as "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Settings holds the router configuration.
type Settings struct {
	Listen       string   `toml:"listen"`
	Runtime      string   `toml:"runtime"`
	InstancePort int      `toml:"instance_port"`
	SleepAfter   Duration `toml:"sleep_after"`
	StartTimeout Duration `toml:"start_timeout"`
	Command      string   `toml:"command"`
	Image        string   `toml:"image"`
	StateDir     string   `toml:"state_dir"`
	ReadyPath    string   `toml:"ready_path"`
	AccessLog    bool     `toml:"access_log"`

	// HealthInterval enables periodic probing of the running instance
	// when positive.
	HealthInterval   Duration `toml:"health_interval"`
	SuspendUnhealthy bool     `toml:"suspend_unhealthy"`

	Backend map[string]string `toml:"backend"`
}

// Defaults returns settings with every optional value filled in.
func Defaults() *Settings {
	return &Settings{
		Listen:       DefaultListen,
		Runtime:      DefaultRuntime,
		InstancePort: DefaultInstancePort,
		SleepAfter:   Duration{DefaultSleepAfter},
		StartTimeout: Duration{DefaultStartTimeout},
		Backend:      map[string]string{},
	}
}

// Load reads settings like Read and validates them.
func Load(path string) (*Settings, error) {
	s, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Read reads settings from an optional TOML file and overlays environment
// variables on top. An empty path skips the file. The result is not
// validated, so commands that only inspect a running instance can work
// without the backend credentials.
func Read(path string) (*Settings, error) {
	s := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.ConfigError("failed to read config file", err)
		}
		if _, err := toml.Decode(string(data), s); err != nil {
			return nil, errors.ConfigError(fmt.Sprintf("failed to parse %s", filepath.Base(path)), err)
		}
		if s.Backend == nil {
			s.Backend = map[string]string{}
		}
	}

	if err := s.applyEnv(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Settings) applyEnv() error {
	for _, k := range RequiredKeys {
		if v, ok := os.LookupEnv(k); ok {
			s.Backend[k] = v
		}
	}

	if v, ok := lookupEnv("LISTEN"); ok {
		s.Listen = v
	}
	if v, ok := lookupEnv("RUNTIME"); ok {
		s.Runtime = v
	}
	if v, ok := lookupEnv("INSTANCE_PORT"); ok {
		p, err := strconv.Atoi(v)
		if err != nil {
			return errors.ConfigError(envPrefix+"INSTANCE_PORT must be an integer", err)
		}
		s.InstancePort = p
	}
	if v, ok := lookupEnv("SLEEP_AFTER"); ok {
		if err := s.SleepAfter.UnmarshalText([]byte(v)); err != nil {
			return errors.ConfigError(envPrefix+"SLEEP_AFTER must be a duration", err)
		}
	}
	if v, ok := lookupEnv("START_TIMEOUT"); ok {
		if err := s.StartTimeout.UnmarshalText([]byte(v)); err != nil {
			return errors.ConfigError(envPrefix+"START_TIMEOUT must be a duration", err)
		}
	}
	if v, ok := lookupEnv("COMMAND"); ok {
		s.Command = v
	}
	if v, ok := lookupEnv("IMAGE"); ok {
		s.Image = v
	}
	if v, ok := lookupEnv("STATE_DIR"); ok {
		s.StateDir = v
	}
	if v, ok := lookupEnv("READY_PATH"); ok {
		s.ReadyPath = v
	}
	if v, ok := lookupEnv("ACCESS_LOG"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.ConfigError(envPrefix+"ACCESS_LOG must be a boolean", err)
		}
		s.AccessLog = b
	}
	if v, ok := lookupEnv("HEALTH_INTERVAL"); ok {
		if err := s.HealthInterval.UnmarshalText([]byte(v)); err != nil {
			return errors.ConfigError(envPrefix+"HEALTH_INTERVAL must be a duration", err)
		}
	}
	if v, ok := lookupEnv("SUSPEND_UNHEALTHY"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.ConfigError(envPrefix+"SUSPEND_UNHEALTHY must be a boolean", err)
		}
		s.SuspendUnhealthy = b
	}
	return nil
}

func lookupEnv(name string) (string, bool) {
	return os.LookupEnv(envPrefix + name)
}

// Validate checks router settings and the backend mapping.
func (s *Settings) Validate() error {
	if s.Listen == "" {
		return errors.ConfigError("listen address is required", nil)
	}
	if s.InstancePort < 1 || s.InstancePort > 65535 {
		return errors.ConfigError(fmt.Sprintf("instance port must be between 1 and 65535 (got %d)", s.InstancePort), nil)
	}
	if s.SleepAfter.Duration <= 0 {
		return errors.ConfigError("sleep_after must be positive", nil)
	}
	if s.StartTimeout.Duration <= 0 {
		return errors.ConfigError("start_timeout must be positive", nil)
	}
	if s.HealthInterval.Duration < 0 {
		return errors.ConfigError("health_interval must not be negative", nil)
	}
	if s.ReadyPath != "" && !strings.HasPrefix(s.ReadyPath, "/") {
		return errors.ConfigError(fmt.Sprintf("ready_path must start with / (got %q)", s.ReadyPath), nil)
	}

	switch s.Runtime {
	case "process":
		args, err := s.CommandArgs()
		if err != nil {
			return err
		}
		if len(args) == 0 {
			return errors.ConfigError("command is required for the process runtime", nil)
		}
	case "docker":
		if s.Image == "" {
			return errors.ConfigError("image is required for the docker runtime", nil)
		}
	case "mock":
	default:
		return errors.ConfigError(fmt.Sprintf("unknown runtime %q (must be process, docker, or mock)", s.Runtime), nil)
	}

	return s.Mapping().Validate()
}

// CommandArgs splits the backend command line using shell quoting rules.
func (s *Settings) CommandArgs() ([]string, error) {
	args, err := shellquote.Split(s.Command)
	if err != nil {
		return nil, errors.ConfigError("failed to parse command", err)
	}
	return args, nil
}

// Mapping returns the configuration mapping injected into every instance:
// the required entries copied verbatim plus SERVER_PORT.
func (s *Settings) Mapping() Mapping {
	m := make(Mapping, len(RequiredKeys)+1)
	for _, k := range RequiredKeys {
		if v, ok := s.Backend[k]; ok {
			m[k] = v
		}
	}
	m[ServerPortKey] = strconv.Itoa(s.InstancePort)
	return m
}

// Redacted returns the mapping with secret values masked, for display.
func (m Mapping) Redacted() Mapping {
	out := m.Clone()
	for _, k := range []string{"SMTP_PASSWORD", "API_KEY"} {
		if v, ok := out[k]; ok && v != "" {
			out[k] = "********"
		}
	}
	return out
}
