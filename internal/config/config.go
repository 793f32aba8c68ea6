package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables read by Load. They override values from the file.
const (
	EnvURL           = "CANARY_URL"
	EnvPayload       = "CANARY_PAYLOAD"
	EnvTimeout       = "CANARY_TIMEOUT"
	EnvUserAgent     = "CANARY_USER_AGENT"
	EnvStepName      = "CANARY_STEP_NAME"
	EnvServerAddress = "CANARY_SERVER_ADDRESS"
	EnvLogLevel      = "CANARY_LOG_LEVEL"
	EnvLogDir        = "CANARY_LOG_DIR"
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultUserAgent = "AWS-Synthetics-Canary"
	DefaultStepName  = "check_lambda_function_url"
	DefaultAddress   = ":8080"
	DefaultLogLevel  = "info"
)

// Configuration errors. Load wraps them, so match with errors.Is.
var (
	ErrMissingURL     = errors.New("environment variable " + EnvURL + " is not set")
	ErrMissingPayload = errors.New("environment variable " + EnvPayload + " is not set")
	ErrInvalidPayload = errors.New("invalid JSON in " + EnvPayload)
	ErrInvalidURL     = errors.New("invalid " + EnvURL)
	ErrInvalidTimeout = errors.New("invalid " + EnvTimeout)
)

// Duration is a time.Duration that unmarshals from a YAML string like "10s".
type Duration struct {
	time.Duration
	set bool
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(expandEnv(s))
	if err != nil {
		return err
	}
	d.Duration = dur
	d.set = true
	return nil
}

// CanaryConfig describes the probe target.
type CanaryConfig struct {
	URL       string   `yaml:"url"`
	Payload   string   `yaml:"payload"`
	Timeout   Duration `yaml:"timeout"`
	UserAgent string   `yaml:"user_agent"`
	StepName  string   `yaml:"step_name"`

	// Body is Payload validated and compacted, ready to send.
	Body []byte `yaml:"-"`
}

// ServerConfig holds trigger server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// LoggingConfig holds logger settings. An empty Dir disables file output.
type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

// Config is the root application configuration.
type Config struct {
	Canary  CanaryConfig  `yaml:"canary"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
}

// Load builds the configuration from defaults, the optional YAML file at
// path and the environment, in that order, then validates it. An empty path
// means environment only.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
		expandFields(cfg)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	if err := cfg.Canary.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&cfg.Canary.URL, EnvURL)
	setString(&cfg.Canary.Payload, EnvPayload)
	setString(&cfg.Canary.UserAgent, EnvUserAgent)
	setString(&cfg.Canary.StepName, EnvStepName)
	setString(&cfg.Server.Address, EnvServerAddress)
	setString(&cfg.Logging.Level, EnvLogLevel)
	setString(&cfg.Logging.Dir, EnvLogDir)

	if v := os.Getenv(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w %q: %v", ErrInvalidTimeout, v, err)
		}
		cfg.Canary.Timeout = Duration{Duration: d, set: true}
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if !cfg.Canary.Timeout.set {
		cfg.Canary.Timeout = Duration{Duration: DefaultTimeout}
	}
	if cfg.Canary.UserAgent == "" {
		cfg.Canary.UserAgent = DefaultUserAgent
	}
	if cfg.Canary.StepName == "" {
		cfg.Canary.StepName = DefaultStepName
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = DefaultAddress
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
}

func (c *CanaryConfig) validate() error {
	if c.URL == "" {
		return ErrMissingURL
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("%w: %q must be an absolute https URL", ErrInvalidURL, c.URL)
	}

	if c.Payload == "" {
		return ErrMissingPayload
	}
	var v any
	if err := json.Unmarshal([]byte(c.Payload), &v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	// Compact keeps the caller's key order; re-marshaling v would sort it.
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(c.Payload)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	c.Body = buf.Bytes()

	if c.Timeout.Duration <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %v", ErrInvalidTimeout, c.Timeout.Duration)
	}
	return nil
}

// expandFields substitutes ${VAR} references in the file's string settings.
// The payload is sent as written, so a "$" in it is never expanded.
func expandFields(cfg *Config) {
	for _, p := range []*string{
		&cfg.Canary.URL,
		&cfg.Canary.UserAgent,
		&cfg.Canary.StepName,
		&cfg.Server.Address,
		&cfg.Logging.Level,
		&cfg.Logging.Dir,
	} {
		*p = expandEnv(*p)
	}
}

func expandEnv(s string) string {
	return os.Expand(s, func(key string) string {
		return os.Getenv(key)
	})
}
