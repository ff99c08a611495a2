// Package config handles loading and validating the jst configuration from
// YAML files with environment variable substitution.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/donaldgifford/jushuitan-go/pkg/jushuitan"
	"github.com/donaldgifford/jushuitan-go/pkg/jushuitan/component"
	"github.com/donaldgifford/jushuitan-go/pkg/tokencache"
)

// Config is the top-level configuration.
type Config struct {
	Jushuitan JushuitanConfig   `yaml:"jushuitan"`
	Cache     tokencache.Config `yaml:"cache"`
	Logging   LoggingConfig     `yaml:"logging"`
	Tracing   TracingConfig     `yaml:"tracing"`
	Notify    NotifyConfig      `yaml:"notify"`
	Server    ServerConfig      `yaml:"server"`
}

// JushuitanConfig defines the open API credentials and client settings.
// Credentials may be left empty here and supplied by flags or environment.
type JushuitanConfig struct {
	AppKey    string            `yaml:"app_key"`
	AppSecret string            `yaml:"app_secret"`
	BaseURL   string            `yaml:"base_url"  validate:"required,url"`
	Timeout   time.Duration     `yaml:"timeout"   validate:"gt=0"`
	TokenTTL  time.Duration     `yaml:"token_ttl" validate:"gt=0"`
	LogTokens bool              `yaml:"log_tokens"`
	Headers   map[string]string `yaml:"headers"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"  validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// TracingConfig defines OTLP trace export. Disabled when Endpoint is empty.
type TracingConfig struct {
	Endpoint    string  `yaml:"endpoint"     validate:"omitempty,hostname_port"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio" validate:"gte=0,lte=1"`
}

// Enabled reports whether traces are exported.
func (t TracingConfig) Enabled() bool {
	return t.Endpoint != ""
}

// NotifyConfig defines where scheduled refresh failures are reported.
type NotifyConfig struct {
	DiscordWebhookURL string `yaml:"discord_webhook_url" validate:"omitempty,url"`
}

// ServerConfig defines the mock server's HTTP settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"          validate:"gt=0,lte=65535"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ClientOptions returns the client options implied by the configuration.
func (j JushuitanConfig) ClientOptions() []jushuitan.Option {
	opts := []jushuitan.Option{
		jushuitan.WithBaseURL(j.BaseURL),
		jushuitan.WithTimeout(j.Timeout),
	}
	if len(j.Headers) > 0 {
		opts = append(opts, jushuitan.WithHeaders(j.Headers))
	}
	return opts
}

// ComponentConfig returns the component configuration for these settings.
func (j JushuitanConfig) ComponentConfig(extra ...jushuitan.Option) component.Config {
	return component.Config{
		AppKey:        j.AppKey,
		AppSecret:     j.AppSecret,
		TokenTTL:      j.TokenTTL,
		LogTokens:     j.LogTokens,
		ClientOptions: append(j.ClientOptions(), extra...),
	}
}

// Load reads and parses a YAML config file, performing environment variable
// substitution and validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // config path from trusted CLI flag
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the YAML content.
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// DefaultTokenFile is the file cache location under the user's home.
func DefaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".jst-tokens.yaml"
	}
	return filepath.Join(home, ".config", "jst", "tokens.yaml")
}

func applyDefaults(cfg *Config) {
	applyJushuitanDefaults(&cfg.Jushuitan)
	applyCacheDefaults(&cfg.Cache)
	applyLoggingDefaults(&cfg.Logging)
	applyTracingDefaults(&cfg.Tracing)
	applyServerDefaults(&cfg.Server)
}

func applyJushuitanDefaults(j *JushuitanConfig) {
	if j.BaseURL == "" {
		j.BaseURL = jushuitan.DefaultBaseURL
	}
	if j.Timeout == 0 {
		j.Timeout = jushuitan.DefaultTimeout
	}
	if j.TokenTTL == 0 {
		j.TokenTTL = component.DefaultTokenTTL
	}
}

func applyCacheDefaults(c *tokencache.Config) {
	if c.Backend == "" {
		c.Backend = tokencache.BackendFile
	}
	if c.File.Path == "" {
		c.File.Path = DefaultTokenFile()
	}
	if c.NATS.Bucket == "" {
		c.NATS.Bucket = tokencache.DefaultNATSBucket
	}
}

func applyLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "text"
	}
}

func applyTracingDefaults(t *TracingConfig) {
	if t.SampleRatio == 0 {
		t.SampleRatio = 1
	}
}

func applyServerDefaults(s *ServerConfig) {
	if s.Host == "" {
		s.Host = "127.0.0.1"
	}
	if s.Port == 0 {
		s.Port = 8089
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 30 * time.Second
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = 30 * time.Second
	}
}

// Validate checks struct tags and backend-specific requirements. All
// problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if err := structValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Errorf("%s: failed %q check (got %v)", fieldPath(fe), fe.Tag(), fe.Value()))
			}
		} else {
			errs = append(errs, err)
		}
	}

	switch c.Cache.Backend {
	case tokencache.BackendFile:
		if c.Cache.File.Path == "" {
			errs = append(errs, errors.New("cache.file.path is required when backend is file"))
		}
	case tokencache.BackendMemory, tokencache.BackendNone:
	case tokencache.BackendRedis:
		if c.Cache.Redis.Addr == "" {
			errs = append(errs, errors.New("cache.redis.addr is required when backend is redis"))
		}
	case tokencache.BackendNATS:
		if c.Cache.NATS.URL == "" {
			errs = append(errs, errors.New("cache.nats.url is required when backend is nats"))
		}
	case tokencache.BackendPostgres:
		if c.Cache.Postgres.DSN == "" {
			errs = append(errs, errors.New("cache.postgres.dsn is required when backend is postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf(
			"cache.backend must be one of: file, memory, redis, nats, postgres, none (got %q)",
			c.Cache.Backend,
		))
	}

	return errors.Join(errs...)
}

func structValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// fieldPath turns "Config.jushuitan.base_url" into "jushuitan.base_url".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
