package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the immutable run configuration. It is resolved once at startup
// (defaults, then config file, then STREAMPIN_* environment, then flags) and
// passed by value into each component; nothing mutates it afterwards.
type Config struct {
	// Endpoint is the resolver base URL; requests go to {Endpoint}/yt.php.
	Endpoint string `mapstructure:"endpoint"`
	// OutputRoot is the directory pinned manifests are written under.
	OutputRoot string `mapstructure:"output_root"`

	// Timeout bounds each individual HTTP attempt, not the whole batch.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries is the total number of fetch attempts per descriptor.
	MaxRetries int `mapstructure:"max_retries"`
	// RetryDelay is the base of the exponential backoff between attempts.
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	// RateLimitCooldown replaces the backoff after a 403/429 response.
	RateLimitCooldown time.Duration `mapstructure:"rate_limit_cooldown"`

	ProxyURL  string `mapstructure:"proxy_url"`
	UserAgent string `mapstructure:"user_agent"`

	// SolveChallenges enables the script-evaluating challenge transport.
	SolveChallenges bool `mapstructure:"solve_challenges"`
	// FailOnError makes the process exit non-zero when any descriptor failed.
	FailOnError bool `mapstructure:"fail_on_error"`
	// HaltOnFailure stops the batch at the first failed descriptor.
	HaltOnFailure bool `mapstructure:"halt_on_failure"`

	Logging LoggingConfig `mapstructure:"logging"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "console" or "json"
	Path   string `mapstructure:"path"`   // directory for log files, empty disables
}

// DefaultUserAgent is a browser-like identity; the resolver endpoint rejects
// obviously non-browser clients.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Load reads configuration from file, environment and flags.
// Priority: flags > environment variables > config file > defaults.
// flags may be nil when no command-line override is wanted.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("streampin")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.streampin")
	}

	v.SetEnvPrefix("STREAMPIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configuration the pipeline cannot run with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid endpoint %q", c.Endpoint)
	}
	if strings.TrimSpace(c.OutputRoot) == "" {
		return errors.New("output_root must not be empty")
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if c.MaxRetries < 1 {
		return errors.New("max_retries must be at least 1")
	}
	if c.RetryDelay <= 0 {
		return errors.New("retry_delay must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("endpoint", "https://your-endpoint.com")
	v.SetDefault("output_root", "streams")
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("max_retries", 3)
	v.SetDefault("retry_delay", 2*time.Second)
	v.SetDefault("rate_limit_cooldown", 10*time.Second)
	v.SetDefault("proxy_url", "")
	v.SetDefault("user_agent", DefaultUserAgent)
	v.SetDefault("solve_challenges", false)
	v.SetDefault("fail_on_error", true)
	v.SetDefault("halt_on_failure", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.path", "")
}

// bindFlags maps command-line flag names onto config keys. Only flags the
// user actually set take effect, so file and env values are not clobbered
// by flag defaults.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	byKey := map[string]string{
		"endpoint":            "endpoint",
		"output_root":         "output",
		"timeout":             "timeout",
		"max_retries":         "max-retries",
		"retry_delay":         "retry-delay",
		"rate_limit_cooldown": "rate-limit-cooldown",
		"proxy_url":           "proxy",
		"user_agent":          "user-agent",
		"solve_challenges":    "solve-challenges",
		"halt_on_failure":     "halt-on-failure",
		"logging.level":       "log-level",
		"logging.format":      "log-format",
		"logging.path":        "log-path",
	}
	for key, name := range byKey {
		f := flags.Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	if f := flags.Lookup("no-fail-on-error"); f != nil && f.Changed {
		v.Set("fail_on_error", false)
	}
	return nil
}
