// Package config loads and validates watcher configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"restockwatch/internal/watch"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Watch   WatchConfig   `mapstructure:"watch"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	State   StateConfig   `mapstructure:"state"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// WatchConfig names the product page to check and how to identify to it.
type WatchConfig struct {
	URL       string `mapstructure:"url"`
	Profile   string `mapstructure:"profile"`
	UserAgent string `mapstructure:"user_agent"`
}

// HTTPConfig configures fetch timeout and retry behavior.
type HTTPConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	BackoffInitial time.Duration `mapstructure:"backoff_initial"`
	BackoffMax     time.Duration `mapstructure:"backoff_max"`
}

// StateConfig sets the persisted-state location.
type StateConfig struct {
	File string `mapstructure:"file"`
}

// NotifyConfig holds the outbound webhook settings. An empty WebhookURL means
// notifications are impossible; the run still completes.
type NotifyConfig struct {
	WebhookURL string        `mapstructure:"webhook_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// defaultWatchURL is the page the watcher was originally built for; it is
// only a default, overridable by flag, file, or environment.
const defaultWatchURL = "https://www.japanblue-jeans.com/en_US/archive/" +
	"j414-14oz-black-classic-straight-selvedge-jeans/JBJE14145S_BLK.html" +
	"?dwvar_JBJE14145S__BLK_color=BLK&dwvar_JBJE14145S__BLK_size=28" +
	"&pid=JBJE14145A_BLK_28&quantity=1"

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Load builds a Config from the optional config file and the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RESTOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Accept the webhook under the name the Discord ecosystem uses too.
	if err := v.BindEnv("notify.webhook_url", "RESTOCK_NOTIFY_WEBHOOK_URL", "DISCORD_WEBHOOK_URL"); err != nil {
		return Config{}, fmt.Errorf("bind webhook env: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("watch.url", defaultWatchURL)
	v.SetDefault("watch.profile", string(watch.ProfileGeneric))
	v.SetDefault("watch.user_agent", defaultUserAgent)
	v.SetDefault("http.timeout", "30s")
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_initial", "1s")
	v.SetDefault("http.backoff_max", "8s")
	v.SetDefault("state.file", "restock_state.json")
	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.timeout", "10s")
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	target, err := url.Parse(c.Watch.URL)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return fmt.Errorf("watch.url must be an absolute http(s) URL, got %q", c.Watch.URL)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return fmt.Errorf("watch.url scheme must be http or https, got %q", target.Scheme)
	}
	if _, err := watch.ParseProfile(c.Watch.Profile); err != nil {
		return err
	}
	if c.Watch.UserAgent == "" {
		return fmt.Errorf("watch.user_agent must be set")
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be > 0")
	}
	if c.HTTP.MaxRetries <= 0 {
		return fmt.Errorf("http.max_retries must be > 0")
	}
	if c.HTTP.BackoffInitial <= 0 || c.HTTP.BackoffMax < c.HTTP.BackoffInitial {
		return fmt.Errorf("http backoff window %v..%v is invalid",
			c.HTTP.BackoffInitial, c.HTTP.BackoffMax)
	}
	if c.State.File == "" {
		return fmt.Errorf("state.file must be set")
	}
	if c.Notify.Timeout <= 0 {
		return fmt.Errorf("notify.timeout must be > 0")
	}
	return nil
}

// Profile returns the parsed watch profile. Call after Validate.
func (c Config) Profile() watch.Profile {
	p, err := watch.ParseProfile(c.Watch.Profile)
	if err != nil {
		return watch.ProfileGeneric
	}
	return p
}
