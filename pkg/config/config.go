package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/lucid-vigil/hostwatch/pkg/baseline"
	"github.com/spf13/viper"
)

// Config is the top-level configuration struct for the application.
// It is loaded once at startup and never modified afterwards.
// Tags are used by Viper to map YAML keys to struct fields.
type Config struct {
	LogLevel   string           `mapstructure:"log_level"`
	LogFile    string           `mapstructure:"log_file"`
	APIPort    string           `mapstructure:"api_port"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Actions    ActionsConfig    `mapstructure:"actions"`
	ThreatFeed ThreatFeedConfig `mapstructure:"threat_feed"`
	Display    DisplayConfig    `mapstructure:"display"`
}

// MonitoringConfig controls sampling, baseline learning and detection.
type MonitoringConfig struct {
	WindowSize        int           `mapstructure:"window_size"`
	Interval          time.Duration `mapstructure:"interval"`
	AnomalyThreshold  float64       `mapstructure:"anomaly_threshold"`
	MonitoredHosts    []string      `mapstructure:"monitored_hosts"`
	BaselineFile      string        `mapstructure:"baseline_file"`
	SimulateFallbacks bool          `mapstructure:"simulate_fallbacks"`
	AuthLogPaths      []string      `mapstructure:"auth_log_paths"`
	FallbackGateway   string        `mapstructure:"fallback_gateway"`
}

// ActionsConfig holds the global configuration for all remedial actions.
type ActionsConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	HighTempThreshold float64       `mapstructure:"high_temp_threshold"`
	Cooldown          time.Duration `mapstructure:"cooldown"`
}

// ThreatFeedConfig lists where flagged addresses come from.
type ThreatFeedConfig struct {
	Interval       time.Duration `mapstructure:"interval"`
	Timeout        time.Duration `mapstructure:"timeout"`
	Sources        []FeedSource  `mapstructure:"sources"`
	BlocklistFiles []string      `mapstructure:"blocklist_files"`
	WatchFiles     bool          `mapstructure:"watch_files"`
}

// FeedSource is a remote plain-text blocklist.
type FeedSource struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

// DisplayConfig is passed through to the serving layer untouched.
type DisplayConfig struct {
	StatVisibility map[string]bool `mapstructure:"stat_visibility"`
}

// LoadConfig reads the configuration from config.yaml in the working
// directory or /etc/hostwatch/, applying defaults and HOSTWATCH_* environment
// overrides.
func LoadConfig() (*Config, error) {
	return LoadConfigFrom("")
}

// LoadConfigFrom behaves like LoadConfig but reads an explicit file when path
// is not empty.
func LoadConfigFrom(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config") // config.yaml
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/hostwatch/")
	}

	setDefaults(v)

	v.SetEnvPrefix("HOSTWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("api_port", "5001")

	v.SetDefault("monitoring.window_size", 60)
	v.SetDefault("monitoring.interval", 5*time.Second)
	v.SetDefault("monitoring.anomaly_threshold", 3.0)
	v.SetDefault("monitoring.monitored_hosts", []string{"8.8.8.8", "1.1.1.1"})
	v.SetDefault("monitoring.baseline_file", "data/baseline.json")
	v.SetDefault("monitoring.simulate_fallbacks", true)
	v.SetDefault("monitoring.auth_log_paths", []string{"/var/log/auth.log", "/var/log/secure", "/var/log/messages"})
	v.SetDefault("monitoring.fallback_gateway", "192.168.1.1")

	v.SetDefault("actions.enabled", false) // Actions disabled by default
	v.SetDefault("actions.high_temp_threshold", 80.0)
	v.SetDefault("actions.cooldown", 10*time.Minute)

	v.SetDefault("threat_feed.interval", 1800*time.Second)
	v.SetDefault("threat_feed.timeout", 30*time.Second)
	v.SetDefault("threat_feed.watch_files", true)

	v.SetDefault("display.stat_visibility", map[string]bool{
		"cpu": true, "ram": true, "disk": true, "temp": true,
		"ping": true, "net": true, "fail": true,
	})
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	// A smaller window never reaches the sample count a baseline needs.
	if c.Monitoring.WindowSize < baseline.MinSamples {
		return fmt.Errorf("monitoring.window_size must be at least %d, got %d", baseline.MinSamples, c.Monitoring.WindowSize)
	}
	if c.Monitoring.Interval <= 0 {
		return fmt.Errorf("monitoring.interval must be positive, got %s", c.Monitoring.Interval)
	}
	if c.Monitoring.AnomalyThreshold <= 0 {
		return fmt.Errorf("monitoring.anomaly_threshold must be positive, got %v", c.Monitoring.AnomalyThreshold)
	}
	if c.ThreatFeed.Interval <= 0 {
		return fmt.Errorf("threat_feed.interval must be positive, got %s", c.ThreatFeed.Interval)
	}
	return nil
}
