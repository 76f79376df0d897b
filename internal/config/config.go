package config

import (
	"os"
	"time"

	"codeberg.org/frostwatch/freezerctl/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultInterval    = 5
	DefaultLogLevel    = "info"
	DefaultMaxAttempts = 3
	DefaultBackoffMS   = 500
	DefaultBackupDays  = 30
	DefaultPlotWindow  = 360
	DefaultResendMin   = 30
	DefaultMuxAddr     = 0x70
)

// Threshold is the safe range for one measured quantity. A nil bound is
// unchecked.
type Threshold struct {
	Min *float64 `mapstructure:"min"`
	Max *float64 `mapstructure:"max"`
}

// Sensor addresses one SHT3x, behind a TCA9548A multiplexer channel or, when
// the channel is omitted, directly on the bus.
type Sensor struct {
	Name    string `mapstructure:"name"`
	Channel *int   `mapstructure:"channel"`
}

type Retry struct {
	MaxAttempts int `mapstructure:"max_attempts"`
	BackoffMS   int `mapstructure:"backoff_ms"`
}

type Bus struct {
	Name    string `mapstructure:"name"`
	MuxAddr uint16 `mapstructure:"mux_addr"`
}

type Heater struct {
	Enabled     bool `mapstructure:"enabled"`
	IntervalMin int  `mapstructure:"interval_min"`
	DurationSec int  `mapstructure:"duration_sec"`
}

// Display configures the SSD1306 panel geometry. The driver fixes the I2C
// address at 0x3C, so only the dimensions are configurable.
type Display struct {
	Enabled bool `mapstructure:"enabled"`
	Width   int  `mapstructure:"width"`
	Height  int  `mapstructure:"height"`
}

type Log struct {
	Enabled    bool   `mapstructure:"enabled"`
	Dir        string `mapstructure:"dir"`
	BackupDays int    `mapstructure:"backup_days"`
}

type Plot struct {
	Enabled     bool   `mapstructure:"enabled"`
	Path        string `mapstructure:"path"`
	Window      int    `mapstructure:"window"`
	RenderEvery int    `mapstructure:"render_every"`
}

type MQTT struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	Topic    string `mapstructure:"topic"`
	ClientID string `mapstructure:"client_id"`
}

type Email struct {
	Enabled   bool     `mapstructure:"enabled"`
	Host      string   `mapstructure:"host"`
	Port      int      `mapstructure:"port"`
	User      string   `mapstructure:"user"`
	Password  string   `mapstructure:"password"`
	From      string   `mapstructure:"from"`
	To        []string `mapstructure:"to"`
	ResendMin int      `mapstructure:"resend_min"`
}

type Config struct {
	Interval    int                  `mapstructure:"interval"`
	LogLevel    string               `mapstructure:"log_level"`
	Simulate    bool                 `mapstructure:"simulate"`
	Retry       Retry                `mapstructure:"retry"`
	Thresholds  map[string]Threshold `mapstructure:"thresholds"`
	Bus         Bus                  `mapstructure:"bus"`
	Sensors     []Sensor             `mapstructure:"sensors"`
	Heater      Heater               `mapstructure:"heater"`
	Display     Display              `mapstructure:"display"`
	Log         Log                  `mapstructure:"log"`
	Plot        Plot                 `mapstructure:"plot"`
	MQTT        MQTT                 `mapstructure:"mqtt"`
	Email       Email                `mapstructure:"email"`
	Telemetry   bool                 `mapstructure:"telemetry"`
	TelemetryDB string               `mapstructure:"telemetry_db"`
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Interval) * time.Second
}

func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.Retry.BackoffMS) * time.Millisecond
}

// Load reads configuration from the YAML config file, the environment and
// command line flags, in increasing order of precedence. The config file is
// located via --config, FREEZERCTL_CONFIG, or the default search paths.
func Load() (*Config, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("freezerctl", pflag.ContinueOnError)
	configFlag := fs.String("config", "", "Path to config file")
	fs.Int("interval", DefaultInterval, "Seconds between sensor polls")
	fs.String("log-level", DefaultLogLevel, "Log level (debug, info, warn, error)")
	fs.Bool("simulate", false, "Use a simulated sensor instead of hardware")

	if err := fs.Parse(args); err != nil {
		return nil, errors.Wrap(errors.ErrBindFlags, err)
	}

	v := viper.New()
	v.SetDefault("interval", DefaultInterval)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("retry.max_attempts", DefaultMaxAttempts)
	v.SetDefault("retry.backoff_ms", DefaultBackoffMS)
	v.SetDefault("bus.mux_addr", DefaultMuxAddr)
	v.SetDefault("heater.interval_min", 30)
	v.SetDefault("heater.duration_sec", 10)
	v.SetDefault("display.width", 128)
	v.SetDefault("display.height", 32)
	v.SetDefault("log.backup_days", DefaultBackupDays)
	v.SetDefault("plot.window", DefaultPlotWindow)
	v.SetDefault("plot.render_every", 12)
	v.SetDefault("email.port", 465)
	v.SetDefault("email.resend_min", DefaultResendMin)

	v.SetEnvPrefix("FREEZERCTL")
	v.AutomaticEnv()

	configPath := *configFlag
	if configPath == "" {
		configPath = os.Getenv("FREEZERCTL_CONFIG")
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("freezerctl")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/freezerctl")
		v.AddConfigPath("$HOME/.config/freezerctl")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(errors.ErrReadConfig, err)
		}
	}

	// Flags that were set explicitly override the file and environment.
	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "interval":
			v.Set("interval", f.Value.String())
		case "log-level":
			v.Set("log_level", f.Value.String())
		case "simulate":
			v.Set("simulate", f.Value.String())
		}
	})

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks invariants that would otherwise surface deep inside the
// monitor loop. Configuration errors are the only fatal error class.
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return errors.WithMessage(errors.ErrInvalidConfig, "interval must be positive")
	}
	if c.Retry.MaxAttempts < 1 {
		return errors.WithMessage(errors.ErrInvalidConfig, "retry.max_attempts must be at least 1")
	}
	if c.Retry.BackoffMS <= 0 {
		return errors.WithMessage(errors.ErrInvalidConfig, "retry.backoff_ms must be positive")
	}

	for name, t := range c.Thresholds {
		if t.Min != nil && t.Max != nil && *t.Min >= *t.Max {
			return errors.WithMessage(errors.ErrInvalidConfig,
				"threshold for "+name+": min must be below max")
		}
	}

	for _, s := range c.Sensors {
		if s.Name == "" {
			return errors.WithMessage(errors.ErrInvalidConfig, "sensor without a name")
		}
		if s.Channel != nil && (*s.Channel < 0 || *s.Channel > 7) {
			return errors.WithMessage(errors.ErrInvalidConfig,
				"sensor "+s.Name+": mux channel must be 0-7")
		}
	}

	if c.Log.Enabled && c.Log.Dir == "" {
		return errors.WithMessage(errors.ErrMissingConfig, "log.dir is required when log sink is enabled")
	}
	if c.Plot.Enabled {
		if c.Plot.Path == "" {
			return errors.WithMessage(errors.ErrMissingConfig, "plot.path is required when plot sink is enabled")
		}
		if c.Plot.Window < 2 {
			return errors.WithMessage(errors.ErrInvalidConfig, "plot.window must be at least 2")
		}
		if c.Plot.RenderEvery < 1 {
			return errors.WithMessage(errors.ErrInvalidConfig, "plot.render_every must be at least 1")
		}
	}
	if c.MQTT.Enabled && (c.MQTT.Broker == "" || c.MQTT.Topic == "") {
		return errors.WithMessage(errors.ErrMissingConfig, "mqtt.broker and mqtt.topic are required when mqtt sink is enabled")
	}
	if c.Email.Enabled {
		if c.Email.Host == "" || c.Email.From == "" || len(c.Email.To) == 0 {
			return errors.WithMessage(errors.ErrMissingConfig, "email.host, email.from and email.to are required when email alerts are enabled")
		}
	}
	if c.Telemetry && c.TelemetryDB == "" {
		return errors.WithMessage(errors.ErrMissingConfig, "telemetry_db is required when telemetry is enabled")
	}

	return nil
}
