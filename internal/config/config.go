package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	DB     DBConfig     `mapstructure:"db"`
	Feed   FeedConfig   `mapstructure:"feed"`
	Scan   ScanConfig   `mapstructure:"scan"`
	Deals  DealsConfig  `mapstructure:"deals"`
	Notify NotifyConfig `mapstructure:"notify"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
	// File is an optional log file written alongside stdout.
	File string `mapstructure:"file"`
}

type DBConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

type FeedConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
	MaxPages  int           `mapstructure:"max_pages"`
	PageDelay time.Duration `mapstructure:"page_delay"`
}

type ScanConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Schedule is a cron spec; the default scans once an hour.
	Schedule string   `mapstructure:"schedule"`
	Regions  []string `mapstructure:"regions"`
	// Workers bounds the per-listing evaluation fan-out within one cycle.
	Workers int `mapstructure:"workers"`
}

type DealsConfig struct {
	DefaultThresholdPct float64 `mapstructure:"default_threshold_pct"`
	// RenotifyMarginPct is the insignificance margin: a pending deal whose
	// recomputed percent-below moved less than this is not re-emitted.
	RenotifyMarginPct float64 `mapstructure:"renotify_margin_pct"`
}

type NotifyConfig struct {
	// Frequency is "immediate" or "digest".
	Frequency      string        `mapstructure:"frequency"`
	DigestInterval time.Duration `mapstructure:"digest_interval"`

	QuietHours QuietHoursConfig `mapstructure:"quiet_hours"`
	Desktop    DesktopConfig    `mapstructure:"desktop"`
	Email      EmailConfig      `mapstructure:"email"`
	Webhook    WebhookConfig    `mapstructure:"webhook"`
}

type QuietHoursConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Start   string `mapstructure:"start"`
	End     string `mapstructure:"end"`
}

type DesktopConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Command is the toast helper invoked with title and body arguments.
	Command string `mapstructure:"command"`
}

type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	To       string `mapstructure:"to"`
}

type WebhookConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("log.file", "")
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "mgmonitor.db")
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("feed.base_url", "https://modulargrid.net")
	v.SetDefault("feed.timeout", "30s")
	v.SetDefault("feed.max_pages", 10)
	v.SetDefault("feed.page_delay", "1s")
	v.SetDefault("scan.enabled", true)
	v.SetDefault("scan.schedule", "@every 1h")
	v.SetDefault("scan.regions", []string{"All"})
	v.SetDefault("scan.workers", 4)
	v.SetDefault("deals.default_threshold_pct", 15.0)
	v.SetDefault("deals.renotify_margin_pct", 1.0)
	v.SetDefault("notify.frequency", "immediate")
	v.SetDefault("notify.digest_interval", "1h")
	v.SetDefault("notify.quiet_hours.enabled", false)
	v.SetDefault("notify.quiet_hours.start", "22:00")
	v.SetDefault("notify.quiet_hours.end", "08:00")
	v.SetDefault("notify.desktop.enabled", true)
	v.SetDefault("notify.desktop.command", "notify-send")
	v.SetDefault("notify.email.enabled", false)
	v.SetDefault("notify.email.smtp_port", 587)
	v.SetDefault("notify.webhook.enabled", false)
	v.SetDefault("notify.webhook.timeout", "10s")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
