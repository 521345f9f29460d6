package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	DB        DBConfig        `mapstructure:"db"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Events    EventsConfig    `mapstructure:"events"`
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
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type SchedulerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Seeds the interval of the sync_all_sources job the first time the
	// service boots against an empty jobs table.
	SyncAllIntervalSeconds int `mapstructure:"sync_all_interval_seconds"`
}

type SyncConfig struct {
	MaxPages     int `mapstructure:"max_pages"`
	MaxKeep      int `mapstructure:"max_keep"`
	DefaultQuota int `mapstructure:"default_quota"`
}

type ProvidersConfig struct {
	NewsData NewsDataConfig `mapstructure:"newsdata"`
}

type NewsDataConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RequestsPerSec float64       `mapstructure:"requests_per_sec"`
	Burst          int           `mapstructure:"burst"`
}

type EventsConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CS")
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
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.sync_all_interval_seconds", 1800)
	v.SetDefault("sync.max_pages", 3)
	v.SetDefault("sync.max_keep", 200)
	v.SetDefault("sync.default_quota", 180)
	v.SetDefault("providers.newsdata.base_url", "https://newsdata.io")
	v.SetDefault("providers.newsdata.timeout", "15s")
	v.SetDefault("providers.newsdata.requests_per_sec", 1.0)
	v.SetDefault("providers.newsdata.burst", 2)
	v.SetDefault("events.base_url", "")
	v.SetDefault("events.api_key", "")
	v.SetDefault("events.timeout", "2s")

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
