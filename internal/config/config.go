// Package config loads and validates service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Stream    StreamConfig    `mapstructure:"stream"`
	Producer  ProducerConfig  `mapstructure:"producer"`
	Store     StoreConfig     `mapstructure:"store"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Progress  ProgressConfig  `mapstructure:"progress"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	APIKey            string        `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// HTTPConfig configures the outbound fetcher defaults.
type HTTPConfig struct {
	UserAgent      string        `mapstructure:"user_agent"`
	Timeout        time.Duration `mapstructure:"timeout"`
	AcceptLanguage string        `mapstructure:"accept_language"`
}

// SourcesConfig governs the signal gathering pipeline.
type SourcesConfig struct {
	GatherTimeout     time.Duration    `mapstructure:"gather_timeout"`
	PageMaxBytes      int64            `mapstructure:"page_max_bytes"`
	InnertubeMaxBytes int64            `mapstructure:"innertube_max_bytes"`
	CaptionMaxBytes   int64            `mapstructure:"caption_max_bytes"`
	CommentLimit      int              `mapstructure:"comment_limit"`
	HostRPS           float64          `mapstructure:"host_rps"`
	HostBurst         int              `mapstructure:"host_burst"`
	Transcript        TranscriptConfig `mapstructure:"transcript"`
}

// TranscriptConfig bounds the transcript provider race.
type TranscriptConfig struct {
	ProviderTimeout time.Duration `mapstructure:"provider_timeout"`
	RaceTimeout     time.Duration `mapstructure:"race_timeout"`
	MaxChars        int           `mapstructure:"max_chars"`
}

// HeadlessConfig configures the headless rendering fallback.
type HeadlessConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	NavTimeout  time.Duration `mapstructure:"nav_timeout"`
	MaxParallel int           `mapstructure:"max_parallel"`
}

// StreamConfig bounds a streaming session.
type StreamConfig struct {
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	GlobalTimeout     time.Duration `mapstructure:"global_timeout"`
}

// ProducerConfig configures the chat-completions text producer.
type ProducerConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
	Referer string        `mapstructure:"referer"`
	Title   string        `mapstructure:"title"`
}

// StoreConfig selects and configures summary persistence.
type StoreConfig struct {
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig controls access to the relational database.
type PostgresConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// ArchiveConfig configures asynchronous artifact archiving.
type ArchiveConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Workers     int    `mapstructure:"workers"`
	QueueDepth  int    `mapstructure:"queue_depth"`
	Driver      string `mapstructure:"driver"`
	Bucket      string `mapstructure:"bucket"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// NotifyConfig holds metadata for publish-subscribe notifications.
type NotifyConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// RateLimitConfig throttles summary requests per client.
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

// ProgressConfig tunes the progress event hub.
type ProgressConfig struct {
	BufferSize  int           `mapstructure:"buffer_size"`
	MaxBatch    int           `mapstructure:"max_batch"`
	MaxWait     time.Duration `mapstructure:"max_wait"`
	SinkTimeout time.Duration `mapstructure:"sink_timeout"`
}

// Load builds a Config from disk/environment. An empty path searches the
// usual locations and tolerates a missing file; an explicit path must exist.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SUMMARIZER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/summarizer/")
		v.AddConfigPath("$HOME/.summarizer")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
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
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_header_timeout", 5*time.Second)
	v.SetDefault("server.api_key", "")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "")
	v.SetDefault("http.user_agent", "video-summarizer/1.0 (+https://github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000)")
	v.SetDefault("http.timeout", 8*time.Second)
	v.SetDefault("http.accept_language", "en")
	v.SetDefault("sources.gather_timeout", 20*time.Second)
	v.SetDefault("sources.page_max_bytes", int64(6*1024*1024))
	v.SetDefault("sources.innertube_max_bytes", int64(3*1024*1024))
	v.SetDefault("sources.caption_max_bytes", int64(512*1024))
	v.SetDefault("sources.comment_limit", 10)
	v.SetDefault("sources.host_rps", 4.0)
	v.SetDefault("sources.host_burst", 8)
	v.SetDefault("sources.transcript.provider_timeout", 8*time.Second)
	v.SetDefault("sources.transcript.race_timeout", 12*time.Second)
	v.SetDefault("sources.transcript.max_chars", 24000)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.nav_timeout", 15*time.Second)
	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("stream.heartbeat_interval", 2500*time.Millisecond)
	v.SetDefault("stream.global_timeout", 60*time.Second)
	v.SetDefault("producer.enabled", false)
	v.SetDefault("producer.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("producer.api_key", "")
	v.SetDefault("producer.model", "openai/gpt-4o-mini")
	v.SetDefault("producer.timeout", 90*time.Second)
	v.SetDefault("producer.referer", "")
	v.SetDefault("producer.title", "")
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.postgres.dsn", "")
	v.SetDefault("store.postgres.table", "summaries")
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.workers", 2)
	v.SetDefault("archive.queue_depth", 64)
	v.SetDefault("archive.driver", "memory")
	v.SetDefault("archive.bucket", "")
	v.SetDefault("archive.prefix", "summaries")
	v.SetDefault("archive.content_type", "text/plain; charset=utf-8")
	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.project_id", "")
	v.SetDefault("notify.topic", "")
	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.rps", 0.5)
	v.SetDefault("ratelimit.burst", 3)
	v.SetDefault("progress.buffer_size", 256)
	v.SetDefault("progress.max_batch", 16)
	v.SetDefault("progress.max_wait", 250*time.Millisecond)
	v.SetDefault("progress.sink_timeout", 2*time.Second)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535")
	}
	if c.HTTP.UserAgent == "" {
		return fmt.Errorf("http.user_agent must not be empty")
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be > 0")
	}
	if c.Sources.GatherTimeout <= 0 {
		return fmt.Errorf("sources.gather_timeout must be > 0")
	}
	if c.Sources.CommentLimit <= 0 {
		return fmt.Errorf("sources.comment_limit must be > 0")
	}
	if c.Sources.PageMaxBytes <= 0 || c.Sources.InnertubeMaxBytes <= 0 || c.Sources.CaptionMaxBytes <= 0 {
		return fmt.Errorf("sources byte caps must be > 0")
	}
	t := c.Sources.Transcript
	if t.ProviderTimeout <= 0 || t.RaceTimeout <= 0 {
		return fmt.Errorf("sources.transcript timeouts must be > 0")
	}
	if t.MaxChars <= 0 {
		return fmt.Errorf("sources.transcript.max_chars must be > 0")
	}
	if t.ProviderTimeout > t.RaceTimeout {
		return fmt.Errorf("sources.transcript.provider_timeout must not exceed race_timeout")
	}
	if t.RaceTimeout > c.Sources.GatherTimeout {
		return fmt.Errorf("sources.transcript.race_timeout must not exceed sources.gather_timeout")
	}
	if c.Sources.GatherTimeout > c.Stream.GlobalTimeout {
		return fmt.Errorf("sources.gather_timeout must not exceed stream.global_timeout")
	}
	if c.Stream.HeartbeatInterval <= 0 {
		return fmt.Errorf("stream.heartbeat_interval must be > 0")
	}
	if c.Stream.HeartbeatInterval >= c.Stream.GlobalTimeout {
		return fmt.Errorf("stream.heartbeat_interval must be below stream.global_timeout")
	}
	if c.Headless.Enabled {
		if c.Headless.MaxParallel <= 0 {
			return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
		}
		if c.Headless.NavTimeout <= 0 {
			return fmt.Errorf("headless.nav_timeout must be > 0 when headless is enabled")
		}
	}
	if c.Producer.Enabled {
		if c.Producer.APIKey == "" {
			return fmt.Errorf("producer.api_key must be set when producer is enabled")
		}
		if c.Producer.Model == "" {
			return fmt.Errorf("producer.model must be set when producer is enabled")
		}
		if c.Producer.BaseURL == "" {
			return fmt.Errorf("producer.base_url must be set when producer is enabled")
		}
	}
	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.Store.Postgres.DSN == "" {
			return fmt.Errorf("store.postgres.dsn must be set for the postgres driver")
		}
	default:
		return fmt.Errorf("store.driver must be one of memory, postgres")
	}
	if c.Archive.Enabled {
		if c.Archive.Workers <= 0 {
			return fmt.Errorf("archive.workers must be > 0 when archive is enabled")
		}
		if c.Archive.QueueDepth <= 0 {
			return fmt.Errorf("archive.queue_depth must be > 0 when archive is enabled")
		}
		switch c.Archive.Driver {
		case "memory":
		case "gcs":
			if c.Archive.Bucket == "" {
				return fmt.Errorf("archive.bucket must be set for the gcs driver")
			}
		default:
			return fmt.Errorf("archive.driver must be one of memory, gcs")
		}
	}
	if c.Notify.Enabled {
		if c.Notify.ProjectID == "" || c.Notify.Topic == "" {
			return fmt.Errorf("notify.project_id and notify.topic must be set when notify is enabled")
		}
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.RPS <= 0 {
			return fmt.Errorf("ratelimit.rps must be > 0 when ratelimit is enabled")
		}
		if c.RateLimit.Burst <= 0 {
			return fmt.Errorf("ratelimit.burst must be > 0 when ratelimit is enabled")
		}
	}
	if c.Progress.BufferSize <= 0 || c.Progress.MaxBatch <= 0 {
		return fmt.Errorf("progress.buffer_size and progress.max_batch must be > 0")
	}
	if c.Progress.MaxWait <= 0 || c.Progress.SinkTimeout <= 0 {
		return fmt.Errorf("progress.max_wait and progress.sink_timeout must be > 0")
	}
	return nil
}
