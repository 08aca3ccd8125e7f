// Package config loads and validates OpenFeeder configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/openfeeder/internal/chunker"
	"github.com/JakeFAU/openfeeder/internal/gateway"
	"github.com/JakeFAU/openfeeder/internal/logging"
	"github.com/JakeFAU/openfeeder/internal/notify"
	"github.com/JakeFAU/openfeeder/internal/notify/sinks"
	"github.com/JakeFAU/openfeeder/internal/postgres"
	"github.com/JakeFAU/openfeeder/internal/storage/gcs"
)

// Backend names accepted by the pluggable sections.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendLocal    = "local"
	BackendGCS      = "gcs"
	BackendPubSub   = "pubsub"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig    `mapstructure:"server"`
	Site       gateway.Site    `mapstructure:"site"`
	Auth       AuthConfig      `mapstructure:"auth"`
	Logging    logging.Config  `mapstructure:"logging"`
	Chunker    chunker.Options `mapstructure:"chunker"`
	Cache      CacheConfig     `mapstructure:"cache"`
	Redis      RedisConfig     `mapstructure:"redis"`
	Source     SourceConfig    `mapstructure:"source"`
	Tombstones TombstoneConfig `mapstructure:"tombstones"`
	Snapshot   SnapshotConfig  `mapstructure:"snapshot"`
	Gateway    gateway.Config  `mapstructure:"gateway"`
	Search     SearchConfig    `mapstructure:"search"`
	Notify     NotifyConfig    `mapstructure:"notify"`
	Upstream   UpstreamConfig  `mapstructure:"upstream"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AuthConfig protects the change-ingestion endpoint.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// CacheConfig selects the response cache.
type CacheConfig struct {
	Backend       string        `mapstructure:"backend"`
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	Prefix        string        `mapstructure:"prefix"`
}

// RedisConfig is shared by the redis cache and session store.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SourceConfig selects the content source.
type SourceConfig struct {
	Backend    string          `mapstructure:"backend"`
	SeedFile   string          `mapstructure:"seed_file"`
	SQLitePath string          `mapstructure:"sqlite_path"`
	Table      string          `mapstructure:"table"`
	Postgres   postgres.Config `mapstructure:"postgres"`
}

// TombstoneConfig selects the tombstone log.
type TombstoneConfig struct {
	Backend  string          `mapstructure:"backend"`
	Limit    int             `mapstructure:"limit"`
	Table    string          `mapstructure:"table"`
	Postgres postgres.Config `mapstructure:"postgres"`
}

// SnapshotConfig persists the in-memory tombstone log between restarts.
// An empty backend disables snapshots.
type SnapshotConfig struct {
	Backend  string     `mapstructure:"backend"`
	Path     string     `mapstructure:"path"`
	LocalDir string     `mapstructure:"local_dir"`
	GCS      gcs.Config `mapstructure:"gcs"`
}

// SearchConfig toggles the full-text index and chunk ranking.
type SearchConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	RankChunks bool `mapstructure:"rank_chunks"`
}

// NotifyConfig configures the notification hub and its sinks.
type NotifyConfig struct {
	Hub        notify.Config `mapstructure:"hub"`
	Log        bool          `mapstructure:"log"`
	Prometheus bool          `mapstructure:"prometheus"`
	PubSub     PubSubConfig  `mapstructure:"pubsub"`
	Webhook    WebhookConfig `mapstructure:"webhook"`
}

// PubSubConfig publishes change events to a topic. Backend "pubsub" uses
// Google Cloud Pub/Sub; "memory" keeps the last MemoryLimit messages in
// process for local development.
type PubSubConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Backend     string `mapstructure:"backend"`
	ProjectID   string `mapstructure:"project_id"`
	TopicID     string `mapstructure:"topic_id"`
	AllEvents   bool   `mapstructure:"all_events"`
	MemoryLimit int    `mapstructure:"memory_limit"`
}

// WebhookConfig posts event batches to an HTTP endpoint.
type WebhookConfig struct {
	Enabled             bool `mapstructure:"enabled"`
	sinks.WebhookConfig `mapstructure:",squash"`
}

// UpstreamConfig names the origin that serves pages the gateway lets through.
type UpstreamConfig struct {
	URL string `mapstructure:"url"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("OPENFEEDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return Config{}, err
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
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("site.name", "OpenFeeder site")
	v.SetDefault("site.base_url", "")
	v.SetDefault("auth.enabled", false)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file.max_size_mb", 100)
	v.SetDefault("logging.file.max_backups", 3)
	v.SetDefault("logging.file.max_age_days", 28)
	v.SetDefault("chunker.target_size", 500)
	v.SetDefault("chunker.unit", string(chunker.UnitWords))
	v.SetDefault("cache.backend", BackendMemory)
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("cache.sweep_interval", "5m")
	v.SetDefault("cache.prefix", "openfeeder:cache:")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("source.backend", BackendMemory)
	v.SetDefault("source.table", "content_items")
	v.SetDefault("tombstones.backend", BackendMemory)
	v.SetDefault("tombstones.limit", 1000)
	v.SetDefault("tombstones.table", "tombstones")
	v.SetDefault("snapshot.backend", "")
	v.SetDefault("snapshot.path", "tombstones.json")
	v.SetDefault("gateway.enabled", true)
	v.SetDefault("gateway.session_ttl", gateway.DefaultSessionTTL.String())
	v.SetDefault("gateway.sweep_interval", "1m")
	v.SetDefault("gateway.session_store", BackendMemory)
	v.SetDefault("search.enabled", true)
	v.SetDefault("search.rank_chunks", true)
	v.SetDefault("notify.log", true)
	v.SetDefault("notify.prometheus", true)
	v.SetDefault("notify.pubsub.backend", BackendPubSub)
	v.SetDefault("notify.pubsub.memory_limit", 1000)
	v.SetDefault("notify.webhook.timeout", "5s")
}

// envOnlyKeys have no default but must still be readable from OPENFEEDER_*
// variables; Unmarshal only sees keys viper already knows about.
var envOnlyKeys = []string{
	"auth.api_key",
	"redis.password",
	"source.seed_file",
	"source.sqlite_path",
	"source.postgres.dsn",
	"tombstones.postgres.dsn",
	"snapshot.local_dir",
	"snapshot.gcs.bucket",
	"notify.pubsub.project_id",
	"notify.pubsub.topic_id",
	"notify.webhook.url",
	"notify.webhook.secret",
	"upstream.url",
}

func bindEnv(v *viper.Viper) error {
	for _, key := range envOnlyKeys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Chunker.Unit != "" && c.Chunker.Unit != chunker.UnitWords && c.Chunker.Unit != chunker.UnitChars {
		return fmt.Errorf("chunker.unit must be %q or %q", chunker.UnitWords, chunker.UnitChars)
	}
	if err := oneOf("cache.backend", c.Cache.Backend, BackendMemory, BackendRedis); err != nil {
		return err
	}
	if err := oneOf("source.backend", c.Source.Backend, BackendMemory, BackendPostgres, BackendSQLite); err != nil {
		return err
	}
	if c.Source.Backend == BackendPostgres && c.Source.Postgres.DSN == "" {
		return fmt.Errorf("source.postgres.dsn must be set for the postgres source")
	}
	if c.Source.Backend == BackendSQLite && c.Source.SQLitePath == "" {
		return fmt.Errorf("source.sqlite_path must be set for the sqlite source")
	}
	if err := oneOf("tombstones.backend", c.Tombstones.Backend, BackendMemory, BackendPostgres); err != nil {
		return err
	}
	if c.Tombstones.Limit <= 0 {
		return fmt.Errorf("tombstones.limit must be > 0")
	}
	if c.Tombstones.Backend == BackendPostgres && c.Tombstones.Postgres.DSN == "" && c.Source.Postgres.DSN == "" {
		return fmt.Errorf("tombstones.postgres.dsn must be set for the postgres tombstone log")
	}
	if c.Snapshot.Backend != "" {
		if err := oneOf("snapshot.backend", c.Snapshot.Backend, BackendMemory, BackendLocal, BackendGCS); err != nil {
			return err
		}
		if c.Snapshot.Backend == BackendLocal && c.Snapshot.LocalDir == "" {
			return fmt.Errorf("snapshot.local_dir must be set for local snapshots")
		}
		if c.Snapshot.Backend == BackendGCS && c.Snapshot.GCS.Bucket == "" {
			return fmt.Errorf("snapshot.gcs.bucket must be set for gcs snapshots")
		}
	}
	if err := oneOf("gateway.session_store", c.Gateway.SessionStore, BackendMemory, BackendRedis); err != nil {
		return err
	}
	if c.Gateway.SessionTTL <= 0 {
		return fmt.Errorf("gateway.session_ttl must be > 0")
	}
	if c.Notify.PubSub.Enabled {
		if err := oneOf("notify.pubsub.backend", c.Notify.PubSub.Backend, BackendPubSub, BackendMemory); err != nil {
			return err
		}
		if c.Notify.PubSub.Backend == BackendPubSub && (c.Notify.PubSub.ProjectID == "" || c.Notify.PubSub.TopicID == "") {
			return fmt.Errorf("notify.pubsub.project_id and topic_id must be set when pubsub is enabled")
		}
	}
	if c.Notify.Webhook.Enabled && c.Notify.Webhook.URL == "" {
		return fmt.Errorf("notify.webhook.url must be set when the webhook is enabled")
	}
	if c.Upstream.URL != "" {
		u, err := url.Parse(c.Upstream.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("upstream.url must be an absolute URL")
		}
	}
	return nil
}

// UsesRedis reports whether any component needs a redis client.
func (c Config) UsesRedis() bool {
	return c.Cache.Backend == BackendRedis || c.Gateway.SessionStore == BackendRedis
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", key, strings.Join(allowed, ", "), value)
}
