package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	pkgconfig "github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/pkg/config"
	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/pkg/pubsub"
	"github.com/google/uuid"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	Database  DatabaseConfig
	Cassandra CassandraConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Stream    StreamConfig
	Cluster   ClusterConfig
	PubSub    pubsub.Config
	Log       LogConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	CertFile       string   `mapstructure:"cert_file"`
	KeyFile        string   `mapstructure:"key_file"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"-"`
	PongWait       time.Duration `mapstructure:"-"`
	WriteWait      time.Duration `mapstructure:"-"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"` // postgres, mysql, sqlite, cassandra
	DSN             string `mapstructure:"dsn"`
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	FilePath        string        `mapstructure:"file_path"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"-"`
	LogLevel        string        `mapstructure:"log_level"`
}

type CassandraConfig struct {
	Hosts          []string
	Keyspace       string
	Consistency    string
	Username       string
	Password       string
	ConnectTimeout time.Duration `mapstructure:"-"`
	Timeout        time.Duration `mapstructure:"-"`
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
	URL      string
}

type CacheConfig struct {
	Prefix          string
	MaxMessages     int           `mapstructure:"max_messages"`
	TTL             time.Duration `mapstructure:"-"`
	BackfillTimeout time.Duration `mapstructure:"-"`
}

type StreamConfig struct {
	Driver   string // redis, kafka, none
	Name     string
	MaxLen   int64 `mapstructure:"max_len"`
	Kafka    StreamKafkaConfig
	Consumer StreamConsumerConfig
}

type StreamKafkaConfig struct {
	Brokers    string
	Topic      string
	Partitions int
}

// StreamConsumerConfig drives tail-stream. RetryInterval is how often the
// consumer re-reads its own pending entries.
type StreamConsumerConfig struct {
	Group         string
	Name          string
	Count         int64
	Block         time.Duration `mapstructure:"-"`
	RetryInterval time.Duration `mapstructure:"-"`
}

type ClusterConfig struct {
	Enabled    bool
	InstanceID string `mapstructure:"instance_id"`
}

type LogConfig struct {
	Level  string
	Pretty bool
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	setDefaults(v)

	err = pkgconfig.BindEnvs(v, map[string]string{
		"server.port":           "PORT",
		"server.cert_file":      "TLS_CERT_FILE",
		"server.key_file":       "TLS_KEY_FILE",
		"database.driver":       "DB_DRIVER",
		"database.dsn":          "DATABASE_URL",
		"database.host":         "DB_HOST",
		"database.port":         "DB_PORT",
		"database.user":         "DB_USER",
		"database.password":     "DB_PASSWORD",
		"database.dbname":       "DB_NAME",
		"database.sslmode":      "DB_SSLMODE",
		"database.file_path":    "DB_FILE_PATH",
		"cassandra.keyspace":    "CASSANDRA_KEYSPACE",
		"redis.address":         "REDIS_ADDRESS",
		"redis.password":        "REDIS_PASSWORD",
		"redis.url":             "REDIS_URL",
		"cache.max_messages":    "CACHE_MAX_MESSAGES",
		"cache.ttl":             "CACHE_TTL",
		"stream.driver":         "STREAM_DRIVER",
		"stream.kafka.brokers":  "KAFKA_BROKERS",
		"cluster.enabled":       "CLUSTER_ENABLED",
		"cluster.instance_id":   "INSTANCE_ID",
		"pubsub.driver":         "PUBSUB_DRIVER",
		"pubsub.redis.address":  "REDIS_ADDRESS",
		"pubsub.redis.password": "REDIS_PASSWORD",
		"pubsub.kafka.brokers":  "KAFKA_BROKERS",
		"log.level":             "LOG_LEVEL",
	})
	if err != nil {
		return nil, err
	}

	return decode(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 4000)
	v.SetDefault("server.cert_file", "/app/certs/cert.pem")
	v.SetDefault("server.key_file", "/app/certs/key.pem")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 65536)
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "nexuscare")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.file_path", "./data/messages.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.log_level", "silent")
	v.SetDefault("cassandra.hosts", []string{"localhost:9042"})
	v.SetDefault("cassandra.keyspace", "nexuscare")
	v.SetDefault("cassandra.consistency", "LOCAL_QUORUM")
	v.SetDefault("cassandra.connect_timeout", "10s")
	v.SetDefault("cassandra.timeout", "5s")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("cache.prefix", "chat:room")
	v.SetDefault("cache.max_messages", 50)
	v.SetDefault("cache.ttl", "3600s")
	v.SetDefault("cache.backfill_timeout", "2s")
	v.SetDefault("stream.driver", "redis")
	v.SetDefault("stream.name", "stream:chat:message_sent")
	v.SetDefault("stream.max_len", 0)
	v.SetDefault("stream.kafka.brokers", "localhost:9092")
	v.SetDefault("stream.kafka.topic", "chat-message-sent")
	v.SetDefault("stream.kafka.partitions", 4)
	v.SetDefault("stream.consumer.group", "relay-audit")
	v.SetDefault("stream.consumer.name", "worker-1")
	v.SetDefault("stream.consumer.count", 10)
	v.SetDefault("stream.consumer.block", "5s")
	v.SetDefault("stream.consumer.retry_interval", "30s")
	v.SetDefault("cluster.enabled", false)
	v.SetDefault("cluster.instance_id", "")
	ps := pubsub.DefaultConfig()
	v.SetDefault("pubsub.driver", ps.Driver)
	v.SetDefault("pubsub.redis.address", ps.Redis.Address)
	v.SetDefault("pubsub.redis.pool_size", ps.Redis.PoolSize)
	v.SetDefault("pubsub.redis.read_timeout", ps.Redis.ReadTimeout)
	v.SetDefault("pubsub.redis.write_timeout", ps.Redis.WriteTimeout)
	v.SetDefault("pubsub.kafka.brokers", ps.Kafka.Brokers)
	v.SetDefault("pubsub.kafka.group_id", ps.Kafka.GroupID)
	v.SetDefault("pubsub.kafka.partitions", ps.Kafka.Partitions)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)
	cfg.Database.ConnMaxLifetime = parseDuration(v, "database.conn_max_lifetime", time.Hour)
	cfg.Cassandra.ConnectTimeout = parseDuration(v, "cassandra.connect_timeout", 10*time.Second)
	cfg.Cassandra.Timeout = parseDuration(v, "cassandra.timeout", 5*time.Second)
	cfg.Cache.TTL = parseDuration(v, "cache.ttl", time.Hour)
	cfg.Cache.BackfillTimeout = parseDuration(v, "cache.backfill_timeout", 2*time.Second)
	cfg.Stream.Consumer.Block = parseDuration(v, "stream.consumer.block", 5*time.Second)
	cfg.Stream.Consumer.RetryInterval = parseDuration(v, "stream.consumer.retry_interval", 30*time.Second)

	// CASSANDRA_HOSTS: comma-separated, e.g. "cassandra:9042,cassandra-2:9042"
	if hosts := v.GetString("CASSANDRA_HOSTS"); hosts != "" {
		cfg.Cassandra.Hosts = splitList(hosts)
	}

	if cfg.Redis.URL != "" {
		if err := cfg.Redis.applyURL(); err != nil {
			return nil, err
		}
		cfg.PubSub.Redis.Address = cfg.Redis.Address
		cfg.PubSub.Redis.Password = cfg.Redis.Password
		cfg.PubSub.Redis.DB = cfg.Redis.DB
	}

	if cfg.Cluster.InstanceID == "" {
		cfg.Cluster.InstanceID = uuid.New().String()
	}

	if cfg.Cache.MaxMessages <= 0 {
		return nil, fmt.Errorf("cache.max_messages must be positive, got %d", cfg.Cache.MaxMessages)
	}

	return &cfg, nil
}

// applyURL fills address, password and db from a redis://[:password@]host:port[/db] URL.
func (r *RedisConfig) applyURL() error {
	u, err := url.Parse(r.URL)
	if err != nil {
		return fmt.Errorf("invalid redis url: %w", err)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid redis url %q: missing host", r.URL)
	}

	r.Address = u.Host
	if pw, ok := u.User.Password(); ok {
		r.Password = pw
	}
	if db := strings.TrimPrefix(u.Path, "/"); db != "" {
		n, err := strconv.Atoi(db)
		if err != nil {
			return fmt.Errorf("invalid redis db %q: %w", db, err)
		}
		r.DB = n
	}
	return nil
}

// parseDuration accepts Go durations ("90s") and bare seconds ("3600").
func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	str := strings.TrimSpace(v.GetString(key))
	if d, err := time.ParseDuration(str); err == nil {
		return d
	}
	if n, err := strconv.Atoi(str); err == nil && n >= 0 {
		return time.Duration(n) * time.Second
	}
	return defaultVal
}

func splitList(s string) []string {
	parts := strings.Split(strings.TrimSpace(s), ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
