package pubsub

import (
	"fmt"
	"time"
)

const (
	DriverRedis = "redis"
	DriverKafka = "kafka"
)

type KafkaConfig struct {
	Brokers    string `mapstructure:"brokers"`
	GroupID    string `mapstructure:"group_id"` // prefix; one consumer group per channel is derived from it
	Partitions int    `mapstructure:"partitions"`
}

type RedisConfig struct {
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Config selects and configures the bus driver used for cluster fan-out.
type Config struct {
	Driver string      `mapstructure:"driver"`
	Redis  RedisConfig `mapstructure:"redis"`
	Kafka  KafkaConfig `mapstructure:"kafka"`
}

func DefaultConfig() Config {
	return Config{
		Driver: DriverRedis,
		Redis: RedisConfig{
			Address:      "localhost:6379",
			PoolSize:     10,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:    "localhost:9092",
			GroupID:    "relay",
			Partitions: 4,
		},
	}
}

// NewPubSub builds the configured driver. An empty driver means redis.
func NewPubSub(cfg Config) (PubSub, error) {
	switch cfg.Driver {
	case DriverRedis, "":
		return NewRedisPubSub(cfg.Redis)
	case DriverKafka:
		return NewKafkaPubSub(cfg.Kafka)
	default:
		return nil, fmt.Errorf("unknown pubsub driver %q", cfg.Driver)
	}
}
