package main

import (
	"context"
	"fmt"
	"time"

	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/config"
	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/repository"
	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/stream"
	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/pkg/database"
	pkglog "github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/pkg/log"
	"github.com/redis/go-redis/v9"
)

func newRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Address, err)
	}
	return client, nil
}

func newRepository(cfg *config.Config) (repository.MessageRepository, error) {
	if repository.IsCassandra(cfg.Database.Driver) {
		return repository.NewCassandraMessageRepository(cfg.Cassandra)
	}

	db, err := database.New(&database.Config{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		FilePath:        cfg.Database.FilePath,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        cfg.Database.LogLevel,
	})
	if err != nil {
		return nil, err
	}
	return repository.NewGormMessageRepository(db)
}

// newPublisher falls back to a no-op publisher when Kafka is unreachable.
func newPublisher(cfg config.StreamConfig, client *redis.Client) stream.Publisher {
	l := pkglog.L()

	switch cfg.Driver {
	case "none":
		l.Info().Msg("message stream disabled")
		return stream.NopPublisher{}
	case "kafka":
		p, err := stream.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Partitions)
		if err != nil {
			l.Warn().Err(err).Msg("failed to create kafka producer, message stream disabled")
			return stream.NopPublisher{}
		}
		l.Info().Str("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("publishing message events to kafka")
		return p
	default:
		l.Info().Str("stream", cfg.Name).Msg("publishing message events to redis stream")
		return stream.NewRedisPublisher(client, cfg.Name, cfg.MaxLen)
	}
}
