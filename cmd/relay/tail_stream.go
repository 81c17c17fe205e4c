package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/audit"
	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/config"
	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/stream"
	pkglog "github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/pkg/log"
	"github.com/spf13/cobra"
)

var tailStreamCmd = &cobra.Command{
	Use:   "tail-stream",
	Short: "Read message_sent events as a consumer group member and audit-log them",
	RunE: func(cmd *cobra.Command, args []string) error {
		if group, _ := cmd.Flags().GetString("group"); group != "" {
			cfg.Stream.Consumer.Group = group
		}
		if name, _ := cmd.Flags().GetString("name"); name != "" {
			cfg.Stream.Consumer.Name = name
		}
		return tailStream(cmd.Context())
	},
}

func init() {
	tailStreamCmd.Flags().String("group", "", "consumer group (defaults to stream.consumer.group)")
	tailStreamCmd.Flags().String("name", "", "consumer name within the group (defaults to stream.consumer.name)")
}

// checkTailable rejects stream drivers whose events never reach the Redis stream.
func checkTailable(sc config.StreamConfig) error {
	switch sc.Driver {
	case "", "redis":
		return nil
	default:
		return fmt.Errorf("tail-stream reads the redis stream, but stream.driver is %q", sc.Driver)
	}
}

func tailStream(parent context.Context) error {
	if err := checkTailable(cfg.Stream); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rdb, err := newRedisClient(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	consumer := stream.NewConsumer(rdb, cfg.Stream.Name, cfg.Stream.Consumer, func(ctx context.Context, ev stream.MessageSentEvent) error {
		audit.LogWithDetail(ctx, audit.ActionStreamEvent, "", ev.RoomID, ev.ID, "message_sent received")
		return nil
	})

	l := pkglog.L()
	l.Info().Str("stream", cfg.Stream.Name).Str("group", cfg.Stream.Consumer.Group).Msg("tailing message stream")
	return consumer.Run(ctx)
}
