package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/cache"
	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/cluster"
	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/handler"
	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/hub"
	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/service"
	pkglog "github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/pkg/log"
	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/pkg/pubsub"
	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the websocket relay server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func serve(parent context.Context) error {
	logger := pkglog.L()
	logger.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("starting relay")

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rdb, err := newRedisClient(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()
	logger.Info().Str("address", cfg.Redis.Address).Msg("connected to redis")

	repo, err := newRepository(cfg)
	if err != nil {
		return fmt.Errorf("failed to create message store: %w", err)
	}
	defer repo.Close()
	logger.Info().Str("driver", cfg.Database.Driver).Msg("message store ready")

	msgCache := cache.NewRedisMessageCache(rdb, cfg.Cache)
	defer msgCache.Close()

	publisher := newPublisher(cfg.Stream, rdb)
	defer publisher.Close()

	wsHub := hub.NewHub(cfg.WebSocket)
	go wsHub.Run(ctx)

	var rooms service.RoomHub = wsHub
	if cfg.Cluster.Enabled {
		ps, err := newClusterBus(cfg.PubSub, cfg.Cluster.InstanceID, rdb)
		if err != nil {
			return fmt.Errorf("failed to initialize cluster pubsub: %w", err)
		}
		bridge := cluster.NewBridge(wsHub, ps, cfg.Cluster.InstanceID)
		if err := bridge.Start(ctx); err != nil {
			ps.Close()
			return fmt.Errorf("failed to start cluster bridge: %w", err)
		}
		defer ps.Close()
		defer bridge.Stop()
		rooms = bridge
	}

	chatSvc := service.NewChatService(rooms, repo, msgCache, publisher, service.ChatOptions{
		HistoryLimit:    cfg.Cache.MaxMessages,
		BackfillTimeout: cfg.Cache.BackfillTimeout,
	})
	defer chatSvc.Wait()
	signalSvc := service.NewSignalService(rooms, chatSvc)

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(pkglog.GinMiddleware(logger))

	wsHandler := handler.NewWSHandler(wsHub, signalSvc)
	handler.NewHTTPHandler(chatSvc, wsHandler, wsHub).RegisterRoutes(router)

	server := &http.Server{
		Addr: fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: cors.Handler(cors.Options{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		})(router),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if fileExists(cfg.Server.CertFile) && fileExists(cfg.Server.KeyFile) {
			logger.Info().Str("addr", server.Addr).Msg("relay listening with TLS")
			err = server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
		} else {
			logger.Info().Str("addr", server.Addr).Msg("relay listening")
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down relay")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("relay stopped")
	return nil
}

// newClusterBus shares the relay's redis client, or gives each instance its
// own Kafka consumer groups so every peer sees every event.
func newClusterBus(psCfg pubsub.Config, instanceID string, rdb *redis.Client) (pubsub.PubSub, error) {
	if psCfg.Driver == pubsub.DriverKafka {
		psCfg.Kafka.GroupID = psCfg.Kafka.GroupID + "-" + instanceID
		return pubsub.NewPubSub(psCfg)
	}
	return pubsub.NewRedisPubSubFromClient(rdb), nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
