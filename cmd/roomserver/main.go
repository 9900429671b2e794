// Command roomserver runs the room coordination server: the socket
// connection hub and the sibling chat/vision/news HTTP API, each on its
// own port (spec §4.6, §6).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/nimbusroom/roomsrv/internal/v1/chatapi"
	"github.com/nimbusroom/roomsrv/internal/v1/config"
	"github.com/nimbusroom/roomsrv/internal/v1/dispatcher"
	"github.com/nimbusroom/roomsrv/internal/v1/health"
	"github.com/nimbusroom/roomsrv/internal/v1/history"
	"github.com/nimbusroom/roomsrv/internal/v1/hub"
	"github.com/nimbusroom/roomsrv/internal/v1/logging"
	"github.com/nimbusroom/roomsrv/internal/v1/middleware"
	"github.com/nimbusroom/roomsrv/internal/v1/ratelimit"
	"github.com/nimbusroom/roomsrv/internal/v1/roomstate"
	"github.com/nimbusroom/roomsrv/internal/v1/screenshare"
	"github.com/nimbusroom/roomsrv/internal/v1/sweeper"
	"github.com/nimbusroom/roomsrv/internal/v1/tracing"
)

const chatAPIPort = 8001

func main() {
	config.LoadDotEnv(".env")

	cmd := &cobra.Command{
		Use:   "roomserver",
		Short: "Real-time room coordination server",
	}
	cfg := config.RegisterFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return run(cfg)
	}

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := logging.Initialize(cfg.Verbose); err != nil {
		return err
	}
	ctx := context.Background()

	if collector := os.Getenv("OTEL_COLLECTOR_ENDPOINT"); collector != "" {
		tp, err := tracing.InitTracer(ctx, "roomsrv", collector)
		if err != nil {
			logging.Warn(ctx, "tracing disabled: failed to initialize exporter", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = tp.Shutdown(shutdownCtx)
			}()
		}
	}

	rooms := roomstate.NewRegistry(cfg.MaxRooms, cfg.MaxUsersPerRoom)
	limiter := ratelimit.New(ratelimit.Config{
		MessagesPerWindow: cfg.RateLimitMessagesPerSecond,
		Window:            time.Second,
		BurstLimit:        cfg.RateLimitBurst,
	})
	hist := history.New(history.Config{
		MaxMessagesPerRoom: cfg.MaxMessagesPerRoom,
		MaxRoomsInCache:    cfg.MaxRoomsInCache,
		TTL:                time.Duration(cfg.MessageTTLHours) * time.Hour,
		IdleThreshold:      4 * time.Hour,
		ReplayCount:        20,
	})
	shares := screenshare.New(screenshare.Config{
		MaxSharesPerRoom:   cfg.MaxScreenSharesPerRoom,
		SessionTimeout:     time.Duration(cfg.ScreenShareTimeoutSeconds) * time.Second,
		MaxViewersPerShare: cfg.MaxViewersPerShare,
	})

	h := hub.New(cfg.MaxConnections, cfg.CORSOrigins())
	disp := dispatcher.New(h, rooms, limiter, hist, shares)
	h.SetHandler(disp)

	sweep, err := sweeper.New(sweeper.DefaultConfig(), h, limiter, hist, shares)
	if err != nil {
		return err
	}
	sweep.Start()
	defer func() {
		if err := sweep.Shutdown(); err != nil {
			logging.Warn(ctx, "sweeper shutdown error", zap.Error(err))
		}
	}()

	roomRouter := buildRoomRouter(h, rooms, cfg)
	chatRouter := chatapi.New(chatAPIConfig(cfg)).Router()

	roomSrv := &http.Server{Addr: cfg.Addr(), Handler: roomRouter}
	chatSrv := &http.Server{Addr: addrFor(cfg.Host, chatAPIPort), Handler: chatRouter}

	go func() {
		logging.Info(ctx, "room server starting", zap.String("addr", roomSrv.Addr))
		if err := roomSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error(ctx, "room server failed", zap.Error(err))
		}
	}()
	go func() {
		logging.Info(ctx, "chat api server starting", zap.String("addr", chatSrv.Addr))
		if err := chatSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error(ctx, "chat api server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := roomSrv.Shutdown(shutdownCtx); err != nil {
		logging.Error(ctx, "room server forced shutdown", zap.Error(err))
	}
	if err := chatSrv.Shutdown(shutdownCtx); err != nil {
		logging.Error(ctx, "chat api server forced shutdown", zap.Error(err))
	}
	return nil
}

func buildRoomRouter(h *hub.Hub, rooms *roomstate.Registry, cfg *config.Config) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(otelgin.Middleware("roomsrv"))

	corsCfg := cors.DefaultConfig()
	if origins := cfg.CORSOrigins(); len(origins) > 0 {
		corsCfg.AllowOrigins = origins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	router.Use(cors.New(corsCfg))

	healthHandler := health.NewHandler(capacityChecker{hub: h, rooms: rooms}, nil)
	router.GET("/health/live", healthHandler.Liveness)
	router.GET("/health/ready", healthHandler.Readiness)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", func(c *gin.Context) { h.Accept(c.Writer, c.Request) })

	return router
}

// capacityChecker combines the hub's live connection/room counts with the
// registry's configured room cap, since the hub itself only tracks rooms
// it has seen members join, not the cap (health.CapacityChecker).
type capacityChecker struct {
	hub   *hub.Hub
	rooms *roomstate.Registry
}

func (c capacityChecker) Stats() health.CapacityStats {
	stats := c.hub.Stats()
	stats.MaxRooms = c.rooms.MaxRooms()
	return stats
}

func chatAPIConfig(cfg *config.Config) chatapi.Config {
	c := chatapi.DefaultConfig()
	c.CORSOrigins = cfg.CORSOrigins()
	c.VisionBackendURL = os.Getenv("VISION_BACKEND_URL")
	c.NewsFeedURL = os.Getenv("NEWS_FEED_URL")
	return c
}

func addrFor(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
