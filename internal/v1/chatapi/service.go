// Package chatapi implements the sibling HTTP service (spec §6): a
// stateless JSON request/response surface for chat, vision analysis, and a
// news feed proxy, served on its own port alongside the room connection
// hub. It never touches room/session state.
package chatapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"

	"github.com/nimbusroom/roomsrv/internal/v1/metrics"
	"github.com/nimbusroom/roomsrv/internal/v1/middleware"
)

// Config holds the service's tunable parameters.
type Config struct {
	CORSOrigins      []string
	VisionBackendURL string
	NewsFeedURL      string
	UpstreamTimeout  time.Duration
}

// DefaultConfig returns reasonable defaults.
func DefaultConfig() Config {
	return Config{
		UpstreamTimeout: 10 * time.Second,
	}
}

// Service hosts the chat/vision/news HTTP surface.
type Service struct {
	cfg        Config
	httpClient *http.Client

	visionBreaker *gobreaker.CircuitBreaker
	newsBreaker   *gobreaker.CircuitBreaker
}

// New constructs a Service, wiring one circuit breaker per upstream
// dependency (vision backend, news feed) so a stalled upstream can't pin
// down request-handling goroutines (SPEC_FULL §3 domain stack; grounded on
// the teacher's pkg/sfu circuit breaker pattern).
func New(cfg Config) *Service {
	s := &Service{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.UpstreamTimeout},
	}
	s.visionBreaker = newBreaker("vision-backend")
	s.newsBreaker = newBreaker("news-feed")
	return s
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		OnStateChange: func(_ string, _ gobreaker.State, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateOpen:
				stateVal = 1
			case gobreaker.StateHalfOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateVal)
		},
	})
}

// Router builds the gin engine exposing every route in spec §6.
func (s *Service) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())

	corsCfg := cors.DefaultConfig()
	if len(s.cfg.CORSOrigins) > 0 {
		corsCfg.AllowOrigins = s.cfg.CORSOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	router.Use(cors.New(corsCfg))

	router.GET("/", s.handleStatus)
	router.GET("/health", s.handleStatus)
	router.POST("/api/chat", s.handleChat)
	router.POST("/api/vision/analyze", s.handleVisionAnalyze)
	router.GET("/api/news/feed", s.handleNewsFeed)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

func (s *Service) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"service": "roomsrv-chatapi", "status": "healthy"})
}
