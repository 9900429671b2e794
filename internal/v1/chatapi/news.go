package chatapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"

	"github.com/nimbusroom/roomsrv/internal/v1/metrics"
)

// newsResponse mirrors whatever JSON shape the configured news feed
// returns; the service forwards it verbatim rather than re-shaping it.
type newsResponse = json.RawMessage

// handleNewsFeed proxies GET /api/news/feed to the configured news feed
// URL through a circuit breaker (spec §6).
func (s *Service) handleNewsFeed(c *gin.Context) {
	if s.cfg.NewsFeedURL == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "news feed not configured"})
		return
	}

	result, err := s.newsBreaker.Execute(func() (interface{}, error) {
		return s.fetchNewsFeed(c.Request.Context())
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			metrics.CircuitBreakerFailures.WithLabelValues("news-feed").Inc()
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "news feed unavailable"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "news feed request failed"})
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", result.(newsResponse))
}

func (s *Service) fetchNewsFeed(ctx context.Context) (newsResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.NewsFeedURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return newsResponse(body), nil
}
