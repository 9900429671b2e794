package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"

	"github.com/nimbusroom/roomsrv/internal/v1/metrics"
)

// visionResponse is the reply shape spec §6 documents for
// POST /api/vision/analyze.
type visionResponse struct {
	Insight          string   `json:"insight"`
	SceneDescription string   `json:"scene_description"`
	ObjectsDetected  []string `json:"objects_detected"`
	ShouldRespond    bool     `json:"should_respond"`
	Confidence       float64  `json:"confidence"`
	Timestamp        int64    `json:"timestamp"`
	Suggestions      []string `json:"suggestions,omitempty"`
}

// handleVisionAnalyze accepts a multipart image upload plus a user_id field
// and forwards it to the configured vision backend through a circuit
// breaker, relaying the backend's analysis back to the caller (spec §6).
func (s *Service) handleVisionAnalyze(c *gin.Context) {
	userID := c.PostForm("user_id")
	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing image field"})
		return
	}
	defer file.Close()

	if s.cfg.VisionBackendURL == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "vision backend not configured"})
		return
	}

	result, err := s.visionBreaker.Execute(func() (interface{}, error) {
		return s.forwardToVisionBackend(c.Request.Context(), userID, header.Filename, file)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			metrics.CircuitBreakerFailures.WithLabelValues("vision-backend").Inc()
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "vision backend unavailable"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "vision backend request failed"})
		return
	}

	c.JSON(http.StatusOK, result.(visionResponse))
}

func (s *Service) forwardToVisionBackend(ctx context.Context, userID, filename string, file multipart.File) (visionResponse, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("user_id", userID); err != nil {
		return visionResponse{}, err
	}
	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return visionResponse{}, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return visionResponse{}, err
	}
	if err := writer.Close(); err != nil {
		return visionResponse{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.VisionBackendURL, &body)
	if err != nil {
		return visionResponse{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return visionResponse{}, err
	}
	defer resp.Body.Close()

	var out visionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return visionResponse{}, err
	}
	out.Timestamp = time.Now().UnixMilli()
	return out, nil
}
