package chatapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// chatRequest is the decoded body of POST /api/chat (spec §6).
type chatRequest struct {
	Message  string `json:"message"`
	UserName string `json:"user_name"`
}

// chatResponse is the reply shape spec §6 documents.
type chatResponse struct {
	Response   string  `json:"response"`
	AgentName  string  `json:"agent_name"`
	Confidence float64 `json:"confidence"`
	Timestamp  int64   `json:"timestamp"`
}

// keywordClass pairs a set of trigger words with a canned agent reply.
type keywordClass struct {
	agentName  string
	keywords   []string
	reply      string
	confidence float64
}

// classes are checked in order; the first match wins. A message matching
// none falls through to the default reply.
var classes = []keywordClass{
	{
		agentName:  "greeter",
		keywords:   []string{"hello", "hi", "hey"},
		reply:      "Hello! Welcome to the room.",
		confidence: 0.9,
	},
	{
		agentName:  "weather-agent",
		keywords:   []string{"weather", "rain", "sunny", "forecast"},
		reply:      "You can change the room's weather with a weather_change message.",
		confidence: 0.8,
	},
	{
		agentName:  "help-agent",
		keywords:   []string{"help", "how do i", "what can"},
		reply:      "Try chatting, changing the scene, or sharing your screen with the room.",
		confidence: 0.75,
	},
	{
		agentName:  "farewell-agent",
		keywords:   []string{"bye", "goodbye", "see you"},
		reply:      "Goodbye! Come back soon.",
		confidence: 0.9,
	},
}

const (
	defaultAgentName  = "general-agent"
	defaultReply      = "I'm not sure how to help with that yet, but I'm listening."
	defaultConfidence = 0.3
)

func classify(message string) (agentName, reply string, confidence float64) {
	lower := strings.ToLower(message)
	for _, class := range classes {
		for _, kw := range class.keywords {
			if strings.Contains(lower, kw) {
				return class.agentName, class.reply, class.confidence
			}
		}
	}
	return defaultAgentName, defaultReply, defaultConfidence
}

func (s *Service) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	agentName, reply, confidence := classify(req.Message)
	c.JSON(http.StatusOK, chatResponse{
		Response:   reply,
		AgentName:  agentName,
		Confidence: confidence,
		Timestamp:  time.Now().UnixMilli(),
	})
}
