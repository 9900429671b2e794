package config

import (
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func newTestCommand() (*cobra.Command, *Config) {
	cmd := &cobra.Command{Use: "roomsrv"}
	cfg := RegisterFlags(cmd)
	return cmd, cfg
}

func TestRegisterFlags_Defaults(t *testing.T) {
	cmd, cfg := newTestCommand()
	if err := cmd.ParseFlags(nil); err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	if cfg.Host != "127.0.0.1" {
		t.Errorf("expected default host 127.0.0.1, got %q", cfg.Host)
	}
	if cfg.Port != 9001 {
		t.Errorf("expected default port 9001, got %d", cfg.Port)
	}
	if cfg.MaxConnections != 10000 {
		t.Errorf("expected default max-connections 10000, got %d", cfg.MaxConnections)
	}
	if cfg.MaxRooms != 50 {
		t.Errorf("expected default max-rooms 50, got %d", cfg.MaxRooms)
	}
	if cfg.MaxUsersPerRoom != 100 {
		t.Errorf("expected default max-users-per-room 100, got %d", cfg.MaxUsersPerRoom)
	}
	if cfg.RateLimitMessagesPerSecond != 10 {
		t.Errorf("expected default rate-limit-messages-per-second 10, got %d", cfg.RateLimitMessagesPerSecond)
	}
	if cfg.RateLimitBurst != 5 {
		t.Errorf("expected default rate-limit-burst 5, got %d", cfg.RateLimitBurst)
	}
	if cfg.MaxMessagesPerRoom != 100 {
		t.Errorf("expected default max-messages-per-room 100, got %d", cfg.MaxMessagesPerRoom)
	}
	if cfg.MaxRoomsInCache != 200 {
		t.Errorf("expected default max-rooms-in-cache 200, got %d", cfg.MaxRoomsInCache)
	}
	if cfg.MessageTTLHours != 24 {
		t.Errorf("expected default message-ttl-hours 24, got %d", cfg.MessageTTLHours)
	}
	if cfg.MaxScreenSharesPerRoom != 1 {
		t.Errorf("expected default max-screen-shares-per-room 1, got %d", cfg.MaxScreenSharesPerRoom)
	}
	if cfg.ScreenShareTimeoutSeconds != 3600 {
		t.Errorf("expected default screen-share-timeout-seconds 3600, got %d", cfg.ScreenShareTimeoutSeconds)
	}
	if cfg.MaxViewersPerShare != 100 {
		t.Errorf("expected default max-viewers-per-share 100, got %d", cfg.MaxViewersPerShare)
	}
	if cfg.EnableScreenShareRecording {
		t.Error("expected enable-screen-share-recording to default false")
	}
	if cfg.Verbose {
		t.Error("expected verbose to default false")
	}
	if cfg.CORSOrigin != "" {
		t.Errorf("expected empty default cors-origin, got %q", cfg.CORSOrigin)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected default configuration to validate, got: %v", err)
	}
}

func TestRegisterFlags_Overrides(t *testing.T) {
	cmd, cfg := newTestCommand()
	args := []string{
		"--host", "0.0.0.0",
		"--port", "9100",
		"--max-connections", "500",
		"--max-rooms", "10",
		"--max-users-per-room", "20",
		"--rate-limit-messages-per-second", "20",
		"--rate-limit-burst", "8",
		"--max-messages-per-room", "50",
		"--max-rooms-in-cache", "100",
		"--message-ttl-hours", "12",
		"--max-screen-shares-per-room", "2",
		"--screen-share-timeout-seconds", "600",
		"--max-viewers-per-share", "30",
		"--enable-screen-share-recording",
		"--verbose",
		"--cors-origin", "https://a.example.com, https://b.example.com",
	}

	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	if cfg.Addr() != "0.0.0.0:9100" {
		t.Errorf("expected Addr() 0.0.0.0:9100, got %q", cfg.Addr())
	}
	if !cfg.EnableScreenShareRecording || !cfg.Verbose {
		t.Error("expected boolean flags to be set")
	}

	origins := cfg.CORSOrigins()
	if len(origins) != 2 || origins[0] != "https://a.example.com" || origins[1] != "https://b.example.com" {
		t.Errorf("expected two trimmed CORS origins, got %v", origins)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected overridden configuration to validate, got: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cmd, cfg := newTestCommand()
	if err := cmd.ParseFlags([]string{"--port", "99999"}); err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "--port must be between") {
		t.Errorf("expected port validation error, got: %v", err)
	}
}

func TestValidate_MaxRoomsInCacheMustBeAtLeastMaxRooms(t *testing.T) {
	cmd, cfg := newTestCommand()
	if err := cmd.ParseFlags([]string{"--max-rooms", "100", "--max-rooms-in-cache", "10"}); err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "--max-rooms-in-cache must be at least --max-rooms") {
		t.Errorf("expected max-rooms-in-cache validation error, got: %v", err)
	}
}

func TestCORSOrigins_DisabledWhenEmpty(t *testing.T) {
	_, cfg := newTestCommand()
	if origins := cfg.CORSOrigins(); origins != nil {
		t.Errorf("expected nil origins when cors-origin unset, got %v", origins)
	}
}
