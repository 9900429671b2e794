// Package config defines the CLI flag surface for the room coordination
// server and validates it into a Config value.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Config holds validated runtime configuration for the server.
type Config struct {
	Host string
	Port int

	MaxConnections  int
	MaxRooms        int
	MaxUsersPerRoom int

	RateLimitMessagesPerSecond int
	RateLimitBurst             int

	MaxMessagesPerRoom int
	MaxRoomsInCache    int
	MessageTTLHours    int

	MaxScreenSharesPerRoom    int
	ScreenShareTimeoutSeconds int
	MaxViewersPerShare        int
	EnableScreenShareRecording bool

	Verbose    bool
	CORSOrigin string
}

// RegisterFlags attaches the server's full flag surface to cmd, returning a
// Config populated from flags after the command parses args (i.e. read it
// inside the command's RunE, not before Execute).
func RegisterFlags(cmd *cobra.Command) *Config {
	cfg := &Config{}

	flags := cmd.Flags()
	flags.StringVar(&cfg.Host, "host", "127.0.0.1", "address to bind the server to")
	flags.IntVar(&cfg.Port, "port", 9001, "port to listen on")
	flags.IntVar(&cfg.MaxConnections, "max-connections", 10000, "maximum concurrent socket connections")
	flags.IntVar(&cfg.MaxRooms, "max-rooms", 50, "maximum number of simultaneously active rooms")
	flags.IntVar(&cfg.MaxUsersPerRoom, "max-users-per-room", 100, "maximum number of users allowed in a single room")
	flags.IntVar(&cfg.RateLimitMessagesPerSecond, "rate-limit-messages-per-second", 10, "sustained inbound message rate allowed per connection")
	flags.IntVar(&cfg.RateLimitBurst, "rate-limit-burst", 5, "maximum messages admitted per connection before the burst counter resets (every 1s), in addition to the sustained rate cap")
	flags.IntVar(&cfg.MaxMessagesPerRoom, "max-messages-per-room", 100, "maximum number of messages retained in a room's replay history")
	flags.IntVar(&cfg.MaxRoomsInCache, "max-rooms-in-cache", 200, "maximum number of rooms retained in the history cache, including idle ones pending eviction")
	flags.IntVar(&cfg.MessageTTLHours, "message-ttl-hours", 24, "maximum age of a history entry before eviction")
	flags.IntVar(&cfg.MaxScreenSharesPerRoom, "max-screen-shares-per-room", 1, "maximum concurrent screen shares allowed per room")
	flags.IntVar(&cfg.ScreenShareTimeoutSeconds, "screen-share-timeout-seconds", 3600, "maximum duration of a screen share session before automatic expiry")
	flags.IntVar(&cfg.MaxViewersPerShare, "max-viewers-per-share", 100, "maximum number of viewers attached to a single screen share")
	flags.BoolVar(&cfg.EnableScreenShareRecording, "enable-screen-share-recording", false, "allow screen share sessions to be flagged for recording")
	flags.BoolVar(&cfg.Verbose, "verbose", false, "enable development-mode structured logging")
	flags.StringVar(&cfg.CORSOrigin, "cors-origin", "", "allowed CORS origin for the HTTP surface (comma-separated); empty allows every origin")

	return cfg
}

// LoadDotEnv loads a local .env file, if present, into the process
// environment, where the caller's own os.Getenv lookups (collector and
// upstream URLs) can read it. Flag defaults are fixed literals and are not
// affected. Missing files are not an error.
func LoadDotEnv(path string) {
	_ = godotenv.Load(path)
}

// Validate checks cross-field and range invariants that flag parsing alone
// cannot enforce.
func (c *Config) Validate() error {
	var errs []string

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Sprintf("--port must be between 1 and 65535 (got %d)", c.Port))
	}
	if c.MaxConnections < 1 {
		errs = append(errs, "--max-connections must be positive")
	}
	if c.MaxRooms < 1 {
		errs = append(errs, "--max-rooms must be positive")
	}
	if c.MaxUsersPerRoom < 1 {
		errs = append(errs, "--max-users-per-room must be positive")
	}
	if c.RateLimitMessagesPerSecond < 1 {
		errs = append(errs, "--rate-limit-messages-per-second must be positive")
	}
	if c.RateLimitBurst < 0 {
		errs = append(errs, "--rate-limit-burst must not be negative")
	}
	if c.MaxMessagesPerRoom < 1 {
		errs = append(errs, "--max-messages-per-room must be positive")
	}
	if c.MaxRoomsInCache < c.MaxRooms {
		errs = append(errs, "--max-rooms-in-cache must be at least --max-rooms")
	}
	if c.MessageTTLHours < 1 {
		errs = append(errs, "--message-ttl-hours must be positive")
	}
	if c.MaxScreenSharesPerRoom < 1 {
		errs = append(errs, "--max-screen-shares-per-room must be positive")
	}
	if c.ScreenShareTimeoutSeconds < 1 {
		errs = append(errs, "--screen-share-timeout-seconds must be positive")
	}
	if c.MaxViewersPerShare < 1 {
		errs = append(errs, "--max-viewers-per-share must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// CORSOrigins splits the --cors-origin flag into individual origins.
// Returns nil if the flag is empty (no allow-list configured).
func (c *Config) CORSOrigins() []string {
	if c.CORSOrigin == "" {
		return nil
	}
	parts := strings.Split(c.CORSOrigin, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}

// Addr returns the host:port pair the server should bind to.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
