// Package sweeper schedules the three periodic maintenance jobs the
// dispatcher's collaborators need (spec §4.2, §4.3, §4.5): rate-limiter
// idle-connection eviction, history TTL/idle-room eviction, and screen-share
// expiry. It uses gocron the same way the reference reconciler in the
// example pack drives its periodic knowledge re-indexing.
package sweeper

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/nimbusroom/roomsrv/internal/v1/history"
	"github.com/nimbusroom/roomsrv/internal/v1/hub"
	"github.com/nimbusroom/roomsrv/internal/v1/logging"
	"github.com/nimbusroom/roomsrv/internal/v1/ratelimit"
	"github.com/nimbusroom/roomsrv/internal/v1/screenshare"
	"github.com/nimbusroom/roomsrv/internal/v1/wire"
)

// Config holds the sweeper's tunable intervals.
type Config struct {
	RateLimitSweepInterval     time.Duration
	RateLimitStaleAfter        time.Duration
	HistorySweepInterval       time.Duration
	ScreenShareSweepInterval   time.Duration
}

// DefaultConfig returns the spec's documented cadences.
func DefaultConfig() Config {
	return Config{
		RateLimitSweepInterval:   5 * time.Minute,
		RateLimitStaleAfter:      5 * time.Minute,
		HistorySweepInterval:     time.Hour,
		ScreenShareSweepInterval: 60 * time.Second,
	}
}

// Sweeper owns the gocron scheduler and the three jobs registered on it.
type Sweeper struct {
	cfg       Config
	scheduler gocron.Scheduler
	hubRef    *hub.Hub
}

// New builds a Sweeper and registers its jobs, but does not start them; call
// Start to begin running on schedule.
func New(cfg Config, h *hub.Hub, limiter *ratelimit.Limiter, hist *history.Cache, shares *screenshare.Manager) (*Sweeper, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	s := &Sweeper{cfg: cfg, scheduler: scheduler, hubRef: h}

	if _, err := scheduler.NewJob(
		gocron.DurationJob(cfg.RateLimitSweepInterval),
		gocron.NewTask(func() {
			evicted := limiter.Sweep(time.Now(), cfg.RateLimitStaleAfter)
			if evicted > 0 {
				logging.Info(context.Background(), "rate-limit sweep evicted idle connections")
			}
		}),
		gocron.WithName("ratelimit-sweep"),
	); err != nil {
		return nil, err
	}

	if _, err := scheduler.NewJob(
		gocron.DurationJob(cfg.HistorySweepInterval),
		gocron.NewTask(func() {
			ttlEvicted := hist.SweepTTL(time.Now())
			idleEvicted := hist.SweepIdleRooms(time.Now())
			if ttlEvicted > 0 || idleEvicted > 0 {
				logging.Info(context.Background(), "history sweep evicted entries")
			}
		}),
		gocron.WithName("history-sweep"),
	); err != nil {
		return nil, err
	}

	if _, err := scheduler.NewJob(
		gocron.DurationJob(cfg.ScreenShareSweepInterval),
		gocron.NewTask(func() {
			s.sweepScreenShares(shares)
		}),
		gocron.WithName("screenshare-sweep"),
	); err != nil {
		return nil, err
	}

	return s, nil
}

// sweepScreenShares expires timed-out shares and, unlike the source this
// design is based on (which removes them silently), broadcasts
// screen_share_stopped to each affected room (spec §9, Open Question:
// screen-share expiry notification).
func (s *Sweeper) sweepScreenShares(shares *screenshare.Manager) {
	now := time.Now()
	affected := shares.SweepExpired(now)
	for _, roomID := range affected {
		frame, err := wire.Encode(wire.ServerMessage{
			Type:      wire.TypeScreenShareStopped,
			RoomID:    roomID,
			Timestamp: now.UnixMilli(),
		})
		if err != nil {
			continue
		}
		s.hubRef.BroadcastToRoom(roomID, frame, "")
	}
}

// Start begins running all registered jobs on their schedules.
func (s *Sweeper) Start() {
	s.scheduler.Start()
}

// Shutdown stops the scheduler, waiting for any in-flight job to finish.
func (s *Sweeper) Shutdown() error {
	return s.scheduler.Shutdown()
}
