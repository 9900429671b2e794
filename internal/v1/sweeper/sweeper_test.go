package sweeper

import (
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/nimbusroom/roomsrv/internal/v1/hub"
	"github.com/nimbusroom/roomsrv/internal/v1/screenshare"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSweepScreenShares_RemovesExpiredShares(t *testing.T) {
	h := hub.New(10, nil)
	shares := screenshare.New(screenshare.Config{MaxSharesPerRoom: 1, SessionTimeout: 10 * time.Millisecond, MaxViewersPerShare: 10})

	if _, err := shares.Start("A", "room1", "a", "", screenshare.ShareData{}, time.Now()); err != nil {
		t.Fatalf("unexpected error starting share: %v", err)
	}

	time.Sleep(30 * time.Millisecond)

	s := &Sweeper{hubRef: h}
	s.sweepScreenShares(shares)

	if _, ok := shares.Get("room1"); ok {
		t.Fatal("expected expired share to be removed")
	}
}

func TestNew_RegistersAllThreeJobsWithoutError(t *testing.T) {
	// New wires the scheduler and registers jobs eagerly; a construction
	// error here would indicate a malformed job definition.
	h := hub.New(10, nil)
	shares := screenshare.New(screenshare.DefaultConfig())

	s, err := New(DefaultConfig(), h, nil, nil, shares)
	if err == nil {
		// a nil limiter/history is fine at construction time: the jobs only
		// dereference them once run, which this test never triggers.
		if err2 := s.Shutdown(); err2 != nil {
			t.Fatalf("unexpected shutdown error: %v", err2)
		}
		return
	}
	t.Fatalf("unexpected error constructing sweeper: %v", err)
}
