// Package screenshare implements the screen-share signaling state machine
// (spec §4.5): at most one active share per room, a viewer set, signaling
// relay, expiry, and the late-joiner handshake.
package screenshare

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nimbusroom/roomsrv/internal/v1/metrics"
	"github.com/nimbusroom/roomsrv/internal/v1/wire"
)

// Errors returned by Manager operations; the dispatcher turns these into
// the corresponding protocol-level error frames (spec §7).
var (
	ErrAlreadySharing  = errors.New("screenshare: another user is already sharing in this room")
	ErrNoActiveShare   = errors.New("screenshare: no active share in this room")
	ErrNotSharer       = errors.New("screenshare: caller is not the room's sharer")
	ErrViewerCapacity  = errors.New("screenshare: viewer capacity reached")
)

// ShareData carries the sharer-supplied parameters of a share.
type ShareData struct {
	ProjectionMode string
	Quality        string
	SessionID      string
}

// ActiveShare is the state of one room's ongoing screen share.
type ActiveShare struct {
	SharerUserID   string
	SharerName     string
	RoomID         string
	Nationality    string
	Data           ShareData
	StartedAt      time.Time
	SessionID      string
	Viewers        []string
}

func (s *ActiveShare) hasViewer(userID string) bool {
	for _, v := range s.Viewers {
		if v == userID {
			return true
		}
	}
	return false
}

// Config holds the manager's tunable parameters.
type Config struct {
	// MaxSharesPerRoom is always 1 in this design (spec §4.5).
	MaxSharesPerRoom int
	// SessionTimeout is the per-session expiry.
	SessionTimeout time.Duration
	// MaxViewersPerShare caps the viewer list.
	MaxViewersPerShare int
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxSharesPerRoom:   1,
		SessionTimeout:     time.Hour,
		MaxViewersPerShare: 100,
	}
}

// Manager owns the process-wide screen-share state: the active share per
// room, and the inverse user->room index used for disconnect cleanup.
// A single lock covers both maps, taken in that order, per spec §5.
type Manager struct {
	cfg Config

	mu         sync.Mutex
	byRoom     map[string]*ActiveShare
	userToRoom map[string]string
}

// New creates a Manager using cfg.
func New(cfg Config) *Manager {
	return &Manager{
		cfg:        cfg,
		byRoom:     make(map[string]*ActiveShare),
		userToRoom: make(map[string]string),
	}
}

// Start begins (or restarts) a share. If another user already shares in
// roomID, it fails with ErrAlreadySharing. A restart by the same sharer
// keeps the slot and regenerates the session id (spec §4.5, §8).
func (m *Manager) Start(userID, roomID, username, nationality string, data ShareData, now time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var viewers []string
	if existing, ok := m.byRoom[roomID]; ok {
		if existing.SharerUserID != userID {
			return "", ErrAlreadySharing
		}
		// Same sharer restarting: keep the slot's viewer list (spec §4.5).
		viewers = existing.Viewers
	}

	sessionID := uuid.NewString()
	data.SessionID = sessionID

	share := &ActiveShare{
		SharerUserID: userID,
		SharerName:   username,
		RoomID:       roomID,
		Nationality:  nationality,
		Data:         data,
		StartedAt:    now,
		SessionID:    sessionID,
		Viewers:      viewers,
	}
	m.byRoom[roomID] = share
	m.userToRoom[userID] = roomID

	metrics.ActiveScreenShares.Set(float64(len(m.byRoom)))
	metrics.ScreenShareViewers.WithLabelValues(roomID).Set(float64(len(viewers)))
	return sessionID, nil
}

// Stop removes the share owned by userID, if any, returning it. A
// non-sharer calling Stop is a no-op (spec §8).
func (m *Manager) Stop(userID string) *ActiveShare {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopLocked(userID)
}

func (m *Manager) stopLocked(userID string) *ActiveShare {
	roomID, ok := m.userToRoom[userID]
	if !ok {
		return nil
	}
	share, ok := m.byRoom[roomID]
	if !ok || share.SharerUserID != userID {
		return nil
	}

	delete(m.byRoom, roomID)
	delete(m.userToRoom, userID)
	metrics.ActiveScreenShares.Set(float64(len(m.byRoom)))
	metrics.ScreenShareViewers.DeleteLabelValues(roomID)
	return share
}

// Get returns a snapshot of the active share for roomID, if any.
func (m *Manager) Get(roomID string) (ActiveShare, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	share, ok := m.byRoom[roomID]
	if !ok {
		return ActiveShare{}, false
	}
	return *share, true
}

// HandleOffer verifies a share exists in roomID and that userID is its
// sharer, then builds the outbound offer frame addressed to target. The
// dispatcher forwards the returned message to target alone (spec §4.5).
func (m *Manager) HandleOffer(userID, roomID, target string, payload []byte, now int64) (wire.ServerMessage, error) {
	m.mu.Lock()
	share, ok := m.byRoom[roomID]
	m.mu.Unlock()

	if !ok {
		return wire.ServerMessage{}, ErrNoActiveShare
	}
	if share.SharerUserID != userID {
		return wire.ServerMessage{}, ErrNotSharer
	}

	return wire.ServerMessage{
		Type:         wire.TypeScreenShareWebRTCOffer,
		RoomID:       roomID,
		UserID:       userID,
		TargetUserID: target,
		Payload:      payload,
		Timestamp:    now,
	}, nil
}

// HandleAnswer verifies a share exists in roomID and builds the outbound
// answer frame addressed to target (spec §4.5). Either peer may answer.
func (m *Manager) HandleAnswer(userID, roomID, target string, payload []byte, now int64) (wire.ServerMessage, error) {
	m.mu.Lock()
	_, ok := m.byRoom[roomID]
	m.mu.Unlock()
	if !ok {
		return wire.ServerMessage{}, ErrNoActiveShare
	}

	return wire.ServerMessage{
		Type:         wire.TypeScreenShareWebRTCAnswer,
		RoomID:       roomID,
		UserID:       userID,
		TargetUserID: target,
		Payload:      payload,
		Timestamp:    now,
	}, nil
}

// HandleCandidate verifies a share exists in roomID and builds the
// outbound ICE candidate frame addressed to target (spec §4.5).
func (m *Manager) HandleCandidate(userID, roomID, target string, payload []byte, now int64) (wire.ServerMessage, error) {
	m.mu.Lock()
	_, ok := m.byRoom[roomID]
	m.mu.Unlock()
	if !ok {
		return wire.ServerMessage{}, ErrNoActiveShare
	}

	return wire.ServerMessage{
		Type:         wire.TypeScreenShareWebRTCCandidate,
		RoomID:       roomID,
		UserID:       userID,
		TargetUserID: target,
		Payload:      payload,
		Timestamp:    now,
	}, nil
}

// HandleReady verifies the caller is the room's sharer and builds the
// outbound ready frame; the dispatcher broadcasts it to the room excluding
// the caller (spec §4.5).
func (m *Manager) HandleReady(userID, roomID, username string, data ShareData, now int64) (wire.ServerMessage, error) {
	m.mu.Lock()
	share, ok := m.byRoom[roomID]
	m.mu.Unlock()

	if !ok {
		return wire.ServerMessage{}, ErrNoActiveShare
	}
	if share.SharerUserID != userID {
		return wire.ServerMessage{}, ErrNotSharer
	}

	return wire.ServerMessage{
		Type:           wire.TypeScreenShareWebRTCReady,
		RoomID:         roomID,
		UserID:         userID,
		Username:       username,
		ProjectionMode: data.ProjectionMode,
		Quality:        data.Quality,
		Timestamp:      now,
	}, nil
}

// AddViewer idempotently adds userID to roomID's viewer list, denying the
// add once the configured viewer cap is reached (spec §4.5, §8).
func (m *Manager) AddViewer(roomID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	share, ok := m.byRoom[roomID]
	if !ok {
		return ErrNoActiveShare
	}
	if share.hasViewer(userID) {
		return nil
	}
	if len(share.Viewers) >= m.cfg.MaxViewersPerShare {
		return ErrViewerCapacity
	}
	share.Viewers = append(share.Viewers, userID)
	metrics.ScreenShareViewers.WithLabelValues(roomID).Set(float64(len(share.Viewers)))
	return nil
}

// RemoveViewer idempotently removes userID from roomID's viewer list.
func (m *Manager) RemoveViewer(roomID, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	share, ok := m.byRoom[roomID]
	if !ok {
		return
	}
	for i, v := range share.Viewers {
		if v == userID {
			share.Viewers = append(share.Viewers[:i], share.Viewers[i+1:]...)
			metrics.ScreenShareViewers.WithLabelValues(roomID).Set(float64(len(share.Viewers)))
			return
		}
	}
}

// HandleJoinRequest produces a new_viewer_joined message addressed to the
// sharer when a late joiner announces itself (spec §4.5).
func (m *Manager) HandleJoinRequest(viewer, roomID string, now int64) (wire.ServerMessage, string, error) {
	m.mu.Lock()
	share, ok := m.byRoom[roomID]
	m.mu.Unlock()
	if !ok {
		return wire.ServerMessage{}, "", ErrNoActiveShare
	}

	return wire.ServerMessage{
		Type:         wire.TypeNewViewerJoined,
		RoomID:       roomID,
		ViewerUserID: viewer,
		Timestamp:    now,
	}, share.SharerUserID, nil
}

// HandleOfferRequest produces a viewer_requests_offer message addressed to
// the sharer (spec §4.5).
func (m *Manager) HandleOfferRequest(viewer, roomID string, now int64) (wire.ServerMessage, string, error) {
	m.mu.Lock()
	share, ok := m.byRoom[roomID]
	m.mu.Unlock()
	if !ok {
		return wire.ServerMessage{}, "", ErrNoActiveShare
	}

	return wire.ServerMessage{
		Type:         wire.TypeViewerRequestsOffer,
		RoomID:       roomID,
		ViewerUserID: viewer,
		Timestamp:    now,
	}, share.SharerUserID, nil
}

// UserDisconnected removes userID from any share it was sharing (as
// sharer) and from every viewer list it appears in, returning the room id
// of a share that was stopped so the dispatcher can broadcast
// screen_share_stopped (spec §4.5).
func (m *Manager) UserDisconnected(userID string) (roomID string, stopped bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if share := m.stopLocked(userID); share != nil {
		roomID, stopped = share.RoomID, true
	}

	for rid, share := range m.byRoom {
		for i, v := range share.Viewers {
			if v == userID {
				share.Viewers = append(share.Viewers[:i], share.Viewers[i+1:]...)
				metrics.ScreenShareViewers.WithLabelValues(rid).Set(float64(len(share.Viewers)))
				break
			}
		}
	}
	return roomID, stopped
}

// Info is the snapshot of an active share for inclusion in room_state and
// auth_success responses (spec §4.5).
type Info struct {
	SharerUserID   string
	SharerUsername string
	ProjectionMode string
	Quality        string
	SessionID      string
	ViewerCount    int
}

// GetOngoingShareInfo returns a snapshot of roomID's active share, if any.
func (m *Manager) GetOngoingShareInfo(roomID string) (Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	share, ok := m.byRoom[roomID]
	if !ok {
		return Info{}, false
	}
	return Info{
		SharerUserID:   share.SharerUserID,
		SharerUsername: share.SharerName,
		ProjectionMode: share.Data.ProjectionMode,
		Quality:        share.Data.Quality,
		SessionID:      share.SessionID,
		ViewerCount:    len(share.Viewers),
	}, true
}

// SweepExpired removes every share whose StartedAt is older than
// cfg.SessionTimeout relative to now, returning the room ids affected so
// the caller can broadcast screen_share_stopped — this implementation
// takes the spec's recommended hardening (§9) over the original's silent
// removal.
func (m *Manager) SweepExpired(now time.Time) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var affected []string
	cutoff := now.Add(-m.cfg.SessionTimeout)
	for roomID, share := range m.byRoom {
		if share.StartedAt.Before(cutoff) {
			delete(m.byRoom, roomID)
			delete(m.userToRoom, share.SharerUserID)
			affected = append(affected, roomID)
		}
	}
	if len(affected) > 0 {
		metrics.ActiveScreenShares.Set(float64(len(m.byRoom)))
	}
	return affected
}
