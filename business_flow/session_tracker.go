package businessflow

import (
	"context"
	"time"

	"github.com/Munim94s/peakself-backend/models"
	"github.com/Munim94s/peakself-backend/repository"
	"github.com/Munim94s/peakself-backend/utils"
	"github.com/google/uuid"
)

// SessionTracker owns the session lifecycle: it binds each beacon to the
// visitor's single active session, starting a new one when the previous
// visit timed out, and appends the page view event.
//
// Session source is locked at session start; later beacons never change it.
// An identical path repeated within the dedup window bumps last_seen_at but
// records no event and does not increment page_count.
type SessionTracker interface {
	// ActiveSession resolves the visitor's single active session: the one
	// the client claims if it checks out, else the visitor's latest if
	// still active, else nil. A timed-out session is never reactivated.
	ActiveSession(ctx context.Context, visitorID uint, claimedUUID uuid.UUID) (*models.TrackingSession, error)
	Track(ctx context.Context, in *TrackInput) (*TrackOutcome, error)
	// EndSession marks the session ended now. Ending an already-ended or
	// unknown session is a no-op.
	EndSession(ctx context.Context, sessionUUID uuid.UUID) error
}

// TrackInput carries one attributed beacon into the tracker. Session is the
// resolved active session from ActiveSession; nil starts a new visit.
type TrackInput struct {
	VisitorID   uint
	Session     *models.TrackingSession
	Path        string
	Attribution SourceAttribution
	Metadata    *ClientMetadata
}

// TrackOutcome reports what the tracker did with a beacon
type TrackOutcome struct {
	Session    *models.TrackingSession
	NewSession bool
	Deduped    bool
}

// SessionTrackerImpl implements SessionTracker
type SessionTrackerImpl struct {
	sessionRepo    repository.TrackingSessionRepository
	eventRepo      repository.PageViewEventRepository
	sessionTimeout time.Duration
	dedupWindow    time.Duration
}

func NewSessionTracker(
	sessionRepo repository.TrackingSessionRepository,
	eventRepo repository.PageViewEventRepository,
	sessionTimeout time.Duration,
	dedupWindow time.Duration,
) SessionTracker {
	return &SessionTrackerImpl{
		sessionRepo:    sessionRepo,
		eventRepo:      eventRepo,
		sessionTimeout: sessionTimeout,
		dedupWindow:    dedupWindow,
	}
}

func (st *SessionTrackerImpl) Track(ctx context.Context, in *TrackInput) (*TrackOutcome, error) {
	now := utils.UTCNow()

	session := in.Session
	if session == nil {
		var err error
		session, err = st.startSession(ctx, in, now)
		if err != nil {
			return nil, err
		}
		if err := st.appendEvent(ctx, session, in, now); err != nil {
			return nil, err
		}
		return &TrackOutcome{Session: session, NewSession: true}, nil
	}

	// Repeated identical path inside the dedup window: touch the session
	// so it stays alive, but record nothing.
	dup, err := st.isDuplicate(ctx, session.ID, in.Path, now)
	if err != nil {
		return nil, err
	}
	if dup {
		if err := st.sessionRepo.TouchLastSeen(ctx, session.ID, now); err != nil {
			return nil, NewBusinessError("SESSION_TOUCH_FAILED", "Failed to refresh session", err)
		}
		session.LastSeenAt = now
		return &TrackOutcome{Session: session, Deduped: true}, nil
	}

	if err := st.sessionRepo.RecordView(ctx, session.ID, now); err != nil {
		return nil, NewBusinessError("SESSION_RECORD_VIEW_FAILED", "Failed to record page view on session", err)
	}
	session.LastSeenAt = now
	session.PageCount++

	if err := st.appendEvent(ctx, session, in, now); err != nil {
		return nil, err
	}
	return &TrackOutcome{Session: session}, nil
}

func (st *SessionTrackerImpl) EndSession(ctx context.Context, sessionUUID uuid.UUID) error {
	now := utils.UTCNow()

	session, err := st.sessionRepo.ByUUID(ctx, sessionUUID)
	if err != nil {
		return NewBusinessError("SESSION_LOOKUP_FAILED", "Failed to lookup session", err)
	}
	if session == nil || session.EndedAt != nil {
		return nil
	}

	if err := st.sessionRepo.End(ctx, session.ID, now); err != nil {
		return NewBusinessError("SESSION_END_FAILED", "Failed to end session", err)
	}
	return nil
}

func (st *SessionTrackerImpl) ActiveSession(ctx context.Context, visitorID uint, claimedUUID uuid.UUID) (*models.TrackingSession, error) {
	now := utils.UTCNow()

	if claimedUUID != uuid.Nil {
		session, err := st.sessionRepo.ByUUID(ctx, claimedUUID)
		if err != nil {
			return nil, NewBusinessError("SESSION_LOOKUP_FAILED", "Failed to lookup session", err)
		}
		if session != nil && session.VisitorID == visitorID && session.IsActive(now, st.sessionTimeout) {
			return session, nil
		}
	}

	latest, err := st.sessionRepo.LatestByVisitor(ctx, visitorID)
	if err != nil {
		return nil, NewBusinessError("SESSION_LOOKUP_FAILED", "Failed to lookup latest session", err)
	}
	if latest != nil && latest.IsActive(now, st.sessionTimeout) {
		return latest, nil
	}
	return nil, nil
}

func (st *SessionTrackerImpl) startSession(ctx context.Context, in *TrackInput, now time.Time) (*models.TrackingSession, error) {
	session := &models.TrackingSession{
		UUID:        uuid.New(),
		VisitorID:   in.VisitorID,
		Source:      string(in.Attribution.Category),
		LandingPath: in.Path,
		PageCount:   1,
		StartedAt:   now,
		LastSeenAt:  now,
	}
	if err := st.sessionRepo.Save(ctx, session); err != nil {
		return nil, NewBusinessError("SESSION_CREATE_FAILED", "Failed to create session", err)
	}
	return session, nil
}

func (st *SessionTrackerImpl) isDuplicate(ctx context.Context, sessionID uint, path string, now time.Time) (bool, error) {
	if st.dedupWindow <= 0 {
		return false, nil
	}
	last, err := st.eventRepo.LastBySession(ctx, sessionID)
	if err != nil {
		return false, NewBusinessError("EVENT_LOOKUP_FAILED", "Failed to lookup last event", err)
	}
	if last == nil {
		return false, nil
	}
	return last.Path == path && now.Sub(last.OccurredAt) < st.dedupWindow, nil
}

func (st *SessionTrackerImpl) appendEvent(ctx context.Context, session *models.TrackingSession, in *TrackInput, now time.Time) error {
	event := &models.PageViewEvent{
		SessionID:  session.ID,
		OccurredAt: now,
		Path:       in.Path,
		Source:     string(in.Attribution.Category),
	}
	if in.Attribution.RawReferrer != "" {
		event.Referrer = utils.ToPtr(in.Attribution.RawReferrer)
	}
	if in.Metadata != nil {
		event.IP = in.Metadata.ipPtr()
		event.UserAgent = in.Metadata.userAgentPtr()
	}
	if err := st.eventRepo.Save(ctx, event); err != nil {
		return NewBusinessError("EVENT_CREATE_FAILED", "Failed to record page view event", err)
	}
	return nil
}
