package businessflow

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/Munim94s/peakself-backend/app/dto"
	"github.com/Munim94s/peakself-backend/app/services"
	"github.com/Munim94s/peakself-backend/config"
	"github.com/Munim94s/peakself-backend/repository"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	beaconsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "peakself",
		Name:      "tracking_beacons_total",
		Help:      "Tracking beacons received, by kind and outcome",
	}, []string{"kind", "outcome"})

	pipelineErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "peakself",
		Name:      "tracking_pipeline_errors_total",
		Help:      "Errors swallowed inside the tracking pipeline, by stage",
	}, []string{"stage"})
)

// TrackingFlow is the ingestion pipeline behind the public tracking
// endpoints. Its contract is fire-and-forget: every downstream error is
// logged, counted, and swallowed so a tracking failure can never break the
// page being tracked. The error boundary lives here, deliberately, rather
// than in the handler.
type TrackingFlow interface {
	// TrackPageView runs attribution, visitor identification, session
	// tracking and post view counting for one beacon. Always returns a
	// response the client can persist.
	TrackPageView(ctx context.Context, req *dto.TrackPageViewRequest, metadata *ClientMetadata) *dto.TrackResponse
	// TrackEngagement applies one engagement signal.
	TrackEngagement(ctx context.Context, req *dto.TrackEngagementRequest, metadata *ClientMetadata)
	// EndSession handles the departure beacon.
	EndSession(ctx context.Context, req *dto.TrackEndRequest, metadata *ClientMetadata)
}

// TrackingFlowImpl implements TrackingFlow
type TrackingFlowImpl struct {
	registry   VisitorRegistry
	tracker    SessionTracker
	aggregator EngagementAggregator
	postRepo   repository.PostRepository
	cache      services.AnalyticsCache
	analytics  config.AnalyticsConfig
}

func NewTrackingFlow(
	registry VisitorRegistry,
	tracker SessionTracker,
	aggregator EngagementAggregator,
	postRepo repository.PostRepository,
	cache services.AnalyticsCache,
	analytics config.AnalyticsConfig,
) TrackingFlow {
	return &TrackingFlowImpl{
		registry:   registry,
		tracker:    tracker,
		aggregator: aggregator,
		postRepo:   postRepo,
		cache:      cache,
		analytics:  analytics,
	}
}

func (tf *TrackingFlowImpl) TrackPageView(ctx context.Context, req *dto.TrackPageViewRequest, metadata *ClientMetadata) *dto.TrackResponse {
	resp := &dto.TrackResponse{
		VisitorToken: req.VisitorToken,
		SessionUUID:  req.SessionUUID,
	}

	// A brand-new visitor necessarily starts a new session, so first-view
	// attribution is correct for the creation path; on an existing visitor
	// the registry ignores the passed source anyway.
	firstViewAttribution := ClassifySource(req.Referrer, req.SourceHint, tf.analytics.SiteOrigin, true)

	identity, err := tf.registry.Identify(ctx, req.VisitorToken, firstViewAttribution.Category)
	if err != nil {
		tf.swallow("identify", err, metadata)
		beaconsTotal.WithLabelValues("page_view", "error").Inc()
		return resp
	}
	resp.VisitorToken = identity.Token

	claimed := parseSessionUUID(req.SessionUUID)
	session, err := tf.tracker.ActiveSession(ctx, identity.ID, claimed)
	if err != nil {
		tf.swallow("resolve_session", err, metadata)
		beaconsTotal.WithLabelValues("page_view", "error").Inc()
		return resp
	}

	// Hints and the direct fallback only apply on the first view of a
	// session; attribution for a continuing session is informational (the
	// session source is already locked).
	attribution := ClassifySource(req.Referrer, req.SourceHint, tf.analytics.SiteOrigin, session == nil)

	outcome, err := tf.tracker.Track(ctx, &TrackInput{
		VisitorID:   identity.ID,
		Session:     session,
		Path:        req.Path,
		Attribution: attribution,
		Metadata:    metadata,
	})
	if err != nil {
		tf.swallow("track", err, metadata)
		beaconsTotal.WithLabelValues("page_view", "error").Inc()
		return resp
	}
	resp.SessionUUID = outcome.Session.UUID.String()

	if outcome.Deduped {
		beaconsTotal.WithLabelValues("page_view", "deduped").Inc()
		return resp
	}

	// A view of a blog post also feeds the per-post aggregates.
	if postID, ok := tf.resolvePost(ctx, req.Path); ok {
		if err := tf.aggregator.RecordView(ctx, postID, identity.Token); err != nil {
			tf.swallow("post_view", err, metadata)
		} else {
			tf.cache.Invalidate(ctx, "dashboard:*", "traffic:*", fmt.Sprintf("post:%d:*", postID))
		}
	} else {
		tf.cache.Invalidate(ctx, "dashboard:*", "traffic:*")
	}

	beaconsTotal.WithLabelValues("page_view", "ok").Inc()
	return resp
}

func (tf *TrackingFlowImpl) TrackEngagement(ctx context.Context, req *dto.TrackEngagementRequest, metadata *ClientMetadata) {
	event := &EngagementEvent{
		PostID:      req.PostID,
		SessionUUID: parseSessionUUID(req.SessionUUID),
		Type:        req.EventType,
		ScrollDepth: req.ScrollDepth,
		Platform:    req.Platform,
		Seconds:     req.Seconds,
	}

	if err := tf.aggregator.RecordEvent(ctx, event); err != nil {
		tf.swallow("engagement", err, metadata)
		beaconsTotal.WithLabelValues("engagement", "error").Inc()
		return
	}

	tf.cache.Invalidate(ctx, "dashboard:*", fmt.Sprintf("post:%d:*", req.PostID))
	beaconsTotal.WithLabelValues("engagement", "ok").Inc()
}

func (tf *TrackingFlowImpl) EndSession(ctx context.Context, req *dto.TrackEndRequest, metadata *ClientMetadata) {
	sessionUUID := parseSessionUUID(req.SessionUUID)
	if sessionUUID == uuid.Nil {
		return
	}

	if err := tf.tracker.EndSession(ctx, sessionUUID); err != nil {
		tf.swallow("end_session", err, metadata)
		beaconsTotal.WithLabelValues("end", "error").Inc()
		return
	}

	tf.cache.Invalidate(ctx, "dashboard:*", "traffic:*")
	beaconsTotal.WithLabelValues("end", "ok").Inc()
}

// resolvePost maps a viewed path onto a known post. Blog posts live under
// /blog/<slug>; anything else, and any unknown slug, is not a post view.
func (tf *TrackingFlowImpl) resolvePost(ctx context.Context, path string) (uint, bool) {
	slug, ok := postSlugFromPath(path)
	if !ok {
		return 0, false
	}
	post, err := tf.postRepo.BySlug(ctx, slug)
	if err != nil {
		pipelineErrors.WithLabelValues("post_lookup").Inc()
		log.Printf("post lookup failed for %s: %v", path, err)
		return 0, false
	}
	if post == nil {
		return 0, false
	}
	return post.ID, true
}

func (tf *TrackingFlowImpl) swallow(stage string, err error, metadata *ClientMetadata) {
	pipelineErrors.WithLabelValues(stage).Inc()
	requestID := ""
	if metadata != nil {
		requestID = metadata.RequestID
	}
	log.Printf("tracking pipeline stage %s failed (request_id=%s): %v", stage, requestID, err)
}

func parseSessionUUID(raw string) uuid.UUID {
	if raw == "" {
		return uuid.Nil
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil
	}
	return parsed
}

func postSlugFromPath(path string) (string, bool) {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	trimmed := strings.Trim(path, "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) != 2 || parts[0] != "blog" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
