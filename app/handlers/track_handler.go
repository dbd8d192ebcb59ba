// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"time"

	"github.com/Munim94s/peakself-backend/app/dto"
	businessflow "github.com/Munim94s/peakself-backend/business_flow"
	"github.com/Munim94s/peakself-backend/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// TrackHandlerInterface defines the contract for the public tracking endpoints
type TrackHandlerInterface interface {
	TrackPageView(c fiber.Ctx) error
	TrackEngagement(c fiber.Ctx) error
	TrackEnd(c fiber.Ctx) error
}

// TrackHandler implements TrackHandlerInterface.
//
// Every endpoint here replies 200 {success:true} no matter what went wrong:
// a malformed beacon, a failed validation, or a pipeline error must never
// surface to the page being tracked. The flow layer logs and counts the
// failures.
type TrackHandler struct {
	flow      businessflow.TrackingFlow
	validator *validator.Validate
}

func NewTrackHandler(flow businessflow.TrackingFlow) TrackHandlerInterface {
	return &TrackHandler{
		flow:      flow,
		validator: validator.New(),
	}
}

// TrackPageView ingests one page view beacon
// @Summary Track page view
// @Description Record a page navigation; returns the visitor token and session UUID the client must persist
// @Tags Tracking
// @Accept json
// @Produce json
// @Param request body dto.TrackPageViewRequest true "Page view beacon"
// @Success 200 {object} dto.APIResponse{data=dto.TrackResponse} "Always succeeds"
// @Router /api/v1/track [post]
func (h *TrackHandler) TrackPageView(c fiber.Ctx) error {
	var req dto.TrackPageViewRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.accepted(c, nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.accepted(c, nil)
	}

	ctx, cancel := h.requestContext(c, "/api/v1/track")
	defer cancel()

	resp := h.flow.TrackPageView(ctx, &req, h.metadata(c))
	return h.accepted(c, resp)
}

// TrackEngagement ingests one engagement signal for a post
// @Summary Track engagement event
// @Description Record a scroll checkpoint, share, CTA click, or time-on-page sample
// @Tags Tracking
// @Accept json
// @Produce json
// @Param request body dto.TrackEngagementRequest true "Engagement beacon"
// @Success 200 {object} dto.APIResponse "Always succeeds"
// @Router /api/v1/track/engagement [post]
func (h *TrackHandler) TrackEngagement(c fiber.Ctx) error {
	var req dto.TrackEngagementRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.accepted(c, nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.accepted(c, nil)
	}

	ctx, cancel := h.requestContext(c, "/api/v1/track/engagement")
	defer cancel()

	h.flow.TrackEngagement(ctx, &req, h.metadata(c))
	return h.accepted(c, nil)
}

// TrackEnd ingests the departure beacon
// @Summary End tracking session
// @Description Mark the visitor's session as explicitly ended
// @Tags Tracking
// @Accept json
// @Produce json
// @Param request body dto.TrackEndRequest true "Departure beacon"
// @Success 200 {object} dto.APIResponse "Always succeeds"
// @Router /api/v1/track/end [post]
func (h *TrackHandler) TrackEnd(c fiber.Ctx) error {
	var req dto.TrackEndRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.accepted(c, nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.accepted(c, nil)
	}

	ctx, cancel := h.requestContext(c, "/api/v1/track/end")
	defer cancel()

	h.flow.EndSession(ctx, &req, h.metadata(c))
	return h.accepted(c, nil)
}

func (h *TrackHandler) accepted(c fiber.Ctx, data any) error {
	return c.Status(fiber.StatusOK).JSON(dto.APIResponse{
		Success: true,
		Message: "ok",
		Data:    data,
	})
}

func (h *TrackHandler) metadata(c fiber.Ctx) *businessflow.ClientMetadata {
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	metadata.SetRequestID(c.Get("X-Request-ID"))
	return metadata
}

func (h *TrackHandler) requestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	return ctx, cancel
}
