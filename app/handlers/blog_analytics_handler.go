package handlers

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/Munim94s/peakself-backend/app/dto"
	businessflow "github.com/Munim94s/peakself-backend/business_flow"
	"github.com/Munim94s/peakself-backend/utils"
	"github.com/gofiber/fiber/v3"
)

// BlogAnalyticsHandlerInterface defines the admin per-post analytics endpoints
type BlogAnalyticsHandlerInterface interface {
	ListPosts(c fiber.Ctx) error
	PostAnalytics(c fiber.Ctx) error
	Heatmap(c fiber.Ctx) error
	Audience(c fiber.Ctx) error
	ResetStats(c fiber.Ctx) error
}

// BlogAnalyticsHandler implements BlogAnalyticsHandlerInterface
type BlogAnalyticsHandler struct {
	flow businessflow.BlogAnalyticsFlow
}

func NewBlogAnalyticsHandler(flow businessflow.BlogAnalyticsFlow) BlogAnalyticsHandlerInterface {
	return &BlogAnalyticsHandler{flow: flow}
}

func (h *BlogAnalyticsHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, code string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{Success: false, Message: message, Error: dto.ErrorDetail{Code: code, Details: details}})
}

func (h *BlogAnalyticsHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{Success: true, Message: message, Data: data})
}

// ListPosts returns engagement stats for all posts, best scoring first
// @Summary Admin List Post Analytics
// @Tags Admin Blog Analytics
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.BlogAnalyticsListResponse}
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/admin/blog/analytics [get]
func (h *BlogAnalyticsHandler) ListPosts(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/blog/analytics")
	defer cancel()

	res, err := h.flow.ListPosts(ctx)
	if err != nil {
		log.Println("Admin list post analytics failed:", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list post analytics", "LIST_POST_ANALYTICS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Post analytics retrieved", res)
}

// PostAnalytics returns aggregated engagement counters for one post
// @Summary Admin Post Analytics
// @Tags Admin Blog Analytics
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} dto.APIResponse{data=dto.PostAnalyticsDTO}
// @Failure 400 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/admin/blog/analytics/{id} [get]
func (h *BlogAnalyticsHandler) PostAnalytics(c fiber.Ctx) error {
	postID, ok := h.postIDParam(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid post ID", "INVALID_REQUEST", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/blog/analytics/:id")
	defer cancel()

	res, err := h.flow.PostAnalytics(ctx, postID)
	if err != nil {
		if businessflow.IsPostNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Post not found", "POST_NOT_FOUND", nil)
		}
		log.Println("Admin post analytics failed:", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load post analytics", "POST_ANALYTICS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Post analytics retrieved", res)
}

// Heatmap returns the scroll depth funnel for one post
// @Summary Admin Post Scroll Heatmap
// @Tags Admin Blog Analytics
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} dto.APIResponse{data=dto.PostHeatmapResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/admin/blog/analytics/{id}/heatmap [get]
func (h *BlogAnalyticsHandler) Heatmap(c fiber.Ctx) error {
	postID, ok := h.postIDParam(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid post ID", "INVALID_REQUEST", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/blog/analytics/:id/heatmap")
	defer cancel()

	res, err := h.flow.Heatmap(ctx, postID)
	if err != nil {
		if businessflow.IsPostNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Post not found", "POST_NOT_FOUND", nil)
		}
		log.Println("Admin post heatmap failed:", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load heatmap", "POST_HEATMAP_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Heatmap retrieved", res)
}

// Audience returns visitor totals and first-source distribution
// @Summary Admin Audience Overview
// @Tags Admin Blog Analytics
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.AudienceResponse}
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/admin/blog/audience [get]
func (h *BlogAnalyticsHandler) Audience(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/blog/audience")
	defer cancel()

	res, err := h.flow.Audience(ctx)
	if err != nil {
		log.Println("Admin audience overview failed:", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load audience overview", "AUDIENCE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Audience retrieved", res)
}

// ResetStats zeroes the engagement counters of one post
// @Summary Admin Reset Post Analytics
// @Tags Admin Blog Analytics
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} dto.APIResponse
// @Failure 400 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/admin/blog/analytics/{id}/reset [post]
func (h *BlogAnalyticsHandler) ResetStats(c fiber.Ctx) error {
	postID, ok := h.postIDParam(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid post ID", "INVALID_REQUEST", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/blog/analytics/:id/reset")
	defer cancel()

	if err := h.flow.ResetStats(ctx, postID); err != nil {
		if businessflow.IsPostNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Post not found", "POST_NOT_FOUND", nil)
		}
		log.Println("Admin reset post analytics failed:", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to reset post analytics", "RESET_ANALYTICS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Post analytics reset", nil)
}

func (h *BlogAnalyticsHandler) postIDParam(c fiber.Ctx) (uint, bool) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func (h *BlogAnalyticsHandler) createRequestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	return ctx, cancel
}
