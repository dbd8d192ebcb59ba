package handlers

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/Munim94s/peakself-backend/app/dto"
	businessflow "github.com/Munim94s/peakself-backend/business_flow"
	"github.com/Munim94s/peakself-backend/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// TrafficAdminHandlerInterface defines the admin traffic inspection endpoints
type TrafficAdminHandlerInterface interface {
	ListSessions(c fiber.Ctx) error
	SessionDetail(c fiber.Ctx) error
	Summary(c fiber.Ctx) error
	Events(c fiber.Ctx) error
	Timeline(c fiber.Ctx) error
	ExportEvents(c fiber.Ctx) error
}

// TrafficAdminHandler implements TrafficAdminHandlerInterface
type TrafficAdminHandler struct {
	flow      businessflow.TrafficFlow
	validator *validator.Validate
}

func NewTrafficAdminHandler(flow businessflow.TrafficFlow) TrafficAdminHandlerInterface {
	return &TrafficAdminHandler{
		flow:      flow,
		validator: validator.New(),
	}
}

func (h *TrafficAdminHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, code string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{Success: false, Message: message, Error: dto.ErrorDetail{Code: code, Details: details}})
}

func (h *TrafficAdminHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{Success: true, Message: message, Data: data})
}

// ListSessions returns a page of tracking sessions, newest first
// @Summary Admin List Sessions
// @Tags Admin Traffic
// @Produce json
// @Param page query int false "Page number (1-based)"
// @Param page_size query int false "Page size (max 200)"
// @Param source query string false "Filter by source category"
// @Param visitor_id query int false "Filter by visitor ID"
// @Param active query bool false "Filter by liveness"
// @Param since_days query int false "Only sessions started within the last N days"
// @Success 200 {object} dto.APIResponse{data=dto.SessionListResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/admin/traffic/sessions [get]
func (h *TrafficAdminHandler) ListSessions(c fiber.Ctx) error {
	var req dto.SessionListRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/traffic/sessions")
	defer cancel()

	res, err := h.flow.ListSessions(ctx, &req)
	if err != nil {
		if businessflow.IsInvalidRange(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid filter", "INVALID_RANGE", nil)
		}
		log.Println("Admin list sessions failed:", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list sessions", "LIST_SESSIONS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Sessions retrieved", res)
}

// SessionDetail returns one session with its ordered page view events
// @Summary Admin Session Detail
// @Tags Admin Traffic
// @Produce json
// @Param uuid path string true "Session UUID"
// @Success 200 {object} dto.APIResponse{data=dto.SessionEventsResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/admin/traffic/sessions/{uuid} [get]
func (h *TrafficAdminHandler) SessionDetail(c fiber.Ctx) error {
	sessionUUID, err := uuid.Parse(c.Params("uuid"))
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid session UUID", "INVALID_REQUEST", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/traffic/sessions/:uuid")
	defer cancel()

	res, err := h.flow.SessionDetail(ctx, sessionUUID)
	if err != nil {
		if businessflow.IsSessionNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Session not found", "SESSION_NOT_FOUND", nil)
		}
		log.Println("Admin session detail failed:", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load session", "SESSION_DETAIL_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Session retrieved", res)
}

// Summary returns view totals grouped by source category for the range
// @Summary Admin Traffic Summary
// @Tags Admin Traffic
// @Produce json
// @Param days query int false "Range in days (default 7, max 365)"
// @Success 200 {object} dto.APIResponse{data=dto.TrafficSummaryResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/admin/traffic/summary [get]
func (h *TrafficAdminHandler) Summary(c fiber.Ctx) error {
	var req dto.TrafficSummaryRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/traffic/summary")
	defer cancel()

	res, err := h.flow.Summary(ctx, &req)
	if err != nil {
		log.Println("Admin traffic summary failed:", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to compute summary", "TRAFFIC_SUMMARY_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Summary retrieved", res)
}

// Events returns a page of raw page view events, newest first
// @Summary Admin Traffic Events
// @Tags Admin Traffic
// @Produce json
// @Param page query int false "Page number (1-based)"
// @Param page_size query int false "Page size (max 200)"
// @Param source query string false "Filter by source category"
// @Param path query string false "Filter by exact path"
// @Param ref query string false "Filter by referrer substring"
// @Param since_days query int false "Only events within the last N days"
// @Success 200 {object} dto.APIResponse{data=dto.TrafficEventsResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/admin/traffic/events [get]
func (h *TrafficAdminHandler) Events(c fiber.Ctx) error {
	var req dto.TrafficEventsRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/traffic/events")
	defer cancel()

	res, err := h.flow.Events(ctx, &req)
	if err != nil {
		if businessflow.IsInvalidRange(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid filter", "INVALID_RANGE", nil)
		}
		log.Println("Admin traffic events failed:", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list events", "TRAFFIC_EVENTS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Events retrieved", res)
}

// Timeline returns per-day views and unique visitors for the range
// @Summary Admin Traffic Timeline
// @Tags Admin Traffic
// @Produce json
// @Param days query int false "Range in days (default 7, max 365)"
// @Success 200 {object} dto.APIResponse{data=dto.TrafficTimelineResponse}
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/admin/traffic/timeline [get]
func (h *TrafficAdminHandler) Timeline(c fiber.Ctx) error {
	days, _ := strconv.Atoi(c.Query("days", "0"))

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/traffic/timeline")
	defer cancel()

	res, err := h.flow.Timeline(ctx, days)
	if err != nil {
		log.Println("Admin traffic timeline failed:", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to compute timeline", "TRAFFIC_TIMELINE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Timeline retrieved", res)
}

// ExportEvents streams the filtered event log as an Excel workbook
// @Summary Admin Export Traffic Events (Excel)
// @Tags Admin Traffic
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param source query string false "Filter by source category"
// @Param path query string false "Filter by exact path"
// @Param ref query string false "Filter by referrer substring"
// @Param since_days query int false "Only events within the last N days"
// @Success 200 {string} string "XLSX file"
// @Failure 400 {object} dto.APIResponse
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/admin/traffic/events/export [get]
func (h *TrafficAdminHandler) ExportEvents(c fiber.Ctx) error {
	var req dto.TrafficEventsRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}

	ctx, cancel := h.createRequestContextWithTimeout(c, "/api/v1/admin/traffic/events/export", 2*time.Minute)
	defer cancel()

	filename, data, err := h.flow.ExportEventsXLSX(ctx, &req)
	if err != nil {
		log.Println("Admin export traffic events failed:", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate export", "EXPORT_FAILED", nil)
	}

	c.Set("Content-Type", xlsxContentType)
	c.Set("Content-Disposition", "attachment; filename="+filename)
	return c.Send(data)
}

func (h *TrafficAdminHandler) createRequestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	return h.createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

func (h *TrafficAdminHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	return ctx, cancel
}
