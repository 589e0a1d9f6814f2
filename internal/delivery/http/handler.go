package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/vogiaan1904/barberqueue/internal/analytics"
	"github.com/vogiaan1904/barberqueue/internal/models"
	"github.com/vogiaan1904/barberqueue/internal/service"
	"github.com/vogiaan1904/barberqueue/internal/session"
	"github.com/vogiaan1904/barberqueue/pkg/logger"
	"github.com/vogiaan1904/barberqueue/pkg/response"
	"github.com/vogiaan1904/barberqueue/pkg/util"
)

const headerDeviceID = "X-Device-ID"

// DeviceRegistry is told about every device that joins or registers, so
// its owner can be notified about queue progress.
type DeviceRegistry interface {
	Watch(deviceID string)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Queue   service.QueueService
	Revenue service.RevenueService
	Auth    *session.Authenticator
	Tokens  *session.TokenIssuer
	Bus     *session.AdminBus
	Devices DeviceRegistry
	Health  Pinger
	Clock   util.Clock
}

type Handler struct {
	Deps
	l logger.Logger
}

func NewHandler(d Deps, l logger.Logger) *Handler {
	return &Handler{Deps: d, l: l}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	if h.Health != nil {
		if err := h.Health.Ping(c.Request.Context()); err != nil {
			h.l.Warnf(c.Request.Context(), "delivery.http.HealthCheck: %v", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "barberqueue",
	})
}

func (h *Handler) RegisterDevice(c *gin.Context) {
	id := uuid.NewString()
	if h.Devices != nil {
		h.Devices.Watch(id)
	}
	response.Created(c, deviceResponse{DeviceID: id})
}

// JoinQueue admits an online customer.
func (h *Handler) JoinQueue(c *gin.Context) {
	h.join(c, models.ChannelOnline)
}

// AdminJoinQueue admits a walk-in unless the body names another channel.
func (h *Handler) AdminJoinQueue(c *gin.Context) {
	h.join(c, models.ChannelWalkIn)
}

func (h *Handler) join(c *gin.Context, defaultChannel models.Channel) {
	ctx := c.Request.Context()

	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errInvalidRequest)
		return
	}

	channel := defaultChannel
	if defaultChannel == models.ChannelWalkIn && req.Channel != "" {
		channel = req.Channel
	}

	id, err := h.Queue.Join(ctx, req.toInput(channel))
	if err != nil {
		response.Error(c, mapError(err))
		return
	}
	if channel == models.ChannelOnline && req.DeviceID != "" && h.Devices != nil {
		h.Devices.Watch(req.DeviceID)
	}

	pos, err := h.Queue.Position(ctx, id)
	if err != nil {
		h.l.Warnf(ctx, "delivery.http.join: position for %s: %v", id, err)
		pos = service.PositionOutput{EntryID: id, Status: models.EntryStatusWaiting, Ahead: -1}
	}
	response.Created(c, joinResponse{ID: id, Position: pos})
}

func (h *Handler) ListQueue(c *gin.Context) {
	active, err := h.Queue.ListActive(c.Request.Context())
	if err != nil {
		response.Error(c, mapError(err))
		return
	}
	response.OK(c, newQueueResponse(active))
}

func (h *Handler) GetPosition(c *gin.Context) {
	pos, err := h.Queue.Position(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, mapError(err))
		return
	}
	response.OK(c, pos)
}

// LeaveQueue lets a customer drop their own entry. The caller proves
// ownership with the device id the entry was joined with.
func (h *Handler) LeaveQueue(c *gin.Context) {
	deviceID := c.GetHeader(headerDeviceID)
	if err := h.Queue.Leave(c.Request.Context(), c.Param("id"), deviceID); err != nil {
		response.Error(c, mapError(err))
		return
	}
	response.OK(c, nil)
}

func (h *Handler) Serve(c *gin.Context) {
	if err := h.Queue.Serve(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, mapError(err))
		return
	}
	response.OK(c, nil)
}

func (h *Handler) Complete(c *gin.Context) {
	var req completeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errInvalidRequest)
		return
	}
	if err := h.Queue.Complete(c.Request.Context(), c.Param("id"), *req.Amount); err != nil {
		response.Error(c, mapError(err))
		return
	}
	response.OK(c, nil)
}

func (h *Handler) Remove(c *gin.Context) {
	if err := h.Queue.Remove(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, mapError(err))
		return
	}
	response.OK(c, nil)
}

// MoveDown uses the caller's snapshot when given, else the live order.
func (h *Handler) MoveDown(c *gin.Context) {
	ctx := c.Request.Context()

	var req moveDownRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, errInvalidRequest)
			return
		}
	}

	snapshot := req.entries()
	if len(snapshot) == 0 {
		active, err := h.Queue.ListActive(ctx)
		if err != nil {
			response.Error(c, mapError(err))
			return
		}
		snapshot = active
	}

	if err := h.Queue.MoveDown(ctx, c.Param("id"), snapshot); err != nil {
		response.Error(c, mapError(err))
		return
	}
	response.OK(c, nil)
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errInvalidRequest)
		return
	}
	if err := h.Auth.Check(req.Password); err != nil {
		h.l.Warnf(c.Request.Context(), "delivery.http.Login: rejected login from %s", c.ClientIP())
		response.Error(c, mapError(err))
		return
	}

	token, exp, err := h.Tokens.Issue()
	if err != nil {
		h.l.Errorf(c.Request.Context(), "delivery.http.Login: %v", err)
		response.Error(c, err)
		return
	}
	h.Bus.Set(true)
	response.OK(c, loginResponse{Token: token, ExpiresAt: exp})
}

func (h *Handler) Logout(c *gin.Context) {
	h.Bus.Set(false)
	response.OK(c, nil)
}

func (h *Handler) Session(c *gin.Context) {
	claims, _ := c.Get(ctxAdminClaims)
	ac, ok := claims.(*session.AdminClaims)
	if !ok {
		response.Error(c, errInvalidToken)
		return
	}
	var exp time.Time
	if ac.ExpiresAt != nil {
		exp = ac.ExpiresAt.Time
	}
	response.OK(c, gin.H{
		"role":                  ac.Role,
		"expires_at":            exp,
		"notifications_enabled": h.Bus.Enabled(),
	})
}

func (h *Handler) GetNotifications(c *gin.Context) {
	response.OK(c, notificationsResponse{Enabled: h.Bus.Enabled()})
}

func (h *Handler) SetNotifications(c *gin.Context) {
	var req notificationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errInvalidRequest)
		return
	}
	h.Bus.Set(*req.Enabled)
	response.OK(c, notificationsResponse{Enabled: *req.Enabled})
}

func (h *Handler) Stats(c *gin.Context) {
	st, err := h.Revenue.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, mapError(err))
		return
	}
	response.OK(c, st)
}

// MonthDays returns every day of ?month=YYYY-MM (default: this month),
// zero-filled.
func (h *Handler) MonthDays(c *gin.Context) {
	now := h.Clock.Now()
	monthStart := util.StartOfMonth(now)
	if raw := c.Query("month"); raw != "" {
		t, err := time.ParseInLocation("2006-01", raw, now.Location())
		if err != nil {
			response.Error(c, errInvalidRequest)
			return
		}
		monthStart = t
	}

	st, err := h.Revenue.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, mapError(err))
		return
	}
	response.OK(c, monthDaysResponse{
		MonthStart: monthStart.UnixMilli(),
		Days:       analytics.DenseMonth(st, monthStart),
	})
}

func (h *Handler) RevenueLogs(c *gin.Context) {
	logs, err := h.Revenue.Logs(c.Request.Context())
	if err != nil {
		response.Error(c, mapError(err))
		return
	}
	response.OK(c, logs)
}

func (h *Handler) NotFound(c *gin.Context) {
	response.Error(c, errRouteNotFound)
}
