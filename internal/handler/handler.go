// Package handler exposes the roster, marking, record and report operations
// over HTTP.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rollbook/internal/apperr"
	"rollbook/internal/attendance"
	"rollbook/internal/auth"
	"rollbook/internal/marking"
	"rollbook/internal/queue"
	"rollbook/internal/report"
	"rollbook/internal/roster"
	"rollbook/internal/users"
	"rollbook/internal/viewer"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) bool
}

// DevTokens enables POST /v1/dev/token. Leave nil outside development.
type DevTokens struct {
	Issuer string
	Secret string
	TTL    time.Duration
}

// Deps wires the handler to its services.
type Deps struct {
	Users       *users.Service
	Students    *roster.Service
	Records     attendance.Repository
	Reports     *report.Service
	Queue       queue.Queue
	Verifier    auth.TokenVerifier
	Revocations auth.Revocations
	Notifier    auth.Notifier
	DevTokens   *DevTokens
	Health      []HealthCheck
	Log         *zap.Logger
}

// Handler serves the HTTP API.
type Handler struct {
	users       *users.Service
	students    *roster.Service
	records     attendance.Repository
	viewer      *viewer.Service
	reports     *report.Service
	queue       queue.Queue
	verifier    auth.TokenVerifier
	revocations auth.Revocations
	notifier    auth.Notifier
	dev         *DevTokens
	health      []HealthCheck
	log         *zap.Logger
}

// New creates a handler.
func New(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		users:       d.Users,
		students:    d.Students,
		records:     d.Records,
		viewer:      viewer.NewService(d.Students, d.Records),
		reports:     d.Reports,
		queue:       d.Queue,
		verifier:    d.Verifier,
		revocations: d.Revocations,
		notifier:    d.Notifier,
		dev:         d.DevTokens,
		health:      d.Health,
		log:         log,
	}
}

// Register mounts every route on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", h.Healthz)

	v1 := r.Group("/v1")
	if h.dev != nil {
		v1.POST("/dev/token", h.DevToken)
	}

	v1.GET("/session/events", auth.RequireStreamUser(h.verifier, h.revocations), h.SessionEvents)

	authed := v1.Group("", auth.RequireUser(h.verifier, h.revocations))
	{
		authed.POST("/session", h.SignIn)
		authed.GET("/session", h.Session)
		authed.PATCH("/session/profile", h.UpdateProfile)
		authed.DELETE("/session", h.SignOut)

		authed.GET("/students", h.ListStudents)
		authed.POST("/students", h.AddStudent)
		authed.GET("/students/:reg", h.GetStudent)
		authed.PATCH("/students/:reg", h.UpdateStudent)
		authed.DELETE("/students/:reg", h.DeleteStudent)

		authed.GET("/attendance/:date", h.GetSheet)
		authed.PUT("/attendance/:date", h.SaveSheet)

		authed.GET("/records/:date", h.DayRecords)
		authed.DELETE("/records/:date/students/:reg", h.DeleteFromRecords)

		authed.GET("/reports/monthly", h.MonthlyReport)
	}
}

// Healthz reports dependency health.
func (h *Handler) Healthz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for _, hc := range h.health {
		ok := hc.Check(c.Request.Context())
		body[hc.Name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

func actor(c *gin.Context) (auth.Identity, bool) {
	id, ok := auth.CurrentIdentity(c)
	if !ok || id.Subject == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return auth.Identity{}, false
	}
	return id, true
}

func (h *Handler) fail(c *gin.Context, err error) {
	var ve *apperr.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": apperr.ErrValidation.Error(), "fields": ve.Fields})
	case errors.Is(err, apperr.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrConflict), errors.Is(err, marking.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrConfirmationRequired):
		c.JSON(http.StatusPreconditionRequired, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrProfileMissing):
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": err.Error()})
	default:
		h.log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badBody(err error) error {
	return apperr.Invalid("body", err.Error())
}

// publish drops the cached reports a change makes stale before the request
// answers, then queues the change for other replicas and the worker.
func (h *Handler) publish(ctx context.Context, typ string, change queue.Change) {
	msg, err := queue.NewChange(typ, change)
	if err != nil {
		h.log.Warn("encode change failed", zap.String("type", typ), zap.String("owner", change.Owner), zap.Error(err))
		return
	}
	if h.reports != nil {
		if err := h.reports.HandleChange(ctx, msg); err != nil {
			h.log.Warn("report cache invalidation failed", zap.String("type", typ), zap.String("owner", change.Owner), zap.Error(err))
		}
	}
	if h.queue == nil {
		return
	}
	if err := h.queue.Publish(ctx, msg); err != nil {
		h.log.Warn("queue publish failed", zap.String("type", typ), zap.String("owner", change.Owner), zap.Error(err))
	}
}

func queryFilter(c *gin.Context) (attendance.Filter, error) {
	return attendance.ParseFilter(c.Query)
}
