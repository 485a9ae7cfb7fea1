package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rollbook/internal/apperr"
	"rollbook/internal/auth"
)

type devTokenRequest struct {
	Email    string `json:"email" binding:"required,email"`
	FullName string `json:"full_name"`
}

// DevToken mints a signed token for a local identity.
func (h *Handler) DevToken(c *gin.Context) {
	var req devTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, badBody(err))
		return
	}
	token, exp, err := auth.Issue(auth.Identity{
		Subject:  auth.DevSubject(req.Email),
		Email:    req.Email,
		FullName: req.FullName,
	}, h.dev.Issuer, h.dev.Secret, h.dev.TTL)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"access_token": token, "expires_at": exp.Unix()})
}

// SignIn creates the caller's profile on first sign-in.
func (h *Handler) SignIn(c *gin.Context) {
	id, ok := actor(c)
	if !ok {
		return
	}
	profile, created, err := h.users.Ensure(c.Request.Context(), id.Subject, id.Email, id.FullName)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.notifier.Publish(c.Request.Context(), auth.Event{Kind: auth.EventSignedIn, Subject: id.Subject, At: time.Now().UTC()}); err != nil {
		h.log.Warn("auth event publish failed", zap.String("subject", id.Subject), zap.Error(err))
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"user": id, "profile": profile})
}

// Session returns the verified identity and its profile, if any.
func (h *Handler) Session(c *gin.Context) {
	id, ok := actor(c)
	if !ok {
		return
	}
	profile, err := h.users.Get(c.Request.Context(), id.Subject)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		c.JSON(http.StatusOK, gin.H{"user": id, "profile": nil})
	case err != nil:
		h.fail(c, err)
	default:
		c.JSON(http.StatusOK, gin.H{"user": id, "profile": profile})
	}
}

type profileRequest struct {
	FullName string `json:"full_name"`
}

// UpdateProfile renames the caller.
func (h *Handler) UpdateProfile(c *gin.Context) {
	id, ok := actor(c)
	if !ok {
		return
	}
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, badBody(err))
		return
	}
	profile, err := h.users.Rename(c.Request.Context(), id.Subject, req.FullName)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// SignOut revokes the presented token until it expires.
func (h *Handler) SignOut(c *gin.Context) {
	id, ok := actor(c)
	if !ok {
		return
	}
	if err := h.revocations.Revoke(c.Request.Context(), id.Token, id.ExpiresAt); err != nil {
		h.fail(c, err)
		return
	}
	if err := h.notifier.Publish(c.Request.Context(), auth.Event{Kind: auth.EventSignedOut, Subject: id.Subject, At: time.Now().UTC()}); err != nil {
		h.log.Warn("auth event publish failed", zap.String("subject", id.Subject), zap.Error(err))
	}
	c.Status(http.StatusNoContent)
}

// SessionEvents streams the caller's sign-in and sign-out events as SSE.
func (h *Handler) SessionEvents(c *gin.Context) {
	id, ok := actor(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	events, err := h.notifier.Subscribe(ctx, id.Subject)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("ready", gin.H{"subject": id.Subject})
	c.Writer.Flush()
	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(ev.Kind, ev)
			return true
		case <-ctx.Done():
			return false
		}
	})
}
