package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/xraph/billing"
)

// Header names.
const (
	HeaderRequestID = "X-Request-Id"
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

const (
	ctxRequestID = "billing.request_id"
	ctxActor     = "billing.actor"
)

// RequestID propagates the caller's request id or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(ctxRequestID, rid)
		c.Header(HeaderRequestID, rid)
		c.Next()
	}
}

// RequireActor rejects requests without a recognisable actor.
func RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFromHeaders(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "unauthenticated", "missing or invalid actor headers")
			return
		}
		c.Set(ctxActor, actor)
		c.Next()
	}
}

// RequireStaff limits a route to employees and admins.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !actorFrom(c).Staff() {
			abort(c, http.StatusForbidden, "forbidden", "staff role required")
			return
		}
		c.Next()
	}
}

func actorFromHeaders(c *gin.Context) (billing.Actor, bool) {
	a := billing.Actor{
		ID:   strings.TrimSpace(c.GetHeader(HeaderActorID)),
		Role: billing.Role(strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderActorRole)))),
	}
	if a.ID == "" {
		return billing.Actor{}, false
	}
	switch a.Role {
	case billing.RoleCustomer, billing.RoleEmployee, billing.RoleAdmin:
		return a, true
	default:
		return billing.Actor{}, false
	}
}

func actorFrom(c *gin.Context) billing.Actor {
	if v, ok := c.Get(ctxActor); ok {
		if a, ok := v.(billing.Actor); ok {
			return a
		}
	}
	return billing.Actor{}
}

func (h *Handler) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		h.logger.Info("http request",
			"method", c.Request.Method,
			"route", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", c.GetString(ctxRequestID),
		)
	}
}
