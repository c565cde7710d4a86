package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sitequote/billing/internal/types"
)

// RequestIDMiddleware propagates the caller's request id or mints one
func RequestIDMiddleware(c *gin.Context) {
	requestID := c.GetHeader(types.HeaderRequestID)
	if requestID == "" {
		requestID = uuid.New().String()
	}

	ctx := context.WithValue(c.Request.Context(), types.CtxRequestID, requestID)
	c.Request = c.Request.WithContext(ctx)
	c.Header(types.HeaderRequestID, requestID)

	c.Next()
}

// ActorMiddleware records who is acting on the request. Authentication
// happens in front of this service; the gateway forwards the admin id.
func ActorMiddleware(c *gin.Context) {
	userID := c.GetHeader(types.HeaderUserID)
	if userID == "" {
		userID = types.DefaultUserID
	}

	ctx := context.WithValue(c.Request.Context(), types.CtxUserID, userID)
	c.Request = c.Request.WithContext(ctx)
	c.Next()
}
