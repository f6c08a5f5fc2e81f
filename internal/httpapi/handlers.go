package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/Vivekkumarprince1/backend-vaani/internal/auth"
	"github.com/Vivekkumarprince1/backend-vaani/internal/calls"
	"github.com/Vivekkumarprince1/backend-vaani/internal/reporting"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth    *auth.Manager
	Calls   *calls.Service
	History *reporting.Service
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
}

// Login issues a JWT token pair.
//
// NOTE: identity resolution (credentials, user records) belongs to the user
// service; this endpoint only mints tokens for an already-resolved user id.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Calls ---

type initiateRequest struct {
	CallType string `json:"call_type"`
}

func (h Handlers) PendingCalls(c *gin.Context) {
	userID, ok := h.identity(c)
	if !ok {
		return
	}
	sessions, err := h.Calls.Pending(c.Request.Context(), userID)
	if err != nil {
		writeCallError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": sessions})
}

func (h Handlers) InitiateCall(c *gin.Context) {
	userID, ok := h.identity(c)
	if !ok {
		return
	}
	var req initiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	sess, err := h.Calls.Initiate(c.Request.Context(), userID, c.Param("room_id"), calls.CallType(req.CallType))
	if err != nil {
		writeCallError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

func (h Handlers) GetCall(c *gin.Context) {
	userID, ok := h.identity(c)
	if !ok {
		return
	}
	sess, err := h.Calls.Get(c.Request.Context(), userID, c.Param("call_id"))
	if err != nil {
		writeCallError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h Handlers) JoinCall(c *gin.Context) {
	userID, ok := h.identity(c)
	if !ok {
		return
	}
	sess, err := h.Calls.Join(c.Request.Context(), userID, c.Param("call_id"))
	if err != nil {
		writeCallError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h Handlers) DeclineCall(c *gin.Context) {
	userID, ok := h.identity(c)
	if !ok {
		return
	}
	sess, err := h.Calls.Decline(c.Request.Context(), userID, c.Param("call_id"))
	if err != nil {
		writeCallError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h Handlers) LeaveCall(c *gin.Context) {
	userID, ok := h.identity(c)
	if !ok {
		return
	}
	ended, err := h.Calls.Leave(c.Request.Context(), userID, c.Param("call_id"))
	if err != nil {
		writeCallError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ended": ended})
}

// --- History ---

func (h Handlers) RoomCallHistory(c *gin.Context) {
	if _, ok := h.identity(c); !ok {
		return
	}
	req := reporting.HistoryRequest{
		RoomID: c.Param("room_id"),
		Range:  parseRange(c),
	}
	rows, err := h.History.History(c.Request.Context(), req)
	if err != nil {
		writeHistoryError(c, err)
		return
	}
	sum, err := h.History.Summary(c.Request.Context(), req)
	if err != nil {
		writeHistoryError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": rows, "summary": sum})
}

// parseRange reads from/to query params (RFC 3339), defaulting to the last
// 30 days.
func parseRange(c *gin.Context) reporting.TimeRange {
	now := time.Now().UTC()
	out := reporting.TimeRange{From: now.AddDate(0, 0, -30), To: now}
	if v := c.Query("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			out.From = t
		}
	}
	if v := c.Query("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			out.To = t
		}
	}
	return out
}

func (h Handlers) identity(c *gin.Context) (string, bool) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil || userID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return "", false
	}
	return userID, true
}

// writeCallError maps lifecycle error kinds to HTTP statuses. Callers get a
// clear kind and message; internal details stay in logs.
func writeCallError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, calls.ErrInvalidRequest), errors.Is(err, calls.ErrCallEnded):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, calls.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, calls.ErrForbidden):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func writeHistoryError(c *gin.Context, err error) {
	if errors.Is(err, reporting.ErrInvalidRequest) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
