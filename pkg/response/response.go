// Package response writes the JSON bodies of the admin and content APIs and
// the flat bodies webhook providers expect.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequestIDKey is the gin context key the request logger stores the request id under.
const RequestIDKey = "request_id"

// Body is the envelope of the admin and content APIs.
type Body struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func write(c *gin.Context, status int, body Body) {
	body.RequestID = c.GetString(RequestIDKey)
	c.JSON(status, body)
}

func fail(c *gin.Context, status int, msg string) {
	write(c, status, Body{Error: msg})
}

// OK sends a 200 with data.
func OK(c *gin.Context, data any) {
	write(c, http.StatusOK, Body{Success: true, Data: data})
}

// NoContent sends 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func BadRequest(c *gin.Context, msg string)         { fail(c, http.StatusBadRequest, msg) }
func Unauthorized(c *gin.Context, msg string)       { fail(c, http.StatusUnauthorized, msg) }
func Forbidden(c *gin.Context, msg string)          { fail(c, http.StatusForbidden, msg) }
func NotFound(c *gin.Context, msg string)           { fail(c, http.StatusNotFound, msg) }
func TooManyRequests(c *gin.Context, msg string)    { fail(c, http.StatusTooManyRequests, msg) }
func ServiceUnavailable(c *gin.Context, msg string) { fail(c, http.StatusServiceUnavailable, msg) }
func Internal(c *gin.Context, msg string)           { fail(c, http.StatusInternalServerError, msg) }

// Webhook callers get flat bodies without the envelope.

// WebhookAck sends a 200 with ack as-is.
func WebhookAck(c *gin.Context, ack any) {
	c.JSON(http.StatusOK, ack)
}

// WebhookReject sends a 4xx with {"error": msg}.
func WebhookReject(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}
