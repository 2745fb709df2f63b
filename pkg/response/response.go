package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error codes returned in the envelope so clients can branch without parsing
// messages.
const (
	CodeSessionNotFound    = "session_not_found"
	CodeSessionNotActive   = "session_not_active"
	CodeChunkTooLarge      = "chunk_too_large"
	CodeBackendUnavailable = "backend_unavailable"
)

// Body is the standard API response envelope.
type Body struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, err string) {
	c.JSON(http.StatusBadRequest, Body{Success: false, Error: err})
}

// NotFound sends 404 with an error code.
func NotFound(c *gin.Context, err, code string) {
	c.JSON(http.StatusNotFound, Body{Success: false, Error: err, Code: code})
}

// Conflict sends 409 with an error code.
func Conflict(c *gin.Context, err, code string) {
	c.JSON(http.StatusConflict, Body{Success: false, Error: err, Code: code})
}

// TooLarge sends 413 with an error code.
func TooLarge(c *gin.Context, err, code string) {
	c.JSON(http.StatusRequestEntityTooLarge, Body{Success: false, Error: err, Code: code})
}

// ServiceUnavailable sends 503 with an error code.
func ServiceUnavailable(c *gin.Context, err, code string) {
	c.JSON(http.StatusServiceUnavailable, Body{Success: false, Error: err, Code: code})
}

// Internal sends 500.
func Internal(c *gin.Context, err string) {
	c.JSON(http.StatusInternalServerError, Body{Success: false, Error: err})
}
