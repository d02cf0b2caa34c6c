// Package response writes the JSON envelopes of the ledger API. Every body
// carries the request id so a client report can be matched to server logs.
package response

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"currency-ledger/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// StoreRetryAfter is advertised when the store rejected a unit of work,
// typically because account locks could not be acquired in time.
const StoreRetryAfter = time.Second

// Envelope wraps successful payloads.
type Envelope struct {
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id"`
	Timestamp string      `json:"timestamp"`
}

// ErrorEnvelope carries a coded failure.
type ErrorEnvelope struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, envelope(c, data))
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, envelope(c, data))
}

func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error writes err as an ErrorEnvelope. Errors that are not AppErrors are
// reported as SYS_002 without exposing their text.
func Error(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		appErr = apperror.InternalError(err)
	}

	if appErr.Code == apperror.CodeStoreUnavailable {
		c.Header("Retry-After", strconv.Itoa(int(StoreRetryAfter.Seconds())))
	}

	c.JSON(appErr.HTTPStatus, ErrorEnvelope{
		ErrorCode: appErr.Code,
		Message:   appErr.Message,
		RequestID: requestID(c),
		Timestamp: timestamp(),
	})
}

func envelope(c *gin.Context, data interface{}) Envelope {
	return Envelope{Data: data, RequestID: requestID(c), Timestamp: timestamp()}
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// requestID returns the id the RequestID middleware stored, or a fresh one
// for handlers running without it.
func requestID(c *gin.Context) string {
	if s := c.GetString("request_id"); s != "" {
		return s
	}
	return uuid.New().String()
}
