package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dreamware/accessmanager/internal/evbuffer"
	"github.com/dreamware/accessmanager/internal/graphstore"
	"github.com/dreamware/accessmanager/internal/shardrouter"
)

// ErrorBody is the non-2xx response shape spec.md §6 defines.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the stable error code plus human-readable context.
type ErrorDetail struct {
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	Target     string      `json:"target,omitempty"`
	Attributes []Attribute `json:"attributes,omitempty"`
	InnerError *ErrorBody  `json:"innererror,omitempty"`
}

// Attribute is one name/value pair attached to an ErrorDetail.
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// statusAndBody maps an error from the graph, buffer, or router layers
// to the HTTP status and body spec.md §7's propagation policy requires:
// graph/validation errors are 4xx, persister/shard errors are 5xx unless
// the shard itself reports a definitive client-facing failure.
func statusAndBody(err error) (int, ErrorBody) {
	var notFound *graphstore.NotFound
	if errors.As(err, &notFound) {
		return http.StatusNotFound, ErrorBody{Error: ErrorDetail{Code: "NotFound", Message: err.Error(), Target: notFound.ID}}
	}

	var alreadyExists *graphstore.IdempotentAdd
	if errors.As(err, &alreadyExists) {
		return http.StatusOK, ErrorBody{Error: ErrorDetail{Code: "AlreadyExists", Message: err.Error(), Target: alreadyExists.ID}}
	}

	var alreadyAbsent *graphstore.IdempotentRemove
	if errors.As(err, &alreadyAbsent) {
		return http.StatusOK, ErrorBody{Error: ErrorDetail{Code: "IdempotentRemove", Message: err.Error(), Target: alreadyAbsent.ID}}
	}

	var cycle *graphstore.CycleDetected
	if errors.As(err, &cycle) {
		return http.StatusConflict, ErrorBody{Error: ErrorDetail{Code: "CycleDetected", Message: err.Error()}}
	}

	var invalidType *graphstore.InvalidEntityType
	if errors.As(err, &invalidType) {
		return http.StatusBadRequest, ErrorBody{Error: ErrorDetail{Code: "ValidationFailed", Message: err.Error(), Target: invalidType.Value}}
	}

	var validation *evbuffer.ValidationFailed
	if errors.As(err, &validation) {
		return http.StatusBadRequest, ErrorBody{Error: ErrorDetail{Code: "ValidationFailed", Message: err.Error(), Target: validation.Field}}
	}

	var persistFailed *evbuffer.PersistFailed
	if errors.As(err, &persistFailed) {
		return http.StatusInternalServerError, ErrorBody{Error: ErrorDetail{Code: "PersistFailed", Message: err.Error()}}
	}

	var shardUnavailable *shardrouter.ShardUnavailable
	if errors.As(err, &shardUnavailable) {
		return http.StatusServiceUnavailable, ErrorBody{Error: ErrorDetail{Code: "ShardUnavailable", Message: err.Error()}}
	}

	var remote *shardrouter.RemoteError
	if errors.As(err, &remote) {
		return remote.Status, ErrorBody{Error: ErrorDetail{Code: remote.Code, Message: err.Error()}}
	}

	return http.StatusInternalServerError, ErrorBody{Error: ErrorDetail{Code: "Internal", Message: err.Error()}}
}

// respondError writes the mapped status/body for err and aborts the
// gin context, mirroring kubevirt-shepherd's middleware.ErrorHandler
// pattern but applied inline since AccessManager's error taxonomy maps
// cleanly to a pure function rather than needing c.Errors bookkeeping.
func respondError(c *gin.Context, err error) {
	status, body := statusAndBody(err)
	c.AbortWithStatusJSON(status, body)
}
