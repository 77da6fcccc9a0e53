package httpapi

import (
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	registryassistant "github.com/chirino/taskmate/internal/registry/assistant"
	registrystore "github.com/chirino/taskmate/internal/registry/store"
	registryupload "github.com/chirino/taskmate/internal/registry/upload"
	"github.com/gin-gonic/gin"
)

// Fail writes an error body with the given status and aborts the chain.
func Fail(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"code": code, "error": msg})
}

// HandleError maps typed store, upload and assistant errors to HTTP responses.
func HandleError(c *gin.Context, err error) {
	var notFound *registrystore.NotFoundError
	var validation *registrystore.ValidationError
	var conflict *registrystore.ConflictError
	var forbidden *registrystore.ForbiddenError

	switch {
	case errors.As(err, &notFound):
		Fail(c, http.StatusNotFound, "not_found", err.Error())
	case errors.As(err, &validation):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": validation.Message, "field": validation.Field})
	case errors.As(err, &conflict):
		code := conflict.Code
		if code == "" {
			code = "conflict"
		}
		body := gin.H{"code": code, "error": err.Error()}
		if len(conflict.Details) > 0 {
			body["details"] = conflict.Details
		}
		c.AbortWithStatusJSON(http.StatusConflict, body)
	case errors.As(err, &forbidden):
		Fail(c, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, registryupload.ErrTooLarge):
		Fail(c, http.StatusRequestEntityTooLarge, "file_too_large", "File size cannot exceed the upload limit")
	case errors.Is(err, registryupload.ErrTypeNotAllowed):
		Fail(c, http.StatusBadRequest, "invalid_file_type", err.Error())
	case errors.Is(err, registryupload.ErrNotFound):
		Fail(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, registryassistant.ErrDisabled):
		Fail(c, http.StatusServiceUnavailable, "assistant_disabled", err.Error())
	default:
		log.Error("Request failed", "method", c.Request.Method, "path", c.FullPath(), "err", err)
		Fail(c, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
