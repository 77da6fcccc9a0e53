package httpapi

import (
	"errors"
	"mime/multipart"
	"net/http"
	"regexp"

	registryupload "github.com/chirino/taskmate/internal/registry/upload"
	"github.com/gin-gonic/gin"
)

var objectIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// IsObjectID reports whether s is a 24 character hex id.
func IsObjectID(s string) bool {
	return objectIDPattern.MatchString(s)
}

// IDParam returns the named path parameter when it is a valid id; otherwise it
// writes a 400 response and returns false.
func IDParam(c *gin.Context, name string) (string, bool) {
	id := c.Param(name)
	if !IsObjectID(id) {
		Fail(c, http.StatusBadRequest, "validation_error", "\""+name+"\" must be a 24 character hex id")
		return "", false
	}
	return id, true
}

// OptionalFile returns the named multipart file, or nil when the form has
// none. A body over the size limit gets a 413 and any other parse failure a
// 400; both return false.
func OptionalFile(c *gin.Context, field string) (*multipart.FileHeader, bool) {
	fh, err := c.FormFile(field)
	switch {
	case err == nil:
		return fh, true
	case errors.Is(err, http.ErrMissingFile):
		return nil, true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		HandleError(c, registryupload.ErrTooLarge)
		return nil, false
	}
	Fail(c, http.StatusBadRequest, "validation_error", "malformed multipart body: "+err.Error())
	return nil, false
}
