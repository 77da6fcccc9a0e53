package upload

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/chirino/taskmate/internal/model"
	"github.com/google/uuid"
)

// ErrTypeNotAllowed is returned for MIME types outside the allow-list.
var ErrTypeNotAllowed = errors.New("invalid file type. Only images, documents, and text files are allowed")

// URLPrefix is the path prefix under which stored files are served.
const URLPrefix = "uploads/"

var allowedTypes = map[string]bool{
	"image/jpeg":         true,
	"image/png":          true,
	"image/gif":          true,
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"text/plain": true,
}

// BaseContentType strips parameters such as charset from a Content-Type value.
func BaseContentType(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

// CheckType returns ErrTypeNotAllowed unless contentType is on the allow-list.
func CheckType(contentType string) error {
	if !allowedTypes[BaseContentType(contentType)] {
		return ErrTypeNotAllowed
	}
	return nil
}

// AttachmentTypeFor classifies a MIME type for a group message attachment.
func AttachmentTypeFor(contentType string) model.AttachmentType {
	if strings.HasPrefix(BaseContentType(contentType), "image/") {
		return model.AttachmentImage
	}
	return model.AttachmentFile
}

// StoredName builds the unique name a file is stored under: "<uuid>_<base name>".
func StoredName(original string) string {
	base := filepath.Base(strings.ReplaceAll(original, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "file"
	}
	return uuid.New().String() + "_" + base
}

// ValidName reports whether name is safe to resolve inside a store.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\") && !strings.Contains(name, "\x00")
}

// URL returns the public relative URL of a stored file.
func URL(name string) string {
	return URLPrefix + name
}
