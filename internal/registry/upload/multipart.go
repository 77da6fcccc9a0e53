package upload

import (
	"context"
	"fmt"
	"mime/multipart"
	"strings"

	"github.com/chirino/taskmate/internal/model"
)

// SaveMultipart checks the type of an uploaded form file, stores it and
// returns the attachment that references it.
func SaveMultipart(ctx context.Context, store FileStore, fh *multipart.FileHeader, maxSize int64) (*model.Attachment, error) {
	contentType := BaseContentType(fh.Header.Get("Content-Type"))
	if err := CheckType(contentType); err != nil {
		return nil, err
	}
	if maxSize > 0 && fh.Size > maxSize {
		return nil, ErrTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	res, err := store.Store(ctx, StoredName(fh.Filename), f, maxSize, contentType)
	if err != nil {
		return nil, err
	}
	return &model.Attachment{
		Type:     AttachmentTypeFor(contentType),
		URL:      URL(res.Name),
		Filename: fh.Filename,
		Size:     res.Size,
		MimeType: contentType,
	}, nil
}

// NameFromURL returns the stored name referenced by an attachment URL, or ""
// when the URL does not point at the upload store.
func NameFromURL(url string) string {
	name, ok := strings.CutPrefix(strings.TrimPrefix(url, "/"), URLPrefix)
	if !ok || !ValidName(name) {
		return ""
	}
	return name
}
