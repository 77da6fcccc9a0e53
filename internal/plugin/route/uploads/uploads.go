package uploads

import (
	"net/http"

	"github.com/chirino/taskmate/internal/httpapi"
	registryroute "github.com/chirino/taskmate/internal/registry/route"
	registryupload "github.com/chirino/taskmate/internal/registry/upload"
	"github.com/gin-gonic/gin"
)

func init() {
	registryroute.Register(registryroute.Plugin{
		Name:  "uploads",
		Order: 80,
		Loader: func(r *gin.Engine, d registryroute.Deps) error {
			MountRoutes(r, d.Files)
			return nil
		},
	})
}

// MountRoutes serves stored uploads at /uploads/:name. Uploads are public as
// they are referenced by profile images and group chat attachments.
func MountRoutes(r *gin.Engine, files registryupload.FileStore) {
	r.GET("/uploads/:name", func(c *gin.Context) {
		serveFile(c, files)
	})
}

func serveFile(c *gin.Context, files registryupload.FileStore) {
	name := c.Param("name")
	if !registryupload.ValidName(name) {
		httpapi.Fail(c, http.StatusNotFound, "not_found", "file not found")
		return
	}
	rc, info, err := files.Open(c.Request.Context(), name)
	if err != nil {
		httpapi.HandleError(c, err)
		return
	}
	defer rc.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("Cache-Control", "private, max-age=86400")
	c.DataFromReader(http.StatusOK, info.Size, contentType, rc, nil)
}
