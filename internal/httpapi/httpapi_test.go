package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	registryassistant "github.com/chirino/taskmate/internal/registry/assistant"
	registrystore "github.com/chirino/taskmate/internal/registry/store"
	registryupload "github.com/chirino/taskmate/internal/registry/upload"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func serve(t *testing.T, method, path, body string, h gin.HandlerFunc, route string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Handle(method, route, h)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandleError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", fmt.Errorf("load: %w", &registrystore.NotFoundError{Resource: "task", ID: "1"}), http.StatusNotFound, "not_found"},
		{"validation", &registrystore.ValidationError{Field: "id", Message: "bad id"}, http.StatusBadRequest, "validation_error"},
		{"conflict", &registrystore.ConflictError{Message: "taken", Code: "duplicate_email"}, http.StatusConflict, "duplicate_email"},
		{"conflict default code", &registrystore.ConflictError{Message: "race"}, http.StatusConflict, "conflict"},
		{"forbidden", &registrystore.ForbiddenError{}, http.StatusForbidden, "forbidden"},
		{"too large", registryupload.ErrTooLarge, http.StatusRequestEntityTooLarge, "file_too_large"},
		{"bad type", registryupload.ErrTypeNotAllowed, http.StatusBadRequest, "invalid_file_type"},
		{"missing file", registryupload.ErrNotFound, http.StatusNotFound, "not_found"},
		{"assistant off", registryassistant.ErrDisabled, http.StatusServiceUnavailable, "assistant_disabled"},
		{"unknown", errors.New("socket closed"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(t, http.MethodGet, "/x", "", func(c *gin.Context) { HandleError(c, tc.err) }, "/x")
			require.Equal(t, tc.status, w.Code)
			require.Equal(t, tc.code, gjson.Get(w.Body.String(), "code").String())
		})
	}
}

func TestHandleErrorHidesInternalDetails(t *testing.T) {
	w := serve(t, http.MethodGet, "/x", "", func(c *gin.Context) {
		HandleError(c, errors.New("dial tcp 10.0.0.5:27017: refused"))
	}, "/x")
	require.NotContains(t, w.Body.String(), "10.0.0.5")
}

func TestHandleErrorConflictDetails(t *testing.T) {
	w := serve(t, http.MethodGet, "/x", "", func(c *gin.Context) {
		HandleError(c, &registrystore.ConflictError{Message: "email taken", Code: "duplicate_email", Details: map[string]any{"email": "a@b.c"}})
	}, "/x")
	require.Equal(t, "a@b.c", gjson.Get(w.Body.String(), "details.email").String())
}

type signupRequest struct {
	Name       string     `json:"name" binding:"required,min=2,max=20"`
	Email      string     `json:"email" binding:"required,email"`
	Password   string     `json:"password" binding:"required,min=6"`
	RePassword string     `json:"rePassword" binding:"required,eqfield=Password"`
	DueDate    *time.Time `json:"dueDate" binding:"omitempty,future"`
}

func bindHandler(c *gin.Context) {
	var req signupRequest
	if !BindJSON(c, &req) {
		return
	}
	c.JSON(http.StatusOK, req)
}

func TestBindJSONMessages(t *testing.T) {
	cases := map[string]struct {
		body string
		want string
	}{
		"required": {`{"email":"a@example.com","password":"secret1","rePassword":"secret1"}`, `"name" is required`},
		"min":      {`{"name":"A","email":"a@example.com","password":"secret1","rePassword":"secret1"}`, `"name" length must be at least 2 characters long`},
		"email":    {`{"name":"Ann","email":"nope","password":"secret1","rePassword":"secret1"}`, `"email" must be a valid email`},
		"eqfield":  {`{"name":"Ann","email":"a@example.com","password":"secret1","rePassword":"other12"}`, `"rePassword" must match "password"`},
		"future":   {`{"name":"Ann","email":"a@example.com","password":"secret1","rePassword":"secret1","dueDate":"2001-01-01T00:00:00Z"}`, `"dueDate" must be in the future`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			w := serve(t, http.MethodPost, "/signup", tc.body, bindHandler, "/signup")
			require.Equal(t, http.StatusBadRequest, w.Code)
			require.Equal(t, "validation_error", gjson.Get(w.Body.String(), "code").String())
			require.Contains(t, gjson.Get(w.Body.String(), "error").String(), tc.want)
		})
	}

	w := serve(t, http.MethodPost, "/signup", `{"name":"Ann","email":"a@example.com","password":"secret1","rePassword":"secret1"}`, bindHandler, "/signup")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestIDParam(t *testing.T) {
	h := func(c *gin.Context) {
		id, ok := IDParam(c, "id")
		if !ok {
			return
		}
		c.String(http.StatusOK, "%s", id)
	}
	w := serve(t, http.MethodGet, "/tasks/65a1b2c3d4e5f60718293a4b", "", h, "/tasks/:id")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "65a1b2c3d4e5f60718293a4b", w.Body.String())

	w = serve(t, http.MethodGet, "/tasks/not-an-id", "", h, "/tasks/:id")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), `must be a 24 character hex id`)
}

func fileHandler(c *gin.Context) {
	fh, ok := OptionalFile(c, "attachment")
	if !ok {
		return
	}
	if fh == nil {
		c.String(http.StatusOK, "none")
		return
	}
	c.String(http.StatusOK, "%s", fh.Filename)
}

func postMultipart(t *testing.T, body []byte, contentType string, limit int64) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if limit > 0 {
		r.Use(func(c *gin.Context) {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		})
	}
	r.POST("/upload", fileHandler)
	req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func multipartBody(t *testing.T, withFile bool, data []byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("content", "hi"))
	if withFile {
		part, err := mw.CreateFormFile("attachment", "notes.txt")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}

func TestOptionalFile(t *testing.T) {
	t.Run("present", func(t *testing.T) {
		body, ct := multipartBody(t, true, []byte("hello"))
		w := postMultipart(t, body, ct, 0)
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "notes.txt", w.Body.String())
	})

	t.Run("absent", func(t *testing.T) {
		body, ct := multipartBody(t, false, nil)
		w := postMultipart(t, body, ct, 0)
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "none", w.Body.String())
	})

	t.Run("truncated body", func(t *testing.T) {
		body, ct := multipartBody(t, true, []byte("hello world"))
		w := postMultipart(t, body[:len(body)-20], ct, 0)
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Equal(t, "validation_error", gjson.Get(w.Body.String(), "code").String())
		require.Contains(t, gjson.Get(w.Body.String(), "error").String(), "malformed multipart body")
	})

	t.Run("over the body limit", func(t *testing.T) {
		body, ct := multipartBody(t, true, bytes.Repeat([]byte("x"), 4096))
		w := postMultipart(t, body, ct, 512)
		require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		require.Equal(t, "file_too_large", gjson.Get(w.Body.String(), "code").String())
	})
}
