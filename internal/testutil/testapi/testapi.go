// Package testapi starts the full API against a disposable MongoDB for route tests.
package testapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"

	"github.com/chirino/taskmate/internal/app"
	"github.com/chirino/taskmate/internal/config"
	"github.com/chirino/taskmate/internal/model"
	"github.com/chirino/taskmate/internal/plugin/store/mongo"
	"github.com/chirino/taskmate/internal/plugin/upload/local"
	registryassistant "github.com/chirino/taskmate/internal/registry/assistant"
	registrymigrate "github.com/chirino/taskmate/internal/registry/migrate"
	registrystore "github.com/chirino/taskmate/internal/registry/store"
	"github.com/chirino/taskmate/internal/security"
	"github.com/chirino/taskmate/internal/testutil/testmongo"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// Env is a running API with direct access to its store.
type Env struct {
	Router    *gin.Engine
	Store     registrystore.TaskStore
	Files     *local.DiskStore
	Issuer    *security.TokenIssuer
	Assistant *FakeAssistant
	Config    *config.Config
	Ctx       context.Context
}

// Start migrates a fresh database and mounts every API route.
func Start(t *testing.T) *Env {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping MongoDB integration test in short mode")
	}

	cfg := config.DefaultConfig()
	testmongo.Configure(t, &cfg)
	cfg.UploadMaxSize = 1024 * 1024
	cfg.JWTSecret = "test-secret"
	ctx := config.WithContext(context.Background(), &cfg)

	_ = mongo.ForceImport
	require.NoError(t, registrymigrate.RunAll(ctx))
	loader, err := registrystore.Select("mongo")
	require.NoError(t, err)
	store, err := loader(ctx)
	require.NoError(t, err)
	if c, ok := store.(interface{ Close(context.Context) error }); ok {
		t.Cleanup(func() { _ = c.Close(context.Background()) })
	}

	files, err := local.New(t.TempDir())
	require.NoError(t, err)
	issuer, err := security.NewTokenIssuer(cfg.JWTSecret, 0)
	require.NoError(t, err)

	env := &Env{
		Store:     store,
		Files:     files,
		Issuer:    issuer,
		Assistant: &FakeAssistant{Reply: "Start with the task due soonest."},
		Config:    &cfg,
		Ctx:       ctx,
	}

	gin.SetMode(gin.TestMode)
	env.Router = gin.New()
	require.NoError(t, app.MountRoutes(env.Router, app.Deps{
		Config:    &cfg,
		Store:     store,
		Files:     files,
		Assistant: env.Assistant,
		Issuer:    issuer,
		Limiter:   security.NewRateLimiter(0, 0),
	}))
	return env
}

// CreateUser inserts a user with password "secret123" and returns it with a token.
func (e *Env) CreateUser(t *testing.T, name string, role model.Role) (*model.User, string) {
	t.Helper()
	hash, err := security.HashPassword("secret123")
	require.NoError(t, err)
	u, err := e.Store.CreateUser(e.Ctx, registrystore.CreateUserRequest{
		Name:         name,
		Email:        strings.ToLower(name) + "@example.com",
		PasswordHash: hash,
		Role:         role,
	})
	require.NoError(t, err)
	token, err := e.Issuer.Issue(u.ID, u.Role)
	require.NoError(t, err)
	return u, token
}

// Do sends a JSON request. A nil body sends no payload.
func (e *Env) Do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// File is a multipart file part.
type File struct {
	Field       string
	Name        string
	ContentType string
	Data        []byte
}

// DoMultipart sends a multipart form with the given fields and optional file.
func (e *Env) DoMultipart(t *testing.T, method, path, token string, fields map[string]string, file *File) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+file.Field+`"; filename="`+file.Name+`"`)
		h.Set("Content-Type", file.ContentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(file.Data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// Decode unmarshals the response body into T.
func Decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}

// RequireStatus fails the test with the body when the status differs.
func RequireStatus(t *testing.T, w *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, w.Code, "body: %s", w.Body.String())
}

// FakeAssistant returns a canned reply and records each request.
type FakeAssistant struct {
	mu    sync.Mutex
	Reply string
	Err   error
	Calls [][]registryassistant.Message
}

func (f *FakeAssistant) Complete(_ context.Context, messages []registryassistant.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, messages)
	if f.Err != nil {
		return "", f.Err
	}
	return f.Reply, nil
}

func (f *FakeAssistant) ModelName() string { return "fake" }

// SetError makes subsequent calls fail with err.
func (f *FakeAssistant) SetError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Err = err
}

// LastCall returns the messages of the most recent call.
func (f *FakeAssistant) LastCall() []registryassistant.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Calls) == 0 {
		return nil
	}
	return f.Calls[len(f.Calls)-1]
}
