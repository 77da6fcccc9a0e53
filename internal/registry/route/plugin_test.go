package route

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestMountOrderAndType(t *testing.T) {
	saved := plugins
	t.Cleanup(func() { plugins = saved })
	plugins = nil

	var order []string
	loader := func(name string) RouterLoader {
		return func(r *gin.Engine, _ Deps) error {
			order = append(order, name)
			r.GET("/"+name, func(c *gin.Context) { c.Status(http.StatusNoContent) })
			return nil
		}
	}
	Register(Plugin{Name: "tasks", Order: 30, Loader: loader("tasks")})
	Register(Plugin{Name: "auth", Order: 10, Loader: loader("auth")})
	Register(Plugin{Name: "health", Type: RouteTypeManagement, Loader: loader("health")})

	require.Equal(t, []string{"auth", "tasks"}, Names(RouteTypeMain))
	require.Equal(t, []string{"health"}, Names(RouteTypeManagement))

	gin.SetMode(gin.TestMode)
	r := gin.New()
	require.NoError(t, Mount(RouteTypeMain, r, Deps{}))
	require.Equal(t, []string{"auth", "tasks"}, order)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestMountStopsOnError(t *testing.T) {
	saved := plugins
	t.Cleanup(func() { plugins = saved })
	plugins = nil

	boom := errors.New("boom")
	Register(Plugin{Name: "broken", Loader: func(*gin.Engine, Deps) error { return boom }})
	Register(Plugin{Name: "later", Order: 1, Loader: func(*gin.Engine, Deps) error {
		t.Fatal("later plugin must not load")
		return nil
	}})

	gin.SetMode(gin.TestMode)
	err := Mount(RouteTypeMain, gin.New(), Deps{})
	require.ErrorIs(t, err, boom)
	require.Contains(t, err.Error(), "broken")
}
