package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/keruta-io/keruta/pkg/config"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type pingRoutes struct{}

type pingRequest struct {
	Name string `json:"name" validate:"required"`
}

func (pingRoutes) Register(e *echo.Echo) {
	e.GET("/ping", func(c echo.Context) error {
		return c.String(http.StatusOK, "pong")
	})
	e.GET("/tags", func(c echo.Context) error {
		return c.JSON(http.StatusOK, QueryArrayParam(c, "tag"))
	})
}

func TestRegister(t *testing.T) {
	e, tp := Register(zap.NewNop(), config.Tracing{}, pingRoutes{})
	require.NotNil(t, e)
	assert.Nil(t, tp, "no tracer without an agent host")

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tags?tag=a&tag[]=b", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"a"`)
	assert.Contains(t, rec.Body.String(), `"b"`)
}

func TestValidator(t *testing.T) {
	e, _ := Register(zap.NewNop(), config.Tracing{}, pingRoutes{})
	assert.Error(t, e.Validator.Validate(pingRequest{}))
	assert.NoError(t, e.Validator.Validate(pingRequest{Name: "x"}))
}
