package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/brpaz/echozap"
	"github.com/keruta-io/keruta/pkg/config"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gopkg.in/go-playground/validator.v9"
)

const shutdownTimeout = 10 * time.Second

type Routes interface {
	Register(router *echo.Echo)
}

// Register builds the echo instance with the common middleware, /metrics and routes. The
// returned tracer provider is nil when no tracing agent is configured.
func Register(logger *zap.Logger, tracing config.Tracing, routes Routes) (*echo.Echo, *sdktrace.TracerProvider) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(echozap.ZapLogger(logger))
	e.Pre(middleware.RemoveTrailingSlash())

	var tp *sdktrace.TracerProvider
	if tracing.AgentHost != "" {
		var err error
		tp, err = initTracer(tracing.AgentHost)
		if err != nil {
			logger.Error("failed to init tracer, continuing without tracing", zap.Error(err))
		} else {
			e.Use(otelecho.Middleware(tracing.ServiceName))
		}
	}

	e.Validator = customValidator{
		validate: validator.New(),
	}

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	routes.Register(e)

	return e, tp
}

// RegisterAndStart serves routes on address until ctx is done, then shuts the server down.
func RegisterAndStart(ctx context.Context, logger *zap.Logger, address string, tracing config.Tracing, routes Routes) error {
	e, tp := Register(logger, tracing, routes)
	defer func() {
		if tp == nil {
			return
		}
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", zap.Error(err))
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", zap.String("address", address))
		errCh <- e.Start(address)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

type customValidator struct {
	validate *validator.Validate
}

func (v customValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

func QueryArrayParam(ctx echo.Context, paramName string) []string {
	var values []string
	for k, v := range ctx.QueryParams() {
		if k == paramName || k == paramName+"[]" {
			values = append(values, v...)
		}
	}
	return values
}

func initTracer(agentHost string) (*sdktrace.TracerProvider, error) {
	exporter, err := jaeger.New(jaeger.WithAgentEndpoint(jaeger.WithAgentHost(agentHost)))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return tp, nil
}
