package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/99minutos/escrow-service/docs"
	"github.com/99minutos/escrow-service/internal/api/handler"
	"github.com/99minutos/escrow-service/internal/api/metrics"
	"github.com/99minutos/escrow-service/internal/api/middleware"
	"github.com/99minutos/escrow-service/internal/core/domain"
	"github.com/99minutos/escrow-service/internal/core/ports"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Escrow    ports.EscrowService
	Auth      ports.AuthService
	JWTSecret string
	Logger    zerolog.Logger
	// Readiness maps dependency names to their ping checks.
	Readiness map[string]handler.Pinger
	// Registry receives HTTP and escrow metrics. A fresh one is created
	// when nil.
	Registry *prometheus.Registry
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Logger)

	reg := d.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	if err := metrics.Register(reg); err != nil {
		d.Logger.Error().Err(err).Msg("register escrow metrics")
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Logger))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "escrow_http",
		Registerer: reg,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))

	// --- Auth routes ---
	authHandler := handler.NewAuthHandler(d.Auth)
	e.POST("/auth/register", authHandler.Register, middleware.OptionalAuth(d.JWTSecret))
	e.POST("/auth/login", authHandler.Login)

	// --- Escrow routes ---
	projects := handler.NewProjectHandler(d.Escrow)
	v1 := e.Group("/v1", middleware.Auth(d.JWTSecret))
	v1.POST("/projects", projects.Create)
	v1.GET("/projects/:id", projects.Get)
	v1.POST("/projects/:id/complete", projects.Complete)
	v1.POST("/projects/:id/approve", projects.Approve)
	v1.POST("/projects/:id/dispute", projects.Dispute)
	v1.POST("/projects/:id/resolve", projects.Resolve)

	operator := middleware.RBAC(domain.RoleOperator)
	v1.GET("/projects/:id/events", projects.Events, operator)
	v1.GET("/balance", projects.Balance, operator)

	// --- Health probes (no auth required) ---
	e.GET("/health", handler.NewHealthHandler().Liveness)
	e.GET("/health/ready", handler.NewReadinessHandler(d.Readiness).Readiness)

	// --- Ops ---
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: reg}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

// requestLogger writes one zerolog line per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
