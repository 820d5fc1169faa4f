package httpserver

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/licitafacil/api/internal/core/ports"
	customMiddleware "github.com/licitafacil/api/internal/infrastructure/httpserver/middleware"
)

type ServerConfig struct {
	Host              string
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	TLSCertFile       string
	TLSKeyFile        string
	AllowedOrigins    []string
	TrustProxyHeaders bool
}

type ServerDeps struct {
	LicitacaoService ports.LicitacaoService
	QuotaService     ports.QuotaService
	UsageRecorder    ports.UsageRecorder
	HealthCheckers   []ports.HealthChecker
}

type Server struct {
	echo           *echo.Echo
	config         *ServerConfig
	logger         *logrus.Logger
	licitacaoSvc   ports.LicitacaoService
	quotaSvc       ports.QuotaService
	usageRecorder  ports.UsageRecorder
	middleware     *customMiddleware.MiddlewareCollection
	healthCheckers []ports.HealthChecker
}

func NewServer(serverConfig *ServerConfig, jwtSecret string, logger *logrus.Logger, deps ServerDeps) *Server {
	e := echo.New()

	server := &Server{
		echo:           e,
		config:         serverConfig,
		logger:         logger,
		licitacaoSvc:   deps.LicitacaoService,
		quotaSvc:       deps.QuotaService,
		usageRecorder:  deps.UsageRecorder,
		healthCheckers: deps.HealthCheckers,
		middleware: customMiddleware.NewMiddlewareCollection(
			deps.QuotaService,
			logger,
			jwtSecret,
			serverConfig.TrustProxyHeaders,
			GetRequestsTotal(),
			GetRequestDuration(),
			GetQuotaDecisions(),
			GetQuotaStoreErrors(),
		),
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}
