// Package api exposes the analysis service over HTTP.
package api

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Veraticus/cardwise/internal/analysis"
	"github.com/Veraticus/cardwise/internal/ingest"
	"github.com/Veraticus/cardwise/internal/metrics"
	"github.com/Veraticus/cardwise/internal/model"
	"github.com/Veraticus/cardwise/internal/storage"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
)

// Service is the subset of analysis.Service the handlers use.
type Service interface {
	Run(ctx context.Context, opts analysis.Options) (*analysis.RunResult, error)
	Seed(ctx context.Context, opts analysis.SeedOptions) (*analysis.SeedResult, error)
	ImportCustomers(ctx context.Context, r io.Reader) (*ingest.ImportReport, error)
	ImportTransactions(ctx context.Context, r io.Reader) (*ingest.ImportReport, error)
	ImportOFX(ctx context.Context, r io.Reader, customerID string) (*ingest.ImportReport, error)
	Segments(ctx context.Context) ([]model.Segment, error)
	Customers(ctx context.Context, filter storage.CustomerFilter) ([]model.Customer, error)
	Customer(ctx context.Context, id string) (*analysis.CustomerDetail, error)
	Recommend(ctx context.Context, customerID string) ([]model.Recommendation, error)
	DashboardStats(ctx context.Context) (*model.DashboardStats, error)
	Transactions(ctx context.Context, filter storage.TransactionFilter) ([]model.Transaction, error)
	Runs(ctx context.Context, limit int) ([]model.AnalysisRun, error)
	GetRun(ctx context.Context, id string) (*model.AnalysisRun, error)
	Busy() bool
}

// Config holds server settings.
type Config struct {
	AllowOrigins []string
	// BodyLimit caps request bodies, e.g. "10M".
	BodyLimit string
	// Timeout bounds read requests. Analysis and uploads use the request
	// context only.
	Timeout time.Duration
}

// DefaultConfig returns settings suitable for local use.
func DefaultConfig() Config {
	return Config{
		AllowOrigins: []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
			"http://localhost:8080",
			"http://127.0.0.1:8080",
		},
		BodyLimit: "10M",
		Timeout:   10 * time.Second,
	}
}

// Server wires handlers, middleware and metrics onto an echo instance.
type Server struct {
	echo     *echo.Echo
	svc      Service
	metrics  *metrics.Metrics
	validate *validator.Validate
	cfg      Config
}

// NewServer creates a server. m may be nil, in which case no metrics are
// recorded and /metrics is not served.
func NewServer(svc Service, m *metrics.Metrics, cfg Config) *Server {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.BodyLimit == "" {
		cfg.BodyLimit = DefaultConfig().BodyLimit
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	s := &Server{
		echo:     e,
		svc:      svc,
		metrics:  m,
		validate: validator.New(),
		cfg:      cfg,
	}

	e.Use(echomiddleware.Recover())
	e.Use(requestLogger())
	if m != nil {
		e.Use(requestMetrics(m))
	}
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		AllowCredentials: true,
	}))
	e.Use(echomiddleware.BodyLimit(cfg.BodyLimit))

	s.routes()
	return s
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	slog.Info("Server starting", "address", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartTLS serves HTTPS on addr with tlsConfig until Shutdown is called.
func (s *Server) StartTLS(addr string, tlsConfig *tls.Config) error {
	slog.Info("Server starting", "address", addr, "tls", true)
	s.echo.TLSServer.Addr = addr
	s.echo.TLSServer.TLSConfig = tlsConfig
	if err := s.echo.StartServer(s.echo.TLSServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down server")
	return s.echo.Shutdown(ctx)
}

func (s *Server) routes() {
	api := s.echo.Group("/api")

	api.GET("", s.handleRoot)
	api.POST("/analyze", s.handleAnalyze)
	api.GET("/segments", s.handleSegments)
	api.GET("/customers", s.handleCustomers)
	api.GET("/customers/:id", s.handleCustomer)
	api.GET("/recommendations/:id", s.handleRecommendations)
	api.GET("/dashboard/stats", s.handleDashboardStats)
	api.GET("/transactions", s.handleTransactions)
	api.GET("/runs", s.handleRuns)
	api.GET("/runs/:id", s.handleRun)

	data := api.Group("/data")
	data.POST("/upload-customers", s.handleUploadCustomers)
	data.POST("/upload-transactions", s.handleUploadTransactions)
	data.POST("/upload-ofx", s.handleUploadOFX)
	data.POST("/seed", s.handleSeed)
	data.POST("/reset-and-seed", s.handleResetAndSeed)

	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}
}
