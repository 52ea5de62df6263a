// Package api provides the HTTP REST API for IoT Core.
//
// It exposes sensor readings, threshold classification, LED control,
// and action history to the dashboard.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/PhucHuwu/iot-core/internal/control"
	"github.com/PhucHuwu/iot-core/internal/infrastructure/config"
	"github.com/PhucHuwu/iot-core/internal/infrastructure/database"
	"github.com/PhucHuwu/iot-core/internal/infrastructure/influxdb"
	"github.com/PhucHuwu/iot-core/internal/infrastructure/logging"
	"github.com/PhucHuwu/iot-core/internal/infrastructure/mqtt"
	"github.com/PhucHuwu/iot-core/internal/status"
	"github.com/PhucHuwu/iot-core/internal/telemetry"
	"github.com/PhucHuwu/iot-core/internal/timeexpr"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	Logger     *logging.Logger
	Readings   telemetry.Repository
	Controller *control.Controller
	Actions    control.HistoryRepository
	Toggles    *control.StatsService
	Status     *status.Service
	Thresholds status.Repository
	Resolver   *timeexpr.Resolver
	MQTT       *mqtt.Client     // optional: health reporting only
	DB         *database.DB     // optional: health reporting only
	Influx     *influxdb.Client // optional: health reporting only
	Version    string
}

// Server is the HTTP API server for IoT Core.
//
// It manages the HTTP listener, routes, and middleware. The server is
// created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	logger     *logging.Logger
	readings   telemetry.Repository
	controller *control.Controller
	actions    control.HistoryRepository
	toggles    *control.StatsService
	status     *status.Service
	thresholds status.Repository
	resolver   *timeexpr.Resolver
	mqtt       *mqtt.Client
	db         *database.DB
	influx     *influxdb.Client
	version    string
	server     *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Readings == nil {
		return nil, fmt.Errorf("reading repository is required")
	}
	if deps.Controller == nil {
		return nil, fmt.Errorf("controller is required")
	}
	if deps.Resolver == nil {
		return nil, fmt.Errorf("time resolver is required")
	}

	return &Server{
		cfg:        deps.Config,
		logger:     deps.Logger,
		readings:   deps.Readings,
		controller: deps.Controller,
		actions:    deps.Actions,
		toggles:    deps.Toggles,
		status:     deps.Status,
		thresholds: deps.Thresholds,
		resolver:   deps.Resolver,
		mqtt:       deps.MQTT,
		db:         deps.DB,
		influx:     deps.Influx,
		version:    deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// The listener runs in a background goroutine; the server is stopped
// with Close().
func (s *Server) Start(_ context.Context) error {
	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server listening", "address", s.server.Addr)
	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
