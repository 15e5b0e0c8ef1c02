package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"smarthub/internal/cache"
	"smarthub/internal/config"
	"smarthub/internal/credential"
	"smarthub/internal/database"
	"smarthub/internal/handlers"
	"smarthub/internal/messaging"
	"smarthub/internal/metrics"
	"smarthub/internal/middleware"
	"smarthub/internal/notify"
	"smarthub/internal/repository"
	"smarthub/internal/search"
	"smarthub/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the HTTP API
type Server struct {
	router   *gin.Engine
	config   *config.Config
	services *service.Services
	ledger   repository.Ledger
	registry *prometheus.Registry

	db     *database.DB
	nats   *messaging.NATSClient
	valkey *cache.ValkeyClient
	search *search.ElasticsearchClient
}

// Options are the collaborators a Server is assembled from. Everything but
// Ledger and Notifier is optional.
type Options struct {
	Ledger    repository.Ledger
	Notifier  service.Notifier
	Publisher service.Publisher
	Searcher  service.EventSearcher
	AuthCache middleware.AuthCache
	DB        *database.DB
}

// NewServer connects to the configured infrastructure and builds the server.
// NATS, Elasticsearch and Valkey are optional: a failed connection is logged
// and the feature is disabled.
func NewServer(cfg *config.Config) (*Server, error) {
	var opts Options
	s := &Server{}

	switch cfg.StorageDriver {
	case config.StorageDriverPostgres:
		db, err := database.Connect(cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := db.RunMigrations(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		s.db = db
		opts.DB = db
		opts.Ledger = repository.NewPostgresLedger(db)
	case config.StorageDriverMemory:
		slog.Warn("Using in-memory storage; data is lost on restart")
		opts.Ledger = repository.NewMemoryLedger()
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}

	switch cfg.Mail.Driver {
	case config.MailDriverSMTP:
		n, err := notify.NewSMTPNotifier(cfg.Mail)
		if err != nil {
			s.Cleanup()
			return nil, err
		}
		opts.Notifier = n
	case config.MailDriverLog:
		opts.Notifier = notify.NewLogNotifier(slog.Default())
	default:
		s.Cleanup()
		return nil, fmt.Errorf("unknown mail driver %q", cfg.Mail.Driver)
	}

	if cfg.NATSEnabled {
		nc, err := messaging.NewNATSClient(cfg.NATS)
		if err != nil {
			slog.Warn("NATS unavailable, domain events disabled", "error", err)
		} else {
			s.nats = nc
			opts.Publisher = nc
		}
	}

	if cfg.SearchEnabled {
		es, err := search.NewElasticsearchClient(cfg.Elasticsearch)
		if err != nil {
			slog.Warn("Elasticsearch unavailable, event search disabled", "error", err)
		} else {
			s.search = es
			opts.Searcher = es
		}
	}

	if cfg.CacheEnabled {
		vc, err := cache.NewValkeyClient(cfg.Valkey)
		if err != nil {
			slog.Warn("Valkey unavailable, auth cache disabled", "error", err)
		} else {
			s.valkey = vc
			opts.AuthCache = vc
		}
	}

	built := New(cfg, opts)
	built.db, built.nats, built.valkey, built.search = s.db, s.nats, s.valkey, s.search
	return built, nil
}

// New builds the router and services around already constructed collaborators.
func New(cfg *config.Config, opts Options) *Server {
	gin.SetMode(cfg.GinMode)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if opts.DB != nil {
		registry.MustRegister(collectors.NewDBStatsCollector(opts.DB.DB, "smarthub"))
	}

	services := service.NewServices(service.Deps{
		Ledger:        opts.Ledger,
		Encoder:       credential.NewQREncoder(cfg.QRModulePixels),
		Notifier:      opts.Notifier,
		Publisher:     opts.Publisher,
		Searcher:      opts.Searcher,
		Metrics:       metrics.New(registry),
		NotifyTimeout: cfg.Mail.Timeout,
	})

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger())

	s := &Server{
		router:   router,
		config:   cfg,
		services: services,
		ledger:   opts.Ledger,
		registry: registry,
		db:       opts.DB,
	}
	s.setupRoutes(opts.AuthCache)
	return s
}

func (s *Server) setupRoutes(authCache middleware.AuthCache) {
	h := handlers.NewHandlers(s.services)

	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	api := s.router.Group("/api")
	api.Use(middleware.Timeout(s.config.RequestTimeout))
	api.Use(middleware.BasicAuth(s.ledger.Users(), authCache))
	{
		events := api.Group("/events")
		{
			events.GET("", h.ListEvents)
			events.GET("/:id", h.GetEvent)
			events.POST("/:id/register", h.RegisterEvent)
		}

		facilities := api.Group("/facilities")
		{
			facilities.GET("", h.ListFacilities)
			facilities.GET("/slots", h.ListTimeSlots)
			facilities.GET("/:id", h.GetFacility)
			facilities.POST("/:id/book", h.BookFacility)
		}

		parking := api.Group("/parking")
		{
			parking.GET("", h.ListParkingLots)
			parking.POST("/:id/book", h.BookParking)
			parking.PATCH("/bookings/:id/complete", h.CompleteParking)
		}

		me := api.Group("/me")
		{
			me.GET("/registrations", h.MyRegistrations)
			me.GET("/bookings", h.MyBookings)
			me.GET("/parking", h.MyParking)
		}

		checkin := api.Group("/checkin", middleware.RequireStaff())
		{
			checkin.POST("", h.CheckIn)
			checkin.POST("/scan", h.CheckInScan)
		}
	}
}

// healthCheck reports unhealthy only when the database is down. Search is
// reported but optional, since event listing falls back to the database.
func (s *Server) healthCheck(c *gin.Context) {
	ctx := c.Request.Context()
	resp := gin.H{
		"status":  "healthy",
		"service": "smarthub-api",
		"storage": s.config.StorageDriver,
	}
	status := http.StatusOK

	if s.db != nil {
		hc := s.db.HealthCheck(ctx)
		s.db.WarnOnPoolPressure()
		resp["database"] = hc
		if !hc.Healthy() {
			resp["status"] = hc.Status
			status = http.StatusServiceUnavailable
		}
	}

	if s.search != nil {
		if err := s.search.HealthCheck(ctx); err != nil {
			slog.Warn("Elasticsearch health check failed", "error", err)
			resp["search"] = "unhealthy"
		} else {
			resp["search"] = "healthy"
		}
	}

	c.JSON(status, resp)
}

// Router returns the HTTP handler
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Ledger returns the storage the server was built on
func (s *Server) Ledger() repository.Ledger {
	return s.ledger
}

// IndexEvents pushes the whole catalog to the search index when one is
// configured.
func (s *Server) IndexEvents(ctx context.Context) error {
	if s.search == nil {
		return nil
	}
	events, err := s.ledger.Events().List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list events: %w", err)
	}
	for i := range events {
		if err := s.search.IndexEvent(ctx, &events[i]); err != nil {
			return err
		}
	}
	slog.Info("Indexed events", "count", len(events))
	return nil
}

// Cleanup closes connections
func (s *Server) Cleanup() error {
	if s.nats != nil {
		if err := s.nats.Close(); err != nil {
			slog.Error("Error closing NATS connection", "error", err)
		}
	}
	if s.valkey != nil {
		if err := s.valkey.Close(); err != nil {
			slog.Error("Error closing Valkey connection", "error", err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
			return err
		}
	}
	return nil
}
