package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"medbook/internal/config"
	"medbook/internal/domain"
	"medbook/internal/export"
	"medbook/internal/lock"
)

// Services bundles what the HTTP boundary calls into.
type Services struct {
	Professionals domain.ProfessionalRepository
	Availability  domain.AvailabilityService
	Orders        domain.OrderService
	Approval      domain.ApprovalService
	Exporter      *export.ScheduleExporter
	Locks         domain.Locker
}

// HTTPServer exposes the booking engine over JSON/HTTP.
type HTTPServer struct {
	cfg    config.APIConfig
	svc    Services
	auth   *HTTPAuth
	logger *zerolog.Logger
	server *http.Server
}

func NewHTTPServer(cfg config.APIConfig, svc Services, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "http").Logger()

	srv := &HTTPServer{
		cfg:    cfg,
		svc:    svc,
		auth:   NewHTTPAuth(cfg),
		logger: &l,
	}
	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return srv
}

func (s *HTTPServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(s.auth.Authenticate)

		api.Route("/professionals", func(r chi.Router) {
			r.With(s.auth.Require(PermReadSchedule)).Get("/", s.handleListProfessionals)
			r.With(s.auth.Require(PermManageRules)).Post("/", s.handleCreateProfessional)
			r.Route("/{professionalID}", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(s.auth.Require(PermReadSchedule))
					r.Get("/", s.handleGetProfessional)
					r.Get("/rules", s.handleListRules)
					r.Get("/slots", s.handleGetSlots)
					r.Get("/availability", s.handleCheckAvailability)
					r.Get("/orders", s.handleListProfessionalOrders)
					r.Get("/export", s.handleExport)
				})
				r.Group(func(r chi.Router) {
					r.Use(s.auth.Require(PermManageRules))
					r.Put("/availability", s.handleSetProfessionalAvailability)
					r.Post("/rules", s.handleCreateRule)
					r.Post("/slots/generate", s.handleGenerateSlots)
				})
			})
		})

		api.Route("/rules/{ruleID}", func(r chi.Router) {
			r.With(s.auth.Require(PermReadSchedule)).Get("/", s.handleGetRule)
			r.With(s.auth.Require(PermManageRules)).Put("/", s.handleUpdateRule)
			r.With(s.auth.Require(PermManageRules)).Delete("/", s.handleDeactivateRule)
		})

		api.With(s.auth.Require(PermReadSchedule)).Get("/clients/{clientID}/orders", s.handleListClientOrders)

		api.Route("/orders", func(r chi.Router) {
			r.With(s.auth.Require(PermWriteOrders)).Post("/", s.handleCreateOrder)
			r.Route("/{orderID}", func(r chi.Router) {
				r.With(s.auth.Require(PermReadSchedule)).Get("/", s.handleGetOrder)
				r.With(s.auth.Require(PermReadSchedule)).Get("/history", s.handleOrderHistory)
				r.With(s.auth.Require(PermWriteOrders)).Patch("/", s.handleUpdateOrder)
				r.With(s.auth.Require(PermWriteOrders)).Post("/cancel", s.handleTransition(cancelOrder))
				r.Group(func(r chi.Router) {
					r.Use(s.auth.Require(PermManageOrders))
					r.Delete("/", s.handleDeleteOrder)
					r.Post("/approve", s.handleTransition(approveOrder))
					r.Post("/decline", s.handleTransition(declineOrder))
					r.Post("/complete", s.handleTransition(completeOrder))
					r.Post("/no-show", s.handleTransition(markNoShow))
				})
			})
		})
	})

	return r
}

// Handler returns the root handler, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{"status": "ok"}
	switch l := s.svc.Locks.(type) {
	case *lock.FailoverLocker:
		resp["locks"] = "redis"
		if l.IsDown() {
			resp["locks"] = "degraded"
		}
	case *lock.MemoryLocker:
		resp["locks"] = "memory"
		resp["held_locks"] = l.Len()
	}
	writeJSON(w, http.StatusOK, resp)
}
