/*
server.go - HTTP server setup and routing

PURPOSE:
  Wires the chi router, CORS, and standard middleware around the
  handlers, and owns server lifecycle (start, graceful shutdown).

ROUTES:
  POST   /api/login                  open session
  POST   /api/logout                 close session
  GET    /api/period                 active month + floor
  POST   /api/period/advance         move active month forward
  POST   /api/period/rewind          move active month back (floor-safe)
  POST   /api/period/reset           master reset (confirm required)
  GET    /api/donors                 list active donors
  POST   /api/donors                 create donor
  PUT    /api/donors/{id}            update donor
  DELETE /api/donors/{id}            soft-delete donor
  GET    /api/donors/{id}/standing   derived balance metrics
  GET    /api/donors/{id}/ledger     payment history + lifetime total
  GET    /api/payments               full donation history
  POST   /api/payments               record a payment
  DELETE /api/payments               wipe ledger (confirm required)
  GET    /api/reports/summary        dashboard totals (optional ?city=)
  GET    /api/reports/cities         per-city performance
  GET    /api/reports/status         donor status board (?city=&filter=)
  GET    /api/me/visits              collector's pending visits
  GET    /api/me/history             collector's active-month records
  POST   /api/me/password            change own password
  GET    /api/users                  list users
  POST   /api/users/collectors       create collector
  POST   /api/users/admins           create admin (super admin only)
  PUT    /api/users/{id}             update user
  DELETE /api/users/{id}             delete user
  POST   /api/users/admin-passwords  rotate fixed-account passwords (super admin only)
  GET    /api/cities                 list cities
  POST   /api/cities                 add city
  DELETE /api/cities/{name}          remove city
  GET    /api/state/export           download backup
  POST   /api/state/import           restore backup (super admin only)

SEE ALSO:
  - handlers.go: Handler implementations
*/
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// =============================================================================
// SERVER
// =============================================================================

// Server wraps the HTTP server with routing.
type Server struct {
	handler *Handler
	server  *http.Server
	log     *zap.Logger
}

// NewServer creates a configured server listening on addr.
func NewServer(addr string, handler *Handler, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{handler: handler, log: log}
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Routes builds the chi router with all endpoints. Exposed so tests
// can mount the router on httptest without binding a port.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Confirm"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", s.handler.Login)
		r.Post("/logout", s.handler.Logout)

		r.Route("/period", func(r chi.Router) {
			r.Get("/", s.handler.GetPeriod)
			r.Post("/advance", s.handler.AdvanceMonth)
			r.Post("/rewind", s.handler.RewindMonth)
			r.Post("/reset", s.handler.ResetSystem)
		})

		r.Route("/donors", func(r chi.Router) {
			r.Get("/", s.handler.ListDonors)
			r.Post("/", s.handler.CreateDonor)
			r.Put("/{id}", s.handler.UpdateDonor)
			r.Delete("/{id}", s.handler.RemoveDonor)
			r.Get("/{id}/standing", s.handler.GetDonorStanding)
			r.Get("/{id}/ledger", s.handler.GetDonorLedger)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Get("/", s.handler.ListPayments)
			r.Post("/", s.handler.RecordPayment)
			r.Delete("/", s.handler.WipeHistory)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/summary", s.handler.GetSummary)
			r.Get("/cities", s.handler.GetCityReport)
			r.Get("/status", s.handler.GetStatusBoard)
		})

		r.Route("/me", func(r chi.Router) {
			r.Get("/visits", s.handler.GetVisitList)
			r.Get("/history", s.handler.GetMyHistory)
			r.Post("/password", s.handler.ChangeOwnPassword)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", s.handler.ListUsers)
			r.Post("/collectors", s.handler.CreateCollector)
			r.Post("/admins", s.handler.CreateAdmin)
			r.Put("/{id}", s.handler.UpdateUser)
			r.Delete("/{id}", s.handler.DeleteUser)
			r.Post("/admin-passwords", s.handler.ChangeAdminPasswords)
		})

		r.Route("/cities", func(r chi.Router) {
			r.Get("/", s.handler.ListCities)
			r.Post("/", s.handler.AddCity)
			r.Delete("/{name}", s.handler.RemoveCity)
		})

		r.Route("/state", func(r chi.Router) {
			r.Get("/export", s.handler.ExportState)
			r.Post("/import", s.handler.ImportState)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}

// Start begins serving. Blocks until the listener fails or Shutdown
// is called.
func (s *Server) Start() error {
	s.log.Info("server listening", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests before stopping.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("server shutting down")
	return s.server.Shutdown(ctx)
}
