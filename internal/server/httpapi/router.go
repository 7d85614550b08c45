package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/hugo617/healthcare-admin-sub001/internal/client"
	"github.com/hugo617/healthcare-admin-sub001/internal/health"
)

// HealthReporter is the readiness probe behind /healthz.
type HealthReporter interface {
	Check(ctx context.Context) health.Report
}

// Deps are the handlers and collaborators mounted by NewRouter.
type Deps struct {
	Auth        Authenticator
	AuthH       *AuthHandler
	Sessions    *SessionHandler
	Audit       *AuditHandler
	Health      HealthReporter
	CORSOrigins []string

	// TrustProxyHeaders applies X-Forwarded-For and X-Real-IP to the client IP.
	TrustProxyHeaders bool
}

// NewRouter returns the HTTP API. Every /api route is also served under /api/h5, where the
// path alone classifies the caller as the H5 client.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(EchoRequestID)
	if d.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(AccessLog)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", client.HeaderClientType, "X-Tenant-Id", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", healthz(d.Health))
	r.Route("/api", func(api chi.Router) {
		mountAPI(api, d)
		api.Route("/h5", func(h5 chi.Router) { mountAPI(h5, d) })
	})
	return r
}

func mountAPI(r chi.Router, d Deps) {
	r.Route("/auth", func(ar chi.Router) {
		ar.Post("/login", d.AuthH.Login)
		ar.With(OptionalAuthenticate(d.Auth)).Post("/logout", d.AuthH.Logout)
		ar.Group(func(pr chi.Router) {
			pr.Use(Authenticate(d.Auth))
			pr.Get("/me", d.AuthH.Me)
			pr.Get("/token", d.AuthH.Token)
			pr.Post("/switch-tenant", d.AuthH.SwitchTenant)
		})
	})
	r.Group(func(pr chi.Router) {
		pr.Use(Authenticate(d.Auth))
		pr.Route("/sessions", func(sr chi.Router) {
			sr.Get("/", d.Sessions.List)
			sr.Post("/revoke-others", d.Sessions.RevokeOthers)
			sr.Post("/revoke-all", d.Sessions.RevokeAll)
			sr.Delete("/{id}", d.Sessions.Delete)
		})
		pr.Route("/admin", func(ad chi.Router) {
			ad.Post("/sessions/cleanup", d.Sessions.Cleanup)
			if d.Audit != nil {
				ad.Get("/audit-logs", d.Audit.List)
			}
		})
	})
}

func healthz(h HealthReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h == nil {
			writeJSON(w, http.StatusOK, health.Report{Status: health.StatusOK, Checks: map[string]string{}})
			return
		}
		rep := h.Check(r.Context())
		status := http.StatusOK
		if !rep.OK() {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, rep)
	}
}
