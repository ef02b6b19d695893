package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/AbdessamadProschool/medaction-prod-sub006/internal/auth"
	"github.com/AbdessamadProschool/medaction-prod-sub006/internal/complaint"
	"github.com/AbdessamadProschool/medaction-prod-sub006/internal/obs"
	"github.com/AbdessamadProschool/medaction-prod-sub006/internal/perm"
)

// ReadyProbe pings the database when one is configured.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// OverrideAdmin is the administration surface for per-actor permission
// overrides. Implemented by the Postgres store.
type OverrideAdmin interface {
	SetOverrides(ctx context.Context, actorID string, overrides []perm.Override) error
}

// API is the HTTP layer over the complaint service.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	service    *complaint.Service
	resolver   *perm.Resolver
	identities auth.IdentityStore
	overrides  OverrideAdmin
	tokenTTL   time.Duration
}

// Option configures optional API collaborators.
type Option func(*API)

// WithIdentityStore enables the login endpoint.
func WithIdentityStore(store auth.IdentityStore) Option {
	return func(a *API) { a.identities = store }
}

// WithOverrideAdmin enables the permission override administration endpoint.
func WithOverrideAdmin(admin OverrideAdmin) Option {
	return func(a *API) { a.overrides = admin }
}

// WithTokenTTL overrides the session token lifetime.
func WithTokenTTL(ttl time.Duration) Option {
	return func(a *API) {
		if ttl > 0 {
			a.tokenTTL = ttl
		}
	}
}

// New wires the route table.
func New(service *complaint.Service, resolver *perm.Resolver, rp ReadyProbe, version string, opts ...Option) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		service:    service,
		resolver:   resolver,
		tokenTTL:   12 * time.Hour,
	}
	for _, opt := range opts {
		opt(a)
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)

	a.mux.HandleFunc("/v1/reclamations", a.handleComplaintsCollection)
	a.mux.HandleFunc("/v1/reclamations/", a.handleComplaintResource)

	a.mux.HandleFunc("/v1/audit", a.handleRecentAudit)
	a.mux.HandleFunc("/v1/actors/", a.handleActorResource)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler assembles the middleware chain around the route table.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = RateLimit(h, 20, 10)
	h = MaxBodyBytes(h, 1<<20)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "medaction-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "medaction-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
