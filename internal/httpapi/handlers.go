package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"recruitcore.io/internal/audit"
	"recruitcore.io/internal/auth"
	"recruitcore.io/internal/directory"
	"recruitcore.io/internal/obs"
)

const serviceName = "recruitcore-api"

// Pinger is anything whose health can be probed.
type Pinger interface {
	Ping(ctx context.Context) error
}

type readinessChecker interface {
	Check(ctx context.Context) error
}

// ReadyProbe checks the credential store. The cache is optional, so a failing cache ping only
// marks the service degraded.
type ReadyProbe struct {
	Store Pinger
	Cache Pinger
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.Store == nil {
		return nil
	}
	return rp.Store.Ping(ctx)
}

func (rp ReadyProbe) cacheStatus(ctx context.Context) string {
	if rp.Cache == nil {
		return "disabled"
	}
	if err := rp.Cache.Ping(ctx); err != nil {
		return "degraded"
	}
	return "ok"
}

// Services are the domain dependencies behind the routes. Nil services leave their routes
// answering 503.
type Services struct {
	Auth      *auth.Service
	RBAC      *auth.RBACService
	Gate      *auth.Gate
	Directory *directory.Service
	Audit     *audit.Recorder
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	auth      *auth.Service
	rbac      *auth.RBACService
	gate      *auth.Gate
	directory *directory.Service
	recorder  *audit.Recorder

	logger         zerolog.Logger
	allowedOrigins []string
	rateBurst      int
	ratePerSec     int
	now            func() time.Time
}

// Option configures API.
type Option func(*API)

// WithLogger sets the base logger for access logs and request contexts.
func WithLogger(l zerolog.Logger) Option {
	return func(a *API) { a.logger = l }
}

// WithAllowedOrigins lists the CORS origins; empty allows only localhost.
func WithAllowedOrigins(origins []string) Option {
	return func(a *API) { a.allowedOrigins = origins }
}

// WithRateLimit sets the per-client limit on the credential endpoints.
func WithRateLimit(perSecond, burst int) Option {
	return func(a *API) {
		if perSecond > 0 {
			a.ratePerSec = perSecond
		}
		if burst > 0 {
			a.rateBurst = burst
		}
	}
}

func New(rp ReadyProbe, version string, svc Services, opts ...Option) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		auth:       svc.Auth,
		rbac:       svc.RBAC,
		gate:       svc.Gate,
		directory:  svc.Directory,
		recorder:   svc.Audit,
		logger:     zerolog.Nop(),
		rateBurst:  10,
		ratePerSec: 5,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.mux.HandleFunc("GET /healthz", a.Healthz)
	a.mux.HandleFunc("GET /readyz", a.Ready)
	a.mux.HandleFunc("GET /v1/info", a.Info)
	a.mux.Handle("GET /metrics", obs.Handler())

	a.routeAuth()
	a.routeRBAC()
	a.routeDirectory()

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})
	return a
}

// Handler returns the full middleware chain around the router.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = obs.Instrument(h)
	h = MaxBodyBytes(h, 1<<20)
	h = CORS(h, a.allowedOrigins)
	h = SecurityHeaders(h)
	h = Logging(h, a.logger)
	return RequestID(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	cacheStatus := a.readyProbe.cacheStatus(r.Context())
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
			"cache":  cacheStatus,
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
		"cache":  cacheStatus,
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    a.now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

func (a *API) record(ctx context.Context, event string, fields map[string]any) {
	if err := a.recorder.Record(ctx, event, fields); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("event", event).Msg("audit record failed")
	}
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func writeCached(w http.ResponseWriter, fromCache bool, v any) {
	if fromCache {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	writeJSON(w, http.StatusOK, v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func unavailable(w http.ResponseWriter, r *http.Request, name string) {
	writeError(w, r, http.StatusServiceUnavailable, name+" service unavailable")
}

// writeServiceError maps domain errors onto HTTP statuses. Anything unrecognised is logged
// and reported as a 500 without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		w.Header().Set("WWW-Authenticate", `Bearer realm="recruitcore"`)
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "insufficient permissions")
	case errors.Is(err, auth.ErrInactive):
		writeError(w, r, http.StatusForbidden, "account is not active")
	case errors.Is(err, auth.ErrInvalidInput), errors.Is(err, directory.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrAlreadyExists), errors.Is(err, directory.ErrAlreadyExists):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrProtected):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrNotFound), errors.Is(err, directory.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
