package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/laythBunni/ASIAiHub-sub000/internal/hub/metrics"
	"github.com/laythBunni/ASIAiHub-sub000/internal/hub/service"
	"github.com/laythBunni/ASIAiHub-sub000/internal/hub/store"
	"github.com/laythBunni/ASIAiHub-sub000/pkg/httpx"
	"github.com/laythBunni/ASIAiHub-sub000/pkg/slogx"

	_ "github.com/laythBunni/ASIAiHub-sub000/api/hub" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "asi_session"

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	upstream     *url.URL
	client       *http.Client
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store          store.Store
	recorder       metrics.Recorder
	metricsHandler http.Handler

	SessionService *service.SessionService
	CookieTTL      time.Duration
	CookieSecure   bool
}

func NewRouter(
	upstream *url.URL,
	client *http.Client,
	buildVersion string,
	st store.Store,
	recorder metrics.Recorder,
	metricsHandler http.Handler,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:            http.NewServeMux(),
		upstream:       upstream,
		client:         client,
		buildVersion:   buildVersion,
		startTime:      time.Now(),
		store:          st,
		recorder:       recorder,
		metricsHandler: metricsHandler,
		logger:         logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerSystem()
	r.registerProxy()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
//
//	@title			ASI AiHub Gateway & Session API
//	@version		0.1.0
//	@description	Passwordless session service (emailed one-time codes) plus an
//	@description	authenticating reverse proxy in front of the AiHub backend.
//
//	@contact.name	ASI AiHub Team
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http https
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	// POST /auth/request-code - strict rate limit by IP (mail fan-out,
	// enumeration resistance)
	requestCodeHandler := &RequestCodeHandler{SessionService: r.SessionService}
	r.Mux.Handle("POST /auth/request-code",
		httpx.Chain(requestCodeHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /auth/login - strict rate limit by IP (code brute force)
	loginHandler := &LoginHandler{
		SessionService: r.SessionService,
		CookieTTL:      r.CookieTTL,
		CookieSecure:   r.CookieSecure,
	}
	r.Mux.Handle("POST /auth/login",
		httpx.Chain(loginHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// GET /auth/me - lenient; the dashboard polls it on navigation
	meHandler := &MeHandler{SessionService: r.SessionService}
	r.Mux.Handle("GET /auth/me",
		httpx.Chain(meHandler,
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /metrics",
		httpx.Chain(r.metricsHandler,
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerProxy() {
	// Catch-all: everything that is not an auth/system route goes to
	// the upstream. Registered last conceptually, but ServeMux picks
	// the most specific pattern regardless of order.
	proxy := &ProxyHandler{
		Upstream: r.upstream,
		Client:   r.client,
		Metrics:  r.recorder,
	}
	r.Mux.Handle("/",
		httpx.Chain(proxy,
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}
