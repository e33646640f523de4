package http

import (
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/laythBunni/ASIAiHub-sub000/internal/hub/metrics"
	"github.com/laythBunni/ASIAiHub-sub000/pkg/httpx"
	"github.com/laythBunni/ASIAiHub-sub000/pkg/slogx"
)

// Hop-by-hop and framing headers that must not be forwarded. The
// transport computes its own framing, and the client already got a
// decoded body when the upstream compressed it.
var (
	requestHeaderDenylist  = []string{"Host", "Content-Length"}
	responseHeaderDenylist = []string{"Content-Encoding", "Transfer-Encoding", "Connection"}
)

// ProxyHandler forwards everything that is not an auth route to the
// upstream backend, verbatim in both directions.
type ProxyHandler struct {
	Upstream *url.URL
	Client   *http.Client
	Metrics  metrics.Recorder
}

// NewProxyClient builds the HTTP client the proxy forwards through.
// Redirects are surfaced to the caller rather than followed, so the
// browser sees the upstream's 3xx as-is.
func NewProxyClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// ServeHTTP proxies the request to the upstream.
//
//	@Summary		Forward a request to the AiHub backend
//	@Description	Catch-all route. Any path not starting with auth/ is forwarded
//	@Description	to the upstream with method, query, headers and body preserved.
//	@Tags			gateway
//	@Success		200	{string}	string	"Upstream response, passed through verbatim"
//	@Failure		404	{object}	httpx.ErrorResponse	"Path starts with auth/"
//	@Failure		502	{object}	httpx.ErrorResponse	"Upstream unreachable"
//	@Router			/{path} [get]
func (h *ProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	path := strings.TrimPrefix(r.URL.Path, "/")

	// Auth routes never reach the upstream. Anything under auth/ that
	// was not matched by a registered handler is unknown.
	if path == "auth" || strings.HasPrefix(path, "auth/") {
		httpx.WriteError(w, http.StatusNotFound, "Not found", "")
		return
	}

	target := h.Upstream.JoinPath(path)
	target.RawQuery = r.URL.RawQuery

	var body io.Reader
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		body = r.Body
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), body)
	if err != nil {
		h.Metrics.RecordProxyFailure()
		log.Error("failed to build upstream request", slog.Any("error", err))
		httpx.WriteError(w, http.StatusBadGateway, "proxy_failed", err.Error())
		return
	}

	for name, values := range r.Header {
		if headerDenied(requestHeaderDenylist, name) {
			continue
		}
		req.Header.Set(name, strings.Join(values, ","))
	}

	start := time.Now()
	resp, err := h.Client.Do(req)
	if err != nil {
		h.Metrics.RecordProxyFailure()
		log.Error("upstream request failed",
			slog.String("target", target.String()),
			slog.Any("error", err),
		)
		httpx.WriteError(w, http.StatusBadGateway, "proxy_failed", err.Error())
		return
	}
	defer resp.Body.Close()

	h.Metrics.RecordProxyLatency(time.Since(start))
	h.Metrics.RecordProxyRequest(resp.StatusCode)

	for name, values := range resp.Header {
		if headerDenied(responseHeaderDenylist, name) {
			continue
		}
		w.Header()[name] = values
	}
	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		// Headers are already out; nothing to do but log.
		log.Warn("failed to relay upstream body", slog.Any("error", err))
	}
}

func headerDenied(denylist []string, name string) bool {
	for _, d := range denylist {
		if strings.EqualFold(d, name) {
			return true
		}
	}
	return false
}
