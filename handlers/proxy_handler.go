package handlers

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/graphgate/graphgate/middleware"
	"github.com/graphgate/graphgate/utils"
)

// GraphProxy forwards admitted requests to the downstream resource API.
// The bearer token travels unchanged; the resource server performs the
// actual cryptographic validation on it.
type GraphProxy struct {
	target *url.URL
	proxy  *httputil.ReverseProxy
	logger *zap.Logger
}

// NewGraphProxy creates a reverse proxy to the resource API base URL.
func NewGraphProxy(baseURL string, logger *zap.Logger) (*GraphProxy, error) {
	target, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	g := &GraphProxy{target: target, logger: logger}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error("downstream proxy error",
			zap.String("request_id", chimw.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		_ = utils.WriteServerError(w)
	}
	g.proxy = proxy

	return g, nil
}

// ServeHTTP strips the /api prefix and forwards; the proxy director joins
// the remainder onto the target base path.
func (g *GraphProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ac := middleware.GetAuthContext(r.Context())
	if ac == nil {
		// Only reachable when the route is miswired without admission.
		_ = utils.WriteUnauthorized(w, utils.ErrInvalidRequest, "Missing Authorization header")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api")
	if !strings.HasPrefix(rest, "/") {
		rest = "/" + rest
	}
	r.URL.Path = rest
	r.Host = g.target.Host

	g.proxy.ServeHTTP(w, r)
}
