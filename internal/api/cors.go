package api

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// CORSConfig holds CORS configuration. An empty AllowOrigins allows any
// origin; otherwise only listed origins are echoed back.
type CORSConfig struct {
	AllowOrigins []string
	AllowMethods []string
	AllowHeaders []string
	MaxAge       int
}

// DefaultCORSConfig returns the CORS config for the read-only status API.
// Dashboards on other hosts poll status and subscribe to the SSE streams.
func DefaultCORSConfig(origins []string) CORSConfig {
	return CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Accept", "Cache-Control", "Last-Event-ID"},
		MaxAge:       86400,
	}
}

// corsHeaders writes the CORS response headers for a request from origin.
type corsHeaders struct {
	origins      []string
	allowMethods string
	allowHeaders string
	maxAge       string
}

func newCORSHeaders(config CORSConfig) corsHeaders {
	return corsHeaders{
		origins:      config.AllowOrigins,
		allowMethods: strings.Join(config.AllowMethods, ", "),
		allowHeaders: strings.Join(config.AllowHeaders, ", "),
		maxAge:       strconv.Itoa(config.MaxAge),
	}
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, or
// "" when the origin is not allowed.
func (c corsHeaders) allowOrigin(origin string) string {
	if len(c.origins) == 0 {
		return "*"
	}
	if origin != "" && slices.Contains(c.origins, origin) {
		return origin
	}
	return ""
}

func (c corsHeaders) apply(set func(name, value string), origin string) {
	if len(c.origins) > 0 {
		set("Vary", "Origin")
	}
	allowed := c.allowOrigin(origin)
	if allowed == "" {
		return
	}
	set("Access-Control-Allow-Origin", allowed)
	set("Access-Control-Allow-Methods", c.allowMethods)
	set("Access-Control-Allow-Headers", c.allowHeaders)
	set("Access-Control-Max-Age", c.maxAge)
}

// NewCORSMiddleware creates CORS middleware with the given configuration
func NewCORSMiddleware(config CORSConfig) func(huma.Context, func(huma.Context)) {
	headers := newCORSHeaders(config)

	return func(ctx huma.Context, next func(huma.Context)) {
		headers.apply(ctx.SetHeader, ctx.Header("Origin"))

		if ctx.Method() == http.MethodOptions {
			ctx.SetStatus(http.StatusNoContent)
			return
		}
		next(ctx)
	}
}

// AddCORSHandler answers preflight requests on the mux, since huma middleware
// only runs for registered operations.
func AddCORSHandler(mux *http.ServeMux, config CORSConfig) {
	headers := newCORSHeaders(config)

	mux.HandleFunc("OPTIONS /", func(w http.ResponseWriter, r *http.Request) {
		headers.apply(w.Header().Set, r.Header.Get("Origin"))
		w.WriteHeader(http.StatusNoContent)
	})
}
