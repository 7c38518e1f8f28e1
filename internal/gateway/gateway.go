// Package gateway forwards every inbound HTTP request to the singleton
// backend instance and relays the response unchanged.
package gateway

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/firefly-engineering/edgerelay/internal/errors"
	"github.com/firefly-engineering/edgerelay/internal/instance"
)

// Resolver hands out acquired handles to the backend instance.
type Resolver interface {
	Resolve(ctx context.Context, key string) (*instance.Handle, error)
}

// Config holds gateway configuration
type Config struct {
	// Registry resolves the instance for each request
	Registry Resolver

	// AccessLogPath is the path to write the access log (empty = no logging)
	AccessLogPath string

	// Logger for gateway operations
	Logger *slog.Logger

	// Transport is an optional HTTP transport for the reverse proxy.
	Transport http.RoundTripper
}

// Gateway is the forwarding HTTP handler.
type Gateway struct {
	config       *Config
	reverseProxy *httputil.ReverseProxy
	accessLog    *accessLogger
}

type targetKey struct{}

// forwardingHeaders are stripped from the outbound request by
// httputil.ReverseProxy when Rewrite is used; they are restored so the
// backend sees the inbound headers unchanged.
var forwardingHeaders = []string{"Forwarded", "X-Forwarded-For", "X-Forwarded-Host", "X-Forwarded-Proto"}

// New creates a new gateway
func New(cfg *Config) (*Gateway, error) {
	if cfg.Registry == nil {
		return nil, errors.ConfigError("gateway requires a registry", nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	g := &Gateway{config: cfg}

	g.reverseProxy = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			addr, _ := pr.In.Context().Value(targetKey{}).(string)
			pr.SetURL(&url.URL{Scheme: "http", Host: addr})
			pr.Out.Host = pr.In.Host
			pr.Out.URL.RawQuery = pr.In.URL.RawQuery
			for _, h := range forwardingHeaders {
				if v, ok := pr.In.Header[h]; ok {
					pr.Out.Header[h] = v
				}
			}
			// Request trailer values arrive after the body has been read, so
			// the outbound request shares the inbound map instead of a copy.
			if pr.In.Trailer != nil {
				pr.Out.Trailer = pr.In.Trailer
			}
		},
		FlushInterval: -1,
		ErrorHandler:  g.errorHandler,
	}

	if cfg.Transport != nil {
		g.reverseProxy.Transport = cfg.Transport
	}

	if cfg.AccessLogPath != "" {
		al, err := newAccessLogger(cfg.AccessLogPath, cfg.Logger)
		if err != nil {
			return nil, errors.ConfigError("failed to open access log", err)
		}
		g.accessLog = al
	}

	return g, nil
}

// ServeHTTP implements http.Handler
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	requestID := uuid.NewString()
	log := g.config.Logger.With("request", requestID)

	lw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
	var activationID string

	defer func() {
		if g.accessLog != nil {
			g.accessLog.log(accessEntry{
				RequestID:    requestID,
				Timestamp:    startTime,
				Duration:     time.Since(startTime),
				ActivationID: activationID,
				Method:       r.Method,
				Path:         r.URL.Path,
				StatusCode:   lw.statusCode,
				RequestSize:  r.ContentLength,
				RemoteAddr:   r.RemoteAddr,
			})
		}
	}()

	h, err := g.config.Registry.Resolve(r.Context(), instance.Key)
	if err != nil {
		status := errors.HTTPStatus(err)
		log.Error("instance resolution failed", "error", err, "status", status)
		http.Error(lw, http.StatusText(status), status)
		return
	}
	defer h.Release()
	activationID = h.ActivationID

	log.Debug("forwarding request",
		"method", r.Method,
		"path", r.URL.Path,
		"activation", h.ActivationID,
		"target", h.Addr)

	ctx := context.WithValue(r.Context(), targetKey{}, h.Addr)
	g.reverseProxy.ServeHTTP(lw, r.WithContext(ctx))
}

func (g *Gateway) errorHandler(w http.ResponseWriter, r *http.Request, err error) {
	ferr := errors.ForwardFailed(err)
	if stderrors.Is(err, context.Canceled) {
		g.config.Logger.Debug("client went away", "path", r.URL.Path)
	} else {
		g.config.Logger.Error("forward error", "error", err, "path", r.URL.Path)
	}
	status := ferr.HTTPStatus()
	http.Error(w, http.StatusText(status), status)
}

// Close releases gateway resources
func (g *Gateway) Close() error {
	if g.accessLog != nil {
		return g.accessLog.close()
	}
	return nil
}

// loggingResponseWriter wraps http.ResponseWriter to capture status code
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lw *loggingResponseWriter) WriteHeader(code int) {
	lw.statusCode = code
	lw.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the underlying writer to http.ResponseController so
// streamed responses can be flushed.
func (lw *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return lw.ResponseWriter
}
