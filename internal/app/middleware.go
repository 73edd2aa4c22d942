package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/gymdesk/gymdesk/internal/observability"
	"github.com/gymdesk/gymdesk/internal/shared"
)

const (
	defaultRequestTimeout = 30 * time.Second
	globalRatePerMinute   = 300
	checkInRatePerMinute  = 10
)

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics
}

// MiddlewareStack returns the chain applied to every route, outermost first.
func MiddlewareStack(mc MiddlewareConfig) []func(http.Handler) http.Handler {
	logger := mc.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := defaultRequestTimeout
	if mc.Config != nil && mc.Config.AppRequestTimeout > 0 {
		timeout = mc.Config.AppRequestTimeout
	}

	stack := []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		requestLog(logger),
		middleware.Recoverer,
		middleware.Timeout(timeout),
		securityHeaders(mc.Config, logger),
		httprate.LimitByIP(globalRatePerMinute, time.Minute),
		shared.ActorMiddleware,
	}
	if mc.Metrics != nil {
		stack = append(stack, mc.Metrics.Middleware)
	}
	return stack
}

// CheckInLimiter throttles self check-in per client IP. It is stricter than
// the global limit since members submit from their phones.
func CheckInLimiter(cfg *Config) func(http.Handler) http.Handler {
	perMinute := checkInRatePerMinute
	if cfg != nil && cfg.CheckInRateLimit > 0 {
		perMinute = cfg.CheckInRateLimit
	}
	return httprate.LimitByIP(perMinute, time.Minute)
}

// securityHeaders sets hardening headers. The API only serves JSON, so the
// content security policy denies everything.
func securityHeaders(cfg *Config, logger *slog.Logger) func(http.Handler) http.Handler {
	sec := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		SSLRedirect:           cfg.IsProduction(),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		STSSeconds:            31536000,
		IsDevelopment:         !cfg.IsProduction(),
	})
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := sec.Process(w, r); err != nil {
				logger.Warn("request refused by security headers", slog.String("path", r.URL.Path), slog.Any("error", err))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestLog writes one structured line per request.
func requestLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			started := time.Now()
			next.ServeHTTP(ww, r)

			level := slog.LevelInfo
			if ww.Status() >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.LogAttrs(r.Context(), level, "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("took", time.Since(started)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
