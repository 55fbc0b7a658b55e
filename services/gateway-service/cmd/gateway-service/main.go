package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/cajuhub/roombook/libs/auth"
	"github.com/cajuhub/roombook/libs/config"
	"github.com/cajuhub/roombook/libs/grpcx"
	"github.com/cajuhub/roombook/libs/httpx"
	otelx "github.com/cajuhub/roombook/libs/otel"
	"github.com/cajuhub/roombook/libs/runtime"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// bookingHealthService is the gRPC health service name booking-service reports.
const bookingHealthService = "roombook.booking"

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("load .env failed", "err", err)
		os.Exit(1)
	}
	service := config.String("SERVICE_NAME", "gateway-service")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		slog.Error("invalid config", "err", err)
		os.Exit(1)
	}
	logger := runtime.NewLogger(service, config.String("LOG_LEVEL", "info"))

	ctx, stop := runtime.SignalContext(logger)
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	bookingURL, err := url.Parse(config.String("BOOKING_URL", "http://booking-service:8083"))
	if err != nil {
		logger.Error("invalid BOOKING_URL", "err", err)
		os.Exit(1)
	}

	var checks []runtime.ReadyCheck
	if addr := strings.TrimSpace(config.String("BOOKING_GRPC_ADDR", "booking-service:9093")); addr != "" {
		conn, err := grpcx.Dial(addr, grpcx.DialOptions{})
		if err != nil {
			logger.Error("booking grpc dial failed", "err", err)
			os.Exit(1)
		}
		defer func() { _ = conn.Close() }()
		checks = append(checks, runtime.ReadyCheck{Name: "booking", Check: grpcx.HealthCheck(conn, bookingHealthService)})
	}

	var rdb *redis.Client
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		defer func() { _ = rdb.Close() }()
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	mux := runtime.NewBaseMuxWithReady(checks...)

	var jwks *auth.JWKSClient
	if jwksURL := config.String("JWKS_URL", ""); jwksURL != "" {
		jwks = auth.NewJWKSClient(jwksURL, config.Duration("JWKS_CACHE_SECONDS", 5*time.Minute))
	}
	registerRoutes(mux, bookingURL, config.String("JWT_SECRET", "dev-secret"), jwks)

	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 60)
	var rateLimitMW httpx.Middleware
	if rdb != nil {
		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
		rateLimitMW = rl.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute)
	} else {
		rateLimitMW = httpx.NewRateLimiter(limitPerMinute, time.Minute).Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	handler := newHandler(mux, logger, rateLimitMW, httpx.CORSPolicy{
		AllowedOrigins:   config.List("CORS_ALLOWED_ORIGINS", ""),
		AllowedMethods:   config.List("CORS_ALLOWED_METHODS", "GET,POST,DELETE,OPTIONS"),
		AllowedHeaders:   config.List("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id"),
		AllowCredentials: config.Bool("CORS_ALLOW_CREDENTIALS", false),
		MaxAge:           config.Duration("CORS_MAX_AGE_SECONDS", 10*time.Minute),
	}, int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20)), config.Duration("REQUEST_TIMEOUT_SECONDS", 10*time.Second))
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           otelhttp.NewHandler(handler, "gateway"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "booking_url", bookingURL.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

// newHandler wraps mux in the edge middleware. Identity headers are dropped
// before the rate limiter keys on the caller, so only requireAuth can set them.
func newHandler(mux http.Handler, logger *slog.Logger, rateLimit httpx.Middleware, cors httpx.CORSPolicy, bodyLimit int64, timeout time.Duration) http.Handler {
	return httpx.Chain(mux,
		httpx.WithoutIdentityHeaders,
		httpx.WithCORS(cors),
		httpx.WithRequestID,
		httpx.WithRecover(logger),
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(bodyLimit),
		httpx.WithTimeout(timeout),
		rateLimit,
	)
}

func registerRoutes(mux *http.ServeMux, bookingURL *url.URL, jwtSecret string, jwks *auth.JWKSClient) {
	bookingProxy := httputil.NewSingleHostReverseProxy(bookingURL)
	bookingProxy.Transport = otelhttp.NewTransport(http.DefaultTransport)
	bookingProxy.ErrorHandler = func(w http.ResponseWriter, _ *http.Request, _ error) {
		httpx.WriteError(w, http.StatusBadGateway, "upstream_unavailable", "booking service unavailable")
	}

	// More specific prefix wins in ServeMux, so admin routes never skip the role gate.
	registerProxy(mux, "/api/v1/admin", requireAuth(requireRole(bookingProxy, auth.RoleAdmin), jwtSecret, jwks))
	registerProxy(mux, "/api/v1/bookings", requireAuth(bookingProxy, jwtSecret, jwks))
	registerProxy(mux, "/api/v1/spaces", requireAuth(bookingProxy, jwtSecret, jwks))
}

func registerProxy(mux *http.ServeMux, prefix string, handler http.Handler) {
	mux.Handle(prefix, handler)
	mux.Handle(prefix+"/", handler)
}

// requireAuth verifies the bearer token and replaces any identity headers the
// client sent with the ones carried by the token.
func requireAuth(next http.Handler, jwtSecret string, jwks *auth.JWKSClient) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Header.Del(httpx.UserIDHeader)
		r.Header.Del(httpx.RoleHeader)

		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated", "missing or invalid Authorization header")
			return
		}
		claims, err := auth.Verify(r.Context(), token, jwtSecret, jwks)
		if err != nil {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated", "invalid token")
			return
		}

		r.Header.Set(httpx.UserIDHeader, claims.UserID())
		r.Header.Set(httpx.RoleHeader, claims.Role)
		next.ServeHTTP(w, r)
	})
}

func requireRole(next http.Handler, roles ...string) http.Handler {
	allowed := map[string]struct{}{}
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := allowed[r.Header.Get(httpx.RoleHeader)]; !ok {
			httpx.WriteError(w, http.StatusForbidden, "forbidden", "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
