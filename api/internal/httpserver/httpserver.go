// Package httpserver builds the chi router shared by both binaries and runs
// it with graceful shutdown.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouteRegistrar registers a set of routes against the provided router.
type RouteRegistrar func(r chi.Router)

type routerConfig struct {
	log    *zap.Logger
	health func(ctx context.Context) error
	routes []RouteRegistrar
}

type Option func(*routerConfig)

func WithLogger(l *zap.Logger) Option {
	return func(c *routerConfig) {
		if l != nil {
			c.log = l
		}
	}
}

// WithHealthCheck makes /healthz report 503 when check fails (e.g. db ping).
func WithHealthCheck(check func(ctx context.Context) error) Option {
	return func(c *routerConfig) { c.health = check }
}

func WithRoutes(reg RouteRegistrar) Option {
	return func(c *routerConfig) { c.routes = append(c.routes, reg) }
}

// NewRouter returns a router with request ids, panic recovery, access logs,
// /healthz and /metrics.
func NewRouter(opts ...Option) chi.Router {
	cfg := routerConfig{log: zap.NewNop()}
	for _, o := range opts {
		o(&cfg)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(cfg.log), middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if cfg.health != nil {
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()
			if err := cfg.health(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("not ok\n" + err.Error()))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	for _, reg := range cfg.routes {
		reg(r)
	}
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				fields := []zap.Field{
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Duration("latency", time.Since(start)),
					zap.Int("bytes", ww.BytesWritten()),
				}
				switch {
				case ww.Status() >= http.StatusInternalServerError:
					log.Error("request completed", fields...)
				case ww.Status() >= http.StatusBadRequest:
					log.Warn("request completed", fields...)
				default:
					log.Debug("request completed", fields...)
				}
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// Serve runs h on addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, addr string, h http.Handler, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	}
}
