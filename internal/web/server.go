package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"stockcast/internal/config"
	"stockcast/internal/forecast"
	"stockcast/internal/metrics"
	"stockcast/internal/symbols"
	"stockcast/pkg/model"
)

//go:embed static
var staticFiles embed.FS

// DataSource supplies price history and company profiles
type DataSource interface {
	GetDailyHistory(ctx context.Context, symbol, lookback string) (*model.History, error)
	GetProfile(ctx context.Context, symbol string) (*model.Profile, error)
}

// Forecaster runs the prediction pipeline for one symbol
type Forecaster interface {
	Run(ctx context.Context, symbol string, progress forecast.ProgressFunc) (*forecast.Result, error)
}

// Server represents the web server
type Server struct {
	config     config.ServerConfig
	data       DataSource
	forecaster Forecaster
	loader     *symbols.Loader
	metrics    *metrics.Registry
	router     *mux.Router
}

// NewServer creates a new web server
func NewServer(cfg config.ServerConfig, data DataSource, fc Forecaster) *Server {
	s := &Server{
		config:     cfg,
		data:       data,
		forecaster: fc,
		loader:     symbols.NewLoader(data),
	}
	return s
}

// WithMetrics records request metrics and serves /metrics
func (s *Server) WithMetrics(m *metrics.Registry) *Server {
	s.metrics = m
	return s
}

// Handler builds the router. It is safe to call once per server.
func (s *Server) Handler() (http.Handler, error) {
	if s.router != nil {
		return s.router, nil
	}
	r := mux.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.requestLoggingMiddleware)
	r.Use(s.corsMiddleware)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.timeoutMiddleware)
	api.HandleFunc("/stocks", s.handleStocks).Methods(http.MethodGet)
	api.HandleFunc("/stocks/{symbol}/analysis", s.handleAnalysis).Methods(http.MethodGet)
	api.HandleFunc("/stocks/{symbol}/prediction", s.handlePrediction).Methods(http.MethodPost, http.MethodOptions)
	api.NotFoundHandler = http.HandlerFunc(s.handleNotFound)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to create static file system: %w", err)
	}
	r.PathPrefix("/").Handler(http.FileServer(http.FS(staticFS))).Methods(http.MethodGet)

	s.router = r
	return r, nil
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	h, err := s.Handler()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         s.config.Addr(),
		Handler:      h,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	log.Info().Str("component", "web").Str("addr", srv.Addr).
		Msgf("Starting stockcast dashboard at http://localhost:%d", s.config.Port)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Str("component", "web").Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type ctxKey int

const requestIDKey ctxKey = iota

// requestID returns the id assigned by requestIDMiddleware
func requestID(r *http.Request) string {
	if id, ok := r.Context().Value(requestIDKey).(string); ok {
		return id
	}
	return "unknown"
}

// requestIDMiddleware adds unique request ID to each request
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()[:8]
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestLoggingMiddleware logs and measures every routed request
func (s *Server) requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)
		duration := time.Since(start)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		if s.metrics != nil {
			s.metrics.ObserveRequest(route, r.Method, strconv.Itoa(wrapper.statusCode), duration)
		}

		log.Info().
			Str("component", "web").
			Str("request_id", requestID(r)).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
			Str("remote", r.RemoteAddr).
			Msg("request")
	})
}

// timeoutMiddleware bounds the work done for one API request
func (s *Server) timeoutMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.RequestTimeout <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), s.config.RequestTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// corsMiddleware allows local development origins
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); localOrigin(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// localOrigin reports whether origin is an http(s) origin on a loopback host
func localOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// responseWrapper captures HTTP status codes for logging
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
