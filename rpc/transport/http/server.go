package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("transport/http")

// MetricsServer serves the prometheus text exposition of a node
type MetricsServer struct {
	write func(w io.Writer)
	debug bool

	mu     sync.Mutex
	ln     net.Listener
	server *http.Server
}

// NewMetricsServer creates a server answering GET /metrics with the output
// of write and GET /health with "ok". With debug every request is logged.
func NewMetricsServer(write func(w io.Writer), debug bool) *MetricsServer {
	return &MetricsServer{write: write, debug: debug}
}

// --------------------------------------------------------------------------
// Public Methods
// --------------------------------------------------------------------------

// Start listens on endpoint and serves in the background
func (s *MetricsServer) Start(endpoint string) error {
	ln, err := net.Listen("tcp", endpoint)
	if err != nil {
		return fmt.Errorf("failed to listen for metrics: %w", err)
	}

	mux := http.NewServeMux()
	if s.debug {
		mux.HandleFunc("GET /metrics", loggerMiddleware(s.handleMetrics))
		mux.HandleFunc("GET /health", loggerMiddleware(handleHealth))
	} else {
		mux.HandleFunc("GET /metrics", s.handleMetrics)
		mux.HandleFunc("GET /health", handleHealth)
	}

	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	s.mu.Lock()
	s.ln, s.server = ln, server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("Metrics server failed: %v", err)
		}
	}()
	Logger.Infof("Serving metrics on http://%s/metrics", ln.Addr())
	return nil
}

// Addr returns the bound address or nil before Start
func (s *MetricsServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Close shuts the server down, waiting at most timeout for running requests
func (s *MetricsServer) Close(timeout time.Duration) error {
	s.mu.Lock()
	server := s.server
	s.mu.Unlock()
	if server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return server.Shutdown(ctx)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (s *MetricsServer) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	s.write(w)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	_, _ = io.WriteString(w, "ok\n")
}

// --------------------------------------------------------------------------
// Middleware (logging)
// --------------------------------------------------------------------------

// responseWriter is a custom ResponseWriter that captures status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code before writing it
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// loggerMiddleware is a middleware that logs HTTP requests
func loggerMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}
		next.ServeHTTP(rw, r)

		Logger.Debugf("%s %s => %d took %s", r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	}
}
