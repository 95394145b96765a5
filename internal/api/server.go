package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/RowanDark/subcipher/internal/cipher"
	"github.com/RowanDark/subcipher/internal/history"
	"github.com/RowanDark/subcipher/internal/logging"
	"github.com/RowanDark/subcipher/internal/observability/metrics"
	"github.com/RowanDark/subcipher/internal/observability/tracing"
	"github.com/RowanDark/subcipher/internal/subst"
)

const maxBodyBytes = 1 << 20

// Config configures the REST API server.
type Config struct {
	Addr string
	// DefaultSeed is used when a request omits the seed.
	DefaultSeed int64
	Recipes     *cipher.RecipeManager
	History     *history.Store
	Logger      *logging.AuditLogger
	Log         *slog.Logger
}

// Server exposes the cipher operations, recipes and metrics over HTTP/1.1
// and cleartext HTTP/2.
type Server struct {
	cfg           Config
	httpServer    *http.Server
	recipeManager *cipher.RecipeManager
	history       *history.Store
	logger        *logging.AuditLogger
	log           *slog.Logger
}

// NewServer constructs a REST API server using the provided configuration.
func NewServer(cfg Config) (*Server, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("api address must be provided")
	}
	recipes := cfg.Recipes
	if recipes == nil {
		recipes = cipher.NewRecipeManager("")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard("api")
	}
	log := cfg.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Server{
		cfg:           cfg,
		recipeManager: recipes,
		history:       cfg.History,
		logger:        logger,
		log:           log,
	}, nil
}

// Handler returns the full handler chain, including h2c upgrade support.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/api/v1/cipher/encode", s.handleSubstitute(subst.ModeEncode))
	mux.HandleFunc("/api/v1/cipher/decode", s.handleSubstitute(subst.ModeDecode))
	mux.HandleFunc("/api/v1/cipher/execute", s.handleCipherExecute)
	mux.HandleFunc("/api/v1/cipher/pipeline", s.handleCipherPipeline)
	mux.HandleFunc("/api/v1/cipher/operations", s.handleCipherListOperations)
	mux.HandleFunc("/api/v1/cipher/table", s.handleCipherTable)
	mux.HandleFunc("/api/v1/recipes", s.handleRecipes)

	handler := withRequestID(tracing.Middleware(instrument(mux)))
	return h2c.NewHandler(handler, &http2.Server{})
}

// Run listens on the configured address and blocks until ctx is cancelled or
// a fatal error occurs.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve handles connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info("api listening", "addr", ln.Addr().String())
	_ = s.logger.Emit(logging.AuditEvent{EventType: logging.EventServerState, Decision: logging.DecisionInfo, Reason: "start", Metadata: map[string]any{"addr": ln.Addr().String()}})

	errCh := make(chan error, 1)
	go func() {
		err := s.httpServer.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
		_ = s.logger.Emit(logging.AuditEvent{EventType: logging.EventServerState, Decision: logging.DecisionInfo, Reason: "stop"})
		return <-errCh
	case err := <-errCh:
		return err
	}
}

type requestIDKey struct{}

// RequestIDFromContext returns the request ID assigned by the server.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// withRequestID keeps a caller supplied UUID in X-Request-ID or assigns a new one.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// instrument must wrap the mux directly so the matched pattern is visible
// after the request is served.
func instrument(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		mux.ServeHTTP(sw, r)
		metrics.ObserveAPIRequest(r.Context(), r.Pattern, sw.status, time.Since(start))
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Warn("encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
