// Package httpserver exposes the auth and file services as a JSON HTTP API.
package httpserver

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/homedisk/internal/config"
	"github.com/and161185/homedisk/internal/metrics"
	"github.com/and161185/homedisk/internal/service"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// Server holds the handler dependencies.
type Server struct {
	auth    service.AuthService
	files   service.FileService
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewServer constructs the API. m may be nil, which disables /metrics.
func NewServer(auth service.AuthService, files service.FileService, log *zap.Logger, m *metrics.Metrics) *Server {
	return &Server{auth: auth, files: files, log: log, metrics: m}
}

// Routes registers every endpoint on a fresh mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	mux.HandleFunc("POST /api/auth/register", s.register)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.Handle("GET /api/auth/whoami", s.requireAuth(http.HandlerFunc(s.whoami)))

	mux.Handle("POST /api/fs/list", s.requireAuth(http.HandlerFunc(s.list)))
	mux.Handle("POST /api/fs/createdir", s.requireAuth(http.HandlerFunc(s.createDir)))
	mux.Handle("POST /api/fs/delete", s.requireAuth(http.HandlerFunc(s.deletePath)))

	return mux
}

// Handler returns the routes wrapped in the middleware stack:
// recover, request id, access log, security headers, CORS, throttle, timeout.
func (s *Server) Handler(cfg config.HTTPConfig) http.Handler {
	mux := s.Routes()
	return chain(mux,
		Recover(s.log),
		RequestID(),
		AccessLog(s.log, s.metrics, mux),
		SecurityHeaders(),
		CORS(cfg.CORS),
		NewThrottle(cfg.RateLimit, cfg.RateBurst).Middleware(),
		Timeout(cfg.RequestTimeout),
	)
}

// New builds the *http.Server for cfg.
func New(cfg config.HTTPConfig, s *Server) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.Handler(cfg),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(s.log),
	}
}
