package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/purposeinplay/notifier/election"
	"go.uber.org/zap"
)

// ElectionStatus exposes the election view served on /election.
type ElectionStatus interface {
	Snapshot() election.Snapshot
}

// NewRouter returns the status routes:
//   - GET /healthz: liveness probe
//   - GET /election: JSON snapshot of the election
//   - GET /metrics: the given metrics handler
func NewRouter(logger *zap.Logger, status ElectionStatus, metrics http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(&structuredLogger{logger}))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/election", func(w http.ResponseWriter, _ *http.Request) {
		if err := sendJSON(w, http.StatusOK, status.Snapshot()); err != nil {
			logger.Error("write election snapshot", zap.Error(err))
		}
	})

	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	return r
}

func sendJSON(w http.ResponseWriter, status int, obj interface{}) error {
	b, err := json.Marshal(obj)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return fmt.Errorf("encode json response: %w", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_, err = w.Write(b)

	return err
}

type structuredLogger struct {
	logger *zap.Logger
}

func (l *structuredLogger) NewLogEntry(r *http.Request) middleware.LogEntry {
	fields := []zap.Field{
		zap.String("http_method", r.Method),
		zap.String("http_proto", r.Proto),
		zap.String("remote_addr", r.RemoteAddr),
		zap.String("user_agent", r.UserAgent()),
		zap.String("uri", r.RequestURI),
	}

	if reqID := middleware.GetReqID(r.Context()); reqID != "" {
		fields = append(fields, zap.String("req.id", reqID))
	}

	return &structuredLoggerEntry{logger: l.logger.With(fields...)}
}

type structuredLoggerEntry struct {
	logger *zap.Logger
}

func (e *structuredLoggerEntry) Write(
	status, bytes int,
	_ http.Header,
	elapsed time.Duration,
	_ interface{},
) {
	e.logger.Debug("request complete",
		zap.Int("resp_status", status),
		zap.Int("resp_bytes_length", bytes),
		zap.Duration("resp_elapsed", elapsed),
	)
}

func (e *structuredLoggerEntry) Panic(v interface{}, stack []byte) {
	e.logger.Error("request panicked",
		zap.String("panic", fmt.Sprintf("%+v", v)),
		zap.ByteString("stack", stack),
	)
}
