package httpserver_test

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/purposeinplay/notifier/election"
	"github.com/purposeinplay/notifier/httpserver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestServer_ShutdownWithoutCallingListenAndServe(t *testing.T) {
	s := httpserver.New(zap.NewExample(), nil)

	err := s.Shutdown(0)
	assert.NoError(t, err)
}

func TestServer_DoubleShutdown(t *testing.T) {
	s := httpserver.New(zap.NewExample(), nil)

	err := s.Shutdown(0)
	require.NoError(t, err)

	err = s.Shutdown(0)
	assert.NoError(t, err)
}

func TestServer_ShutdownCancelsBaseContext(t *testing.T) {
	var (
		received = make(chan struct{})
		exited   = make(chan error, 1)
	)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(received)

		select {
		case <-r.Context().Done():
			exited <- r.Context().Err()
		case <-time.After(5 * time.Second):
			exited <- nil
		}
	})

	s := httpserver.New(
		zap.NewExample(),
		handler,
		httpserver.WithBaseContext(context.Background(), true),
	)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	serveErr := make(chan error, 1)

	go func() { serveErr <- s.Serve(ln) }()

	go func() {
		resp, err := http.Get("http://" + ln.Addr().String())
		if err == nil {
			_ = resp.Body.Close()
		}
	}()

	<-received

	require.NoError(t, s.Shutdown(time.Second))
	require.ErrorIs(t, <-exited, context.Canceled)
	require.NoError(t, <-serveErr)
}

func TestServer_Run(t *testing.T) {
	t.Run("StopsOnContextDone", func(t *testing.T) {
		s := httpserver.New(
			zap.NewExample(),
			http.NotFoundHandler(),
			httpserver.WithAddress("127.0.0.1:0"),
			httpserver.WithShutdownTimeout(time.Second),
		)

		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)

		go func() { done <- s.Run(ctx) }()

		cancel()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("server did not stop")
		}
	})

	t.Run("ReturnsListenError", func(t *testing.T) {
		s := httpserver.New(
			zap.NewExample(),
			http.NotFoundHandler(),
			httpserver.WithAddress("127.0.0.1:-1"),
		)

		require.Error(t, s.Run(context.Background()))
	})
}

func TestWithBaseContext_String(t *testing.T) {
	opt := httpserver.WithBaseContext(context.Background(), true)

	require.Contains(t, opt.String(), "server.CancelContextOnShutdown: true")
}

type staticStatus election.Snapshot

func (s staticStatus) Snapshot() election.Snapshot {
	return election.Snapshot(s)
}

func TestRouter(t *testing.T) {
	seen := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	status := staticStatus{
		InstanceID: "2-bbb",
		Leader:     "2-bbb",
		IsLeader:   true,
		Peers:      map[string]time.Time{"1-aaa": seen, "2-bbb": seen},
	}

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("metrics"))
	})

	router := httpserver.NewRouter(zap.NewNop(), status, metrics)

	tests := map[string]struct {
		path           string
		expectedStatus int
		check          func(t *testing.T, rec *httptest.ResponseRecorder)
	}{
		"Healthz": {
			path:           "/healthz",
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				require.Equal(t, "ok", rec.Body.String())
			},
		},
		"Election": {
			path:           "/election",
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

				var got election.Snapshot
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
				require.Equal(t, election.Snapshot(status), got)
			},
		},
		"Metrics": {
			path:           "/metrics",
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				require.Equal(t, "metrics", rec.Body.String())
			},
		},
		"Unknown": {
			path:           "/nope",
			expectedStatus: http.StatusNotFound,
		},
	}

	for name, test := range tests {
		test := test

		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, test.path, nil))

			require.Equal(t, test.expectedStatus, rec.Code)

			if test.check != nil {
				test.check(t, rec)
			}
		})
	}
}
