package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// toggle is a check whose result can be flipped between runs.
type toggle struct {
	mu  sync.Mutex
	err error
}

func (t *toggle) set(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.err = err
}

func (t *toggle) check(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func get(h http.HandlerFunc, path string) (int, string, map[string]string) {
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, path, nil))

	var (
		status string
		checks = map[string]string{}
	)
	_ = jx.DecodeBytes(w.Body.Bytes()).ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "status":
			s, err := d.Str()
			status = s
			return err
		case "checks":
			return d.ObjBytes(func(d *jx.Decoder, name []byte) error {
				s, err := d.Str()
				checks[string(name)] = s
				return err
			})
		default:
			return d.Skip()
		}
	})
	return w.Code, status, checks
}

func TestEndpoints(t *testing.T) {
	down := errors.New("connection refused")

	tests := []struct {
		name       string
		ready      bool
		postgres   error
		redis      error
		runs       int
		liveCode   int
		readyCode  int
		readyCheck map[string]string
	}{
		{
			name:      "serving",
			ready:     true,
			liveCode:  http.StatusOK,
			readyCode: http.StatusOK,
		},
		{
			name:       "draining",
			ready:      false,
			liveCode:   http.StatusOK,
			readyCode:  http.StatusServiceUnavailable,
			readyCheck: map[string]string{"_readiness": "service is not ready"},
		},
		{
			name:      "postgres flapping below threshold",
			ready:     true,
			postgres:  down,
			runs:      2,
			liveCode:  http.StatusOK,
			readyCode: http.StatusOK,
		},
		{
			name:       "postgres down",
			ready:      true,
			postgres:   down,
			runs:       3,
			liveCode:   http.StatusOK,
			readyCode:  http.StatusServiceUnavailable,
			readyCheck: map[string]string{"postgres": "ping: connection refused"},
		},
		{
			name:       "both stores down",
			ready:      true,
			postgres:   down,
			redis:      errors.New("i/o timeout"),
			runs:       3,
			liveCode:   http.StatusOK,
			readyCode:  http.StatusServiceUnavailable,
			readyCheck: map[string]string{"postgres": "ping: connection refused", "redis": "ping: i/o timeout"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New()
			h.AddLivenessCheck("goroutines", time.Second, GoroutineCountCheck(100000))
			h.AddReadinessCheck("postgres", time.Second, PingCheck(pingerFunc(func(context.Context) error { return tt.postgres })))
			h.AddReadinessCheck("redis", time.Second, PingCheck(pingerFunc(func(context.Context) error { return tt.redis })))
			h.SetReady(tt.ready)

			for range tt.runs {
				for _, c := range h.readinessChecks {
					c.run(context.Background())
				}
			}

			code, status, _ := get(h.LiveEndpoint, "/livez")
			assert.Equal(t, tt.liveCode, code)
			assert.Equal(t, "ok", status)

			code, status, checks := get(h.ReadyEndpoint, "/readyz")
			assert.Equal(t, tt.readyCode, code)
			if tt.readyCode == http.StatusOK {
				assert.Equal(t, "ok", status)
				return
			}
			assert.Equal(t, "unhealthy", status)
			assert.Equal(t, tt.readyCheck, checks)
		})
	}
}

func TestThresholds(t *testing.T) {
	for _, tt := range []struct {
		name      string
		opts      []Option
		toFail    int
		toRecover int
	}{
		{name: "defaults", toFail: 3, toRecover: 1},
		{name: "custom", opts: []Option{WithThresholds(1, 2)}, toFail: 1, toRecover: 2},
	} {
		t.Run(tt.name, func(t *testing.T) {
			var tg toggle
			h := New(tt.opts...)
			h.AddReadinessCheck("postgres", time.Second, tg.check)
			c := h.readinessChecks[0]
			ctx := context.Background()

			assert.Nil(t, c.getLastError())
			tg.set(errors.New("down"))
			for i := 1; i <= tt.toFail; i++ {
				assert.True(t, c.isHealthy(), "healthy before failure %d", i)
				c.run(ctx)
			}
			assert.False(t, c.isHealthy())
			assert.EqualError(t, c.getLastError(), "down")

			tg.set(nil)
			for i := 1; i <= tt.toRecover; i++ {
				assert.False(t, c.isHealthy(), "unhealthy before success %d", i)
				c.run(ctx)
			}
			assert.True(t, c.isHealthy())
		})
	}
}

func TestWithLogger_Transitions(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := New(WithLogger(zap.New(core)), WithThresholds(1, 1))

	var tg toggle
	tg.set(errors.New("i/o timeout"))
	h.AddReadinessCheck("redis", time.Second, tg.check)
	c := h.readinessChecks[0]
	ctx := context.Background()

	c.run(ctx)
	c.run(ctx) // already unhealthy, no second entry
	tg.set(nil)
	c.run(ctx)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "Check became unhealthy", entries[0].Message)
	assert.Equal(t, "redis", entries[0].ContextMap()["check"])
	assert.Equal(t, "Check recovered", entries[1].Message)
}

func TestReadyEndpoint_SortedBody(t *testing.T) {
	h := New(WithThresholds(1, 1))
	h.AddReadinessCheck("redis", time.Second, PingCheck(pingerFunc(func(context.Context) error { return errors.New("redis down") })))
	h.AddReadinessCheck("postgres", time.Second, PingCheck(pingerFunc(func(context.Context) error { return errors.New("pg down") })))
	for _, c := range h.readinessChecks {
		c.run(context.Background())
	}

	w := httptest.NewRecorder()
	h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t,
		`{"status":"unhealthy","checks":{"_readiness":"service is not ready","postgres":"ping: pg down","redis":"ping: redis down"}}`,
		w.Body.String(),
	)
}

func TestStartStop(t *testing.T) {
	var tg toggle
	tg.set(errors.New("down"))

	h := New(WithThresholds(1, 1))
	h.AddReadinessCheck("postgres", time.Second, tg.check)
	h.SetReady(true)
	h.Start(context.Background(), 5*time.Millisecond)

	require.Eventually(t, func() bool {
		code, _, _ := get(h.ReadyEndpoint, "/readyz")
		return code == http.StatusServiceUnavailable
	}, time.Second, 5*time.Millisecond)

	tg.set(nil)
	require.Eventually(t, func() bool {
		code, _, _ := get(h.ReadyEndpoint, "/readyz")
		return code == http.StatusOK
	}, time.Second, 5*time.Millisecond)

	h.Stop()
	h.Stop()
}

func TestRuntimeChecks(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))
	err := GoroutineCountCheck(0)(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds threshold")

	assert.NoError(t, GCMaxPauseCheck(time.Hour)(context.Background()))
}
