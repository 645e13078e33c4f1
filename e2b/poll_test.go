package e2b

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPollConfig() PollConfig {
	return PollConfig{
		Interval:               time.Millisecond,
		Budget:                 time.Second,
		MaxConsecutiveFailures: 5,
	}
}

// statusScript serves one canned response per poll, repeating the last one
// once the script is exhausted.
func statusScript(responses ...string) *httptest.Server {
	var calls atomic.Int32
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		i := int(calls.Add(1)) - 1
		if i >= len(responses) {
			i = len(responses) - 1
		}
		_, _ = w.Write([]byte(responses[i]))
	}))
}

func TestWaitForBuildReachesReady(t *testing.T) {
	srv := statusScript(
		`{"status":"waiting"}`,
		`{"status":"building"}`,
		`{"status":"building"}`,
		`{"status":"ready"}`,
	)
	defer srv.Close()

	c := NewClientWithBaseURL(srv.URL, "Bearer tok")
	status, err := c.WaitForBuild(context.Background(), "t-1", "b-1", fastPollConfig())
	require.NoError(t, err)
	assert.Equal(t, StateReady, status.State)
}

func TestWaitForBuildSurfacesFailureReasonVerbatim(t *testing.T) {
	srv := statusScript(
		`{"status":"building"}`,
		`{"status":"error","reason":"start command exited with code 127"}`,
	)
	defer srv.Close()

	c := NewClientWithBaseURL(srv.URL, "Bearer tok")
	status, err := c.WaitForBuild(context.Background(), "t-1", "b-1", fastPollConfig())
	require.Error(t, err)

	var failed *BuildFailedError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, "start command exited with code 127", failed.Reason)
	assert.Equal(t, StateFailed, status.State)
	assert.Equal(t, "start command exited with code 127", status.Reason)
}

func TestWaitForBuildBudgetExhaustionIsTimedOutNotFailed(t *testing.T) {
	srv := statusScript(`{"status":"building"}`)
	defer srv.Close()

	cfg := fastPollConfig()
	cfg.Budget = 20 * time.Millisecond

	c := NewClientWithBaseURL(srv.URL, "Bearer tok")
	status, err := c.WaitForBuild(context.Background(), "t-1", "b-1", cfg)
	require.Error(t, err)

	var timeout *TimeoutError
	require.True(t, errors.As(err, &timeout))
	assert.Equal(t, cfg.Budget, timeout.Budget)
	assert.Equal(t, StateTimedOut, status.State)
	assert.NotEqual(t, StateFailed, status.State)
}

func TestWaitForBuildToleratesIntermittentPollFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1, 3:
			http.Error(w, "bad gateway", http.StatusBadGateway)
		case 2:
			_, _ = w.Write([]byte(`{"status":"building"}`))
		default:
			_, _ = w.Write([]byte(`{"status":"ready"}`))
		}
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(srv.URL, "Bearer tok")
	status, err := c.WaitForBuild(context.Background(), "t-1", "b-1", fastPollConfig())
	require.NoError(t, err)
	assert.Equal(t, StateReady, status.State)
}

func TestWaitForBuildFailsAfterConsecutivePollFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := fastPollConfig()
	cfg.MaxConsecutiveFailures = 3

	c := NewClientWithBaseURL(srv.URL, "Bearer tok")
	_, err := c.WaitForBuild(context.Background(), "t-1", "b-1", cfg)
	require.Error(t, err)
	assert.ErrorContains(t, err, "3 times in a row")
}

func TestWaitForBuildHonorsCancellation(t *testing.T) {
	srv := statusScript(`{"status":"building"}`)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	c := NewClientWithBaseURL(srv.URL, "Bearer tok")
	_, err := c.WaitForBuild(ctx, "t-1", "b-1", fastPollConfig())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDefaultPollConfig(t *testing.T) {
	cfg := DefaultPollConfig()
	assert.Equal(t, 10*time.Second, cfg.Interval)
	assert.Equal(t, 30*time.Minute, cfg.Budget)
	assert.Equal(t, 5, cfg.MaxConsecutiveFailures)
}
