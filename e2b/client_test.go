package e2b

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitBuildCreatesNewTemplate(t *testing.T) {
	var gotPath, gotAuth string
	var gotPayload map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		_ = json.NewEncoder(w).Encode(map[string]string{"buildID": "b-1", "templateID": "t-1"})
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(srv.URL, "Bearer tok")
	handle, err := c.SubmitBuild(context.Background(), BuildRequest{
		RegistryRef: "123.dkr.ecr.us-east-1.amazonaws.com/e2bdev/base/x:b-1",
		MemoryMB:    4096,
		CPUCount:    4,
		Alias:       "my-template",
	})
	require.NoError(t, err)

	assert.Equal(t, "/templates", gotPath)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "b-1", handle.BuildID)
	assert.Equal(t, "t-1", handle.TemplateID)
	assert.Equal(t, "123.dkr.ecr.us-east-1.amazonaws.com/e2bdev/base/x:b-1", gotPayload["fromImage"])
	assert.EqualValues(t, 4096, gotPayload["memoryMb"])
	assert.Equal(t, "my-template", gotPayload["alias"])
	_, hasStartCmd := gotPayload["startCmd"]
	assert.False(t, hasStartCmd, "empty optional fields should be omitted")
}

func TestSubmitBuildUpdatesExistingTemplate(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(map[string]string{"buildID": "b-2", "templateID": "t-9"})
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(srv.URL, "Bearer tok")
	handle, err := c.SubmitBuild(context.Background(), BuildRequest{TemplateID: "t-9", RegistryRef: "ref"})
	require.NoError(t, err)

	assert.Equal(t, "/templates/t-9", gotPath)
	assert.Equal(t, "t-9", handle.TemplateID)
}

func TestSubmitBuildHTTPErrorIsFatalWithoutRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "team quota exceeded", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(srv.URL, "Bearer tok")
	_, err := c.SubmitBuild(context.Background(), BuildRequest{RegistryRef: "ref"})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "team quota exceeded")
	assert.EqualValues(t, 1, calls.Load())
}

func TestSubmitBuildRetriesTransportErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			// Drop the connection to force a transport error.
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"buildID": "b-3", "templateID": "t-3"})
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(srv.URL, "Bearer tok")
	handle, err := c.SubmitBuild(context.Background(), BuildRequest{RegistryRef: "ref"})
	require.NoError(t, err)

	assert.Equal(t, "b-3", handle.BuildID)
	assert.EqualValues(t, 2, calls.Load())
}

func TestSubmitBuildRejectsResponseWithoutBuildID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"templateID": "t-1"})
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(srv.URL, "Bearer tok")
	_, err := c.SubmitBuild(context.Background(), BuildRequest{RegistryRef: "ref"})
	assert.ErrorContains(t, err, "no build identifier")
}

func TestGetBuildStatus(t *testing.T) {
	tests := []struct {
		name       string
		response   string
		wantState  State
		wantReason string
		wantErr    bool
	}{
		{"waiting maps to pending", `{"status":"waiting"}`, StatePending, "", false},
		{"building maps to in progress", `{"status":"building"}`, StateInProgress, "", false},
		{"ready", `{"status":"ready"}`, StateReady, "", false},
		{"error carries reason", `{"status":"error","reason":"base image rejected"}`, StateFailed, "base image rejected", false},
		{"failed falls back to message", `{"status":"failed","message":"oom"}`, StateFailed, "oom", false},
		{"unknown status is an error", `{"status":"sideways"}`, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/templates/t-1/builds/b-1/status", r.URL.Path)
				_, _ = w.Write([]byte(tt.response))
			}))
			defer srv.Close()

			c := NewClientWithBaseURL(srv.URL, "Bearer tok")
			status, err := c.GetBuildStatus(context.Background(), "t-1", "b-1")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantState, status.State)
			assert.Equal(t, tt.wantReason, status.Reason)
		})
	}
}

func TestListTemplates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/templates", r.URL.Path)
		assert.Equal(t, "team-7", r.URL.Query().Get("teamID"))
		_, _ = w.Write([]byte(`[{"templateID":"t-1","aliases":["base"],"cpuCount":4,"memoryMB":4096}]`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(srv.URL, "Bearer tok")
	templates, err := c.ListTemplates(context.Background(), "team-7")
	require.NoError(t, err)

	require.Len(t, templates, 1)
	assert.Equal(t, "t-1", templates[0].TemplateID)
	assert.Equal(t, []string{"base"}, templates[0].Aliases)
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, BuildStatus{State: StatePending}.Terminal())
	assert.False(t, BuildStatus{State: StateInProgress}.Terminal())
	assert.True(t, BuildStatus{State: StateReady}.Terminal())
	assert.True(t, BuildStatus{State: StateFailed}.Terminal())
	assert.True(t, BuildStatus{State: StateTimedOut}.Terminal())
}
