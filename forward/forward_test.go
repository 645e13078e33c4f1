package forward

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awse2b/awse2b/config"
	"github.com/awse2b/awse2b/runner"
)

func TestRoute(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want Decision
	}{
		{"template build is native", []string{"template", "build"}, Native},
		{"template build with flags is native", []string{"template", "build", "--alias", "x"}, Native},
		{"template list is native", []string{"template", "list"}, Native},
		{"template delete is forwarded", []string{"template", "delete", "t-1"}, Forwarded},
		{"bare template is forwarded", []string{"template"}, Forwarded},
		{"sandbox commands are forwarded", []string{"sandbox", "list"}, Forwarded},
		{"auth is rejected", []string{"auth", "login"}, RejectedAuth},
		{"bare auth is rejected", []string{"auth"}, RejectedAuth},
		{"template auth is rejected", []string{"template", "auth", "login"}, RejectedAuth},
		{"bare template auth is rejected", []string{"template", "auth"}, RejectedAuth},
		{"no arguments are forwarded", nil, Forwarded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Route(tt.args))
		})
	}
}

func TestForwardRunsCompanionWithCredentials(t *testing.T) {
	rec := runner.NewRecorder()
	f := NewForwarder(rec, config.Credentials{
		Domain:      "custom.example.com",
		AccessToken: "tok123",
		APIKey:      "key456",
	})

	err := f.Forward(context.Background(), []string{"sandbox", "list"})
	require.NoError(t, err)

	calls := rec.Calls("e2b", "sandbox")
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"sandbox", "list"}, calls[0].Args)
	assert.Equal(t, map[string]string{
		"E2B_DOMAIN":       "custom.example.com",
		"E2B_ACCESS_TOKEN": "tok123",
		"E2B_API_KEY":      "key456",
	}, calls[0].Env)
}

func TestForwardOmitsEmptyCredentials(t *testing.T) {
	rec := runner.NewRecorder()
	f := NewForwarder(rec, config.Credentials{AccessToken: "tok123"})

	err := f.Forward(context.Background(), []string{"sandbox", "list"})
	require.NoError(t, err)

	calls := rec.Calls("e2b", "sandbox")
	require.Len(t, calls, 1)
	assert.Equal(t, map[string]string{"E2B_ACCESS_TOKEN": "tok123"}, calls[0].Env)
}

func TestForwardFailsWhenCompanionIsMissing(t *testing.T) {
	rec := runner.NewRecorder()
	rec.Missing["e2b"] = true
	f := NewForwarder(rec, config.Credentials{})

	err := f.Forward(context.Background(), []string{"sandbox", "list"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "npm install -g @e2b/cli")
	assert.Empty(t, rec.Commands, "nothing runs when the binary is missing")
}

func TestForwardPropagatesExitCode(t *testing.T) {
	rec := runner.NewRecorder()
	rec.Script("e2b", "sandbox", &runner.CommandError{Name: "e2b", ExitCode: 3})
	f := NewForwarder(rec, config.Credentials{})

	err := f.Forward(context.Background(), []string{"sandbox", "list"})
	require.Error(t, err)
	assert.Equal(t, 3, runner.ExitCode(err))
}
