package docker

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awse2b/awse2b/runner"
)

func TestBuildPinsPlatformAndDirectory(t *testing.T) {
	rec := runner.NewRecorder()
	e := NewEngine(rec)

	err := e.Build(context.Background(), "/proj/sub/Dockerfile", "/proj/sub", "tmp:1")
	require.NoError(t, err)

	calls := rec.Calls("docker", "build")
	require.Len(t, calls, 1)
	cmd := calls[0]

	assert.Equal(t, "/proj/sub", cmd.Dir)
	assert.Contains(t, cmd.Args, "--platform")
	assert.Contains(t, cmd.Args, "linux/amd64")
	assert.Contains(t, cmd.Args, "/proj/sub/Dockerfile")
	assert.Equal(t, ".", cmd.Args[len(cmd.Args)-1])
}

func TestLoginSendsPasswordViaStdin(t *testing.T) {
	rec := runner.NewRecorder()
	e := NewEngine(rec)

	err := e.Login(context.Background(), "123.dkr.ecr.us-east-1.amazonaws.com", "AWS", "s3cr3t")
	require.NoError(t, err)

	calls := rec.Calls("docker", "login")
	require.Len(t, calls, 1)
	cmd := calls[0]

	assert.Equal(t, "s3cr3t", cmd.Stdin)
	assert.Contains(t, cmd.Args, "--password-stdin")
	assert.NotContains(t, strings.Join(cmd.Args, " "), "s3cr3t")
}

func TestPullAndTagAndPush(t *testing.T) {
	rec := runner.NewRecorder()
	e := NewEngine(rec)
	ctx := context.Background()

	require.NoError(t, e.Pull(ctx, "e2bdev/code-interpreter:latest"))
	require.NoError(t, e.Tag(ctx, "local:1", "remote/repo:1"))
	require.NoError(t, e.Push(ctx, "remote/repo:1"))

	assert.Len(t, rec.Calls("docker", "pull"), 1)
	assert.Len(t, rec.Calls("docker", "tag"), 1)
	assert.Len(t, rec.Calls("docker", "push"), 1)

	tag := rec.Calls("docker", "tag")[0]
	assert.Equal(t, []string{"tag", "local:1", "remote/repo:1"}, tag.Args)
}

func TestLocalBuildTagIsUnique(t *testing.T) {
	a := LocalBuildTag()
	b := LocalBuildTag()

	assert.True(t, strings.HasPrefix(a, "aws-e2b-temp:"))
	assert.NotEqual(t, a, b)
}
