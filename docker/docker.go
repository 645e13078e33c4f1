// Package docker drives the docker CLI as the external build engine. All
// invocations go through a runner.Runner so orchestration code can be tested
// without a docker daemon.
package docker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/awse2b/awse2b/errors"
	"github.com/awse2b/awse2b/runner"
)

// buildPlatform pins builds to x86-64; the hosting environment does not run
// ARM images regardless of the host architecture.
const buildPlatform = "linux/amd64"

// localTagPrefix names the throwaway local tag applied before pushing.
const localTagPrefix = "aws-e2b-temp"

// Engine wraps the docker CLI.
type Engine struct {
	Runner runner.Runner
}

// NewEngine returns an Engine using the given runner.
func NewEngine(r runner.Runner) *Engine {
	return &Engine{Runner: r}
}

// LocalBuildTag returns a collision-resistant tag for a locally built image.
func LocalBuildTag() string {
	return fmt.Sprintf("%s:%d-%s", localTagPrefix, time.Now().Unix(), uuid.NewString()[:8])
}

// Build builds a Dockerfile into the given tag. The build context is the
// Dockerfile's own directory so relative COPY paths resolve correctly, and
// the platform is fixed to linux/amd64.
func (e *Engine) Build(ctx context.Context, dockerfilePath, contextDir, tag string) error {
	err := e.Runner.Run(ctx, runner.Command{
		Name: "docker",
		Args: []string{
			"build",
			"--platform", buildPlatform,
			"-t", tag,
			"-f", dockerfilePath,
			".",
		},
		Dir: contextDir,
	})
	return errors.Wrap("build image", dockerfilePath, err)
}

// Pull pulls an image.
func (e *Engine) Pull(ctx context.Context, image string) error {
	err := e.Runner.Run(ctx, runner.Command{
		Name: "docker",
		Args: []string{"pull", "--platform", buildPlatform, image},
	})
	return errors.Wrap("pull image", image, err)
}

// Tag applies target as an additional tag of source.
func (e *Engine) Tag(ctx context.Context, source, target string) error {
	err := e.Runner.Run(ctx, runner.Command{
		Name: "docker",
		Args: []string{"tag", source, target},
	})
	return errors.Wrap("tag image", target, err)
}

// Login authenticates the docker CLI against a registry. The password goes
// through stdin, never through the argument list.
func (e *Engine) Login(ctx context.Context, server, username, password string) error {
	err := e.Runner.Run(ctx, runner.Command{
		Name:  "docker",
		Args:  []string{"login", server, "-u", username, "--password-stdin"},
		Stdin: password,
	})
	return errors.Wrap("log in to registry", server, err)
}

// Push pushes an image reference to its registry.
func (e *Engine) Push(ctx context.Context, ref string) error {
	return e.Runner.Run(ctx, runner.Command{
		Name: "docker",
		Args: []string{"push", ref},
	})
}
