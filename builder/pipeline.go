// Package builder orchestrates the end-to-end template build: resolve the
// image source, publish it to ECR, submit the remote build, and wait for a
// terminal status. Each stage is fatal on error and failures carry the stage
// name.
package builder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/awse2b/awse2b/awsecr"
	"github.com/awse2b/awse2b/config"
	"github.com/awse2b/awse2b/docker"
	"github.com/awse2b/awse2b/e2b"
	"github.com/awse2b/awse2b/errors"
	"github.com/awse2b/awse2b/logging"
)

// repositoryPrefix is the ECR repository namespace for template base images.
const repositoryPrefix = "e2bdev/base/"

// RegistryService is the ECR surface the pipeline needs.
type RegistryService interface {
	AccountID(ctx context.Context) (string, error)
	Authorize(ctx context.Context) (*awsecr.RegistryAuth, error)
	EnsureRepository(ctx context.Context, name string) error
}

// ImageEngine materializes an image locally, either by building a Dockerfile
// or by pulling a public base image.
type ImageEngine interface {
	Build(ctx context.Context, dockerfilePath, contextDir, tag string) error
	Pull(ctx context.Context, image string) error
}

// ImagePublisher turns a local image into a registry reference the remote
// API can pull.
type ImagePublisher interface {
	Publish(ctx context.Context, source config.ImageSource, localRef, target string, auth *awsecr.RegistryAuth) (string, error)
}

// BuildAPI is the remote template-build surface the pipeline drives.
type BuildAPI interface {
	SubmitBuild(ctx context.Context, req e2b.BuildRequest) (*e2b.BuildHandle, error)
	WaitForBuild(ctx context.Context, templateID, buildID string, cfg e2b.PollConfig) (e2b.BuildStatus, error)
}

// Result is the outcome of a successful pipeline run.
type Result struct {
	TemplateID  string
	BuildID     string
	RegistryRef string
	Status      e2b.BuildStatus
}

// Pipeline wires the build stages together. Construct with NewPipeline for
// production defaults; tests set the fields directly.
type Pipeline struct {
	Registry  RegistryService
	Engine    ImageEngine
	Publisher ImagePublisher
	API       BuildAPI
	Poll      e2b.PollConfig

	// newLocalTag and newPushTag make image tags; overridable for tests.
	newLocalTag func() string
	newPushTag  func() string
}

// NewPipeline assembles a production pipeline.
func NewPipeline(registry RegistryService, engine ImageEngine, publisher ImagePublisher, api BuildAPI) *Pipeline {
	return &Pipeline{
		Registry:  registry,
		Engine:    engine,
		Publisher: publisher,
		API:       api,
		Poll:      e2b.DefaultPollConfig(),
	}
}

// Run executes the full pipeline for one invocation.
func (p *Pipeline) Run(ctx context.Context, cfg *config.Config) (*Result, error) {
	logging.Info("Image source: %s", cfg.Source.Describe())

	registryRef, err := p.publishStage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	handle, err := p.API.SubmitBuild(ctx, e2b.BuildRequest{
		RegistryRef: registryRef,
		MemoryMB:    cfg.MemoryMB,
		CPUCount:    cfg.CPUCount,
		StartCmd:    cfg.StartCmd,
		ReadyCmd:    cfg.ReadyCmd,
		Alias:       cfg.Alias,
		TemplateID:  cfg.TemplateID,
	})
	if err != nil {
		return nil, errors.AtStage("submit build", err)
	}
	logging.Info("Build accepted: template %s build %s", handle.TemplateID, handle.BuildID)

	status, err := p.API.WaitForBuild(ctx, handle.TemplateID, handle.BuildID, p.Poll)
	if err != nil {
		return nil, errors.AtStage("wait for build", err)
	}

	return &Result{
		TemplateID:  handle.TemplateID,
		BuildID:     handle.BuildID,
		RegistryRef: registryRef,
		Status:      status,
	}, nil
}

// publishStage turns the configured image source into a registry reference.
// An existing ECR image skips AWS calls and local image work entirely.
func (p *Pipeline) publishStage(ctx context.Context, cfg *config.Config) (string, error) {
	if existing, ok := cfg.Source.(config.ExistingECRImage); ok {
		ref, err := p.Publisher.Publish(ctx, existing, "", "", nil)
		if err != nil {
			return "", errors.AtStage("publish image", err)
		}
		return ref, nil
	}

	account, err := p.Registry.AccountID(ctx)
	if err != nil {
		return "", errors.AtStage("authenticate with AWS", err)
	}
	logging.Info("Using AWS account %s in %s", account, cfg.AWSRegion)

	auth, err := p.Registry.Authorize(ctx)
	if err != nil {
		return "", errors.AtStage("authenticate with AWS", err)
	}

	repo := repositoryName(cfg)
	if err := p.Registry.EnsureRepository(ctx, repo); err != nil {
		return "", errors.AtStage("prepare ECR repository", err)
	}

	localRef, err := p.materialize(ctx, cfg.Source)
	if err != nil {
		return "", errors.AtStage("materialize image", err)
	}

	target := fmt.Sprintf("%s/%s:%s", auth.Server, repo, p.pushTag())
	ref, err := p.Publisher.Publish(ctx, cfg.Source, localRef, target, auth)
	if err != nil {
		return "", errors.AtStage("publish image", err)
	}
	return ref, nil
}

// materialize gets the image onto the local daemon and returns the reference
// the publisher should tag from.
func (p *Pipeline) materialize(ctx context.Context, source config.ImageSource) (string, error) {
	switch s := source.(type) {
	case config.DockerfileBuild:
		tag := p.localTag()
		logging.Info("Building %s as %s", s.Path, tag)
		if err := p.Engine.Build(ctx, s.Path, s.Dir, tag); err != nil {
			return "", err
		}
		return tag, nil
	case config.DefaultBaseImage:
		logging.Info("Pulling base image %s", s.Reference)
		if err := p.Engine.Pull(ctx, s.Reference); err != nil {
			return "", err
		}
		return s.Reference, nil
	default:
		return "", fmt.Errorf("unexpected image source %T", source)
	}
}

// repositoryName derives the ECR repository from the template identity:
// the template ID when updating, the alias when creating a named template,
// and "default" otherwise.
func repositoryName(cfg *config.Config) string {
	switch {
	case cfg.TemplateID != "":
		return repositoryPrefix + sanitizeRepoComponent(cfg.TemplateID)
	case cfg.Alias != "":
		return repositoryPrefix + sanitizeRepoComponent(cfg.Alias)
	default:
		return repositoryPrefix + "default"
	}
}

// sanitizeRepoComponent lowercases the value and replaces characters ECR
// repository names do not allow.
func sanitizeRepoComponent(s string) string {
	s = strings.ToLower(s)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '-'
		}
	}, s)
}

func (p *Pipeline) localTag() string {
	if p.newLocalTag != nil {
		return p.newLocalTag()
	}
	return docker.LocalBuildTag()
}

// pushTag returns a collision-resistant tag for the pushed image. The remote
// build identifier is not known before submission, so the tag is minted
// locally.
func (p *Pipeline) pushTag() string {
	if p.newPushTag != nil {
		return p.newPushTag()
	}
	return fmt.Sprintf("%d-%s", time.Now().Unix(), uuid.NewString()[:8])
}
