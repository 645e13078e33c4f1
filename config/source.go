package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ImageSource is a closed set of image-acquisition strategies. Exactly one
// variant is selected per invocation; consumers must type-switch over all
// three and treat anything else as a programming error.
type ImageSource interface {
	imageSource()

	// Describe returns a short human-readable form for logs.
	Describe() string
}

// DockerfileBuild builds a local Dockerfile. Dir is the Dockerfile's own
// directory and is the working directory for the build, so relative COPY
// paths inside the Dockerfile resolve correctly.
type DockerfileBuild struct {
	Path string
	Dir  string
}

// ExistingECRImage is a fully qualified registry reference that is passed
// through to the remote API without a push.
type ExistingECRImage struct {
	Reference string
}

// DefaultBaseImage is the fallback public image used when no source marker
// is configured.
type DefaultBaseImage struct {
	Reference string
}

func (DockerfileBuild) imageSource()  {}
func (ExistingECRImage) imageSource() {}
func (DefaultBaseImage) imageSource() {}

func (s DockerfileBuild) Describe() string  { return "local build from Dockerfile " + s.Path }
func (s ExistingECRImage) Describe() string { return "existing ECR image " + s.Reference }
func (s DefaultBaseImage) Describe() string { return "base image " + s.Reference }

// Mutual-exclusivity and absence errors for image-source resolution.
var (
	ErrAmbiguousImageSource = errors.New("ambiguous image source: dockerfile, ecr-image, and base-image are mutually exclusive")
	ErrNoImageSource        = errors.New("no image source configured and no default base image available")
)

// resolveImageSource merges the CLI and project tiers per marker, then
// requires that at most one marker is set. Zero markers fall back to the
// built-in default base image.
func resolveImageSource(cli CLIOverrides, docker DockerSection, projectDir string) (ImageSource, error) {
	dockerfile := mergeMarker(cli.Dockerfile, docker.Dockerfile)
	ecrImage := mergeMarker(cli.ECRImage, docker.ecrImage())
	baseImage := mergeMarker(cli.BaseImage, docker.baseImage())

	// Dockerfile paths from the project file are relative to the project
	// file's directory; CLI paths are relative to the caller's directory.
	if cli.Dockerfile == nil && dockerfile != "" && !filepath.IsAbs(dockerfile) && projectDir != "" {
		dockerfile = filepath.Join(projectDir, dockerfile)
	}

	set := 0
	for _, marker := range []string{dockerfile, ecrImage, baseImage} {
		if marker != "" {
			set++
		}
	}
	if set > 1 {
		return nil, ErrAmbiguousImageSource
	}

	switch {
	case dockerfile != "":
		// The build runs with the Dockerfile's directory as its working
		// directory, so the -f path must be absolute or docker would
		// resolve a relative path against that directory a second time.
		abs, err := filepath.Abs(dockerfile)
		if err != nil {
			return nil, fmt.Errorf("cannot resolve dockerfile path %s: %w", dockerfile, err)
		}
		if _, err := os.Stat(abs); err != nil {
			return nil, fmt.Errorf("dockerfile not found: %s", dockerfile)
		}
		return DockerfileBuild{Path: abs, Dir: filepath.Dir(abs)}, nil
	case ecrImage != "":
		return ExistingECRImage{Reference: ecrImage}, nil
	case baseImage != "":
		return DefaultBaseImage{Reference: baseImage}, nil
	default:
		return DefaultBaseImage{Reference: DefaultBaseImageRef}, nil
	}
}

func mergeMarker(cli *string, project *string) string {
	if cli != nil {
		return *cli
	}
	if project != nil {
		return *project
	}
	return ""
}
