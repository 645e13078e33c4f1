package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/awse2b/awse2b/errors"
)

// projectFileName is the implicit project file looked up in the working
// directory when --config is not given.
const projectFileName = "aws_e2b.toml"

// ProjectFile is the parsed aws_e2b.toml. All fields are optional; nil means
// the key was not present and a lower tier applies.
type ProjectFile struct {
	E2B    E2BSection    `toml:"e2b"`
	Docker DockerSection `toml:"docker"`
}

// E2BSection holds template parameters from the [e2b] section.
type E2BSection struct {
	MemoryMB   *int    `toml:"memory_mb"`
	CPUCount   *int    `toml:"cpu_count"`
	StartCmd   *string `toml:"start_cmd"`
	ReadyCmd   *string `toml:"ready_cmd"`
	Alias      *string `toml:"alias"`
	TemplateID *string `toml:"template_id"`

	// Accepted alias spelling.
	TemplateIDAlt *string `toml:"templateID"`
}

func (s E2BSection) templateID() *string {
	if s.TemplateID != nil {
		return s.TemplateID
	}
	return s.TemplateIDAlt
}

// DockerSection holds the image-source markers from the [docker] section.
// Each marker accepts the spellings the file format has historically allowed.
type DockerSection struct {
	Dockerfile *string `toml:"dockerfile"`

	ECRImage    *string `toml:"ecr-image"`
	ECRImageAlt *string `toml:"ecr_image"`

	DockerImage    *string `toml:"dockerimage"`
	DockerImageAlt *string `toml:"docker_image"`
	Image          *string `toml:"image"`
}

func (s DockerSection) ecrImage() *string {
	if s.ECRImage != nil {
		return s.ECRImage
	}
	return s.ECRImageAlt
}

func (s DockerSection) baseImage() *string {
	if s.DockerImage != nil {
		return s.DockerImage
	}
	if s.DockerImageAlt != nil {
		return s.DockerImageAlt
	}
	return s.Image
}

// LoadProject reads the project file. With an explicit path the file must
// exist; with the implicit ./aws_e2b.toml an absent file yields an empty
// ProjectFile. The second return value is the directory of the file, used to
// resolve relative Dockerfile paths.
func LoadProject(path string) (*ProjectFile, string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, "", fmt.Errorf("specified configuration file does not exist: %s", path)
		}
		pf, err := parseProjectFile(path)
		return pf, filepath.Dir(path), err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, "", errors.Wrap("determine working directory", "", err)
	}
	implicit := filepath.Join(cwd, projectFileName)
	if _, err := os.Stat(implicit); err != nil {
		return &ProjectFile{}, "", nil
	}
	pf, err := parseProjectFile(implicit)
	return pf, cwd, err
}

func parseProjectFile(path string) (*ProjectFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap("read project file", path, err)
	}
	var pf ProjectFile
	if err := toml.Unmarshal(raw, &pf); err != nil {
		return nil, errors.Wrap("parse project file", path, err)
	}
	return &pf, nil
}
