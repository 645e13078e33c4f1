// Package config resolves the layered configuration for a single invocation:
// command-line flags, the project file (aws_e2b.toml), the user file
// (~/.aws_e2b/config.toml), and the process environment. The result is a
// Config that is constructed once and never mutated afterwards.
package config

import (
	"fmt"
	"strings"
)

// Built-in defaults, applied when no higher-precedence tier sets a value.
const (
	DefaultMemoryMB     = 4096
	DefaultCPUCount     = 4
	DefaultBaseImageRef = "e2bdev/code-interpreter:latest"
	DefaultDomain       = "e2b.dev"
	DefaultRegion       = "us-east-1"
)

// CLIOverrides carries the command-line tier. A nil field means the flag was
// not supplied, which lets lower tiers apply.
type CLIOverrides struct {
	MemoryMB   *int
	CPUCount   *int
	StartCmd   *string
	ReadyCmd   *string
	Alias      *string
	TemplateID *string
	TeamID     *string
	Dockerfile *string
	ECRImage   *string
	BaseImage  *string
}

// Config is the fully resolved configuration for one invocation. Every field
// is populated after Resolve except TemplateID, APIKey, and TeamID, which
// stay empty when no tier provides them.
type Config struct {
	MemoryMB   int
	CPUCount   int
	StartCmd   string
	ReadyCmd   string
	Alias      string
	TemplateID string // empty means "create a new template"

	Source ImageSource

	AWSRegion   string
	Domain      string
	AccessToken string // Bearer-normalized, ready for the Authorization header
	APIKey      string // optional
	TeamID      string // optional
}

// Credentials is the short-lived view handed to the command forwarder for
// environment injection. It carries raw values, never the Bearer-normalized
// form, and is never persisted.
type Credentials struct {
	Domain      string
	AccessToken string
	APIKey      string
}

// Error reports a configuration problem. All configuration errors are fatal
// and are raised before any network or subprocess activity.
type Error struct {
	Field string
	Hint  string
}

func (e *Error) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("missing %s: %s", e.Field, e.Hint)
	}
	return fmt.Sprintf("missing %s", e.Field)
}

// Sources names the inputs Resolve merges.
type Sources struct {
	CLI CLIOverrides

	// ProjectPath is the explicit --config path. Empty means use
	// ./aws_e2b.toml when present. An explicit path that does not exist is
	// an error; an absent implicit file is not.
	ProjectPath string

	// UserPath overrides the user file location, used by tests. Empty means
	// ~/.aws_e2b/config.toml.
	UserPath string
}

// Resolve merges all four configuration tiers into a Config. Each field's
// precedence chain is evaluated independently; see the per-field helpers.
func Resolve(src Sources) (*Config, error) {
	project, projectDir, err := LoadProject(src.ProjectPath)
	if err != nil {
		return nil, err
	}

	user, err := loadUser(src.UserPath)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		MemoryMB:   resolveInt(src.CLI.MemoryMB, project.E2B.MemoryMB, DefaultMemoryMB),
		CPUCount:   resolveInt(src.CLI.CPUCount, project.E2B.CPUCount, DefaultCPUCount),
		StartCmd:   resolveString(src.CLI.StartCmd, project.E2B.StartCmd, ""),
		ReadyCmd:   resolveString(src.CLI.ReadyCmd, project.E2B.ReadyCmd, ""),
		Alias:      resolveString(src.CLI.Alias, project.E2B.Alias, ""),
		TemplateID: resolveString(src.CLI.TemplateID, project.E2B.templateID(), ""),

		AWSRegion: withDefault(user.Region, DefaultRegion),
		Domain:    withDefault(user.Domain, DefaultDomain),
		APIKey:    user.APIKey,
	}

	if src.CLI.TeamID != nil {
		cfg.TeamID = *src.CLI.TeamID
	} else {
		cfg.TeamID = user.TeamID
	}

	if user.AccessToken == "" {
		return nil, &Error{
			Field: "e2b access token",
			Hint:  "set E2B_ACCESS_TOKEN or configure [e2b].e2b_access_token in ~/.aws_e2b/config.toml",
		}
	}
	cfg.AccessToken = NormalizeBearer(user.AccessToken)

	source, err := resolveImageSource(src.CLI, project.Docker, projectDir)
	if err != nil {
		return nil, err
	}
	cfg.Source = source

	return cfg, nil
}

// APIConfig is the subset of configuration needed to talk to the remote API
// without running the build pipeline. It carries no image source, so project
// files with broken or conflicting build markers cannot affect it.
type APIConfig struct {
	Domain      string
	AccessToken string // Bearer-normalized
	APIKey      string
	TeamID      string
}

// ResolveAPI resolves only the user tier (env > user file > defaults). The
// access token is still mandatory.
func ResolveAPI(userPath string) (*APIConfig, error) {
	user, err := loadUser(userPath)
	if err != nil {
		return nil, err
	}

	if user.AccessToken == "" {
		return nil, &Error{
			Field: "e2b access token",
			Hint:  "set E2B_ACCESS_TOKEN or configure [e2b].e2b_access_token in ~/.aws_e2b/config.toml",
		}
	}

	return &APIConfig{
		Domain:      withDefault(user.Domain, DefaultDomain),
		AccessToken: NormalizeBearer(user.AccessToken),
		APIKey:      user.APIKey,
		TeamID:      user.TeamID,
	}, nil
}

// ResolveCredentials resolves only the subset of configuration needed for
// environment injection when forwarding to the companion CLI. Missing values
// stay empty rather than failing; the companion CLI reports its own
// credential errors.
func ResolveCredentials(userPath string) Credentials {
	user, err := loadUser(userPath)
	if err != nil {
		return Credentials{}
	}
	return Credentials{
		Domain:      user.Domain,
		AccessToken: user.AccessToken,
		APIKey:      user.APIKey,
	}
}

// NormalizeBearer adds a "Bearer " prefix to the access token unless one is
// already present (case-insensitive).
func NormalizeBearer(token string) string {
	trimmed := strings.TrimSpace(token)
	if len(trimmed) >= 7 && strings.EqualFold(trimmed[:7], "bearer ") {
		return trimmed
	}
	return "Bearer " + trimmed
}

func resolveInt(cli *int, project *int, def int) int {
	if cli != nil {
		return *cli
	}
	if project != nil {
		return *project
	}
	return def
}

func resolveString(cli *string, project *string, def string) string {
	if cli != nil {
		return *cli
	}
	if project != nil {
		return *project
	}
	return def
}

func withDefault(value, def string) string {
	if value != "" {
		return value
	}
	return def
}
