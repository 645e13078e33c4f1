package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/awse2b/awse2b/awsecr"
	"github.com/awse2b/awse2b/builder"
	"github.com/awse2b/awse2b/config"
	"github.com/awse2b/awse2b/docker"
	"github.com/awse2b/awse2b/e2b"
	"github.com/awse2b/awse2b/logging"
	"github.com/awse2b/awse2b/registry"
	"github.com/awse2b/awse2b/runner"
)

// Build command options. Values are only consulted when their flag was set,
// so unset flags let the project file and defaults apply.
type buildOptions struct {
	configFile string
	memoryMB   int
	cpuCount   int
	startCmd   string
	readyCmd   string
	alias      string
	templateID string
	team       string
	dockerfile string
	ecrImage   string
	baseImage  string
}

var buildOpts = &buildOptions{}

var templateBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a template from a Dockerfile, base image, or existing ECR image",
	Long: `Build an e2b template. The image source is, in order of preference:
a Dockerfile, an existing ECR image reference, or a public base image.
Exactly one source may be configured; with none the default base image
(` + config.DefaultBaseImageRef + `) is used.

Examples:
  # Build from the project's Dockerfile
  awse2b template build --dockerfile ./Dockerfile --alias my-template

  # Reuse an image already in ECR
  awse2b template build --ecr-image 123456789012.dkr.ecr.us-east-1.amazonaws.com/app:v1

  # Update an existing template from a public base image
  awse2b template build --template-id abc123 --base-image python:3.12-slim`,
	RunE: runTemplateBuild,
}

func init() {
	f := templateBuildCmd.Flags()
	f.StringVarP(&buildOpts.configFile, "config", "c", "", "Project configuration file (default ./aws_e2b.toml)")
	f.IntVar(&buildOpts.memoryMB, "memory-mb", 0, "Template memory in MiB")
	f.IntVar(&buildOpts.cpuCount, "cpu-count", 0, "Template CPU count")
	f.StringVar(&buildOpts.startCmd, "start-cmd", "", "Command run when the sandbox starts")
	f.StringVar(&buildOpts.readyCmd, "ready-cmd", "", "Command that signals the sandbox is ready")
	f.StringVar(&buildOpts.alias, "alias", "", "Template alias")
	f.StringVar(&buildOpts.templateID, "template-id", "", "Existing template to update")
	f.StringVar(&buildOpts.team, "team", "", "Team the template belongs to")
	f.StringVarP(&buildOpts.dockerfile, "dockerfile", "f", "", "Dockerfile to build")
	f.StringVar(&buildOpts.ecrImage, "ecr-image", "", "Existing ECR image reference (skips the push)")
	f.StringVar(&buildOpts.baseImage, "base-image", "", "Public base image to pull and push")
}

func runTemplateBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Resolve(config.Sources{
		CLI:         buildOpts.overrides(cmd),
		ProjectPath: buildOpts.configFile,
	})
	if err != nil {
		return err
	}

	exec := runner.NewExecRunner()
	engine := docker.NewEngine(exec)

	// An existing ECR image never touches AWS, so the clients are only
	// constructed when a push will happen.
	var registrySvc builder.RegistryService
	if _, ok := cfg.Source.(config.ExistingECRImage); !ok {
		clients, err := awsecr.NewClients(ctx, cfg.AWSRegion)
		if err != nil {
			return err
		}
		registrySvc = clients
	}

	pipeline := builder.NewPipeline(
		registrySvc,
		engine,
		registry.NewPublisher(engine),
		e2b.NewClient(cfg.Domain, cfg.AccessToken),
	)

	result, err := pipeline.Run(ctx, cfg)
	if err != nil {
		return err
	}

	logging.Info("Template %s is ready (build %s)", result.TemplateID, result.BuildID)
	logging.Output(fmt.Sprintf("templateID: %s", result.TemplateID))
	return nil
}

// overrides converts the flags that were actually set into CLI overrides.
func (o *buildOptions) overrides(cmd *cobra.Command) config.CLIOverrides {
	var cli config.CLIOverrides
	flags := cmd.Flags()

	if flags.Changed("memory-mb") {
		cli.MemoryMB = &o.memoryMB
	}
	if flags.Changed("cpu-count") {
		cli.CPUCount = &o.cpuCount
	}
	if flags.Changed("start-cmd") {
		cli.StartCmd = &o.startCmd
	}
	if flags.Changed("ready-cmd") {
		cli.ReadyCmd = &o.readyCmd
	}
	if flags.Changed("alias") {
		cli.Alias = &o.alias
	}
	if flags.Changed("template-id") {
		cli.TemplateID = &o.templateID
	}
	if flags.Changed("team") {
		cli.TeamID = &o.team
	}
	if flags.Changed("dockerfile") {
		cli.Dockerfile = &o.dockerfile
	}
	if flags.Changed("ecr-image") {
		cli.ECRImage = &o.ecrImage
	}
	if flags.Changed("base-image") {
		cli.BaseImage = &o.baseImage
	}
	return cli
}
