// Package forward routes command-line invocations: the template build and
// list commands are handled natively, the auth command is rejected, and
// everything else is delegated to the companion e2b CLI with credentials
// injected through the environment.
package forward

import (
	"context"
	"fmt"

	"github.com/awse2b/awse2b/config"
	"github.com/awse2b/awse2b/logging"
	"github.com/awse2b/awse2b/runner"
)

// companionBinary is the delegated CLI.
const companionBinary = "e2b"

// installHint tells the user how to get the companion CLI.
const installHint = "install it with: npm install -g @e2b/cli"

// Decision says how an invocation should be handled.
type Decision int

const (
	// Native invocations are implemented by this binary.
	Native Decision = iota

	// Forwarded invocations are delegated to the companion CLI.
	Forwarded

	// RejectedAuth marks the auth command, which must not run against the
	// companion CLI because its login flow bypasses this tool's credential
	// configuration.
	RejectedAuth
)

// Route classifies an argument vector (without the program name).
func Route(args []string) Decision {
	if len(args) == 0 {
		return Forwarded
	}
	switch args[0] {
	case "auth":
		return RejectedAuth
	case "template":
		if len(args) < 2 {
			return Forwarded
		}
		switch args[1] {
		case "build", "list":
			return Native
		case "auth":
			return RejectedAuth
		}
	}
	return Forwarded
}

// ErrAuthNotSupported is returned for the auth command.
var ErrAuthNotSupported = fmt.Errorf(
	"the auth command is not supported; configure credentials via E2B_ACCESS_TOKEN or ~/.aws_e2b/config.toml")

// Forwarder delegates invocations to the companion CLI.
type Forwarder struct {
	Runner runner.Runner

	// Credentials are injected into the subprocess environment. Variables
	// already set by the caller always win.
	Credentials config.Credentials
}

// NewForwarder returns a Forwarder using the given runner.
func NewForwarder(r runner.Runner, creds config.Credentials) *Forwarder {
	return &Forwarder{Runner: r, Credentials: creds}
}

// Forward runs the companion CLI with the given arguments. The returned error
// carries the subprocess exit code; extract it with runner.ExitCode.
func (f *Forwarder) Forward(ctx context.Context, args []string) error {
	if _, err := f.Runner.LookPath(companionBinary); err != nil {
		return fmt.Errorf("the %s CLI is not installed; %s", companionBinary, installHint)
	}

	logging.Debug("Forwarding to %s: %v", companionBinary, args)
	if f.Credentials.AccessToken != "" {
		logging.Debug("Injecting E2B_ACCESS_TOKEN %s", logging.RedactToken(f.Credentials.AccessToken))
	}

	return f.Runner.Run(ctx, runner.Command{
		Name: companionBinary,
		Args: args,
		Env:  f.credentialEnv(),
	})
}

// credentialEnv builds the environment overlay. Empty credentials are left
// out so the companion CLI reports its own configuration errors.
func (f *Forwarder) credentialEnv() map[string]string {
	env := make(map[string]string, 3)
	if f.Credentials.Domain != "" {
		env["E2B_DOMAIN"] = f.Credentials.Domain
	}
	if f.Credentials.AccessToken != "" {
		env["E2B_ACCESS_TOKEN"] = f.Credentials.AccessToken
	}
	if f.Credentials.APIKey != "" {
		env["E2B_API_KEY"] = f.Credentials.APIKey
	}
	return env
}
