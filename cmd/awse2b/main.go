// Package main implements the awse2b CLI: it builds and publishes template
// images to Amazon ECR, drives remote template builds, and forwards every
// other command to the companion e2b CLI.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/awse2b/awse2b/config"
	"github.com/awse2b/awse2b/forward"
	"github.com/awse2b/awse2b/logging"
	"github.com/awse2b/awse2b/runner"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:]))
}

// run dispatches the invocation: native commands go through cobra, the auth
// command is rejected, and everything else is delegated to the e2b CLI with
// its exit code propagated.
func run(ctx context.Context, args []string) int {
	switch forward.Route(args) {
	case forward.RejectedAuth:
		logging.Error(forward.ErrAuthNotSupported)
		return 1

	case forward.Forwarded:
		creds := config.ResolveCredentials("")
		fwd := forward.NewForwarder(runner.NewExecRunner(), creds)
		if err := fwd.Forward(ctx, args); err != nil {
			// A CommandError means the subprocess ran and already wrote
			// its own diagnostics; only its exit code is propagated.
			var cmdErr *runner.CommandError
			if !errors.As(err, &cmdErr) {
				logging.Error(err)
			}
			return runner.ExitCode(err)
		}
		return 0

	default:
		if err := Execute(ctx); err != nil {
			logging.Error(err)
			return 1
		}
		return 0
	}
}
