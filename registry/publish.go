// Package registry implements the publish step: tagging a locally
// materialized image and pushing it to ECR, with bounded retries for
// transient failures.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/awse2b/awse2b/awsecr"
	"github.com/awse2b/awse2b/config"
	"github.com/awse2b/awse2b/logging"
	"github.com/awse2b/awse2b/runner"
)

// PublishError reports a failed publish. AuthDenied marks authorization
// failures, which are never retried.
type PublishError struct {
	Ref        string
	Attempts   int
	AuthDenied bool
	Err        error
}

func (e *PublishError) Error() string {
	if e.AuthDenied {
		return fmt.Sprintf("registry denied authorization for %s: %v", e.Ref, e.Err)
	}
	return fmt.Sprintf("failed to push %s after %d attempts: %v", e.Ref, e.Attempts, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// ImageClient is the subset of the docker engine the publisher needs.
type ImageClient interface {
	Login(ctx context.Context, server, username, password string) error
	Tag(ctx context.Context, source, target string) error
	Push(ctx context.Context, ref string) error
}

// Publisher tags and pushes images to ECR.
type Publisher struct {
	Images ImageClient

	// MaxAttempts bounds push attempts, including the first.
	MaxAttempts int

	// InitialInterval seeds the exponential backoff between attempts.
	InitialInterval time.Duration
}

// NewPublisher returns a Publisher with production retry settings.
func NewPublisher(images ImageClient) *Publisher {
	return &Publisher{
		Images:          images,
		MaxAttempts:     4,
		InitialInterval: time.Second,
	}
}

// Publish produces the registry reference for the remote API. An existing
// ECR image passes through unchanged with no push; anything else is tagged
// as target and pushed after logging in to the registry.
func (p *Publisher) Publish(ctx context.Context, source config.ImageSource, localRef, target string, auth *awsecr.RegistryAuth) (string, error) {
	if existing, ok := source.(config.ExistingECRImage); ok {
		logging.Info("Using existing ECR image without push: %s", existing.Reference)
		return existing.Reference, nil
	}

	if err := p.Images.Login(ctx, auth.Server, auth.Username, auth.Password); err != nil {
		return "", &PublishError{Ref: target, AuthDenied: true, Err: err}
	}

	if err := p.Images.Tag(ctx, localRef, target); err != nil {
		return "", &PublishError{Ref: target, Attempts: 1, Err: err}
	}

	if err := p.pushWithRetry(ctx, target); err != nil {
		return "", err
	}

	logging.Info("Pushed image to registry: %s", target)
	return target, nil
}

// pushWithRetry pushes with exponential backoff. Transient failures are
// retried up to MaxAttempts; authorization denials abort immediately.
func (p *Publisher) pushWithRetry(ctx context.Context, target string) error {
	attempts := 0

	operation := func() error {
		attempts++
		err := p.Images.Push(ctx, target)
		if err == nil {
			return nil
		}
		if isAuthDenied(err) {
			return backoff.Permanent(&PublishError{Ref: target, Attempts: attempts, AuthDenied: true, Err: err})
		}
		logging.Warn("Push attempt %d failed, will retry: %v", attempts, err)
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialInterval

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(p.MaxAttempts-1)), ctx))
	if err == nil {
		return nil
	}

	var pubErr *PublishError
	if errors.As(err, &pubErr) {
		return pubErr
	}
	return &PublishError{Ref: target, Attempts: attempts, Err: err}
}

// authDenialMarkers are stderr fragments that identify an authorization
// failure rather than a transient fault.
var authDenialMarkers = []string{
	"denied",
	"unauthorized",
	"authentication required",
	"authorization",
	"401",
	"403",
}

func isAuthDenied(err error) bool {
	var cmdErr *runner.CommandError
	if !errors.As(err, &cmdErr) {
		return false
	}
	tail := strings.ToLower(cmdErr.StderrTail)
	for _, marker := range authDenialMarkers {
		if strings.Contains(tail, marker) {
			return true
		}
	}
	return false
}
