package e2b

import (
	"context"
	"fmt"
	"time"

	"github.com/awse2b/awse2b/logging"
)

// PollConfig bounds the status-polling loop.
type PollConfig struct {
	// Interval between status queries.
	Interval time.Duration

	// Budget is the overall wall-clock limit. When it elapses without a
	// terminal status the build is reported as timed out, not failed; the
	// remote build may still be running.
	Budget time.Duration

	// MaxConsecutiveFailures tolerates dropped polls before the whole
	// operation is reported as a transport failure.
	MaxConsecutiveFailures int
}

// DefaultPollConfig returns the production polling settings.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		Interval:               10 * time.Second,
		Budget:                 30 * time.Minute,
		MaxConsecutiveFailures: 5,
	}
}

// BuildFailedError reports a build the remote system asserted as failed.
// The reason is surfaced verbatim.
type BuildFailedError struct {
	Reason string
}

func (e *BuildFailedError) Error() string {
	if e.Reason == "" {
		return "remote build failed"
	}
	return "remote build failed: " + e.Reason
}

// TimeoutError reports a poll loop that exhausted its wall-clock budget
// without observing a terminal status.
type TimeoutError struct {
	Budget time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("build did not reach a terminal status within %s; the remote build may still be running", e.Budget)
}

// pollState tracks progress across poll ticks.
type pollState struct {
	startTime           time.Time
	lastState           State
	consecutiveFailures int
}

// WaitForBuild polls the build status at a fixed interval until a terminal
// status, the wall-clock budget, or cancellation. Individual poll failures
// are tolerated up to cfg.MaxConsecutiveFailures in a row.
func (c *Client) WaitForBuild(ctx context.Context, templateID, buildID string, cfg PollConfig) (BuildStatus, error) {
	logging.Info("Waiting for template build %s/%s", templateID, buildID)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	deadline := time.NewTimer(cfg.Budget)
	defer deadline.Stop()

	state := &pollState{startTime: time.Now()}

	for {
		select {
		case <-ctx.Done():
			return BuildStatus{}, fmt.Errorf("cancelled while waiting for build: %w", ctx.Err())
		case <-deadline.C:
			return BuildStatus{State: StateTimedOut}, &TimeoutError{Budget: cfg.Budget}
		case <-ticker.C:
			status, done, err := c.processPollTick(ctx, templateID, buildID, cfg, state)
			if err != nil {
				return status, err
			}
			if done {
				return status, nil
			}
		}
	}
}

// processPollTick handles a single poll. It returns done=true on StateReady,
// an error for failed or undeliverable builds, and (false, nil) to continue.
func (c *Client) processPollTick(ctx context.Context, templateID, buildID string, cfg PollConfig, state *pollState) (BuildStatus, bool, error) {
	status, err := c.GetBuildStatus(ctx, templateID, buildID)
	if err != nil {
		state.consecutiveFailures++
		if state.consecutiveFailures >= cfg.MaxConsecutiveFailures {
			return BuildStatus{}, false, fmt.Errorf("status polling failed %d times in a row: %w", state.consecutiveFailures, err)
		}
		logging.Warn("Status poll failed (%d/%d tolerated): %v", state.consecutiveFailures, cfg.MaxConsecutiveFailures, err)
		return BuildStatus{}, false, nil
	}
	state.consecutiveFailures = 0

	elapsed := time.Since(state.startTime).Round(time.Second)
	if status.State != state.lastState {
		logging.Info("Build status: %s (elapsed: %s)", status.State, elapsed)
	} else {
		logging.Debug("Build status: %s (elapsed: %s)", status.State, elapsed)
	}
	state.lastState = status.State

	switch status.State {
	case StateReady:
		logging.Info("Build completed in %s", elapsed)
		return status, true, nil
	case StateFailed:
		return status, false, &BuildFailedError{Reason: status.Reason}
	default:
		return status, false, nil
	}
}
