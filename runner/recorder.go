package runner

import (
	"context"
	"fmt"
	"sync"
)

// Recorder is a Runner that records invocations instead of spawning
// processes. Results can be scripted per command name.
type Recorder struct {
	mu sync.Mutex

	// Commands holds every Run invocation in order.
	Commands []Command

	// Results maps a command key ("name arg0") to the error Run returns.
	// Unscripted commands succeed.
	Results map[string]error

	// Missing lists executables LookPath should fail to resolve.
	Missing map[string]bool
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		Results: make(map[string]error),
		Missing: make(map[string]bool),
	}
}

// key identifies a command by its name and first argument, which is enough
// to tell "docker push" from "docker build".
func key(cmd Command) string {
	if len(cmd.Args) == 0 {
		return cmd.Name
	}
	return cmd.Name + " " + cmd.Args[0]
}

// Script sets the error Run returns for commands matching name and first
// argument.
func (r *Recorder) Script(name, firstArg string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := name
	if firstArg != "" {
		k = name + " " + firstArg
	}
	r.Results[k] = err
}

// Run records the command and returns any scripted result.
func (r *Recorder) Run(_ context.Context, cmd Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Commands = append(r.Commands, cmd)
	return r.Results[key(cmd)]
}

// LookPath resolves everything except names marked Missing.
func (r *Recorder) LookPath(name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Missing[name] {
		return "", fmt.Errorf("executable %q not found in $PATH", name)
	}
	return "/usr/local/bin/" + name, nil
}

// Calls returns the recorded invocations matching name and first argument.
func (r *Recorder) Calls(name, firstArg string) []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Command
	for _, cmd := range r.Commands {
		if cmd.Name != name {
			continue
		}
		if firstArg != "" && (len(cmd.Args) == 0 || cmd.Args[0] != firstArg) {
			continue
		}
		out = append(out, cmd)
	}
	return out
}
