package command

import (
	"context"
	"strings"
	"sync"
)

// Recorder is a Runner that records commands instead of running them.
// Responses are matched by command-line prefix, first registered wins;
// unmatched commands succeed with empty output.
type Recorder struct {
	mu        sync.Mutex
	calls     []Command
	responses []response
}

type response struct {
	prefix string
	output string
	err    error
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// On makes commands starting with prefix print output.
func (r *Recorder) On(prefix, output string) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, response{prefix: prefix, output: output})
	return r
}

// Fail makes commands starting with prefix fail with err.
func (r *Recorder) Fail(prefix string, err error) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, response{prefix: prefix, err: err})
	return r
}

func (r *Recorder) Run(ctx context.Context, c Command) error {
	_, err := r.Output(ctx, c)
	return err
}

func (r *Recorder) Output(_ context.Context, c Command) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)

	line := c.String()
	for _, resp := range r.responses {
		if strings.HasPrefix(line, resp.prefix) {
			return resp.output, resp.err
		}
	}
	return "", nil
}

// Calls returns the recorded commands in order.
func (r *Recorder) Calls() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Command(nil), r.calls...)
}

// Lines returns the recorded command lines in order.
func (r *Recorder) Lines() []string {
	calls := r.Calls()
	lines := make([]string, len(calls))
	for i, c := range calls {
		lines[i] = c.String()
	}
	return lines
}
