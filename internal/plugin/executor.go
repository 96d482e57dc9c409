package plugin

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"time"

	"github.com/cockroachdb/errors"
)

// DefaultTimeoutMs bounds a single hook run.
const DefaultTimeoutMs = 5000

// Executor handles the execution of plugins with timeout support.
type Executor struct {
	timeoutMs int
}

// NewExecutor creates a new Executor with the specified timeout in milliseconds.
func NewExecutor(timeoutMs int) *Executor {
	if timeoutMs <= 0 {
		timeoutMs = DefaultTimeoutMs
	}
	return &Executor{
		timeoutMs: timeoutMs,
	}
}

// Execute runs a plugin with the given request and returns the response.
// The request is written to the plugin's stdin as JSON and its stdout is
// parsed as a Response. The run is killed when ctx ends or the executor's
// timeout passes.
func (e *Executor) Execute(ctx context.Context, plugin *Plugin, req *Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(e.timeoutMs)*time.Millisecond)
	defer cancel()

	cmd := exec.CommandContext(ctx, plugin.Executable)
	cmd.Dir = plugin.Path

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}
	cmd.Stdin = bytes.NewReader(reqJSON)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, errors.Newf("plugin %s: execution timeout after %dms", plugin.Manifest.Name, e.timeoutMs)
	}

	if err != nil {
		if stderrStr := stderr.String(); stderrStr != "" {
			return nil, errors.Wrapf(err, "plugin %s: execution failed, stderr: %s", plugin.Manifest.Name, stderrStr)
		}
		return nil, errors.Wrapf(err, "plugin %s: execution failed", plugin.Manifest.Name)
	}

	var response Response
	if err := json.Unmarshal(stdout.Bytes(), &response); err != nil {
		return nil, errors.Wrapf(err, "plugin %s: failed to parse response, stdout: %s", plugin.Manifest.Name, stdout.String())
	}

	return &response, nil
}
