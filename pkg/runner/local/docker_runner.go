// Package local implements runner.Runner against a local Docker daemon, for
// development mode.
//
// Grounded on davidroman0O-turingpi's container/docker.go's
// DockerContainer (client.NewClientWithOpts, ContainerStart/ContainerKill/
// ContainerRemove) and pkg/tpi/docker/adapter.go's client lifecycle
// (client.FromEnv, mutex-guarded container bookkeeping). Adapted from a
// long-lived build/exec container into a one-shot run-to-completion
// execution, matching original_source's DockerRunner.local semantics.
package local

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"

	stdlog "github.com/dukex/styxgo/pkg/log"
	"github.com/dukex/styxgo/pkg/models"
	"github.com/dukex/styxgo/pkg/runner"
)

// Runner submits one container per execution to a local Docker daemon and
// tracks its id until Cleanup removes it.
type Runner struct {
	client *client.Client
	logger *slog.Logger

	mu         sync.Mutex
	containers map[string]string // executionID -> container ID
}

// New connects to the Docker daemon named by dockerHost (empty uses
// client.FromEnv, mirroring NewAdapter).
func New(dockerHost string) (*Runner, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if dockerHost != "" {
		opts = append(opts, client.WithHost(dockerHost))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	return &Runner{
		client:     cli,
		logger:     stdlog.WithModule("docker_runner"),
		containers: make(map[string]string),
	}, nil
}

func (r *Runner) Start(ctx context.Context, instance models.WorkflowInstance, configuration models.WorkflowConfiguration, description string) (string, error) {
	if !configuration.Configured() {
		return "", fmt.Errorf("workflow %s has no docker image configured", instance.WorkflowId)
	}

	img := *configuration.DockerImage

	reader, err := r.client.ImagePull(ctx, img, image.PullOptions{})
	if err != nil {
		return "", fmt.Errorf("pull image %s: %w", img, err)
	}
	_, _ = io.Copy(io.Discard, reader)
	_ = reader.Close()

	env := make([]string, 0, len(configuration.Env))
	for k, v := range configuration.Env {
		env = append(env, k+"="+v)
	}

	resp, err := r.client.ContainerCreate(ctx, &container.Config{
		Image: img,
		Cmd:   configuration.Command,
		Env:   env,
		Labels: map[string]string{
			"styx.workflow_instance": instance.String(),
			"styx.description":       description,
		},
	}, &container.HostConfig{}, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("create container for %s: %w", instance, err)
	}

	if err := r.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("start container %s for %s: %w", resp.ID, instance, err)
	}

	r.mu.Lock()
	r.containers[resp.ID] = resp.ID
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "started container execution", "instance", instance.String(), "execution_id", resp.ID)

	return resp.ID, nil
}

func (r *Runner) Status(ctx context.Context, executionID string) (runner.ExecutionStatus, error) {
	inspect, err := r.client.ContainerInspect(ctx, executionID)
	if err != nil {
		return runner.ExecutionStatus{}, fmt.Errorf("%w: %v", runner.ErrExecutionNotFound, err)
	}

	status := runner.ExecutionStatus{
		Running: inspect.State.Running,
	}

	if !inspect.State.Running && inspect.State.Status == "exited" {
		exitCode := inspect.State.ExitCode
		status.Terminated = true
		status.ExitCode = &exitCode
	}

	return status, nil
}

func (r *Runner) Cleanup(ctx context.Context, executionID string) error {
	err := r.client.ContainerRemove(ctx, executionID, container.RemoveOptions{Force: true})
	if err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("remove container %s: %w", executionID, err)
	}

	r.mu.Lock()
	delete(r.containers, executionID)
	r.mu.Unlock()

	return nil
}

// Close releases the underlying Docker client.
func (r *Runner) Close() error {
	return r.client.Close()
}

var _ runner.Runner = (*Runner)(nil)
