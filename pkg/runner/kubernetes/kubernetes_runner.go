// Package kubernetes implements runner.Runner by shelling out to kubectl
// against the cluster named in config.KubernetesCoordinates, for production
// mode.
//
// Grounded on davidroman0O-turingpi's os/exec-based command wrappers
// (cmd/status.go, cmd/power_reset.go, operations/filesystem.go): os/exec
// against the kubectl binary, one Pod per execution, named after the
// execution id it returns. See DESIGN.md for why this doesn't pull in
// k8s.io/client-go instead.
package kubernetes

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	stdlog "github.com/dukex/styxgo/pkg/log"
	"github.com/dukex/styxgo/pkg/models"
	"github.com/dukex/styxgo/pkg/runner"
)

// Coordinates names the cluster context and namespace executions are
// submitted to, mirroring config.KubernetesCoordinates.
type Coordinates struct {
	ProjectID string
	Zone      string
	ClusterID string
	Namespace string
}

// Runner submits one Pod per execution via kubectl run/delete.
type Runner struct {
	coords Coordinates
	logger *slog.Logger
}

// New returns a Runner targeting coords' namespace.
func New(coords Coordinates) *Runner {
	return &Runner{
		coords: coords,
		logger: stdlog.WithModule("kubernetes_runner"),
	}
}

func (r *Runner) Start(ctx context.Context, instance models.WorkflowInstance, configuration models.WorkflowConfiguration, description string) (string, error) {
	if !configuration.Configured() {
		return "", fmt.Errorf("workflow %s has no docker image configured", instance.WorkflowId)
	}

	podName := podNameFor(instance)

	args := []string{
		"run", podName,
		"--namespace", r.coords.Namespace,
		"--image", *configuration.DockerImage,
		"--restart", "Never",
		"--labels", "styx-managed=true,styx-workflow=" + sanitizeLabel(instance.WorkflowId.String()),
	}
	if len(configuration.Command) > 0 {
		args = append(args, "--command", "--")
		args = append(args, configuration.Command...)
	}

	if _, err := r.kubectl(ctx, args...); err != nil {
		return "", fmt.Errorf("submit pod %s for %s: %w", podName, instance, err)
	}

	r.logger.InfoContext(ctx, "submitted pod execution", "instance", instance.String(), "execution_id", podName)

	return podName, nil
}

func (r *Runner) Status(ctx context.Context, executionID string) (runner.ExecutionStatus, error) {
	out, err := r.kubectl(ctx, "get", "pod", executionID, "--namespace", r.coords.Namespace,
		"-o", "jsonpath={.status.phase}")
	if err != nil {
		return runner.ExecutionStatus{}, fmt.Errorf("%w: %v", runner.ErrExecutionNotFound, err)
	}

	phase := strings.TrimSpace(out)
	status := runner.ExecutionStatus{}

	switch phase {
	case "Running":
		status.Running = true
	case "Succeeded":
		status.Terminated = true
		zero := 0
		status.ExitCode = &zero
	case "Failed":
		status.Terminated = true
		one := 1
		status.ExitCode = &one
	}

	return status, nil
}

func (r *Runner) Cleanup(ctx context.Context, executionID string) error {
	_, err := r.kubectl(ctx, "delete", "pod", executionID, "--namespace", r.coords.Namespace, "--ignore-not-found")
	if err != nil {
		return fmt.Errorf("delete pod %s: %w", executionID, err)
	}
	return nil
}

func (r *Runner) kubectl(ctx context.Context, args ...string) (string, error) {
	context := fmt.Sprintf("gke_%s_%s_%s", r.coords.ProjectID, r.coords.Zone, r.coords.ClusterID)
	full := append([]string{"--context", context}, args...)

	cmd := exec.CommandContext(ctx, "kubectl", full...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("kubectl %s: %w: %s", strings.Join(args, " "), err, stderr.String())
	}

	return stdout.String(), nil
}

func podNameFor(instance models.WorkflowInstance) string {
	return "styx-" + sanitizeLabel(instance.String())
}

func sanitizeLabel(s string) string {
	var b strings.Builder
	for _, c := range strings.ToLower(s) {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteRune(c)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}

var _ runner.Runner = (*Runner)(nil)
