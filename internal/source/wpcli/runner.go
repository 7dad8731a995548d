package wpcli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
)

// ErrCommandFailed is wrapped by errors from commands that ran but exited
// unsuccessfully.
var ErrCommandFailed = errors.New("wp-cli command failed")

// CommandError describes a failed wp-cli invocation.
type CommandError struct {
	Command string
	Stderr  string
	Err     error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Command, e.Err)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *CommandError) Unwrap() []error { return []error{ErrCommandFailed, e.Err} }

// Runner executes a wp-cli argument vector and returns its standard output.
type Runner interface {
	Run(ctx context.Context, args []string) (string, error)
}

// LocalRunner runs commands through the local shell.
type LocalRunner struct {
	// Timeout bounds each command. Zero means 30 seconds.
	Timeout time.Duration
}

func (r LocalRunner) Run(ctx context.Context, args []string) (string, error) {
	timeout := r.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	line := ShellJoin(args)
	var stdout, stderr bytes.Buffer
	c := exec.CommandContext(ctx, "sh", "-c", line)
	c.Stdout = &stdout
	c.Stderr = &stderr
	if err := c.Run(); err != nil {
		return "", &CommandError{Command: line, Stderr: stderr.String(), Err: err}
	}
	return stdout.String(), nil
}

// CommandExecutor runs a shell command line on a remote host.
// *auth.SSHClient satisfies it.
type CommandExecutor interface {
	ExecuteCommand(ctx context.Context, command string) (string, string, error)
}

// SSHRunner runs commands on a remote host, optionally inside a Docker
// container on that host.
type SSHRunner struct {
	Client CommandExecutor
	// Container, when set, wraps every command in docker exec.
	Container string
	// User is passed to docker exec -u.
	User string
}

func (r SSHRunner) Run(ctx context.Context, args []string) (string, error) {
	line := ShellJoin(args)
	if r.Container != "" {
		prefix := []string{"docker", "exec"}
		if r.User != "" {
			prefix = append(prefix, "-u", r.User)
		}
		prefix = append(prefix, r.Container)
		line = ShellJoin(prefix) + " " + line
	}

	stdout, stderr, err := r.Client.ExecuteCommand(ctx, line)
	if err != nil {
		return "", &CommandError{Command: line, Stderr: stderr, Err: err}
	}
	return stdout, nil
}

// DockerExecAPI is the subset of the Docker Engine client used by DockerRunner.
type DockerExecAPI interface {
	ContainerExecCreate(ctx context.Context, containerID string, options container.ExecOptions) (container.ExecCreateResponse, error)
	ContainerExecAttach(ctx context.Context, execID string, config container.ExecAttachOptions) (types.HijackedResponse, error)
	ContainerExecInspect(ctx context.Context, execID string) (container.ExecInspect, error)
}

// DockerRunner runs commands in a container on the local Docker engine.
type DockerRunner struct {
	Client    DockerExecAPI
	Container string
	User      string
}

func (r DockerRunner) Run(ctx context.Context, args []string) (string, error) {
	line := ShellJoin(args)
	created, err := r.Client.ContainerExecCreate(ctx, r.Container, container.ExecOptions{
		User:         r.User,
		Cmd:          args,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create exec in %s: %w", r.Container, err)
	}

	resp, err := r.Client.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to attach to exec in %s: %w", r.Container, err)
	}
	defer resp.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, resp.Reader); err != nil {
		return "", fmt.Errorf("failed to read exec output from %s: %w", r.Container, err)
	}

	inspect, err := r.Client.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return "", fmt.Errorf("failed to inspect exec in %s: %w", r.Container, err)
	}
	if inspect.ExitCode != 0 {
		return "", &CommandError{
			Command: line,
			Stderr:  stderr.String(),
			Err:     fmt.Errorf("exit code %d", inspect.ExitCode),
		}
	}
	return stdout.String(), nil
}
