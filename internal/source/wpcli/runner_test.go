package wpcli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShellQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "simple", want: "simple"},
		{in: "", want: "''"},
		{in: "two words", want: "'two words'"},
		{in: "a'b", want: `'a'\''b'`},
		{in: "--url=a.test/b/", want: "--url=a.test/b/"},
		{in: "echo is_multisite() ? 1 : 0;", want: "'echo is_multisite() ? 1 : 0;'"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ShellQuote(tt.in))
		})
	}
	assert.Equal(t, "wp option get 'a b'", ShellJoin([]string{"wp", "option", "get", "a b"}))
}

func TestLocalRunner(t *testing.T) {
	out, err := LocalRunner{}.Run(context.Background(), []string{"echo", "hello world"})
	require.NoError(t, err)
	assert.Equal(t, "hello world\n", out)

	_, err = LocalRunner{}.Run(context.Background(), []string{"false"})
	assert.ErrorIs(t, err, ErrCommandFailed)
}

type fakeExecutor struct {
	command string
	stdout  string
	stderr  string
	err     error
}

func (f *fakeExecutor) ExecuteCommand(_ context.Context, command string) (string, string, error) {
	f.command = command
	return f.stdout, f.stderr, f.err
}

func TestSSHRunner(t *testing.T) {
	exec := &fakeExecutor{stdout: "1\n"}
	r := SSHRunner{Client: exec, Container: "wp_example", User: "0"}

	out, err := r.Run(context.Background(), []string{"wp", "eval", "echo 1;"})
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)
	assert.Equal(t, "docker exec -u 0 wp_example wp eval 'echo 1;'", exec.command)

	exec = &fakeExecutor{stderr: "Error: This is not a multisite installation.", err: errors.New("exit status 1")}
	_, err = SSHRunner{Client: exec}.Run(context.Background(), []string{"wp", "site", "list"})
	require.ErrorIs(t, err, ErrCommandFailed)
	assert.Contains(t, err.Error(), "not a multisite installation")
	assert.Equal(t, "wp site list", exec.command)
}

type fakeDocker struct {
	options  container.ExecOptions
	stdout   string
	stderr   string
	exitCode int
}

func (f *fakeDocker) ContainerExecCreate(_ context.Context, _ string, options container.ExecOptions) (container.ExecCreateResponse, error) {
	f.options = options
	return container.ExecCreateResponse{ID: "exec-1"}, nil
}

func (f *fakeDocker) ContainerExecAttach(_ context.Context, _ string, _ container.ExecAttachOptions) (types.HijackedResponse, error) {
	var buf bytes.Buffer
	if f.stdout != "" {
		stdcopy.NewStdWriter(&buf, stdcopy.Stdout).Write([]byte(f.stdout))
	}
	if f.stderr != "" {
		stdcopy.NewStdWriter(&buf, stdcopy.Stderr).Write([]byte(f.stderr))
	}
	client, server := net.Pipe()
	server.Close()
	return types.HijackedResponse{Conn: client, Reader: bufio.NewReader(&buf)}, nil
}

func (f *fakeDocker) ContainerExecInspect(context.Context, string) (container.ExecInspect, error) {
	return container.ExecInspect{ExecID: "exec-1", ExitCode: f.exitCode}, nil
}

func TestDockerRunner(t *testing.T) {
	docker := &fakeDocker{stdout: "child\n", stderr: "Deprecated: noise\n"}
	r := DockerRunner{Client: docker, Container: "wp_example", User: "www-data"}

	out, err := r.Run(context.Background(), []string{"wp", "option", "get", "stylesheet"})
	require.NoError(t, err)
	assert.Equal(t, "child\n", out)
	assert.Equal(t, []string{"wp", "option", "get", "stylesheet"}, []string(docker.options.Cmd))
	assert.Equal(t, "www-data", docker.options.User)
	assert.True(t, docker.options.AttachStdout)

	docker = &fakeDocker{stderr: "Error: nope\n", exitCode: 1}
	_, err = DockerRunner{Client: docker, Container: "wp_example"}.Run(context.Background(), []string{"wp", "site", "list"})
	require.ErrorIs(t, err, ErrCommandFailed)
	assert.Contains(t, err.Error(), "exit code 1")
	assert.Contains(t, err.Error(), "Error: nope")
}
