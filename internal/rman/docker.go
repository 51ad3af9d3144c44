package rman

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/sirupsen/logrus"
)

// ExecClient is the part of the Docker SDK the container engine needs.
// *client.Client satisfies it.
type ExecClient interface {
	ContainerExecCreate(ctx context.Context, container string, options container.ExecOptions) (container.ExecCreateResponse, error)
	ContainerExecAttach(ctx context.Context, execID string, config container.ExecStartOptions) (types.HijackedResponse, error)
	ContainerExecInspect(ctx context.Context, execID string) (container.ExecInspect, error)
}

// DockerEngine runs the engine inside a running database container with
// docker exec. The script directory and the backup output directories must
// be bind mounted at identical paths in the container.
type DockerEngine struct {
	opts      Options
	container string
	cli       ExecClient
	log       logrus.FieldLogger
}

// NewDockerEngine connects to the Docker daemon using the standard
// DOCKER_* environment.
func NewDockerEngine(opts Options, containerName string, log logrus.FieldLogger) (*DockerEngine, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}
	return NewDockerEngineWithClient(opts, containerName, cli, log), nil
}

// NewDockerEngineWithClient is NewDockerEngine with an explicit client.
func NewDockerEngineWithClient(opts Options, containerName string, cli ExecClient, log logrus.FieldLogger) *DockerEngine {
	if log == nil {
		log = discardLogger()
	}
	return &DockerEngine{opts: opts, container: containerName, cli: cli, log: log}
}

// Run executes the script inside the container. As with LocalEngine the
// script file is removed on every path.
func (e *DockerEngine) Run(ctx context.Context, script Script) Result {
	path, cleanup, err := prepare(e.opts, script, e.log)
	defer cleanup()
	if err != nil {
		return failure(ScriptWriteError, "%v", err)
	}

	cmd := append([]string{e.opts.binary()}, e.opts.commandArgs(path)...)
	execID, err := e.cli.ContainerExecCreate(ctx, e.container, container.ExecOptions{
		Cmd:          cmd,
		Env:          e.opts.env(),
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		if client.IsErrNotFound(err) {
			return failure(EngineNotFound, "container %q not found: %v", e.container, err)
		}
		return failure(UnexpectedError, "failed to create exec in container %q: %v", e.container, err)
	}

	resp, err := e.cli.ContainerExecAttach(ctx, execID.ID, container.ExecStartOptions{})
	if err != nil {
		return failure(UnexpectedError, "failed to attach to exec in container %q: %v", e.container, err)
	}
	defer resp.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, resp.Reader); err != nil {
		return Result{
			Stdout:      stdout.String(),
			Stderr:      stderr.String(),
			ErrorDetail: fmt.Sprintf("%s: failed to read exec output: %v", UnexpectedError, err),
		}
	}

	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	inspect, err := e.waitExit(ctx, execID.ID)
	if err != nil {
		res.ErrorDetail = fmt.Sprintf("%s: failed to inspect exec: %v", UnexpectedError, err)
		return res
	}

	switch inspect.ExitCode {
	case 0:
		res.Succeeded = true
	case 126, 127:
		res.ErrorDetail = fmt.Sprintf("%s: command %q not runnable in container %q (status %d): %s",
			EngineNotFound, e.opts.binary(), e.container, inspect.ExitCode, strings.TrimSpace(res.Stderr))
	default:
		res.ErrorDetail = fmt.Sprintf("%s: %s exited with status %d in container %q: %s",
			EngineExecutionError, e.opts.binary(), inspect.ExitCode, e.container, strings.TrimSpace(res.Stderr))
	}
	return res
}

// waitExit polls until the daemon reports the exec as finished. The output
// stream closing usually means it already is.
func (e *DockerEngine) waitExit(ctx context.Context, execID string) (container.ExecInspect, error) {
	for i := 0; ; i++ {
		inspect, err := e.cli.ContainerExecInspect(ctx, execID)
		if err != nil {
			return inspect, err
		}
		if !inspect.Running {
			return inspect, nil
		}
		if i >= 50 {
			return inspect, fmt.Errorf("exec %s still running after output closed", execID)
		}
		select {
		case <-ctx.Done():
			return inspect, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}
