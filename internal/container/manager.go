// Package container provides Docker-backed Linux sandboxes for goal runs.
package container

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

const (
	stopTimeoutSecs = 10

	// Resource limits.
	memoryLimitBytes = 1024 * 1024 * 1024 // 1GB, package installs need headroom
	cpuQuota         = 100000             // 1 CPU
	pidsLimit        = 512

	// Sandbox network configuration.
	sandboxNetwork = "shsh-autopilot"
	sandboxSubnet  = "172.29.0.0/16"

	sandboxLabel = "shsh-autopilot.sandbox"

	createRetryAttempts = 20
	createRetryDelay    = 250 * time.Millisecond
)

// ExecOutput holds the demultiplexed output of one exec.
type ExecOutput struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Manager defines the interface for managing sandbox containers.
type Manager interface {
	// EnsureSandbox ensures a container with the given name exists and is running.
	EnsureSandbox(ctx context.Context, name string) (string, error)

	// Exec runs a shell command inside a running sandbox and waits for it.
	Exec(ctx context.Context, containerID, command, workDir string) (ExecOutput, error)

	// StopSandbox stops and removes a sandbox container.
	StopSandbox(ctx context.Context, containerID string) error

	// EnsureNetwork creates the sandbox bridge network if it doesn't exist.
	EnsureNetwork(ctx context.Context) (string, error)

	// Close releases the Docker client.
	Close() error
}

// DockerManager implements Manager using the Docker API.
type DockerManager struct {
	cli     *client.Client
	image   string
	runtime string // Container runtime: "" = default (runc), "runsc" = gVisor
}

// NewDockerManager creates a new Docker-backed sandbox manager.
// runtime can be "" for default Docker runtime or "runsc" for gVisor.
func NewDockerManager(imageName, runtime string) (*DockerManager, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	if runtime != "" {
		slog.Info("Docker client initialized", "runtime", runtime, "image", imageName)
	} else {
		slog.Info("Docker client initialized", "runtime", "default", "image", imageName)
	}
	return &DockerManager{cli: cli, image: imageName, runtime: runtime}, nil
}

// EnsureSandbox ensures a sandbox container is running and returns its ID.
func (m *DockerManager) EnsureSandbox(ctx context.Context, name string) (string, error) {
	inspect, err := m.cli.ContainerInspect(ctx, name)
	if err == nil {
		if inspect.State != nil && inspect.State.Running {
			return inspect.ID, nil
		}
		slog.Info("Restarting stopped sandbox", "container_id", inspect.ID, "name", name)
		if err := m.cli.ContainerStart(ctx, inspect.ID, container.StartOptions{}); err != nil {
			return "", fmt.Errorf("restart sandbox %s: %w", inspect.ID, err)
		}
		return inspect.ID, nil
	}
	if !errdefs.IsNotFound(err) {
		return "", fmt.Errorf("inspect sandbox %s: %w", name, err)
	}

	slog.Info("Creating new sandbox", "name", name, "image", m.image)

	config := &container.Config{
		Image:  m.image,
		Cmd:    []string{"sleep", "infinity"},
		Labels: map[string]string{sandboxLabel: name},
		Env:    []string{"DEBIAN_FRONTEND=noninteractive"},
	}

	hostConfig := &container.HostConfig{
		Runtime:     m.runtime,
		NetworkMode: container.NetworkMode(sandboxNetwork),
		Resources: container.Resources{
			Memory:    memoryLimitBytes,
			CPUQuota:  cpuQuota,
			PidsLimit: ptr(int64(pidsLimit)),
		},
		DNS: []string{"8.8.8.8", "8.8.4.4"},
	}

	var resp container.CreateResponse
	var createErr error
	pulled := false
	for i := 0; i < createRetryAttempts; i++ {
		resp, createErr = m.cli.ContainerCreate(ctx, config, hostConfig, nil, nil, name)
		if createErr == nil {
			break
		}

		if errdefs.IsNotFound(createErr) && !pulled {
			if err := m.pullImage(ctx); err != nil {
				return "", err
			}
			pulled = true
			continue
		}

		errStr := strings.ToLower(createErr.Error())
		if !strings.Contains(errStr, "is already in use") && !strings.Contains(errStr, "conflict") {
			return "", fmt.Errorf("create sandbox: %w", createErr)
		}

		// A concurrent run for the same secret may have created it first.
		if existing, inspectErr := m.cli.ContainerInspect(ctx, name); inspectErr == nil && existing.State != nil && existing.State.Running {
			return existing.ID, nil
		}

		slog.Warn("Sandbox name conflict during create, retrying",
			"name", name,
			"attempt", i+1,
			"error", createErr,
		)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(createRetryDelay):
		}
	}
	if createErr != nil {
		return "", fmt.Errorf("create sandbox after retries: %w", createErr)
	}

	if err := m.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		if removeErr := m.cli.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true}); removeErr != nil && !errors.Is(removeErr, context.Canceled) {
			slog.Warn("Failed to remove sandbox after start failure", "container_id", resp.ID, "error", removeErr)
		}
		return "", fmt.Errorf("start sandbox %s: %w", resp.ID, err)
	}

	// gVisor's netstack often fails with Docker's embedded DNS (127.0.0.11).
	if m.runtime == "runsc" {
		if out, err := m.Exec(ctx, resp.ID, "echo 'nameserver 8.8.8.8' > /etc/resolv.conf && echo 'nameserver 8.8.4.4' >> /etc/resolv.conf", "/"); err != nil || out.ExitCode != 0 {
			slog.Warn("Failed to apply DNS fix", "error", err, "exit_code", out.ExitCode)
		}
	}

	slog.Info("Sandbox created and started", "container_id", resp.ID, "name", name)
	return resp.ID, nil
}

func (m *DockerManager) pullImage(ctx context.Context) error {
	slog.Info("Pulling sandbox image", "image", m.image)
	rc, err := m.cli.ImagePull(ctx, m.image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", m.image, err)
	}
	defer func() {
		if closeErr := rc.Close(); closeErr != nil {
			slog.Debug("Failed to close image pull stream", "error", closeErr)
		}
	}()
	// The pull only completes once the progress stream is drained.
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("pull image %s: %w", m.image, err)
	}
	return nil
}

// Exec runs command with sh -c as root and captures stdout and stderr separately.
func (m *DockerManager) Exec(ctx context.Context, containerID, command, workDir string) (ExecOutput, error) {
	execConfig := container.ExecOptions{
		AttachStdout: true,
		AttachStderr: true,
		Tty:          false,
		Cmd:          []string{"sh", "-c", command},
		WorkingDir:   workDir,
		User:         "root",
	}

	resp, err := m.cli.ContainerExecCreate(ctx, containerID, execConfig)
	if err != nil {
		return ExecOutput{}, fmt.Errorf("create exec in sandbox %s: %w", containerID, err)
	}

	attachResp, err := m.cli.ContainerExecAttach(ctx, resp.ID, container.ExecStartOptions{})
	if err != nil {
		return ExecOutput{}, fmt.Errorf("attach to exec %s: %w", resp.ID, err)
	}
	defer attachResp.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, attachResp.Reader); err != nil {
		return ExecOutput{}, fmt.Errorf("read exec %s output: %w", resp.ID, err)
	}

	out := ExecOutput{Stdout: stdout.String(), Stderr: stderr.String()}

	inspect, err := m.cli.ContainerExecInspect(ctx, resp.ID)
	if err != nil {
		return out, fmt.Errorf("inspect exec %s: %w", resp.ID, err)
	}
	out.ExitCode = inspect.ExitCode
	return out, nil
}

// StopSandbox stops and removes a container.
// It is idempotent and handles concurrent calls gracefully.
func (m *DockerManager) StopSandbox(ctx context.Context, containerID string) error {
	slog.Info("Stopping sandbox", "container_id", containerID)

	_, err := m.cli.ContainerInspect(ctx, containerID)
	if err != nil {
		if errdefs.IsNotFound(err) {
			slog.Debug("Sandbox already removed", "container_id", containerID)
			return nil
		}
		return fmt.Errorf("inspect sandbox %s: %w", containerID, err)
	}

	timeout := stopTimeoutSecs
	if err := m.cli.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &timeout}); err != nil {
		if errdefs.IsNotFound(err) {
			slog.Debug("Sandbox already stopped/removed", "container_id", containerID)
		} else {
			slog.Debug("Sandbox stop returned error, continuing to remove", "container_id", containerID, "error", err)
		}
	}

	if err := m.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true}); err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		if strings.Contains(err.Error(), "is already in progress") {
			slog.Debug("Sandbox removal already in progress", "container_id", containerID)
			return nil
		}
		if ctx.Err() != nil {
			slog.Debug("Context canceled during remove, sandbox may still be removed", "container_id", containerID, "error", err)
			return nil
		}
		return fmt.Errorf("remove sandbox %s: %w", containerID, err)
	}

	slog.Info("Sandbox stopped and removed", "container_id", containerID)
	return nil
}

// EnsureNetwork creates the sandbox bridge network if it doesn't exist.
func (m *DockerManager) EnsureNetwork(ctx context.Context) (string, error) {
	networks, err := m.cli.NetworkList(ctx, network.ListOptions{})
	if err != nil {
		return "", fmt.Errorf("list networks: %w", err)
	}

	for _, nw := range networks {
		if nw.Name == sandboxNetwork {
			slog.Info("Sandbox network already exists", "network_id", nw.ID)
			return nw.ID, nil
		}
	}

	createResp, err := m.cli.NetworkCreate(ctx, sandboxNetwork, network.CreateOptions{
		Driver: "bridge",
		IPAM: &network.IPAM{
			Config: []network.IPAMConfig{
				{
					Subnet: sandboxSubnet,
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("create network %s: %w", sandboxNetwork, err)
	}

	slog.Info("Sandbox network created", "network_id", createResp.ID, "subnet", sandboxSubnet)
	return createResp.ID, nil
}

// Close releases the Docker client.
func (m *DockerManager) Close() error {
	return m.cli.Close()
}

func ptr[T any](v T) *T {
	return &v
}
