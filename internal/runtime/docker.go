package runtime

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/google/uuid"
)

const (
	labelManaged   = "botcrew.io/agent-id"
	annotationName = "botcrew.io/agent-name"
)

// DockerAdapter is the Docker-backed Worker-Runtime Adapter. It manages
// long-running agent worker containers, one per agent, named and labeled
// after the scheme the orchestrator's original Kubernetes runtime used
// (full-uuid naming, botcrew.io/ label namespace) so a worker image built
// for that runtime boots unmodified under Docker.
type DockerAdapter struct {
	client           *client.Client
	image            string
	orchestratorURL  string
	networkMode      string
	memoryMB         int64
}

// Config configures the Docker adapter's container template.
type Config struct {
	Image           string
	OrchestratorURL string
	NetworkMode     string
	MemoryMB        int64
}

// NewDockerAdapter dials the ambient Docker socket (client.FromEnv). Callers
// on hosts without an ambient socket should set DOCKER_HOST before startup;
// the adapter does not manage an explicit cert-path fallback itself, since
// the Docker client library already resolves DOCKER_HOST/DOCKER_CERT_PATH
// from the environment.
func NewDockerAdapter(cfg Config) (*DockerAdapter, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("runtime: docker client: %w", err)
	}
	if cfg.Image == "" {
		cfg.Image = "botcrew-agent:latest"
	}
	if cfg.NetworkMode == "" {
		cfg.NetworkMode = "bridge"
	}
	if cfg.MemoryMB <= 0 {
		cfg.MemoryMB = 512
	}
	return &DockerAdapter{
		client:          cli,
		image:           cfg.Image,
		orchestratorURL: cfg.OrchestratorURL,
		networkMode:     cfg.NetworkMode,
		memoryMB:        cfg.MemoryMB,
	}, nil
}

func containerName(agentID uuid.UUID) string {
	return "agent-" + agentID.String()
}

func (d *DockerAdapter) Launch(ctx context.Context, agent Agent) (string, error) {
	name := containerName(agent.ID)

	existing, err := d.client.ContainerInspect(ctx, name)
	if err == nil && existing.State != nil && existing.State.Running {
		return "", ErrConflict
	}

	env := []string{
		"AGENT_ID=" + agent.ID.String(),
		"AGENT_NAME=" + agent.Name,
		"MODEL_PROVIDER=" + agent.ModelProvider,
		"MODEL_NAME=" + agent.ModelName,
		"ORCHESTRATOR_URL=" + d.orchestratorURL,
	}

	resp, err := d.client.ContainerCreate(ctx, &container.Config{
		Image: d.image,
		Env:   env,
		Labels: map[string]string{
			labelManaged:   agent.ID.String(),
			annotationName: agent.Name,
		},
	}, &container.HostConfig{
		Resources:   container.Resources{Memory: d.memoryMB * 1024 * 1024},
		NetworkMode: container.NetworkMode(d.networkMode),
		AutoRemove:  false,
	}, nil, nil, name)
	if err != nil {
		if strings.Contains(err.Error(), "Conflict") {
			return "", ErrConflict
		}
		return "", fmt.Errorf("%w: create container: %v", ErrRuntimeUnavailable, err)
	}

	if err := d.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("%w: start container: %v", ErrRuntimeUnavailable, err)
	}

	return name, nil
}

func (d *DockerAdapter) Terminate(ctx context.Context, handle string, graceSeconds int) error {
	grace := time.Duration(graceSeconds) * time.Second
	secs := int(grace.Seconds())
	if err := d.client.ContainerStop(ctx, handle, container.StopOptions{Timeout: &secs}); err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("%w: stop container: %v", ErrRuntimeUnavailable, err)
	}
	if err := d.client.ContainerRemove(ctx, handle, container.RemoveOptions{Force: true}); err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("%w: remove container: %v", ErrRuntimeUnavailable, err)
	}
	return nil
}

func (d *DockerAdapter) Inspect(ctx context.Context, handle string) (Phase, bool, error) {
	info, err := d.client.ContainerInspect(ctx, handle)
	if err != nil {
		if isNotFound(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: inspect: %v", ErrRuntimeUnavailable, err)
	}
	if info.State == nil {
		return PhasePending, true, nil
	}
	if info.State.Running {
		return PhaseRunning, true, nil
	}
	if info.State.OOMKilled || info.State.ExitCode != 0 {
		return PhaseFailed, true, nil
	}
	return PhasePending, true, nil
}

func (d *DockerAdapter) ListAll(ctx context.Context) ([]Worker, error) {
	f := filters.NewArgs()
	f.Add("label", labelManaged)
	containers, err := d.client.ContainerList(ctx, container.ListOptions{All: true, Filters: f})
	if err != nil {
		return nil, fmt.Errorf("%w: list containers: %v", ErrRuntimeUnavailable, err)
	}
	workers := make([]Worker, 0, len(containers))
	for _, c := range containers {
		var name string
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}
		phase := PhasePending
		switch {
		case c.State == "running":
			phase = PhaseRunning
		case c.State == "exited" && c.Status != "" && strings.Contains(c.Status, "(0)"):
			phase = PhasePending
		case c.State == "exited":
			phase = PhaseFailed
		}
		workers = append(workers, Worker{Handle: name, Phase: phase})
	}
	return workers, nil
}

func (d *DockerAdapter) Close() error {
	return d.client.Close()
}

func isNotFound(err error) bool {
	return strings.Contains(err.Error(), "No such container") || strings.Contains(err.Error(), "not found")
}
