package defra

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"

	"github.com/jackzampolin/rentshelf/internal/config"
)

const (
	// apiPort is where DefraDB listens inside the container.
	apiPort  nat.Port = "9181/tcp"
	storeDir          = "/data"
	// ownerLabel marks every container rentshelf creates.
	ownerLabel = "rentshelf.owner"

	startTimeout = 30 * time.Second
	stopGrace    = 10 // seconds
)

// ContainerStatus is the lifecycle state of the DefraDB container.
type ContainerStatus string

const (
	StatusRunning   ContainerStatus = "running"
	StatusStopped   ContainerStatus = "stopped"
	StatusNotFound  ContainerStatus = "not_found"
	StatusUnhealthy ContainerStatus = "unhealthy"
	StatusStarting  ContainerStatus = "starting"
)

// ErrNoContainer is returned by operations that need an existing container.
var ErrNoContainer = errors.New("defra container does not exist")

// ContainerSpec describes the DefraDB container rentshelf runs for its
// catalog, rentals, positions, and annotations.
type ContainerSpec struct {
	Name  string
	Image string
	// Port is the loopback port the DefraDB API is published on.
	Port string
	// DataPath is the host directory holding the badger store. Empty keeps
	// the data inside the container.
	DataPath string
	Labels   map[string]string
}

// SpecFromConfig builds the container spec from the defra config section.
// Blank fields fall back to config.DefaultConfig.
func SpecFromConfig(c config.DefraConfig, dataPath string) ContainerSpec {
	return ContainerSpec{
		Name:     c.ContainerName,
		Image:    c.Image,
		Port:     c.Port,
		DataPath: dataPath,
	}.withDefaults()
}

func (s ContainerSpec) withDefaults() ContainerSpec {
	d := config.DefaultConfig().Defra
	if s.Name == "" {
		s.Name = d.ContainerName
	}
	if s.Image == "" {
		s.Image = d.Image
	}
	if s.Port == "" {
		s.Port = d.Port
	}
	labels := map[string]string{ownerLabel: s.Name}
	maps.Copy(labels, s.Labels)
	s.Labels = labels
	return s
}

// URL is the DefraDB API address on the host.
func (s ContainerSpec) URL() string {
	return "http://localhost:" + s.Port
}

func (s ContainerSpec) containerConfig() *container.Config {
	return &container.Config{
		Image: s.Image,
		Cmd: []string{
			"start",
			"--no-keyring",
			"--url", "0.0.0.0:" + apiPort.Port(),
			"--store", "badger",
			"--rootdir", storeDir,
		},
		Labels:       s.Labels,
		ExposedPorts: nat.PortSet{apiPort: struct{}{}},
		Healthcheck: &container.HealthConfig{
			Test:        []string{"CMD", "curl", "-sf", "http://localhost:" + apiPort.Port() + "/health-check"},
			Interval:    2 * time.Second,
			Timeout:     5 * time.Second,
			Retries:     10,
			StartPeriod: 5 * time.Second,
		},
	}
}

func (s ContainerSpec) hostConfig() *container.HostConfig {
	hc := &container.HostConfig{
		PortBindings: nat.PortMap{
			apiPort: {{HostIP: "127.0.0.1", HostPort: s.Port}},
		},
	}
	if s.DataPath != "" {
		hc.Mounts = []mount.Mount{{Type: mount.TypeBind, Source: s.DataPath, Target: storeDir}}
	}
	return hc
}

// conflicts reports how an existing container differs from the spec in ways
// that would point the server at the wrong port or data.
func (s ContainerSpec) conflicts(info container.InspectResponse) error {
	var bound []nat.PortBinding
	if info.ContainerJSONBase != nil && info.HostConfig != nil {
		bound = info.HostConfig.PortBindings[apiPort]
	}
	if len(bound) == 0 {
		return fmt.Errorf("container %s does not publish %s", s.Name, apiPort)
	}
	if bound[0].HostPort != s.Port {
		return fmt.Errorf("container %s publishes port %s, config wants %s", s.Name, bound[0].HostPort, s.Port)
	}
	if s.DataPath == "" {
		return nil
	}
	for _, mnt := range info.Mounts {
		if mnt.Destination != storeDir {
			continue
		}
		if mnt.Source != s.DataPath {
			return fmt.Errorf("container %s stores data in %s, config wants %s", s.Name, mnt.Source, s.DataPath)
		}
		return nil
	}
	return fmt.Errorf("container %s has no data mount at %s", s.Name, storeDir)
}

// statusOf maps a docker container state onto ContainerStatus.
func statusOf(state string) ContainerStatus {
	switch state {
	case "running":
		return StatusRunning
	case "exited", "dead":
		return StatusStopped
	case "created", "restarting":
		return StatusStarting
	default:
		return ContainerStatus(state)
	}
}

// Container runs DefraDB in Docker for a single ContainerSpec.
type Container struct {
	cli  *client.Client
	spec ContainerSpec
}

// NewContainer connects to the Docker daemon from the environment. It does
// not touch any container until one of its methods is called.
func NewContainer(spec ContainerSpec) (*Container, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	return &Container{cli: cli, spec: spec.withDefaults()}, nil
}

// Close releases the Docker client.
func (c *Container) Close() error {
	return c.cli.Close()
}

// Spec returns the spec with defaults applied.
func (c *Container) Spec() ContainerSpec {
	return c.spec
}

// URL returns the DefraDB API URL.
func (c *Container) URL() string {
	return c.spec.URL()
}

// Start creates the container if needed, starts it, and waits for DefraDB to
// answer health checks. Starting a running container is a no-op.
func (c *Container) Start(ctx context.Context) error {
	if _, err := c.cli.Ping(ctx); err != nil {
		return fmt.Errorf("docker is not running: %w", err)
	}
	status, id, err := c.find(ctx)
	if err != nil {
		return err
	}

	switch status {
	case StatusRunning:
		return nil
	case StatusNotFound:
		if id, err = c.create(ctx); err != nil {
			return err
		}
	case StatusStopped:
	default:
		return fmt.Errorf("container %s is %s", c.spec.Name, status)
	}

	if err := c.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		if status == StatusNotFound {
			_ = c.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true})
		}
		return fmt.Errorf("start container %s: %w", c.spec.Name, err)
	}
	return c.WaitReady(ctx, startTimeout)
}

// Stop stops the container and keeps its data.
func (c *Container) Stop(ctx context.Context) error {
	status, id, err := c.find(ctx)
	if err != nil || status == StatusNotFound {
		return err
	}
	grace := stopGrace
	if err := c.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &grace}); err != nil {
		return fmt.Errorf("stop container %s: %w", c.spec.Name, err)
	}
	return nil
}

// Remove deletes the container. Bind-mounted data on the host survives.
func (c *Container) Remove(ctx context.Context) error {
	status, id, err := c.find(ctx)
	if err != nil || status == StatusNotFound {
		return err
	}
	if status == StatusRunning {
		if err := c.Stop(ctx); err != nil {
			return err
		}
	}
	err = c.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true, RemoveVolumes: true})
	if err != nil {
		return fmt.Errorf("remove container %s: %w", c.spec.Name, err)
	}
	return nil
}

// Status reports the container's lifecycle state.
func (c *Container) Status(ctx context.Context) (ContainerStatus, error) {
	status, _, err := c.find(ctx)
	return status, err
}

// Logs returns the last tail lines of container output with the docker
// stream headers removed.
func (c *Container) Logs(ctx context.Context, tail string) (string, error) {
	status, id, err := c.find(ctx)
	if err != nil {
		return "", err
	}
	if status == StatusNotFound {
		return "", ErrNoContainer
	}
	rc, err := c.cli.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true, Tail: tail})
	if err != nil {
		return "", fmt.Errorf("container logs: %w", err)
	}
	defer rc.Close()

	var out bytes.Buffer
	if _, err := stdcopy.StdCopy(&out, &out, rc); err != nil {
		return "", fmt.Errorf("read container logs: %w", err)
	}
	return out.String(), nil
}

// CheckExisting verifies that a container left behind by an earlier run
// matches the spec. A missing container passes.
func (c *Container) CheckExisting(ctx context.Context) error {
	status, id, err := c.find(ctx)
	if err != nil || status == StatusNotFound {
		return err
	}
	info, err := c.cli.ContainerInspect(ctx, id)
	if err != nil {
		return fmt.Errorf("inspect container %s: %w", c.spec.Name, err)
	}
	return c.spec.conflicts(info)
}

// WaitReady polls the health endpoint about once a second until it answers
// 200, the timeout runs out, or ctx ends.
func (c *Container) WaitReady(ctx context.Context, timeout time.Duration) error {
	hc := &http.Client{Timeout: 2 * time.Second}
	url := c.URL() + "/health-check"
	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := hc.Do(req)
			if err != nil {
				return err
			}
			_ = resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("defra health check: status %d", resp.StatusCode)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(max(1, timeout/time.Second))),
		retry.Delay(time.Second),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
}

// find looks the container up by name.
func (c *Container) find(ctx context.Context) (ContainerStatus, string, error) {
	found, err := c.cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("name", "^/"+c.spec.Name+"$")),
	})
	if err != nil {
		return "", "", fmt.Errorf("list containers: %w", err)
	}
	if len(found) == 0 {
		return StatusNotFound, "", nil
	}
	return statusOf(found[0].State), found[0].ID, nil
}

// create pulls the image when it is missing and creates a stopped container.
func (c *Container) create(ctx context.Context) (string, error) {
	if _, err := c.cli.ImageInspect(ctx, c.spec.Image); err != nil {
		pull, err := c.cli.ImagePull(ctx, c.spec.Image, image.PullOptions{})
		if err != nil {
			return "", fmt.Errorf("pull %s: %w", c.spec.Image, err)
		}
		_, err = io.Copy(io.Discard, pull)
		pull.Close()
		if err != nil {
			return "", fmt.Errorf("pull %s: %w", c.spec.Image, err)
		}
	}
	resp, err := c.cli.ContainerCreate(ctx, c.spec.containerConfig(), c.spec.hostConfig(), nil, nil, c.spec.Name)
	if err != nil {
		return "", fmt.Errorf("create container %s: %w", c.spec.Name, err)
	}
	return resp.ID, nil
}
