package docker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alarmistdev/readiness/check"
	containerTypes "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
)

type dockerClient interface {
	ContainerList(ctx context.Context, options containerTypes.ListOptions) ([]containerTypes.Summary, error)
}

// Check creates a probe that succeeds once at least one container carries
// all the given labels and every such container is running. A container that
// is running but reports an unhealthy or starting health check is not ready.
func Check(labels map[string]string) (check.Check, error) {
	if len(labels) == 0 {
		return nil, errors.New("labels must not be empty")
	}

	cli, err := client.NewClientWithOpts(
		client.WithHost(client.DefaultDockerHost),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	return newCheck(cli, labels), nil
}

func newCheck(cli dockerClient, labels map[string]string) check.Check {
	return check.CheckFunc(func(ctx context.Context) error {
		return checkContainers(ctx, cli, labels)
	})
}

func checkContainers(ctx context.Context, cli dockerClient, labels map[string]string) error {
	args := filters.NewArgs()
	for k, v := range labels {
		args.Add("label", fmt.Sprintf("%s=%s", k, v))
	}

	containers, err := cli.ContainerList(ctx, containerTypes.ListOptions{
		All:     true,
		Filters: args,
	})
	if err != nil {
		return check.ConnectFailure(fmt.Errorf("list docker containers: %w", err))
	}

	matched := 0
	for _, container := range containers {
		if !matchesLabels(labels, container.Labels) {
			continue
		}
		matched++

		if container.State != "running" {
			return check.Mismatch(fmt.Errorf("container %s not running (state=%s)", container.ID, container.State))
		}
		if notHealthy(container.Status) {
			return check.Mismatch(fmt.Errorf("container %s not healthy (status=%s)", container.ID, container.Status))
		}
	}

	if matched == 0 {
		return check.Mismatch(fmt.Errorf("no containers found with labels %v", labels))
	}

	return nil
}

// notHealthy reports whether a container status line carries a health state
// other than healthy, e.g. "Up 3 seconds (health: starting)".
func notHealthy(status string) bool {
	return strings.HasSuffix(status, "(health: starting)") || strings.HasSuffix(status, "(unhealthy)")
}

func matchesLabels(wanted, found map[string]string) bool {
	for key, expected := range wanted {
		if found[key] != expected {
			return false
		}
	}

	return true
}
