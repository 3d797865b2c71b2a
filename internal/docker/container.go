package docker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"

	"github.com/shinji-kodama/matchering-bridge/internal/model"
)

// ContainerInfo describes a tool container found on the daemon.
type ContainerInfo struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Tool      string            `json:"tool"`
	RunID     string            `json:"runId,omitempty"`
	State     string            `json:"state"`
	CreatedAt time.Time         `json:"createdAt"`
	Labels    map[string]string `json:"-"`
}

// ListManagedContainers returns all containers (running or not) that carry
// the matchering-bridge management label.
func ListManagedContainers(ctx context.Context, cli *Client) ([]ContainerInfo, error) {
	containers, err := cli.Inner().ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", FilterLabel())),
	})
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			"failed to list Docker containers",
			err,
		)
	}

	result := make([]ContainerInfo, 0, len(containers))
	for _, c := range containers {
		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}
		created, err := ParseCreatedAt(c.Labels)
		if err != nil {
			created = time.Unix(c.Created, 0).UTC()
		}
		result = append(result, ContainerInfo{
			ID:        c.ID,
			Name:      name,
			Tool:      c.Labels[LabelTool],
			RunID:     c.Labels[LabelRunID],
			State:     c.State,
			CreatedAt: created,
			Labels:    c.Labels,
		})
	}
	return result, nil
}

// StaleContainers selects the containers PruneTools removes: every
// stopped container, and running ones older than maxAge (a run that
// outlived its timeout because the CLI was killed).
func StaleContainers(containers []ContainerInfo, maxAge time.Duration, now time.Time) []ContainerInfo {
	var out []ContainerInfo
	for _, c := range containers {
		if c.State != "running" || now.Sub(c.CreatedAt) > maxAge {
			out = append(out, c)
		}
	}
	return out
}

// PruneTools removes stale tool containers and returns the removed ones.
func PruneTools(ctx context.Context, cli *Client, maxAge time.Duration) ([]ContainerInfo, error) {
	containers, err := ListManagedContainers(ctx, cli)
	if err != nil {
		return nil, err
	}

	var removed []ContainerInfo
	for _, c := range StaleContainers(containers, maxAge, time.Now()) {
		if err := RemoveContainer(ctx, cli, c.ID, true); err != nil {
			return removed, err
		}
		removed = append(removed, c)
	}
	return removed, nil
}

// RemoveContainer removes a container, killing it first when force is set.
func RemoveContainer(ctx context.Context, cli *Client, containerID string, force bool) error {
	err := cli.Inner().ContainerRemove(ctx, containerID, container.RemoveOptions{
		Force: force,
	})
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to remove container %q", containerID),
			err,
		)
	}
	return nil
}
