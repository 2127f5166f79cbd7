package resource

import (
	"context"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"

	"github.com/mangohow/mcpgate/errors"
)

// DockerController 资源id为容器名或容器id
type DockerController struct {
	cli *client.Client
}

// NewDockerController 默认读取 DOCKER_HOST 等环境变量, opts 可以覆盖
func NewDockerController(opts ...client.Opt) (*DockerController, error) {
	opts = append([]client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}, opts...)
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, errors.Wrap(errors.KindResource, errors.ReasonResourceUnavailable, "create docker client", err)
	}

	return &DockerController{cli: cli}, nil
}

func (d *DockerController) State(ctx context.Context, id string) (State, error) {
	info, err := d.cli.ContainerInspect(ctx, id)
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return StateNotFound, nil
		}
		return StateStopped, err
	}

	if info.ContainerJSONBase == nil || info.State == nil {
		return StateStopped, nil
	}
	if info.State.Running {
		return StateRunning, nil
	}

	return StateStopped, nil
}

func (d *DockerController) Start(ctx context.Context, id string) error {
	err := d.cli.ContainerStart(ctx, id, container.StartOptions{})
	if err != nil && cerrdefs.IsNotFound(err) {
		return notFound(id)
	}

	return err
}

func (d *DockerController) Close() error {
	return d.cli.Close()
}
