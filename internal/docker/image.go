package docker

import (
	"context"
	"fmt"

	"github.com/moby/moby/client"
)

type imageInspector interface {
	ImageInspect(ctx context.Context, imageID string, opts ...client.ImageInspectOption) (client.ImageInspectResult, error)
}

// ImageSize returns the on-disk size in bytes of a local image, as reported
// by the Docker Engine for `docker image inspect --format '{{.Size}}'`.
func ImageSize(ctx context.Context, ref string) (int64, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return 0, fmt.Errorf("creating docker client: %w", err)
	}
	defer cli.Close()
	return imageSize(ctx, cli, ref)
}

func imageSize(ctx context.Context, cli imageInspector, ref string) (int64, error) {
	if ref == "" {
		return 0, fmt.Errorf("image reference is empty")
	}
	res, err := cli.ImageInspect(ctx, ref)
	if err != nil {
		return 0, fmt.Errorf("inspecting image %s: %w", ref, err)
	}
	if res.Size <= 0 {
		return 0, fmt.Errorf("image %s reports no size", ref)
	}
	return res.Size, nil
}
