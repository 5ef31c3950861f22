package client

import (
	"context"
	"fmt"

	"github.com/ianremillard/wireline/internal/registry"
	"github.com/ianremillard/wireline/internal/schema"
)

// ListProjects issues a ListProjects request over r and decodes the
// result into registry.Project values.
func ListProjects(ctx context.Context, r Requester) ([]registry.Project, error) {
	rsp, err := r.Request(ctx, schema.Request{ListProjects: &schema.RequestListProjects{}})
	if err != nil {
		return nil, fmt.Errorf("client: list projects: %w", err)
	}
	if rsp.Status != schema.StatusOK {
		return nil, fmt.Errorf("client: list projects: %s", rsp.Error)
	}
	if rsp.ListProjects == nil {
		return nil, fmt.Errorf("client: list projects: server response carried no projects field")
	}

	out := make([]registry.Project, len(rsp.ListProjects.Projects))
	for i, p := range rsp.ListProjects.Projects {
		out[i] = registry.FromWire(p)
	}
	return out, nil
}
