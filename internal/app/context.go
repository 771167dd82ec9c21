package app

import (
	"context"
	"errors"
	"fmt"

	"polling/internal/config"
	"polling/internal/domain"
	"polling/internal/engine"
)

// ResolveOrganization returns the organization deployed in the workspace
// database. When nothing is deployed yet it deploys the organization described
// by the workspace's polling.yml.
func ResolveOrganization(ctx context.Context, workspace string, e engine.Engine) (domain.Organization, error) {
	org, err := e.Organization(ctx)
	if err == nil {
		return org, nil
	}
	if !errors.Is(err, engine.ErrNotDeployed) {
		return domain.Organization{}, err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return domain.Organization{}, err
	}
	if cfg == nil {
		return domain.Organization{}, fmt.Errorf("%w; create %s with poll config init --owner-address <addr>", engine.ErrNotDeployed, config.Path(workspace))
	}
	return Deploy(ctx, cfg, e)
}

// Deploy deploys the organization described by cfg.
func Deploy(ctx context.Context, cfg *config.Config, e engine.Engine) (domain.Organization, error) {
	seed, err := cfg.Seed()
	if err != nil {
		return domain.Organization{}, err
	}
	return e.Deploy(ctx, seed)
}
