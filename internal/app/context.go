package app

import (
	"context"
	"errors"
	"fmt"

	"fleetline/internal/config"
	"fleetline/internal/engine"
	"fleetline/internal/repo"
)

// ResolveYacht picks the active yacht for a CLI invocation. It prefers the
// explicit override, then the config file, then a single-yacht database.
// A missing yacht is created on the fly with the caller as captain.
func ResolveYacht(ctx context.Context, e engine.Engine, cfg *config.Config, yachtOverride, actorID string) (string, error) {
	yachtID := yachtOverride
	if yachtID == "" && cfg != nil {
		yachtID = cfg.Yacht.ID
	}
	if yachtID == "" {
		y, err := e.Repo.SingleYacht(ctx)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return "", fmt.Errorf("no yacht configured; use --yacht or fl yacht create")
			}
			return "", err
		}
		return y.ID, nil
	}
	if _, err := e.Repo.GetYacht(ctx, yachtID); err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return "", err
		}
		name := yachtID
		flag := ""
		if cfg != nil && cfg.Yacht.ID == yachtID {
			if cfg.Yacht.Name != "" {
				name = cfg.Yacht.Name
			}
			flag = cfg.Yacht.Flag
		}
		if _, err := e.InitYacht(ctx, yachtID, name, flag, actorID, ""); err != nil {
			return "", fmt.Errorf("create yacht %s: %w", yachtID, err)
		}
	}
	return yachtID, nil
}
