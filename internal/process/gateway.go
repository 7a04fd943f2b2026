package process

import (
	"context"
	"time"

	"github.com/nerrad567/autoscan-core/internal/infrastructure/config"
)

// GatewayProcessName is the name used in logs for the supervised gateway.
const GatewayProcessName = "scanner-gateway"

// ForGateway maps the gateway config section onto a manager Config.
// health, if not nil, is polled to detect a hung gateway.
func ForGateway(cfg config.GatewayConfig, health func(ctx context.Context) error) Config {
	c := DefaultConfig(GatewayProcessName, cfg.Binary, cfg.Args)
	c.RestartOnFailure = cfg.RestartOnFailure
	c.MaxRestartAttempts = cfg.MaxRestartAttempts
	if cfg.RestartDelaySeconds > 0 {
		c.RestartDelay = time.Duration(cfg.RestartDelaySeconds) * time.Second
	}
	c.HealthCheckFunc = health
	if cfg.CommandTimeout > 0 {
		c.HealthCheckTimeout = cfg.CommandTimeout
	}
	return c
}
