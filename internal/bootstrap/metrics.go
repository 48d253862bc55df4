package bootstrap

import (
	"context"
	"errors"
	"log/slog"

	"walrus-agent/internal/config"
	"walrus-agent/internal/observability/metrics"
	"walrus-agent/pkg/logger"
)

// StartMetrics 在配置了独立地址时后台暴露 /metrics，ctx 取消时关闭。
func StartMetrics(ctx context.Context, cfg config.ServerConfig) {
	if cfg.MetricsAddress == "" {
		return
	}
	go func() {
		if err := metrics.StartServer(ctx, cfg.MetricsAddress); err != nil && !errors.Is(err, context.Canceled) {
			logger.Component("metrics").Error("metrics server stopped",
				slog.String("address", cfg.MetricsAddress),
				slog.String("error", err.Error()))
		}
	}()
}
