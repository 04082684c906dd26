package main

import (
	"context"
	"log/slog"
	"umsassist-backend/cmd/ums-cli/commands"
	"umsassist-backend/internal/components/telemetry"
)

func main() {
	ctx := context.Background()
	telemetry.InitSlog(false)
	providers, err := telemetry.SetupFromEnv(ctx, "ums-cli")
	if err != nil {
		slog.Warn("setup telemetry", "err", err)
	}
	defer providers.Shutdown(ctx)
	commands.ExecuteContext(ctx)
}
