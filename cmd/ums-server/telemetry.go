package main

import (
	"context"
	"log/slog"
	"umsassist-backend/internal/components/telemetry"
	"umsassist-backend/pkg/restyutil"
	"umsassist-backend/pkg/serviceutil"
)

// InitTelemetry sets up logging and otel, in verbose mode the raw portal
// traffic is also dumped to .dev/resty/ums.
func InitTelemetry(ctx context.Context, verbose bool) (telemetry.API, restyutil.Output) {
	telemetry.InitSlog(verbose)

	if verbose {
		slog.DebugContext(ctx, "verbose logging enabled")
	}

	providers, err := telemetry.SetupFromEnv(ctx, "ums-server")
	if err != nil {
		serviceutil.Fatal("setup telemetry", err)
	}
	go func() {
		<-ctx.Done()
		err := providers.Shutdown(context.Background())
		if err != nil {
			slog.Warn("shutdown telemetry", "err", err)
		}
	}()

	tel := telemetry.NewOtelAPI("umsassist.server", telemetry.SlogAPI{})
	telemetry.InstrumentPerfStats(ctx, tel)

	if !verbose {
		return tel, nil
	}
	output, err := restyutil.NewFilesystemOutput(".dev/resty/ums")
	if err != nil {
		serviceutil.Fatal("create resty dump directory", err)
	}
	return tel, output
}
