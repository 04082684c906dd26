package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OtelAPI forwards everything to an inner API and additionally records
// ReportCount values as an otel gauge keyed by id.
type OtelAPI struct {
	inner API
	gauge metric.Int64Gauge
}

func NewOtelAPI(meterName string, inner API) OtelAPI {
	gauge, err := otel.Meter(meterName).Int64Gauge("report_count")
	if err != nil {
		inner.ReportBroken("otel.gauge", err)
	}
	return OtelAPI{inner: inner, gauge: gauge}
}

func (o OtelAPI) ReportBroken(id string, params ...any) {
	o.inner.ReportBroken(id, params...)
}

func (o OtelAPI) ReportWarning(id string, params ...any) {
	o.inner.ReportWarning(id, params...)
}

func (o OtelAPI) ReportDebug(msg string, params ...any) {
	o.inner.ReportDebug(msg, params...)
}

func (o OtelAPI) ReportCount(id string, count int64) {
	o.inner.ReportCount(id, count)
	if o.gauge == nil {
		return
	}
	o.gauge.Record(
		context.Background(),
		count,
		metric.WithAttributes(attribute.String("id", id)),
	)
}
