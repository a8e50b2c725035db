package main

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	otelexport "github.com/MrEthical07/authcore/metrics/export/otel"
)

// otelMetrics serves the engine metrics as collected through the OTel SDK.
// It exists for deployments that check the OTel pipeline without running a
// collector.
type otelMetrics struct {
	reader   *sdkmetric.ManualReader
	provider *sdkmetric.MeterProvider
	exporter *otelexport.Exporter
}

type otelPoint struct {
	Attributes map[string]string `json:"attributes,omitempty"`
	Value      int64             `json:"value"`
}

func newOTelMetrics(source otelexport.Source) (*otelMetrics, error) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	exp, err := otelexport.New(provider.Meter("github.com/MrEthical07/authcore"), source)
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, fmt.Errorf("otel metrics: %w", err)
	}
	return &otelMetrics{reader: reader, provider: provider, exporter: exp}, nil
}

func (m *otelMetrics) collect(ctx context.Context) (map[string][]otelPoint, error) {
	var rm metricdata.ResourceMetrics
	if err := m.reader.Collect(ctx, &rm); err != nil {
		return nil, err
	}

	out := make(map[string][]otelPoint)
	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			sum, ok := metric.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			points := make([]otelPoint, 0, len(sum.DataPoints))
			for _, dp := range sum.DataPoints {
				p := otelPoint{Value: dp.Value}
				for _, kv := range dp.Attributes.ToSlice() {
					if p.Attributes == nil {
						p.Attributes = make(map[string]string)
					}
					p.Attributes[string(kv.Key)] = kv.Value.Emit()
				}
				points = append(points, p)
			}
			sort.Slice(points, func(i, j int) bool { return points[i].Value < points[j].Value })
			out[metric.Name] = points
		}
	}
	return out, nil
}

func (m *otelMetrics) handler(w http.ResponseWriter, r *http.Request) {
	snapshot, err := m.collect(r.Context())
	if err != nil {
		http.Error(w, "collect failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (m *otelMetrics) close() {
	_ = m.exporter.Close()
	_ = m.provider.Shutdown(context.Background())
}
