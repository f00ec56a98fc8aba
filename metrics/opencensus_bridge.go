// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"context"
	"fmt"
	"net/http"

	ocprometheus "contrib.go.opencensus.io/exporter/prometheus"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

// opsCompleted is an opencensus measure kept alongside the otel
// instruments in otel_metrics.go: the teacher carries both an
// opencensus and an otel metrics path side by side during its
// migration to otel, and this module does the same for its one
// legacy-shaped counter (total completed ops by provider), exported
// through the opencensus Prometheus exporter rather than the otel one.
var (
	opsCompleted    = stats.Int64("fs9/ops_completed", "provider operations completed", stats.UnitDimensionless)
	keyProviderName = tag.MustNewKey("provider")
)

// RecordLegacyOpCompleted increments the opencensus-side counter for
// provider. Call sites that also call MetricHandle.OpCount are
// intentionally double-counting across the two systems during the
// migration window, matching the teacher's own dual-reporting period.
func RecordLegacyOpCompleted(provider string) {
	ctx, err := tag.New(context.Background(), tag.Upsert(keyProviderName, provider))
	if err != nil {
		return
	}
	stats.Record(ctx, opsCompleted.M(1))
}

// NewOpenCensusPrometheusExporter registers the opsCompleted view and
// returns an http.Handler serving it in Prometheus exposition format
// at the given namespace; cmd/serve.go mounts it at /metrics/legacy,
// next to the default Prometheus registry at /metrics.
func NewOpenCensusPrometheusExporter(namespace string) (http.Handler, error) {
	exporter, err := ocprometheus.NewExporter(ocprometheus.Options{Namespace: namespace})
	if err != nil {
		return nil, fmt.Errorf("metrics: create opencensus prometheus exporter: %w", err)
	}

	v := &view.View{
		Name:        "fs9/ops_completed",
		Measure:     opsCompleted,
		Description: "provider operations completed, by provider",
		TagKeys:     []tag.Key{keyProviderName},
		Aggregation: view.Count(),
	}
	if err := view.Register(v); err != nil {
		return nil, fmt.Errorf("metrics: register opencensus view: %w", err)
	}
	view.RegisterExporter(exporter)

	return exporter, nil
}
