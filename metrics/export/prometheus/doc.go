// Package prometheus exposes authcore engine metrics to Prometheus.
//
// [Exporter] is a prometheus.Collector that reads one engine snapshot per
// scrape. Register it on any registry, or mount [Exporter.Handler] which
// serves a private registry. Counters are named authcore_*_total and the
// latency histograms authcore_*_latency_seconds.
//
// The exporter never mutates engine state and never touches the global
// default registry.
package prometheus
