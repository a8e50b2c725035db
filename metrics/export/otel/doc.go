// Package otel mirrors authcore engine metrics as OpenTelemetry observable
// instruments. Callers own the MeterProvider and pass a Meter in.
package otel
