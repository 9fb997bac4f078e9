// Package otel mirrors voicegrant metrics into OpenTelemetry observable
// instruments.
//
// Issue outcomes are one Int64ObservableCounter with an outcome attribute;
// verification results use a result attribute. Latency buckets are a single
// gauge keyed by an le attribute. One callback reads
// [voicegrant.Engine.MetricsSnapshot] per collection cycle.
//
// The caller owns the MeterProvider. The exporter never mutates engine state.
package otel
