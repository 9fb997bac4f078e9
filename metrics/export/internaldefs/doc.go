// Package internaldefs holds the series names, outcome labels and latency
// buckets shared by the Prometheus and OTel exporters, so both describe the
// engine the same way.
//
// It performs no I/O and imports no exporter package.
package internaldefs
