package otel

import (
	"context"
	"errors"
	"fmt"

	voicegrant "github.com/MrEthical07/voicegrant"
	"github.com/MrEthical07/voicegrant/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// Source is what the exporter observes on every collection. [voicegrant.Engine]
// satisfies it.
type Source interface {
	MetricsSnapshot() voicegrant.MetricsSnapshot
	AuditDropped() uint64
	Ready() error
}

// family is one observable counter with a precomputed attribute set per
// outcome, so collection allocates nothing per outcome.
type family struct {
	def     internaldefs.Family
	counter metric.Int64ObservableCounter
	attrs   []metric.ObserveOption
}

// Exporter mirrors engine metrics into OTel observable instruments.
type Exporter struct {
	source       Source
	registration metric.Registration

	families       []family
	latencyBuckets metric.Int64ObservableGauge
	latencyLE      [internaldefs.LatencyBuckets]metric.ObserveOption
	latencyCount   metric.Int64ObservableCounter
	latencySum     metric.Float64ObservableCounter
	keysConfigured metric.Int64ObservableGauge
	auditDropped   metric.Int64ObservableCounter
}

// NewExporter creates the instruments on meter and registers one callback
// that reads source. Close unregisters it.
func NewExporter(meter metric.Meter, source Source) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source}
	var observables []metric.Observable

	for _, def := range internaldefs.Families {
		counter, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", def.Name, err)
		}
		f := family{def: def, counter: counter, attrs: make([]metric.ObserveOption, len(def.Outcomes))}
		for i, o := range def.Outcomes {
			f.attrs[i] = metric.WithAttributeSet(attribute.NewSet(attribute.String(def.Label, o.Value)))
		}
		e.families = append(e.families, f)
		observables = append(observables, counter)
	}

	var err error
	if e.latencyBuckets, err = meter.Int64ObservableGauge(
		internaldefs.LatencyName+"_bucket",
		metric.WithDescription("Cumulative issuance latency bucket counts, labelled by le."),
	); err != nil {
		return nil, fmt.Errorf("create latency buckets: %w", err)
	}
	for i, le := range internaldefs.LatencyBounds {
		e.latencyLE[i] = metric.WithAttributeSet(attribute.NewSet(attribute.String("le", le)))
	}
	if e.latencyCount, err = meter.Int64ObservableCounter(
		internaldefs.LatencyName+"_count",
		metric.WithDescription("Issuance latency samples."),
	); err != nil {
		return nil, fmt.Errorf("create latency count: %w", err)
	}
	if e.latencySum, err = meter.Float64ObservableCounter(
		internaldefs.LatencyName+"_sum",
		metric.WithDescription(internaldefs.LatencyHelp),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("create latency sum: %w", err)
	}
	if e.keysConfigured, err = meter.Int64ObservableGauge(
		internaldefs.KeysConfiguredName,
		metric.WithDescription(internaldefs.KeysConfiguredHelp),
	); err != nil {
		return nil, fmt.Errorf("create keys gauge: %w", err)
	}
	if e.auditDropped, err = meter.Int64ObservableCounter(
		internaldefs.AuditDroppedName,
		metric.WithDescription(internaldefs.AuditDroppedHelp),
	); err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	observables = append(observables, e.latencyBuckets, e.latencyCount, e.latencySum, e.keysConfigured, e.auditDropped)

	if e.registration, err = meter.RegisterCallback(e.observe, observables...); err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()

	if len(snapshot.Counters) > 0 {
		for _, f := range e.families {
			for i, outcome := range f.def.Outcomes {
				o.ObserveInt64(f.counter, int64(snapshot.Counters[outcome.ID]), f.attrs[i])
			}
		}
	}

	if raw, ok := snapshot.Histograms[voicegrant.MetricIssueLatency]; ok {
		cumulative := internaldefs.Cumulative(raw)
		for i, n := range cumulative {
			o.ObserveInt64(e.latencyBuckets, int64(n), e.latencyLE[i])
		}
		o.ObserveInt64(e.latencyCount, int64(cumulative[internaldefs.LatencyBuckets-1]))
		o.ObserveFloat64(e.latencySum, snapshot.IssueLatencySum.Seconds())
	}

	o.ObserveInt64(e.keysConfigured, internaldefs.KeysConfigured(e.source.Ready()))
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
