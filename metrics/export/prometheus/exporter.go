package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	voicegrant "github.com/MrEthical07/voicegrant"
	"github.com/MrEthical07/voicegrant/metrics/export/internaldefs"
)

// Source is what the exporter reads on every scrape. [voicegrant.Engine]
// satisfies it.
type Source interface {
	MetricsSnapshot() voicegrant.MetricsSnapshot
	AuditDropped() uint64
	Ready() error
}

// Exporter renders engine metrics in Prometheus text exposition format.
type Exporter struct {
	source Source
}

func NewExporter(source Source) *Exporter {
	return &Exporter{source: source}
}

// Handler serves Render on every request.
func (p *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render writes one scrape. Issue and verify families and the latency
// histogram are omitted while engine metrics are disabled; the key and audit
// series are always present.
func (p *Exporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	w := textWriter{}

	if len(snapshot.Counters) > 0 {
		for _, f := range internaldefs.Families {
			w.header(f.Name, f.Help, "counter")
			for _, o := range f.Outcomes {
				w.sample(f.Name, f.Label, o.Value, strconv.FormatUint(snapshot.Counters[o.ID], 10))
			}
		}
	}

	if raw, ok := snapshot.Histograms[voicegrant.MetricIssueLatency]; ok {
		cumulative := internaldefs.Cumulative(raw)
		w.header(internaldefs.LatencyName, internaldefs.LatencyHelp, "histogram")
		for i, le := range internaldefs.LatencyBounds {
			w.sample(internaldefs.LatencyName+"_bucket", "le", le, strconv.FormatUint(cumulative[i], 10))
		}
		w.sample(internaldefs.LatencyName+"_sum", "", "", strconv.FormatFloat(snapshot.IssueLatencySum.Seconds(), 'g', -1, 64))
		w.sample(internaldefs.LatencyName+"_count", "", "", strconv.FormatUint(cumulative[internaldefs.LatencyBuckets-1], 10))
	}

	w.header(internaldefs.KeysConfiguredName, internaldefs.KeysConfiguredHelp, "gauge")
	w.sample(internaldefs.KeysConfiguredName, "", "", strconv.FormatInt(internaldefs.KeysConfigured(p.source.Ready()), 10))

	w.header(internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, "counter")
	w.sample(internaldefs.AuditDroppedName, "", "", strconv.FormatUint(p.source.AuditDropped(), 10))

	return w.String()
}

type textWriter struct {
	strings.Builder
}

func (w *textWriter) header(name, help, kind string) {
	w.WriteString("# HELP ")
	w.WriteString(name)
	w.WriteByte(' ')
	w.WriteString(escapeHelp(help))
	w.WriteString("\n# TYPE ")
	w.WriteString(name)
	w.WriteByte(' ')
	w.WriteString(kind)
	w.WriteByte('\n')
}

// sample writes one line. An empty label writes the bare series name.
func (w *textWriter) sample(name, label, value, number string) {
	w.WriteString(name)
	if label != "" {
		w.WriteByte('{')
		w.WriteString(label)
		w.WriteString(`="`)
		w.WriteString(value)
		w.WriteString(`"}`)
	}
	w.WriteByte(' ')
	w.WriteString(number)
	w.WriteByte('\n')
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, `\`, `\\`)
	return strings.ReplaceAll(help, "\n", `\n`)
}
