// Package metrics exposes hub and registry counters in the Prometheus text
// exposition format at GET /metrics.
//
// Families are built as client_model protobufs on every scrape and encoded
// with prometheus/common/expfmt:
//
//	aicebreaker_identities_registered      gauge
//	aicebreaker_participants_connected     gauge
//	aicebreaker_observers_connected        gauge
//	aicebreaker_events_delivered_total     counter
//	aicebreaker_delivery_failures_total    counter
//	aicebreaker_inbound_malformed_total    counter
//	aicebreaker_inbound_rate_limited_total counter
//	aicebreaker_admissions_rejected_total  counter
package metrics

import (
	"bytes"
	"log/slog"
	"net/http"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/aicebreaker/aicebreaker/server/internal/hub"
)

// StatsSource reports cumulative hub counters.
type StatsSource interface {
	Stats() hub.Stats
}

// PoolSource reports registry and pool sizes.
type PoolSource interface {
	Counts() (identities, participants, observers int)
}

// Gather builds the current metric families.
func Gather(s StatsSource, p PoolSource) []*dto.MetricFamily {
	st := s.Stats()
	identities, participants, observers := p.Counts()

	return []*dto.MetricFamily{
		gauge("aicebreaker_identities_registered", "Number of registered participant identities.", float64(identities)),
		gauge("aicebreaker_participants_connected", "Number of live participant connections.", float64(participants)),
		gauge("aicebreaker_observers_connected", "Number of live observer connections.", float64(observers)),
		counter("aicebreaker_events_delivered_total", "Events queued to a recipient.", float64(st.Delivered)),
		counter("aicebreaker_delivery_failures_total", "Per-recipient send failures during fan-out.", float64(st.Failed)),
		counter("aicebreaker_inbound_malformed_total", "Inbound participant messages dropped as malformed.", float64(st.Malformed)),
		counter("aicebreaker_inbound_rate_limited_total", "Inbound participant messages dropped by the rate limiter.", float64(st.RateLimited)),
		counter("aicebreaker_admissions_rejected_total", "Participant connections refused at admission.", float64(st.Rejected)),
	}
}

// Handler returns an http.Handler serving the text exposition format.
func Handler(s StatsSource, p PoolSource) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var buf bytes.Buffer
		for _, mf := range Gather(s, p) {
			if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
				slog.Error("metrics: encode failed", "family", mf.GetName(), "err", err)
				http.Error(w, "encode metrics", http.StatusInternalServerError)
				return
			}
		}
		w.Header().Set("Content-Type", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
		w.Write(buf.Bytes()) //nolint:errcheck
	})
}

func gauge(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   proto.String(name),
		Help:   proto.String(help),
		Type:   dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{{Gauge: &dto.Gauge{Value: proto.Float64(v)}}},
	}
}

func counter(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   proto.String(name),
		Help:   proto.String(help),
		Type:   dto.MetricType_COUNTER.Enum(),
		Metric: []*dto.Metric{{Counter: &dto.Counter{Value: proto.Float64(v)}}},
	}
}
