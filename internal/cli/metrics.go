package cli

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// MetricSample is one gathered series. Value is the counter value, or the
// observation count for a histogram, whose Sum is set as well.
type MetricSample struct {
	Name   string            `json:"name"`
	Labels map[string]string `json:"labels,omitempty"`
	Value  float64           `json:"value"`
	Sum    *float64          `json:"sum,omitempty"`
}

// MetricsReport holds what a run recorded into its registry, both as samples
// for JSON and in the Prometheus text exposition format.
type MetricsReport struct {
	Samples []MetricSample `json:"samples"`
	text    string
}

// gatherMetrics snapshots every family registered with g.
func gatherMetrics(g prometheus.Gatherer) (*MetricsReport, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}

	report := &MetricsReport{Samples: []MetricSample{}}
	var text strings.Builder
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&text, mf); err != nil {
			return nil, fmt.Errorf("encode metric %s: %w", mf.GetName(), err)
		}
		for _, m := range mf.GetMetric() {
			s := MetricSample{Name: mf.GetName()}
			if pairs := m.GetLabel(); len(pairs) > 0 {
				s.Labels = make(map[string]string, len(pairs))
				for _, lp := range pairs {
					s.Labels[lp.GetName()] = lp.GetValue()
				}
			}
			switch {
			case m.GetCounter() != nil:
				s.Value = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				s.Value = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				s.Value = float64(h.GetSampleCount())
				sum := h.GetSampleSum()
				s.Sum = &sum
			}
			report.Samples = append(report.Samples, s)
		}
	}
	report.text = text.String()
	return report, nil
}
