// SPDX-License-Identifier: MIT

package flops

import "github.com/prometheus/client_golang/prometheus"

// MetricName is the fully qualified name of the exported counter family.
const MetricName = "hss_flops_total"

// Collector exports Counters as the counter family hss_flops_total{phase}.
// Values are read at scrape time; registering a Collector does not copy.
type Collector struct {
	counters *Counters
	desc     *prometheus.Desc
}

// NewCollector wraps c for registration with a prometheus.Registerer.
func NewCollector(c *Counters) *Collector {
	return &Collector{
		counters: c,
		desc: prometheus.NewDesc(
			MetricName,
			"Floating point operations per algorithmic phase.",
			[]string{"phase"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) { ch <- c.desc }

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, p := range Phases() {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue,
			float64(c.counters.Load(p)), p.String())
	}
}
