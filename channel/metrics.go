// Copyright 2018 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package channel

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the channel collectors. Several channels may share one Metrics. A nil
// *Metrics records nothing.
type Metrics struct {
	bytesRead    prometheus.Counter
	bytesWritten prometheus.Counter
	bulkCopies   *prometheus.CounterVec
	bulkBytes    *prometheus.CounterVec
	mappings     *prometheus.CounterVec
	failures     prometheus.Counter
}

// NewMetrics registers the channel collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		bytesRead: f.NewCounter(prometheus.CounterOpts{
			Namespace: "dcmstream",
			Name:      "channel_read_bytes_total",
			Help:      "Bytes delivered by channel reads.",
		}),
		bytesWritten: f.NewCounter(prometheus.CounterOpts{
			Namespace: "dcmstream",
			Name:      "channel_written_bytes_total",
			Help:      "Bytes accepted by channel writes.",
		}),
		bulkCopies: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dcmstream",
			Name:      "channel_bulk_copies_total",
			Help:      "Bulk copies by transfer path.",
		}, []string{"path"}),
		bulkBytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dcmstream",
			Name:      "channel_bulk_copied_bytes_total",
			Help:      "Bytes moved by bulk copies by transfer path.",
		}, []string{"path"}),
		mappings: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dcmstream",
			Name:      "channel_mapped_reads_total",
			Help:      "Mapped reads by backing (mmap or copy).",
		}, []string{"backing"}),
		failures: f.NewCounter(prometheus.CounterOpts{
			Namespace: "dcmstream",
			Name:      "channel_failures_total",
			Help:      "Channels that entered the failed state.",
		}),
	}
}

func (m *Metrics) read(n int) {
	if m != nil {
		m.bytesRead.Add(float64(n))
	}
}

func (m *Metrics) wrote(n int) {
	if m != nil {
		m.bytesWritten.Add(float64(n))
	}
}

func (m *Metrics) bulk(path string, n int64) {
	if m != nil {
		m.bulkCopies.WithLabelValues(path).Inc()
		m.bulkBytes.WithLabelValues(path).Add(float64(n))
	}
}

func (m *Metrics) mapping(backing string) {
	if m != nil {
		m.mappings.WithLabelValues(backing).Inc()
	}
}

func (m *Metrics) failed() {
	if m != nil {
		m.failures.Inc()
	}
}
