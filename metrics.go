/*
Copyright © 2019 the windstorm authors.
This file is part of windstorm.

windstorm is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

windstorm is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with windstorm.  If not, see <http://www.gnu.org/licenses/>.
*/

package windstorm

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and histograms for footprint
// ingestion.
type Metrics struct {
	FilesIngested prometheus.Counter
	FilesSkipped  prometheus.Counter

	// Cells counts native footprint cells by outcome: mapped onto a
	// target centroid or dropped.
	Cells *prometheus.CounterVec

	// Alignments counts files by alignment method.
	Alignments *prometheus.CounterVec

	FileDuration prometheus.Histogram
}

// NewMetrics creates ingestion metrics and registers them with reg.
// If reg is nil, the metrics are not registered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FilesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "windstorm",
			Name:      "files_ingested_total",
			Help:      "Footprint files added to the hazard.",
		}),
		FilesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "windstorm",
			Name:      "files_skipped_total",
			Help:      "Footprint files skipped because they were malformed or couldn't be aligned.",
		}),
		Cells: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "windstorm",
			Name:      "cells_total",
			Help:      "Native footprint cells by alignment outcome.",
		}, []string{"outcome"}),
		Alignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "windstorm",
			Name:      "alignments_total",
			Help:      "Footprint files by grid alignment method.",
		}, []string{"method"}),
		FileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "windstorm",
			Name:      "file_duration_seconds",
			Help:      "Time to parse and align a footprint file.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.FilesIngested,
			m.FilesSkipped,
			m.Cells,
			m.Alignments,
			m.FileDuration,
		)
	}
	return m
}

func (m *Metrics) observeFile(mapping *Mapping, start time.Time) {
	if m == nil {
		return
	}
	m.FilesIngested.Inc()
	m.Cells.WithLabelValues("mapped").Add(float64(mapping.Mapped))
	m.Cells.WithLabelValues("dropped").Add(float64(mapping.Dropped))
	m.Alignments.WithLabelValues(mapping.Method.String()).Inc()
	m.FileDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) skipFile() {
	if m == nil {
		return
	}
	m.FilesSkipped.Inc()
}
