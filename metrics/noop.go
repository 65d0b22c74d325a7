// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package metrics

import "net/http"

func noop() Metrics { return &noopMetrics{} }

// noopMetrics hands out meters that drop every observation.
type noopMetrics struct{}

type noopMeters struct{}

func (n *noopMetrics) GetOrCreateCountMeter(string) CountMeter { return &noopMeters{} }

func (n *noopMetrics) GetOrCreateCountVecMeter(string, []string) CountVecMeter {
	return &noopMeters{}
}

func (n *noopMetrics) GetOrCreateGaugeMeter(string) GaugeMeter { return &noopMeters{} }

func (n *noopMetrics) GetOrCreateGaugeVecMeter(string, []string) GaugeVecMeter {
	return &noopMeters{}
}

func (n *noopMetrics) GetOrCreateHistogramMeter(string, []int64) HistogramMeter {
	return &noopMeters{}
}

func (n *noopMetrics) GetOrCreateHistogramVecMeter(string, []string, []int64) HistogramVecMeter {
	return &noopMeters{}
}

func (n *noopMetrics) GetOrCreateHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotImplemented)
	})
}

func (m *noopMeters) Add(int64)                                  {}
func (m *noopMeters) Set(int64)                                  {}
func (m *noopMeters) AddWithLabel(int64, map[string]string)      {}
func (m *noopMeters) SetWithLabel(int64, map[string]string)      {}
func (m *noopMeters) Observe(int64)                              {}
func (m *noopMeters) ObserveWithLabels(int64, map[string]string) {}
