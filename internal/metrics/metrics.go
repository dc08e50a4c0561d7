// go-dmcomm
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-dmcomm.
//
// go-dmcomm is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-dmcomm is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-dmcomm; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Package metrics exposes exchange outcomes to Prometheus
package metrics

import (
	"net/http"

	dmcomm "github.com/ZaparooProject/go-dmcomm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry creates a registry with the Go and process collectors
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves reg in the Prometheus exposition format
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Metrics are the exchange counters. It implements dmcomm.Observer.
type Metrics struct {
	OutcomesTotal      *prometheus.CounterVec // labels: family, result
	PacketsTotal       *prometheus.CounterVec // labels: family, status
	AutofixTotal       *prometheus.CounterVec // labels: family
	ConversationsTotal *prometheus.CounterVec // labels: family, result=ok|failed|error
}

// New registers and returns the exchange metrics
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OutcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dmcomm_outcomes_total",
			Help: "Receive step outcomes by family and result.",
		}, []string{"family", "result"}),
		PacketsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dmcomm_packets_total",
			Help: "Framed duty-coded packets by family and status.",
		}, []string{"family", "status"}),
		AutofixTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dmcomm_autofix_total",
			Help: "Packets repaired by a single-bit fix.",
		}, []string{"family"}),
		ConversationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dmcomm_conversations_total",
			Help: "Conversations by family and result.",
		}, []string{"family", "result"}),
	}
	reg.MustRegister(m.OutcomesTotal, m.PacketsTotal, m.AutofixTotal, m.ConversationsTotal)
	return m
}

func statusLabel(s dmcomm.PacketStatus) string {
	switch s {
	case dmcomm.PacketValid:
		return "valid"
	case dmcomm.PacketAutofixed:
		return "autofixed"
	case dmcomm.PacketChecksumFailed:
		return "chkfail"
	case dmcomm.PacketFramingError:
		return "error"
	case dmcomm.PacketNoise:
		return "noise"
	default:
		return "unknown"
	}
}

// ObserveOutcome implements dmcomm.Observer
func (m *Metrics) ObserveOutcome(f dmcomm.Family, o dmcomm.Outcome) {
	family := f.String()
	m.OutcomesTotal.WithLabelValues(family, o.Kind.String()).Inc()
	for _, p := range o.Packets {
		m.PacketsTotal.WithLabelValues(family, statusLabel(p.Status)).Inc()
	}
	if n := o.Autofixed(); n > 0 {
		m.AutofixTotal.WithLabelValues(family).Add(float64(n))
	}
}

// ObserveConversation counts a finished conversation. err is the error
// returned alongside the result by dmcomm.Exchanger.Run.
func (m *Metrics) ObserveConversation(f dmcomm.Family, result *dmcomm.Result, err error) {
	label := "ok"
	switch {
	case err != nil:
		label = "error"
	case result == nil || !result.OK():
		label = "failed"
	}
	m.ConversationsTotal.WithLabelValues(f.String(), label).Inc()
}
