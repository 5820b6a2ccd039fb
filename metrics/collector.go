/*
 * This file is part of Cadenza (https://github.com/cadenzalabs/cadenza).
 * Copyright (C) 2026 Cadenza Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

// Package metrics exports the stream engine's counters to Prometheus.
// The engine keeps its counters as plain atomics so its real-time paths
// stay allocation- and lock-free; this package reads the snapshots at
// scrape time instead of instrumenting the hot paths directly.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cadenzalabs/cadenza/device"
	"github.com/cadenzalabs/cadenza/stream"
)

// Collector implements prometheus.Collector over an engine and a device
// registry. Register it with a prometheus.Registerer and every scrape
// reads a fresh Stats snapshot.
type Collector struct {
	engine  *stream.Engine
	devices *device.Registry

	buffersDropped    *prometheus.Desc
	silenceFills      *prometheus.Desc
	streamsCreated    *prometheus.Desc
	streamsClosed     *prometheus.Desc
	activeStreams     *prometheus.Desc
	registeredDevices *prometheus.Desc
}

// NewCollector creates a collector over the given engine and registry.
func NewCollector(engine *stream.Engine, devices *device.Registry) *Collector {
	return &Collector{
		engine:  engine,
		devices: devices,
		buffersDropped: prometheus.NewDesc(
			"cadenza_buffers_dropped_total",
			"Total number of captured buffers dropped on a full stream channel",
			nil, nil),
		silenceFills: prometheus.NewDesc(
			"cadenza_silence_fills_total",
			"Total number of playback callbacks that found an empty stream channel",
			nil, nil),
		streamsCreated: prometheus.NewDesc(
			"cadenza_streams_created_total",
			"Total number of streams created",
			nil, nil),
		streamsClosed: prometheus.NewDesc(
			"cadenza_streams_closed_total",
			"Total number of streams closed",
			nil, nil),
		activeStreams: prometheus.NewDesc(
			"cadenza_open_streams",
			"Current number of open streams",
			nil, nil),
		registeredDevices: prometheus.NewDesc(
			"cadenza_registered_devices",
			"Current number of devices in the registry cache",
			nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.buffersDropped
	ch <- c.silenceFills
	ch <- c.streamsCreated
	ch <- c.streamsClosed
	ch <- c.activeStreams
	ch <- c.registeredDevices
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.engine.Stats()
	ch <- prometheus.MustNewConstMetric(c.buffersDropped, prometheus.CounterValue, float64(s.BuffersDropped))
	ch <- prometheus.MustNewConstMetric(c.silenceFills, prometheus.CounterValue, float64(s.SilenceFills))
	ch <- prometheus.MustNewConstMetric(c.streamsCreated, prometheus.CounterValue, float64(s.StreamsCreated))
	ch <- prometheus.MustNewConstMetric(c.streamsClosed, prometheus.CounterValue, float64(s.StreamsClosed))
	ch <- prometheus.MustNewConstMetric(c.activeStreams, prometheus.GaugeValue, float64(s.ActiveStreams))
	ch <- prometheus.MustNewConstMetric(c.registeredDevices, prometheus.GaugeValue, float64(c.devices.Len()))
}
