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

// Package stream runs live audio streams: creation against a registered
// device, the real-time callback halves, the bounded channel between the
// audio thread and the rest of the process, and the pause/resume/close
// lifecycle.
//
// Three execution contexts touch a stream: the provider's real-time thread
// (through the feeds in feed.go), one forwarding goroutine per capture
// stream, and any number of control-plane callers. The engine's job is to
// keep those three from ever blocking each other.
package stream

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/decred/slog"
	"github.com/google/uuid"

	"github.com/cadenzalabs/cadenza/device"
	"github.com/cadenzalabs/cadenza/hardware"
)

// defaultChannelCapacity bounds each stream's buffer queue. The bound is
// the pipeline's sole flow-control mechanism: a lagging consumer costs at
// most this many buffers of memory, never unbounded growth.
const defaultChannelCapacity = 32

// Consumer receives captured buffers from a capture stream's forwarding
// goroutine, one call per hardware buffer, in strict arrival order. It runs
// off the real-time thread and may block; blocking long enough to fill the
// stream's channel shows up as dropped buffers in Stats.
type Consumer func(samples []float32)

// handle is the registered control state of one live stream.
type handle struct {
	id      string
	capture bool
	active  atomic.Bool
	buffers chan []float32

	// ctl serializes Start/Stop/Close on the hardware handle, which the
	// binding contract does not allow concurrently.
	ctl sync.Mutex
	hw  hardware.Stream
}

// Engine creates and controls audio streams on a provider's devices.
// All methods are safe for concurrent use.
type Engine struct {
	provider hardware.Provider
	devices  *device.Registry
	log      slog.Logger
	capacity int

	mu      sync.RWMutex
	streams map[string]*handle

	forwarders sync.WaitGroup

	buffersDropped atomic.Uint64
	silenceFills   atomic.Uint64
	streamsCreated atomic.Uint64
	streamsClosed  atomic.Uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger. The default discards everything.
func WithLogger(log slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithChannelCapacity overrides the per-stream buffer queue bound.
func WithChannelCapacity(capacity int) Option {
	return func(e *Engine) {
		if capacity > 0 {
			e.capacity = capacity
		}
	}
}

// NewEngine creates a stream engine on the given provider, resolving
// device names through the given registry.
func NewEngine(provider hardware.Provider, devices *device.Registry, opts ...Option) *Engine {
	e := &Engine{
		provider: provider,
		devices:  devices,
		log:      slog.Disabled,
		capacity: defaultChannelCapacity,
		streams:  make(map[string]*handle),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateInputStream opens a capture stream on the named device and starts
// it. Each hardware buffer is copied onto the stream's bounded channel by
// the real-time callback (dropped, and counted, when the channel is full)
// and handed to consume by the stream's forwarding goroutine in arrival
// order. The forwarder exits when the stream is closed.
//
// The provider is the final validator of cfg: an unsupported combination
// fails with hardware.ErrConfigRejected carrying the provider diagnostic.
func (e *Engine) CreateInputStream(deviceName string, cfg hardware.StreamConfig, consume Consumer) (string, error) {
	if consume == nil {
		return "", ErrNilConsumer
	}
	dev, err := e.devices.Lookup(deviceName)
	if err != nil {
		return "", err
	}

	ch := make(chan []float32, e.capacity)
	feed := captureFeed{out: ch, dropped: &e.buffersDropped}

	hw, err := e.provider.OpenCaptureStream(dev.Name, cfg, feed.process)
	if err != nil {
		return "", rejected(err)
	}
	if err := hw.Start(); err != nil {
		_ = hw.Close()
		return "", fmt.Errorf("starting capture stream: %w", err)
	}

	h := &handle{
		id:      uuid.NewString(),
		capture: true,
		buffers: ch,
		hw:      hw,
	}
	h.active.Store(true)
	e.register(h)

	e.forwarders.Add(1)
	go func() {
		defer e.forwarders.Done()
		for buf := range ch {
			consume(buf)
		}
	}()

	e.log.Debugf("created capture stream %s on %q (%d ch, %g Hz)",
		h.id, dev.Name, cfg.Channels, cfg.SampleRate)
	return h.id, nil
}

// CreateOutputStream opens a playback stream on the named device and
// starts it. Buffers supplied through Write are queued on the stream's
// bounded channel; the real-time callback drains them one per hardware
// period and plays silence (counted) when the queue is empty.
func (e *Engine) CreateOutputStream(deviceName string, cfg hardware.StreamConfig) (string, error) {
	dev, err := e.devices.Lookup(deviceName)
	if err != nil {
		return "", err
	}

	ch := make(chan []float32, e.capacity)
	feed := playbackFeed{in: ch, silences: &e.silenceFills}

	hw, err := e.provider.OpenPlaybackStream(dev.Name, cfg, feed.process)
	if err != nil {
		return "", rejected(err)
	}
	if err := hw.Start(); err != nil {
		_ = hw.Close()
		return "", fmt.Errorf("starting playback stream: %w", err)
	}

	h := &handle{
		id:      uuid.NewString(),
		buffers: ch,
		hw:      hw,
	}
	h.active.Store(true)
	e.register(h)

	e.log.Debugf("created playback stream %s on %q (%d ch, %g Hz)",
		h.id, dev.Name, cfg.Channels, cfg.SampleRate)
	return h.id, nil
}

// Write queues a copy of buf on a playback stream. A full queue fails with
// ErrBackpressure: unlike the silent drop on the real-time side, a slow
// hardware consumer is a signal the producer must see.
func (e *Engine) Write(id string, buf []float32) error {
	if len(buf) == 0 {
		return ErrInvalidBuffer
	}
	h, ok := e.lookup(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrStreamNotFound, id)
	}
	if h.capture {
		return ErrWrongDirection
	}
	if !h.active.Load() {
		return ErrStreamInactive
	}

	queued := make([]float32, len(buf))
	copy(queued, buf)
	select {
	case h.buffers <- queued:
		return nil
	default:
		return ErrBackpressure
	}
}

// Pause stops callback delivery on a stream. Pausing a paused stream is a
// no-op. A hardware stop failure is logged and swallowed; pause is a
// best-effort control, and the active flag transitions regardless so the
// write path stays consistent with what the caller asked for.
func (e *Engine) Pause(id string) error {
	h, ok := e.lookup(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrStreamNotFound, id)
	}

	h.ctl.Lock()
	defer h.ctl.Unlock()
	if !h.active.Load() {
		return nil
	}
	if err := h.hw.Stop(); err != nil {
		e.log.Warnf("pausing stream %s: %v", id, err)
	}
	h.active.Store(false)
	return nil
}

// Resume restarts callback delivery on a paused stream. Resuming an active
// stream is a no-op; hardware start failures are logged and swallowed.
func (e *Engine) Resume(id string) error {
	h, ok := e.lookup(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrStreamNotFound, id)
	}

	h.ctl.Lock()
	defer h.ctl.Unlock()
	if h.active.Load() {
		return nil
	}
	if err := h.hw.Start(); err != nil {
		e.log.Warnf("resuming stream %s: %v", id, err)
	}
	h.active.Store(true)
	return nil
}

// Close tears a stream down and releases its device. Closing an unknown id
// is a no-op, so Close is always safe to call again.
//
// Teardown order matters: the hardware stream is closed first, which by
// the binding contract quiesces the real-time callback. Only then is a
// capture stream's channel closed, so the close cannot race the callback's
// send; the forwarder drains what remains and exits. A playback stream's
// channel is never closed (Write may be in flight), just abandoned.
func (e *Engine) Close(id string) error {
	e.mu.Lock()
	h, ok := e.streams[id]
	if ok {
		delete(e.streams, id)
	}
	e.mu.Unlock()
	if !ok {
		return nil
	}

	h.active.Store(false)
	h.ctl.Lock()
	if err := h.hw.Close(); err != nil {
		e.log.Warnf("closing stream %s: %v", id, err)
	}
	h.ctl.Unlock()

	if h.capture {
		close(h.buffers)
	}
	e.streamsClosed.Add(1)
	e.log.Debugf("closed stream %s", id)
	return nil
}

// IsActive reports whether a stream exists and is not paused. An unknown
// id reads as false rather than failing: this is a polling-style query and
// a closed stream and a never-created one answer the same question.
func (e *Engine) IsActive(id string) bool {
	h, ok := e.lookup(id)
	return ok && h.active.Load()
}

// Shutdown closes every stream and waits for all forwarding goroutines to
// drain and exit. Meant for the composition root's teardown path.
func (e *Engine) Shutdown() {
	e.mu.RLock()
	ids := make([]string, 0, len(e.streams))
	for id := range e.streams {
		ids = append(ids, id)
	}
	e.mu.RUnlock()

	for _, id := range ids {
		_ = e.Close(id)
	}
	e.forwarders.Wait()
}

// Stats is a snapshot of the engine's observability counters. The counters
// are bumped with lock-free atomics so the real-time feeds can record
// drops and silence fills without violating their timing contract.
type Stats struct {
	BuffersDropped uint64
	SilenceFills   uint64
	StreamsCreated uint64
	StreamsClosed  uint64
	ActiveStreams  int
}

// Stats returns a point-in-time snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	open := len(e.streams)
	e.mu.RUnlock()

	return Stats{
		BuffersDropped: e.buffersDropped.Load(),
		SilenceFills:   e.silenceFills.Load(),
		StreamsCreated: e.streamsCreated.Load(),
		StreamsClosed:  e.streamsClosed.Load(),
		ActiveStreams:  open,
	}
}

func (e *Engine) register(h *handle) {
	e.mu.Lock()
	e.streams[h.id] = h
	e.mu.Unlock()
	e.streamsCreated.Add(1)
}

func (e *Engine) lookup(id string) (*handle, bool) {
	e.mu.RLock()
	h, ok := e.streams[id]
	e.mu.RUnlock()
	return h, ok
}

// rejected normalizes a provider open failure: device and config errors
// pass through unchanged, anything else is wrapped as a config rejection
// carrying the provider's diagnostic.
func rejected(err error) error {
	if errors.Is(err, hardware.ErrDeviceNotFound) ||
		errors.Is(err, hardware.ErrConfigRejected) ||
		errors.Is(err, hardware.ErrNotInitialized) {
		return err
	}
	return fmt.Errorf("%w: %v", hardware.ErrConfigRejected, err)
}
