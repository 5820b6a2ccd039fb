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

package hardware

import (
	"fmt"
	"sync"
)

// MockDevice is one scripted device in a MockProvider's table: its info,
// its capability ranges per direction, and its preferred configs.
type MockDevice struct {
	Info          DeviceInfo
	InputRanges   []ConfigRange
	OutputRanges  []ConfigRange
	DefaultInput  StreamConfig
	DefaultOutput StreamConfig
}

// MockProvider implements Provider for testing without hardware
// dependencies. Devices, capability ranges, and failures are all scripted;
// real-time callbacks are driven by hand through the mock streams.
type MockProvider struct {
	mu            sync.Mutex
	initialized   bool
	host          HostInfo
	devices       map[string]MockDevice
	order         []string
	streams       []*MockStream
	initError     error
	termError     error
	devicesError  error
	openError     error
	validateOpens bool
}

// NewMockProvider creates a mock provider seeded with one host, a default
// capture device and a default playback device.
func NewMockProvider() *MockProvider {
	m := &MockProvider{
		host:          HostInfo{ID: "mock", Name: "Mock Audio"},
		devices:       make(map[string]MockDevice),
		validateOpens: true,
	}
	m.AddDevice(MockDevice{
		Info: DeviceInfo{
			Name:              "Mock Microphone",
			HostID:            "mock",
			MaxInputChannels:  2,
			DefaultSampleRate: 48000,
			IsDefaultInput:    true,
		},
		InputRanges: []ConfigRange{
			{Channels: 1, MinSampleRate: 16000, MaxSampleRate: 48000, Format: FormatF32},
			{Channels: 2, MinSampleRate: 16000, MaxSampleRate: 48000, Format: FormatF32},
		},
		DefaultInput: StreamConfig{Channels: 1, SampleRate: 48000, Format: FormatF32},
	})
	m.AddDevice(MockDevice{
		Info: DeviceInfo{
			Name:              "Mock Speakers",
			HostID:            "mock",
			MaxOutputChannels: 2,
			DefaultSampleRate: 48000,
			IsDefaultOutput:   true,
		},
		OutputRanges: []ConfigRange{
			{Channels: 2, MinSampleRate: 8000, MaxSampleRate: 96000, Format: FormatF32},
		},
		DefaultOutput: StreamConfig{Channels: 2, SampleRate: 48000, Format: FormatF32},
	})
	return m
}

// AddDevice inserts or replaces a scripted device, keyed by its name.
func (m *MockProvider) AddDevice(dev MockDevice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.devices[dev.Info.Name]; !exists {
		m.order = append(m.order, dev.Info.Name)
	}
	m.devices[dev.Info.Name] = dev
}

// SetInitError configures the provider to return an error on Initialize()
func (m *MockProvider) SetInitError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initError = err
}

// SetTerminateError configures the provider to return an error on Terminate()
func (m *MockProvider) SetTerminateError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.termError = err
}

// SetDevicesError configures enumeration and capability queries to fail.
func (m *MockProvider) SetDevicesError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devicesError = err
}

// SetOpenError configures stream opens to fail with the given error,
// returned as-is so tests control the exact failure shape.
func (m *MockProvider) SetOpenError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openError = err
}

// SetValidateOpens controls whether opens check the requested config
// against the device's scripted ranges (on by default, like real hardware).
func (m *MockProvider) SetValidateOpens(validate bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validateOpens = validate
}

// OpenedStreams returns every stream opened so far, in open order,
// including closed ones.
func (m *MockProvider) OpenedStreams() []*MockStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*MockStream, len(m.streams))
	copy(result, m.streams)
	return result
}

// LastStream returns the most recently opened stream, or nil.
func (m *MockProvider) LastStream() *MockStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.streams) == 0 {
		return nil
	}
	return m.streams[len(m.streams)-1]
}

// Initialize initializes the mock audio subsystem
func (m *MockProvider) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initError != nil {
		return m.initError
	}

	m.initialized = true
	return nil
}

// Terminate terminates the mock audio subsystem
func (m *MockProvider) Terminate() error {
	m.mu.Lock()
	if m.termError != nil {
		m.mu.Unlock()
		return m.termError
	}
	streams := make([]*MockStream, len(m.streams))
	copy(streams, m.streams)
	m.initialized = false
	m.mu.Unlock()

	for _, s := range streams {
		_ = s.Close() // Ignore errors during cleanup
	}
	return nil
}

// Hosts lists the single scripted host.
func (m *MockProvider) Hosts() ([]HostInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return nil, ErrNotInitialized
	}
	return []HostInfo{m.host}, nil
}

// Devices enumerates the scripted devices in insertion order.
func (m *MockProvider) Devices(hostID string) ([]DeviceInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return nil, ErrNotInitialized
	}
	if m.devicesError != nil {
		return nil, providerErr("enumerate devices", m.devicesError)
	}
	if hostID != "" && hostID != m.host.ID {
		return nil, fmt.Errorf("%w: %q", ErrHostNotFound, hostID)
	}

	result := make([]DeviceInfo, 0, len(m.order))
	for _, name := range m.order {
		result = append(result, m.devices[name].Info)
	}
	return result, nil
}

// DefaultInputDevice returns the scripted default capture device.
func (m *MockProvider) DefaultInputDevice() (DeviceInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return DeviceInfo{}, ErrNotInitialized
	}
	for _, name := range m.order {
		if m.devices[name].Info.IsDefaultInput {
			return m.devices[name].Info, nil
		}
	}
	return DeviceInfo{}, fmt.Errorf("%w: no default input device", ErrDeviceNotFound)
}

// DefaultOutputDevice returns the scripted default playback device.
func (m *MockProvider) DefaultOutputDevice() (DeviceInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return DeviceInfo{}, ErrNotInitialized
	}
	for _, name := range m.order {
		if m.devices[name].Info.IsDefaultOutput {
			return m.devices[name].Info, nil
		}
	}
	return DeviceInfo{}, fmt.Errorf("%w: no default output device", ErrDeviceNotFound)
}

// InputConfigs reports the scripted capture ranges of a device.
func (m *MockProvider) InputConfigs(deviceName string) ([]ConfigRange, error) {
	return m.configs(deviceName, true)
}

// OutputConfigs reports the scripted playback ranges of a device.
func (m *MockProvider) OutputConfigs(deviceName string) ([]ConfigRange, error) {
	return m.configs(deviceName, false)
}

func (m *MockProvider) configs(deviceName string, input bool) ([]ConfigRange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return nil, ErrNotInitialized
	}
	if m.devicesError != nil {
		return nil, providerErr("query configs", m.devicesError)
	}
	dev, ok := m.devices[deviceName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDeviceNotFound, deviceName)
	}
	ranges := dev.OutputRanges
	if input {
		ranges = dev.InputRanges
	}
	result := make([]ConfigRange, len(ranges))
	copy(result, ranges)
	return result, nil
}

// DefaultInputConfig returns the scripted preferred capture config.
func (m *MockProvider) DefaultInputConfig(deviceName string) (StreamConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return StreamConfig{}, ErrNotInitialized
	}
	dev, ok := m.devices[deviceName]
	if !ok {
		return StreamConfig{}, fmt.Errorf("%w: %q", ErrDeviceNotFound, deviceName)
	}
	return dev.DefaultInput, nil
}

// DefaultOutputConfig returns the scripted preferred playback config.
func (m *MockProvider) DefaultOutputConfig(deviceName string) (StreamConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return StreamConfig{}, ErrNotInitialized
	}
	dev, ok := m.devices[deviceName]
	if !ok {
		return StreamConfig{}, fmt.Errorf("%w: %q", ErrDeviceNotFound, deviceName)
	}
	return dev.DefaultOutput, nil
}

// OpenCaptureStream opens a mock capture stream.
func (m *MockProvider) OpenCaptureStream(deviceName string, cfg StreamConfig, cb CaptureCallback) (Stream, error) {
	return m.open(deviceName, cfg, cb, nil)
}

// OpenPlaybackStream opens a mock playback stream.
func (m *MockProvider) OpenPlaybackStream(deviceName string, cfg StreamConfig, cb PlaybackCallback) (Stream, error) {
	return m.open(deviceName, cfg, nil, cb)
}

func (m *MockProvider) open(deviceName string, cfg StreamConfig, capture CaptureCallback, playback PlaybackCallback) (Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return nil, ErrNotInitialized
	}
	if m.openError != nil {
		return nil, m.openError
	}
	dev, ok := m.devices[deviceName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDeviceNotFound, deviceName)
	}

	if m.validateOpens {
		ranges := dev.OutputRanges
		if capture != nil {
			ranges = dev.InputRanges
		}
		if !rangesAllow(ranges, cfg) {
			return nil, fmt.Errorf("%w: %d channels at %g Hz on %q",
				ErrConfigRejected, cfg.Channels, cfg.SampleRate, deviceName)
		}
	}

	s := &MockStream{
		device:   deviceName,
		config:   cfg,
		capture:  capture,
		playback: playback,
	}
	m.streams = append(m.streams, s)
	return s, nil
}

// rangesAllow reports whether any capability range accepts the config.
func rangesAllow(ranges []ConfigRange, cfg StreamConfig) bool {
	for _, r := range ranges {
		if r.Channels == cfg.Channels &&
			cfg.SampleRate >= r.MinSampleRate && cfg.SampleRate <= r.MaxSampleRate {
			return true
		}
	}
	return false
}

// MockStream implements Stream for testing. Its real-time callback is
// driven by hand: FeedInput plays the role of the hardware delivering a
// capture buffer, FillOutput the role of the hardware requesting a
// playback buffer. Both hold the stream mutex while the callback runs, so
// Close honors the binding contract of blocking until an in-flight
// callback has returned.
type MockStream struct {
	mu         sync.Mutex
	device     string
	config     StreamConfig
	capture    CaptureCallback
	playback   PlaybackCallback
	started    bool
	closed     bool
	startCalls int
	stopCalls  int
	startError error
	stopError  error
	closeError error
}

// Device returns the name of the device the stream was opened on.
func (s *MockStream) Device() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device
}

// Config returns the config the stream was opened with.
func (s *MockStream) Config() StreamConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// SetStartError configures the stream to return an error on Start()
func (s *MockStream) SetStartError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startError = err
}

// SetStopError configures the stream to return an error on Stop()
func (s *MockStream) SetStopError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopError = err
}

// SetCloseError configures the stream to return an error on Close()
func (s *MockStream) SetCloseError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeError = err
}

// Started reports whether the stream is currently running.
func (s *MockStream) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started && !s.closed
}

// Closed reports whether Close has been called.
func (s *MockStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// StartCalls returns how many times Start succeeded.
func (s *MockStream) StartCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startCalls
}

// StopCalls returns how many times Stop succeeded.
func (s *MockStream) StopCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopCalls
}

// Start begins mock callback delivery.
func (s *MockStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("stream is closed")
	}
	if s.startError != nil {
		return s.startError
	}
	s.started = true
	s.startCalls++
	return nil
}

// Stop pauses mock callback delivery.
func (s *MockStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("stream is closed")
	}
	if s.stopError != nil {
		return s.stopError
	}
	s.started = false
	s.stopCalls++
	return nil
}

// Close closes the mock stream. Holding the mutex here is what guarantees
// no callback is in flight once Close returns.
func (s *MockStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closeError != nil {
		return s.closeError
	}
	s.closed = true
	s.started = false
	return nil
}

// FeedInput delivers one hardware capture buffer to the registered
// callback, exactly as the audio thread would. It is a no-op when the
// stream is stopped or closed, mirroring real hardware.
func (s *MockStream) FeedInput(input []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.closed || s.capture == nil {
		return
	}
	s.capture(input)
}

// FillOutput asks the registered callback to fill one hardware output
// buffer, exactly as the audio thread would. Callers pass the buffer so
// they can poison it beforehand and inspect every slot afterwards. It is a
// no-op when the stream is stopped or closed.
func (s *MockStream) FillOutput(output []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.closed || s.playback == nil {
		return
	}
	s.playback(output)
}
