//go:build cgo && !noaudio

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

	"github.com/gordonklaus/portaudio"
)

// defaultFramesPerBuffer is used when a StreamConfig leaves the period
// size unset.
const defaultFramesPerBuffer = 1024

// PortAudioProvider implements Provider using the PortAudio library.
type PortAudioProvider struct {
	mu          sync.Mutex
	initialized bool
}

// NewPortAudioProvider creates a new PortAudio provider.
func NewPortAudioProvider() (*PortAudioProvider, error) {
	return &PortAudioProvider{}, nil
}

// Initialize initializes the PortAudio subsystem
func (p *PortAudioProvider) Initialize() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return nil
	}
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	p.initialized = true
	return nil
}

// Terminate terminates the PortAudio subsystem
func (p *PortAudioProvider) Terminate() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil
	}
	err := portaudio.Terminate()
	p.initialized = false
	return err
}

// Hosts lists the host APIs of the enumerated devices, in discovery order.
func (p *PortAudioProvider) Hosts() ([]HostInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	devices, err := p.enumerate()
	if err != nil {
		return nil, err
	}

	var hosts []HostInfo
	seen := make(map[string]bool)
	for _, dev := range devices {
		name := hostName(dev)
		if seen[name] {
			continue
		}
		seen[name] = true
		hosts = append(hosts, HostInfo{ID: name, Name: name})
	}
	return hosts, nil
}

// Devices enumerates audio devices. PortAudio exposes every host's devices
// in one flat list, so an empty hostID returns all of them; a non-empty
// hostID filters by host API name.
func (p *PortAudioProvider) Devices(hostID string) ([]DeviceInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	devices, err := p.enumerate()
	if err != nil {
		return nil, err
	}
	defIn, defOut := p.defaults()

	var result []DeviceInfo
	hostSeen := false
	for _, dev := range devices {
		if hostID != "" && hostName(dev) != hostID {
			continue
		}
		hostSeen = true
		result = append(result, p.describe(dev, defIn, defOut))
	}
	if hostID != "" && !hostSeen {
		return nil, fmt.Errorf("%w: %q", ErrHostNotFound, hostID)
	}
	return result, nil
}

// DefaultInputDevice returns the default capture device.
func (p *PortAudioProvider) DefaultInputDevice() (DeviceInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return DeviceInfo{}, ErrNotInitialized
	}
	dev, err := portaudio.DefaultInputDevice()
	if err != nil {
		return DeviceInfo{}, providerErr("default input device", err)
	}
	defIn, defOut := p.defaults()
	return p.describe(dev, defIn, defOut), nil
}

// DefaultOutputDevice returns the default playback device.
func (p *PortAudioProvider) DefaultOutputDevice() (DeviceInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return DeviceInfo{}, ErrNotInitialized
	}
	dev, err := portaudio.DefaultOutputDevice()
	if err != nil {
		return DeviceInfo{}, providerErr("default output device", err)
	}
	defIn, defOut := p.defaults()
	return p.describe(dev, defIn, defOut), nil
}

// InputConfigs reports capture capability ranges. PortAudio only exposes a
// device's channel maximum and default rate without opening it, so each
// channel count is reported at the default rate; rate flexibility beyond
// that surfaces at open time as ErrConfigRejected.
func (p *PortAudioProvider) InputConfigs(deviceName string) ([]ConfigRange, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	dev, err := p.deviceByName(deviceName)
	if err != nil {
		return nil, err
	}
	return channelRanges(dev.MaxInputChannels, dev.DefaultSampleRate), nil
}

// OutputConfigs reports playback capability ranges.
func (p *PortAudioProvider) OutputConfigs(deviceName string) ([]ConfigRange, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	dev, err := p.deviceByName(deviceName)
	if err != nil {
		return nil, err
	}
	return channelRanges(dev.MaxOutputChannels, dev.DefaultSampleRate), nil
}

// DefaultInputConfig returns a mono capture config at the device rate.
func (p *PortAudioProvider) DefaultInputConfig(deviceName string) (StreamConfig, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	dev, err := p.deviceByName(deviceName)
	if err != nil {
		return StreamConfig{}, err
	}
	if dev.MaxInputChannels == 0 {
		return StreamConfig{}, fmt.Errorf("%w: %q has no input channels", ErrDeviceNotFound, deviceName)
	}
	return StreamConfig{
		Channels:   1,
		SampleRate: dev.DefaultSampleRate,
		Format:     FormatF32,
	}, nil
}

// DefaultOutputConfig returns a playback config at the device rate, stereo
// when the device allows it.
func (p *PortAudioProvider) DefaultOutputConfig(deviceName string) (StreamConfig, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	dev, err := p.deviceByName(deviceName)
	if err != nil {
		return StreamConfig{}, err
	}
	if dev.MaxOutputChannels == 0 {
		return StreamConfig{}, fmt.Errorf("%w: %q has no output channels", ErrDeviceNotFound, deviceName)
	}
	channels := 2
	if dev.MaxOutputChannels < 2 {
		channels = dev.MaxOutputChannels
	}
	return StreamConfig{
		Channels:   channels,
		SampleRate: dev.DefaultSampleRate,
		Format:     FormatF32,
	}, nil
}

// OpenCaptureStream opens a capture stream on the named device. The
// callback receives interleaved float32 samples on PortAudio's audio
// thread.
func (p *PortAudioProvider) OpenCaptureStream(deviceName string, cfg StreamConfig, cb CaptureCallback) (Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	dev, err := p.deviceByName(deviceName)
	if err != nil {
		return nil, err
	}
	if dev.MaxInputChannels == 0 {
		return nil, fmt.Errorf("%w: %q has no input channels", ErrConfigRejected, deviceName)
	}

	params := portaudio.LowLatencyParameters(dev, nil)
	params.Input.Channels = cfg.Channels
	params.SampleRate = cfg.SampleRate
	params.FramesPerBuffer = framesPerBuffer(cfg)

	stream, err := portaudio.OpenStream(params, func(in []float32) {
		cb(in)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigRejected, err)
	}
	return &portAudioStream{stream: stream}, nil
}

// OpenPlaybackStream opens a playback stream on the named device. The
// callback fills interleaved float32 samples on PortAudio's audio thread.
func (p *PortAudioProvider) OpenPlaybackStream(deviceName string, cfg StreamConfig, cb PlaybackCallback) (Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	dev, err := p.deviceByName(deviceName)
	if err != nil {
		return nil, err
	}
	if dev.MaxOutputChannels == 0 {
		return nil, fmt.Errorf("%w: %q has no output channels", ErrConfigRejected, deviceName)
	}

	params := portaudio.LowLatencyParameters(nil, dev)
	params.Output.Channels = cfg.Channels
	params.SampleRate = cfg.SampleRate
	params.FramesPerBuffer = framesPerBuffer(cfg)

	stream, err := portaudio.OpenStream(params, func(out []float32) {
		cb(out)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigRejected, err)
	}
	return &portAudioStream{stream: stream}, nil
}

// enumerate lists the raw PortAudio devices. Callers hold p.mu.
func (p *PortAudioProvider) enumerate() ([]*portaudio.DeviceInfo, error) {
	if !p.initialized {
		return nil, ErrNotInitialized
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, providerErr("enumerate devices", err)
	}
	return devices, nil
}

// deviceByName resolves a device by its enumerated name. Callers hold p.mu.
func (p *PortAudioProvider) deviceByName(name string) (*portaudio.DeviceInfo, error) {
	devices, err := p.enumerate()
	if err != nil {
		return nil, err
	}
	for _, dev := range devices {
		if dev.Name == name {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrDeviceNotFound, name)
}

// defaults resolves the current default device names, empty on failure.
// Callers hold p.mu.
func (p *PortAudioProvider) defaults() (string, string) {
	var in, out string
	if dev, err := portaudio.DefaultInputDevice(); err == nil {
		in = dev.Name
	}
	if dev, err := portaudio.DefaultOutputDevice(); err == nil {
		out = dev.Name
	}
	return in, out
}

// describe converts a PortAudio device record into a DeviceInfo snapshot,
// computing the default flags against the given default device names.
func (p *PortAudioProvider) describe(dev *portaudio.DeviceInfo, defIn, defOut string) DeviceInfo {
	return DeviceInfo{
		Name:              dev.Name,
		HostID:            hostName(dev),
		MaxInputChannels:  dev.MaxInputChannels,
		MaxOutputChannels: dev.MaxOutputChannels,
		DefaultSampleRate: dev.DefaultSampleRate,
		IsDefaultInput:    dev.Name != "" && dev.Name == defIn,
		IsDefaultOutput:   dev.Name != "" && dev.Name == defOut,
	}
}

// hostName extracts the host API name of a device.
func hostName(dev *portaudio.DeviceInfo) string {
	if dev.HostApi == nil {
		return ""
	}
	return dev.HostApi.Name
}

// channelRanges builds one range per channel count at the device's default
// rate.
func channelRanges(maxChannels int, rate float64) []ConfigRange {
	ranges := make([]ConfigRange, 0, maxChannels)
	for ch := 1; ch <= maxChannels; ch++ {
		ranges = append(ranges, ConfigRange{
			Channels:      ch,
			MinSampleRate: rate,
			MaxSampleRate: rate,
			Format:        FormatF32,
		})
	}
	return ranges
}

// framesPerBuffer applies the period-size default.
func framesPerBuffer(cfg StreamConfig) int {
	if cfg.FramesPerBuffer > 0 {
		return cfg.FramesPerBuffer
	}
	return defaultFramesPerBuffer
}

// portAudioStream implements Stream on a PortAudio stream handle.
// Pa_StopStream waits for pending buffers and Pa_CloseStream fully tears
// the callback down before returning, which is what the Stream binding
// contract requires.
type portAudioStream struct {
	stream *portaudio.Stream
}

// Start starts the audio stream
func (s *portAudioStream) Start() error {
	if s.stream == nil {
		return fmt.Errorf("stream is nil")
	}
	return s.stream.Start()
}

// Stop stops the audio stream
func (s *portAudioStream) Stop() error {
	if s.stream == nil {
		return fmt.Errorf("stream is nil")
	}
	return s.stream.Stop()
}

// Close closes the audio stream
func (s *portAudioStream) Close() error {
	if s.stream == nil {
		return fmt.Errorf("stream is nil")
	}
	return s.stream.Close()
}
