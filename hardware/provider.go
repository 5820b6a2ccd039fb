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

// SampleFormat identifies the sample encoding a device reports for a
// capability range. The streaming pipeline itself works in 32-bit floats;
// the other formats only ever appear in capability listings.
type SampleFormat string

const (
	FormatF32 SampleFormat = "f32"
	FormatI16 SampleFormat = "i16"
	FormatU16 SampleFormat = "u16"
)

// HostInfo describes an audio host API (ALSA, CoreAudio, WASAPI, ...).
type HostInfo struct {
	ID   string
	Name string
}

// DeviceInfo describes one audio device as reported by a provider.
// The Name doubles as the device's stable identifier; registries key by it.
// Values are immutable snapshots: re-enumeration produces fresh ones, and
// the default flags are computed against the active host at enumeration
// time rather than read from the hardware.
type DeviceInfo struct {
	Name              string
	HostID            string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	IsDefaultInput    bool
	IsDefaultOutput   bool
}

// ConfigRange is one device-reported capability range for a direction:
// a channel count, the sample-rate interval supported at that count, and
// the sample format.
type ConfigRange struct {
	Channels      int
	MinSampleRate float64
	MaxSampleRate float64
	Format        SampleFormat
}

// StreamConfig holds the negotiated parameters for opening a stream.
// The provider is the final validator: opening fails with ErrConfigRejected
// when the device cannot run the combination. A zero FramesPerBuffer lets
// the provider choose its own period size.
type StreamConfig struct {
	Channels        int
	SampleRate      float64
	Format          SampleFormat
	FramesPerBuffer int
}

// CaptureCallback receives each hardware input buffer. It runs on the
// provider's real-time thread: it must not block, must not take contended
// locks, and must return promptly. The input slice is only valid for the
// duration of the call.
type CaptureCallback func(input []float32)

// PlaybackCallback fills each hardware output buffer. Same real-time rules
// as CaptureCallback; every element of the output slice must be written
// (unfilled samples would play whatever memory held before).
type PlaybackCallback func(output []float32)

// Provider abstracts the underlying audio subsystem. This enables
// dependency injection and makes everything above it testable without
// hardware.
//
// Implementations must be safe for concurrent use by multiple goroutines
// once Initialize has returned.
type Provider interface {
	// Initialize the audio subsystem. Safe to call more than once.
	Initialize() error

	// Terminate the audio subsystem and release its resources.
	Terminate() error

	// Hosts lists the available host APIs.
	Hosts() ([]HostInfo, error)

	// Devices enumerates the devices of one host, or of the default host
	// when hostID is empty.
	Devices(hostID string) ([]DeviceInfo, error)

	// DefaultInputDevice returns the host's default capture device.
	DefaultInputDevice() (DeviceInfo, error)

	// DefaultOutputDevice returns the host's default playback device.
	DefaultOutputDevice() (DeviceInfo, error)

	// InputConfigs reports the capture capability ranges of a device.
	// An empty result means the device has no capture side.
	InputConfigs(deviceName string) ([]ConfigRange, error)

	// OutputConfigs reports the playback capability ranges of a device.
	OutputConfigs(deviceName string) ([]ConfigRange, error)

	// DefaultInputConfig returns the device's preferred capture config.
	DefaultInputConfig(deviceName string) (StreamConfig, error)

	// DefaultOutputConfig returns the device's preferred playback config.
	DefaultOutputConfig(deviceName string) (StreamConfig, error)

	// OpenCaptureStream opens a capture stream on the named device and
	// registers the real-time callback. The stream is created stopped.
	OpenCaptureStream(deviceName string, cfg StreamConfig, cb CaptureCallback) (Stream, error)

	// OpenPlaybackStream opens a playback stream on the named device and
	// registers the real-time callback. The stream is created stopped.
	OpenPlaybackStream(deviceName string, cfg StreamConfig, cb PlaybackCallback) (Stream, error)
}

// Stream is a live hardware stream handle.
//
// Binding contract, relied on by everything above: Start, Stop, and Close
// may each be called from any control goroutine (though not concurrently
// with each other), and Close does not return until any in-flight data
// callback has returned. After Close returns the callback is never invoked
// again. Stop and Start after Close return an error.
type Stream interface {
	// Start begins (or resumes) callback delivery.
	Start() error

	// Stop pauses callback delivery without releasing the device.
	Stop() error

	// Close stops the stream and releases the device.
	Close() error
}
