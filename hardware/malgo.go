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
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

// miniaudio runs a format/rate converter between the device and the
// application, so the ranges a malgo device advertises are the converter's
// envelope rather than the raw hardware modes. Within that envelope any
// combination is accepted; outside it opens fail with ErrConfigRejected.
const (
	malgoHostID      = "malgo"
	malgoMaxChannels = 2
	malgoMinRate     = 8000
	malgoMaxRate     = 192000
	malgoDefaultRate = 48000
)

// MalgoProvider implements Provider using the miniaudio library via malgo.
type MalgoProvider struct {
	mu  sync.Mutex
	ctx *malgo.AllocatedContext
}

// NewMalgoProvider creates a new miniaudio provider.
func NewMalgoProvider() (*MalgoProvider, error) {
	return &MalgoProvider{}, nil
}

// Initialize initializes the miniaudio context
func (p *MalgoProvider) Initialize() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx != nil {
		return nil
	}
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize miniaudio: %w", err)
	}
	p.ctx = ctx
	return nil
}

// Terminate terminates the miniaudio context
func (p *MalgoProvider) Terminate() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx == nil {
		return nil
	}
	err := p.ctx.Uninit()
	p.ctx.Free()
	p.ctx = nil
	return err
}

// Hosts lists the single miniaudio context as a host. miniaudio selects
// one backend per context, so there is nothing further to enumerate.
func (p *MalgoProvider) Hosts() ([]HostInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx == nil {
		return nil, ErrNotInitialized
	}
	return []HostInfo{{ID: malgoHostID, Name: "miniaudio"}}, nil
}

// Devices enumerates the capture and playback devices of the context,
// merged by name so a duplex device appears once with both sides set.
func (p *MalgoProvider) Devices(hostID string) ([]DeviceInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if hostID != "" && hostID != malgoHostID {
		return nil, fmt.Errorf("%w: %q", ErrHostNotFound, hostID)
	}
	return p.enumerate()
}

// DefaultInputDevice returns the default capture device.
func (p *MalgoProvider) DefaultInputDevice() (DeviceInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	devices, err := p.enumerate()
	if err != nil {
		return DeviceInfo{}, err
	}
	for _, dev := range devices {
		if dev.IsDefaultInput {
			return dev, nil
		}
	}
	return DeviceInfo{}, fmt.Errorf("%w: no default capture device", ErrDeviceNotFound)
}

// DefaultOutputDevice returns the default playback device.
func (p *MalgoProvider) DefaultOutputDevice() (DeviceInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	devices, err := p.enumerate()
	if err != nil {
		return DeviceInfo{}, err
	}
	for _, dev := range devices {
		if dev.IsDefaultOutput {
			return dev, nil
		}
	}
	return DeviceInfo{}, fmt.Errorf("%w: no default playback device", ErrDeviceNotFound)
}

// InputConfigs reports the converter envelope for a capture-capable device.
func (p *MalgoProvider) InputConfigs(deviceName string) ([]ConfigRange, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	dev, err := p.deviceByName(deviceName)
	if err != nil {
		return nil, err
	}
	return malgoRanges(dev.MaxInputChannels), nil
}

// OutputConfigs reports the converter envelope for a playback-capable device.
func (p *MalgoProvider) OutputConfigs(deviceName string) ([]ConfigRange, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	dev, err := p.deviceByName(deviceName)
	if err != nil {
		return nil, err
	}
	return malgoRanges(dev.MaxOutputChannels), nil
}

// DefaultInputConfig returns a mono capture config at the miniaudio rate.
func (p *MalgoProvider) DefaultInputConfig(deviceName string) (StreamConfig, error) {
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
		SampleRate: malgoDefaultRate,
		Format:     FormatF32,
	}, nil
}

// DefaultOutputConfig returns a stereo playback config at the miniaudio rate.
func (p *MalgoProvider) DefaultOutputConfig(deviceName string) (StreamConfig, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	dev, err := p.deviceByName(deviceName)
	if err != nil {
		return StreamConfig{}, err
	}
	if dev.MaxOutputChannels == 0 {
		return StreamConfig{}, fmt.Errorf("%w: %q has no output channels", ErrDeviceNotFound, deviceName)
	}
	return StreamConfig{
		Channels:   2,
		SampleRate: malgoDefaultRate,
		Format:     FormatF32,
	}, nil
}

// OpenCaptureStream opens a capture stream. miniaudio delivers raw bytes on
// its audio thread; the f32 view handed to the callback aliases a reusable
// scratch buffer, so the callback must copy anything it keeps (which the
// engine's capture feed does anyway).
func (p *MalgoProvider) OpenCaptureStream(deviceName string, cfg StreamConfig, cb CaptureCallback) (Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id, err := p.captureDeviceID(deviceName)
	if err != nil {
		return nil, err
	}
	if err := malgoAccepts(cfg); err != nil {
		return nil, err
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	if id != emptyMalgoDeviceID {
		deviceConfig.Capture.DeviceID = id.Pointer()
	}
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(framesPerBuffer(cfg))
	deviceConfig.Alsa.NoMMap = 1

	var scratch []float32
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, frameCount uint32) {
			samples := int(frameCount) * cfg.Channels
			if cap(scratch) < samples {
				scratch = make([]float32, samples)
			}
			bytesToFloat32(input, scratch[:samples])
			cb(scratch[:samples])
		},
	}

	device, err := malgo.InitDevice(p.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigRejected, err)
	}
	return &malgoStream{device: device}, nil
}

// OpenPlaybackStream opens a playback stream.
func (p *MalgoProvider) OpenPlaybackStream(deviceName string, cfg StreamConfig, cb PlaybackCallback) (Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id, err := p.playbackDeviceID(deviceName)
	if err != nil {
		return nil, err
	}
	if err := malgoAccepts(cfg); err != nil {
		return nil, err
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	if id != emptyMalgoDeviceID {
		deviceConfig.Playback.DeviceID = id.Pointer()
	}
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(framesPerBuffer(cfg))
	deviceConfig.Alsa.NoMMap = 1

	var scratch []float32
	callbacks := malgo.DeviceCallbacks{
		Data: func(output, _ []byte, frameCount uint32) {
			samples := int(frameCount) * cfg.Channels
			if cap(scratch) < samples {
				scratch = make([]float32, samples)
			}
			cb(scratch[:samples])
			float32ToBytes(scratch[:samples], output)
		},
	}

	device, err := malgo.InitDevice(p.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigRejected, err)
	}
	return &malgoStream{device: device}, nil
}

// emptyMalgoDeviceID means "use the backend default".
var emptyMalgoDeviceID malgo.DeviceID

// enumerate lists capture and playback devices merged by name.
// Callers hold p.mu.
func (p *MalgoProvider) enumerate() ([]DeviceInfo, error) {
	if p.ctx == nil {
		return nil, ErrNotInitialized
	}

	captures, err := p.listSide(malgo.Capture)
	if err != nil {
		return nil, providerErr("enumerate capture devices", err)
	}
	playbacks, err := p.listSide(malgo.Playback)
	if err != nil {
		return nil, providerErr("enumerate playback devices", err)
	}

	var result []DeviceInfo
	index := make(map[string]int)
	for _, dev := range captures {
		if _, ok := index[dev.name]; ok {
			continue
		}
		index[dev.name] = len(result)
		result = append(result, DeviceInfo{
			Name:              dev.name,
			HostID:            malgoHostID,
			MaxInputChannels:  malgoMaxChannels,
			DefaultSampleRate: malgoDefaultRate,
			IsDefaultInput:    dev.isDefault,
		})
	}
	for _, dev := range playbacks {
		if i, ok := index[dev.name]; ok {
			result[i].MaxOutputChannels = malgoMaxChannels
			result[i].IsDefaultOutput = dev.isDefault
			continue
		}
		index[dev.name] = len(result)
		result = append(result, DeviceInfo{
			Name:              dev.name,
			HostID:            malgoHostID,
			MaxOutputChannels: malgoMaxChannels,
			DefaultSampleRate: malgoDefaultRate,
			IsDefaultOutput:   dev.isDefault,
		})
	}
	return result, nil
}

// malgoDevice is one side-specific enumeration record.
type malgoDevice struct {
	id        malgo.DeviceID
	name      string
	isDefault bool
}

// listSide enumerates one device type, resolving the full device record
// for each entry. The default flag is only reliable on the full record,
// not the raw enumeration list. Callers hold p.mu.
func (p *MalgoProvider) listSide(typ malgo.DeviceType) ([]malgoDevice, error) {
	raw, err := p.ctx.Devices(typ)
	if err != nil {
		return nil, err
	}
	result := make([]malgoDevice, 0, len(raw))
	for _, dev := range raw {
		full, err := p.ctx.DeviceInfo(typ, dev.ID, malgo.Shared)
		if err != nil {
			// Devices can disappear between the list and the query.
			continue
		}
		result = append(result, malgoDevice{
			id:        dev.ID,
			name:      full.Name(),
			isDefault: full.IsDefault == 1,
		})
	}
	return result, nil
}

// deviceByName resolves a merged device record by name. Callers hold p.mu.
func (p *MalgoProvider) deviceByName(name string) (DeviceInfo, error) {
	devices, err := p.enumerate()
	if err != nil {
		return DeviceInfo{}, err
	}
	for _, dev := range devices {
		if dev.Name == name {
			return dev, nil
		}
	}
	return DeviceInfo{}, fmt.Errorf("%w: %q", ErrDeviceNotFound, name)
}

// captureDeviceID resolves the malgo id of a capture device by name.
// Callers hold p.mu.
func (p *MalgoProvider) captureDeviceID(name string) (malgo.DeviceID, error) {
	return p.rawDeviceID(malgo.Capture, name)
}

// playbackDeviceID resolves the malgo id of a playback device by name.
// Callers hold p.mu.
func (p *MalgoProvider) playbackDeviceID(name string) (malgo.DeviceID, error) {
	return p.rawDeviceID(malgo.Playback, name)
}

func (p *MalgoProvider) rawDeviceID(typ malgo.DeviceType, name string) (malgo.DeviceID, error) {
	if p.ctx == nil {
		return emptyMalgoDeviceID, ErrNotInitialized
	}
	devices, err := p.listSide(typ)
	if err != nil {
		return emptyMalgoDeviceID, providerErr("enumerate devices", err)
	}
	for _, dev := range devices {
		if dev.name == name {
			return dev.id, nil
		}
	}
	return emptyMalgoDeviceID, fmt.Errorf("%w: %q", ErrDeviceNotFound, name)
}

// malgoAccepts rejects configs outside the converter envelope before any
// hardware is touched, so the diagnostic names the offending parameter.
func malgoAccepts(cfg StreamConfig) error {
	if cfg.Channels < 1 || cfg.Channels > malgoMaxChannels {
		return fmt.Errorf("%w: %d channels", ErrConfigRejected, cfg.Channels)
	}
	if cfg.SampleRate < malgoMinRate || cfg.SampleRate > malgoMaxRate {
		return fmt.Errorf("%w: %g Hz", ErrConfigRejected, cfg.SampleRate)
	}
	return nil
}

// malgoRanges builds the converter envelope ranges for a device side.
func malgoRanges(maxChannels int) []ConfigRange {
	ranges := make([]ConfigRange, 0, maxChannels)
	for ch := 1; ch <= maxChannels; ch++ {
		ranges = append(ranges, ConfigRange{
			Channels:      ch,
			MinSampleRate: malgoMinRate,
			MaxSampleRate: malgoMaxRate,
			Format:        FormatF32,
		})
	}
	return ranges
}

// bytesToFloat32 decodes little-endian f32 frames from the device buffer.
func bytesToFloat32(src []byte, dst []float32) {
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
}

// float32ToBytes encodes f32 frames into the device buffer.
func float32ToBytes(src []float32, dst []byte) {
	for i, s := range src {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(s))
	}
}

// malgoStream implements Stream on a malgo device handle. Device.Uninit
// stops the device and tears the callback down before returning, which is
// what the Stream binding contract requires.
type malgoStream struct {
	mu     sync.Mutex
	device *malgo.Device
}

// Start starts the audio stream
func (s *malgoStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device == nil {
		return fmt.Errorf("stream is closed")
	}
	return s.device.Start()
}

// Stop stops the audio stream
func (s *malgoStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device == nil {
		return fmt.Errorf("stream is closed")
	}
	return s.device.Stop()
}

// Close uninitializes the device and releases it.
func (s *malgoStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device == nil {
		return fmt.Errorf("stream is closed")
	}
	s.device.Uninit()
	s.device = nil
	return nil
}
