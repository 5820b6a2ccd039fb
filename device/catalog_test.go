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

package device

import (
	"errors"
	"testing"

	"github.com/cadenzalabs/cadenza/hardware"
)

// duplexDevice has overlapping ranges in both directions so the derived
// listings have something to deduplicate.
var duplexDevice = hardware.MockDevice{
	Info: hardware.DeviceInfo{
		Name:              "Duplex Interface",
		HostID:            "mock",
		MaxInputChannels:  2,
		MaxOutputChannels: 4,
		DefaultSampleRate: 48000,
	},
	InputRanges: []hardware.ConfigRange{
		{Channels: 1, MinSampleRate: 44100, MaxSampleRate: 48000, Format: hardware.FormatI16},
		{Channels: 2, MinSampleRate: 16000, MaxSampleRate: 48000, Format: hardware.FormatF32},
	},
	OutputRanges: []hardware.ConfigRange{
		{Channels: 2, MinSampleRate: 8000, MaxSampleRate: 48000, Format: hardware.FormatF32},
		{Channels: 4, MinSampleRate: 44100, MaxSampleRate: 96000, Format: hardware.FormatU16},
	},
	DefaultInput:  hardware.StreamConfig{Channels: 1, SampleRate: 48000, Format: hardware.FormatF32},
	DefaultOutput: hardware.StreamConfig{Channels: 2, SampleRate: 48000, Format: hardware.FormatF32},
}

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()

	mock := hardware.NewMockProvider()
	mock.AddDevice(duplexDevice)
	if err := mock.Initialize(); err != nil {
		t.Fatalf("Failed to initialize mock provider: %v", err)
	}
	t.Cleanup(func() { _ = mock.Terminate() })

	return NewCatalog(mock, NewRegistry(mock))
}

func TestCatalog_DirectionConfigs(t *testing.T) {
	catalog := newTestCatalog(t)

	input, err := catalog.InputConfigs("Duplex Interface")
	if err != nil {
		t.Fatalf("InputConfigs failed: %v", err)
	}
	if len(input) != 2 {
		t.Errorf("Expected 2 input ranges, got %d", len(input))
	}
	if input[0].Format != hardware.FormatI16 {
		t.Errorf("Expected provider-reported range order, got %v first", input[0].Format)
	}

	output, err := catalog.OutputConfigs("Duplex Interface")
	if err != nil {
		t.Fatalf("OutputConfigs failed: %v", err)
	}
	if len(output) != 2 {
		t.Errorf("Expected 2 output ranges, got %d", len(output))
	}
}

func TestCatalog_UnsupportedDirection(t *testing.T) {
	// The seeded microphone has no playback side and the speakers have no
	// capture side.
	catalog := newTestCatalog(t)

	if _, err := catalog.OutputConfigs("Mock Microphone"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Expected ErrUnsupported for output on a capture-only device, got %v", err)
	}
	if _, err := catalog.InputConfigs("Mock Speakers"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Expected ErrUnsupported for input on a playback-only device, got %v", err)
	}
}

func TestCatalog_UnknownDevice(t *testing.T) {
	catalog := newTestCatalog(t)

	queries := []struct {
		name string
		call func() error
	}{
		{"InputConfigs", func() error { _, err := catalog.InputConfigs("ghost"); return err }},
		{"OutputConfigs", func() error { _, err := catalog.OutputConfigs("ghost"); return err }},
		{"DefaultInputConfig", func() error { _, err := catalog.DefaultInputConfig("ghost"); return err }},
		{"Formats", func() error { _, err := catalog.Formats("ghost"); return err }},
		{"SampleRates", func() error { _, err := catalog.SampleRates("ghost"); return err }},
		{"MaxChannels", func() error { _, err := catalog.MaxChannels("ghost"); return err }},
	}
	for _, q := range queries {
		if err := q.call(); !errors.Is(err, hardware.ErrDeviceNotFound) {
			t.Errorf("%s: expected ErrDeviceNotFound, got %v", q.name, err)
		}
	}
}

func TestCatalog_Formats(t *testing.T) {
	catalog := newTestCatalog(t)

	formats, err := catalog.Formats("Duplex Interface")
	if err != nil {
		t.Fatalf("Formats failed: %v", err)
	}

	// Discovery order: input ranges first, then output ranges, deduped.
	expected := []hardware.SampleFormat{hardware.FormatI16, hardware.FormatF32, hardware.FormatU16}
	if len(formats) != len(expected) {
		t.Fatalf("Expected %d formats, got %d: %v", len(expected), len(formats), formats)
	}
	for i, want := range expected {
		if formats[i] != want {
			t.Errorf("Format %d: expected %v, got %v", i, want, formats[i])
		}
	}
}

func TestCatalog_SampleRates(t *testing.T) {
	catalog := newTestCatalog(t)

	rates, err := catalog.SampleRates("Duplex Interface")
	if err != nil {
		t.Fatalf("SampleRates failed: %v", err)
	}

	// Every min/max boundary from both directions, deduped, ascending.
	expected := []float64{8000, 16000, 44100, 48000, 96000}
	if len(rates) != len(expected) {
		t.Fatalf("Expected %d rates, got %d: %v", len(expected), len(rates), rates)
	}
	for i, want := range expected {
		if rates[i] != want {
			t.Errorf("Rate %d: expected %g, got %g", i, want, rates[i])
		}
	}
	for i := 1; i < len(rates); i++ {
		if rates[i] <= rates[i-1] {
			t.Errorf("Rates not strictly ascending at %d: %v", i, rates)
		}
	}
}

func TestCatalog_MaxChannels(t *testing.T) {
	catalog := newTestCatalog(t)

	tests := []struct {
		device   string
		expected int
	}{
		{"Duplex Interface", 4},
		{"Mock Microphone", 2},
		{"Mock Speakers", 2},
	}
	for _, tt := range tests {
		got, err := catalog.MaxChannels(tt.device)
		if err != nil {
			t.Fatalf("MaxChannels(%q) failed: %v", tt.device, err)
		}
		if got != tt.expected {
			t.Errorf("MaxChannels(%q): expected %d, got %d", tt.device, tt.expected, got)
		}
	}
}

func TestCatalog_DefaultConfigs(t *testing.T) {
	catalog := newTestCatalog(t)

	in, err := catalog.DefaultInputConfig("Duplex Interface")
	if err != nil {
		t.Fatalf("DefaultInputConfig failed: %v", err)
	}
	if in.Channels != 1 || in.SampleRate != 48000 {
		t.Errorf("Unexpected default input config: %+v", in)
	}

	out, err := catalog.DefaultOutputConfig("Duplex Interface")
	if err != nil {
		t.Fatalf("DefaultOutputConfig failed: %v", err)
	}
	if out.Channels != 2 || out.SampleRate != 48000 {
		t.Errorf("Unexpected default output config: %+v", out)
	}
}
