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

package main

import (
	"context"
	"testing"
	"time"

	"github.com/cadenzalabs/cadenza/device"
	"github.com/cadenzalabs/cadenza/hardware"
	"github.com/cadenzalabs/cadenza/stream"
)

func TestFloat32FromPCM16(t *testing.T) {
	tests := []struct {
		name     string
		pcm      []byte
		expected []float32
	}{
		{
			name:     "silence",
			pcm:      []byte{0x00, 0x00, 0x00, 0x00},
			expected: []float32{0, 0},
		},
		{
			name:     "full scale",
			pcm:      []byte{0xFF, 0x7F, 0x00, 0x80},
			expected: []float32{32767.0 / 32768, -1},
		},
		{
			name:     "trailing odd byte ignored",
			pcm:      []byte{0x00, 0x40, 0xAB},
			expected: []float32{0.5},
		},
		{
			name:     "empty input",
			pcm:      nil,
			expected: []float32{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := float32FromPCM16(tt.pcm)
			if len(got) != len(tt.expected) {
				t.Fatalf("Expected %d samples, got %d", len(tt.expected), len(got))
			}
			for i, want := range tt.expected {
				if got[i] != want {
					t.Errorf("Sample %d: expected %f, got %f", i, want, got[i])
				}
			}
		})
	}
}

func TestBuildProvider(t *testing.T) {
	if _, err := buildProvider("mock"); err != nil {
		t.Errorf("mock backend should always be available, got %v", err)
	}
	if _, err := buildProvider("winmm"); err == nil {
		t.Error("Expected an error for an unknown backend name")
	}
}

func TestEnvDefault(t *testing.T) {
	t.Setenv("SOUNDCHECK_TEST_KEY", "from-env")
	if got := envDefault("SOUNDCHECK_TEST_KEY", "fallback"); got != "from-env" {
		t.Errorf("Expected env value, got %q", got)
	}
	if got := envDefault("SOUNDCHECK_UNSET_KEY", "fallback"); got != "fallback" {
		t.Errorf("Expected fallback, got %q", got)
	}
}

func TestWriteFrames_RetriesThroughBackpressure(t *testing.T) {
	mock := hardware.NewMockProvider()
	if err := mock.Initialize(); err != nil {
		t.Fatalf("Failed to initialize mock provider: %v", err)
	}
	defer func() { _ = mock.Terminate() }()

	registry := device.NewRegistry(mock)
	engine := stream.NewEngine(mock, registry, stream.WithChannelCapacity(1))
	defer engine.Shutdown()

	id, err := engine.CreateOutputStream("Mock Speakers",
		hardware.StreamConfig{Channels: 2, SampleRate: 48000, Format: hardware.FormatF32})
	if err != nil {
		t.Fatalf("Failed to create playback stream: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	buf := []float32{1, 2, 3, 4}
	if err := writeFrames(ctx, engine, id, buf); err != nil {
		t.Fatalf("First write should succeed: %v", err)
	}

	// The queue is full now; drain it from a fake audio thread so the
	// retry loop can make progress.
	go func() {
		time.Sleep(20 * time.Millisecond)
		mock.LastStream().FillOutput(make([]float32, 4))
	}()
	if err := writeFrames(ctx, engine, id, buf); err != nil {
		t.Fatalf("Write should succeed once a buffer is drained: %v", err)
	}

	// Cancelled context stops the retry loop instead of spinning forever.
	cancelled, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	if err := writeFrames(cancelled, engine, id, buf); err == nil {
		t.Fatal("Expected a context error on a full queue with a cancelled context")
	}
}
