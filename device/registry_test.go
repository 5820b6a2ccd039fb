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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadenzalabs/cadenza/hardware"
)

func newTestRegistry(t *testing.T) (*Registry, *hardware.MockProvider) {
	t.Helper()

	mock := hardware.NewMockProvider()
	require.NoError(t, mock.Initialize())
	t.Cleanup(func() { _ = mock.Terminate() }) // Ignore errors during test cleanup

	return NewRegistry(mock), mock
}

// TestRegistryEnumeration tests host and device listing
func TestRegistryEnumeration(t *testing.T) {
	t.Run("hosts_passthrough", func(t *testing.T) {
		registry, _ := newTestRegistry(t)

		hosts, err := registry.Hosts()
		require.NoError(t, err)
		require.Len(t, hosts, 1)
		assert.Equal(t, "mock", hosts[0].ID)
	})

	t.Run("devices_populate_the_cache", func(t *testing.T) {
		registry, _ := newTestRegistry(t)
		require.Equal(t, 0, registry.Len(), "registry should start empty")

		devices, err := registry.Devices("")
		require.NoError(t, err)
		require.Len(t, devices, 2)
		assert.Equal(t, 2, registry.Len(), "enumeration should cache every device")
	})

	t.Run("unknown_host", func(t *testing.T) {
		registry, _ := newTestRegistry(t)

		_, err := registry.Devices("asio")
		assert.ErrorIs(t, err, hardware.ErrHostNotFound)
	})

	t.Run("provider_failure_propagates", func(t *testing.T) {
		registry, mock := newTestRegistry(t)
		mock.SetDevicesError(fmt.Errorf("driver crashed"))

		_, err := registry.Devices("")
		var perr *hardware.ProviderError
		require.ErrorAs(t, err, &perr, "enumeration failure should surface as a ProviderError")
		assert.Contains(t, perr.Error(), "driver crashed")
	})
}

// TestRegistryDefaults tests default-device resolution
func TestRegistryDefaults(t *testing.T) {
	t.Run("default_devices_are_cached", func(t *testing.T) {
		registry, _ := newTestRegistry(t)

		in, err := registry.DefaultInputDevice()
		require.NoError(t, err)
		assert.Equal(t, "Mock Microphone", in.Name)
		assert.True(t, in.IsDefaultInput)

		out, err := registry.DefaultOutputDevice()
		require.NoError(t, err)
		assert.Equal(t, "Mock Speakers", out.Name)
		assert.True(t, out.IsDefaultOutput)

		assert.Equal(t, 2, registry.Len(), "both defaults should be cached")
	})

	t.Run("no_default_device", func(t *testing.T) {
		mock := hardware.NewMockProvider()
		mock.AddDevice(hardware.MockDevice{
			Info: hardware.DeviceInfo{Name: "Mock Microphone", HostID: "mock", MaxInputChannels: 2},
		}) // Overwrite the seeded default flag.
		require.NoError(t, mock.Initialize())
		t.Cleanup(func() { _ = mock.Terminate() })

		registry := NewRegistry(mock)
		_, err := registry.DefaultInputDevice()
		assert.ErrorIs(t, err, hardware.ErrDeviceNotFound)
	})
}

// TestRegistryLookup tests name resolution and the fallback enumeration
func TestRegistryLookup(t *testing.T) {
	t.Run("cache_hit", func(t *testing.T) {
		registry, _ := newTestRegistry(t)
		_, err := registry.Devices("")
		require.NoError(t, err)

		dev, err := registry.Lookup("Mock Speakers")
		require.NoError(t, err)
		assert.Equal(t, 2, dev.MaxOutputChannels)
	})

	t.Run("cold_lookup_enumerates", func(t *testing.T) {
		registry, mock := newTestRegistry(t)

		dev, err := registry.Lookup("Mock Microphone")
		require.NoError(t, err, "a cold lookup should fall back to enumeration")
		assert.Equal(t, "Mock Microphone", dev.Name)
		assert.Equal(t, 2, registry.Len(), "the fallback enumeration caches what it finds")

		// The sibling device must be served from the cache, not another
		// enumeration.
		mock.SetDevicesError(fmt.Errorf("driver crashed"))
		sibling, err := registry.Lookup("Mock Speakers")
		require.NoError(t, err, "sibling devices seen by the fallback should be cache hits")
		assert.Equal(t, "Mock Speakers", sibling.Name)
	})

	t.Run("unknown_device", func(t *testing.T) {
		registry, _ := newTestRegistry(t)

		_, err := registry.Lookup("Imaginary Device")
		require.ErrorIs(t, err, hardware.ErrDeviceNotFound)
		assert.Contains(t, err.Error(), "Imaginary Device")
	})

	t.Run("reenumeration_overwrites_by_name", func(t *testing.T) {
		registry, mock := newTestRegistry(t)
		_, err := registry.Devices("")
		require.NoError(t, err)

		updated := hardware.MockDevice{
			Info: hardware.DeviceInfo{
				Name:              "Mock Speakers",
				HostID:            "mock",
				MaxOutputChannels: 8,
				DefaultSampleRate: 96000,
				IsDefaultOutput:   true,
			},
		}
		mock.AddDevice(updated)
		_, err = registry.Devices("")
		require.NoError(t, err)

		dev, err := registry.Lookup("Mock Speakers")
		require.NoError(t, err)
		assert.Equal(t, 8, dev.MaxOutputChannels, "re-enumeration should replace the snapshot")
		assert.Equal(t, 2, registry.Len(), "no duplicate entry for the same name")
	})
}
