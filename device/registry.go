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

// Package device caches enumerated audio devices and answers capability
// questions about them. It sits between the hardware provider and the
// stream engine: the Registry maps stable device names to enumeration
// snapshots, the Catalog derives capability summaries from the provider's
// reported ranges.
package device

import (
	"fmt"
	"sync"

	"github.com/cadenzalabs/cadenza/hardware"
)

// Registry maps device names to enumeration snapshots. It is populated
// lazily: enumerating a host or resolving a default inserts every device
// seen, and Lookup falls back to a fresh enumeration before giving up.
// Snapshots are values, so re-enumeration overwrites by name without
// mutating anything a caller already holds.
//
// A Registry is constructed by the composition root and shared by
// reference; all methods are safe for concurrent use.
type Registry struct {
	provider hardware.Provider

	mu      sync.RWMutex
	devices map[string]hardware.DeviceInfo
}

// NewRegistry creates an empty registry backed by the given provider.
func NewRegistry(provider hardware.Provider) *Registry {
	return &Registry{
		provider: provider,
		devices:  make(map[string]hardware.DeviceInfo),
	}
}

// Hosts lists the available host APIs.
func (r *Registry) Hosts() ([]hardware.HostInfo, error) {
	return r.provider.Hosts()
}

// Devices enumerates the devices of one host (the default host when hostID
// is empty) and caches every returned device by name.
func (r *Registry) Devices(hostID string) ([]hardware.DeviceInfo, error) {
	devices, err := r.provider.Devices(hostID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	for _, dev := range devices {
		r.devices[dev.Name] = dev
	}
	r.mu.Unlock()
	return devices, nil
}

// DefaultInputDevice resolves the provider's default capture device and
// caches it.
func (r *Registry) DefaultInputDevice() (hardware.DeviceInfo, error) {
	dev, err := r.provider.DefaultInputDevice()
	if err != nil {
		return hardware.DeviceInfo{}, err
	}
	r.insert(dev)
	return dev, nil
}

// DefaultOutputDevice resolves the provider's default playback device and
// caches it.
func (r *Registry) DefaultOutputDevice() (hardware.DeviceInfo, error) {
	dev, err := r.provider.DefaultOutputDevice()
	if err != nil {
		return hardware.DeviceInfo{}, err
	}
	r.insert(dev)
	return dev, nil
}

// Lookup resolves a device by name: cache hit first, then a fallback
// enumeration of the default host scanning by name. The fallback goes
// through Devices, so everything it enumerates lands in the cache, not
// just the match. Misses on both paths fail with
// hardware.ErrDeviceNotFound.
func (r *Registry) Lookup(name string) (hardware.DeviceInfo, error) {
	r.mu.RLock()
	dev, ok := r.devices[name]
	r.mu.RUnlock()
	if ok {
		return dev, nil
	}

	devices, err := r.Devices("")
	if err != nil {
		return hardware.DeviceInfo{}, err
	}
	for _, dev := range devices {
		if dev.Name == name {
			return dev, nil
		}
	}
	return hardware.DeviceInfo{}, fmt.Errorf("%w: %q", hardware.ErrDeviceNotFound, name)
}

// Len reports how many devices are cached.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

func (r *Registry) insert(dev hardware.DeviceInfo) {
	r.mu.Lock()
	r.devices[dev.Name] = dev
	r.mu.Unlock()
}
