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
	"fmt"
	"sort"

	"github.com/cadenzalabs/cadenza/hardware"
)

// ErrUnsupported is returned when a device reports zero capability ranges
// for the requested direction.
var ErrUnsupported = errors.New("direction not supported by device")

// Catalog answers capability questions about registered devices. It is a
// pure read path: every query resolves the device through the Registry
// (caching it on the way) and then asks the provider for the ranges.
type Catalog struct {
	provider hardware.Provider
	registry *Registry
}

// NewCatalog creates a catalog reading through the given registry.
func NewCatalog(provider hardware.Provider, registry *Registry) *Catalog {
	return &Catalog{provider: provider, registry: registry}
}

// InputConfigs reports the capture capability ranges of a device. A device
// with no capture side fails with ErrUnsupported.
func (c *Catalog) InputConfigs(name string) ([]hardware.ConfigRange, error) {
	if _, err := c.registry.Lookup(name); err != nil {
		return nil, err
	}
	ranges, err := c.provider.InputConfigs(name)
	if err != nil {
		return nil, err
	}
	if len(ranges) == 0 {
		return nil, fmt.Errorf("%w: %q has no input configurations", ErrUnsupported, name)
	}
	return ranges, nil
}

// OutputConfigs reports the playback capability ranges of a device. A
// device with no playback side fails with ErrUnsupported.
func (c *Catalog) OutputConfigs(name string) ([]hardware.ConfigRange, error) {
	if _, err := c.registry.Lookup(name); err != nil {
		return nil, err
	}
	ranges, err := c.provider.OutputConfigs(name)
	if err != nil {
		return nil, err
	}
	if len(ranges) == 0 {
		return nil, fmt.Errorf("%w: %q has no output configurations", ErrUnsupported, name)
	}
	return ranges, nil
}

// DefaultInputConfig returns the device's preferred capture configuration.
func (c *Catalog) DefaultInputConfig(name string) (hardware.StreamConfig, error) {
	if _, err := c.registry.Lookup(name); err != nil {
		return hardware.StreamConfig{}, err
	}
	return c.provider.DefaultInputConfig(name)
}

// DefaultOutputConfig returns the device's preferred playback configuration.
func (c *Catalog) DefaultOutputConfig(name string) (hardware.StreamConfig, error) {
	if _, err := c.registry.Lookup(name); err != nil {
		return hardware.StreamConfig{}, err
	}
	return c.provider.DefaultOutputConfig(name)
}

// Formats returns the sample formats appearing in either direction's
// ranges, deduplicated, in discovery order (input ranges scanned before
// output ranges).
func (c *Catalog) Formats(name string) ([]hardware.SampleFormat, error) {
	input, output, err := c.bothDirections(name)
	if err != nil {
		return nil, err
	}

	var formats []hardware.SampleFormat
	seen := make(map[hardware.SampleFormat]bool)
	for _, r := range append(input, output...) {
		if seen[r.Format] {
			continue
		}
		seen[r.Format] = true
		formats = append(formats, r.Format)
	}
	return formats, nil
}

// SampleRates returns every Min and Max boundary from both directions'
// ranges, deduplicated, ascending.
func (c *Catalog) SampleRates(name string) ([]float64, error) {
	input, output, err := c.bothDirections(name)
	if err != nil {
		return nil, err
	}

	var rates []float64
	seen := make(map[float64]bool)
	for _, r := range append(input, output...) {
		for _, rate := range []float64{r.MinSampleRate, r.MaxSampleRate} {
			if seen[rate] {
				continue
			}
			seen[rate] = true
			rates = append(rates, rate)
		}
	}
	sort.Float64s(rates)
	return rates, nil
}

// MaxChannels returns the highest channel count across both directions'
// ranges, 0 when the device reports none.
func (c *Catalog) MaxChannels(name string) (int, error) {
	input, output, err := c.bothDirections(name)
	if err != nil {
		return 0, err
	}

	max := 0
	for _, r := range append(input, output...) {
		if r.Channels > max {
			max = r.Channels
		}
	}
	return max, nil
}

// bothDirections fetches both directions' raw ranges. Unlike the
// per-direction queries an empty result is not an error here: the derived
// listings simply reflect whatever the device reports.
func (c *Catalog) bothDirections(name string) ([]hardware.ConfigRange, []hardware.ConfigRange, error) {
	if _, err := c.registry.Lookup(name); err != nil {
		return nil, nil, err
	}
	input, err := c.provider.InputConfigs(name)
	if err != nil {
		return nil, nil, err
	}
	output, err := c.provider.OutputConfigs(name)
	if err != nil {
		return nil, nil, err
	}
	return input, output, nil
}
