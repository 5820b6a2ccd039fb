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
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized is returned by provider operations invoked before
	// Initialize (or after Terminate).
	ErrNotInitialized = errors.New("audio provider not initialized")

	// ErrHostNotFound is returned when a host id does not match any
	// available host API.
	ErrHostNotFound = errors.New("host not found")

	// ErrDeviceNotFound is returned when a device name does not resolve to
	// any enumerable device.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrConfigRejected is returned when the device refuses the negotiated
	// stream configuration. The wrapped error carries the provider's
	// diagnostic.
	ErrConfigRejected = errors.New("configuration rejected by device")

	// ErrUnavailable is returned by provider constructors in builds where
	// the backing library is compiled out.
	ErrUnavailable = errors.New("audio provider unavailable in this build")
)

// ProviderError wraps a failure surfaced by the underlying audio subsystem
// during enumeration, capability queries, or stream construction.
type ProviderError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("audio provider: %s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying provider diagnostic.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// providerErr is a small constructor shorthand used by the backends.
func providerErr(op string, err error) error {
	return &ProviderError{Op: op, Err: err}
}
