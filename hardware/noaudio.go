//go:build !cgo || noaudio

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

// The real providers are cgo bindings. These constructors keep pure-Go
// builds (and the mock-driven test suite) compiling; callers get
// ErrUnavailable and can fall back to the mock.

// NewPortAudioProvider is unavailable without cgo.
func NewPortAudioProvider() (Provider, error) {
	return nil, ErrUnavailable
}

// NewMalgoProvider is unavailable without cgo.
func NewMalgoProvider() (Provider, error) {
	return nil, ErrUnavailable
}
