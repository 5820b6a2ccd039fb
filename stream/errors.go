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

package stream

import "errors"

var (
	// ErrStreamNotFound is returned when a stream id is not registered.
	ErrStreamNotFound = errors.New("stream not found")

	// ErrInvalidBuffer is returned when a write carries no samples.
	ErrInvalidBuffer = errors.New("buffer is empty")

	// ErrWrongDirection is returned when writing to a capture stream.
	ErrWrongDirection = errors.New("cannot write to a capture stream")

	// ErrStreamInactive is returned when writing to a paused stream.
	ErrStreamInactive = errors.New("stream is not active")

	// ErrBackpressure is returned when a write finds the stream's bounded
	// channel full. The caller is expected to slow down and retry.
	ErrBackpressure = errors.New("stream buffer is full")

	// ErrNilConsumer is returned when a capture stream is created without
	// a consumer callback.
	ErrNilConsumer = errors.New("capture stream requires a consumer callback")
)
