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

import "sync/atomic"

// The feeds are the real-time halves of a stream: small value types holding
// exactly the channel endpoint and a counter pointer, invoked by the
// provider on its audio thread. Neither half may block, take a lock, or
// fail loudly; the only fallible operation on the hot path is the bounded
// channel try-send/try-receive, and both outcomes are handled inline.

// captureFeed moves hardware input buffers into the stream's channel.
type captureFeed struct {
	out     chan<- []float32
	dropped *atomic.Uint64
}

// process copies one hardware buffer and try-sends it. The input slice is
// only valid for the duration of the call, so the copy is mandatory. A full
// channel means the consumer is behind; the buffer is dropped and counted.
func (f captureFeed) process(input []float32) {
	buf := make([]float32, len(input))
	copy(buf, input)
	select {
	case f.out <- buf:
	default:
		f.dropped.Add(1)
	}
}

// playbackFeed fills hardware output buffers from the stream's channel.
type playbackFeed struct {
	in       <-chan []float32
	silences *atomic.Uint64
}

// process try-receives one queued buffer. On a hit the samples are copied
// in and the remainder zero-filled; on an empty channel the whole buffer is
// zero-filled, playing silence rather than whatever the memory held.
func (f playbackFeed) process(output []float32) {
	select {
	case buf := <-f.in:
		n := copy(output, buf)
		zeroFill(output[n:])
	default:
		f.silences.Add(1)
		zeroFill(output)
	}
}

func zeroFill(out []float32) {
	for i := range out {
		out[i] = 0
	}
}
