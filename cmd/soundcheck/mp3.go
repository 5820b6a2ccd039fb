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
	"io"

	mp3 "github.com/hajimehoshi/go-mp3"
)

// mp3Channels is fixed by go-mp3: the decoder always emits stereo.
const mp3Channels = 2

// decodeMP3 decodes a whole MP3 stream into interleaved float32 samples
// plus the stream's sample rate. go-mp3 emits 16-bit little-endian PCM.
func decodeMP3(r io.Reader) ([]float32, int, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, 0, err
	}
	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, 0, err
	}
	return float32FromPCM16(pcm), dec.SampleRate(), nil
}

// float32FromPCM16 converts 16-bit little-endian PCM bytes to float32
// samples in [-1, 1). A trailing odd byte is ignored.
func float32FromPCM16(pcm []byte) []float32 {
	samples := make([]float32, 0, len(pcm)/2)
	for i := 0; i+1 < len(pcm); i += 2 {
		s := int16(uint16(pcm[i]) | uint16(pcm[i+1])<<8)
		samples = append(samples, float32(s)/32768)
	}
	return samples
}
