/*
 * Copyright 2022 CECTC, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package bytecodec implements the pure byte-cursor functions every wire
// message is built from: fixed-width little-endian integers, MySQL's
// length-encoded ("lenenc") integers and strings, null-terminated strings
// and EOF strings. Every reader takes (data, pos) and returns
// (value, newPos, ok); ok is false on truncation. Writers take (buf, pos)
// and return the new pos; they never fail.
package bytecodec

// ReadByte reads one byte at pos.
func ReadByte(data []byte, pos int) (byte, int, bool) {
	if pos >= len(data) {
		return 0, 0, false
	}
	return data[pos], pos + 1, true
}

// WriteByte writes one byte at pos and returns pos+1.
func WriteByte(data []byte, pos int, value byte) int {
	data[pos] = value
	return pos + 1
}

// ReadBytes reads size bytes starting at pos, returning a view into data.
func ReadBytes(data []byte, pos, size int) ([]byte, int, bool) {
	if pos+size > len(data) {
		return nil, 0, false
	}
	return data[pos : pos+size], pos + size, true
}

// ReadBytesCopy behaves like ReadBytes but returns an owned copy, for
// values that must outlive the buffer they were read from.
func ReadBytesCopy(data []byte, pos, size int) ([]byte, int, bool) {
	view, newPos, ok := ReadBytes(data, pos, size)
	if !ok {
		return nil, 0, false
	}
	out := make([]byte, size)
	copy(out, view)
	return out, newPos, true
}

// WriteBytes writes value at pos and returns the new pos.
func WriteBytes(data []byte, pos int, value []byte) int {
	copy(data[pos:], value)
	return pos + len(value)
}

// ReadUint16 reads a 2-byte little-endian unsigned integer.
func ReadUint16(data []byte, pos int) (uint16, int, bool) {
	if pos+2 > len(data) {
		return 0, 0, false
	}
	return uint16(data[pos]) | uint16(data[pos+1])<<8, pos + 2, true
}

// WriteUint16 writes a 2-byte little-endian unsigned integer.
func WriteUint16(data []byte, pos int, value uint16) int {
	data[pos] = byte(value)
	data[pos+1] = byte(value >> 8)
	return pos + 2
}

// ReadUint24 reads a 3-byte little-endian unsigned integer, the width
// used by the frame header's payload-size field.
func ReadUint24(data []byte, pos int) (uint32, int, bool) {
	if pos+3 > len(data) {
		return 0, 0, false
	}
	return uint32(data[pos]) | uint32(data[pos+1])<<8 | uint32(data[pos+2])<<16, pos + 3, true
}

// WriteUint24 writes a 3-byte little-endian unsigned integer.
func WriteUint24(data []byte, pos int, value uint32) int {
	data[pos] = byte(value)
	data[pos+1] = byte(value >> 8)
	data[pos+2] = byte(value >> 16)
	return pos + 3
}

// ReadUint32 reads a 4-byte little-endian unsigned integer.
func ReadUint32(data []byte, pos int) (uint32, int, bool) {
	if pos+4 > len(data) {
		return 0, 0, false
	}
	return uint32(data[pos]) | uint32(data[pos+1])<<8 | uint32(data[pos+2])<<16 | uint32(data[pos+3])<<24, pos + 4, true
}

// WriteUint32 writes a 4-byte little-endian unsigned integer.
func WriteUint32(data []byte, pos int, value uint32) int {
	data[pos] = byte(value)
	data[pos+1] = byte(value >> 8)
	data[pos+2] = byte(value >> 16)
	data[pos+3] = byte(value >> 24)
	return pos + 4
}

// ReadUint48 reads a 6-byte little-endian unsigned integer, the width
// used by the packed binary TIME/DATETIME day-count-adjacent fields in
// some server versions and by a handful of status counters.
func ReadUint48(data []byte, pos int) (uint64, int, bool) {
	if pos+6 > len(data) {
		return 0, 0, false
	}
	var v uint64
	for i := 5; i >= 0; i-- {
		v = v<<8 | uint64(data[pos+i])
	}
	return v, pos + 6, true
}

// WriteUint48 writes a 6-byte little-endian unsigned integer.
func WriteUint48(data []byte, pos int, value uint64) int {
	for i := 0; i < 6; i++ {
		data[pos+i] = byte(value)
		value >>= 8
	}
	return pos + 6
}

// ReadUint64 reads an 8-byte little-endian unsigned integer.
func ReadUint64(data []byte, pos int) (uint64, int, bool) {
	if pos+8 > len(data) {
		return 0, 0, false
	}
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(data[pos+i])
	}
	return v, pos + 8, true
}

// WriteUint64 writes an 8-byte little-endian unsigned integer.
func WriteUint64(data []byte, pos int, value uint64) int {
	for i := 0; i < 8; i++ {
		data[pos+i] = byte(value)
		value >>= 8
	}
	return pos + 8
}

// LenEncIntSize returns the number of bytes WriteLenEncInt will use to
// encode value, including the lead byte.
func LenEncIntSize(value uint64) int {
	switch {
	case value < 251:
		return 1
	case value < 1<<16:
		return 3
	case value < 1<<24:
		return 4
	default:
		return 9
	}
}

// WriteLenEncInt writes value as a length-encoded integer using the
// standard lead-byte thresholds.
func WriteLenEncInt(data []byte, pos int, value uint64) int {
	switch {
	case value < 251:
		return WriteByte(data, pos, byte(value))
	case value < 1<<16:
		pos = WriteByte(data, pos, 0xfc)
		return WriteUint16(data, pos, uint16(value))
	case value < 1<<24:
		pos = WriteByte(data, pos, 0xfd)
		return WriteUint24(data, pos, uint32(value))
	default:
		pos = WriteByte(data, pos, 0xfe)
		return WriteUint64(data, pos, value)
	}
}

// ReadLenEncInt reads a length-encoded integer. A lead byte of 0xfb in
// this context is not a valid integer lead byte — callers decoding a row
// value must check for 0xfb (NULL) before calling ReadLenEncInt.
func ReadLenEncInt(data []byte, pos int) (uint64, int, bool) {
	lead, pos, ok := ReadByte(data, pos)
	if !ok {
		return 0, 0, false
	}
	switch lead {
	case 0xfc:
		v, pos, ok := ReadUint16(data, pos)
		return uint64(v), pos, ok
	case 0xfd:
		v, pos, ok := ReadUint24(data, pos)
		return uint64(v), pos, ok
	case 0xfe:
		return ReadUint64(data, pos)
	case 0xfb, 0xff:
		return 0, 0, false
	default:
		return uint64(lead), pos, true
	}
}

// WriteLenEncString writes value as a lenenc-length-prefixed byte string.
func WriteLenEncString(data []byte, pos int, value string) int {
	pos = WriteLenEncInt(data, pos, uint64(len(value)))
	return WriteBytes(data, pos, []byte(value))
}

// ReadLenEncString reads a lenenc-length-prefixed string, returning a
// copy so the result outlives the source buffer.
func ReadLenEncString(data []byte, pos int) (string, int, bool) {
	size, pos, ok := ReadLenEncInt(data, pos)
	if !ok {
		return "", 0, false
	}
	view, pos, ok := ReadBytesCopy(data, pos, int(size))
	if !ok {
		return "", 0, false
	}
	return string(view), pos, true
}

// ReadLenEncStringAsBytes reads a lenenc-length-prefixed string as a
// borrowed byte slice view into data.
func ReadLenEncStringAsBytes(data []byte, pos int) ([]byte, int, bool) {
	size, pos, ok := ReadLenEncInt(data, pos)
	if !ok {
		return nil, 0, false
	}
	return ReadBytes(data, pos, int(size))
}

// ReadLenEncStringAsBytesCopy reads a lenenc-length-prefixed string as an
// owned byte slice.
func ReadLenEncStringAsBytesCopy(data []byte, pos int) ([]byte, int, bool) {
	size, pos, ok := ReadLenEncInt(data, pos)
	if !ok {
		return nil, 0, false
	}
	return ReadBytesCopy(data, pos, int(size))
}

// SkipLenEncString advances pos past a lenenc-length-prefixed string
// without copying it.
func SkipLenEncString(data []byte, pos int) (int, bool) {
	size, pos, ok := ReadLenEncInt(data, pos)
	if !ok {
		return 0, false
	}
	if pos+int(size) > len(data) {
		return 0, false
	}
	return pos + int(size), true
}

// WriteNullString writes value followed by a 0x00 terminator.
func WriteNullString(data []byte, pos int, value string) int {
	pos = WriteBytes(data, pos, []byte(value))
	return WriteByte(data, pos, 0x00)
}

// ReadNullString reads up to the first 0x00 byte (exclusive) and returns
// a copy of the bytes before it.
func ReadNullString(data []byte, pos int) (string, int, bool) {
	end := pos
	for end < len(data) && data[end] != 0x00 {
		end++
	}
	if end >= len(data) {
		return "", 0, false
	}
	return string(data[pos:end]), end + 1, true
}

// WriteEOFString writes value with no terminator or length prefix; it
// must be the last field of the message.
func WriteEOFString(data []byte, pos int, value string) int {
	return WriteBytes(data, pos, []byte(value))
}

// ReadEOFString reads every remaining byte in data as a string.
func ReadEOFString(data []byte, pos int) (string, int, bool) {
	if pos > len(data) {
		return "", 0, false
	}
	return string(data[pos:]), len(data), true
}

// WriteZeroes writes n zero bytes starting at pos.
func WriteZeroes(data []byte, pos, n int) int {
	for i := 0; i < n; i++ {
		data[pos+i] = 0
	}
	return pos + n
}
