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

package mysql

import (
	"math"

	"github.com/cectc/dbclient/bytecodec"
	"github.com/cectc/dbclient/errors"
	"github.com/cectc/dbclient/mysqlconst"
)

// ParseTextRow decodes a text-protocol row: a sequence of lenenc strings,
// or the byte 0xfb standing for NULL, one per column in fields.
func ParseTextRow(data []byte, fields []*Field) ([]Value, error) {
	values := make([]Value, len(fields))
	pos := 0
	for i, f := range fields {
		if pos >= len(data) {
			return nil, errors.NewSQLError(errors.CRMalformedPacket, errors.SSUnknownSQLState, "text row truncated at column %d", i)
		}
		if data[pos] == 0xfb {
			values[i] = Value{Type: f.Type, IsNull: true}
			pos++
			continue
		}
		raw, newPos, ok := bytecodec.ReadLenEncStringAsBytesCopy(data, pos)
		if !ok {
			return nil, errors.NewSQLError(errors.CRMalformedPacket, errors.SSUnknownSQLState, "text row malformed at column %d", i)
		}
		values[i] = Value{Type: f.Type, Raw: raw}
		pos = newPos
	}
	return values, nil
}

// ParseBinaryRow decodes a binary-protocol row (spec.md §4.3): a leading
// 0x00 marker, a NULL bitmap of ceil((N+2)/8) bytes with a 2-bit offset,
// then the non-NULL values in column order, each encoded per its type.
func ParseBinaryRow(data []byte, fields []*Field) ([]Value, error) {
	if len(data) < 1 || data[0] != 0x00 {
		return nil, errors.NewSQLError(errors.CRMalformedPacket, errors.SSUnknownSQLState, "binary row missing leading 0x00")
	}
	n := len(fields)
	bitmapLen := (n + 7 + 2) / 8
	bitmap, pos, ok := bytecodec.ReadBytes(data, 1, bitmapLen)
	if !ok {
		return nil, errors.NewSQLError(errors.CRMalformedPacket, errors.SSUnknownSQLState, "binary row NULL bitmap truncated")
	}

	values := make([]Value, n)
	for i, f := range fields {
		bytePos := (i + 2) / 8
		bitPos := uint((i + 2) % 8)
		if bitmap[bytePos]&(1<<bitPos) != 0 {
			values[i] = Value{Type: f.Type, IsNull: true}
			continue
		}
		var v Value
		var err error
		v, pos, err = decodeBinaryValue(data, pos, f.Type, mysqlconst.HasUnsignedFlag(f.Flags))
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

func decodeBinaryValue(data []byte, pos int, typ mysqlconst.FieldType, unsigned bool) (Value, int, error) {
	fail := func(field string) (Value, int, error) {
		return Value{}, 0, errors.NewSQLError(errors.CRMalformedPacket, errors.SSUnknownSQLState, "binary row malformed %s value", field)
	}
	switch typ {
	case mysqlconst.FieldTypeTiny:
		b, newPos, ok := bytecodec.ReadByte(data, pos)
		if !ok {
			return fail("tiny")
		}
		if unsigned {
			return Value{Type: typ, Unsigned: true, Uint64: uint64(b)}, newPos, nil
		}
		return Value{Type: typ, Int64: int64(int8(b))}, newPos, nil
	case mysqlconst.FieldTypeShort, mysqlconst.FieldTypeYear:
		u, newPos, ok := bytecodec.ReadUint16(data, pos)
		if !ok {
			return fail("short")
		}
		if unsigned {
			return Value{Type: typ, Unsigned: true, Uint64: uint64(u)}, newPos, nil
		}
		return Value{Type: typ, Int64: int64(int16(u))}, newPos, nil
	case mysqlconst.FieldTypeLong, mysqlconst.FieldTypeInt24:
		u, newPos, ok := bytecodec.ReadUint32(data, pos)
		if !ok {
			return fail("long")
		}
		if unsigned {
			return Value{Type: typ, Unsigned: true, Uint64: uint64(u)}, newPos, nil
		}
		return Value{Type: typ, Int64: int64(int32(u))}, newPos, nil
	case mysqlconst.FieldTypeLongLong:
		u, newPos, ok := bytecodec.ReadUint64(data, pos)
		if !ok {
			return fail("longlong")
		}
		if unsigned {
			return Value{Type: typ, Unsigned: true, Uint64: u}, newPos, nil
		}
		return Value{Type: typ, Int64: int64(u)}, newPos, nil
	case mysqlconst.FieldTypeFloat:
		u, newPos, ok := bytecodec.ReadUint32(data, pos)
		if !ok {
			return fail("float")
		}
		return Value{Type: typ, Float32: math.Float32frombits(u)}, newPos, nil
	case mysqlconst.FieldTypeDouble:
		u, newPos, ok := bytecodec.ReadUint64(data, pos)
		if !ok {
			return fail("double")
		}
		return Value{Type: typ, Float64: math.Float64frombits(u)}, newPos, nil
	case mysqlconst.FieldTypeDate, mysqlconst.FieldTypeDateTime, mysqlconst.FieldTypeTimestamp:
		return decodeBinaryDateTime(data, pos, typ)
	case mysqlconst.FieldTypeTime:
		return decodeBinaryTime(data, pos)
	default:
		raw, newPos, ok := bytecodec.ReadLenEncStringAsBytesCopy(data, pos)
		if !ok {
			return fail("string")
		}
		return Value{Type: typ, Raw: raw}, newPos, nil
	}
}

// decodeBinaryDateTime decodes the packed date/datetime/timestamp
// encoding: a 1-byte length selector (0, 4, 7 or 11) chooses how many of
// year/month/day/hour/minute/second/microsecond follow (spec.md §4.3).
func decodeBinaryDateTime(data []byte, pos int, typ mysqlconst.FieldType) (Value, int, error) {
	size, pos, ok := bytecodec.ReadByte(data, pos)
	if !ok {
		return Value{}, 0, errors.NewSQLError(errors.CRMalformedPacket, errors.SSUnknownSQLState, "binary datetime length truncated")
	}
	buf := make([]byte, 0, 26)
	if size == 0 {
		return Value{Type: typ, Raw: buf}, pos, nil
	}
	year, pos, _ := bytecodec.ReadUint16(data, pos)
	month, pos, _ := bytecodec.ReadByte(data, pos)
	day, pos, ok := bytecodec.ReadByte(data, pos)
	if !ok {
		return Value{}, 0, errors.NewSQLError(errors.CRMalformedPacket, errors.SSUnknownSQLState, "binary date truncated")
	}
	buf = appendDate(buf, year, month, day)
	if size == 4 {
		return Value{Type: typ, Raw: buf}, pos, nil
	}
	hour, pos, _ := bytecodec.ReadByte(data, pos)
	minute, pos, _ := bytecodec.ReadByte(data, pos)
	second, pos, ok := bytecodec.ReadByte(data, pos)
	if !ok {
		return Value{}, 0, errors.NewSQLError(errors.CRMalformedPacket, errors.SSUnknownSQLState, "binary datetime truncated")
	}
	buf = appendTimeOfDay(buf, hour, minute, second)
	if size == 7 {
		return Value{Type: typ, Raw: buf}, pos, nil
	}
	micro, pos, ok := bytecodec.ReadUint32(data, pos)
	if !ok {
		return Value{}, 0, errors.NewSQLError(errors.CRMalformedPacket, errors.SSUnknownSQLState, "binary datetime microseconds truncated")
	}
	buf = appendMicros(buf, micro)
	return Value{Type: typ, Raw: buf}, pos, nil
}

// decodeBinaryTime decodes the packed TIME encoding: 1-byte length
// selector (0, 8 or 12), a sign byte, a 4-byte day count, hour/minute/
// second, and optionally 4-byte microseconds.
func decodeBinaryTime(data []byte, pos int) (Value, int, error) {
	size, pos, ok := bytecodec.ReadByte(data, pos)
	if !ok {
		return Value{}, 0, errors.NewSQLError(errors.CRMalformedPacket, errors.SSUnknownSQLState, "binary time length truncated")
	}
	if size == 0 {
		return Value{Type: mysqlconst.FieldTypeTime, Raw: []byte("00:00:00")}, pos, nil
	}
	isNeg, pos, _ := bytecodec.ReadByte(data, pos)
	days, pos, _ := bytecodec.ReadUint32(data, pos)
	hour, pos, _ := bytecodec.ReadByte(data, pos)
	minute, pos, _ := bytecodec.ReadByte(data, pos)
	second, pos, ok := bytecodec.ReadByte(data, pos)
	if !ok {
		return Value{}, 0, errors.NewSQLError(errors.CRMalformedPacket, errors.SSUnknownSQLState, "binary time truncated")
	}
	hours := uint32(hour) + days*24
	buf := make([]byte, 0, 16)
	if isNeg == 0x01 {
		buf = append(buf, '-')
	}
	buf = appendUint(buf, hours)
	buf = append(buf, ':')
	buf = appendPadded2(buf, minute)
	buf = append(buf, ':')
	buf = appendPadded2(buf, second)
	if size == 8 {
		return Value{Type: mysqlconst.FieldTypeTime, Raw: buf}, pos, nil
	}
	micro, pos, ok := bytecodec.ReadUint32(data, pos)
	if !ok {
		return Value{}, 0, errors.NewSQLError(errors.CRMalformedPacket, errors.SSUnknownSQLState, "binary time microseconds truncated")
	}
	buf = appendMicros(buf, micro)
	return Value{Type: mysqlconst.FieldTypeTime, Raw: buf}, pos, nil
}

func appendDate(buf []byte, year uint16, month, day byte) []byte {
	buf = appendUint(buf, uint32(year))
	buf = append(buf, '-')
	buf = appendPadded2(buf, month)
	buf = append(buf, '-')
	buf = appendPadded2(buf, day)
	return buf
}

func appendTimeOfDay(buf []byte, hour, minute, second byte) []byte {
	buf = append(buf, ' ')
	buf = appendPadded2(buf, hour)
	buf = append(buf, ':')
	buf = appendPadded2(buf, minute)
	buf = append(buf, ':')
	buf = appendPadded2(buf, second)
	return buf
}

func appendMicros(buf []byte, micro uint32) []byte {
	buf = append(buf, '.')
	digits := [6]byte{}
	for i := 5; i >= 0; i-- {
		digits[i] = byte('0' + micro%10)
		micro /= 10
	}
	return append(buf, digits[:]...)
}

func appendPadded2(buf []byte, v byte) []byte {
	if v < 10 {
		buf = append(buf, '0')
	}
	return appendUint(buf, uint32(v))
}

func appendUint(buf []byte, v uint32) []byte {
	if v == 0 {
		return append(buf, '0')
	}
	var tmp [10]byte
	i := len(tmp)
	for v > 0 {
		i--
		tmp[i] = byte('0' + v%10)
		v /= 10
	}
	return append(buf, tmp[i:]...)
}
