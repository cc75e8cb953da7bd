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
	"github.com/cectc/dbclient/mysqlconst"
)

// intValue returns v's integer payload regardless of whether it was
// populated via Int64 or Uint64, matching scenario #4 of spec.md §8
// (an unsigned bigint whose bit pattern must round-trip exactly).
func intValue(v Value) uint64 {
	if v.Unsigned {
		return v.Uint64
	}
	return uint64(v.Int64)
}

// BinaryParamType returns the 2-byte (type code, unsigned-flag-in-high-byte)
// pair spec.md §4.3's execute-statement encoding requires for each bound
// parameter.
func BinaryParamType(v Value) (code byte, flag byte) {
	if v.Unsigned {
		flag = 0x80
	}
	return byte(v.Type), flag
}

// EncodeBinaryValue appends v's binary-protocol representation (spec.md
// §4.3) to buf and returns the result. NULL values contribute nothing —
// callers must have already marked the parameter's bit in the NULL
// bitmap and must not call EncodeBinaryValue for it.
func EncodeBinaryValue(buf []byte, v Value) []byte {
	switch v.Type {
	case mysqlconst.FieldTypeTiny:
		return append(buf, byte(intValue(v)))
	case mysqlconst.FieldTypeShort, mysqlconst.FieldTypeYear:
		var out [2]byte
		bytecodec.WriteUint16(out[:], 0, uint16(intValue(v)))
		return append(buf, out[:]...)
	case mysqlconst.FieldTypeLong, mysqlconst.FieldTypeInt24:
		var out [4]byte
		bytecodec.WriteUint32(out[:], 0, uint32(intValue(v)))
		return append(buf, out[:]...)
	case mysqlconst.FieldTypeLongLong:
		var out [8]byte
		bytecodec.WriteUint64(out[:], 0, intValue(v))
		return append(buf, out[:]...)
	case mysqlconst.FieldTypeFloat:
		var out [4]byte
		bytecodec.WriteUint32(out[:], 0, math.Float32bits(v.Float32))
		return append(buf, out[:]...)
	case mysqlconst.FieldTypeDouble:
		var out [8]byte
		bytecodec.WriteUint64(out[:], 0, math.Float64bits(v.Float64))
		return append(buf, out[:]...)
	default:
		size := bytecodec.LenEncIntSize(uint64(len(v.Raw))) + len(v.Raw)
		out := make([]byte, size)
		pos := bytecodec.WriteLenEncInt(out, 0, uint64(len(v.Raw)))
		bytecodec.WriteBytes(out, pos, v.Raw)
		return append(buf, out...)
	}
}
