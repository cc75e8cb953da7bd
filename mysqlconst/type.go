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

// Package mysqlconst holds the wire-level constants the rest of the module
// decodes and encodes against: column field types, column flags,
// capability flags, collations, command bytes and packet marker bytes.
package mysqlconst

// FieldType is the wire-level MySQL column type byte, exactly as it
// appears in a column-definition packet or an execute-statement parameter
// type. Unlike an internal "logical" type enum, this is never remapped by
// the unsigned flag — callers consult Flags separately.
type FieldType byte

const (
	FieldTypeDecimal FieldType = 0x00
	FieldTypeTiny    FieldType = 0x01
	FieldTypeShort   FieldType = 0x02
	FieldTypeLong    FieldType = 0x03
	FieldTypeFloat   FieldType = 0x04
	FieldTypeDouble  FieldType = 0x05
	FieldTypeNULL    FieldType = 0x06
	FieldTypeTimestamp FieldType = 0x07
	FieldTypeLongLong  FieldType = 0x08
	FieldTypeInt24     FieldType = 0x09
	FieldTypeDate      FieldType = 0x0a
	FieldTypeTime      FieldType = 0x0b
	FieldTypeDateTime  FieldType = 0x0c
	FieldTypeYear      FieldType = 0x0d
	FieldTypeNewDate   FieldType = 0x0e
	FieldTypeVarChar   FieldType = 0x0f
	FieldTypeBit       FieldType = 0x10
	FieldTypeJSON       FieldType = 0xf5
	FieldTypeNewDecimal FieldType = 0xf6
	FieldTypeEnum       FieldType = 0xf7
	FieldTypeSet        FieldType = 0xf8
	FieldTypeTinyBLOB   FieldType = 0xf9
	FieldTypeMediumBLOB FieldType = 0xfa
	FieldTypeLongBLOB   FieldType = 0xfb
	FieldTypeBLOB       FieldType = 0xfc
	FieldTypeVarString  FieldType = 0xfd
	FieldTypeString     FieldType = 0xfe
	FieldTypeGeometry   FieldType = 0xff
)

// IsNumeric reports whether the type is encoded as a fixed-width number
// in both text and binary protocols (as opposed to a length-encoded
// string/blob).
func (t FieldType) IsNumeric() bool {
	switch t {
	case FieldTypeTiny, FieldTypeShort, FieldTypeLong, FieldTypeFloat, FieldTypeDouble,
		FieldTypeLongLong, FieldTypeInt24, FieldTypeYear:
		return true
	}
	return false
}

// Column flags, as carried in a column-definition packet's 2-byte flags
// field.
const (
	FlagNotNull       uint16 = 1 << 0
	FlagPriKey        uint16 = 1 << 1
	FlagUniqueKey     uint16 = 1 << 2
	FlagMultipleKey   uint16 = 1 << 3
	FlagBlob          uint16 = 1 << 4
	FlagUnsigned      uint16 = 1 << 5
	FlagZerofill      uint16 = 1 << 6
	FlagBinary        uint16 = 1 << 7
	FlagEnum          uint16 = 1 << 8
	FlagAutoIncrement uint16 = 1 << 9
	FlagTimestamp     uint16 = 1 << 10
	FlagSet           uint16 = 1 << 11
	FlagNoDefaultValue uint16 = 1 << 12
	FlagPartKey        uint16 = 1 << 14
)

// HasUnsignedFlag reports whether the UNSIGNED column flag is set.
func HasUnsignedFlag(flags uint16) bool { return flags&FlagUnsigned != 0 }
