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
	"github.com/cectc/dbclient/bytecodec"
	"github.com/cectc/dbclient/errors"
)

// PrepareResult is the COM_STMT_PREPARE response header (spec.md §3
// "Prepared statement": server-assigned id, column count, parameter
// count); the column metadata for parameters and result columns follows
// as separate column-definition packets, read by the caller.
type PrepareResult struct {
	StatementID  uint32
	ColumnCount  uint16
	ParamCount   uint16
	WarningCount uint16
}

// ParsePrepareResult parses the first packet of a COM_STMT_PREPARE
// response.
func ParsePrepareResult(data []byte) (*PrepareResult, error) {
	pos := 1 // status byte, always 0x00 on success
	id, pos, ok := bytecodec.ReadUint32(data, pos)
	if !ok {
		return nil, errors.NewSQLError(errors.CRMalformedPacket, errors.SSUnknownSQLState, "invalid prepare result statement id")
	}
	columnCount, pos, ok := bytecodec.ReadUint16(data, pos)
	if !ok {
		return nil, errors.NewSQLError(errors.CRMalformedPacket, errors.SSUnknownSQLState, "invalid prepare result column count")
	}
	paramCount, pos, ok := bytecodec.ReadUint16(data, pos)
	if !ok {
		return nil, errors.NewSQLError(errors.CRMalformedPacket, errors.SSUnknownSQLState, "invalid prepare result param count")
	}
	pos++ // filler
	warnings, _, ok := bytecodec.ReadUint16(data, pos)
	if !ok {
		return nil, errors.NewSQLError(errors.CRMalformedPacket, errors.SSUnknownSQLState, "invalid prepare result warning count")
	}
	return &PrepareResult{StatementID: id, ColumnCount: columnCount, ParamCount: paramCount, WarningCount: warnings}, nil
}

// SerializeExecuteStatement builds a COM_STMT_EXECUTE payload (spec.md
// §4.3 "Execute statement"): marker, statement id, flags (always 0),
// iteration count (always 1), then — if params is non-empty — a NULL
// bitmap of ceil(N/8) bytes, a new-params-bound flag (always 1), N
// type/flag pairs, and N non-NULL values.
func SerializeExecuteStatement(statementID uint32, params []Value) []byte {
	buf := make([]byte, 0, 64)
	var header [10]byte
	header[0] = 0x17
	bytecodec.WriteUint32(header[:], 1, statementID)
	header[5] = 0 // flags: no cursor
	bytecodec.WriteUint32(header[:], 6, 1)
	buf = append(buf, header[:]...)

	if len(params) == 0 {
		return buf
	}

	bitmapLen := (len(params) + 7) / 8
	bitmap := make([]byte, bitmapLen)
	for i, p := range params {
		if p.IsNull {
			bitmap[i/8] |= 1 << uint(i%8)
		}
	}
	buf = append(buf, bitmap...)
	buf = append(buf, 0x01) // new-params-bound flag

	for _, p := range params {
		code, flag := BinaryParamType(p)
		buf = append(buf, code, flag)
	}
	for _, p := range params {
		if p.IsNull {
			continue
		}
		buf = EncodeBinaryValue(buf, p)
	}
	return buf
}
