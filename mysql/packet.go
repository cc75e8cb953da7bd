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
	"github.com/cectc/dbclient/mysqlconst"
)

// IsOKPacket reports whether data is an OK packet. Per spec.md §4.5's
// tie-break rules, 0x00 at the start of a packet of length >= 7 in a
// result-reading state is OK; a length < 7 can't carry the fixed OK
// fields (affected_rows lenenc + last_insert_id lenenc + 2 status +
// 2 warnings, minimum 7 bytes) so it is treated as malformed rather than
// guessed at.
func IsOKPacket(data []byte) bool {
	return len(data) > 0 && data[0] == mysqlconst.OKPacket
}

// IsEOFPacket determines whether data is a "true" EOF packet rather than
// an OK packet using the EOF marker (CLIENT_DEPRECATE_EOF) or a lenenc
// integer that happens to start with 0xfe. Per
// https://dev.mysql.com/doc/internals/en/packet-EOF_Packet.html an EOF
// packet is at most 9 bytes (1 marker + up to 2 warnings + up to 2
// status + reserve); anything longer starting with 0xfe is an OK packet
// using the deprecate-eof encoding, not a true EOF.
func IsEOFPacket(data []byte) bool {
	return len(data) > 0 && data[0] == mysqlconst.EOFPacket && len(data) < 9
}

// IsErrorPacket reports whether data is an ERR packet.
func IsErrorPacket(data []byte) bool {
	return len(data) > 0 && data[0] == mysqlconst.ErrPacket
}

// ParseOKPacket parses an OK (or deprecate-eof-flavored OK) packet,
// returning affected_rows, last_insert_id, status flags, warnings and the
// trailing info string per spec.md §4.3 and §3's "OK summary". The info
// string is read as an EOF string; this library never advertises
// CLIENT_SESSION_TRACK, so the server never switches it to the lenenc
// encoding that capability enables.
func ParseOKPacket(data []byte) (affectedRows, lastInsertID uint64, statusFlags, warnings uint16, info string, err error) {
	pos := 1 // marker byte already identified by the caller
	affectedRows, pos, ok := bytecodec.ReadLenEncInt(data, pos)
	if !ok {
		return 0, 0, 0, 0, "", errors.NewSQLError(errors.CRMalformedPacket, errors.SSUnknownSQLState, "invalid OK packet affected_rows")
	}
	lastInsertID, pos, ok = bytecodec.ReadLenEncInt(data, pos)
	if !ok {
		return 0, 0, 0, 0, "", errors.NewSQLError(errors.CRMalformedPacket, errors.SSUnknownSQLState, "invalid OK packet last_insert_id")
	}
	statusFlags, pos, ok = bytecodec.ReadUint16(data, pos)
	if !ok {
		return 0, 0, 0, 0, "", errors.NewSQLError(errors.CRMalformedPacket, errors.SSUnknownSQLState, "invalid OK packet status flags")
	}
	warnings, pos, ok = bytecodec.ReadUint16(data, pos)
	if !ok {
		return 0, 0, 0, 0, "", errors.NewSQLError(errors.CRMalformedPacket, errors.SSUnknownSQLState, "invalid OK packet warnings")
	}
	info, _, ok = bytecodec.ReadEOFString(data, pos)
	if !ok {
		return 0, 0, 0, 0, "", errors.NewSQLError(errors.CRMalformedPacket, errors.SSUnknownSQLState, "invalid OK packet info")
	}
	return affectedRows, lastInsertID, statusFlags, warnings, info, nil
}

// ParseEOFPacket parses a true EOF packet, returning the warning count
// and whether more resultsets follow (status flag ServerMoreResultsExists).
func ParseEOFPacket(data []byte) (warnings uint16, more bool, err error) {
	warnings, _, _ = bytecodec.ReadUint16(data, 1)
	statusFlags, _, ok := bytecodec.ReadUint16(data, 3)
	if !ok {
		return 0, false, errors.NewSQLError(errors.CRMalformedPacket, errors.SSUnknownSQLState, "invalid EOF packet status flags")
	}
	return warnings, statusFlags&mysqlconst.ServerMoreResultsExists != 0, nil
}

// ParseErrorPacket parses an ERR packet into a *errors.SQLError.
func ParseErrorPacket(data []byte) error {
	pos := 1
	code, pos, ok := bytecodec.ReadUint16(data, pos)
	if !ok {
		return errors.NewSQLError(errors.CRUnknownError, errors.SSUnknownSQLState, "invalid error packet code")
	}
	pos++ // '#' SQL state marker
	state, pos, ok := bytecodec.ReadBytes(data, pos, 5)
	if !ok {
		return errors.NewSQLError(errors.CRUnknownError, errors.SSUnknownSQLState, "invalid error packet sql state")
	}
	msg, _, _ := bytecodec.ReadEOFString(data, pos)
	return errors.NewSQLError(int(code), string(state), "%s", msg)
}

// ParseColumnDefinition parses one column-definition packet (spec.md
// §4.3). The catalog field ("def") is fixed and discarded.
func ParseColumnDefinition(data []byte) (*Field, error) {
	pos, ok := bytecodec.SkipLenEncString(data, 0)
	if !ok {
		return nil, errors.NewSQLError(errors.CRMalformedPacket, errors.SSUnknownSQLState, "invalid column definition catalog")
	}
	f := &Field{}
	f.Schema, pos, ok = bytecodec.ReadLenEncString(data, pos)
	if !ok {
		return nil, malformedColumnDef("schema")
	}
	f.Table, pos, ok = bytecodec.ReadLenEncString(data, pos)
	if !ok {
		return nil, malformedColumnDef("table")
	}
	f.OrgTable, pos, ok = bytecodec.ReadLenEncString(data, pos)
	if !ok {
		return nil, malformedColumnDef("org_table")
	}
	f.Name, pos, ok = bytecodec.ReadLenEncString(data, pos)
	if !ok {
		return nil, malformedColumnDef("name")
	}
	f.OrgName, pos, ok = bytecodec.ReadLenEncString(data, pos)
	if !ok {
		return nil, malformedColumnDef("org_name")
	}
	// lenenc "fixed-fields length", typically 0x0c; skip over it.
	_, pos, ok = bytecodec.ReadLenEncInt(data, pos)
	if !ok {
		return nil, malformedColumnDef("fixed-fields length")
	}
	f.CollationID, pos, ok = bytecodec.ReadUint16(data, pos)
	if !ok {
		return nil, malformedColumnDef("collation")
	}
	f.ColumnLength, pos, ok = bytecodec.ReadUint32(data, pos)
	if !ok {
		return nil, malformedColumnDef("column length")
	}
	typ, pos, ok := bytecodec.ReadByte(data, pos)
	if !ok {
		return nil, malformedColumnDef("type")
	}
	f.Type = mysqlconst.FieldType(typ)
	f.Flags, pos, ok = bytecodec.ReadUint16(data, pos)
	if !ok {
		return nil, malformedColumnDef("flags")
	}
	f.Decimals, _, ok = bytecodec.ReadByte(data, pos)
	if !ok {
		return nil, malformedColumnDef("decimals")
	}
	// Trailing bytes are permitted for forward compatibility and ignored.
	return f, nil
}

func malformedColumnDef(field string) error {
	return errors.NewSQLError(errors.CRMalformedPacket, errors.SSUnknownSQLState, "invalid column definition %s", field)
}
