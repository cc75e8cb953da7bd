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
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cectc/dbclient/mysqlconst"
)

func unhex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	require.NoError(t, err)
	return b
}

func TestParseOKPacket(t *testing.T) {
	data := unhex(t, "04 00 22 00 00 00 28 52 6F 77 73 20 6D 61 74 63 68 65 64 3A 20 35")
	affected, lastID, status, warnings, info, err := ParseOKPacket(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), affected)
	assert.Equal(t, uint64(0), lastID)
	assert.Equal(t, uint16(0x0022), status)
	assert.Equal(t, uint16(0), warnings)
	assert.Equal(t, "Rows matched: 5", info)
}

func TestParseErrorPacket(t *testing.T) {
	msg := "Unknown database 'a'"
	data := append(unhex(t, "19 04 23 34 32 30 30 30"), []byte(msg)...)
	err := ParseErrorPacket(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1049")
	assert.Contains(t, err.Error(), "42000")
	assert.Contains(t, err.Error(), msg)
}

func TestSerializeExecuteStatementUnsignedBigint(t *testing.T) {
	v := Value{Type: mysqlconst.FieldTypeLongLong, Unsigned: true, Uint64: 0x00ABFFFFABACADAE}
	got := SerializeExecuteStatement(1, []Value{v})
	want := unhex(t, "17 01 00 00 00 00 01 00 00 00 00 01 08 80 AE AD AC AB FF FF AB 00")
	assert.Equal(t, want, got)
}

func TestBinaryRowNullBitmapTwoBitOffset(t *testing.T) {
	fields := []*Field{
		{Type: mysqlconst.FieldTypeLong},
		{Type: mysqlconst.FieldTypeLong},
	}
	// column 0 is NULL: bit at position (0+2)=2 of byte 0.
	data := []byte{0x00, 0x04, 0x2a, 0x00, 0x00, 0x00}
	values, err := ParseBinaryRow(data, fields)
	require.NoError(t, err)
	assert.True(t, values[0].IsNull)
	assert.False(t, values[1].IsNull)
	assert.Equal(t, int64(42), values[1].Int64)
}
