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

package bytecodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUint24RoundTrip(t *testing.T) {
	buf := make([]byte, 3)
	pos := WriteUint24(buf, 0, 0xcacbcc)
	assert.Equal(t, 3, pos)
	assert.Equal(t, []byte{0xcc, 0xcb, 0xca}, buf)

	v, pos, ok := ReadUint24(buf, 0)
	require.True(t, ok)
	assert.Equal(t, 3, pos)
	assert.Equal(t, uint32(0xcacbcc), v)
}

func TestLenEncIntThresholds(t *testing.T) {
	cases := []struct {
		value uint64
		size  int
	}{
		{0, 1},
		{250, 1},
		{251, 3},
		{1<<16 - 1, 3},
		{1 << 16, 4},
		{1<<24 - 1, 4},
		{1 << 24, 9},
	}
	for _, c := range cases {
		buf := make([]byte, 9)
		pos := WriteLenEncInt(buf, 0, c.value)
		assert.Equal(t, c.size, pos, "value=%d", c.value)

		v, newPos, ok := ReadLenEncInt(buf, 0)
		require.True(t, ok)
		assert.Equal(t, c.size, newPos)
		assert.Equal(t, c.value, v)
	}
}

func TestReadLenEncIntTruncated(t *testing.T) {
	buf := []byte{0xfd, 0x01}
	_, _, ok := ReadLenEncInt(buf, 0)
	assert.False(t, ok)
}

func TestNullString(t *testing.T) {
	buf := make([]byte, 10)
	pos := WriteNullString(buf, 0, "abc")
	assert.Equal(t, 4, pos)

	s, newPos, ok := ReadNullString(buf, 0)
	require.True(t, ok)
	assert.Equal(t, "abc", s)
	assert.Equal(t, 4, newPos)
}

func TestEOFString(t *testing.T) {
	buf := []byte("hello world")
	s, pos, ok := ReadEOFString(buf, 6)
	require.True(t, ok)
	assert.Equal(t, "world", s)
	assert.Equal(t, len(buf), pos)
}

func TestLenEncStringRoundTrip(t *testing.T) {
	buf := make([]byte, 32)
	pos := WriteLenEncString(buf, 0, "Rows matched: 5")
	s, newPos, ok := ReadLenEncString(buf, 0)
	require.True(t, ok)
	assert.Equal(t, pos, newPos)
	assert.Equal(t, "Rows matched: 5", s)
}
