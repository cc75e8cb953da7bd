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

package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cectc/dbclient/mysqlconst"
)

func TestScramblePasswordEmptyPassword(t *testing.T) {
	assert.Nil(t, scramblePassword([]byte("01234567890123456789"), ""))
}

func TestScramblePasswordIsDeterministic(t *testing.T) {
	scramble := []byte("01234567890123456789")
	a := scramblePassword(scramble, "secret")
	b := scramblePassword(scramble, "secret")
	assert.Equal(t, a, b)
	assert.Len(t, a, 20)
}

func TestScrambleSHA256PasswordIsDeterministic(t *testing.T) {
	scramble := []byte("01234567890123456789")
	a := scrambleSHA256Password(scramble, "secret")
	b := scrambleSHA256Password(scramble, "secret")
	assert.Equal(t, a, b)
	assert.Len(t, a, 32)
}

func TestScrambleOldPasswordIsDeterministic(t *testing.T) {
	scramble := []byte("01234567")
	a := scrambleOldPassword(scramble, "secret")
	b := scrambleOldPassword(scramble, "secret")
	assert.Equal(t, a, b)
	assert.Len(t, a, 8)
}

func TestAuthResponseNativePassword(t *testing.T) {
	c := &Conn{cfg: &Config{Passwd: "secret"}}
	resp, err := c.authResponse([]byte("01234567890123456789"), mysqlconst.AuthNativePassword)
	require.NoError(t, err)
	assert.Len(t, resp, 20)
}

func TestAuthResponseClearPasswordAppendsNUL(t *testing.T) {
	c := &Conn{cfg: &Config{Passwd: "secret"}}
	resp, err := c.authResponse(nil, mysqlconst.AuthClearPassword)
	require.NoError(t, err)
	assert.Equal(t, []byte("secret\x00"), resp)
}

func TestAuthResponseSHA256PasswordRequiresSecureConn(t *testing.T) {
	c := &Conn{cfg: &Config{Passwd: "secret", Net: "tcp"}}
	_, err := c.authResponse([]byte("01234567890123456789"), mysqlconst.AuthSHA256Password)
	require.Error(t, err)
}

func TestAuthResponseSHA256PasswordAllowedOverUnixSocket(t *testing.T) {
	c := &Conn{cfg: &Config{Passwd: "secret", Net: "unix"}}
	resp, err := c.authResponse([]byte("01234567890123456789"), mysqlconst.AuthSHA256Password)
	require.NoError(t, err)
	assert.Equal(t, []byte("secret\x00"), resp)
}

func TestAuthResponseUnknownPlugin(t *testing.T) {
	c := &Conn{cfg: &Config{Passwd: "secret"}}
	_, err := c.authResponse(nil, "some_future_plugin")
	require.Error(t, err)
}
