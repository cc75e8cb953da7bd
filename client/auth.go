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
	"crypto/sha1"
	"crypto/sha256"

	"github.com/cectc/dbclient/errors"
	"github.com/cectc/dbclient/mysqlconst"
)

const (
	cachingSha2PasswordFastAuthSuccess           = 3
	cachingSha2PasswordPerformFullAuthentication = 4
)

// scramblePassword hashes password using the 4.1+ method (SHA1), the
// mysql_native_password plugin's response computation.
func scramblePassword(scramble []byte, password string) []byte {
	if len(password) == 0 {
		return nil
	}

	crypt := sha1.New()
	crypt.Write([]byte(password))
	stage1 := crypt.Sum(nil)

	crypt.Reset()
	crypt.Write(stage1)
	hash := crypt.Sum(nil)

	crypt.Reset()
	crypt.Write(scramble)
	crypt.Write(hash)
	scrambled := crypt.Sum(nil)

	for i := range scrambled {
		scrambled[i] ^= stage1[i]
	}
	return scrambled
}

// scrambleSHA256Password computes the caching_sha2_password fast-path
// response: XOR(SHA256(password), SHA256(SHA256(SHA256(password)), scramble)).
func scrambleSHA256Password(scramble []byte, password string) []byte {
	if len(password) == 0 {
		return nil
	}

	crypt := sha256.New()
	crypt.Write([]byte(password))
	message1 := crypt.Sum(nil)

	crypt.Reset()
	crypt.Write(message1)
	message1Hash := crypt.Sum(nil)

	crypt.Reset()
	crypt.Write(message1Hash)
	crypt.Write(scramble)
	message2 := crypt.Sum(nil)

	for i := range message1 {
		message1[i] ^= message2[i]
	}
	return message1
}

// myRnd is MariaDB's linear congruential PRNG, used only by the legacy
// mysql_old_password plugin.
type myRnd struct {
	seed1, seed2 uint32
}

const myRndMaxVal = 0x3FFFFFFF

func newMyRnd(seed1, seed2 uint32) *myRnd {
	return &myRnd{seed1: seed1 % myRndMaxVal, seed2: seed2 % myRndMaxVal}
}

func (r *myRnd) nextByte() byte {
	r.seed1 = (r.seed1*3 + r.seed2) % myRndMaxVal
	r.seed2 = (r.seed1 + r.seed2 + 33) % myRndMaxVal
	return byte(uint64(r.seed1) * 31 / myRndMaxVal)
}

func pwHash(password []byte) (result [2]uint32) {
	var add uint32 = 7
	var tmp uint32
	result[0] = 1345345333
	result[1] = 0x12345671
	for _, c := range password {
		if c == ' ' || c == '\t' {
			continue
		}
		tmp = uint32(c)
		result[0] ^= (((result[0] & 63) + add) * tmp) + (result[0] << 8)
		result[1] += (result[1] << 8) ^ result[0]
		add += tmp
	}
	result[0] &= 0x7FFFFFFF
	result[1] &= 0x7FFFFFFF
	return
}

func scrambleOldPassword(scramble []byte, password string) []byte {
	scramble = scramble[:8]
	hashPw := pwHash([]byte(password))
	hashSc := pwHash(scramble)
	r := newMyRnd(hashPw[0]^hashSc[0], hashPw[1]^hashSc[1])

	var out [8]byte
	for i := range out {
		out[i] = r.nextByte() + 64
	}
	mask := r.nextByte()
	for i := range out {
		out[i] ^= mask
	}
	return out[:]
}

// authResponse computes the initial authentication response for plugin,
// given the server's challenge bytes.
func (c *Conn) authResponse(challenge []byte, plugin string) ([]byte, error) {
	switch plugin {
	case mysqlconst.AuthCachingSHA2Password:
		return scrambleSHA256Password(challenge, c.cfg.Passwd), nil

	case mysqlconst.AuthOldPassword:
		if len(c.cfg.Passwd) == 0 {
			return nil, nil
		}
		return append(scrambleOldPassword(challenge[:8], c.cfg.Passwd), 0), nil

	case mysqlconst.AuthClearPassword:
		return append([]byte(c.cfg.Passwd), 0), nil

	case mysqlconst.AuthNativePassword:
		return scramblePassword(challenge[:20], c.cfg.Passwd), nil

	case mysqlconst.AuthSHA256Password:
		if len(c.cfg.Passwd) == 0 {
			return []byte{0}, nil
		}
		if c.cfg.tls == nil && c.cfg.Net != "unix" {
			return nil, errors.NewSQLError(errors.ErrAuthPluginRequiresSecureConn, errors.SSUnknownSQLState,
				"sha256_password requires a secure connection")
		}
		return append([]byte(c.cfg.Passwd), 0), nil

	default:
		return nil, errors.NewSQLError(errors.ErrUnknownAuthPlugin, errors.SSUnknownSQLState, "unknown auth plugin %q", plugin)
	}
}
