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

package pool

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cectc/dbclient/client"
	"github.com/cectc/dbclient/mysql"
	"github.com/cectc/dbclient/mysqlconst"
)

const fakeScramble = "01234567890123456789"

func buildGreeting() []byte {
	caps := mysqlconst.BaseClientCapabilities
	buf := []byte{10}
	buf = append(buf, []byte("8.0.30-fake")...)
	buf = append(buf, 0)
	buf = append(buf, 1, 0, 0, 0)
	buf = append(buf, fakeScramble[:8]...)
	buf = append(buf, 0)

	capLow := uint16(caps)
	capHigh := uint16(caps >> 16)
	buf = append(buf, byte(capLow), byte(capLow>>8))
	buf = append(buf, 0x2d)
	buf = append(buf, 0x02, 0x00)
	buf = append(buf, byte(capHigh), byte(capHigh>>8))
	buf = append(buf, 21)
	buf = append(buf, make([]byte, 10)...)
	buf = append(buf, fakeScramble[8:]...)
	buf = append(buf, 0)
	buf = append(buf, []byte(mysqlconst.AuthNativePassword)...)
	buf = append(buf, 0)
	return buf
}

func buildOK() []byte {
	return []byte{mysqlconst.OKPacket, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00}
}

// startFakeServer accepts connections, performs the handshake, and then
// answers every command with OK until COM_QUIT closes the session.
func startFakeServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				sc := mysql.NewConn(c)
				if err := sc.WritePacket(buildGreeting()); err != nil {
					return
				}
				if _, err := sc.ReadPacket(); err != nil {
					return
				}
				if err := sc.WritePacket(buildOK()); err != nil {
					return
				}
				for {
					sc.ResetSequence()
					data, err := sc.ReadPacket()
					if err != nil {
						return
					}
					if len(data) == 0 || data[0] == mysqlconst.ComQuit {
						return
					}
					if err := sc.WritePacket(buildOK()); err != nil {
						return
					}
				}
			}(c)
		}
	}()
	return ln.Addr().String()
}

func fakeDialer(addr string) func(ctx context.Context) (*client.Conn, error) {
	return func(ctx context.Context) (*client.Conn, error) {
		cfg := client.NewConfig()
		cfg.Net = "tcp"
		cfg.Addr = addr
		cfg.User = "root"
		cfg.Timeout = 2 * time.Second
		return client.Connect(ctx, cfg, nil)
	}
}
