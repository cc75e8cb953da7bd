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
	"net"
	"testing"

	"github.com/cectc/dbclient/bytecodec"
	"github.com/cectc/dbclient/mysql"
	"github.com/cectc/dbclient/mysqlconst"
)

const fakeScramble = "01234567890123456789"

// buildGreeting constructs a protocol-version-10 handshake packet
// advertising plugin as the default auth plugin, matching the layout
// mysql.ParseHandshake expects.
func buildGreeting(caps mysqlconst.Capability, plugin string) []byte {
	buf := []byte{10}
	buf = append(buf, []byte("8.0.30-fake")...)
	buf = append(buf, 0)
	buf = append(buf, 1, 0, 0, 0) // connection id
	buf = append(buf, fakeScramble[:8]...)
	buf = append(buf, 0) // filler

	capLow := uint16(caps)
	capHigh := uint16(caps >> 16)
	buf = append(buf, byte(capLow), byte(capLow>>8))
	buf = append(buf, 0x2d) // character set
	buf = append(buf, 0x02, 0x00)
	buf = append(buf, byte(capHigh), byte(capHigh>>8))
	buf = append(buf, 21) // auth-plugin-data-length: 8 + 13
	buf = append(buf, make([]byte, 10)...)
	buf = append(buf, fakeScramble[8:]...) // 12 bytes
	buf = append(buf, 0)                   // trailing null of challenge part 2
	buf = append(buf, []byte(plugin)...)
	buf = append(buf, 0)
	return buf
}

func buildOK() []byte {
	return []byte{mysqlconst.OKPacket, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00}
}

func buildErr(code uint16, state, msg string) []byte {
	buf := []byte{mysqlconst.ErrPacket, byte(code), byte(code >> 8), '#'}
	buf = append(buf, []byte(state)...)
	buf = append(buf, []byte(msg)...)
	return buf
}

// buildOKWithMoreResults builds an OK packet whose status flags signal
// that another resultset follows (spec.md §3), for CLIENT_DEPRECATE_EOF
// connections where the resultset terminator is an OK packet.
func buildOKWithMoreResults() []byte {
	buf := make([]byte, 128)
	pos := bytecodec.WriteByte(buf, 0, mysqlconst.OKPacket)
	pos = bytecodec.WriteLenEncInt(buf, pos, 0)
	pos = bytecodec.WriteLenEncInt(buf, pos, 0)
	pos = bytecodec.WriteUint16(buf, pos, mysqlconst.ServerMoreResultsExists)
	pos = bytecodec.WriteUint16(buf, pos, 0)
	return buf[:pos]
}

// buildColumnDef builds a minimal column-definition packet for name,
// typed as VARCHAR (VAR_STRING), matching the layout mysql.ParseColumnDefinition
// expects.
func buildColumnDef(name string) []byte {
	buf := make([]byte, 256)
	pos := bytecodec.WriteLenEncString(buf, 0, "def")
	pos = bytecodec.WriteLenEncString(buf, pos, "")
	pos = bytecodec.WriteLenEncString(buf, pos, "")
	pos = bytecodec.WriteLenEncString(buf, pos, "")
	pos = bytecodec.WriteLenEncString(buf, pos, name)
	pos = bytecodec.WriteLenEncString(buf, pos, "")
	pos = bytecodec.WriteLenEncInt(buf, pos, 0x0c)
	pos = bytecodec.WriteUint16(buf, pos, 0x2d) // utf8mb4_general_ci
	pos = bytecodec.WriteUint32(buf, pos, 255)
	pos = bytecodec.WriteByte(buf, pos, byte(mysqlconst.FieldTypeVarString))
	pos = bytecodec.WriteUint16(buf, pos, 0)
	pos = bytecodec.WriteByte(buf, pos, 0)
	pos = bytecodec.WriteZeroes(buf, pos, 2)
	return buf[:pos]
}

// buildTextRow builds a text-protocol row packet from column values.
func buildTextRow(values ...string) []byte {
	buf := make([]byte, 256)
	pos := 0
	for _, v := range values {
		pos = bytecodec.WriteLenEncString(buf, pos, v)
	}
	return buf[:pos]
}

// fakeServer runs a minimal handshake then hands off to handleCommand for
// every subsequent client packet, until the client disconnects or sends
// COM_QUIT.
type fakeServer struct {
	ln   net.Listener
	caps mysqlconst.Capability
	plugin string
	handleCommand func(sc *mysql.Conn, data []byte) (done bool)
}

func startFakeServer(t *testing.T, srv *fakeServer) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv.ln = ln
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go srv.serve(c)
		}
	}()
	return ln.Addr().String()
}

func (s *fakeServer) serve(c net.Conn) {
	defer c.Close()
	sc := mysql.NewConn(c)

	if err := sc.WritePacket(buildGreeting(s.caps, s.plugin)); err != nil {
		return
	}
	if _, err := sc.ReadPacket(); err != nil {
		return
	}
	if err := sc.WritePacket(buildOK()); err != nil {
		return
	}

	for {
		// Each client command restarts the sequence counter at 0 on both
		// ends; the server side must reset too, or the next reply's
		// sequence byte would desync from what the client expects.
		sc.ResetSequence()
		data, err := sc.ReadPacket()
		if err != nil {
			return
		}
		if s.handleCommand == nil {
			return
		}
		if s.handleCommand(sc, data) {
			return
		}
	}
}

// okOnPingResetQuit is a handleCommand that answers every command with an
// OK packet, except COM_QUIT which ends the session.
func okOnPingResetQuit(sc *mysql.Conn, data []byte) bool {
	if len(data) == 0 {
		return true
	}
	switch data[0] {
	case mysqlconst.ComQuit:
		return true
	default:
		_ = sc.WritePacket(buildOK())
		return false
	}
}
