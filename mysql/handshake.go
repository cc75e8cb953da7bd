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

// Handshake is the server→client greeting (spec.md §4.3 "Handshake").
type Handshake struct {
	ProtocolVersion byte
	ServerVersion   string
	ConnectionID    uint32
	AuthPluginData  []byte
	Capabilities    mysqlconst.Capability
	CharacterSet    byte
	StatusFlags     uint16
	AuthPluginName  string
}

// ParseHandshake parses the initial handshake packet. Only protocol
// version 10 is supported; anything else is server_unsupported per
// spec.md §4.5.
func ParseHandshake(data []byte) (*Handshake, error) {
	pos := 0
	version, pos, ok := bytecodec.ReadByte(data, pos)
	if !ok {
		return nil, malformedHandshake("protocol version")
	}
	if version != 10 {
		return nil, errors.NewSQLError(errors.ErrServerUnsupported, errors.SSUnknownSQLState,
			"unsupported handshake protocol version %d", version)
	}

	h := &Handshake{ProtocolVersion: version}
	h.ServerVersion, pos, ok = bytecodec.ReadNullString(data, pos)
	if !ok {
		return nil, malformedHandshake("server version")
	}
	h.ConnectionID, pos, ok = bytecodec.ReadUint32(data, pos)
	if !ok {
		return nil, malformedHandshake("connection id")
	}
	challenge1, pos, ok := bytecodec.ReadBytesCopy(data, pos, 8)
	if !ok {
		return nil, malformedHandshake("challenge part 1")
	}
	pos++ // filler

	capLow, pos, ok := bytecodec.ReadUint16(data, pos)
	if !ok {
		return nil, malformedHandshake("capability flags low")
	}
	h.CharacterSet, pos, ok = bytecodec.ReadByte(data, pos)
	if !ok {
		return nil, malformedHandshake("character set")
	}
	h.StatusFlags, pos, ok = bytecodec.ReadUint16(data, pos)
	if !ok {
		return nil, malformedHandshake("status flags")
	}
	capHigh, pos, ok := bytecodec.ReadUint16(data, pos)
	if !ok {
		return nil, malformedHandshake("capability flags high")
	}
	h.Capabilities = mysqlconst.Capability(uint32(capLow) | uint32(capHigh)<<16)

	authPluginDataLen, pos, ok := bytecodec.ReadByte(data, pos)
	if !ok {
		return nil, malformedHandshake("auth-plugin-data-length")
	}
	pos += 10 // reserved

	challenge2Len := int(authPluginDataLen) - 8
	if challenge2Len < 13 {
		challenge2Len = 13 // at least 12 bytes + null terminator
	}
	challenge2, pos, ok := bytecodec.ReadBytesCopy(data, pos, challenge2Len)
	if !ok {
		return nil, malformedHandshake("challenge part 2")
	}
	if len(challenge2) > 0 && challenge2[len(challenge2)-1] == 0 {
		challenge2 = challenge2[:len(challenge2)-1]
	}
	h.AuthPluginData = append(append([]byte{}, challenge1...), challenge2...)

	if h.Capabilities&mysqlconst.CapabilityClientPluginAuth != 0 {
		h.AuthPluginName, _, _ = bytecodec.ReadNullString(data, pos)
	}
	return h, nil
}

func malformedHandshake(field string) error {
	return errors.NewSQLError(errors.CRMalformedPacket, errors.SSUnknownSQLState, "invalid handshake packet: %s", field)
}

// HandshakeResponse is the client→server reply to Handshake (spec.md
// §4.3 "Handshake response").
type HandshakeResponse struct {
	Capabilities    mysqlconst.Capability
	MaxPacketSize   uint32
	CharacterSet    byte
	Username        string
	AuthResponse    []byte
	Database        string
	AuthPluginName  string
}

// SerializeHandshakeResponse builds the handshake-response payload.
func SerializeHandshakeResponse(r *HandshakeResponse) []byte {
	size := 4 + 4 + 1 + 23 + len(r.Username) + 1 +
		bytecodec.LenEncIntSize(uint64(len(r.AuthResponse))) + len(r.AuthResponse)
	if r.Capabilities&mysqlconst.CapabilityClientConnectWithDB != 0 {
		size += len(r.Database) + 1
	}
	if r.Capabilities&mysqlconst.CapabilityClientPluginAuth != 0 {
		size += len(r.AuthPluginName) + 1
	}

	buf := make([]byte, size)
	pos := 0
	pos = bytecodec.WriteUint32(buf, pos, uint32(r.Capabilities))
	pos = bytecodec.WriteUint32(buf, pos, r.MaxPacketSize)
	pos = bytecodec.WriteByte(buf, pos, r.CharacterSet)
	pos = bytecodec.WriteZeroes(buf, pos, 23)
	pos = bytecodec.WriteNullString(buf, pos, r.Username)
	pos = bytecodec.WriteLenEncInt(buf, pos, uint64(len(r.AuthResponse)))
	pos = bytecodec.WriteBytes(buf, pos, r.AuthResponse)
	if r.Capabilities&mysqlconst.CapabilityClientConnectWithDB != 0 {
		pos = bytecodec.WriteNullString(buf, pos, r.Database)
	}
	if r.Capabilities&mysqlconst.CapabilityClientPluginAuth != 0 {
		pos = bytecodec.WriteNullString(buf, pos, r.AuthPluginName)
	}
	return buf[:pos]
}

// IsAuthSwitchRequest reports whether data is an auth-switch request
// (marker 0xFE, used pre-OK, distinguished from an EOF/OK by the caller's
// state per spec.md §4.5's tie-break rules).
func IsAuthSwitchRequest(data []byte) bool {
	return len(data) > 0 && data[0] == 0xfe
}

// ParseAuthSwitchRequest parses an auth-switch request: marker, plugin
// name (null-terminated), challenge (EOF string).
func ParseAuthSwitchRequest(data []byte) (plugin string, challenge []byte, err error) {
	pos := 1
	plugin, pos, ok := bytecodec.ReadNullString(data, pos)
	if !ok {
		return "", nil, errors.NewSQLError(errors.CRMalformedPacket, errors.SSUnknownSQLState, "invalid auth switch request plugin name")
	}
	challengeStr, _, ok := bytecodec.ReadEOFString(data, pos)
	if !ok {
		return "", nil, errors.NewSQLError(errors.CRMalformedPacket, errors.SSUnknownSQLState, "invalid auth switch request challenge")
	}
	return plugin, []byte(challengeStr), nil
}
