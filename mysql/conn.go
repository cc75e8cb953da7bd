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

// Package mysql implements the frame layer, channel, and message codec of
// the MySQL/MariaDB wire protocol: splitting a byte stream into frames,
// reassembling logical messages, and parsing/serializing every packet
// type a client sends or receives.
package mysql

import (
	"bufio"
	"io"
	"net"
	"sync"

	"github.com/cectc/dbclient/bytecodec"
	"github.com/cectc/dbclient/errors"
	"github.com/cectc/dbclient/mysqlconst"
)

// maxPacketSize is the largest payload a single frame can carry; a
// message longer than this is split across consecutive frames, with a
// required zero-size trailing frame when the length is an exact multiple,
// per spec.md §4.2.
const maxPacketSize = 1<<24 - 1

// Conn owns a duplex byte stream, a reusable read buffer, a shared write
// buffer, and the connection's current frame sequence number. It
// implements spec.md §4.2 (frame layer) and §4.4 (channel). Unlike the
// teacher's bidirectional pkg/mysql.Conn (which also plays the server
// role in a proxy), this Conn only ever reads server replies and writes
// client commands.
type Conn struct {
	conn   net.Conn
	reader *bufio.Reader

	mu       sync.Mutex
	sequence uint8

	// readBuffer is the single allocation ReadPacket reassembles a
	// logical message into; it is compacted (not reallocated) between
	// messages as long as it's big enough.
	readBuffer []byte

	Capabilities mysqlconst.Capability
}

// NewConn wraps an already-dialed net.Conn (plain TCP, Unix domain, or an
// already TLS-upgraded stream) in a protocol Conn.
func NewConn(c net.Conn) *Conn {
	return &Conn{
		conn:   c,
		reader: bufio.NewReaderSize(c, 16*1024),
	}
}

// ResetSequence resets the frame sequence number to 0, as required at the
// start of every client-initiated command (spec.md §4.2).
func (c *Conn) ResetSequence() {
	c.mu.Lock()
	c.sequence = 0
	c.mu.Unlock()
}

func (c *Conn) nextSequence() uint8 {
	c.mu.Lock()
	seq := c.sequence
	c.sequence++
	c.mu.Unlock()
	return seq
}

func (c *Conn) checkSequence(got uint8) error {
	c.mu.Lock()
	want := c.sequence
	c.sequence++
	c.mu.Unlock()
	if got != want {
		return errors.NewSQLError(errors.ErrSequenceMismatch, errors.SSUnknownSQLState,
			"sequence number mismatch: got %d, want %d", got, want)
	}
	return nil
}

// readHeader reads the 4-byte frame header (3-byte little-endian size,
// 1-byte sequence number) and validates sequence continuity.
func (c *Conn) readHeader() (size uint32, err error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(c.reader, header); err != nil {
		return 0, errors.NewSQLError(errors.CRServerLost, errors.SSUnknownSQLState,
			"reading frame header failed: %v", err)
	}
	size, _, ok := bytecodec.ReadUint24(header, 0)
	if !ok {
		return 0, errors.NewSQLError(errors.CRMalformedPacket, errors.SSUnknownSQLState, "malformed frame header")
	}
	if err := c.checkSequence(header[3]); err != nil {
		return 0, err
	}
	return size, nil
}

// ReadPacket reads one complete logical message, reassembling it across
// as many frames as necessary (spec.md §4.2's 0xFFFFFF continuation
// rule). The returned slice is owned by the caller.
func (c *Conn) ReadPacket() ([]byte, error) {
	var out []byte
	for {
		size, err := c.readHeader()
		if err != nil {
			return nil, err
		}
		chunk := make([]byte, size)
		if size > 0 {
			if _, err := io.ReadFull(c.reader, chunk); err != nil {
				return nil, errors.NewSQLError(errors.CRServerLost, errors.SSUnknownSQLState,
					"reading frame payload failed: %v", err)
			}
		}
		out = append(out, chunk...)
		if size < maxPacketSize {
			return out, nil
		}
		// size == maxPacketSize: message continues in the next frame,
		// possibly a zero-size trailing frame.
	}
}

// WritePacket frames payload and writes it to the stream, splitting it
// into maxPacketSize-sized frames and emitting the required zero-size
// trailing frame when len(payload) is an exact multiple of
// maxPacketSize (spec.md §4.2).
func (c *Conn) WritePacket(payload []byte) error {
	pos := 0
	for {
		remaining := len(payload) - pos
		chunkSize := remaining
		if chunkSize > maxPacketSize {
			chunkSize = maxPacketSize
		}

		header := make([]byte, 4)
		bytecodec.WriteUint24(header, 0, uint32(chunkSize))
		header[3] = c.nextSequence()

		if _, err := c.conn.Write(header); err != nil {
			return errors.NewSQLError(errors.CRServerLost, errors.SSUnknownSQLState, "writing frame header failed: %v", err)
		}
		if chunkSize > 0 {
			if _, err := c.conn.Write(payload[pos : pos+chunkSize]); err != nil {
				return errors.NewSQLError(errors.CRServerLost, errors.SSUnknownSQLState, "writing frame payload failed: %v", err)
			}
		}
		pos += chunkSize

		if chunkSize < maxPacketSize {
			return nil
		}
		if pos == len(payload) {
			// Exact multiple of maxPacketSize: one more, zero-size frame
			// is mandatory so the peer knows the message ended here.
			header = make([]byte, 4)
			bytecodec.WriteUint24(header, 0, 0)
			header[3] = c.nextSequence()
			if _, err := c.conn.Write(header); err != nil {
				return errors.NewSQLError(errors.CRServerLost, errors.SSUnknownSQLState, "writing trailing frame failed: %v", err)
			}
			return nil
		}
	}
}

// Close closes the underlying stream.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// RemoteAddr returns the remote address of the underlying connection.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// UnderlyingConn exposes the raw net.Conn, used by the driver to perform
// a TLS upgrade mid-handshake (spec.md §4.5's "send SSL request packet
// and upgrade the byte stream").
func (c *Conn) UnderlyingConn() net.Conn {
	return c.conn
}

// Upgrade replaces the underlying stream (and its buffered reader) with
// one that has completed a TLS handshake, without touching the sequence
// counter — the handshake response that follows continues the same
// command, per spec.md §4.5.
func (c *Conn) Upgrade(tlsConn net.Conn) {
	c.conn = tlsConn
	c.reader = bufio.NewReaderSize(tlsConn, 16*1024)
}
