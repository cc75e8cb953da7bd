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
	"context"
	"crypto/tls"
	"io"
	"net"
	"sync"

	"github.com/cectc/dbclient/bytecodec"
	"github.com/cectc/dbclient/errors"
	"github.com/cectc/dbclient/mysql"
	"github.com/cectc/dbclient/mysqlconst"
)

// connState names the states a Conn passes through, per the handshake and
// request/reply lifecycle: disconnected -> resolving -> connecting ->
// handshaking -> ready; ready <-> awaitingReply while a command is in
// flight; ready -> disconnected on Quit/Close.
type connState int

const (
	stateDisconnected connState = iota
	stateResolving
	stateConnecting
	stateHandshaking
	stateReady
	stateAwaitingReply
)

// Conn is one client-side connection to a MySQL/MariaDB server: the
// handshake/auth exchange, query, prepared-statement, ping and reset
// algorithms layered over mysql.Conn's frame and channel primitives.
type Conn struct {
	cfg *Config

	mu    sync.Mutex
	state connState

	*mysql.Conn

	serverVersion string
	connectionID  uint32
	characterSet  byte

	deprecateEOF bool
}

// Connect resolves cfg.Addr (for tcp) through resolver, dials the first
// reachable endpoint, and performs the handshake. For unix sockets,
// resolution is skipped — the path is used directly.
func Connect(ctx context.Context, cfg *Config, resolver Resolver) (*Conn, error) {
	c := &Conn{cfg: cfg, state: stateResolving}

	var endpoints []string
	if cfg.Net == "tcp" {
		host, _, err := net.SplitHostPort(cfg.Addr)
		if err != nil {
			return nil, err
		}
		if resolver == nil {
			resolver = DefaultResolver
		}
		addrs, err := resolver.Resolve(ctx, host)
		if err != nil {
			return nil, errors.NewSQLError(errors.CRConnHostError, errors.SSUnknownSQLState, "resolving %q failed: %v", host, err)
		}
		_, port, _ := net.SplitHostPort(cfg.Addr)
		for _, addr := range addrs {
			endpoints = append(endpoints, net.JoinHostPort(addr, port))
		}
	} else {
		endpoints = []string{cfg.Addr}
	}

	c.state = stateConnecting
	var netConn net.Conn
	var dialErr error
	dialer := &net.Dialer{Timeout: cfg.Timeout}
	for _, addr := range endpoints {
		netConn, dialErr = dialer.DialContext(ctx, cfg.Net, addr)
		if dialErr == nil {
			break
		}
	}
	if dialErr != nil {
		return nil, errors.NewSQLError(errors.CRConnHostError, errors.SSUnknownSQLState, "connecting to %v failed: %v", endpoints, dialErr)
	}

	if tcpConn, ok := netConn.(*net.TCPConn); ok {
		tcpConn.SetNoDelay(true)
		tcpConn.SetKeepAlive(true)
	}

	c.Conn = mysql.NewConn(netConn)
	c.state = stateHandshaking
	if err := c.handshake(ctx); err != nil {
		c.Conn.Close()
		return nil, err
	}
	c.state = stateReady
	return c, nil
}

func (c *Conn) handshake(ctx context.Context) error {
	data, err := c.ReadPacket()
	if err != nil {
		return errors.NewSQLError(errors.CRServerLost, errors.SSUnknownSQLState, "initial packet read failed: %v", err)
	}
	if mysql.IsErrorPacket(data) {
		return mysql.ParseErrorPacket(data)
	}
	greeting, err := mysql.ParseHandshake(data)
	if err != nil {
		return err
	}
	c.serverVersion = greeting.ServerVersion
	c.connectionID = greeting.ConnectionID
	c.characterSet = greeting.CharacterSet

	clientCaps := mysqlconst.BaseClientCapabilities
	if !c.cfg.DisableClientDeprecateEOF {
		clientCaps |= greeting.Capabilities & mysqlconst.CapabilityClientDeprecateEOF
	}
	if c.cfg.DBName != "" {
		clientCaps |= mysqlconst.CapabilityClientConnectWithDB
	}
	if c.cfg.MultiStatements {
		clientCaps |= mysqlconst.CapabilityClientMultiStatements
	}
	if c.cfg.ClientFoundRows {
		clientCaps |= mysqlconst.CapabilityClientFoundRows
	}

	if c.cfg.tls != nil {
		if greeting.Capabilities&mysqlconst.CapabilityClientSSL == 0 {
			return errors.NewSQLError(errors.CRSSLConnectionError, errors.SSUnknownSQLState, "server does not support TLS")
		}
		clientCaps |= mysqlconst.CapabilityClientSSL
		if err := c.sendSSLRequest(clientCaps); err != nil {
			return err
		}
		tlsConn := tls.Client(c.UnderlyingConn(), c.cfg.tls)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			return errors.NewSQLError(errors.CRSSLConnectionError, errors.SSUnknownSQLState, "TLS handshake failed: %v", err)
		}
		c.Upgrade(tlsConn)
	}

	plugin := greeting.AuthPluginName
	authResp, err := c.authResponse(greeting.AuthPluginData, plugin)
	if err != nil {
		return err
	}

	resp := &mysql.HandshakeResponse{
		Capabilities:   clientCaps,
		MaxPacketSize:  1<<24 - 1,
		CharacterSet:   mysqlconst.DefaultCollationID,
		Username:       c.cfg.User,
		AuthResponse:   authResp,
		Database:       c.cfg.DBName,
		AuthPluginName: plugin,
	}
	// The handshake response continues the same exchange as the initial
	// handshake packet just read (sequence 1, not reset to 0); only a
	// genuinely new command resets the sequence counter.
	if err := c.WritePacket(mysql.SerializeHandshakeResponse(resp)); err != nil {
		return errors.NewSQLError(errors.CRServerLost, errors.SSUnknownSQLState, "sending handshake response failed: %v", err)
	}

	c.deprecateEOF = clientCaps&greeting.Capabilities&mysqlconst.CapabilityClientDeprecateEOF != 0

	if err := c.handleAuthResult(greeting.AuthPluginData, plugin); err != nil {
		return err
	}

	if clientCaps&mysqlconst.CapabilityClientConnectWithDB == 0 && c.cfg.DBName != "" {
		return c.initDB(c.cfg.DBName)
	}
	return nil
}

// sendSSLRequest sends the truncated handshake-response-as-SSL-request
// packet (same fields, no username/auth) before upgrading the stream.
func (c *Conn) sendSSLRequest(caps mysqlconst.Capability) error {
	resp := &mysql.HandshakeResponse{
		Capabilities:  caps,
		MaxPacketSize: 1<<24 - 1,
		CharacterSet:  mysqlconst.DefaultCollationID,
	}
	full := mysql.SerializeHandshakeResponse(resp)
	// The SSL request is the handshake response's fixed-length prefix
	// only: capabilities(4)+maxpacket(4)+charset(1)+reserved(23). It
	// continues the handshake exchange's sequence, same as the real
	// response that follows the TLS upgrade.
	return c.WritePacket(full[:32])
}

func (c *Conn) initDB(db string) error {
	c.ResetSequence()
	payload := append([]byte{mysqlconst.ComInitDB}, []byte(db)...)
	if err := c.WritePacket(payload); err != nil {
		return errors.NewSQLError(errors.CRServerLost, errors.SSUnknownSQLState, "sending COM_INIT_DB failed: %v", err)
	}
	data, err := c.ReadPacket()
	if err != nil {
		return errors.NewSQLError(errors.CRServerLost, errors.SSUnknownSQLState, "%v", err)
	}
	if mysql.IsErrorPacket(data) {
		return mysql.ParseErrorPacket(data)
	}
	return nil
}

// handleAuthResult drives the post-handshake-response exchange: zero or
// more auth-switch requests, then the plugin-specific fast/full-auth tail.
func (c *Conn) handleAuthResult(oldAuthData []byte, plugin string) error {
	authData, newPlugin, err := c.readAuthResult()
	if err != nil {
		return err
	}

	if newPlugin != "" {
		if authData == nil {
			authData = oldAuthData
		}
		plugin = newPlugin
		authResp, err := c.authResponse(authData, plugin)
		if err != nil {
			return err
		}
		if err := c.WritePacket(authResp); err != nil {
			return errors.NewSQLError(errors.CRServerLost, errors.SSUnknownSQLState, "sending auth switch response failed: %v", err)
		}
		authData, newPlugin, err = c.readAuthResult()
		if err != nil {
			return err
		}
		if newPlugin != "" {
			return errors.NewSQLError(errors.CRMalformedPacket, errors.SSUnknownSQLState, "server requested a second auth plugin switch")
		}
	}

	switch plugin {
	case mysqlconst.AuthCachingSHA2Password:
		switch len(authData) {
		case 0:
			return nil
		case 1:
			switch authData[0] {
			case cachingSha2PasswordFastAuthSuccess:
				return c.readResultOK()
			case cachingSha2PasswordPerformFullAuthentication:
				if c.cfg.tls == nil && c.cfg.Net != "unix" {
					return errors.NewSQLError(errors.ErrAuthPluginRequiresSecureConn, errors.SSUnknownSQLState,
						"caching_sha2_password full authentication requires a secure connection")
				}
				if err := c.WritePacket(append([]byte(c.cfg.Passwd), 0)); err != nil {
					return errors.NewSQLError(errors.CRServerLost, errors.SSUnknownSQLState, "sending cleartext password failed: %v", err)
				}
				return c.readResultOK()
			default:
				return errors.NewSQLError(errors.CRMalformedPacket, errors.SSUnknownSQLState, "unexpected caching_sha2_password continuation byte")
			}
		default:
			return errors.NewSQLError(errors.CRMalformedPacket, errors.SSUnknownSQLState, "unexpected caching_sha2_password response length")
		}

	case mysqlconst.AuthSHA256Password:
		if len(authData) == 0 {
			return nil
		}
		if c.cfg.tls == nil && c.cfg.Net != "unix" {
			return errors.NewSQLError(errors.ErrAuthPluginRequiresSecureConn, errors.SSUnknownSQLState,
				"sha256_password requires a secure connection")
		}
		if err := c.WritePacket(append([]byte(c.cfg.Passwd), 0)); err != nil {
			return errors.NewSQLError(errors.CRServerLost, errors.SSUnknownSQLState, "sending cleartext password failed: %v", err)
		}
		return c.readResultOK()

	default:
		return nil
	}
}

func (c *Conn) readAuthResult() (authData []byte, plugin string, err error) {
	data, err := c.ReadPacket()
	if err != nil {
		return nil, "", errors.NewSQLError(errors.CRServerLost, errors.SSUnknownSQLState, "%v", err)
	}
	if len(data) == 0 {
		return nil, "", errors.NewSQLError(errors.CRMalformedPacket, errors.SSUnknownSQLState, "empty auth result packet")
	}
	switch data[0] {
	case mysqlconst.OKPacket:
		_, _, _, _, _, err := mysql.ParseOKPacket(data)
		return nil, "", err
	case mysqlconst.EOFPacket:
		if len(data) == 1 {
			return nil, mysqlconst.AuthOldPassword, nil
		}
		p, challenge, err := mysql.ParseAuthSwitchRequest(data)
		if err != nil {
			return nil, "", err
		}
		return challenge, p, nil
	case mysqlconst.ErrPacket:
		return nil, "", mysql.ParseErrorPacket(data)
	default:
		// CachingSha2Password/Sha256Password's continuation bytes arrive
		// without a leading marker byte at all.
		return data, "", nil
	}
}

func (c *Conn) readResultOK() error {
	data, err := c.ReadPacket()
	if err != nil {
		return errors.NewSQLError(errors.CRServerLost, errors.SSUnknownSQLState, "%v", err)
	}
	if mysql.IsErrorPacket(data) {
		return mysql.ParseErrorPacket(data)
	}
	if !mysql.IsOKPacket(data) {
		return errors.NewSQLError(errors.CRCommandsOutOfSync, errors.SSUnknownSQLState, "expected OK packet, got %#v", data)
	}
	_, _, _, _, _, err = mysql.ParseOKPacket(data)
	return err
}

// Query sends query as a COM_QUERY command and reads the first reply.
// If the query produced a resultset, the returned *mysql.Rows must be
// drained (or its Err/Result consulted) before the connection is used
// again.
func (c *Conn) Query(query string) (*mysql.Result, *mysql.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ResetSequence()
	payload := append([]byte{mysqlconst.ComQuery}, []byte(query)...)
	if err := c.WritePacket(payload); err != nil {
		return nil, nil, errors.NewSQLError(errors.CRServerGone, errors.SSUnknownSQLState, "sending query failed: %v", err).WithQuery(query)
	}

	result, rows, err := c.readQueryResponse(false)
	if err != nil {
		if sqlErr, ok := err.(*errors.SQLError); ok {
			err = sqlErr.WithQuery(query)
		}
	}
	return result, rows, err
}

// readQueryResponse reads one resultset-or-OK reply to a command already
// on the wire (COM_QUERY or COM_STMT_EXECUTE), per spec.md §4.5's Query
// and Execute algorithms. binary selects binary-protocol row decoding for
// the COM_STMT_EXECUTE case. When the reply is a resultset, the returned
// *mysql.Rows is wired with a callback that re-enters this same method to
// traverse to the next resultset (spec.md §3, "more results exist").
func (c *Conn) readQueryResponse(binary bool) (*mysql.Result, *mysql.Rows, error) {
	data, err := c.ReadPacket()
	if err != nil {
		return nil, nil, errors.NewSQLError(errors.CRServerLost, errors.SSUnknownSQLState, "%v", err)
	}
	if mysql.IsErrorPacket(data) {
		return nil, nil, mysql.ParseErrorPacket(data)
	}
	if mysql.IsOKPacket(data) {
		affectedRows, lastInsertID, statusFlags, warnings, info, err := mysql.ParseOKPacket(data)
		if err != nil {
			return nil, nil, err
		}
		return &mysql.Result{AffectedRows: affectedRows, LastInsertID: lastInsertID, StatusFlags: statusFlags, WarningCount: warnings, Info: info}, nil, nil
	}

	columnCount, _, ok := bytecodec.ReadLenEncInt(data, 0)
	if !ok {
		return nil, nil, errors.NewSQLError(errors.CRMalformedPacket, errors.SSUnknownSQLState, "invalid column count in query response")
	}

	fields, err := c.readColumnDefinitions(int(columnCount))
	if err != nil {
		return nil, nil, err
	}
	rows := mysql.NewRows(c.Conn, fields, binary, c.deprecateEOF)
	rows.SetNextResultSet(func() (*mysql.Result, *mysql.Rows, error) {
		return c.readQueryResponse(binary)
	})
	return nil, rows, nil
}

func (c *Conn) readColumnDefinitions(n int) ([]*mysql.Field, error) {
	fields := make([]*mysql.Field, n)
	for i := 0; i < n; i++ {
		data, err := c.ReadPacket()
		if err != nil {
			return nil, errors.NewSQLError(errors.CRServerLost, errors.SSUnknownSQLState, "%v", err)
		}
		field, err := mysql.ParseColumnDefinition(data)
		if err != nil {
			return nil, err
		}
		fields[i] = field
	}
	if !c.deprecateEOF {
		data, err := c.ReadPacket()
		if err != nil {
			return nil, errors.NewSQLError(errors.CRServerLost, errors.SSUnknownSQLState, "%v", err)
		}
		if mysql.IsErrorPacket(data) {
			return nil, mysql.ParseErrorPacket(data)
		}
		if !mysql.IsEOFPacket(data) {
			return nil, errors.NewSQLError(errors.CRCommandsOutOfSync, errors.SSUnknownSQLState, "expected EOF packet after column definitions")
		}
	}
	return fields, nil
}

// Ping sends COM_PING and waits for the OK/ERR reply.
func (c *Conn) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ResetSequence()
	if err := c.WritePacket([]byte{mysqlconst.ComPing}); err != nil {
		return errors.NewSQLError(errors.CRServerGone, errors.SSUnknownSQLState, "sending ping failed: %v", err)
	}
	return c.readResultOK()
}

// Reset sends COM_RESET_CONNECTION, which resets session state (variables,
// temp tables, transactions, prepared statements) without tearing down the
// TCP/TLS connection.
func (c *Conn) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ResetSequence()
	if err := c.WritePacket([]byte{mysqlconst.ComResetConnection}); err != nil {
		return errors.NewSQLError(errors.CRServerGone, errors.SSUnknownSQLState, "sending reset connection failed: %v", err)
	}
	return c.readResultOK()
}

// Quit sends COM_QUIT, attempts a best-effort TLS shutdown (errors
// ignored, MySQL does not reliably perform a graceful TLS close), and
// closes the underlying stream.
func (c *Conn) Quit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ResetSequence()
	_ = c.WritePacket([]byte{mysqlconst.ComQuit})
	if tlsConn, ok := c.UnderlyingConn().(*tls.Conn); ok {
		_ = tlsConn.CloseWrite()
	}
	return c.Close()
}

// ServerVersion returns the version string reported by the server's
// initial handshake.
func (c *Conn) ServerVersion() string { return c.serverVersion }

// ConnectionID returns the server-assigned connection id.
func (c *Conn) ConnectionID() uint32 { return c.connectionID }

var _ io.Closer = (*Conn)(nil)
