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

package errors

// Client error codes. These never cross the wire; they are raised locally
// by the codec, the channel, or the driver when the server's bytes don't
// fit the protocol the client expects. They live in a negative range
// specifically so they can never collide with a real (always positive)
// MySQL/MariaDB CR_*/ER_* numeric code — errors.Num(err) would otherwise
// be unable to tell, say, ErrServerUnsupported from CRConnHostError, since
// both used to sit at 2003.
const (
	ErrIncompleteMessage = -(1000 + iota)
	ErrExtraBytes
	ErrSequenceMismatch
	ErrServerUnsupported
	ErrProtocolValue
	ErrUnknownAuthPlugin
	ErrAuthPluginRequiresSecureConn
	ErrWrongNumParams
	ErrInvalidEncoding
	ErrRowTypeMismatch
	ErrInvalidDSN
	ErrPoolClosed
	ErrPoolTimeout
)

// SSUnknownSQLState is used whenever a client-side error has no natural
// SQLSTATE (the server never produced one), matching every driver in the
// pack that defaults to this value rather than leaving State empty.
const SSUnknownSQLState = "HY000"

// Common-server error codes: portable numeric codes MySQL and MariaDB
// both define with the same meaning. Values are the actual wire-level
// MySQL error numbers, not invented — client code that wants to branch on
// "access denied" vs "unknown database" compares against these.
const (
	ERAccessDeniedError  = 1045
	ERBadDb              = 1049
	ERBadFieldError      = 1054
	ERParseError         = 1064
	ERNoSuchTable        = 1146
	ERDupEntry           = 1062
	ERLockWaitTimeout    = 1205
	ERQueryInterrupted   = 1317
	ERServerShutdown     = 1053
	ERUnknownError       = 1105
)

const (
	SSAccessDeniedError = "28000"
	SSBadDb             = "42000"
	SSBadFieldError     = "42S22"
	SSParseError        = "42000"
	SSNoSuchTable       = "42S02"
	SSDupEntry          = "23000"
	SSLockWaitTimeout   = "HY000"
	SSQueryInterrupted  = "70100"
)

// MySQL-specific and MariaDB-specific codes live outside the common range;
// the library surfaces them unchanged (as reported by the server) since it
// does no server-version detection of its own.
const (
	// CRMalformedPacket is raised by the codec when a packet's declared
	// length or internal structure doesn't match what was received.
	CRMalformedPacket = 2027
	// CRCommandsOutOfSync is raised when the server replies to a command
	// the driver didn't send in the current state (e.g. a stray
	// COM_STMT_EXECUTE reply while idle).
	CRCommandsOutOfSync = 2014
	// CRUnknownError covers anything that doesn't fit a more specific code.
	CRUnknownError = 2000
	// CRServerLost is raised when the connection drops mid-exchange.
	CRServerLost = 2013
	// CRServerGone is raised when a write fails because the server has
	// already closed its end (most often surfaces on Unix sockets; TCP
	// usually reports CRServerLost instead, since the FIN alone doesn't
	// stop the client from writing).
	CRServerGone = 2006
	// CRConnHostError is raised when the initial TCP/Unix dial fails.
	CRConnHostError = 2003
	// CRSSLConnectionError is raised when ssl_mode=require but the server
	// does not advertise CLIENT_SSL.
	CRSSLConnectionError = 2026
)
