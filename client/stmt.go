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
	"github.com/cectc/dbclient/errors"
	"github.com/cectc/dbclient/mysql"
	"github.com/cectc/dbclient/mysqlconst"
)

// maxAllowedPacket bounds a single COM_STMT_SEND_LONG_DATA chunk; values
// longer than this are split across consecutive long-data packets.
const maxAllowedPacket = 1 << 24

// Stmt is a server-side prepared statement: its id, and the parameter and
// result column metadata the prepare response carried.
type Stmt struct {
	conn         *Conn
	id           uint32
	paramCount   uint16
	resultFields []*mysql.Field
	closed       bool
}

// Prepare sends COM_STMT_PREPARE and reads the id/column-count/param-count
// response plus both groups of column definitions.
func (c *Conn) Prepare(query string) (*Stmt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ResetSequence()
	payload := append([]byte{mysqlconst.ComStmtPrepare}, []byte(query)...)
	if err := c.WritePacket(payload); err != nil {
		return nil, errors.NewSQLError(errors.CRServerGone, errors.SSUnknownSQLState, "sending prepare failed: %v", err).WithQuery(query)
	}

	data, err := c.ReadPacket()
	if err != nil {
		return nil, errors.NewSQLError(errors.CRServerLost, errors.SSUnknownSQLState, "%v", err).WithQuery(query)
	}
	if mysql.IsErrorPacket(data) {
		return nil, mysql.ParseErrorPacket(data)
	}
	prep, err := mysql.ParsePrepareResult(data)
	if err != nil {
		return nil, err
	}

	stmt := &Stmt{conn: c, id: prep.StatementID, paramCount: prep.ParamCount}

	if prep.ParamCount > 0 {
		if _, err := c.readColumnDefinitions(int(prep.ParamCount)); err != nil {
			return nil, err
		}
	}
	if prep.ColumnCount > 0 {
		fields, err := c.readColumnDefinitions(int(prep.ColumnCount))
		if err != nil {
			return nil, err
		}
		stmt.resultFields = fields
	}
	return stmt, nil
}

// ParamCount returns the number of parameters the statement was prepared
// with.
func (s *Stmt) ParamCount() int { return int(s.paramCount) }

// Fields returns the prepared statement's result column metadata, or nil
// if the statement produces no resultset (an INSERT/UPDATE/DELETE).
func (s *Stmt) Fields() []*mysql.Field { return s.resultFields }

// SendLongData streams a parameter's value via COM_STMT_SEND_LONG_DATA,
// for values too large to inline in the execute packet. It must be called
// before Execute, once per long parameter, with chunks of at most
// maxAllowedPacket bytes each.
func (s *Stmt) SendLongData(paramID int, chunk []byte) error {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()

	header := make([]byte, 7)
	header[0] = mysqlconst.ComStmtSendLongData
	header[1] = byte(s.id)
	header[2] = byte(s.id >> 8)
	header[3] = byte(s.id >> 16)
	header[4] = byte(s.id >> 24)
	header[5] = byte(paramID)
	header[6] = byte(paramID >> 8)

	s.conn.ResetSequence()
	return s.conn.WritePacket(append(header, chunk...))
}

// Execute serializes a COM_STMT_EXECUTE with params bound in order and
// reads the reply, returning the OK summary for a non-resultset statement
// or a lazy binary-protocol row sequence otherwise.
func (s *Stmt) Execute(params []mysql.Value) (*mysql.Result, *mysql.Rows, error) {
	if len(params) != int(s.paramCount) {
		return nil, nil, errors.NewSQLError(errors.ErrWrongNumParams, errors.SSUnknownSQLState,
			"statement expects %d parameters, got %d", s.paramCount, len(params))
	}

	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()

	s.conn.ResetSequence()
	payload := mysql.SerializeExecuteStatement(s.id, params)
	if err := s.conn.WritePacket(payload); err != nil {
		return nil, nil, errors.NewSQLError(errors.CRServerGone, errors.SSUnknownSQLState, "sending execute failed: %v", err)
	}

	result, rows, err := s.conn.readQueryResponse(true)
	if err != nil {
		return nil, nil, err
	}
	return result, rows, nil
}

// Close sends COM_STMT_CLOSE, releasing the server-side prepared statement.
// It is a write-only command; the server sends no reply.
func (s *Stmt) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()

	s.conn.ResetSequence()
	payload := []byte{
		mysqlconst.ComStmtClose,
		byte(s.id), byte(s.id >> 8), byte(s.id >> 16), byte(s.id >> 24),
	}
	if err := s.conn.WritePacket(payload); err != nil {
		return errors.NewSQLError(errors.CRServerGone, errors.SSUnknownSQLState, "sending stmt close failed: %v", err)
	}
	return nil
}
