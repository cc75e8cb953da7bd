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

// Package errors implements the diagnostics taxonomy consumed by the rest
// of the module: a single SQLError type carrying a numeric code, a SQL
// state, a human message, and optionally the query that triggered it.
package errors

import "fmt"

// Category distinguishes where a numeric code is defined. The wire
// protocol does not tag codes with their category; callers that need to
// branch on category look the code up in the tables in codes.go.
type Category int

const (
	CategoryClient Category = iota
	CategoryCommonServer
	CategoryMySQL
	CategoryMariaDB
)

// SQLError is returned by every operation in client, mysql and pool that
// can fail due to a malformed packet, a protocol mismatch, or a server
// error response.
type SQLError struct {
	Num     int
	Message string
	State   string
	Query   string
}

func (e *SQLError) Error() string {
	if e.Query == "" {
		return fmt.Sprintf("Error %d (%s): %s", e.Num, e.State, e.Message)
	}
	return fmt.Sprintf("Error %d (%s): %s (query: %s)", e.Num, e.State, e.Message, e.Query)
}

// NewSQLError builds a SQLError, formatting Message the same way
// fmt.Errorf formats a message: format and args follow fmt.Sprintf rules.
func NewSQLError(num int, state string, format string, args ...interface{}) *SQLError {
	return &SQLError{
		Num:     num,
		Message: fmt.Sprintf(format, args...),
		State:   state,
	}
}

// WithQuery returns a copy of err with Query set, used when a driver-level
// operation knows which statement text caused a server error.
func (e *SQLError) WithQuery(query string) *SQLError {
	cp := *e
	cp.Query = query
	return &cp
}

// Num implements the convention most MySQL drivers use for extracting the
// numeric error code from an arbitrary error value.
func Num(err error) (int, bool) {
	if sqlErr, ok := err.(*SQLError); ok {
		return sqlErr.Num, true
	}
	return 0, false
}
