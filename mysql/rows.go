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

// Rows is a lazy row sequence returned by a query or statement execution.
// Each call to Next overwrites the row returned by the previous call — a
// Row view is never valid across the next Next call on the same
// connection.
//
// FetchOne/FetchMany/FetchAll are boost.mysql-style convenience methods
// layered over the same Next primitive.
type Rows struct {
	conn      *Conn
	fields    []*Field
	binary    bool
	deprecateEOF bool

	done   bool
	result *Result
	row    []Value
	err    error

	// nextResultSet, when set by the driver layer, re-enters the
	// column-count -> column-definitions -> rows algorithm (spec.md
	// §4.5) to read the resultset that follows this one. It is nil for
	// Rows built without a driver.Conn behind them (e.g. tests).
	nextResultSet func() (*Result, *Rows, error)
}

// NewRows constructs a Rows reader positioned at the start of the row
// stream. binary selects COM_STMT_EXECUTE's binary row decoding;
// deprecateEOF must match whether CLIENT_DEPRECATE_EOF was negotiated.
func NewRows(conn *Conn, fields []*Field, binary, deprecateEOF bool) *Rows {
	return &Rows{conn: conn, fields: fields, binary: binary, deprecateEOF: deprecateEOF}
}

// SetNextResultSet wires the callback used by NextResultSet to read the
// resultset that follows this one. Called by the driver layer, which owns
// the column-count/column-definitions reading algorithm this type doesn't
// have direct access to.
func (r *Rows) SetNextResultSet(next func() (*Result, *Rows, error)) {
	r.nextResultSet = next
}

// Fields returns the resultset's column metadata.
func (r *Rows) Fields() []*Field { return r.fields }

// Next reads the next row packet. It returns false once a terminating
// OK/EOF packet is seen (r.Result() then becomes valid) or once an error
// occurs (r.Err() then becomes non-nil).
func (r *Rows) Next() bool {
	if r.done {
		return false
	}
	data, err := r.conn.ReadPacket()
	if err != nil {
		r.err = err
		r.done = true
		return false
	}

	if IsErrorPacket(data) {
		r.err = ParseErrorPacket(data)
		r.done = true
		return false
	}

	if r.deprecateEOF {
		if IsOKPacket(data) && len(data) >= 7 {
			if err := r.finish(data); err != nil {
				r.err = err
			}
			return false
		}
	} else if IsEOFPacket(data) {
		warnings, more, err := ParseEOFPacket(data)
		if err != nil {
			r.err = err
			r.done = true
			return false
		}
		var status uint16
		if more {
			status = 0x0008
		}
		r.done = true
		r.result = &Result{WarningCount: warnings, StatusFlags: status}
		return false
	}

	var row []Value
	if r.binary {
		row, err = ParseBinaryRow(data, r.fields)
	} else {
		row, err = ParseTextRow(data, r.fields)
	}
	if err != nil {
		r.err = err
		r.done = true
		return false
	}
	r.row = row
	return true
}

func (r *Rows) finish(okData []byte) error {
	affectedRows, lastInsertID, statusFlags, warnings, info, err := ParseOKPacket(okData)
	if err != nil {
		return err
	}
	r.done = true
	r.result = &Result{
		AffectedRows: affectedRows,
		LastInsertID: lastInsertID,
		StatusFlags:  statusFlags,
		WarningCount: warnings,
		Info:         info,
	}
	return nil
}

// NextResultSet advances r to the resultset that follows this one, as
// signalled by Result().MoreResultsExists() (spec.md §3, §4.5: "If
// status_flags carries 'more results exist', transitions instead to
// reading_head for the next resultset"). It must only be called once Next
// has returned false with no error. It returns false when there is no
// further resultset to read, whether because the current one was the
// last or because r was built without a driver behind it.
func (r *Rows) NextResultSet() bool {
	if r.err != nil || r.result == nil || !r.result.MoreResultsExists() || r.nextResultSet == nil {
		return false
	}
	result, rows, err := r.nextResultSet()
	if err != nil {
		r.err = err
		return false
	}
	if rows == nil {
		// The next resultset was a bare OK (no columns) — typically the
		// trailing summary OK after a CALL's output resultsets. Expose
		// it as the new terminating result and stop; the caller can
		// still chain a further NextResultSet off it.
		r.done = true
		r.fields = nil
		r.row = nil
		r.result = result
		return false
	}
	*r = *rows
	return true
}

// Row returns the row produced by the most recent successful Next call.
func (r *Rows) Row() []Value { return r.row }

// Err returns the first error encountered, if any.
func (r *Rows) Err() error { return r.err }

// Result returns the terminating OK summary once the stream is
// exhausted without error; it is nil until then (spec.md §3: "A
// resultset is complete iff it owns an OK summary").
func (r *Rows) Result() *Result { return r.result }

// FetchOne returns the next row, or nil at end of stream. It is the
// single-row analogue of boost.mysql's resultset::fetch_one.
func (r *Rows) FetchOne() ([]Value, error) {
	if !r.Next() {
		return nil, r.err
	}
	return r.row, nil
}

// FetchMany reads up to count rows, stopping early at end of stream.
func (r *Rows) FetchMany(count int) ([][]Value, error) {
	out := make([][]Value, 0, count)
	for i := 0; i < count; i++ {
		if !r.Next() {
			return out, r.err
		}
		rowCopy := make([]Value, len(r.row))
		copy(rowCopy, r.row)
		out = append(out, rowCopy)
	}
	return out, nil
}

// FetchAll drains the remainder of the stream.
func (r *Rows) FetchAll() ([][]Value, error) {
	var out [][]Value
	for r.Next() {
		rowCopy := make([]Value, len(r.row))
		copy(rowCopy, r.row)
		out = append(out, rowCopy)
	}
	if r.err != nil {
		return out, r.err
	}
	return out, nil
}
