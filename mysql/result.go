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

// Result is the OK summary a resultset holds once it reaches the
// *complete* state (spec.md §3 "Resultset / execution state").
type Result struct {
	AffectedRows uint64
	LastInsertID uint64
	StatusFlags  uint16
	WarningCount uint16
	Info         string
}

// LastInsertId implements the database/sql-style accessor name.
func (r *Result) LastInsertId() (int64, error) { return int64(r.LastInsertID), nil }

// RowsAffected implements the database/sql-style accessor name.
func (r *Result) RowsAffected() (int64, error) { return int64(r.AffectedRows), nil }

// MoreResultsExists reports whether r's status flags signal that another
// resultset follows (spec.md §3: "If status_flags carries 'more results
// exist', transitions instead to reading_head for the next resultset").
func (r *Result) MoreResultsExists() bool {
	const serverMoreResultsExists = 0x0008
	return r.StatusFlags&serverMoreResultsExists != 0
}
