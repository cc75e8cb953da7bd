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

import "github.com/cectc/dbclient/mysqlconst"

// Value is a tagged union over every field value the wire protocol can
// carry. Raw, when non-nil, borrows from the resultset reader's buffer and
// is valid only until the next read on the same connection; callers that
// need it to outlive that call must copy it.
type Value struct {
	Type     mysqlconst.FieldType
	IsNull   bool
	Unsigned bool

	Int64   int64
	Uint64  uint64
	Float32 float32
	Float64 float64

	// Raw carries the textual or binary representation for everything
	// that isn't a plain fixed-width number: strings, blobs, dates,
	// times, decimals.
	Raw []byte
}

// Field is the decoded metadata of one result column.
type Field struct {
	Schema       string
	Table        string
	OrgTable     string
	Name         string
	OrgName      string
	CollationID  uint16
	ColumnLength uint32
	Type         mysqlconst.FieldType
	Flags        uint16
	Decimals     byte
}
