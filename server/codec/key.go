/*
 * Licensed to the Apache Software Foundation (ASF) under one
 * or more contributor license agreements.  See the NOTICE file
 * distributed with this work for additional information
 * regarding copyright ownership.  The ASF licenses this file
 * to you under the Apache License, Version 2.0 (the
 * "License"); you may not use this file except in compliance
 * with the License.  You may obtain a copy of the License at
 *
 *   http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

// Package codec encodes the cells of a table into the keys and values of the cluster.
//
// A cell key is `{table prefix}{escaped row}{family}:{qualifier}`. The row is escaped so that 0x00 becomes 0x00 0xFF
// and a terminator 0x00 0x01 is appended, which keeps the byte order of the rows and makes no encoded row a prefix
// of another one.
package codec

import (
	"bytes"
)

const (
	escapeByte      byte = 0x00
	escapedZeroByte byte = 0xFF
	terminatorByte  byte = 0x01

	familySeparator byte = ':'
)

// EncodeRow escapes the row and appends the terminator.
func EncodeRow(row []byte) []byte {
	buf := make([]byte, 0, len(row)+2)
	for _, b := range row {
		if b == escapeByte {
			buf = append(buf, escapeByte, escapedZeroByte)
			continue
		}
		buf = append(buf, b)
	}
	return append(buf, escapeByte, terminatorByte)
}

// RowPrefix returns the prefix shared by all the cells of the row.
func RowPrefix(tablePrefix string, row []byte) string {
	return tablePrefix + string(EncodeRow(row))
}

// CellKey returns the key of the cell.
func CellKey(tablePrefix string, row, family, qualifier []byte) string {
	buf := make([]byte, 0, len(tablePrefix)+len(row)+len(family)+len(qualifier)+3)
	buf = append(buf, tablePrefix...)
	buf = append(buf, EncodeRow(row)...)
	buf = append(buf, family...)
	buf = append(buf, familySeparator)
	buf = append(buf, qualifier...)
	return string(buf)
}

// FamilyPrefix returns the prefix shared by all the cells of the family in the row.
func FamilyPrefix(tablePrefix string, row, family []byte) string {
	return RowPrefix(tablePrefix, row) + string(family) + string(familySeparator)
}

// DecodeCellKey splits the key into the row, the family and the qualifier.
func DecodeCellKey(tablePrefix string, key []byte) (row, family, qualifier []byte, err error) {
	if !bytes.HasPrefix(key, []byte(tablePrefix)) {
		return nil, nil, nil, ErrDecodeKey.WithMessagef("key:%q doesn't belong to table prefix:%s", key, tablePrefix)
	}
	rest := key[len(tablePrefix):]

	row = make([]byte, 0, len(rest))
	for i := 0; ; i++ {
		if i >= len(rest) {
			return nil, nil, nil, ErrDecodeKey.WithMessagef("row is not terminated, key:%q", key)
		}

		b := rest[i]
		if b != escapeByte {
			row = append(row, b)
			continue
		}

		if i+1 >= len(rest) {
			return nil, nil, nil, ErrDecodeKey.WithMessagef("dangling escape byte, key:%q", key)
		}
		i++
		switch rest[i] {
		case escapedZeroByte:
			row = append(row, escapeByte)
		case terminatorByte:
			rest = rest[i+1:]
			idx := bytes.IndexByte(rest, familySeparator)
			if idx < 0 {
				return nil, nil, nil, ErrDecodeKey.WithMessagef("no family separator, key:%q", key)
			}
			return row, rest[:idx], rest[idx+1:], nil
		default:
			return nil, nil, nil, ErrDecodeKey.WithMessagef("invalid escape sequence, key:%q", key)
		}
	}
}
