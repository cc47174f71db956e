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

package table

import (
	"bytes"
	"sort"

	"github.com/CeresDB/ceresdao/server/filter"
)

type Cell struct {
	Family    []byte
	Qualifier []byte
	Value     []byte
}

// Row is the result of a read, its cells are sorted by family and then qualifier.
type Row struct {
	Key   []byte
	Cells []*Cell
}

var _ filter.Row = &Row{}

func (r *Row) RowKey() []byte {
	return r.Key
}

func (r *Row) CellValue(family, qualifier []byte) ([]byte, bool) {
	for _, c := range r.Cells {
		if bytes.Equal(c.Family, family) && bytes.Equal(c.Qualifier, qualifier) {
			return c.Value, true
		}
	}
	return nil, false
}

// Value returns the value of the cell, nil if the cell is absent.
func (r *Row) Value(family, qualifier string) []byte {
	v, _ := r.CellValue([]byte(family), []byte(qualifier))
	return v
}

func compareCells(a, b *Cell) int {
	if c := bytes.Compare(a.Family, b.Family); c != 0 {
		return c
	}
	return bytes.Compare(a.Qualifier, b.Qualifier)
}

func (r *Row) sortCells() {
	sort.Slice(r.Cells, func(i, j int) bool {
		return compareCells(r.Cells[i], r.Cells[j]) < 0
	})
}

// Column selects a whole family if Qualifier is nil, otherwise a single cell.
type Column struct {
	Family    []byte
	Qualifier []byte
}

func (c Column) matches(cell *Cell) bool {
	if !bytes.Equal(c.Family, cell.Family) {
		return false
	}
	return c.Qualifier == nil || bytes.Equal(c.Qualifier, cell.Qualifier)
}

// project keeps the cells selected by the columns, and returns nil if no cell is left.
func project(row *Row, columns []Column) *Row {
	if row == nil {
		return nil
	}
	if len(columns) == 0 {
		return row
	}

	cells := make([]*Cell, 0, len(row.Cells))
	for _, cell := range row.Cells {
		for _, col := range columns {
			if col.matches(cell) {
				cells = append(cells, cell)
				break
			}
		}
	}
	if len(cells) == 0 {
		return nil
	}
	return &Row{Key: row.Key, Cells: cells}
}

// Mutation puts the cells into the row. The caller keeps the ownership, the table never retains it after a call
// returns.
type Mutation struct {
	Row   []byte
	Cells []*Cell
}

func NewMutation(row []byte) *Mutation {
	return &Mutation{Row: row, Cells: make([]*Cell, 0, 1)}
}

// Add appends a cell and returns the mutation itself.
func (m *Mutation) Add(family, qualifier string, value []byte) *Mutation {
	m.Cells = append(m.Cells, &Cell{Family: []byte(family), Qualifier: []byte(qualifier), Value: value})
	return m
}

// mergeCells replaces the cells with the same family and qualifier and appends the others.
func (m *Mutation) mergeCells(cells []*Cell) {
	for _, c := range cells {
		replaced := false
		for i, old := range m.Cells {
			if compareCells(old, c) == 0 {
				m.Cells[i] = c
				replaced = true
				break
			}
		}
		if !replaced {
			m.Cells = append(m.Cells, c)
		}
	}
}

// size is the approximate number of bytes the mutation takes in a write buffer.
func (m *Mutation) size() int {
	n := len(m.Row)
	for _, c := range m.Cells {
		n += len(c.Family) + len(c.Qualifier) + len(c.Value)
	}
	return n
}

func (m *Mutation) clone() *Mutation {
	cells := make([]*Cell, 0, len(m.Cells))
	for _, c := range m.Cells {
		cells = append(cells, &Cell{
			Family:    bytes.Clone(c.Family),
			Qualifier: bytes.Clone(c.Qualifier),
			Value:     bytes.Clone(c.Value),
		})
	}
	return &Mutation{Row: bytes.Clone(m.Row), Cells: cells}
}

type ScanRequest struct {
	// StartRow is inclusive, nil to scan from the first row.
	StartRow []byte
	// StopRow is exclusive, nil to scan to the last row.
	StopRow []byte
	Columns []Column
	Filter  filter.Filter
	// Reversed scans from StartRow down to StopRow, so StartRow must not be less than StopRow.
	Reversed bool
	// Limit is the max number of the returned rows, 0 means no limit.
	Limit int
}
