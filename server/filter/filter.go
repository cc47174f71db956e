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

// Package filter provides the filters evaluated by the scanner on every row.
package filter

import (
	"fmt"
	"strings"
)

// Row is the view of a row that the filters evaluate.
type Row interface {
	RowKey() []byte
	CellValue(family, qualifier []byte) ([]byte, bool)
}

type Filter interface {
	// Match reports whether the row should be returned.
	Match(row Row) bool
	// String is stable for equal filters, it is used as a part of cache keys.
	String() string
}

type CompareOp int

const (
	Less CompareOp = iota
	LessOrEqual
	Equal
	NotEqual
	GreaterOrEqual
	Greater
)

var compareOpNames = map[CompareOp]string{
	Less:           "LESS",
	LessOrEqual:    "LESS_OR_EQUAL",
	Equal:          "EQUAL",
	NotEqual:       "NOT_EQUAL",
	GreaterOrEqual: "GREATER_OR_EQUAL",
	Greater:        "GREATER",
}

var compareOpSymbols = map[string]CompareOp{
	"<":  Less,
	"<=": LessOrEqual,
	"=":  Equal,
	"==": Equal,
	"!=": NotEqual,
	">=": GreaterOrEqual,
	">":  Greater,
}

func (op CompareOp) String() string {
	if name, ok := compareOpNames[op]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(op))
}

// ParseCompareOp accepts both the names like LESS_OR_EQUAL and the symbols like <=.
func ParseCompareOp(s string) (CompareOp, error) {
	if op, ok := compareOpSymbols[s]; ok {
		return op, nil
	}
	upper := strings.ToUpper(s)
	for op, name := range compareOpNames {
		if name == upper {
			return op, nil
		}
	}
	return Less, ErrInvalidFilter.WithMessagef("unknown compare op:%s", s)
}

// holds reports whether `value op operand` holds, given cmp as the comparison result of value and operand.
func (op CompareOp) holds(cmp int) bool {
	switch op {
	case Less:
		return cmp < 0
	case LessOrEqual:
		return cmp <= 0
	case Equal:
		return cmp == 0
	case NotEqual:
		return cmp != 0
	case GreaterOrEqual:
		return cmp >= 0
	case Greater:
		return cmp > 0
	}
	return false
}

// RowFilter keeps the rows whose key satisfies `key Op operand`.
type RowFilter struct {
	Op         CompareOp
	Comparator Comparator
}

func NewRowFilter(op CompareOp, comparator Comparator) *RowFilter {
	return &RowFilter{Op: op, Comparator: comparator}
}

func (f *RowFilter) Match(row Row) bool {
	return f.Op.holds(f.Comparator.Compare(row.RowKey()))
}

func (f *RowFilter) String() string {
	return fmt.Sprintf("RowFilter(%s, %s)", f.Op, f.Comparator)
}

// SingleColumnValueFilter keeps the rows whose cell at Family:Qualifier satisfies `value Op operand`.
// Rows without the cell are kept unless FilterIfMissing is set.
type SingleColumnValueFilter struct {
	Family          []byte
	Qualifier       []byte
	Op              CompareOp
	Comparator      Comparator
	FilterIfMissing bool
}

func NewSingleColumnValueFilter(family, qualifier []byte, op CompareOp, comparator Comparator, filterIfMissing bool) *SingleColumnValueFilter {
	return &SingleColumnValueFilter{
		Family:          family,
		Qualifier:       qualifier,
		Op:              op,
		Comparator:      comparator,
		FilterIfMissing: filterIfMissing,
	}
}

func (f *SingleColumnValueFilter) Match(row Row) bool {
	value, ok := row.CellValue(f.Family, f.Qualifier)
	if !ok {
		return !f.FilterIfMissing
	}
	return f.Op.holds(f.Comparator.Compare(value))
}

func (f *SingleColumnValueFilter) String() string {
	return fmt.Sprintf("SingleColumnValueFilter(%s:%s, %s, %s, filterIfMissing=%t)", f.Family, f.Qualifier, f.Op, f.Comparator, f.FilterIfMissing)
}

type Operator int

const (
	// MustPassAll keeps the rows matched by all the filters.
	MustPassAll Operator = iota
	// MustPassOne keeps the rows matched by any of the filters.
	MustPassOne
)

func (o Operator) String() string {
	if o == MustPassOne {
		return "OR"
	}
	return "AND"
}

// List combines the filters with the operator. PageFilters in the list never affect the matching, the page size
// is enforced by the scanner instead.
type List struct {
	Operator Operator
	Filters  []Filter
}

// NewList builds the list and drops the nil filters.
func NewList(operator Operator, filters ...Filter) *List {
	list := &List{Operator: operator, Filters: make([]Filter, 0, len(filters))}
	for _, f := range filters {
		if f != nil {
			list.Filters = append(list.Filters, f)
		}
	}
	return list
}

func (l *List) Match(row Row) bool {
	evaluated := 0
	for _, f := range l.Filters {
		if f == nil {
			continue
		}
		if _, ok := f.(*PageFilter); ok {
			continue
		}

		evaluated++
		matched := f.Match(row)
		if l.Operator == MustPassAll && !matched {
			return false
		}
		if l.Operator == MustPassOne && matched {
			return true
		}
	}
	return l.Operator == MustPassAll || evaluated == 0
}

func (l *List) String() string {
	parts := make([]string, 0, len(l.Filters))
	for _, f := range l.Filters {
		if f != nil {
			parts = append(parts, f.String())
		}
	}
	return fmt.Sprintf("FilterList(%s, [%s])", l.Operator, strings.Join(parts, ", "))
}

// PageFilter caps the number of rows returned by a scan.
type PageFilter struct {
	Size int
}

func NewPageFilter(size int) *PageFilter {
	return &PageFilter{Size: size}
}

func (f *PageFilter) Match(_ Row) bool {
	return true
}

func (f *PageFilter) String() string {
	return fmt.Sprintf("PageFilter(%d)", f.Size)
}

// PageSize returns the smallest size of the PageFilters which apply to every row, that is the top-level one and
// the ones nested only in MustPassAll lists.
func PageSize(f Filter) (int, bool) {
	switch v := f.(type) {
	case *PageFilter:
		return v.Size, true
	case *List:
		if v.Operator != MustPassAll {
			return 0, false
		}
		size, found := 0, false
		for _, child := range v.Filters {
			if childSize, ok := PageSize(child); ok && (!found || childSize < size) {
				size, found = childSize, true
			}
		}
		return size, found
	}
	return 0, false
}

// Fingerprint returns the stable textual form of the filter, nil filter included.
func Fingerprint(f Filter) string {
	if f == nil {
		return "<nil>"
	}
	return f.String()
}
