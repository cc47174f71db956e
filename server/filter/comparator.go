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

package filter

import (
	"bytes"
	"fmt"
	"regexp"
)

// Comparator compares a row key or a cell value against its operand.
type Comparator interface {
	// Compare returns a negative number, zero or a positive number when value is less than, equal to or greater
	// than the operand.
	Compare(value []byte) int
	String() string
}

// BinaryComparator compares the values lexicographically.
type BinaryComparator struct {
	Operand []byte
}

func NewBinaryComparator(operand []byte) *BinaryComparator {
	return &BinaryComparator{Operand: operand}
}

func (c *BinaryComparator) Compare(value []byte) int {
	return bytes.Compare(value, c.Operand)
}

func (c *BinaryComparator) String() string {
	return fmt.Sprintf("binary:%q", c.Operand)
}

// BinaryPrefixComparator compares only the leading len(Operand) bytes of the values.
type BinaryPrefixComparator struct {
	Operand []byte
}

func NewBinaryPrefixComparator(operand []byte) *BinaryPrefixComparator {
	return &BinaryPrefixComparator{Operand: operand}
}

func (c *BinaryPrefixComparator) Compare(value []byte) int {
	if len(value) > len(c.Operand) {
		value = value[:len(c.Operand)]
	}
	return bytes.Compare(value, c.Operand)
}

func (c *BinaryPrefixComparator) String() string {
	return fmt.Sprintf("binaryprefix:%q", c.Operand)
}

// RegexComparator is equal to the values matching the expression, and greater than the others.
// It only makes sense with the Equal and NotEqual operators.
type RegexComparator struct {
	expr *regexp.Regexp
}

func NewRegexComparator(expr string) (*RegexComparator, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, ErrInvalidComparator.WithCausef(err, "regex:%s", expr)
	}
	return &RegexComparator{expr: re}, nil
}

func (c *RegexComparator) Compare(value []byte) int {
	if c.expr.Match(value) {
		return 0
	}
	return 1
}

func (c *RegexComparator) String() string {
	return fmt.Sprintf("regex:%q", c.expr.String())
}

// SubstringComparator is equal to the values containing the operand case-insensitively, and greater than the
// others. It only makes sense with the Equal and NotEqual operators.
type SubstringComparator struct {
	operand []byte
}

func NewSubstringComparator(operand string) *SubstringComparator {
	return &SubstringComparator{operand: bytes.ToLower([]byte(operand))}
}

func (c *SubstringComparator) Compare(value []byte) int {
	if bytes.Contains(bytes.ToLower(value), c.operand) {
		return 0
	}
	return 1
}

func (c *SubstringComparator) String() string {
	return fmt.Sprintf("substring:%q", c.operand)
}
