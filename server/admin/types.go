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

package admin

import "github.com/CeresDB/ceresdao/server/storage"

// OnExists decides what CreateTable does when the table exists.
type OnExists int

const (
	FailIfExists OnExists = iota
	// ReplaceExisting drops the existing table and its data before creating the new one.
	ReplaceExisting
)

func (o OnExists) String() string {
	switch o {
	case FailIfExists:
		return "fail"
	case ReplaceExisting:
		return "replace"
	}
	return "unknown"
}

type CreateTableRequest struct {
	Name     storage.TableName
	Families []storage.ColumnFamily
	// SplitKeys are the initial region boundaries, nil for a single region.
	SplitKeys [][]byte
	OnExists  OnExists
}

// Region is the row range [StartKey, EndKey) of a table, nil keys are unbounded.
type Region struct {
	Index    int    `json:"index"`
	StartKey []byte `json:"startKey"`
	EndKey   []byte `json:"endKey"`
}
