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

package storage

import (
	"fmt"
	"path"
)

const (
	version   = "v1"
	namespace = "namespace"
	table     = "table"
	data      = "data"
	id        = "id"
)

// makeNamespaceKey returns the namespace meta key.
// example:
// {root}/v1/namespace/default -> storage.Namespace
// {root}/v1/namespace/system  -> storage.Namespace
func makeNamespaceKey(rootPath string, name string) string {
	return path.Join(rootPath, version, namespace, name)
}

func makeNamespacePrefix(rootPath string) string {
	return path.Join(rootPath, version, namespace) + "/"
}

// makeTableKey returns the table meta key.
// example:
// {root}/v1/table/default/orders -> storage.Table
// {root}/v1/table/sales/orders   -> storage.Table
func makeTableKey(rootPath string, name TableName) string {
	return path.Join(rootPath, version, table, name.Namespace, name.Qualifier)
}

func makeTablePrefix(rootPath string, namespace string) string {
	if len(namespace) == 0 {
		return path.Join(rootPath, version, table) + "/"
	}
	return path.Join(rootPath, version, table, namespace) + "/"
}

// MakeTableIDAllocKey returns the key of the table id allocator.
func MakeTableIDAllocKey(rootPath string) string {
	return path.Join(rootPath, version, id, table)
}

// MakeTableDataPrefix returns the prefix under which all the cells of the table live.
// example:
// {root}/v1/data/00000000000000000001/{row}{family}:{qualifier} -> value
func MakeTableDataPrefix(rootPath string, tableID TableID) string {
	return path.Join(rootPath, version, data, fmt.Sprintf("%020d", tableID)) + "/"
}
