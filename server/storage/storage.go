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
	"context"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// Storage defines the storage operations on the namespaces and the table descriptors.
type Storage interface {
	// CreateNamespace fails with ErrCreateNamespaceAgain if the namespace exists.
	CreateNamespace(ctx context.Context, req CreateNamespaceRequest) error
	GetNamespace(ctx context.Context, name string) (GetNamespaceResult, error)
	ListNamespaces(ctx context.Context) (ListNamespacesResult, error)
	DeleteNamespace(ctx context.Context, req DeleteNamespaceRequest) error

	// CreateTable fails with ErrCreateTableAgain if the table exists.
	CreateTable(ctx context.Context, req CreateTableRequest) error
	GetTable(ctx context.Context, req GetTableRequest) (GetTableResult, error)
	ListTables(ctx context.Context, req ListTablesRequest) (ListTablesResult, error)
	// UpdateTable fails with ErrUpdateTableNotExists if the table does not exist.
	UpdateTable(ctx context.Context, req UpdateTableRequest) error
	DeleteTable(ctx context.Context, req DeleteTableRequest) error
}

type Options struct {
	// MaxScanLimit is the max limit of the number of keys in a scan.
	MaxScanLimit int
}

// NewStorageWithEtcdBackend creates a new storage with etcd backend.
func NewStorageWithEtcdBackend(kv clientv3.KV, rootPath string, opts Options) Storage {
	return newMetaStorageImpl(kv, rootPath, opts)
}
