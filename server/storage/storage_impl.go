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

	"github.com/CeresDB/ceresdao/pkg/coderr"
	"github.com/CeresDB/ceresdao/server/etcdutil"
	"github.com/go-json-experiment/json"
	"github.com/pkg/errors"
	clientv3 "go.etcd.io/etcd/client/v3"
)

type metaStorageImpl struct {
	kv       clientv3.KV
	rootPath string
	opts     Options
}

func newMetaStorageImpl(kv clientv3.KV, rootPath string, opts Options) *metaStorageImpl {
	return &metaStorageImpl{
		kv:       kv,
		rootPath: rootPath,
		opts:     opts,
	}
}

func encode[T any](v T) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, ErrEncode.WithCausef(err, "value:%v", v)
	}
	return b, nil
}

func decode[T any](key string, b []byte) (T, error) {
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return v, ErrDecode.WithCausef(err, "key:%s", key)
	}
	return v, nil
}

func (s *metaStorageImpl) CreateNamespace(ctx context.Context, req CreateNamespaceRequest) error {
	key := makeNamespaceKey(s.rootPath, req.Namespace.Name)
	value, err := encode(req.Namespace)
	if err != nil {
		return err
	}

	ok, err := etcdutil.PutIfAbsent(ctx, s.kv, key, value)
	if err != nil {
		return errors.WithMessagef(err, "create namespace, name:%s", req.Namespace.Name)
	}
	if !ok {
		return ErrCreateNamespaceAgain.WithMessagef("namespace:%s", req.Namespace.Name)
	}
	return nil
}

func (s *metaStorageImpl) GetNamespace(ctx context.Context, name string) (GetNamespaceResult, error) {
	key := makeNamespaceKey(s.rootPath, name)
	value, err := etcdutil.Get(ctx, s.kv, key)
	if err != nil {
		if coderr.Is(err, coderr.NotFound) {
			return GetNamespaceResult{Namespace: Namespace{}, Exists: false}, nil
		}
		return GetNamespaceResult{}, errors.WithMessagef(err, "get namespace, name:%s", name)
	}

	ns, err := decode[Namespace](key, value)
	if err != nil {
		return GetNamespaceResult{}, err
	}
	return GetNamespaceResult{Namespace: ns, Exists: true}, nil
}

func (s *metaStorageImpl) ListNamespaces(ctx context.Context) (ListNamespacesResult, error) {
	namespaces := make([]Namespace, 0)
	err := s.scanPrefix(ctx, makeNamespacePrefix(s.rootPath), func(key string, value []byte) error {
		ns, err := decode[Namespace](key, value)
		if err != nil {
			return err
		}
		namespaces = append(namespaces, ns)
		return nil
	})
	if err != nil {
		return ListNamespacesResult{}, errors.WithMessage(err, "list namespaces")
	}

	return ListNamespacesResult{Namespaces: namespaces}, nil
}

func (s *metaStorageImpl) DeleteNamespace(ctx context.Context, req DeleteNamespaceRequest) error {
	key := makeNamespaceKey(s.rootPath, req.Name)
	if _, err := s.kv.Delete(ctx, key); err != nil {
		return etcdutil.ErrEtcdKVDelete.WithCausef(err, "delete namespace, name:%s", req.Name)
	}
	return nil
}

func (s *metaStorageImpl) CreateTable(ctx context.Context, req CreateTableRequest) error {
	key := makeTableKey(s.rootPath, req.Table.Name)
	value, err := encode(req.Table)
	if err != nil {
		return err
	}

	ok, err := etcdutil.PutIfAbsent(ctx, s.kv, key, value)
	if err != nil {
		return errors.WithMessagef(err, "create table, name:%s", req.Table.Name)
	}
	if !ok {
		return ErrCreateTableAgain.WithMessagef("table:%s", req.Table.Name)
	}
	return nil
}

func (s *metaStorageImpl) GetTable(ctx context.Context, req GetTableRequest) (GetTableResult, error) {
	key := makeTableKey(s.rootPath, req.Name)
	value, err := etcdutil.Get(ctx, s.kv, key)
	if err != nil {
		if coderr.Is(err, coderr.NotFound) {
			return GetTableResult{Table: Table{}, Exists: false}, nil
		}
		return GetTableResult{}, errors.WithMessagef(err, "get table, name:%s", req.Name)
	}

	table, err := decode[Table](key, value)
	if err != nil {
		return GetTableResult{}, err
	}
	return GetTableResult{Table: table, Exists: true}, nil
}

func (s *metaStorageImpl) ListTables(ctx context.Context, req ListTablesRequest) (ListTablesResult, error) {
	tables := make([]Table, 0)
	err := s.scanPrefix(ctx, makeTablePrefix(s.rootPath, req.Namespace), func(key string, value []byte) error {
		table, err := decode[Table](key, value)
		if err != nil {
			return err
		}
		tables = append(tables, table)
		return nil
	})
	if err != nil {
		return ListTablesResult{}, errors.WithMessagef(err, "list tables, namespace:%s", req.Namespace)
	}

	return ListTablesResult{Tables: tables}, nil
}

func (s *metaStorageImpl) UpdateTable(ctx context.Context, req UpdateTableRequest) error {
	key := makeTableKey(s.rootPath, req.Table.Name)
	value, err := encode(req.Table)
	if err != nil {
		return err
	}

	ok, err := etcdutil.PutIfPresent(ctx, s.kv, key, value)
	if err != nil {
		return errors.WithMessagef(err, "update table, name:%s", req.Table.Name)
	}
	if !ok {
		return ErrUpdateTableNotExists.WithMessagef("table:%s", req.Table.Name)
	}
	return nil
}

func (s *metaStorageImpl) DeleteTable(ctx context.Context, req DeleteTableRequest) error {
	key := makeTableKey(s.rootPath, req.Name)
	if _, err := s.kv.Delete(ctx, key); err != nil {
		return etcdutil.ErrEtcdKVDelete.WithCausef(err, "delete table, name:%s", req.Name)
	}
	return nil
}

func (s *metaStorageImpl) scanPrefix(ctx context.Context, prefix string, do func(key string, value []byte) error) error {
	return etcdutil.ScanPrefix(ctx, s.kv, prefix, s.opts.MaxScanLimit, do)
}
