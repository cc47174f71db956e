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

package connection

import (
	"context"
	"testing"

	"github.com/CeresDB/ceresdao/pkg/coderr"
	"github.com/CeresDB/ceresdao/server/admin"
	"github.com/CeresDB/ceresdao/server/config"
	"github.com/CeresDB/ceresdao/server/etcdutil"
	"github.com/CeresDB/ceresdao/server/storage"
	"github.com/CeresDB/ceresdao/server/table"
	"github.com/stretchr/testify/require"
)

var ordersTable = storage.TableName{Namespace: storage.DefaultNamespace, Qualifier: "orders"}

func TestOpenInvalidQuorum(t *testing.T) {
	re := require.New(t)
	ctx := context.Background()

	cfg := config.MakeDefaultConfig()
	_, err := Open(ctx, cfg)
	re.True(coderr.Is(err, coderr.ConfigInvalid))

	cfg = config.MakeDefaultConfig()
	cfg.QuorumAddress = "127.0.0.1:1"
	cfg.DialTimeoutMs = 200
	_, err = Open(ctx, cfg)
	re.True(coderr.Is(err, coderr.ConfigInvalid))
}

func TestConnection(t *testing.T) {
	re := require.New(t)
	etcd, client, closeSrv := etcdutil.PrepareEtcdServerAndClient(t)
	defer closeSrv()
	ctx := context.Background()

	cfg := config.MakeDefaultConfig()
	cfg.QuorumAddress = etcdutil.ClientEndpoint(etcd)
	conn, err := Open(ctx, cfg)
	re.NoError(err)

	a, err := conn.Admin()
	re.NoError(err)
	exists, err := a.NamespaceExists(ctx, storage.SystemNamespace)
	re.NoError(err)
	re.True(exists)

	_, err = conn.GetTable(ctx, ordersTable)
	re.True(coderr.Is(err, coderr.TableNotFound))

	_, err = a.CreateTable(ctx, admin.CreateTableRequest{
		Name:     ordersTable,
		Families: []storage.ColumnFamily{{Name: "cf", Compression: storage.CompressionZstd, TTLSeconds: 0}},
	})
	re.NoError(err)

	tbl, err := conn.GetTable(ctx, ordersTable)
	re.NoError(err)
	re.NoError(tbl.Put(ctx, table.NewMutation([]byte("r1")).Add("cf", "q", []byte("v1"))))
	re.NoError(tbl.Close())

	mutator, err := conn.NewBufferedMutator(ctx, ordersTable, 0)
	re.NoError(err)
	re.NoError(mutator.Mutate(ctx, table.NewMutation([]byte("r2")).Add("cf", "q", []byte("v2"))))
	re.NoError(mutator.Close(ctx))

	// A second connection over the same cluster sees the same data.
	other, err := NewWithClient(ctx, client, cfg)
	re.NoError(err)
	tbl, err = other.GetTable(ctx, ordersTable)
	re.NoError(err)
	rows, err := tbl.ScanRows(ctx, &table.ScanRequest{})
	re.NoError(err)
	re.Len(rows, 2)
	re.Equal([]byte("v2"), rows[1].Value("cf", "q"))
	re.NoError(tbl.Close())
	re.NoError(other.Close())

	re.NoError(a.DisableTable(ctx, ordersTable))
	_, err = conn.GetTable(ctx, ordersTable)
	re.True(coderr.Is(err, coderr.TableDisabled))

	re.NoError(conn.Close())
	re.NoError(conn.Close())
	re.True(conn.IsClosed())
	_, err = conn.GetTable(ctx, ordersTable)
	re.True(coderr.Is(err, coderr.ConnectionClosed))
	_, err = conn.Admin()
	re.True(coderr.Is(err, coderr.ConnectionClosed))

	// The client provided by the caller is still usable.
	_, err = client.Get(ctx, "any")
	re.NoError(err)
}
