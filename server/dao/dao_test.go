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

package dao

import (
	"context"
	"fmt"
	"testing"

	"github.com/CeresDB/ceresdao/pkg/coderr"
	"github.com/CeresDB/ceresdao/server/admin"
	"github.com/CeresDB/ceresdao/server/config"
	"github.com/CeresDB/ceresdao/server/connection"
	"github.com/CeresDB/ceresdao/server/etcdutil"
	"github.com/CeresDB/ceresdao/server/filter"
	"github.com/CeresDB/ceresdao/server/page"
	"github.com/CeresDB/ceresdao/server/storage"
	"github.com/CeresDB/ceresdao/server/table"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const ordersTable = "sales:orders"

func newTestDao(t *testing.T) (*Dao, etcdutil.CloseFn) {
	re := require.New(t)
	_, client, closeSrv := etcdutil.PrepareEtcdServerAndClient(t)

	cfg := config.MakeDefaultConfig()
	cfg.MaxOpsPerTxn = 8
	cfg.ScanBatchSize = 5
	conn, err := connection.NewWithClient(context.Background(), client, cfg)
	re.NoError(err)
	paginator, err := page.NewPaginator(zap.NewNop(), 16)
	re.NoError(err)

	return New(zap.NewNop(), conn, paginator), func() {
		_ = conn.Close()
		closeSrv()
	}
}

func rowKey(i int) []byte {
	return []byte(fmt.Sprintf("order_%03d", i))
}

func orderMutations(from, to int) []*table.Mutation {
	mutations := make([]*table.Mutation, 0, to-from+1)
	for i := from; i <= to; i++ {
		status := "paid"
		if i%3 == 0 {
			status = "refunded"
		}
		mutations = append(mutations, table.NewMutation(rowKey(i)).
			Add("info", "status", []byte(status)).
			Add("info", "amount", []byte(fmt.Sprintf("%d", i*100))))
	}
	return mutations
}

func rowKeys(rows []*table.Row) []string {
	keys := make([]string, 0, len(rows))
	for _, r := range rows {
		keys = append(keys, string(r.Key))
	}
	return keys
}

func TestParseColumns(t *testing.T) {
	re := require.New(t)

	columns, err := ParseColumns([]string{"info", "info:status", "data:"})
	re.NoError(err)
	re.Equal([]table.Column{
		{Family: []byte("info"), Qualifier: nil},
		{Family: []byte("info"), Qualifier: []byte("status")},
		{Family: []byte("data"), Qualifier: []byte{}},
	}, columns)

	_, err = ParseColumns([]string{":status"})
	re.True(coderr.Is(err, coderr.InvalidParams))
}

func TestDao(t *testing.T) {
	re := require.New(t)
	d, closeAll := newTestDao(t)
	defer closeAll()
	ctx := context.Background()

	families := []storage.ColumnFamily{{Name: "info", Compression: storage.CompressionSnappy, TTLSeconds: 0}}
	err := d.CreateTable(ctx, ordersTable, families, nil, admin.FailIfExists)
	re.True(coderr.Is(err, coderr.NamespaceNotFound))

	re.NoError(d.CreateNamespace(ctx, "sales"))
	exists, err := d.NamespaceExists(ctx, "sales")
	re.NoError(err)
	re.True(exists)
	re.NoError(d.CreateTable(ctx, ordersTable, families, [][]byte{rowKey(10)}, admin.FailIfExists))
	err = d.CreateTable(ctx, ordersTable, families, nil, admin.FailIfExists)
	re.True(coderr.Is(err, coderr.TableAlreadyExists))

	exists, err = d.TableExists(ctx, ordersTable)
	re.NoError(err)
	re.True(exists)
	desc, err := d.DescribeTable(ctx, ordersTable)
	re.NoError(err)
	re.Equal("sales:orders", desc.Name.String())
	regions, err := d.ListRegions(ctx, ordersTable)
	re.NoError(err)
	re.Len(regions, 2)

	re.NoError(d.AddData(ctx, ordersTable, orderMutations(1, 1)[0]))
	re.NoError(d.AddDataBatch(ctx, ordersTable, orderMutations(2, 10)))
	re.NoError(d.AddDataBatchAsync(ctx, ordersTable, orderMutations(11, 20), 64))

	count, err := d.CountRows(ctx, ordersTable)
	re.NoError(err)
	re.Equal(int64(20), count)

	columns, err := ParseColumns([]string{"info:amount"})
	re.NoError(err)
	row, err := d.GetRow(ctx, ordersTable, rowKey(7), columns)
	re.NoError(err)
	re.Len(row.Cells, 1)
	re.Equal([]byte("700"), row.Value("info", "amount"))

	rows, err := d.GetRows(ctx, ordersTable, [][]byte{rowKey(2), rowKey(99)}, nil)
	re.NoError(err)
	re.NotNil(rows[0])
	re.Nil(rows[1])

	rows, err = d.GetRowsByStartAndStop(ctx, ordersTable, rowKey(5), rowKey(8))
	re.NoError(err)
	re.Equal([]string{"order_005", "order_006", "order_007"}, rowKeys(rows))

	refunded := filter.NewSingleColumnValueFilter([]byte("info"), []byte("status"), filter.Equal,
		filter.NewBinaryComparator([]byte("refunded")), true)
	rows, err = d.GetRowsByFilters(ctx, ordersTable, nil, rowKey(13), refunded)
	re.NoError(err)
	re.Equal([]string{"order_003", "order_006", "order_009", "order_012"}, rowKeys(rows))

	row, err = d.GetLastRow(ctx, ordersTable, nil, nil, true)
	re.NoError(err)
	re.Equal(rowKey(20), row.Key)

	cursor, err := page.NewCursor(page.Query{PageSize: 6})
	re.NoError(err)
	all := make([]string, 0, 20)
	for !cursor.Done {
		p, err := d.ScanResultByPage(ctx, ordersTable, cursor)
		re.NoError(err)
		all = append(all, rowKeys(p.Rows)...)
	}
	re.Len(all, 20)

	p, err := d.ScanResultByPageIndex(ctx, ordersTable, page.Query{PageSize: 6}, 4)
	re.NoError(err)
	re.Equal([]string{"order_019", "order_020"}, rowKeys(p.Rows))
	re.True(p.Done)

	re.NoError(d.Delete(ctx, ordersTable, rowKey(1)))
	re.NoError(d.DeleteRows(ctx, ordersTable, [][]byte{rowKey(2), rowKey(3)}))
	re.NoError(d.DeleteRows(ctx, ordersTable, nil))
	count, err = d.CountRows(ctx, ordersTable)
	re.NoError(err)
	re.Equal(int64(17), count)

	re.NoError(d.TruncateTable(ctx, ordersTable))
	count, err = d.CountRows(ctx, ordersTable)
	re.NoError(err)
	re.Equal(int64(0), count)

	re.NoError(d.DisableTable(ctx, ordersTable))
	_, err = d.GetRow(ctx, ordersTable, rowKey(1), nil)
	re.True(coderr.Is(err, coderr.TableDisabled))
	re.NoError(d.EnableTable(ctx, ordersTable))

	names, err := d.ListTableNamesByNamespace(ctx, "sales")
	re.NoError(err)
	re.Len(names, 1)
	re.True(coderr.Is(d.DeleteNamespace(ctx, "sales"), coderr.NamespaceNotEmpty))

	re.NoError(d.DropTable(ctx, ordersTable))
	re.NoError(d.DropTable(ctx, ordersTable))
	_, err = d.GetRow(ctx, ordersTable, rowKey(1), nil)
	re.True(coderr.Is(err, coderr.TableNotFound))
	_, err = d.GetRow(ctx, "bad name", rowKey(1), nil)
	re.True(coderr.Is(err, coderr.InvalidParams))

	names, err = d.ListTableNames(ctx)
	re.NoError(err)
	re.Empty(names)
	re.NoError(d.DeleteNamespace(ctx, "sales"))
	namespaces, err := d.ListNamespaces(ctx)
	re.NoError(err)
	re.Len(namespaces, 2)
}

func TestDaoPartialWrite(t *testing.T) {
	re := require.New(t)
	d, closeAll := newTestDao(t)
	defer closeAll()
	ctx := context.Background()

	re.NoError(d.CreateTableBySnappy(ctx, "events", []string{"e"}, nil, admin.FailIfExists, 0))
	err := d.AddDataBatch(ctx, "events", []*table.Mutation{
		table.NewMutation([]byte("k1")).Add("e", "v", []byte("1")),
		table.NewMutation([]byte("k2")).Add("unknown", "v", []byte("2")),
	})
	re.True(coderr.Is(err, coderr.InvalidParams))

	rows, err := d.Scan(ctx, "events", &table.ScanRequest{})
	re.NoError(err)
	re.Empty(rows)

	re.NoError(d.CreateTableWithRegions(ctx, "metrics", []storage.ColumnFamily{{Name: "m", Compression: storage.CompressionLZ4, TTLSeconds: 0}},
		[]byte("a"), []byte("z"), 4, admin.FailIfExists))
	regions, err := d.ListRegions(ctx, "metrics")
	re.NoError(err)
	re.Len(regions, 4)
}
