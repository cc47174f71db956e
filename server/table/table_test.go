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
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/CeresDB/ceresdao/pkg/coderr"
	"github.com/CeresDB/ceresdao/server/codec"
	"github.com/CeresDB/ceresdao/server/config"
	"github.com/CeresDB/ceresdao/server/etcdutil"
	"github.com/CeresDB/ceresdao/server/filter"
	"github.com/CeresDB/ceresdao/server/limiter"
	"github.com/CeresDB/ceresdao/server/storage"
	"github.com/stretchr/testify/require"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

const (
	testRootPath = "/ceresdao"
	testTableID  = storage.TableID(7)
)

var testFamilies = []storage.ColumnFamily{
	{Name: "info", Compression: storage.CompressionNone, TTLSeconds: 0},
	{Name: "data", Compression: storage.CompressionSnappy, TTLSeconds: 0},
}

type testTableOptions struct {
	families    []storage.ColumnFamily
	splitKeys   [][]byte
	batchSize   int
	maxOps      int
	flowLimiter *limiter.FlowLimiter
	wrapKV      func(clientv3.KV) clientv3.KV
}

func defaultTestTableOptions() testTableOptions {
	return testTableOptions{
		families:    testFamilies,
		splitKeys:   nil,
		batchSize:   2,
		maxOps:      4,
		flowLimiter: nil,
		wrapKV:      nil,
	}
}

func newTestTable(t *testing.T, client *clientv3.Client, opts testTableOptions) *Table {
	re := require.New(t)

	compressors, err := codec.NewCompressors()
	re.NoError(err)
	t.Cleanup(compressors.Close)

	var kv clientv3.KV = client
	if opts.wrapKV != nil {
		kv = opts.wrapKV(client)
	}
	meta := storage.Table{
		ID:        testTableID,
		Name:      storage.TableName{Namespace: storage.DefaultNamespace, Qualifier: "orders"},
		Families:  opts.families,
		SplitKeys: opts.splitKeys,
		State:     storage.TableStateEnabled,
		CreatedAt: uint64(time.Now().UnixMilli()),
	}
	return New(zap.NewNop(), kv, client, meta, compressors, opts.flowLimiter, Options{
		RootPath:         testRootPath,
		RequestTimeout:   5 * time.Second,
		ScanBatchSize:    opts.batchSize,
		MaxOpsPerTxn:     opts.maxOps,
		FlushConcurrency: 4,
	})
}

func rowKey(i int) []byte {
	return []byte(fmt.Sprintf("r%02d", i))
}

func putOrders(ctx context.Context, re *require.Assertions, tbl *Table, n int) {
	mutations := make([]*Mutation, 0, n)
	for i := 1; i <= n; i++ {
		status := "paid"
		if i%2 == 0 {
			status = "open"
		}
		mutations = append(mutations, NewMutation(rowKey(i)).
			Add("info", "status", []byte(status)).
			Add("info", "amount", []byte(fmt.Sprintf("%d", i*10))).
			Add("data", "payload", bytes.Repeat([]byte("x"), i)))
	}
	re.NoError(tbl.PutBatch(ctx, mutations))
}

func rowKeys(rows []*Row) []string {
	keys := make([]string, 0, len(rows))
	for _, r := range rows {
		keys = append(keys, string(r.Key))
	}
	return keys
}

func TestPutGet(t *testing.T) {
	re := require.New(t)
	_, client, closeSrv := etcdutil.PrepareEtcdServerAndClient(t)
	defer closeSrv()
	ctx := context.Background()
	tbl := newTestTable(t, client, defaultTestTableOptions())

	m := NewMutation([]byte("r1")).
		Add("info", "status", []byte("paid")).
		Add("info", "amount", []byte("42")).
		Add("data", "payload", []byte("hello"))
	re.NoError(tbl.Put(ctx, m))

	row, err := tbl.Get(ctx, []byte("r1"), nil)
	re.NoError(err)
	re.NotNil(row)
	re.Equal([]byte("r1"), row.Key)
	re.Len(row.Cells, 3)
	// Cells are ordered by family then qualifier.
	re.Equal("data", string(row.Cells[0].Family))
	re.Equal("amount", string(row.Cells[1].Qualifier))
	re.Equal([]byte("hello"), row.Value("data", "payload"))

	row, err = tbl.Get(ctx, []byte("r1"), []Column{{Family: []byte("info"), Qualifier: []byte("status")}})
	re.NoError(err)
	re.Len(row.Cells, 1)
	re.Equal([]byte("paid"), row.Value("info", "status"))

	row, err = tbl.Get(ctx, []byte("r1"), []Column{{Family: []byte("info"), Qualifier: nil}})
	re.NoError(err)
	re.Len(row.Cells, 2)

	row, err = tbl.Get(ctx, []byte("r1"), []Column{{Family: []byte("info"), Qualifier: []byte("absent")}})
	re.NoError(err)
	re.Nil(row)

	row, err = tbl.Get(ctx, []byte("absent"), nil)
	re.NoError(err)
	re.Nil(row)

	_, err = tbl.Get(ctx, nil, nil)
	re.True(coderr.Is(err, coderr.InvalidParams))

	_, err = tbl.Get(ctx, []byte("r1"), []Column{{Family: []byte("unknown"), Qualifier: nil}})
	re.True(coderr.Is(err, coderr.InvalidParams))

	err = tbl.Put(ctx, NewMutation([]byte("r2")).Add("unknown", "q", []byte("v")))
	re.True(coderr.Is(err, coderr.InvalidParams))
	err = tbl.Put(ctx, NewMutation([]byte("r2")))
	re.True(coderr.Is(err, coderr.InvalidParams))

	row, err = tbl.Get(ctx, []byte("r2"), nil)
	re.NoError(err)
	re.Nil(row)
}

func TestGetMany(t *testing.T) {
	re := require.New(t)
	_, client, closeSrv := etcdutil.PrepareEtcdServerAndClient(t)
	defer closeSrv()
	ctx := context.Background()
	tbl := newTestTable(t, client, defaultTestTableOptions())
	putOrders(ctx, re, tbl, 10)

	keys := [][]byte{rowKey(3), []byte("absent"), rowKey(1), rowKey(10), rowKey(5), rowKey(7)}
	rows, err := tbl.GetMany(ctx, keys, []Column{{Family: []byte("info"), Qualifier: []byte("amount")}})
	re.NoError(err)
	re.Len(rows, len(keys))
	re.Nil(rows[1])
	re.Equal([]byte("30"), rows[0].Value("info", "amount"))
	re.Equal([]byte("10"), rows[2].Value("info", "amount"))
	re.Equal([]byte("100"), rows[3].Value("info", "amount"))
	re.Len(rows[5].Cells, 1)

	_, err = tbl.GetMany(ctx, [][]byte{rowKey(1), nil}, nil)
	re.True(coderr.Is(err, coderr.InvalidParams))

	_, err = tbl.GetMany(ctx, nil, nil)
	re.True(coderr.Is(err, coderr.InvalidParams))
}

func TestCompression(t *testing.T) {
	re := require.New(t)
	_, client, closeSrv := etcdutil.PrepareEtcdServerAndClient(t)
	defer closeSrv()
	ctx := context.Background()

	opts := defaultTestTableOptions()
	compressions := []storage.Compression{
		storage.CompressionNone, storage.CompressionSnappy, storage.CompressionGzip,
		storage.CompressionLZ4, storage.CompressionZstd,
	}
	opts.families = make([]storage.ColumnFamily, 0, len(compressions))
	for _, c := range compressions {
		opts.families = append(opts.families, storage.ColumnFamily{Name: string(c), Compression: c, TTLSeconds: 0})
	}
	tbl := newTestTable(t, client, opts)

	value := bytes.Repeat([]byte("ceresdao"), 128)
	m := NewMutation([]byte("row"))
	for _, c := range compressions {
		m.Add(string(c), "q", value)
	}
	re.NoError(tbl.Put(ctx, m))

	row, err := tbl.Get(ctx, []byte("row"), nil)
	re.NoError(err)
	for _, c := range compressions {
		re.Equal(value, row.Value(string(c), "q"), "compression:%s", c)

		key := codec.CellKey(storage.MakeTableDataPrefix(testRootPath, testTableID), []byte("row"), []byte(c), []byte("q"))
		resp, err := client.Get(ctx, key)
		re.NoError(err)
		re.Len(resp.Kvs, 1)
		if c == storage.CompressionNone {
			re.Equal(value, resp.Kvs[0].Value)
		} else {
			re.Less(len(resp.Kvs[0].Value), len(value), "compression:%s", c)
		}
	}
}

func TestFamilyTTL(t *testing.T) {
	re := require.New(t)
	_, client, closeSrv := etcdutil.PrepareEtcdServerAndClient(t)
	defer closeSrv()
	ctx := context.Background()

	opts := defaultTestTableOptions()
	opts.families = []storage.ColumnFamily{
		{Name: "info", Compression: storage.CompressionNone, TTLSeconds: 0},
		{Name: "session", Compression: storage.CompressionNone, TTLSeconds: 600},
	}
	tbl := newTestTable(t, client, opts)

	re.NoError(tbl.Put(ctx, NewMutation([]byte("u1")).
		Add("info", "name", []byte("alice")).
		Add("session", "token", []byte("abc"))))

	prefix := storage.MakeTableDataPrefix(testRootPath, testTableID)
	resp, err := client.Get(ctx, codec.CellKey(prefix, []byte("u1"), []byte("session"), []byte("token")))
	re.NoError(err)
	re.Len(resp.Kvs, 1)
	re.NotEqual(int64(clientv3.NoLease), resp.Kvs[0].Lease)

	ttlResp, err := client.TimeToLive(ctx, clientv3.LeaseID(resp.Kvs[0].Lease))
	re.NoError(err)
	re.Greater(ttlResp.TTL, int64(0))
	re.LessOrEqual(ttlResp.TTL, int64(600))

	resp, err = client.Get(ctx, codec.CellKey(prefix, []byte("u1"), []byte("info"), []byte("name")))
	re.NoError(err)
	re.Len(resp.Kvs, 1)
	re.Equal(int64(clientv3.NoLease), resp.Kvs[0].Lease)
}

func TestPutBatchChunks(t *testing.T) {
	re := require.New(t)
	_, client, closeSrv := etcdutil.PrepareEtcdServerAndClient(t)
	defer closeSrv()
	ctx := context.Background()

	counter := &countingKV{}
	opts := defaultTestTableOptions()
	opts.wrapKV = func(kv clientv3.KV) clientv3.KV {
		counter.KV = kv
		return counter
	}
	tbl := newTestTable(t, client, opts)

	// Every row has 3 cells and a txn holds at most 4 ops, so every row is written by its own txn.
	putOrders(ctx, re, tbl, 10)
	re.Equal(int64(10), counter.txns.Load())

	// A row wider than a txn is split.
	wide := NewMutation([]byte("wide"))
	for i := 0; i < 10; i++ {
		wide.Add("info", fmt.Sprintf("q%d", i), []byte("v"))
	}
	// The same cell written twice in one mutation keeps the last value.
	wide.Add("info", "q0", []byte("last"))
	re.NoError(tbl.PutBatch(ctx, []*Mutation{wide}))

	row, err := tbl.Get(ctx, []byte("wide"), nil)
	re.NoError(err)
	re.Len(row.Cells, 10)
	re.Equal([]byte("last"), row.Value("info", "q0"))

	count, err := tbl.Count(ctx)
	re.NoError(err)
	re.Equal(int64(11), count)
}

func TestPartialWrite(t *testing.T) {
	re := require.New(t)
	_, client, closeSrv := etcdutil.PrepareEtcdServerAndClient(t)
	defer closeSrv()
	ctx := context.Background()

	opts := defaultTestTableOptions()
	opts.maxOps = 2
	opts.wrapKV = func(kv clientv3.KV) clientv3.KV {
		return &failingKV{KV: kv, failOn: []byte("r03")}
	}
	tbl := newTestTable(t, client, opts)

	mutations := make([]*Mutation, 0, 6)
	for i := 1; i <= 6; i++ {
		mutations = append(mutations, NewMutation(rowKey(i)).Add("info", "status", []byte("paid")))
	}
	err := tbl.PutBatch(ctx, mutations)
	re.Error(err)
	re.True(coderr.Is(err, coderr.PartialWrite))

	var partialErr *PartialWriteError
	re.True(errors.As(err, &partialErr))
	re.Len(partialErr.FailedRows, 2)
	re.Equal(rowKey(3), partialErr.FailedRows[0].Row)
	re.Equal(rowKey(4), partialErr.FailedRows[1].Row)
	re.True(coderr.Is(partialErr.FailedRows[0].Err, coderr.StoreFailure))

	for _, i := range []int{1, 2, 5, 6} {
		row, err := tbl.Get(ctx, rowKey(i), nil)
		re.NoError(err)
		re.NotNil(row, "row:%d", i)
	}
	for _, i := range []int{3, 4} {
		row, err := tbl.Get(ctx, rowKey(i), nil)
		re.NoError(err)
		re.Nil(row, "row:%d", i)
	}

	err = tbl.Put(ctx, NewMutation(rowKey(3)).Add("info", "status", []byte("paid")))
	re.True(coderr.Is(err, coderr.PartialWrite))
	re.True(errors.As(err, &partialErr))
	re.Len(partialErr.FailedRows, 1)
	re.True(coderr.Is(partialErr.FailedRows[0].Err, coderr.StoreFailure))
}

func TestPutWideRow(t *testing.T) {
	re := require.New(t)
	_, client, closeSrv := etcdutil.PrepareEtcdServerAndClient(t)
	defer closeSrv()
	ctx := context.Background()

	opts := defaultTestTableOptions()
	opts.maxOps = 4
	opts.wrapKV = func(kv clientv3.KV) clientv3.KV {
		return &failingKV{KV: kv, failOn: []byte("col5")}
	}
	tbl := newTestTable(t, client, opts)

	// Six cells need two txns, the second one fails.
	m := NewMutation(rowKey(1))
	for i := 1; i <= 6; i++ {
		m.Add("info", fmt.Sprintf("col%d", i), []byte("v"))
	}
	err := tbl.Put(ctx, m)
	re.True(coderr.Is(err, coderr.PartialWrite))
	var partialErr *PartialWriteError
	re.True(errors.As(err, &partialErr))
	re.Len(partialErr.FailedRows, 1)
	re.Equal(rowKey(1), partialErr.FailedRows[0].Row)

	row, err := tbl.Get(ctx, rowKey(1), nil)
	re.NoError(err)
	re.NotNil(row)
	re.Len(row.Cells, 4)
	re.Nil(row.Value("info", "col5"))
}

func TestDelete(t *testing.T) {
	re := require.New(t)
	_, client, closeSrv := etcdutil.PrepareEtcdServerAndClient(t)
	defer closeSrv()
	ctx := context.Background()

	counter := &countingKV{}
	opts := defaultTestTableOptions()
	opts.wrapKV = func(kv clientv3.KV) clientv3.KV {
		counter.KV = kv
		return counter
	}
	tbl := newTestTable(t, client, opts)
	putOrders(ctx, re, tbl, 10)

	before := counter.total()
	re.NoError(tbl.DeleteMany(ctx, nil))
	re.NoError(tbl.DeleteMany(ctx, [][]byte{}))
	re.Equal(before, counter.total())

	re.NoError(tbl.Delete(ctx, rowKey(1)))
	re.NoError(tbl.Delete(ctx, []byte("absent")))
	re.NoError(tbl.DeleteMany(ctx, [][]byte{rowKey(2), rowKey(3), rowKey(2)}))
	re.True(coderr.Is(tbl.Delete(ctx, nil), coderr.InvalidParams))

	rows, err := tbl.ScanRows(ctx, &ScanRequest{})
	re.NoError(err)
	re.Equal([]string{"r04", "r05", "r06", "r07", "r08", "r09", "r10"}, rowKeys(rows))
}

func TestScan(t *testing.T) {
	re := require.New(t)
	_, client, closeSrv := etcdutil.PrepareEtcdServerAndClient(t)
	defer closeSrv()
	ctx := context.Background()
	tbl := newTestTable(t, client, defaultTestTableOptions())
	putOrders(ctx, re, tbl, 10)

	paid := filter.NewSingleColumnValueFilter([]byte("info"), []byte("status"), filter.Equal,
		filter.NewBinaryComparator([]byte("paid")), true)
	cases := []struct {
		name     string
		req      *ScanRequest
		expected []string
	}{
		{
			name:     "full",
			req:      &ScanRequest{},
			expected: []string{"r01", "r02", "r03", "r04", "r05", "r06", "r07", "r08", "r09", "r10"},
		},
		{
			name:     "half open range",
			req:      &ScanRequest{StartRow: rowKey(3), StopRow: rowKey(7)},
			expected: []string{"r03", "r04", "r05", "r06"},
		},
		{
			name:     "start only",
			req:      &ScanRequest{StartRow: rowKey(8)},
			expected: []string{"r08", "r09", "r10"},
		},
		{
			name:     "empty range",
			req:      &ScanRequest{StartRow: rowKey(4), StopRow: rowKey(4)},
			expected: []string{},
		},
		{
			name:     "limit",
			req:      &ScanRequest{StartRow: rowKey(2), Limit: 3},
			expected: []string{"r02", "r03", "r04"},
		},
		{
			name:     "reversed",
			req:      &ScanRequest{StartRow: rowKey(7), StopRow: rowKey(3), Reversed: true},
			expected: []string{"r07", "r06", "r05", "r04"},
		},
		{
			name:     "reversed full",
			req:      &ScanRequest{Reversed: true, Limit: 2},
			expected: []string{"r10", "r09"},
		},
		{
			name:     "value filter",
			req:      &ScanRequest{Filter: paid},
			expected: []string{"r01", "r03", "r05", "r07", "r09"},
		},
		{
			name:     "page filter",
			req:      &ScanRequest{StartRow: rowKey(2), Filter: filter.NewList(filter.MustPassAll, paid, filter.NewPageFilter(2))},
			expected: []string{"r03", "r05"},
		},
		{
			name: "row filter",
			req: &ScanRequest{Filter: filter.NewRowFilter(filter.GreaterOrEqual,
				filter.NewBinaryComparator(rowKey(9)))},
			expected: []string{"r09", "r10"},
		},
		{
			name: "filter on a column out of the projection",
			req: &ScanRequest{
				StopRow: rowKey(4),
				Columns: []Column{{Family: []byte("data"), Qualifier: nil}},
				Filter:  paid,
			},
			expected: []string{"r01", "r03"},
		},
	}

	for _, c := range cases {
		rows, err := tbl.ScanRows(ctx, c.req)
		re.NoError(err, "case:%s", c.name)
		re.Equal(c.expected, rowKeys(rows), "case:%s", c.name)
	}

	rows, err := tbl.ScanRows(ctx, &ScanRequest{
		StartRow: rowKey(5),
		StopRow:  rowKey(6),
		Columns:  []Column{{Family: []byte("data"), Qualifier: nil}},
	})
	re.NoError(err)
	re.Len(rows, 1)
	re.Len(rows[0].Cells, 1)
	re.Equal(bytes.Repeat([]byte("x"), 5), rows[0].Value("data", "payload"))

	_, err = tbl.Scan(ctx, &ScanRequest{StartRow: rowKey(5), StopRow: rowKey(2)})
	re.True(coderr.Is(err, coderr.InvalidParams))
	_, err = tbl.Scan(ctx, &ScanRequest{StartRow: rowKey(2), StopRow: rowKey(5), Reversed: true})
	re.True(coderr.Is(err, coderr.InvalidParams))
	_, err = tbl.Scan(ctx, &ScanRequest{Columns: []Column{{Family: []byte("unknown"), Qualifier: nil}}})
	re.True(coderr.Is(err, coderr.InvalidParams))
}

func TestScannerClose(t *testing.T) {
	re := require.New(t)
	_, client, closeSrv := etcdutil.PrepareEtcdServerAndClient(t)
	defer closeSrv()
	ctx := context.Background()
	tbl := newTestTable(t, client, defaultTestTableOptions())
	putOrders(ctx, re, tbl, 3)

	scanner, err := tbl.Scan(ctx, &ScanRequest{})
	re.NoError(err)
	row, err := scanner.Next(ctx)
	re.NoError(err)
	re.Equal(rowKey(1), row.Key)

	scanner.Close()
	scanner.Close()
	_, err = scanner.Next(ctx)
	re.Equal(io.EOF, err)
}

func TestRowKeyOrder(t *testing.T) {
	re := require.New(t)
	_, client, closeSrv := etcdutil.PrepareEtcdServerAndClient(t)
	defer closeSrv()
	ctx := context.Background()
	tbl := newTestTable(t, client, defaultTestTableOptions())

	keys := []string{"ab", "a\x00b", "a", "a\x00", "b", "a\x01"}
	for _, k := range keys {
		re.NoError(tbl.Put(ctx, NewMutation([]byte(k)).Add("info", "k", []byte(k))))
	}

	rows, err := tbl.ScanRows(ctx, &ScanRequest{})
	re.NoError(err)
	re.Equal([]string{"a", "a\x00", "a\x00b", "a\x01", "ab", "b"}, rowKeys(rows))

	rows, err = tbl.ScanRows(ctx, &ScanRequest{Reversed: true})
	re.NoError(err)
	re.Equal([]string{"b", "ab", "a\x01", "a\x00b", "a\x00", "a"}, rowKeys(rows))

	row, err := tbl.Get(ctx, []byte("a"), nil)
	re.NoError(err)
	re.Len(row.Cells, 1)
	re.Equal([]byte("a"), row.Value("info", "k"))

	rows, err = tbl.ScanRows(ctx, &ScanRequest{StartRow: []byte("a\x00"), StopRow: []byte("ab")})
	re.NoError(err)
	re.Equal([]string{"a\x00", "a\x00b", "a\x01"}, rowKeys(rows))
}

func TestGetLast(t *testing.T) {
	re := require.New(t)
	_, client, closeSrv := etcdutil.PrepareEtcdServerAndClient(t)
	defer closeSrv()
	ctx := context.Background()
	tbl := newTestTable(t, client, defaultTestTableOptions())
	putOrders(ctx, re, tbl, 10)

	row, err := tbl.GetLast(ctx, rowKey(4), rowKey(8), false)
	re.NoError(err)
	re.Equal(rowKey(4), row.Key)

	row, err = tbl.GetLast(ctx, nil, nil, true)
	re.NoError(err)
	re.Equal(rowKey(10), row.Key)

	row, err = tbl.GetLast(ctx, rowKey(8), rowKey(4), true)
	re.NoError(err)
	re.Equal(rowKey(8), row.Key)

	row, err = tbl.GetLast(ctx, []byte("s"), nil, false)
	re.NoError(err)
	re.Nil(row)
}

func TestCount(t *testing.T) {
	re := require.New(t)
	_, client, closeSrv := etcdutil.PrepareEtcdServerAndClient(t)
	defer closeSrv()
	ctx := context.Background()

	opts := defaultTestTableOptions()
	opts.splitKeys = [][]byte{rowKey(3), rowKey(6), []byte("z")}
	tbl := newTestTable(t, client, opts)

	count, err := tbl.Count(ctx)
	re.NoError(err)
	re.Equal(int64(0), count)

	putOrders(ctx, re, tbl, 10)
	count, err = tbl.Count(ctx)
	re.NoError(err)
	re.Equal(int64(10), count)
}

func TestClosedTable(t *testing.T) {
	re := require.New(t)
	_, client, closeSrv := etcdutil.PrepareEtcdServerAndClient(t)
	defer closeSrv()
	ctx := context.Background()
	tbl := newTestTable(t, client, defaultTestTableOptions())

	re.NoError(tbl.Close())
	re.NoError(tbl.Close())

	_, err := tbl.Get(ctx, rowKey(1), nil)
	re.ErrorContains(err, "table handle is closed")
	err = tbl.Put(ctx, NewMutation(rowKey(1)).Add("info", "status", []byte("paid")))
	re.ErrorContains(err, "table handle is closed")
	_, err = tbl.Scan(ctx, &ScanRequest{})
	re.ErrorContains(err, "table handle is closed")
}

func TestFlowLimiter(t *testing.T) {
	re := require.New(t)
	_, client, closeSrv := etcdutil.PrepareEtcdServerAndClient(t)
	defer closeSrv()
	ctx := context.Background()

	opts := defaultTestTableOptions()
	opts.flowLimiter = limiter.NewFlowLimiter(config.LimiterConfig{Limit: 1, Burst: 2, Enable: true})
	tbl := newTestTable(t, client, opts)

	re.NoError(tbl.Put(ctx, NewMutation(rowKey(1)).Add("info", "status", []byte("paid"))))
	err := tbl.PutBatch(ctx, []*Mutation{
		NewMutation(rowKey(2)).Add("info", "status", []byte("paid")),
		NewMutation(rowKey(3)).Add("info", "status", []byte("paid")),
		NewMutation(rowKey(4)).Add("info", "status", []byte("paid")),
	})
	re.True(coderr.Is(err, coderr.TooManyRequests))

	rows, err := tbl.ScanRows(ctx, &ScanRequest{})
	re.NoError(err)
	re.Equal([]string{"r01"}, rowKeys(rows))
}

// countingKV counts the requests sent to the cluster.
type countingKV struct {
	clientv3.KV
	gets    atomic.Int64
	deletes atomic.Int64
	txns    atomic.Int64
}

func (c *countingKV) Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error) {
	c.gets.Add(1)
	return c.KV.Get(ctx, key, opts...)
}

func (c *countingKV) Delete(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.DeleteResponse, error) {
	c.deletes.Add(1)
	return c.KV.Delete(ctx, key, opts...)
}

func (c *countingKV) Txn(ctx context.Context) clientv3.Txn {
	c.txns.Add(1)
	return c.KV.Txn(ctx)
}

func (c *countingKV) total() int64 {
	return c.gets.Load() + c.deletes.Load() + c.txns.Load()
}

// failingKV fails the txns touching a row containing failOn.
type failingKV struct {
	clientv3.KV
	failOn []byte
}

func (f *failingKV) Txn(ctx context.Context) clientv3.Txn {
	return &failingTxn{Txn: f.KV.Txn(ctx), failOn: f.failOn, fail: false}
}

type failingTxn struct {
	clientv3.Txn
	failOn []byte
	fail   bool
}

func (f *failingTxn) If(cs ...clientv3.Cmp) clientv3.Txn {
	f.Txn = f.Txn.If(cs...)
	return f
}

func (f *failingTxn) Then(ops ...clientv3.Op) clientv3.Txn {
	for _, op := range ops {
		if bytes.Contains(op.KeyBytes(), f.failOn) {
			f.fail = true
		}
	}
	f.Txn = f.Txn.Then(ops...)
	return f
}

func (f *failingTxn) Else(ops ...clientv3.Op) clientv3.Txn {
	f.Txn = f.Txn.Else(ops...)
	return f
}

func (f *failingTxn) Commit() (*clientv3.TxnResponse, error) {
	if f.fail {
		return nil, errors.New("injected txn failure")
	}
	return f.Txn.Commit()
}
