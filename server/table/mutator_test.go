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
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/CeresDB/ceresdao/pkg/coderr"
	"github.com/CeresDB/ceresdao/server/config"
	"github.com/CeresDB/ceresdao/server/etcdutil"
	"github.com/CeresDB/ceresdao/server/limiter"
	"github.com/stretchr/testify/require"
	clientv3 "go.etcd.io/etcd/client/v3"
)

func TestBufferedMutator(t *testing.T) {
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
	mutator := tbl.NewBufferedMutator(1024)

	re.NoError(mutator.Mutate(ctx, NewMutation(rowKey(1)).Add("info", "status", []byte("open"))))
	re.NoError(mutator.Mutate(ctx,
		NewMutation(rowKey(1)).Add("info", "status", []byte("paid")).Add("info", "amount", []byte("10")),
		NewMutation(rowKey(2)).Add("info", "status", []byte("open")),
	))
	re.Greater(mutator.BufferedBytes(), 0)
	re.Equal(int64(0), counter.txns.Load())

	// Nothing is visible before the flush.
	row, err := tbl.Get(ctx, rowKey(1), nil)
	re.NoError(err)
	re.Nil(row)

	re.NoError(mutator.Flush(ctx))
	re.Equal(0, mutator.BufferedBytes())

	row, err = tbl.Get(ctx, rowKey(1), nil)
	re.NoError(err)
	re.Equal([]byte("paid"), row.Value("info", "status"))
	re.Equal([]byte("10"), row.Value("info", "amount"))

	err = mutator.Mutate(ctx, NewMutation(rowKey(3)).Add("unknown", "q", []byte("v")))
	re.True(coderr.Is(err, coderr.InvalidParams))

	re.NoError(mutator.Close(ctx))
	re.NoError(mutator.Close(ctx))
	re.ErrorContains(mutator.Mutate(ctx, NewMutation(rowKey(3)).Add("info", "status", []byte("paid"))), "closed")
	re.ErrorContains(mutator.Flush(ctx), "closed")
}

func TestBufferedMutatorAutoFlush(t *testing.T) {
	re := require.New(t)
	_, client, closeSrv := etcdutil.PrepareEtcdServerAndClient(t)
	defer closeSrv()
	ctx := context.Background()
	tbl := newTestTable(t, client, defaultTestTableOptions())

	mutator := tbl.NewBufferedMutator(64)
	for i := 1; i <= 20; i++ {
		re.NoError(mutator.Mutate(ctx, NewMutation(rowKey(i)).Add("data", "payload", []byte(fmt.Sprintf("payload-%d", i)))))
	}
	re.Less(mutator.BufferedBytes(), 64)

	// The automatic flushes have written most of the rows already.
	count, err := tbl.Count(ctx)
	re.NoError(err)
	re.Greater(count, int64(0))

	re.NoError(mutator.Close(ctx))
	reader := newTestTable(t, client, defaultTestTableOptions())
	count, err = reader.Count(ctx)
	re.NoError(err)
	re.Equal(int64(20), count)
}

func TestBufferedMutatorPartialWrite(t *testing.T) {
	re := require.New(t)
	_, client, closeSrv := etcdutil.PrepareEtcdServerAndClient(t)
	defer closeSrv()
	ctx := context.Background()

	opts := defaultTestTableOptions()
	opts.maxOps = 1
	opts.wrapKV = func(kv clientv3.KV) clientv3.KV {
		return &failingKV{KV: kv, failOn: []byte("r02")}
	}
	tbl := newTestTable(t, client, opts)

	// The buffer is small enough to flush on the first mutation.
	mutator := tbl.NewBufferedMutator(1)
	re.NoError(mutator.Mutate(ctx, NewMutation(rowKey(2)).Add("info", "status", []byte("paid"))))
	re.NoError(mutator.Mutate(ctx, NewMutation(rowKey(1)).Add("info", "status", []byte("paid"))))

	err := mutator.Flush(ctx)
	var partialErr *PartialWriteError
	re.True(errors.As(err, &partialErr))
	re.Len(partialErr.FailedRows, 1)
	re.Equal(rowKey(2), partialErr.FailedRows[0].Row)

	// The failures are reported once.
	re.NoError(mutator.Flush(ctx))

	row, err := tbl.Get(ctx, rowKey(1), nil)
	re.NoError(err)
	re.NotNil(row)
	re.NoError(mutator.Close(ctx))
}

func TestBufferedMutatorFlowLimited(t *testing.T) {
	re := require.New(t)
	_, client, closeSrv := etcdutil.PrepareEtcdServerAndClient(t)
	defer closeSrv()
	ctx := context.Background()

	flowLimiter := limiter.NewFlowLimiter(config.LimiterConfig{Limit: 1, Burst: 1, Enable: true})
	opts := defaultTestTableOptions()
	opts.flowLimiter = flowLimiter
	tbl := newTestTable(t, client, opts)

	mutator := tbl.NewBufferedMutator(1024)
	re.NoError(mutator.Mutate(ctx,
		NewMutation(rowKey(1)).Add("info", "status", []byte("paid")),
		NewMutation(rowKey(2)).Add("info", "status", []byte("open")),
	))
	buffered := mutator.BufferedBytes()

	// The rejected flush keeps every row buffered and never reports success.
	for i := 0; i < 2; i++ {
		err := mutator.Flush(ctx)
		re.True(coderr.Is(err, coderr.TooManyRequests))
		re.Equal(buffered, mutator.BufferedBytes())
	}
	rows, err := tbl.ScanRows(ctx, &ScanRequest{})
	re.NoError(err)
	re.Empty(rows)

	re.NoError(flowLimiter.UpdateLimiter(config.LimiterConfig{Limit: 1, Burst: 1, Enable: false}))
	re.NoError(mutator.Flush(ctx))
	re.Equal(0, mutator.BufferedBytes())
	rows, err = tbl.ScanRows(ctx, &ScanRequest{})
	re.NoError(err)
	re.Equal([]string{"r01", "r02"}, rowKeys(rows))
	re.NoError(mutator.Close(ctx))
}

func TestBufferedMutatorAutoFlushRejected(t *testing.T) {
	re := require.New(t)
	_, client, closeSrv := etcdutil.PrepareEtcdServerAndClient(t)
	defer closeSrv()
	ctx := context.Background()

	flowLimiter := limiter.NewFlowLimiter(config.LimiterConfig{Limit: 1, Burst: 1, Enable: true})
	opts := defaultTestTableOptions()
	opts.flowLimiter = flowLimiter
	tbl := newTestTable(t, client, opts)

	mutator := tbl.NewBufferedMutator(32)
	re.NoError(mutator.Mutate(ctx, NewMutation(rowKey(1)).Add("info", "s", []byte("a"))))
	// The second row fills the buffer, the automatic flush of both rows is rejected.
	err := mutator.Mutate(ctx, NewMutation(rowKey(2)).Add("info", "status", []byte("open-order-pending")))
	re.True(coderr.Is(err, coderr.TooManyRequests))
	re.Greater(mutator.BufferedBytes(), 0)

	re.NoError(flowLimiter.UpdateLimiter(config.LimiterConfig{Limit: 1, Burst: 1, Enable: false}))
	re.NoError(mutator.Close(ctx))

	reader := newTestTable(t, client, defaultTestTableOptions())
	rows, err := reader.ScanRows(ctx, &ScanRequest{})
	re.NoError(err)
	re.Equal([]string{"r01", "r02"}, rowKeys(rows))
}

func TestBufferedMutatorClosedTable(t *testing.T) {
	re := require.New(t)
	_, client, closeSrv := etcdutil.PrepareEtcdServerAndClient(t)
	defer closeSrv()
	ctx := context.Background()
	tbl := newTestTable(t, client, defaultTestTableOptions())

	mutator := tbl.NewBufferedMutator(1024)
	re.NoError(mutator.Mutate(ctx, NewMutation(rowKey(1)).Add("info", "status", []byte("paid"))))
	re.NoError(tbl.Close())

	re.ErrorContains(mutator.Flush(ctx), "table handle is closed")
	re.Greater(mutator.BufferedBytes(), 0)
	re.ErrorContains(mutator.Close(ctx), "table handle is closed")
}
