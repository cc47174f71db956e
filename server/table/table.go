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
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CeresDB/ceresdao/server/codec"
	"github.com/CeresDB/ceresdao/server/limiter"
	"github.com/CeresDB/ceresdao/server/storage"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	RootPath string
	// RequestTimeout bounds every request to the cluster, 0 means no bound.
	RequestTimeout   time.Duration
	ScanBatchSize    int
	MaxOpsPerTxn     int
	FlushConcurrency int
}

// Table is a lightweight handle of one table, it is created per call and should be closed by the caller.
type Table struct {
	logger      *zap.Logger
	kv          clientv3.KV
	lease       clientv3.Lease
	meta        storage.Table
	prefix      string
	compressors *codec.Compressors
	// flowLimiter is nil if the writes are not limited.
	flowLimiter *limiter.FlowLimiter
	opts        Options

	closed atomic.Bool
}

func New(logger *zap.Logger, kv clientv3.KV, lease clientv3.Lease, meta storage.Table, compressors *codec.Compressors, flowLimiter *limiter.FlowLimiter, opts Options) *Table {
	return &Table{
		logger:      logger.With(zap.String("table", meta.Name.String()), zap.Uint64("tableID", uint64(meta.ID))),
		kv:          kv,
		lease:       lease,
		meta:        meta,
		prefix:      storage.MakeTableDataPrefix(opts.RootPath, meta.ID),
		compressors: compressors,
		flowLimiter: flowLimiter,
		opts:        opts,
	}
}

func (t *Table) Name() storage.TableName {
	return t.meta.Name
}

func (t *Table) ID() storage.TableID {
	return t.meta.ID
}

func (t *Table) Descriptor() storage.Table {
	return t.meta
}

// Close releases the handle, it is safe to close a handle more than once.
func (t *Table) Close() error {
	t.closed.Store(true)
	return nil
}

func (t *Table) checkOpen() error {
	if t.closed.Load() {
		return ErrTableClosed.WithMessagef("table:%s", t.meta.Name)
	}
	return nil
}

func (t *Table) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.opts.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, t.opts.RequestTimeout)
}

func (t *Table) allowWrite(n int) error {
	if t.flowLimiter == nil || t.flowLimiter.AllowN(n) {
		return nil
	}
	return ErrFlowLimited.WithMessagef("table:%s, mutations:%d", t.meta.Name, n)
}

func validateRowKey(row []byte) error {
	if len(row) == 0 {
		return ErrInvalidArgument.WithMessagef("empty row key")
	}
	return nil
}

func (t *Table) family(name []byte) (storage.ColumnFamily, error) {
	f, ok := t.meta.Family(string(name))
	if !ok {
		return storage.ColumnFamily{}, ErrUnknownFamily.WithMessagef("table:%s, family:%s", t.meta.Name, name)
	}
	return f, nil
}

func (t *Table) validateColumns(columns []Column) error {
	for _, col := range columns {
		if _, err := t.family(col.Family); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) decodeCell(key, value []byte, keysOnly bool) ([]byte, *Cell, error) {
	row, family, qualifier, err := codec.DecodeCellKey(t.prefix, key)
	if err != nil {
		return nil, nil, err
	}
	cell := &Cell{Family: family, Qualifier: qualifier, Value: nil}
	if keysOnly {
		return row, cell, nil
	}

	f, err := t.family(family)
	if err != nil {
		return nil, nil, ErrDecodeCell.WithCause(err)
	}
	compressor, err := t.compressors.Get(f.Compression)
	if err != nil {
		return nil, nil, ErrDecodeCell.WithCause(err)
	}
	cell.Value, err = compressor.Decompress(value)
	if err != nil {
		return nil, nil, ErrDecodeCell.WithCausef(err, "key:%q", key)
	}
	return row, cell, nil
}

// writeBatch is committed in one txn.
type writeBatch struct {
	rows [][]byte
	ops  []clientv3.Op
}

func newWriteBatch() *writeBatch {
	return &writeBatch{
		rows: make([][]byte, 0),
		ops:  make([]clientv3.Op, 0),
	}
}

func (b *writeBatch) add(row []byte, op clientv3.Op) {
	if n := len(b.rows); n == 0 || !bytes.Equal(b.rows[n-1], row) {
		b.rows = append(b.rows, row)
	}
	b.ops = append(b.ops, op)
}

// mergeMutations merges the mutations of the same row, a later cell replaces the earlier one with the same family
// and qualifier. The rows keep the order of their first mutation.
func mergeMutations(mutations []*Mutation) []*Mutation {
	merged := make([]*Mutation, 0, len(mutations))
	byRow := make(map[string]*Mutation, len(mutations))
	for _, m := range mutations {
		target, ok := byRow[string(m.Row)]
		if !ok {
			target = &Mutation{Row: m.Row, Cells: make([]*Cell, 0, len(m.Cells))}
			byRow[string(m.Row)] = target
			merged = append(merged, target)
		}
		target.mergeCells(m.Cells)
	}
	return merged
}

func (t *Table) validateMutations(mutations []*Mutation) error {
	for _, m := range mutations {
		if m == nil {
			return ErrInvalidArgument.WithMessagef("nil mutation")
		}
		if err := validateRowKey(m.Row); err != nil {
			return err
		}
		if len(m.Cells) == 0 {
			return ErrInvalidArgument.WithMessagef("mutation without cells, row:%q", m.Row)
		}
		for _, c := range m.Cells {
			if _, err := t.family(c.Family); err != nil {
				return err
			}
		}
	}
	return nil
}

// buildWriteBatches converts the mutations into txns of at most MaxOpsPerTxn ops. The cells of one row stay in one
// txn unless the row alone exceeds the limit.
func (t *Table) buildWriteBatches(ctx context.Context, mutations []*Mutation) ([]*writeBatch, error) {
	leases := make(map[uint32]clientv3.LeaseID)
	maxOps := t.opts.MaxOpsPerTxn

	batches := make([]*writeBatch, 0, 1)
	current := newWriteBatch()
	for _, m := range mergeMutations(mutations) {
		if len(current.ops) > 0 && len(current.ops)+len(m.Cells) > maxOps {
			batches = append(batches, current)
			current = newWriteBatch()
		}

		for _, c := range m.Cells {
			f, err := t.family(c.Family)
			if err != nil {
				return nil, err
			}
			compressor, err := t.compressors.Get(f.Compression)
			if err != nil {
				return nil, err
			}
			value, err := compressor.Compress(c.Value)
			if err != nil {
				return nil, err
			}

			opts := make([]clientv3.OpOption, 0, 1)
			if f.TTLSeconds > 0 {
				leaseID, err := t.grantLease(ctx, leases, f.TTLSeconds)
				if err != nil {
					return nil, err
				}
				opts = append(opts, clientv3.WithLease(leaseID))
			}

			if len(current.ops) >= maxOps {
				batches = append(batches, current)
				current = newWriteBatch()
			}
			key := codec.CellKey(t.prefix, m.Row, c.Family, c.Qualifier)
			current.add(m.Row, clientv3.OpPut(key, string(value), opts...))
		}
	}
	if len(current.ops) > 0 {
		batches = append(batches, current)
	}
	return batches, nil
}

// grantLease grants one lease per distinct ttl of a write.
func (t *Table) grantLease(ctx context.Context, leases map[uint32]clientv3.LeaseID, ttl uint32) (clientv3.LeaseID, error) {
	if id, ok := leases[ttl]; ok {
		return id, nil
	}

	ctx, cancel := t.withTimeout(ctx)
	defer cancel()
	resp, err := t.lease.Grant(ctx, int64(ttl))
	if err != nil {
		return clientv3.NoLease, ErrStore.WithCausef(err, "grant lease, table:%s, ttl:%d", t.meta.Name, ttl)
	}
	leases[ttl] = resp.ID
	return resp.ID, nil
}

func (t *Table) commit(ctx context.Context, ops []clientv3.Op) error {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	if _, err := t.kv.Txn(ctx).Then(ops...).Commit(); err != nil {
		return ErrStore.WithCausef(err, "commit txn, table:%s, ops:%d", t.meta.Name, len(ops))
	}
	return nil
}

// commitBatches commits every batch even if some of them fail, and returns the rows of the failed batches sorted by
// row key.
func (t *Table) commitBatches(ctx context.Context, batches []*writeBatch, concurrency int) []FailedRow {
	var (
		lock   sync.Mutex
		failed = make(map[string]FailedRow)
		g      errgroup.Group
	)
	if concurrency <= 0 {
		concurrency = 1
	}
	g.SetLimit(concurrency)

	for _, b := range batches {
		b := b
		g.Go(func() error {
			err := t.commit(ctx, b.ops)
			if err == nil {
				return nil
			}

			t.logger.Warn("commit write batch failed", zap.Int("rows", len(b.rows)), zap.Error(err))
			lock.Lock()
			defer lock.Unlock()
			for _, row := range b.rows {
				if _, ok := failed[string(row)]; !ok {
					failed[string(row)] = FailedRow{Row: row, Err: err}
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(failed) == 0 {
		return nil
	}
	rows := make([]FailedRow, 0, len(failed))
	for _, f := range failed {
		rows = append(rows, f)
	}
	sort.Slice(rows, func(i, j int) bool {
		return bytes.Compare(rows[i].Row, rows[j].Row) < 0
	})
	return rows
}
