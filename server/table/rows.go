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

	"github.com/CeresDB/ceresdao/server/codec"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

// Get returns the row projected onto the columns, or nil if the row doesn't exist or has no cell in the columns.
func (t *Table) Get(ctx context.Context, row []byte, columns []Column) (*Row, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	if err := validateRowKey(row); err != nil {
		return nil, err
	}
	if err := t.validateColumns(columns); err != nil {
		return nil, err
	}

	ctx, cancel := t.withTimeout(ctx)
	defer cancel()
	resp, err := t.kv.Get(ctx, codec.RowPrefix(t.prefix, row), clientv3.WithPrefix())
	if err != nil {
		return nil, ErrStore.WithCausef(err, "get row, table:%s, row:%q", t.meta.Name, row)
	}

	rows, err := t.decodeRows(resp.Kvs, false)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return project(rows[0], columns), nil
}

// GetMany returns the rows in the order of the keys, the missing rows are nil.
func (t *Table) GetMany(ctx context.Context, rows [][]byte, columns []Column) ([]*Row, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrInvalidArgument.WithMessagef("no row to get")
	}
	for _, row := range rows {
		if err := validateRowKey(row); err != nil {
			return nil, err
		}
	}
	if err := t.validateColumns(columns); err != nil {
		return nil, err
	}

	results := make([]*Row, 0, len(rows))
	maxOps := t.opts.MaxOpsPerTxn
	for start := 0; start < len(rows); start += maxOps {
		end := start + maxOps
		if end > len(rows) {
			end = len(rows)
		}

		ops := make([]clientv3.Op, 0, end-start)
		for _, row := range rows[start:end] {
			ops = append(ops, clientv3.OpGet(codec.RowPrefix(t.prefix, row), clientv3.WithPrefix()))
		}

		resp, err := t.readTxn(ctx, ops)
		if err != nil {
			return nil, err
		}
		for _, r := range resp.Responses {
			decoded, err := t.decodeRows(r.GetResponseRange().Kvs, false)
			if err != nil {
				return nil, err
			}
			if len(decoded) == 0 {
				results = append(results, nil)
				continue
			}
			results = append(results, project(decoded[0], columns))
		}
	}
	return results, nil
}

func (t *Table) readTxn(ctx context.Context, ops []clientv3.Op) (*clientv3.TxnResponse, error) {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	resp, err := t.kv.Txn(ctx).Then(ops...).Commit()
	if err != nil {
		return nil, ErrStore.WithCausef(err, "read txn, table:%s, ops:%d", t.meta.Name, len(ops))
	}
	return resp, nil
}

// Put writes the cells of the mutation in one txn, a row with more than MaxOpsPerTxn cells is split into several txns.
// A failed txn is returned as a *PartialWriteError.
func (t *Table) Put(ctx context.Context, m *Mutation) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	if err := t.validateMutations([]*Mutation{m}); err != nil {
		return err
	}
	if err := t.allowWrite(1); err != nil {
		return err
	}

	batches, err := t.buildWriteBatches(ctx, []*Mutation{m})
	if err != nil {
		return err
	}
	failed := t.commitBatches(ctx, batches, 1)
	if len(failed) > 0 {
		return &PartialWriteError{FailedRows: failed}
	}
	return nil
}

// PutBatch writes all the mutations, it keeps writing when some txns fail and returns a *PartialWriteError listing
// the rows of the failed txns.
func (t *Table) PutBatch(ctx context.Context, mutations []*Mutation) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	if len(mutations) == 0 {
		return nil
	}
	if err := t.validateMutations(mutations); err != nil {
		return err
	}
	if err := t.allowWrite(len(mutations)); err != nil {
		return err
	}
	return t.putBatch(ctx, mutations, t.opts.FlushConcurrency)
}

func (t *Table) putBatch(ctx context.Context, mutations []*Mutation, concurrency int) error {
	batches, err := t.buildWriteBatches(ctx, mutations)
	if err != nil {
		return err
	}
	failed := t.commitBatches(ctx, batches, concurrency)
	if len(failed) > 0 {
		return &PartialWriteError{FailedRows: failed}
	}
	return nil
}

// Delete removes all the cells of the row, deleting an absent row is not an error.
func (t *Table) Delete(ctx context.Context, row []byte) error {
	return t.DeleteMany(ctx, [][]byte{row})
}

// DeleteMany removes the rows, an empty list doesn't touch the cluster.
func (t *Table) DeleteMany(ctx context.Context, rows [][]byte) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(rows))
	ops := make([]clientv3.Op, 0, len(rows))
	for _, row := range rows {
		if err := validateRowKey(row); err != nil {
			return err
		}
		if _, ok := seen[string(row)]; ok {
			continue
		}
		seen[string(row)] = struct{}{}
		ops = append(ops, clientv3.OpDelete(codec.RowPrefix(t.prefix, row), clientv3.WithPrefix()))
	}

	maxOps := t.opts.MaxOpsPerTxn
	for start := 0; start < len(ops); start += maxOps {
		end := start + maxOps
		if end > len(ops) {
			end = len(ops)
		}
		if err := t.commit(ctx, ops[start:end]); err != nil {
			return err
		}
	}
	t.logger.Debug("delete rows", zap.Int("rows", len(ops)))
	return nil
}

// GetLast returns the first row of the scan over the range, reversed scans go from start down to stop. It returns
// nil if the range is empty.
func (t *Table) GetLast(ctx context.Context, start, stop []byte, reversed bool) (*Row, error) {
	rows, err := t.ScanRows(ctx, &ScanRequest{
		StartRow: start,
		StopRow:  stop,
		Columns:  nil,
		Filter:   nil,
		Reversed: reversed,
		Limit:    1,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// decodeRows groups the ordered cells into rows, the cells of the returned rows are sorted.
func (t *Table) decodeRows(kvs []*mvccpb.KeyValue, keysOnly bool) ([]*Row, error) {
	rows := make([]*Row, 0, 1)
	var current *Row
	for _, kv := range kvs {
		row, cell, err := t.decodeCell(kv.Key, kv.Value, keysOnly)
		if err != nil {
			return nil, err
		}
		if current == nil || !bytes.Equal(current.Key, row) {
			current = &Row{Key: row, Cells: make([]*Cell, 0, 1)}
			rows = append(rows, current)
		}
		current.Cells = append(current.Cells, cell)
	}
	for _, r := range rows {
		r.sortCells()
	}
	return rows, nil
}
