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
	"io"
	"sync/atomic"

	"github.com/CeresDB/ceresdao/server/codec"
	"github.com/CeresDB/ceresdao/server/filter"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
	"golang.org/x/sync/errgroup"
)

// Scanner iterates the rows of a range in batches. It is not safe for concurrent use.
type Scanner struct {
	table *Table
	req   ScanRequest
	// maxRows is 0 if the scan is not capped.
	maxRows  int
	returned int
	keysOnly bool

	// [from, to) is the range not fetched yet.
	from string
	to   string

	kvs       []*mvccpb.KeyValue
	pos       int
	exhausted bool
	// pending is the row whose cells may continue in the next batch.
	pending *Row
	closed  bool
}

// Scan opens a scanner over the range of the request, nothing is read until the first call of Next.
func (t *Table) Scan(_ context.Context, req *ScanRequest) (*Scanner, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	return t.newScanner(req, false)
}

func (t *Table) newScanner(req *ScanRequest, keysOnly bool) (*Scanner, error) {
	if req == nil {
		req = &ScanRequest{}
	}
	if req.Limit < 0 {
		return nil, ErrInvalidArgument.WithMessagef("negative scan limit:%d", req.Limit)
	}
	if err := t.validateColumns(req.Columns); err != nil {
		return nil, err
	}
	if req.StartRow != nil && req.StopRow != nil {
		cmp := bytes.Compare(req.StartRow, req.StopRow)
		if !req.Reversed && cmp > 0 {
			return nil, ErrInvalidArgument.WithMessagef("start row:%q is greater than stop row:%q", req.StartRow, req.StopRow)
		}
		if req.Reversed && cmp < 0 {
			return nil, ErrInvalidArgument.WithMessagef("start row:%q is less than stop row:%q in reversed scan", req.StartRow, req.StopRow)
		}
	}

	maxRows := req.Limit
	if size, ok := filter.PageSize(req.Filter); ok && (maxRows == 0 || size < maxRows) {
		maxRows = size
	}

	s := &Scanner{
		table:     t,
		req:       *req,
		maxRows:   maxRows,
		returned:  0,
		keysOnly:  keysOnly,
		kvs:       nil,
		pos:       0,
		exhausted: false,
		pending:   nil,
		closed:    false,
	}
	s.from, s.to = t.scanRange(req)
	// A page filter of size 0 lets no row pass.
	if size, ok := filter.PageSize(req.Filter); ok && size <= 0 {
		s.exhausted = true
	}
	return s, nil
}

func (t *Table) scanRange(req *ScanRequest) (string, string) {
	if !req.Reversed {
		from, to := t.prefix, clientv3.GetPrefixRangeEnd(t.prefix)
		if req.StartRow != nil {
			from = codec.RowPrefix(t.prefix, req.StartRow)
		}
		if req.StopRow != nil {
			to = codec.RowPrefix(t.prefix, req.StopRow)
		}
		return from, to
	}

	from, to := t.prefix, clientv3.GetPrefixRangeEnd(t.prefix)
	if req.StopRow != nil {
		from = clientv3.GetPrefixRangeEnd(codec.RowPrefix(t.prefix, req.StopRow))
	}
	if req.StartRow != nil {
		to = clientv3.GetPrefixRangeEnd(codec.RowPrefix(t.prefix, req.StartRow))
	}
	return from, to
}

// Next returns the next row, or io.EOF when the scan is done.
func (s *Scanner) Next(ctx context.Context) (*Row, error) {
	if s.closed {
		return nil, io.EOF
	}

	for {
		if s.maxRows > 0 && s.returned >= s.maxRows {
			return nil, io.EOF
		}

		row, err := s.nextRow(ctx)
		if err != nil {
			return nil, err
		}
		if s.req.Filter != nil && !s.req.Filter.Match(row) {
			continue
		}
		row = project(row, s.req.Columns)
		if row == nil {
			continue
		}
		s.returned++
		return row, nil
	}
}

// nextRow assembles the next complete row from the fetched cells.
func (s *Scanner) nextRow(ctx context.Context) (*Row, error) {
	for {
		if s.pos >= len(s.kvs) {
			if s.exhausted {
				row := s.pending
				s.pending = nil
				if row == nil {
					return nil, io.EOF
				}
				row.sortCells()
				return row, nil
			}
			if err := s.fetch(ctx); err != nil {
				return nil, err
			}
			continue
		}

		kv := s.kvs[s.pos]
		s.pos++
		key, cell, err := s.table.decodeCell(kv.Key, kv.Value, s.keysOnly)
		if err != nil {
			return nil, err
		}

		if s.pending == nil {
			s.pending = &Row{Key: key, Cells: []*Cell{cell}}
			continue
		}
		if bytes.Equal(s.pending.Key, key) {
			s.pending.Cells = append(s.pending.Cells, cell)
			continue
		}
		row := s.pending
		s.pending = &Row{Key: key, Cells: []*Cell{cell}}
		row.sortCells()
		return row, nil
	}
}

func (s *Scanner) fetch(ctx context.Context) error {
	if s.from >= s.to {
		s.kvs, s.pos, s.exhausted = nil, 0, true
		return nil
	}

	opts := []clientv3.OpOption{
		clientv3.WithRange(s.to),
		clientv3.WithLimit(int64(s.table.opts.ScanBatchSize)),
	}
	if s.req.Reversed {
		opts = append(opts, clientv3.WithSort(clientv3.SortByKey, clientv3.SortDescend))
	}
	if s.keysOnly {
		opts = append(opts, clientv3.WithKeysOnly())
	}

	ctx, cancel := s.table.withTimeout(ctx)
	defer cancel()
	resp, err := s.table.kv.Get(ctx, s.from, opts...)
	if err != nil {
		return ErrStore.WithCausef(err, "scan, table:%s, from:%q, to:%q", s.table.meta.Name, s.from, s.to)
	}

	s.kvs, s.pos = resp.Kvs, 0
	if len(resp.Kvs) == 0 || !resp.More {
		s.exhausted = true
		return nil
	}
	lastKey := string(resp.Kvs[len(resp.Kvs)-1].Key)
	if s.req.Reversed {
		s.to = lastKey
	} else {
		s.from = lastKey + "\x00"
	}
	return nil
}

// Close stops the scan, it is safe to close a scanner more than once.
func (s *Scanner) Close() {
	s.closed = true
	s.kvs = nil
	s.pending = nil
}

// RangeVersion changes whenever a cell in the range is written, deleted or expired. The count catches removals and
// the max mod revision catches writes, since every write gets a revision greater than all the existing ones.
type RangeVersion struct {
	Cells          int64
	MaxModRevision int64
}

// RangeVersion returns the version of the rows in [start, stop), a nil bound is unbounded.
func (t *Table) RangeVersion(ctx context.Context, start, stop []byte) (RangeVersion, error) {
	if err := t.checkOpen(); err != nil {
		return RangeVersion{}, err
	}
	if start != nil && stop != nil && bytes.Compare(start, stop) > 0 {
		return RangeVersion{}, ErrInvalidArgument.WithMessagef("start row:%q is greater than stop row:%q", start, stop)
	}
	from, to := t.scanRange(&ScanRequest{StartRow: start, StopRow: stop})
	if from >= to {
		return RangeVersion{}, nil
	}

	ctx, cancel := t.withTimeout(ctx)
	defer cancel()
	resp, err := t.kv.Get(ctx, from,
		clientv3.WithRange(to),
		clientv3.WithKeysOnly(),
		clientv3.WithSort(clientv3.SortByModRevision, clientv3.SortDescend),
		clientv3.WithLimit(1),
	)
	if err != nil {
		return RangeVersion{}, ErrStore.WithCausef(err, "range version, table:%s, from:%q, to:%q", t.meta.Name, from, to)
	}

	// Count is the number of keys in the whole range regardless of the limit.
	v := RangeVersion{Cells: resp.Count, MaxModRevision: 0}
	if len(resp.Kvs) > 0 {
		v.MaxModRevision = resp.Kvs[0].ModRevision
	}
	return v, nil
}

// ScanRows collects all the rows of the scan.
func (t *Table) ScanRows(ctx context.Context, req *ScanRequest) ([]*Row, error) {
	scanner, err := t.Scan(ctx, req)
	if err != nil {
		return nil, err
	}
	defer scanner.Close()

	rows := make([]*Row, 0)
	for {
		row, err := scanner.Next(ctx)
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
}

// Count returns the number of rows, the regions split by the split keys are counted concurrently.
func (t *Table) Count(ctx context.Context) (int64, error) {
	if err := t.checkOpen(); err != nil {
		return 0, err
	}

	bounds := make([][]byte, 0, len(t.meta.SplitKeys)+2)
	bounds = append(bounds, nil)
	for _, k := range t.meta.SplitKeys {
		bounds = append(bounds, k)
	}
	bounds = append(bounds, nil)

	var (
		total atomic.Int64
		g     *errgroup.Group
	)
	g, ctx = errgroup.WithContext(ctx)
	g.SetLimit(max(t.opts.FlushConcurrency, 1))
	for i := 0; i+1 < len(bounds); i++ {
		start, stop := bounds[i], bounds[i+1]
		g.Go(func() error {
			n, err := t.countRange(ctx, start, stop)
			if err != nil {
				return err
			}
			total.Add(n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return total.Load(), nil
}

func (t *Table) countRange(ctx context.Context, start, stop []byte) (int64, error) {
	scanner, err := t.newScanner(&ScanRequest{StartRow: start, StopRow: stop}, true)
	if err != nil {
		return 0, err
	}
	defer scanner.Close()

	var n int64
	for {
		_, err := scanner.nextRow(ctx)
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return 0, err
		}
		n++
	}
}
