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

// Package page paginates the range scans without server-side state, a page is located by the row key it starts
// from.
package page

import (
	"bytes"
	"context"
	"encoding/binary"

	"github.com/CeresDB/ceresdao/server/filter"
	"github.com/CeresDB/ceresdao/server/storage"
	"github.com/CeresDB/ceresdao/server/table"
	lru "github.com/hashicorp/golang-lru"
	"github.com/spaolacci/murmur3"
	"go.uber.org/zap"
)

// Table is the part of a table handle needed to paginate its rows.
type Table interface {
	ID() storage.TableID
	ScanRows(ctx context.Context, req *table.ScanRequest) ([]*table.Row, error)
	RangeVersion(ctx context.Context, start, stop []byte) (table.RangeVersion, error)
}

type Query struct {
	StartRow []byte
	StopRow  []byte
	Columns  []table.Column
	Filter   filter.Filter
	PageSize int
}

// Cursor remembers where the next page starts, Index is the index of the last returned page.
type Cursor struct {
	Query          Query
	Index          int
	ThisPageRowKey []byte
	NextPageRowKey []byte
	Done           bool
}

type Page struct {
	// Index is 1-based.
	Index          int
	Rows           []*table.Row
	ThisPageRowKey []byte
	NextPageRowKey []byte
	Done           bool
}

// Paginator is safe for concurrent use.
type Paginator struct {
	logger *zap.Logger
	// boundaries caches the first row key of the pages, nil if disabled.
	boundaries *lru.Cache
}

// boundary is valid only while the version of the query range is unchanged.
type boundary struct {
	rowKey  []byte
	version table.RangeVersion
}

// NewPaginator creates a paginator, cacheSize 0 disables the page boundary cache.
func NewPaginator(logger *zap.Logger, cacheSize int) (*Paginator, error) {
	p := &Paginator{logger: logger, boundaries: nil}
	if cacheSize <= 0 {
		return p, nil
	}

	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, ErrCreateCache.WithCausef(err, "size:%d", cacheSize)
	}
	p.boundaries = cache
	return p, nil
}

func validateQuery(q Query) error {
	if q.PageSize < 1 {
		return ErrInvalidArgument.WithMessagef("page size must be positive, actual:%d", q.PageSize)
	}
	if q.StartRow != nil && q.StopRow != nil && bytes.Compare(q.StartRow, q.StopRow) > 0 {
		return ErrInvalidArgument.WithMessagef("start row:%q is greater than stop row:%q", q.StartRow, q.StopRow)
	}
	return nil
}

// NewCursor creates the cursor before the first page of the query.
func NewCursor(q Query) (*Cursor, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}
	return &Cursor{
		Query:          q,
		Index:          0,
		ThisPageRowKey: nil,
		NextPageRowKey: nil,
		Done:           false,
	}, nil
}

// Next returns the page after the cursor and moves the cursor to it. A done cursor returns an empty page.
func (p *Paginator) Next(ctx context.Context, t Table, c *Cursor) (*Page, error) {
	if err := validateQuery(c.Query); err != nil {
		return nil, err
	}
	if c.Done {
		return emptyPage(c.Index), nil
	}

	q := c.Query
	from := q.StartRow
	if c.Index > 0 {
		from = c.NextPageRowKey
	}

	size := q.PageSize
	rows, err := t.ScanRows(ctx, &table.ScanRequest{
		StartRow: from,
		StopRow:  q.StopRow,
		Columns:  q.Columns,
		Filter:   filter.NewList(filter.MustPassAll, q.Filter, filter.NewPageFilter(size+1)),
		Reversed: false,
		Limit:    0,
	})
	if err != nil {
		return nil, err
	}

	c.Index++
	if len(rows) == 0 {
		c.ThisPageRowKey, c.NextPageRowKey, c.Done = nil, nil, true
		return emptyPage(c.Index), nil
	}

	page := &Page{
		Index:          c.Index,
		Rows:           rows,
		ThisPageRowKey: rows[0].Key,
		NextPageRowKey: nil,
		Done:           true,
	}
	if len(rows) > size {
		page.Rows = rows[:size]
		page.NextPageRowKey = rows[size].Key
		page.Done = false
	}
	c.ThisPageRowKey, c.NextPageRowKey, c.Done = page.ThisPageRowKey, page.NextPageRowKey, page.Done
	return page, nil
}

// Page jumps to the k-th page of the query, k starts from 1. A page beyond the last one is empty.
func (p *Paginator) Page(ctx context.Context, t Table, q Query, k int) (*Page, error) {
	if k < 1 {
		return nil, ErrInvalidArgument.WithMessagef("page index must be positive, actual:%d", k)
	}
	c, err := NewCursor(q)
	if err != nil {
		return nil, err
	}
	if k == 1 {
		return p.Next(ctx, t, c)
	}

	cacheKey := boundaryCacheKey(t.ID(), q, k)
	firstKey, ok := p.cachedBoundary(ctx, t, q, cacheKey)
	if !ok {
		var version table.RangeVersion
		if p.boundaries != nil {
			// Taken before the scan, so a write racing with the scan invalidates the entry.
			version, err = t.RangeVersion(ctx, q.StartRow, q.StopRow)
			if err != nil {
				return nil, err
			}
		}

		offset := (k-1)*q.PageSize + 1
		rows, err := t.ScanRows(ctx, &table.ScanRequest{
			StartRow: q.StartRow,
			StopRow:  q.StopRow,
			Columns:  q.Columns,
			Filter:   filter.NewList(filter.MustPassAll, q.Filter, filter.NewPageFilter(offset)),
			Reversed: false,
			Limit:    0,
		})
		if err != nil {
			return nil, err
		}
		if len(rows) < offset {
			return emptyPage(k), nil
		}
		firstKey = rows[offset-1].Key
		if p.boundaries != nil {
			p.boundaries.Add(cacheKey, boundary{rowKey: firstKey, version: version})
		}
	}

	c.Index = k - 1
	c.NextPageRowKey = firstKey
	return p.Next(ctx, t, c)
}

// cachedBoundary returns the cached first row key of the page if no row of the query range has changed since the
// boundary was computed.
func (p *Paginator) cachedBoundary(ctx context.Context, t Table, q Query, cacheKey uint64) ([]byte, bool) {
	if p.boundaries == nil {
		return nil, false
	}
	v, ok := p.boundaries.Get(cacheKey)
	if !ok {
		return nil, false
	}
	cached := v.(boundary)

	version, err := t.RangeVersion(ctx, q.StartRow, q.StopRow)
	if err != nil || version != cached.version {
		p.logger.Debug("drop stale page boundary", zap.ByteString("rowKey", cached.rowKey), zap.Error(err))
		p.boundaries.Remove(cacheKey)
		return nil, false
	}
	return cached.rowKey, true
}

// Purge drops all the cached page boundaries.
func (p *Paginator) Purge() {
	if p.boundaries != nil {
		p.boundaries.Purge()
	}
}

func emptyPage(index int) *Page {
	return &Page{
		Index:          index,
		Rows:           []*table.Row{},
		ThisPageRowKey: nil,
		NextPageRowKey: nil,
		Done:           true,
	}
}

func boundaryCacheKey(tableID storage.TableID, q Query, k int) uint64 {
	h := murmur3.New64()
	var buf [8]byte
	writeUint := func(v uint64) {
		binary.BigEndian.PutUint64(buf[:], v)
		_, _ = h.Write(buf[:])
	}
	// Variable-length fields are length-prefixed, nil is distinguished from empty.
	writeBytes := func(b []byte) {
		if b == nil {
			writeUint(^uint64(0))
			return
		}
		writeUint(uint64(len(b)))
		_, _ = h.Write(b)
	}

	writeUint(uint64(tableID))
	writeBytes(q.StartRow)
	writeBytes(q.StopRow)
	writeBytes([]byte(filter.Fingerprint(q.Filter)))
	writeUint(uint64(len(q.Columns)))
	for _, col := range q.Columns {
		writeBytes(col.Family)
		writeBytes(col.Qualifier)
	}
	writeUint(uint64(q.PageSize))
	writeUint(uint64(k))
	return h.Sum64()
}
