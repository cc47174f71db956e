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
	"sync"

	"github.com/google/btree"
	"go.uber.org/zap"
)

const (
	DefaultWriteBufferBytes = 5 * 1024 * 1024
	mutationBTreeDegree     = 32
)

// BufferedMutator buffers the mutations in memory, merging the ones of the same row, and writes them when the
// buffer is full or on Flush.
type BufferedMutator struct {
	table       *Table
	bufferBytes int

	lock     sync.Mutex
	buffered *btree.BTreeG[*Mutation]
	size     int
	// failed keeps the rows failed in the automatic flushes until the next Flush.
	failed []FailedRow
	closed bool
}

func lessMutation(a, b *Mutation) bool {
	return bytes.Compare(a.Row, b.Row) < 0
}

// NewBufferedMutator creates a mutator writing into the table, the table handle is owned by the mutator after that.
func (t *Table) NewBufferedMutator(bufferBytes int) *BufferedMutator {
	if bufferBytes <= 0 {
		bufferBytes = DefaultWriteBufferBytes
	}
	return &BufferedMutator{
		table:       t,
		bufferBytes: bufferBytes,
		lock:        sync.Mutex{},
		buffered:    btree.NewG(mutationBTreeDegree, lessMutation),
		size:        0,
		failed:      nil,
		closed:      false,
	}
}

// Mutate buffers the mutations, a later cell replaces the buffered one with the same family and qualifier. If the
// automatic flush is rejected, the error is returned and the mutations stay buffered for the next flush.
func (b *BufferedMutator) Mutate(ctx context.Context, mutations ...*Mutation) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.closed {
		return ErrMutatorClosed.WithMessagef("table:%s", b.table.meta.Name)
	}
	if err := b.table.validateMutations(mutations); err != nil {
		return err
	}

	for _, m := range mutations {
		b.merge(m.clone())
	}
	if b.size < b.bufferBytes {
		return nil
	}

	err := b.flushLocked(ctx)
	var partialErr *PartialWriteError
	if errors.As(err, &partialErr) {
		b.failed = append(b.failed, partialErr.FailedRows...)
		return nil
	}
	return err
}

func (b *BufferedMutator) merge(m *Mutation) {
	existing, ok := b.buffered.Get(m)
	if !ok {
		b.buffered.ReplaceOrInsert(m)
		b.size += m.size()
		return
	}

	b.size -= existing.size()
	existing.mergeCells(m.Cells)
	b.size += existing.size()
}

// BufferedBytes returns the size of the buffered mutations.
func (b *BufferedMutator) BufferedBytes() int {
	b.lock.Lock()
	defer b.lock.Unlock()

	return b.size
}

// Flush writes all the buffered mutations and waits for them. The returned *PartialWriteError lists every row failed
// since the last Flush, including the ones of the automatic flushes.
func (b *BufferedMutator) Flush(ctx context.Context) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.closed {
		return ErrMutatorClosed.WithMessagef("table:%s", b.table.meta.Name)
	}
	return b.flushAndCollect(ctx)
}

func (b *BufferedMutator) flushAndCollect(ctx context.Context) error {
	err := b.flushLocked(ctx)
	var partialErr *PartialWriteError
	if err != nil && !errors.As(err, &partialErr) {
		return err
	}

	failed := b.failed
	b.failed = nil
	if partialErr != nil {
		failed = append(failed, partialErr.FailedRows...)
	}
	if len(failed) > 0 {
		return &PartialWriteError{FailedRows: failed}
	}
	return nil
}

// flushLocked keeps the buffer if the write is rejected as a whole, otherwise every drained row is either durable or
// reported in the returned *PartialWriteError.
func (b *BufferedMutator) flushLocked(ctx context.Context) error {
	n := b.buffered.Len()
	if n == 0 {
		return nil
	}
	if err := b.table.checkOpen(); err != nil {
		return err
	}
	if err := b.table.allowWrite(n); err != nil {
		return err
	}

	mutations := make([]*Mutation, 0, n)
	b.buffered.Ascend(func(m *Mutation) bool {
		mutations = append(mutations, m)
		return true
	})
	b.buffered.Clear(false)
	size := b.size
	b.size = 0

	b.table.logger.Debug("flush buffered mutations", zap.Int("rows", len(mutations)), zap.Int("bytes", size))
	err := b.table.putBatch(ctx, mutations, b.table.opts.FlushConcurrency)
	var partialErr *PartialWriteError
	if err == nil || errors.As(err, &partialErr) {
		return err
	}

	failed := make([]FailedRow, 0, len(mutations))
	for _, m := range mutations {
		failed = append(failed, FailedRow{Row: m.Row, Err: err})
	}
	return &PartialWriteError{FailedRows: failed}
}

// Close flushes the buffered mutations and releases the table handle. Closing a closed mutator does nothing.
func (b *BufferedMutator) Close(ctx context.Context) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.closed {
		return nil
	}
	err := b.flushAndCollect(ctx)
	b.closed = true
	if closeErr := b.table.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}
