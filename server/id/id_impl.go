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

package id

import (
	"context"
	"strconv"
	"sync"

	"github.com/CeresDB/ceresdao/server/etcdutil"
	"github.com/pkg/errors"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

// minID is the first id handed out by a fresh key, 0 is left as the invalid id.
const minID uint64 = 1

// AllocatorImpl reserves ranges of allocStep ids by advancing the end marker stored under key, and hands them out
// from memory.
type AllocatorImpl struct {
	logger *zap.Logger
	// lock is used to protect following fields.
	lock sync.Mutex
	base uint64
	end  uint64

	kv            clientv3.KV
	key           string
	allocStep     uint64
	isInitialized bool
}

func NewAllocatorImpl(logger *zap.Logger, kv clientv3.KV, key string, allocStep uint64) Allocator {
	return &AllocatorImpl{
		logger:        logger,
		lock:          sync.Mutex{},
		base:          0,
		end:           0,
		kv:            kv,
		key:           key,
		allocStep:     allocStep,
		isInitialized: false,
	}
}

func (a *AllocatorImpl) isExhausted() bool {
	return a.base == a.end
}

func (a *AllocatorImpl) Alloc(ctx context.Context) (uint64, error) {
	a.lock.Lock()
	defer a.lock.Unlock()

	if !a.isInitialized {
		if err := a.slowRebaseLocked(ctx); err != nil {
			return 0, errors.WithMessage(err, "alloc id")
		}
		a.isInitialized = true
	}

	if a.isExhausted() {
		if err := a.fastRebaseLocked(ctx); err != nil {
			a.logger.Warn("fast rebase failed", zap.Error(err))

			if err = a.slowRebaseLocked(ctx); err != nil {
				return 0, errors.WithMessage(err, "alloc id")
			}
		}
	}

	ret := a.base
	a.base++
	return ret, nil
}

func (a *AllocatorImpl) slowRebaseLocked(ctx context.Context) error {
	resp, err := a.kv.Get(ctx, a.key)
	if err != nil {
		return etcdutil.ErrEtcdKVGet.WithCausef(err, "get end id, key:%s", a.key)
	}

	if n := len(resp.Kvs); n > 1 {
		return etcdutil.ErrEtcdKVGetResponse.WithMessagef("key:%s, kvs:%v", a.key, resp.Kvs)
	}

	// Key is not exist, create key in kv storage.
	if len(resp.Kvs) == 0 {
		return a.firstDoRebaseLocked(ctx)
	}

	currEnd, err := decodeID(string(resp.Kvs[0].Value))
	if err != nil {
		return err
	}
	return a.doRebaseLocked(ctx, currEnd)
}

func (a *AllocatorImpl) fastRebaseLocked(ctx context.Context) error {
	return a.doRebaseLocked(ctx, a.end)
}

func (a *AllocatorImpl) firstDoRebaseLocked(ctx context.Context) error {
	newEnd := minID + a.allocStep

	ok, err := etcdutil.PutIfAbsent(ctx, a.kv, a.key, []byte(encodeID(newEnd)))
	if err != nil {
		return errors.WithMessagef(err, "put end id failed, key:%s", a.key)
	} else if !ok {
		return ErrTxnPutEndID.WithMessagef("key already exists, key:%s", a.key)
	}

	a.base = minID
	a.end = newEnd

	a.logger.Info("allocator allocates a new base id", zap.String("key", a.key), zap.Uint64("id", a.base))
	return nil
}

func (a *AllocatorImpl) doRebaseLocked(ctx context.Context, currEnd uint64) error {
	if currEnd < a.base {
		return ErrAllocID.WithMessagef("id in storage can't be less than memory, base:%d, end:%d", a.base, currEnd)
	}

	newEnd := currEnd + a.allocStep

	endEquals := clientv3.Compare(clientv3.Value(a.key), "=", encodeID(currEnd))
	opPutEnd := clientv3.OpPut(a.key, encodeID(newEnd))

	resp, err := a.kv.Txn(ctx).
		If(endEquals).
		Then(opPutEnd).
		Commit()
	if err != nil {
		return ErrTxnPutEndID.WithCausef(err, "key:%s, old value:%d, new value:%d", a.key, currEnd, newEnd)
	} else if !resp.Succeeded {
		return ErrTxnPutEndID.WithMessagef("end id changed concurrently, key:%s, value:%d", a.key, currEnd)
	}

	a.base = currEnd
	a.end = newEnd

	a.logger.Info("allocator allocates a new base id", zap.String("key", a.key), zap.Uint64("id", a.base))

	return nil
}

func encodeID(value uint64) string {
	return strconv.FormatUint(value, 10)
}

func decodeID(value string) (uint64, error) {
	res, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, ErrDecodeID.WithCausef(err, "value:%s", value)
	}
	return res, nil
}
