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
	"sync"
	"testing"
	"time"

	"github.com/CeresDB/ceresdao/server/etcdutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	defaultRequestTimeout = time.Second * 10
	defaultAllocStep      = 100
	testKey               = "/ceresdao/v1/id/table"
)

func TestAlloc(t *testing.T) {
	re := require.New(t)
	_, client, closeSrv := etcdutil.PrepareEtcdServerAndClient(t)
	defer closeSrv()

	alloc := NewAllocatorImpl(zap.NewNop(), client, testKey, defaultAllocStep)
	ctx, cancel := context.WithTimeout(context.Background(), defaultRequestTimeout)
	defer cancel()
	for i := 0; i < 2010; i++ {
		value, err := alloc.Alloc(ctx)
		re.NoError(err)
		re.Equal(uint64(i+1), value)
	}

	// A new allocator on the same key continues after the reserved range.
	other := NewAllocatorImpl(zap.NewNop(), client, testKey, defaultAllocStep)
	value, err := other.Alloc(ctx)
	re.NoError(err)
	re.Greater(value, uint64(2010))
}

func TestConcurrentAlloc(t *testing.T) {
	re := require.New(t)
	_, client, closeSrv := etcdutil.PrepareEtcdServerAndClient(t)
	defer closeSrv()

	ctx, cancel := context.WithTimeout(context.Background(), defaultRequestTimeout)
	defer cancel()

	const (
		allocators   = 4
		idsPerWorker = 150
	)
	var (
		lock sync.Mutex
		seen = make(map[uint64]struct{})
		errs []error
		wg   sync.WaitGroup
	)
	for i := 0; i < allocators; i++ {
		alloc := NewAllocatorImpl(zap.NewNop(), client, testKey, defaultAllocStep)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < idsPerWorker; j++ {
				value, err := allocWithRetry(ctx, alloc)
				lock.Lock()
				if err != nil {
					errs = append(errs, err)
				} else {
					seen[value] = struct{}{}
				}
				lock.Unlock()
			}
		}()
	}
	wg.Wait()

	re.Empty(errs)
	re.Len(seen, allocators*idsPerWorker)
}

// allocWithRetry retries the allocation which may lose the race of advancing the end id to other allocators.
func allocWithRetry(ctx context.Context, alloc Allocator) (uint64, error) {
	var err error
	for i := 0; i < 20; i++ {
		var value uint64
		if value, err = alloc.Alloc(ctx); err == nil {
			return value, nil
		}
	}
	return 0, err
}
