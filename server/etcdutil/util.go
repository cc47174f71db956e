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

package etcdutil

import (
	"context"

	"github.com/CeresDB/ceresdao/pkg/log"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/clientv3util"
	"go.uber.org/zap"
)

func Get(ctx context.Context, kv clientv3.KV, key string) ([]byte, error) {
	resp, err := kv.Get(ctx, key)
	if err != nil {
		return nil, ErrEtcdKVGet.WithCause(err)
	}
	if n := len(resp.Kvs); n == 0 {
		return nil, ErrEtcdKVGetNotFound.WithMessagef("key:%s", key)
	} else if n > 1 {
		return nil, ErrEtcdKVGetResponse.WithMessagef("key:%s, kvs:%v", key, resp.Kvs)
	}

	return resp.Kvs[0].Value, nil
}

// CountPrefix returns the number of keys under the prefix.
func CountPrefix(ctx context.Context, kv clientv3.KV, prefix string) (int64, error) {
	resp, err := kv.Get(ctx, prefix, clientv3.WithPrefix(), clientv3.WithCountOnly())
	if err != nil {
		return 0, ErrEtcdKVGet.WithCause(err)
	}
	return resp.Count, nil
}

// PutIfAbsent writes the key only if it does not exist, and reports whether the write happened.
func PutIfAbsent(ctx context.Context, kv clientv3.KV, key string, val []byte, opts ...clientv3.OpOption) (bool, error) {
	resp, err := kv.Txn(ctx).
		If(clientv3util.KeyMissing(key)).
		Then(clientv3.OpPut(key, string(val), opts...)).
		Commit()
	if err != nil {
		return false, ErrEtcdTxn.WithCausef(err, "put if absent, key:%s", key)
	}
	return resp.Succeeded, nil
}

// PutIfPresent overwrites the key only if it exists, and reports whether the write happened.
func PutIfPresent(ctx context.Context, kv clientv3.KV, key string, val []byte) (bool, error) {
	resp, err := kv.Txn(ctx).
		If(clientv3util.KeyExists(key)).
		Then(clientv3.OpPut(key, string(val))).
		Commit()
	if err != nil {
		return false, ErrEtcdTxn.WithCausef(err, "put if present, key:%s", key)
	}
	return resp.Succeeded, nil
}

// DeletePrefix removes every key under the prefix and returns the number of deleted keys.
func DeletePrefix(ctx context.Context, kv clientv3.KV, prefix string) (int64, error) {
	resp, err := kv.Delete(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return 0, ErrEtcdKVDelete.WithCausef(err, "prefix:%s", prefix)
	}
	return resp.Deleted, nil
}

// Scan visits the keys in [startKey, endKey) in ascending order, reading batchSize keys per request.
func Scan(ctx context.Context, kv clientv3.KV, startKey, endKey string, batchSize int, do func(key string, val []byte) error) error {
	withRange := clientv3.WithRange(endKey)
	withLimit := clientv3.WithLimit(int64(batchSize))

	// Take a special process for the first batch.
	resp, err := kv.Get(ctx, startKey, withRange, withLimit)
	if err != nil {
		return ErrEtcdKVGet.WithCause(err)
	}
	if len(resp.Kvs) == 0 {
		return nil
	}

	doIfNotEndKey := func(key, val []byte) error {
		keyStr := string(key)
		if keyStr == endKey {
			return nil
		}

		return do(keyStr, val)
	}

	for _, item := range resp.Kvs {
		err := doIfNotEndKey(item.Key, item.Value)
		if err != nil {
			return err
		}
	}
	if len(resp.Kvs) < batchSize {
		return nil
	}

	lastKeyInPrevBatch := string(resp.Kvs[len(resp.Kvs)-1].Key)
	// The following batches always contain one key in the previous batch, so we have to increment the batchSize to batchSize + 1;
	withLimit = clientv3.WithLimit(int64(batchSize + 1))
	for {
		if lastKeyInPrevBatch == endKey {
			log.Warn("stop scanning because the end key is reached", zap.String("endKey", endKey))
			return nil
		}
		startKey = lastKeyInPrevBatch

		// Get the keys range [startKey, endKey).
		resp, err := kv.Get(ctx, startKey, withRange, withLimit)
		if err != nil {
			return ErrEtcdKVGet.WithCause(err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if len(resp.Kvs) <= 1 {
			// The only one key is `startKey` which is actually processed already.
			return nil
		}

		// Skip the first key which is processed already.
		for _, item := range resp.Kvs[1:] {
			err := doIfNotEndKey(item.Key, item.Value)
			if err != nil {
				return err
			}
		}

		// Check whether the keys is exhausted.
		if len(resp.Kvs) <= batchSize {
			return nil
		}

		lastKeyInPrevBatch = string(resp.Kvs[len(resp.Kvs)-1].Key)
	}
}

// ScanPrefix visits all the keys under the prefix in ascending order.
func ScanPrefix(ctx context.Context, kv clientv3.KV, prefix string, batchSize int, do func(key string, val []byte) error) error {
	return Scan(ctx, kv, prefix, clientv3.GetPrefixRangeEnd(prefix), batchSize, do)
}
