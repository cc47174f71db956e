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

package admin

import (
	"bytes"
	"math/big"

	"github.com/CeresDB/ceresdao/pkg/assert"
)

const (
	minRegions = 3
	// maxSplitWidening bounds the bytes appended to the keys when the range is too narrow to split.
	maxSplitWidening = 16
)

// computeSplitKeys returns numRegions-1 split keys, the first is startKey, the last is endKey and the others are
// spread evenly between them. The keys are compared as big-endian numbers after padding them to the same length
// with zero bytes, and the precision is widened by one byte until the range holds enough distinct keys.
func computeSplitKeys(startKey, endKey []byte, numRegions int) ([][]byte, error) {
	if numRegions < minRegions {
		return nil, ErrInvalidArgument.WithMessagef("number of regions must be at least %d, actual:%d", minRegions, numRegions)
	}
	if len(startKey) == 0 || len(endKey) == 0 {
		return nil, ErrInvalidArgument.WithMessagef("empty start key or end key")
	}
	if bytes.Compare(startKey, endKey) >= 0 {
		return nil, ErrInvalidArgument.WithMessagef("start key:%q must be less than end key:%q", startKey, endKey)
	}

	if numRegions == minRegions {
		return [][]byte{bytes.Clone(startKey), bytes.Clone(endKey)}, nil
	}

	width := max(len(startKey), len(endKey))
	intervals := big.NewInt(int64(numRegions - 2))
	for i := 0; i <= maxSplitWidening; i++ {
		start := new(big.Int).SetBytes(padRight(startKey, width))
		end := new(big.Int).SetBytes(padRight(endKey, width))
		diff := new(big.Int).Sub(end, start)
		if diff.Sign() == 0 {
			break
		}
		if diff.Cmp(intervals) < 0 {
			width++
			continue
		}

		interval := new(big.Int).Div(diff, intervals)
		keys := make([][]byte, 0, numRegions-1)
		keys = append(keys, bytes.Clone(startKey))
		for j := int64(1); j < intervals.Int64(); j++ {
			key := new(big.Int).Add(start, new(big.Int).Mul(interval, big.NewInt(j)))
			keys = append(keys, key.FillBytes(make([]byte, width)))
		}
		keys = append(keys, bytes.Clone(endKey))
		assert.Assertf(len(keys) == numRegions-1, "split keys:%d, regions:%d", len(keys), numRegions)
		return keys, nil
	}
	return nil, ErrInvalidArgument.WithMessagef("can not split range [%q, %q] into %d regions", startKey, endKey, numRegions)
}

func padRight(key []byte, width int) []byte {
	padded := make([]byte, width)
	copy(padded, key)
	return padded
}

// regionsOf returns the regions bounded by the sorted split keys.
func regionsOf(splitKeys [][]byte) []Region {
	regions := make([]Region, 0, len(splitKeys)+1)
	var start []byte
	for i, k := range splitKeys {
		regions = append(regions, Region{Index: i, StartKey: start, EndKey: k})
		start = k
	}
	return append(regions, Region{Index: len(splitKeys), StartKey: start, EndKey: nil})
}
