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

package codec

import (
	"bytes"
	"io"

	"github.com/CeresDB/ceresdao/server/storage"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compressor compresses the cell values of a column family.
type Compressor interface {
	Compress(src []byte) ([]byte, error)
	Decompress(src []byte) ([]byte, error)
}

// Compressors holds one Compressor per algorithm, all of them are safe for concurrent use.
type Compressors struct {
	compressors map[storage.Compression]Compressor
	zstd        *zstdCompressor
}

func NewCompressors() (*Compressors, error) {
	zstdCompressor, err := newZstdCompressor()
	if err != nil {
		return nil, err
	}

	return &Compressors{
		compressors: map[storage.Compression]Compressor{
			storage.CompressionNone:   noneCompressor{},
			storage.CompressionSnappy: snappyCompressor{},
			storage.CompressionGzip:   gzipCompressor{},
			storage.CompressionLZ4:    lz4Compressor{},
			storage.CompressionZstd:   zstdCompressor,
		},
		zstd: zstdCompressor,
	}, nil
}

func (c *Compressors) Get(compression storage.Compression) (Compressor, error) {
	if len(compression) == 0 {
		compression = storage.CompressionNone
	}
	compressor, ok := c.compressors[compression]
	if !ok {
		return nil, ErrUnknownCompression.WithMessagef("compression:%s", compression)
	}
	return compressor, nil
}

func (c *Compressors) Close() {
	c.zstd.close()
}

type noneCompressor struct{}

func (noneCompressor) Compress(src []byte) ([]byte, error) {
	return src, nil
}

func (noneCompressor) Decompress(src []byte) ([]byte, error) {
	return src, nil
}

type snappyCompressor struct{}

func (snappyCompressor) Compress(src []byte) ([]byte, error) {
	return snappy.Encode(nil, src), nil
}

func (snappyCompressor) Decompress(src []byte) ([]byte, error) {
	dst, err := snappy.Decode(nil, src)
	if err != nil {
		return nil, ErrDecompress.WithCausef(err, "snappy")
	}
	return dst, nil
}

type gzipCompressor struct{}

func (gzipCompressor) Compress(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(src); err != nil {
		return nil, ErrCompress.WithCausef(err, "gzip")
	}
	if err := w.Close(); err != nil {
		return nil, ErrCompress.WithCausef(err, "gzip")
	}
	return buf.Bytes(), nil
}

func (gzipCompressor) Decompress(src []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, ErrDecompress.WithCausef(err, "gzip")
	}
	defer r.Close()

	dst, err := io.ReadAll(r)
	if err != nil {
		return nil, ErrDecompress.WithCausef(err, "gzip")
	}
	return dst, nil
}

type lz4Compressor struct{}

func (lz4Compressor) Compress(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(src); err != nil {
		return nil, ErrCompress.WithCausef(err, "lz4")
	}
	if err := w.Close(); err != nil {
		return nil, ErrCompress.WithCausef(err, "lz4")
	}
	return buf.Bytes(), nil
}

func (lz4Compressor) Decompress(src []byte) ([]byte, error) {
	dst, err := io.ReadAll(lz4.NewReader(bytes.NewReader(src)))
	if err != nil {
		return nil, ErrDecompress.WithCausef(err, "lz4")
	}
	return dst, nil
}

type zstdCompressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func newZstdCompressor() (*zstdCompressor, error) {
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, ErrCompress.WithCausef(err, "create zstd encoder")
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		_ = encoder.Close()
		return nil, ErrDecompress.WithCausef(err, "create zstd decoder")
	}
	return &zstdCompressor{encoder: encoder, decoder: decoder}, nil
}

func (c *zstdCompressor) Compress(src []byte) ([]byte, error) {
	return c.encoder.EncodeAll(src, nil), nil
}

func (c *zstdCompressor) Decompress(src []byte) ([]byte, error) {
	dst, err := c.decoder.DecodeAll(src, nil)
	if err != nil {
		return nil, ErrDecompress.WithCausef(err, "zstd")
	}
	return dst, nil
}

func (c *zstdCompressor) close() {
	_ = c.encoder.Close()
	c.decoder.Close()
}
