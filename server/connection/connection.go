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

// Package connection manages the cluster client shared by the table handles and the admin.
package connection

import (
	"context"
	"sync/atomic"

	"github.com/CeresDB/ceresdao/pkg/log"
	"github.com/CeresDB/ceresdao/server/admin"
	"github.com/CeresDB/ceresdao/server/codec"
	"github.com/CeresDB/ceresdao/server/config"
	"github.com/CeresDB/ceresdao/server/id"
	"github.com/CeresDB/ceresdao/server/limiter"
	"github.com/CeresDB/ceresdao/server/storage"
	"github.com/CeresDB/ceresdao/server/table"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

const allocTableIDStep = 20

// Connection is safe for concurrent use, it should be created once and shared.
type Connection struct {
	logger *zap.Logger
	cfg    *config.Config

	client *clientv3.Client
	// ownsClient is false if the client is provided by the caller, who closes it then.
	ownsClient  bool
	admin       *admin.Admin
	compressors *codec.Compressors
	// flowLimiter is nil if the writes are not limited.
	flowLimiter *limiter.FlowLimiter
	tableOpts   table.Options

	closed atomic.Bool
}

// Open connects to the cluster of the config, it fails with a ConfigInvalid error if the quorum address is empty
// or no member can be reached within the dial timeout.
func Open(ctx context.Context, cfg *config.Config) (*Connection, error) {
	if err := cfg.ValidateAndAdjust(); err != nil {
		return nil, err
	}
	endpoints, err := cfg.Endpoints()
	if err != nil {
		return nil, err
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: cfg.DialTimeout(),
		DialOptions: []grpc.DialOption{grpc.WithBlock()},
		Logger:      log.Named("etcd-client"),
	})
	if err != nil {
		return nil, ErrConnect.WithCausef(err, "endpoints:%v", endpoints)
	}

	conn, err := newConnection(ctx, client, cfg, true)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return conn, nil
}

// NewWithClient creates a connection over a client owned by the caller.
func NewWithClient(ctx context.Context, client *clientv3.Client, cfg *config.Config) (*Connection, error) {
	return newConnection(ctx, client, cfg, false)
}

func newConnection(ctx context.Context, client *clientv3.Client, cfg *config.Config, ownsClient bool) (*Connection, error) {
	logger := log.With(zap.String("rootPath", cfg.RootPath))

	compressors, err := codec.NewCompressors()
	if err != nil {
		return nil, ErrCreateConnection.WithCause(err)
	}

	s := storage.NewStorageWithEtcdBackend(client, cfg.RootPath, storage.Options{MaxScanLimit: cfg.ScanBatchSize})
	alloc := id.NewAllocatorImpl(logger, client, storage.MakeTableIDAllocKey(cfg.RootPath), allocTableIDStep)
	a := admin.New(logger, client, s, alloc, cfg.RootPath)
	if err := a.EnsureBuiltinNamespaces(ctx); err != nil {
		compressors.Close()
		return nil, ErrCreateConnection.WithCausef(err, "ensure builtin namespaces")
	}

	var flowLimiter *limiter.FlowLimiter
	if cfg.Limiter.Enable {
		flowLimiter = limiter.NewFlowLimiter(cfg.Limiter)
	}

	logger.Info("connection opened", zap.Strings("endpoints", client.Endpoints()))
	return &Connection{
		logger:      logger,
		cfg:         cfg,
		client:      client,
		ownsClient:  ownsClient,
		admin:       a,
		compressors: compressors,
		flowLimiter: flowLimiter,
		tableOpts: table.Options{
			RootPath:         cfg.RootPath,
			RequestTimeout:   cfg.RequestTimeout(),
			ScanBatchSize:    cfg.ScanBatchSize,
			MaxOpsPerTxn:     cfg.MaxOpsPerTxn,
			FlushConcurrency: cfg.FlushConcurrency,
		},
	}, nil
}

// Close releases the client, closing a closed connection only logs a warning.
func (c *Connection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		c.logger.Warn("close a closed connection")
		return nil
	}

	c.compressors.Close()
	if c.ownsClient {
		if err := c.client.Close(); err != nil {
			c.logger.Warn("close etcd client failed", zap.Error(err))
		}
	}
	c.logger.Info("connection closed")
	return nil
}

func (c *Connection) IsClosed() bool {
	return c.closed.Load()
}

func (c *Connection) checkOpen() error {
	if c.closed.Load() {
		return ErrConnectionClosed.WithMessagef("root path:%s", c.cfg.RootPath)
	}
	return nil
}

// Admin returns the shared admin, or ErrConnectionClosed.
func (c *Connection) Admin() (*admin.Admin, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	return c.admin, nil
}

func (c *Connection) Client() *clientv3.Client {
	return c.client
}

// FlowLimiter returns nil if the writes are not limited.
func (c *Connection) FlowLimiter() *limiter.FlowLimiter {
	return c.flowLimiter
}

// GetTable returns a new handle of the enabled table, the caller must close it.
func (c *Connection) GetTable(ctx context.Context, name storage.TableName) (*table.Table, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	desc, err := c.admin.GetTableDescriptor(ctx, name)
	if err != nil {
		return nil, err
	}
	if !desc.IsEnabled() {
		return nil, ErrTableDisabled.WithMessagef("table:%s", name)
	}
	return table.New(c.logger, c.client, c.client, desc, c.compressors, c.flowLimiter, c.tableOpts), nil
}

// NewBufferedMutator returns a mutator writing into the table, bufferBytes 0 means the configured size.
func (c *Connection) NewBufferedMutator(ctx context.Context, name storage.TableName, bufferBytes int) (*table.BufferedMutator, error) {
	t, err := c.GetTable(ctx, name)
	if err != nil {
		return nil, err
	}
	if bufferBytes <= 0 {
		bufferBytes = c.cfg.WriteBufferBytes
	}
	return t.NewBufferedMutator(bufferBytes), nil
}
