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

package server

import (
	"context"
	nethttp "net/http"
	"sync"

	"github.com/CeresDB/ceresdao/pkg/log"
	"github.com/CeresDB/ceresdao/server/config"
	"github.com/CeresDB/ceresdao/server/connection"
	"github.com/CeresDB/ceresdao/server/dao"
	"github.com/CeresDB/ceresdao/server/page"
	"github.com/CeresDB/ceresdao/server/service/http"
	"github.com/CeresDB/ceresdao/server/status"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Server struct {
	ctx   context.Context
	cfg   *config.Config
	bgWg  sync.WaitGroup
	close sync.Once

	status      *status.ServerStatus
	conn        *connection.Connection
	dao         *dao.Dao
	httpService *http.Service
}

// CreateServer creates the server instance without connecting to the cluster or starting any service.
func CreateServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	if cfg == nil {
		return nil, ErrCreateServer.WithMessagef("nil config")
	}
	return &Server{
		ctx:         ctx,
		cfg:         cfg,
		bgWg:        sync.WaitGroup{},
		close:       sync.Once{},
		status:      status.NewServerStatus(),
		conn:        nil,
		dao:         nil,
		httpService: nil,
	}, nil
}

// Run connects to the cluster and starts the http service in background.
func (srv *Server) Run() error {
	conn, err := connection.Open(srv.ctx, srv.cfg)
	if err != nil {
		return ErrStartServer.WithCause(err)
	}
	srv.conn = conn

	paginator, err := page.NewPaginator(log.With(zap.String("component", "paginator")), srv.cfg.PageBoundaryCacheSize)
	if err != nil {
		return ErrStartServer.WithCause(err)
	}
	srv.dao = dao.New(log.With(zap.String("component", "dao")), conn, paginator)

	api := http.NewAPI(srv.dao, conn, srv.status)
	srv.httpService = http.NewHTTPService(srv.cfg.HTTPAddr, srv.cfg.HTTPReadTimeout(), srv.cfg.HTTPWriteTimeout(), api.NewAPIRouter())
	srv.startHTTPService()
	srv.status.Set(status.StatusRunning)

	log.Info("server started", zap.String("httpAddr", srv.cfg.HTTPAddr), zap.String("rootPath", srv.cfg.RootPath))
	return nil
}

func (srv *Server) startHTTPService() {
	srv.bgWg.Add(1)
	go func() {
		defer srv.bgWg.Done()

		log.Info("start http service", zap.String("addr", srv.cfg.HTTPAddr))
		if err := srv.httpService.Start(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			log.Error("http service exits unexpectedly", zap.Error(err))
		}
	}()
}

// Close stops the http service and closes the connection, it is safe to call Close more than once.
func (srv *Server) Close() {
	srv.close.Do(func() {
		srv.status.Set(status.StatusTerminated)
		if srv.httpService != nil {
			if err := srv.httpService.Stop(); err != nil {
				log.Error("fail to stop http service", zap.Error(err))
			}
		}
		srv.bgWg.Wait()

		if srv.conn != nil {
			if err := srv.conn.Close(); err != nil {
				log.Error("fail to close connection", zap.Error(err))
			}
		}
		log.Info("server closed")
	})
}

func (srv *Server) Status() status.Status {
	return srv.status.Get()
}

// Dao is nil before Run.
func (srv *Server) Dao() *dao.Dao {
	return srv.dao
}
