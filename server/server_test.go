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
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/CeresDB/ceresdao/server/config"
	"github.com/CeresDB/ceresdao/server/etcdutil"
	"github.com/CeresDB/ceresdao/server/status"
	"github.com/stretchr/testify/require"
	"github.com/tikv/pd/pkg/tempurl"
)

func TestServer(t *testing.T) {
	re := require.New(t)
	etcd, _, closeSrv := etcdutil.PrepareEtcdServerAndClient(t)
	defer closeSrv()

	cfg := config.MakeDefaultConfig()
	cfg.QuorumAddress = etcdutil.ClientEndpoint(etcd)
	cfg.HTTPAddr = strings.TrimPrefix(tempurl.Alloc(), "http://")
	re.NoError(cfg.ValidateAndAdjust())

	_, err := CreateServer(context.Background(), nil)
	re.Error(err)

	srv, err := CreateServer(context.Background(), cfg)
	re.NoError(err)
	re.Nil(srv.Dao())
	re.Equal(status.StatusWaiting, srv.Status())
	re.NoError(srv.Run())
	re.Equal(status.StatusRunning, srv.Status())
	re.NotNil(srv.Dao())

	exists, err := srv.Dao().NamespaceExists(context.Background(), "default")
	re.NoError(err)
	re.True(exists)

	healthURL := "http://" + cfg.HTTPAddr + "/api/v1/health"
	re.Eventually(func() bool {
		resp, err := http.Get(healthURL)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	srv.Close()
	srv.Close()
	re.Equal(status.StatusTerminated, srv.Status())
	_, err = http.Get(healthURL)
	re.Error(err)
}
