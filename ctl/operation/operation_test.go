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

package operation

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/CeresDB/ceresdao/server/config"
	"github.com/CeresDB/ceresdao/server/connection"
	"github.com/CeresDB/ceresdao/server/dao"
	"github.com/CeresDB/ceresdao/server/etcdutil"
	"github.com/CeresDB/ceresdao/server/page"
	httpapi "github.com/CeresDB/ceresdao/server/service/http"
	"github.com/CeresDB/ceresdao/server/status"
	"github.com/CeresDB/ceresdao/server/storage"
	"github.com/CeresDB/ceresdao/server/table"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func prepareService(t *testing.T) (*dao.Dao, func()) {
	re := require.New(t)
	_, client, closeSrv := etcdutil.PrepareEtcdServerAndClient(t)

	conn, err := connection.NewWithClient(context.Background(), client, config.MakeDefaultConfig())
	re.NoError(err)
	paginator, err := page.NewPaginator(zap.NewNop(), 0)
	re.NoError(err)
	d := dao.New(zap.NewNop(), conn, paginator)

	serverStatus := status.NewServerStatus()
	serverStatus.Set(status.StatusRunning)
	srv := httptest.NewServer(httpapi.NewAPI(d, conn, serverStatus).NewAPIRouter())
	viper.Set(RootAddr, strings.TrimPrefix(srv.URL, HTTP))
	return d, func() {
		srv.Close()
		_ = conn.Close()
		closeSrv()
	}
}

func TestOperations(t *testing.T) {
	re := require.New(t)
	d, closeFn := prepareService(t)
	defer closeFn()
	ctx := context.Background()

	var out bytes.Buffer
	re.NoError(NamespaceCreate(&out, "sales"))
	re.Contains(out.String(), "namespace sales is created")

	out.Reset()
	re.NoError(NamespaceList(&out))
	for _, ns := range []string{"default", "system", "sales"} {
		re.Contains(out.String(), ns)
	}

	families := []storage.ColumnFamily{{Name: "info", Compression: storage.CompressionZstd, TTLSeconds: 0}}
	re.NoError(d.CreateTable(ctx, "sales:orders", families, [][]byte{[]byte("order_05")}, 0))
	mutations := make([]*table.Mutation, 0, 7)
	for i := 1; i <= 7; i++ {
		mutations = append(mutations, table.NewMutation([]byte(fmt.Sprintf("order_%02d", i))).
			Add("info", "status", []byte("paid")))
	}
	re.NoError(d.AddDataBatch(ctx, "sales:orders", mutations))

	out.Reset()
	re.NoError(TableList(&out, "sales"))
	re.Contains(out.String(), "sales:orders")

	out.Reset()
	re.NoError(TableDescribe(&out, "sales:orders"))
	re.Contains(out.String(), "state:ENABLED")
	re.Contains(out.String(), "ZSTD")
	re.Contains(out.String(), `"order_05"`)

	out.Reset()
	printed, err := Scan(&out, "sales:orders", ScanOptions{PageSize: 3, Page: 1, All: false})
	re.NoError(err)
	re.Equal(3, printed)
	re.Contains(out.String(), `next page starts from "order_04"`)

	out.Reset()
	printed, err = Scan(&out, "sales:orders", ScanOptions{PageSize: 3, Page: 2, All: true})
	re.NoError(err)
	re.Equal(4, printed)
	re.Contains(out.String(), "page 3, rows:1, no more pages")

	out.Reset()
	printed, err = Scan(&out, "sales:orders", ScanOptions{StartRow: "order_06", PageSize: 3, Page: 1, All: true})
	re.NoError(err)
	re.Equal(2, printed)

	out.Reset()
	re.NoError(TableTruncate(&out, "sales:orders"))
	printed, err = Scan(&out, "sales:orders", ScanOptions{PageSize: 3, Page: 1, All: true})
	re.NoError(err)
	re.Equal(0, printed)

	err = NamespaceDelete(&out, "sales")
	re.Error(err)
	re.Contains(err.Error(), fmt.Sprintf("status code:%d", http.StatusConflict))

	re.NoError(TableDrop(&out, "sales:orders"))
	re.Error(TableDescribe(&out, "sales:orders"))
	re.NoError(NamespaceDelete(&out, "sales"))
	_, err = Scan(&out, "sales:orders", ScanOptions{PageSize: 3, Page: 1})
	re.Error(err)
}
