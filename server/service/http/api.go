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

package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"

	"github.com/CeresDB/ceresdao/pkg/coderr"
	"github.com/CeresDB/ceresdao/pkg/log"
	"github.com/CeresDB/ceresdao/server/config"
	"github.com/CeresDB/ceresdao/server/connection"
	"github.com/CeresDB/ceresdao/server/dao"
	"github.com/CeresDB/ceresdao/server/page"
	"github.com/CeresDB/ceresdao/server/status"
	"github.com/CeresDB/ceresdao/server/storage"
	"github.com/CeresDB/ceresdao/server/table"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type API struct {
	dao          *dao.Dao
	conn         *connection.Connection
	serverStatus *status.ServerStatus
}

func NewAPI(d *dao.Dao, conn *connection.Connection, serverStatus *status.ServerStatus) *API {
	return &API{
		dao:          d,
		conn:         conn,
		serverStatus: serverStatus,
	}
}

func (a *API) NewAPIRouter() *Router {
	router := New().WithPrefix(apiPrefix).WithInstrumentation(printRequestInsmt)

	router.Get("/health", wrap(a.health))
	router.Get("/flowLimiter", wrap(a.getFlowLimiter))
	router.Put("/flowLimiter", wrap(a.updateFlowLimiter))

	// Register namespace API.
	router.Get("/namespaces", wrap(a.listNamespaces))
	router.Post("/namespaces", wrap(a.createNamespace))
	router.Del(fmt.Sprintf("/namespaces/:%s", namespaceParam), wrap(a.deleteNamespace))
	router.Get(fmt.Sprintf("/namespaces/:%s/tables", namespaceParam), wrap(a.listTablesByNamespace))

	// Register table API.
	router.Get("/tables", wrap(a.listTables))
	router.Post("/tables", wrap(a.createTable))
	router.Get(tablePath(""), wrap(a.describeTable))
	router.Del(tablePath(""), wrap(a.dropTable))
	router.Post(tablePath("/truncate"), wrap(a.truncateTable))
	router.Post(tablePath("/enable"), wrap(a.enableTable))
	router.Post(tablePath("/disable"), wrap(a.disableTable))
	router.Get(tablePath("/regions"), wrap(a.listRegions))
	router.Get(tablePath("/count"), wrap(a.countRows))

	// Register row API.
	router.Put(tablePath("/rows"), wrap(a.putRows))
	router.Post(tablePath("/rows"), wrap(a.getRows))
	router.Del(tablePath("/rows"), wrap(a.deleteRows))
	router.Get(tablePath(fmt.Sprintf("/row/:%s", rowParam)), wrap(a.getRow))
	router.Del(tablePath(fmt.Sprintf("/row/:%s", rowParam)), wrap(a.deleteRow))
	router.Post(tablePath("/scan"), wrap(a.scan))
	router.Post(tablePath("/last"), wrap(a.lastRow))
	router.Post(tablePath("/page"), wrap(a.page))

	// Register debug API.
	router.GetWithoutPrefix("/debug/pprof/profile", pprof.Profile)
	router.GetWithoutPrefix("/debug/pprof/symbol", pprof.Symbol)
	router.GetWithoutPrefix("/debug/pprof/trace", pprof.Trace)
	router.GetWithoutPrefix("/debug/pprof/heap", pprof.Handler("heap").ServeHTTP)
	router.GetWithoutPrefix("/debug/pprof/goroutine", pprof.Handler("goroutine").ServeHTTP)

	return router
}

func tablePath(suffix string) string {
	return fmt.Sprintf("/tables/:%s%s", tableParam, suffix)
}

func decodeRequest(req *http.Request, v interface{}) error {
	if err := json.NewDecoder(req.Body).Decode(v); err != nil {
		return ErrParseRequest.WithCause(err)
	}
	return nil
}

func (a *API) health(req *http.Request) apiFuncResult {
	if !a.serverStatus.IsHealthy() {
		return errResult(ErrHealthCheck.WithMessagef("server status is %s", a.serverStatus.Get()), "")
	}
	if a.conn.IsClosed() {
		return errResult(ErrHealthCheck.WithMessagef("connection is closed"), "")
	}
	if _, err := a.dao.NamespaceExists(req.Context(), storage.DefaultNamespace); err != nil {
		log.Error("health check failed", zap.Error(err))
		return errResult(ErrHealthCheck.WithCause(err), err.Error())
	}
	return okResult(nil)
}

func (a *API) getFlowLimiter(_ *http.Request) apiFuncResult {
	flowLimiter := a.conn.FlowLimiter()
	if flowLimiter == nil {
		return errResult(ErrFlowLimiterNotFound.WithMessagef("limiter is not enabled"), "")
	}
	return okResult(flowLimiter.GetConfig())
}

func (a *API) updateFlowLimiter(req *http.Request) apiFuncResult {
	var updateFlowLimiterRequest UpdateFlowLimiterRequest
	if err := decodeRequest(req, &updateFlowLimiterRequest); err != nil {
		return errResult(err, "")
	}
	log.Info("update flow limiter request", zap.String("request", fmt.Sprintf("%+v", updateFlowLimiterRequest)))

	flowLimiter := a.conn.FlowLimiter()
	if flowLimiter == nil {
		return errResult(ErrFlowLimiterNotFound.WithMessagef("limiter is not enabled"), "")
	}
	newLimiterConfig := config.LimiterConfig{
		Limit:  updateFlowLimiterRequest.Limit,
		Burst:  updateFlowLimiterRequest.Burst,
		Enable: updateFlowLimiterRequest.Enable,
	}
	if err := flowLimiter.UpdateLimiter(newLimiterConfig); err != nil {
		log.Error("update flow limiter failed", zap.Error(err))
		return errResult(ErrUpdateFlowLimiter.WithCause(err), err.Error())
	}
	return okResult(statusSuccess)
}

func (a *API) listNamespaces(req *http.Request) apiFuncResult {
	namespaces, err := a.dao.ListNamespaces(req.Context())
	if err != nil {
		log.Error("list namespaces failed", zap.Error(err))
		return errResult(err, "")
	}
	return okResult(namespaces)
}

func (a *API) createNamespace(req *http.Request) apiFuncResult {
	var createNamespaceRequest CreateNamespaceRequest
	if err := decodeRequest(req, &createNamespaceRequest); err != nil {
		return errResult(err, "")
	}
	log.Info("create namespace request", zap.String("request", fmt.Sprintf("%+v", createNamespaceRequest)))

	if err := a.dao.CreateNamespace(req.Context(), createNamespaceRequest.Name); err != nil {
		log.Error("create namespace failed", zap.Error(err))
		return errResult(err, "")
	}
	return okResult(statusSuccess)
}

func (a *API) deleteNamespace(req *http.Request) apiFuncResult {
	namespace := Param(req.Context(), namespaceParam)
	log.Info("delete namespace request", zap.String("namespace", namespace))

	if err := a.dao.DeleteNamespace(req.Context(), namespace); err != nil {
		log.Error("delete namespace failed", zap.Error(err))
		return errResult(err, "")
	}
	return okResult(statusSuccess)
}

func tableNames(names []storage.TableName) []string {
	result := make([]string, 0, len(names))
	for _, name := range names {
		result = append(result, name.String())
	}
	return result
}

func (a *API) listTablesByNamespace(req *http.Request) apiFuncResult {
	namespace := Param(req.Context(), namespaceParam)
	names, err := a.dao.ListTableNamesByNamespace(req.Context(), namespace)
	if err != nil {
		log.Error("list tables by namespace failed", zap.String("namespace", namespace), zap.Error(err))
		return errResult(err, "")
	}
	return okResult(tableNames(names))
}

func (a *API) listTables(req *http.Request) apiFuncResult {
	names, err := a.dao.ListTableNames(req.Context())
	if err != nil {
		log.Error("list tables failed", zap.Error(err))
		return errResult(err, "")
	}
	return okResult(tableNames(names))
}

func (a *API) createTable(req *http.Request) apiFuncResult {
	var createTableRequest CreateTableRequest
	if err := decodeRequest(req, &createTableRequest); err != nil {
		return errResult(err, "")
	}
	log.Info("create table request", zap.String("request", fmt.Sprintf("%+v", createTableRequest)))

	onExists, err := parseOnExists(createTableRequest.OnExists)
	if err != nil {
		return errResult(err, "")
	}
	families, err := createTableRequest.families()
	if err != nil {
		return errResult(err, "")
	}

	ctx := req.Context()
	if regions := createTableRequest.Regions; regions != nil {
		err = a.dao.CreateTableWithRegions(ctx, createTableRequest.Table, families,
			[]byte(regions.StartKey), []byte(regions.EndKey), regions.NumRegions, onExists)
	} else {
		var splitKeys [][]byte
		for _, k := range createTableRequest.SplitKeys {
			splitKeys = append(splitKeys, []byte(k))
		}
		err = a.dao.CreateTable(ctx, createTableRequest.Table, families, splitKeys, onExists)
	}
	if err != nil {
		log.Error("create table failed", zap.String("table", createTableRequest.Table), zap.Error(err))
		return errResult(err, "")
	}
	return okResult(statusSuccess)
}

func (a *API) describeTable(req *http.Request) apiFuncResult {
	tableName := Param(req.Context(), tableParam)
	t, err := a.dao.DescribeTable(req.Context(), tableName)
	if err != nil {
		return errResult(err, "")
	}
	return okResult(tableData(t))
}

// tableAdminHandler builds the handler of the admin operations which only take the table name.
func tableAdminHandler(op string, f func(r *http.Request, tableName string) error) apiFunc {
	return func(req *http.Request) apiFuncResult {
		tableName := Param(req.Context(), tableParam)
		log.Info(op+" request", zap.String("table", tableName))

		if err := f(req, tableName); err != nil {
			log.Error(op+" failed", zap.String("table", tableName), zap.Error(err))
			return errResult(err, "")
		}
		return okResult(statusSuccess)
	}
}

func (a *API) dropTable(req *http.Request) apiFuncResult {
	return tableAdminHandler("drop table", func(r *http.Request, tableName string) error {
		return a.dao.DropTable(r.Context(), tableName)
	})(req)
}

func (a *API) truncateTable(req *http.Request) apiFuncResult {
	return tableAdminHandler("truncate table", func(r *http.Request, tableName string) error {
		return a.dao.TruncateTable(r.Context(), tableName)
	})(req)
}

func (a *API) enableTable(req *http.Request) apiFuncResult {
	return tableAdminHandler("enable table", func(r *http.Request, tableName string) error {
		return a.dao.EnableTable(r.Context(), tableName)
	})(req)
}

func (a *API) disableTable(req *http.Request) apiFuncResult {
	return tableAdminHandler("disable table", func(r *http.Request, tableName string) error {
		return a.dao.DisableTable(r.Context(), tableName)
	})(req)
}

func (a *API) listRegions(req *http.Request) apiFuncResult {
	tableName := Param(req.Context(), tableParam)
	regions, err := a.dao.ListRegions(req.Context(), tableName)
	if err != nil {
		return errResult(err, "")
	}

	result := make([]RegionData, 0, len(regions))
	for _, r := range regions {
		result = append(result, RegionData{Index: r.Index, StartKey: string(r.StartKey), EndKey: string(r.EndKey)})
	}
	return okResult(result)
}

func (a *API) countRows(req *http.Request) apiFuncResult {
	tableName := Param(req.Context(), tableParam)
	count, err := a.dao.CountRows(req.Context(), tableName)
	if err != nil {
		return errResult(err, "")
	}
	return okResult(count)
}

// writeResult attaches the failed rows of a partial write to the result.
func writeResult(err error) apiFuncResult {
	result := errResult(err, "")
	var partialErr *table.PartialWriteError
	if errors.As(err, &partialErr) {
		failedRows := make([]FailedRowData, 0, len(partialErr.FailedRows))
		for _, f := range partialErr.FailedRows {
			failedRows = append(failedRows, FailedRowData{Row: string(f.Row), Error: f.Err.Error()})
		}
		result.data = failedRows
	}
	return result
}

func (a *API) putRows(req *http.Request) apiFuncResult {
	tableName := Param(req.Context(), tableParam)
	var putRowsRequest PutRowsRequest
	if err := decodeRequest(req, &putRowsRequest); err != nil {
		return errResult(err, "")
	}

	mutations := make([]*table.Mutation, 0, len(putRowsRequest.Rows))
	for _, row := range putRowsRequest.Rows {
		mutations = append(mutations, row.mutation())
	}

	var err error
	if putRowsRequest.Async {
		err = a.dao.AddDataBatchAsync(req.Context(), tableName, mutations, putRowsRequest.BufferBytes)
	} else {
		err = a.dao.AddDataBatch(req.Context(), tableName, mutations)
	}
	if err != nil {
		log.Error("put rows failed", zap.String("table", tableName), zap.Int("rows", len(mutations)), zap.Error(err))
		return writeResult(err)
	}
	return okResult(len(mutations))
}

func (a *API) getRows(req *http.Request) apiFuncResult {
	tableName := Param(req.Context(), tableParam)
	var getRowsRequest GetRowsRequest
	if err := decodeRequest(req, &getRowsRequest); err != nil {
		return errResult(err, "")
	}
	columns, err := dao.ParseColumns(getRowsRequest.Columns)
	if err != nil {
		return errResult(err, "")
	}

	keys := make([][]byte, 0, len(getRowsRequest.Rows))
	for _, k := range getRowsRequest.Rows {
		keys = append(keys, []byte(k))
	}
	rows, err := a.dao.GetRows(req.Context(), tableName, keys, columns)
	if err != nil {
		return errResult(err, "")
	}
	return okResult(rowsData(rows))
}

func (a *API) deleteRows(req *http.Request) apiFuncResult {
	tableName := Param(req.Context(), tableParam)
	var deleteRowsRequest DeleteRowsRequest
	if err := decodeRequest(req, &deleteRowsRequest); err != nil {
		return errResult(err, "")
	}

	keys := make([][]byte, 0, len(deleteRowsRequest.Rows))
	for _, k := range deleteRowsRequest.Rows {
		keys = append(keys, []byte(k))
	}
	if err := a.dao.DeleteRows(req.Context(), tableName, keys); err != nil {
		log.Error("delete rows failed", zap.String("table", tableName), zap.Error(err))
		return errResult(err, "")
	}
	return okResult(len(keys))
}

func (a *API) getRow(req *http.Request) apiFuncResult {
	ctx := req.Context()
	tableName, rowKey := Param(ctx, tableParam), Param(ctx, rowParam)
	columns, err := dao.ParseColumns(req.URL.Query()[columnQuery])
	if err != nil {
		return errResult(err, "")
	}

	row, err := a.dao.GetRow(ctx, tableName, []byte(rowKey), columns)
	if err != nil {
		return errResult(err, "")
	}
	if row == nil {
		return errResult(ErrRowNotFound.WithMessagef("table:%s, row:%s", tableName, rowKey), "")
	}
	return okResult(rowData(row))
}

func (a *API) deleteRow(req *http.Request) apiFuncResult {
	ctx := req.Context()
	tableName, rowKey := Param(ctx, tableParam), Param(ctx, rowParam)
	if err := a.dao.Delete(ctx, tableName, []byte(rowKey)); err != nil {
		log.Error("delete row failed", zap.String("table", tableName), zap.String("row", rowKey), zap.Error(err))
		return errResult(err, "")
	}
	return okResult(statusSuccess)
}

func (r ScanRequest) build() (*table.ScanRequest, error) {
	columns, err := dao.ParseColumns(r.Columns)
	if err != nil {
		return nil, err
	}
	f, err := r.Filter.Build()
	if err != nil {
		return nil, err
	}
	return &table.ScanRequest{
		StartRow: bytesOrNil(r.StartRow),
		StopRow:  bytesOrNil(r.StopRow),
		Columns:  columns,
		Filter:   f,
		Reversed: r.Reversed,
		Limit:    r.Limit,
	}, nil
}

func (a *API) scan(req *http.Request) apiFuncResult {
	tableName := Param(req.Context(), tableParam)
	var scanRequest ScanRequest
	if err := decodeRequest(req, &scanRequest); err != nil {
		return errResult(err, "")
	}
	scanReq, err := scanRequest.build()
	if err != nil {
		return errResult(err, "")
	}

	rows, err := a.dao.Scan(req.Context(), tableName, scanReq)
	if err != nil {
		return errResult(err, "")
	}
	return okResult(rowsData(rows))
}

func (a *API) lastRow(req *http.Request) apiFuncResult {
	tableName := Param(req.Context(), tableParam)
	var scanRequest ScanRequest
	if err := decodeRequest(req, &scanRequest); err != nil {
		return errResult(err, "")
	}

	row, err := a.dao.GetLastRow(req.Context(), tableName, bytesOrNil(scanRequest.StartRow),
		bytesOrNil(scanRequest.StopRow), scanRequest.Reversed)
	if err != nil {
		return errResult(err, "")
	}
	if row == nil {
		return errResult(ErrRowNotFound.WithMessagef("table:%s, empty range", tableName), "")
	}
	return okResult(rowData(row))
}

func (r PageRequest) query() (page.Query, error) {
	columns, err := dao.ParseColumns(r.Columns)
	if err != nil {
		return page.Query{}, err
	}
	f, err := r.Filter.Build()
	if err != nil {
		return page.Query{}, err
	}
	return page.Query{
		StartRow: bytesOrNil(r.StartRow),
		StopRow:  bytesOrNil(r.StopRow),
		Columns:  columns,
		Filter:   f,
		PageSize: r.PageSize,
	}, nil
}

func (a *API) page(req *http.Request) apiFuncResult {
	ctx := req.Context()
	tableName := Param(ctx, tableParam)
	var pageRequest PageRequest
	if err := decodeRequest(req, &pageRequest); err != nil {
		return errResult(err, "")
	}
	q, err := pageRequest.query()
	if err != nil {
		return errResult(err, "")
	}

	var p *page.Page
	if len(pageRequest.NextPageRowKey) > 0 {
		if pageRequest.Index < 1 {
			err := ErrParseRequest.WithMessagef("index of the last page must be positive, actual:%d", pageRequest.Index)
			return errResult(err, "")
		}
		cursor, err := page.NewCursor(q)
		if err != nil {
			return errResult(err, "")
		}
		cursor.Index = pageRequest.Index
		cursor.NextPageRowKey = []byte(pageRequest.NextPageRowKey)
		p, err = a.dao.ScanResultByPage(ctx, tableName, cursor)
		if err != nil {
			return errResult(err, "")
		}
	} else {
		k := pageRequest.Index
		if k == 0 {
			k = 1
		}
		p, err = a.dao.ScanResultByPageIndex(ctx, tableName, q, k)
		if err != nil {
			return errResult(err, "")
		}
	}
	return okResult(pageData(p))
}

// printRequestInsmt tags every request with a request id and prints it.
func printRequestInsmt(handlerName string, handler http.HandlerFunc) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		requestID := request.Header.Get(requestIDHeader)
		if len(requestID) == 0 {
			requestID = uuid.NewString()
		}
		writer.Header().Set(requestIDHeader, requestID)

		bodyByte, err := io.ReadAll(request.Body)
		if err != nil {
			log.Error("read request body failed", zap.String("requestID", requestID), zap.Error(err))
			respondError(writer, apiFuncResult{data: nil, code: coderr.BadRequest, err: err, errMsg: ""})
			return
		}
		request.Body = io.NopCloser(bytes.NewReader(bodyByte))
		log.Debug("receive http request", zap.String("requestID", requestID), zap.String("handlerName", handlerName),
			zap.String("client host", request.RemoteAddr), zap.String("method", request.Method),
			zap.String("path", request.URL.Path), zap.Int("bodyBytes", len(bodyByte)))
		handler.ServeHTTP(writer, request)
	}
}

func respond(w http.ResponseWriter, data interface{}) {
	b, err := json.Marshal(&response{
		Status: statusSuccess,
		Data:   data,
		Error:  "",
		Msg:    "",
	})
	if err != nil {
		log.Error("marshal json response failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if n, err := w.Write(b); err != nil {
		log.Error("write response failed", zap.Int("msg", n), zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, result apiFuncResult) {
	b, err := json.Marshal(&response{
		Status: statusError,
		Data:   result.data,
		Error:  result.err.Error(),
		Msg:    result.errMsg,
	})
	if err != nil {
		log.Error("marshal json response failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.code.ToHTTPCode())
	if n, err := w.Write(b); err != nil {
		log.Error("write response failed", zap.Int("msg", n), zap.Error(err))
	}
}

func wrap(f apiFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := f(r)
		if result.err != nil {
			if result.code.ToHTTPCode() >= http.StatusInternalServerError {
				log.Error("handle request failed", zap.String("path", r.URL.Path), zap.String("err", coderr.FormatErrorWithStack(result.err)))
			}
			respondError(w, result)
			return
		}
		respond(w, result.data)
	}
}
