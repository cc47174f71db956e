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

// Package dao provides the flat data access API addressed by the textual table names, every call acquires its own
// table handle and releases it before returning.
package dao

import (
	"context"
	"strings"
	"time"

	"github.com/CeresDB/ceresdao/server/admin"
	"github.com/CeresDB/ceresdao/server/connection"
	"github.com/CeresDB/ceresdao/server/filter"
	"github.com/CeresDB/ceresdao/server/page"
	"github.com/CeresDB/ceresdao/server/storage"
	"github.com/CeresDB/ceresdao/server/table"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Dao struct {
	logger    *zap.Logger
	conn      *connection.Connection
	paginator *page.Paginator
}

func New(logger *zap.Logger, conn *connection.Connection, paginator *page.Paginator) *Dao {
	return &Dao{
		logger:    logger,
		conn:      conn,
		paginator: paginator,
	}
}

// ParseColumns parses the columns in the form `family` or `family:qualifier`.
func ParseColumns(columns []string) ([]table.Column, error) {
	parsed := make([]table.Column, 0, len(columns))
	for _, c := range columns {
		family, qualifier, found := strings.Cut(c, ":")
		if len(family) == 0 {
			return nil, ErrInvalidColumn.WithMessagef("column:%q", c)
		}
		col := table.Column{Family: []byte(family), Qualifier: nil}
		if found {
			col.Qualifier = []byte(qualifier)
		}
		parsed = append(parsed, col)
	}
	return parsed, nil
}

func (d *Dao) logCost(op, target string, begin time.Time, err error) {
	d.logger.Debug("dao call", zap.String("op", op), zap.String("target", target),
		zap.Int64("costMs", time.Since(begin).Milliseconds()), zap.Error(err))
}

func (d *Dao) withTable(ctx context.Context, op, tableName string, f func(t *table.Table) error) (err error) {
	begin := time.Now()
	defer func() {
		d.logCost(op, tableName, begin, err)
	}()

	name, err := storage.ParseTableName(tableName)
	if err != nil {
		return err
	}
	t, err := d.conn.GetTable(ctx, name)
	if err != nil {
		return errors.WithMessagef(err, "%s, table:%s", op, tableName)
	}
	defer func() {
		_ = t.Close()
	}()

	if err := f(t); err != nil {
		return errors.WithMessagef(err, "%s, table:%s", op, tableName)
	}
	return nil
}

func (d *Dao) withAdmin(ctx context.Context, op, target string, f func(a *admin.Admin) error) (err error) {
	begin := time.Now()
	defer func() {
		d.logCost(op, target, begin, err)
	}()

	a, err := d.conn.Admin()
	if err != nil {
		return err
	}
	if err := f(a); err != nil {
		return errors.WithMessagef(err, "%s, target:%s", op, target)
	}
	return nil
}

func (d *Dao) withAdminTable(ctx context.Context, op, tableName string, f func(a *admin.Admin, name storage.TableName) error) error {
	return d.withAdmin(ctx, op, tableName, func(a *admin.Admin) error {
		name, err := storage.ParseTableName(tableName)
		if err != nil {
			return err
		}
		return f(a, name)
	})
}

// CreateTable creates the table, onExists decides whether an existing table is kept or replaced.
func (d *Dao) CreateTable(ctx context.Context, tableName string, families []storage.ColumnFamily, splitKeys [][]byte, onExists admin.OnExists) error {
	return d.withAdminTable(ctx, "create table", tableName, func(a *admin.Admin, name storage.TableName) error {
		_, err := a.CreateTable(ctx, admin.CreateTableRequest{
			Name:      name,
			Families:  families,
			SplitKeys: splitKeys,
			OnExists:  onExists,
		})
		return err
	})
}

func (d *Dao) CreateTableWithRegions(ctx context.Context, tableName string, families []storage.ColumnFamily, startKey, endKey []byte, numRegions int, onExists admin.OnExists) error {
	return d.withAdminTable(ctx, "create table with regions", tableName, func(a *admin.Admin, name storage.TableName) error {
		_, err := a.CreateTableWithRegions(ctx, name, families, startKey, endKey, numRegions, onExists)
		return err
	})
}

func (d *Dao) CreateTableBySnappy(ctx context.Context, tableName string, familyNames []string, splitKeys [][]byte, onExists admin.OnExists, ttlSeconds uint32) error {
	return d.withAdminTable(ctx, "create table by snappy", tableName, func(a *admin.Admin, name storage.TableName) error {
		_, err := a.CreateTableBySnappy(ctx, name, familyNames, splitKeys, onExists, ttlSeconds)
		return err
	})
}

// DropTable disables and deletes the table, an absent table is ignored.
func (d *Dao) DropTable(ctx context.Context, tableName string) error {
	return d.withAdminTable(ctx, "drop table", tableName, func(a *admin.Admin, name storage.TableName) error {
		defer d.paginator.Purge()
		return a.DropTable(ctx, name)
	})
}

// DeleteTable deletes a disabled table.
func (d *Dao) DeleteTable(ctx context.Context, tableName string) error {
	return d.withAdminTable(ctx, "delete table", tableName, func(a *admin.Admin, name storage.TableName) error {
		defer d.paginator.Purge()
		return a.DeleteTable(ctx, name)
	})
}

func (d *Dao) TruncateTable(ctx context.Context, tableName string) error {
	return d.withAdminTable(ctx, "truncate table", tableName, func(a *admin.Admin, name storage.TableName) error {
		defer d.paginator.Purge()
		return a.TruncateTable(ctx, name)
	})
}

func (d *Dao) EnableTable(ctx context.Context, tableName string) error {
	return d.withAdminTable(ctx, "enable table", tableName, func(a *admin.Admin, name storage.TableName) error {
		return a.EnableTable(ctx, name)
	})
}

func (d *Dao) DisableTable(ctx context.Context, tableName string) error {
	return d.withAdminTable(ctx, "disable table", tableName, func(a *admin.Admin, name storage.TableName) error {
		return a.DisableTable(ctx, name)
	})
}

func (d *Dao) TableExists(ctx context.Context, tableName string) (bool, error) {
	var exists bool
	err := d.withAdminTable(ctx, "table exists", tableName, func(a *admin.Admin, name storage.TableName) error {
		var err error
		exists, err = a.TableExists(ctx, name)
		return err
	})
	return exists, err
}

func (d *Dao) DescribeTable(ctx context.Context, tableName string) (storage.Table, error) {
	var desc storage.Table
	err := d.withAdminTable(ctx, "describe table", tableName, func(a *admin.Admin, name storage.TableName) error {
		var err error
		desc, err = a.GetTableDescriptor(ctx, name)
		return err
	})
	return desc, err
}

func (d *Dao) ListRegions(ctx context.Context, tableName string) ([]admin.Region, error) {
	var regions []admin.Region
	err := d.withAdminTable(ctx, "list regions", tableName, func(a *admin.Admin, name storage.TableName) error {
		var err error
		regions, err = a.ListRegions(ctx, name)
		return err
	})
	return regions, err
}

func (d *Dao) ListTableNames(ctx context.Context) ([]storage.TableName, error) {
	var names []storage.TableName
	err := d.withAdmin(ctx, "list tables", "", func(a *admin.Admin) error {
		var err error
		names, err = a.ListTableNames(ctx)
		return err
	})
	return names, err
}

func (d *Dao) CreateNamespace(ctx context.Context, namespace string) error {
	return d.withAdmin(ctx, "create namespace", namespace, func(a *admin.Admin) error {
		return a.CreateNamespace(ctx, namespace)
	})
}

func (d *Dao) DeleteNamespace(ctx context.Context, namespace string) error {
	return d.withAdmin(ctx, "delete namespace", namespace, func(a *admin.Admin) error {
		return a.DeleteNamespace(ctx, namespace)
	})
}

func (d *Dao) ListNamespaces(ctx context.Context) ([]storage.Namespace, error) {
	var namespaces []storage.Namespace
	err := d.withAdmin(ctx, "list namespaces", "", func(a *admin.Admin) error {
		var err error
		namespaces, err = a.ListNamespaces(ctx)
		return err
	})
	return namespaces, err
}

func (d *Dao) NamespaceExists(ctx context.Context, namespace string) (bool, error) {
	var exists bool
	err := d.withAdmin(ctx, "namespace exists", namespace, func(a *admin.Admin) error {
		var err error
		exists, err = a.NamespaceExists(ctx, namespace)
		return err
	})
	return exists, err
}

func (d *Dao) ListTableNamesByNamespace(ctx context.Context, namespace string) ([]storage.TableName, error) {
	var names []storage.TableName
	err := d.withAdmin(ctx, "list tables by namespace", namespace, func(a *admin.Admin) error {
		var err error
		names, err = a.ListTableNamesByNamespace(ctx, namespace)
		return err
	})
	return names, err
}

func (d *Dao) AddData(ctx context.Context, tableName string, m *table.Mutation) error {
	return d.withTable(ctx, "add data", tableName, func(t *table.Table) error {
		return t.Put(ctx, m)
	})
}

// AddDataBatch writes the mutations synchronously, a *table.PartialWriteError lists the failed rows.
func (d *Dao) AddDataBatch(ctx context.Context, tableName string, mutations []*table.Mutation) error {
	return d.withTable(ctx, "add data batch", tableName, func(t *table.Table) error {
		return t.PutBatch(ctx, mutations)
	})
}

// AddDataBatchAsync writes the mutations through a buffered mutator and returns after its final flush.
func (d *Dao) AddDataBatchAsync(ctx context.Context, tableName string, mutations []*table.Mutation, bufferBytes int) (err error) {
	begin := time.Now()
	defer func() {
		d.logCost("add data batch async", tableName, begin, err)
	}()

	name, err := storage.ParseTableName(tableName)
	if err != nil {
		return err
	}
	mutator, err := d.conn.NewBufferedMutator(ctx, name, bufferBytes)
	if err != nil {
		return errors.WithMessagef(err, "add data batch async, table:%s", tableName)
	}
	if err := mutator.Mutate(ctx, mutations...); err != nil {
		if closeErr := mutator.Close(ctx); closeErr != nil {
			d.logger.Warn("close buffered mutator failed", zap.String("table", tableName), zap.Error(closeErr))
		}
		return errors.WithMessagef(err, "add data batch async, table:%s", tableName)
	}
	if err := mutator.Close(ctx); err != nil {
		return errors.WithMessagef(err, "add data batch async, table:%s", tableName)
	}
	return nil
}

func (d *Dao) Delete(ctx context.Context, tableName string, row []byte) error {
	return d.withTable(ctx, "delete", tableName, func(t *table.Table) error {
		return t.Delete(ctx, row)
	})
}

func (d *Dao) DeleteRows(ctx context.Context, tableName string, rows [][]byte) error {
	return d.withTable(ctx, "delete rows", tableName, func(t *table.Table) error {
		return t.DeleteMany(ctx, rows)
	})
}

// GetRow returns nil if the row doesn't exist.
func (d *Dao) GetRow(ctx context.Context, tableName string, row []byte, columns []table.Column) (*table.Row, error) {
	var result *table.Row
	err := d.withTable(ctx, "get row", tableName, func(t *table.Table) error {
		var err error
		result, err = t.Get(ctx, row, columns)
		return err
	})
	return result, err
}

func (d *Dao) GetRows(ctx context.Context, tableName string, rows [][]byte, columns []table.Column) ([]*table.Row, error) {
	var results []*table.Row
	err := d.withTable(ctx, "get rows", tableName, func(t *table.Table) error {
		var err error
		results, err = t.GetMany(ctx, rows, columns)
		return err
	})
	return results, err
}

func (d *Dao) GetRowsByStartAndStop(ctx context.Context, tableName string, start, stop []byte) ([]*table.Row, error) {
	return d.Scan(ctx, tableName, &table.ScanRequest{StartRow: start, StopRow: stop})
}

func (d *Dao) GetRowsByFilters(ctx context.Context, tableName string, start, stop []byte, f filter.Filter) ([]*table.Row, error) {
	return d.Scan(ctx, tableName, &table.ScanRequest{StartRow: start, StopRow: stop, Filter: f})
}

func (d *Dao) Scan(ctx context.Context, tableName string, req *table.ScanRequest) ([]*table.Row, error) {
	var rows []*table.Row
	err := d.withTable(ctx, "scan", tableName, func(t *table.Table) error {
		var err error
		rows, err = t.ScanRows(ctx, req)
		return err
	})
	return rows, err
}

// GetLastRow returns the first row of the possibly reversed range scan, nil if the range is empty.
func (d *Dao) GetLastRow(ctx context.Context, tableName string, start, stop []byte, reversed bool) (*table.Row, error) {
	var row *table.Row
	err := d.withTable(ctx, "get last row", tableName, func(t *table.Table) error {
		var err error
		row, err = t.GetLast(ctx, start, stop, reversed)
		return err
	})
	return row, err
}

func (d *Dao) CountRows(ctx context.Context, tableName string) (int64, error) {
	var count int64
	err := d.withTable(ctx, "count rows", tableName, func(t *table.Table) error {
		var err error
		count, err = t.Count(ctx)
		return err
	})
	return count, err
}

// ScanResultByPage returns the page after the cursor and moves the cursor.
func (d *Dao) ScanResultByPage(ctx context.Context, tableName string, cursor *page.Cursor) (*page.Page, error) {
	var p *page.Page
	err := d.withTable(ctx, "scan by page", tableName, func(t *table.Table) error {
		var err error
		p, err = d.paginator.Next(ctx, t, cursor)
		return err
	})
	return p, err
}

// ScanResultByPageIndex jumps to the k-th page, k starts from 1.
func (d *Dao) ScanResultByPageIndex(ctx context.Context, tableName string, q page.Query, k int) (*page.Page, error) {
	var p *page.Page
	err := d.withTable(ctx, "scan by page index", tableName, func(t *table.Table) error {
		var err error
		p, err = d.paginator.Page(ctx, t, q, k)
		return err
	})
	return p, err
}
