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

// Package admin provisions the namespaces and the tables.
package admin

import (
	"bytes"
	"context"
	"sort"
	"time"

	"github.com/CeresDB/ceresdao/pkg/coderr"
	"github.com/CeresDB/ceresdao/server/id"
	"github.com/CeresDB/ceresdao/server/storage"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

// Admin is safe for concurrent use, it is shared by all the users of a connection.
type Admin struct {
	logger   *zap.Logger
	kv       clientv3.KV
	storage  storage.Storage
	idAlloc  id.Allocator
	rootPath string
}

func New(logger *zap.Logger, kv clientv3.KV, storage storage.Storage, idAlloc id.Allocator, rootPath string) *Admin {
	return &Admin{
		logger:   logger,
		kv:       kv,
		storage:  storage,
		idAlloc:  idAlloc,
		rootPath: rootPath,
	}
}

// CreateTable creates the table with the families and the initial regions, and returns its descriptor.
func (a *Admin) CreateTable(ctx context.Context, req CreateTableRequest) (storage.Table, error) {
	if err := req.Name.Validate(); err != nil {
		return storage.Table{}, err
	}
	families, err := normalizeFamilies(req.Families)
	if err != nil {
		return storage.Table{}, err
	}
	splitKeys, err := normalizeSplitKeys(req.SplitKeys)
	if err != nil {
		return storage.Table{}, err
	}
	if err := a.checkNamespaceExists(ctx, req.Name.Namespace); err != nil {
		return storage.Table{}, err
	}

	existing, exists, err := a.getTable(ctx, req.Name)
	if err != nil {
		return storage.Table{}, err
	}
	if exists {
		if req.OnExists != ReplaceExisting {
			return storage.Table{}, ErrTableExists.WithMessagef("table:%s", req.Name)
		}
		if err := a.dropTable(ctx, existing); err != nil {
			return storage.Table{}, ErrAdmin.WithCausef(err, "replace table:%s", req.Name)
		}
	}

	tableID, err := a.idAlloc.Alloc(ctx)
	if err != nil {
		return storage.Table{}, ErrAdmin.WithCausef(err, "alloc table id, table:%s", req.Name)
	}
	table := storage.Table{
		ID:        storage.TableID(tableID),
		Name:      req.Name,
		Families:  families,
		SplitKeys: splitKeys,
		State:     storage.TableStateEnabled,
		CreatedAt: uint64(time.Now().UnixMilli()),
	}
	if err := a.storage.CreateTable(ctx, storage.CreateTableRequest{Table: table}); err != nil {
		if coderr.Is(err, coderr.TableAlreadyExists) {
			return storage.Table{}, ErrTableExists.WithCausef(err, "table:%s", req.Name)
		}
		return storage.Table{}, err
	}

	a.logger.Info("create table", zap.String("table", req.Name.String()), zap.Uint64("tableID", tableID),
		zap.Int("families", len(families)), zap.Int("regions", len(splitKeys)+1))
	return table, nil
}

// CreateTableWithRegions creates the table with numRegions regions, the split keys are spread evenly between
// startKey and endKey, both of them included.
func (a *Admin) CreateTableWithRegions(ctx context.Context, name storage.TableName, families []storage.ColumnFamily, startKey, endKey []byte, numRegions int, onExists OnExists) (storage.Table, error) {
	splitKeys, err := computeSplitKeys(startKey, endKey, numRegions)
	if err != nil {
		return storage.Table{}, err
	}
	return a.CreateTable(ctx, CreateTableRequest{
		Name:      name,
		Families:  families,
		SplitKeys: splitKeys,
		OnExists:  onExists,
	})
}

// CreateTableBySnappy creates the table whose families are all compressed by snappy and expire after ttlSeconds.
func (a *Admin) CreateTableBySnappy(ctx context.Context, name storage.TableName, familyNames []string, splitKeys [][]byte, onExists OnExists, ttlSeconds uint32) (storage.Table, error) {
	families := make([]storage.ColumnFamily, 0, len(familyNames))
	for _, f := range familyNames {
		families = append(families, storage.ColumnFamily{
			Name:        f,
			Compression: storage.CompressionSnappy,
			TTLSeconds:  ttlSeconds,
		})
	}
	return a.CreateTable(ctx, CreateTableRequest{
		Name:      name,
		Families:  families,
		SplitKeys: splitKeys,
		OnExists:  onExists,
	})
}

// TruncateTable drops all the data of the table and gives it a new id, the families are kept and the split keys
// are dropped. Truncating an absent table does nothing.
func (a *Admin) TruncateTable(ctx context.Context, name storage.TableName) error {
	table, exists, err := a.getTable(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		a.logger.Info("truncate an absent table", zap.String("table", name.String()))
		return nil
	}

	if table.IsEnabled() {
		if table, err = a.transit(ctx, table, eventDisable); err != nil {
			return ErrAdmin.WithCausef(err, "disable table:%s", name)
		}
	}
	if err := a.deleteTableData(ctx, table.ID); err != nil {
		return ErrAdmin.WithCausef(err, "delete data, table:%s", name)
	}

	tableID, err := a.idAlloc.Alloc(ctx)
	if err != nil {
		return ErrAdmin.WithCausef(err, "alloc table id, table:%s", name)
	}
	oldID := table.ID
	table.ID = storage.TableID(tableID)
	table.SplitKeys = nil
	if err := a.storage.UpdateTable(ctx, storage.UpdateTableRequest{Table: table}); err != nil {
		return ErrAdmin.WithCausef(err, "update table:%s", name)
	}
	if _, err := a.transit(ctx, table, eventEnable); err != nil {
		return ErrAdmin.WithCausef(err, "enable table:%s", name)
	}

	a.logger.Info("truncate table", zap.String("table", name.String()), zap.Uint64("oldTableID", uint64(oldID)),
		zap.Uint64("tableID", tableID))
	return nil
}

// DropTable disables and deletes the table with its data, dropping an absent table does nothing.
func (a *Admin) DropTable(ctx context.Context, name storage.TableName) error {
	table, exists, err := a.getTable(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		a.logger.Info("drop an absent table", zap.String("table", name.String()))
		return nil
	}
	if err := a.dropTable(ctx, table); err != nil {
		return ErrAdmin.WithCausef(err, "drop table:%s", name)
	}
	return nil
}

func (a *Admin) dropTable(ctx context.Context, table storage.Table) error {
	var err error
	if table.IsEnabled() {
		if table, err = a.transit(ctx, table, eventDisable); err != nil {
			return err
		}
	}
	_, err = a.transit(ctx, table, eventDelete)
	return err
}

// DeleteTable deletes a disabled table with its data.
func (a *Admin) DeleteTable(ctx context.Context, name storage.TableName) error {
	table, err := a.GetTableDescriptor(ctx, name)
	if err != nil {
		return err
	}
	if table.IsEnabled() {
		return ErrTableNotDisabled.WithMessagef("table:%s", name)
	}
	if _, err := a.transit(ctx, table, eventDelete); err != nil {
		return ErrAdmin.WithCausef(err, "delete table:%s", name)
	}
	return nil
}

// EnableTable enables the table, enabling an enabled table does nothing.
func (a *Admin) EnableTable(ctx context.Context, name storage.TableName) error {
	return a.setTableState(ctx, name, storage.TableStateEnabled, eventEnable)
}

// DisableTable disables the table, disabling a disabled table does nothing.
func (a *Admin) DisableTable(ctx context.Context, name storage.TableName) error {
	return a.setTableState(ctx, name, storage.TableStateDisabled, eventDisable)
}

func (a *Admin) setTableState(ctx context.Context, name storage.TableName, state storage.TableState, event string) error {
	table, err := a.GetTableDescriptor(ctx, name)
	if err != nil {
		return err
	}
	if table.State == state {
		a.logger.Debug("table is already in the state", zap.String("table", name.String()), zap.String("state", string(state)))
		return nil
	}
	if _, err := a.transit(ctx, table, event); err != nil {
		return ErrAdmin.WithCausef(err, "table:%s, event:%s", name, event)
	}
	return nil
}

func (a *Admin) IsTableEnabled(ctx context.Context, name storage.TableName) (bool, error) {
	table, err := a.GetTableDescriptor(ctx, name)
	if err != nil {
		return false, err
	}
	return table.IsEnabled(), nil
}

func (a *Admin) TableExists(ctx context.Context, name storage.TableName) (bool, error) {
	_, exists, err := a.getTable(ctx, name)
	return exists, err
}

// GetTableDescriptor fails with ErrTableNotFound if the table doesn't exist.
func (a *Admin) GetTableDescriptor(ctx context.Context, name storage.TableName) (storage.Table, error) {
	table, exists, err := a.getTable(ctx, name)
	if err != nil {
		return storage.Table{}, err
	}
	if !exists {
		return storage.Table{}, ErrTableNotFound.WithMessagef("table:%s", name)
	}
	return table, nil
}

// ListTableNames returns the names of the tables of all the namespaces.
func (a *Admin) ListTableNames(ctx context.Context) ([]storage.TableName, error) {
	return a.listTableNames(ctx, "")
}

func (a *Admin) listTableNames(ctx context.Context, namespace string) ([]storage.TableName, error) {
	res, err := a.storage.ListTables(ctx, storage.ListTablesRequest{Namespace: namespace})
	if err != nil {
		return nil, err
	}
	names := make([]storage.TableName, 0, len(res.Tables))
	for _, t := range res.Tables {
		names = append(names, t.Name)
	}
	sort.Slice(names, func(i, j int) bool {
		return names[i].String() < names[j].String()
	})
	return names, nil
}

// ListRegions returns the regions of the table in row order.
func (a *Admin) ListRegions(ctx context.Context, name storage.TableName) ([]Region, error) {
	table, err := a.GetTableDescriptor(ctx, name)
	if err != nil {
		return nil, err
	}
	return regionsOf(table.SplitKeys), nil
}

func (a *Admin) getTable(ctx context.Context, name storage.TableName) (storage.Table, bool, error) {
	if err := name.Validate(); err != nil {
		return storage.Table{}, false, err
	}
	res, err := a.storage.GetTable(ctx, storage.GetTableRequest{Name: name})
	if err != nil {
		return storage.Table{}, false, err
	}
	return res.Table, res.Exists, nil
}

// normalizeFamilies validates the families, and makes a TTL not greater than 1 mean no expiration.
func normalizeFamilies(families []storage.ColumnFamily) ([]storage.ColumnFamily, error) {
	if len(families) == 0 {
		return nil, ErrInvalidArgument.WithMessagef("table without column family")
	}

	seen := make(map[string]struct{}, len(families))
	normalized := make([]storage.ColumnFamily, 0, len(families))
	for _, f := range families {
		if err := storage.ValidateFamilyName(f.Name); err != nil {
			return nil, err
		}
		if _, ok := seen[f.Name]; ok {
			return nil, ErrInvalidArgument.WithMessagef("duplicate column family:%s", f.Name)
		}
		seen[f.Name] = struct{}{}

		compression, err := storage.ParseCompression(string(f.Compression))
		if err != nil {
			return nil, err
		}
		ttl := f.TTLSeconds
		if ttl <= 1 {
			ttl = 0
		}
		normalized = append(normalized, storage.ColumnFamily{
			Name:        f.Name,
			Compression: compression,
			TTLSeconds:  ttl,
		})
	}
	return normalized, nil
}

// normalizeSplitKeys sorts and dedups the split keys, an empty split key is invalid.
func normalizeSplitKeys(splitKeys [][]byte) ([][]byte, error) {
	if len(splitKeys) == 0 {
		return nil, nil
	}

	sorted := make([][]byte, 0, len(splitKeys))
	for _, k := range splitKeys {
		if len(k) == 0 {
			return nil, ErrInvalidArgument.WithMessagef("empty split key")
		}
		sorted = append(sorted, bytes.Clone(k))
	}
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i], sorted[j]) < 0
	})

	deduped := sorted[:1]
	for _, k := range sorted[1:] {
		if !bytes.Equal(k, deduped[len(deduped)-1]) {
			deduped = append(deduped, k)
		}
	}
	return deduped, nil
}
