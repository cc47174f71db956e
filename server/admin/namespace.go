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
	"context"
	"time"

	"github.com/CeresDB/ceresdao/server/storage"
	"go.uber.org/zap"
)

// CreateNamespace creates the namespace, creating an existing namespace does nothing.
func (a *Admin) CreateNamespace(ctx context.Context, name string) error {
	if err := storage.ValidateNamespaceName(name); err != nil {
		return err
	}
	exists, err := a.NamespaceExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	ns := storage.Namespace{Name: name, CreatedAt: uint64(time.Now().UnixMilli())}
	if err := a.storage.CreateNamespace(ctx, storage.CreateNamespaceRequest{Namespace: ns}); err != nil {
		// Another client may have created it concurrently.
		if exists, getErr := a.NamespaceExists(ctx, name); getErr == nil && exists {
			return nil
		}
		return err
	}
	a.logger.Info("create namespace", zap.String("namespace", name))
	return nil
}

// DeleteNamespace deletes an empty namespace, the builtin namespaces can not be deleted.
func (a *Admin) DeleteNamespace(ctx context.Context, name string) error {
	if err := storage.ValidateNamespaceName(name); err != nil {
		return err
	}
	if storage.IsBuiltinNamespace(name) {
		return ErrBuiltinNamespace.WithMessagef("namespace:%s", name)
	}
	if err := a.checkNamespaceExists(ctx, name); err != nil {
		return err
	}

	tables, err := a.listTableNames(ctx, name)
	if err != nil {
		return err
	}
	if len(tables) > 0 {
		return ErrNamespaceNotEmpty.WithMessagef("namespace:%s, tables:%d", name, len(tables))
	}

	if err := a.storage.DeleteNamespace(ctx, storage.DeleteNamespaceRequest{Name: name}); err != nil {
		return err
	}
	a.logger.Info("delete namespace", zap.String("namespace", name))
	return nil
}

func (a *Admin) ListNamespaces(ctx context.Context) ([]storage.Namespace, error) {
	res, err := a.storage.ListNamespaces(ctx)
	if err != nil {
		return nil, err
	}
	return res.Namespaces, nil
}

func (a *Admin) NamespaceExists(ctx context.Context, name string) (bool, error) {
	if err := storage.ValidateNamespaceName(name); err != nil {
		return false, err
	}
	res, err := a.storage.GetNamespace(ctx, name)
	if err != nil {
		return false, err
	}
	return res.Exists, nil
}

// ListTableNamesByNamespace fails with ErrNamespaceNotFound if the namespace doesn't exist.
func (a *Admin) ListTableNamesByNamespace(ctx context.Context, namespace string) ([]storage.TableName, error) {
	if err := a.checkNamespaceExists(ctx, namespace); err != nil {
		return nil, err
	}
	return a.listTableNames(ctx, namespace)
}

// EnsureBuiltinNamespaces creates the builtin namespaces if they are absent.
func (a *Admin) EnsureBuiltinNamespaces(ctx context.Context) error {
	for _, ns := range storage.BuiltinNamespaces {
		if err := a.CreateNamespace(ctx, ns); err != nil {
			return err
		}
	}
	return nil
}

func (a *Admin) checkNamespaceExists(ctx context.Context, name string) error {
	exists, err := a.NamespaceExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNamespaceNotFound.WithMessagef("namespace:%s", name)
	}
	return nil
}
