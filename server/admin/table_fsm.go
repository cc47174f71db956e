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
	"errors"

	"github.com/CeresDB/ceresdao/server/etcdutil"
	"github.com/CeresDB/ceresdao/server/storage"
	"github.com/looplab/fsm"
	"go.uber.org/zap"
)

const (
	eventEnable  = "EventEnable"
	eventDisable = "EventDisable"
	eventDelete  = "EventDelete"

	stateEnabled  = string(storage.TableStateEnabled)
	stateDisabled = string(storage.TableStateDisabled)
	stateDeleted  = "DELETED"
)

var (
	tableStateEvents = fsm.Events{
		{Name: eventEnable, Src: []string{stateDisabled}, Dst: stateEnabled},
		{Name: eventDisable, Src: []string{stateEnabled}, Dst: stateDisabled},
		{Name: eventDelete, Src: []string{stateDisabled}, Dst: stateDeleted},
	}
	tableStateCallbacks = fsm.Callbacks{
		"before_" + eventEnable:  updateStateCallback,
		"before_" + eventDisable: updateStateCallback,
		"before_" + eventDelete:  deleteTableCallback,
	}
)

// transitionRequest is the fsm callbacks param.
type transitionRequest struct {
	ctx   context.Context
	admin *Admin
	table storage.Table
}

func cancelEventWithLog(event *fsm.Event, logger *zap.Logger, err error) {
	logger.Error("cancel the table state transition", zap.String("event", event.Event), zap.Error(err))
	event.Cancel(err)
}

func getRequestFromEvent(event *fsm.Event) (*transitionRequest, error) {
	if len(event.Args) != 1 {
		return nil, ErrGetRequest.WithMessagef("event args length must be 1, actual length:%v", len(event.Args))
	}
	req, ok := event.Args[0].(*transitionRequest)
	if !ok {
		return nil, ErrGetRequest.WithMessagef("event arg type must be *transitionRequest")
	}
	return req, nil
}

func updateStateCallback(event *fsm.Event) {
	req, err := getRequestFromEvent(event)
	if err != nil {
		event.Cancel(err)
		return
	}

	updated := req.table
	updated.State = storage.TableState(event.Dst)
	if err := req.admin.storage.UpdateTable(req.ctx, storage.UpdateTableRequest{Table: updated}); err != nil {
		cancelEventWithLog(event, req.admin.logger, err)
		return
	}
	req.table = updated
}

// deleteTableCallback removes the data before the descriptor, so no data is left without descriptor.
func deleteTableCallback(event *fsm.Event) {
	req, err := getRequestFromEvent(event)
	if err != nil {
		event.Cancel(err)
		return
	}

	if err := req.admin.deleteTableData(req.ctx, req.table.ID); err != nil {
		cancelEventWithLog(event, req.admin.logger, err)
		return
	}
	if err := req.admin.storage.DeleteTable(req.ctx, storage.DeleteTableRequest{Name: req.table.Name}); err != nil {
		cancelEventWithLog(event, req.admin.logger, err)
		return
	}
}

// transit moves the table through the event and persists the new state, it returns the updated descriptor.
func (a *Admin) transit(ctx context.Context, table storage.Table, event string) (storage.Table, error) {
	f := fsm.NewFSM(string(table.State), tableStateEvents, tableStateCallbacks)
	req := &transitionRequest{ctx: ctx, admin: a, table: table}
	if err := f.Event(event, req); err != nil {
		var canceled fsm.CanceledError
		if errors.As(err, &canceled) && canceled.Err != nil {
			return storage.Table{}, canceled.Err
		}
		return storage.Table{}, ErrInvalidTransition.WithCausef(err, "table:%s, state:%s, event:%s", table.Name, table.State, event)
	}

	a.logger.Info("table state changed", zap.String("table", table.Name.String()),
		zap.String("from", string(table.State)), zap.String("to", f.Current()))
	return req.table, nil
}

func (a *Admin) deleteTableData(ctx context.Context, tableID storage.TableID) error {
	n, err := etcdutil.DeletePrefix(ctx, a.kv, storage.MakeTableDataPrefix(a.rootPath, tableID))
	if err != nil {
		return err
	}
	a.logger.Debug("delete table data", zap.Uint64("tableID", uint64(tableID)), zap.Int64("keys", n))
	return nil
}
