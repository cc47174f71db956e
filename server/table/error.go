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

package table

import (
	"fmt"

	"github.com/CeresDB/ceresdao/pkg/coderr"
)

var (
	ErrInvalidArgument = coderr.NewCodeErrorDef(coderr.InvalidParams, "invalid argument")
	ErrUnknownFamily   = coderr.NewCodeErrorDef(coderr.InvalidParams, "unknown column family")
	ErrStore           = coderr.NewCodeErrorDef(coderr.StoreFailure, "store operation")
	ErrFlowLimited     = coderr.NewCodeErrorDef(coderr.TooManyRequests, "write flow limited")
	ErrTableClosed     = coderr.NewCodeErrorDef(coderr.Internal, "table handle is closed")
	ErrMutatorClosed   = coderr.NewCodeErrorDef(coderr.Internal, "buffered mutator is closed")
	ErrDecodeCell      = coderr.NewCodeErrorDef(coderr.Internal, "decode cell")
)

// FailedRow is a row whose write was not acknowledged.
type FailedRow struct {
	Row []byte
	Err error
}

// PartialWriteError lists the rows of a batch write which failed, the other rows are durable.
type PartialWriteError struct {
	FailedRows []FailedRow
}

func (e *PartialWriteError) Error() string {
	if len(e.FailedRows) == 0 {
		return fmt.Sprintf("[err_code=%d]partial write", coderr.PartialWrite)
	}
	return fmt.Sprintf("[err_code=%d]partial write, failed rows:%d, first row:%q, cause:%v",
		coderr.PartialWrite, len(e.FailedRows), e.FailedRows[0].Row, e.FailedRows[0].Err)
}

func (e *PartialWriteError) Code() coderr.Code {
	return coderr.PartialWrite
}
