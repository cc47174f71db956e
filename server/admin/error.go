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

import "github.com/CeresDB/ceresdao/pkg/coderr"

var (
	ErrInvalidArgument   = coderr.NewCodeErrorDef(coderr.InvalidParams, "invalid argument")
	ErrTableExists       = coderr.NewCodeErrorDef(coderr.TableAlreadyExists, "table already exists")
	ErrTableNotFound     = coderr.NewCodeErrorDef(coderr.TableNotFound, "table not found")
	ErrTableNotDisabled  = coderr.NewCodeErrorDef(coderr.TableNotDisabled, "table is not disabled")
	ErrNamespaceNotFound = coderr.NewCodeErrorDef(coderr.NamespaceNotFound, "namespace not found")
	ErrNamespaceNotEmpty = coderr.NewCodeErrorDef(coderr.NamespaceNotEmpty, "namespace is not empty")
	ErrBuiltinNamespace  = coderr.NewCodeErrorDef(coderr.InvalidParams, "builtin namespace can not be deleted")
	ErrAdmin             = coderr.NewCodeErrorDef(coderr.AdminFailure, "admin operation")
	ErrInvalidTransition = coderr.NewCodeErrorDef(coderr.Internal, "invalid table state transition")
	ErrGetRequest        = coderr.NewCodeErrorDef(coderr.Internal, "get request from event")
)
