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

import "github.com/CeresDB/ceresdao/pkg/coderr"

var (
	ErrParseRequest        = coderr.NewCodeErrorDef(coderr.BadRequest, "parse request params")
	ErrHealthCheck         = coderr.NewCodeErrorDef(coderr.Internal, "server health check")
	ErrFlowLimiterNotFound = coderr.NewCodeErrorDef(coderr.NotFound, "flow limiter not found")
	ErrUpdateFlowLimiter   = coderr.NewCodeErrorDef(coderr.Internal, "update flow limiter")
	ErrRowNotFound         = coderr.NewCodeErrorDef(coderr.NotFound, "row not found")
)
