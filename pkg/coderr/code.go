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

package coderr

import "net/http"

type Code int

const (
	Invalid           = Code(-1)
	Ok                = Code(0)
	InvalidParams     = Code(http.StatusBadRequest)
	BadRequest        = Code(http.StatusBadRequest)
	NotFound          = Code(http.StatusNotFound)
	TooManyRequests   = Code(http.StatusTooManyRequests)
	Internal          = Code(http.StatusInternalServerError)
	ErrNotImplemented = Code(http.StatusNotImplemented)

	// HTTPCodeUpperBound is a bound under which any Code should have the same meaning with the http status code.
	HTTPCodeUpperBound = Code(1000)
	PrintHelpUsage     = Code(1001)
	ConfigInvalid      = Code(1002)
	TableAlreadyExists = Code(1003)
	TableNotFound      = Code(1004)
	NamespaceNotFound  = Code(1005)
	NamespaceNotEmpty  = Code(1006)
	TableNotDisabled   = Code(1007)
	AdminFailure       = Code(1008)
	StoreFailure       = Code(1009)
	PartialWrite       = Code(1010)
	ConnectionClosed   = Code(1011)
	TableDisabled      = Code(1012)
)

// ToHTTPCode converts the Code to http code.
// The Code below the HTTPCodeUpperBound has the same meaning as the http status code, and the others are mapped to the
// closest http status.
func (c Code) ToHTTPCode() int {
	if c < HTTPCodeUpperBound {
		return int(c)
	}

	switch c {
	case PrintHelpUsage, ConfigInvalid:
		return http.StatusBadRequest
	case TableAlreadyExists, NamespaceNotEmpty, TableNotDisabled, TableDisabled:
		return http.StatusConflict
	case TableNotFound, NamespaceNotFound:
		return http.StatusNotFound
	case ConnectionClosed:
		return http.StatusServiceUnavailable
	case AdminFailure, StoreFailure, PartialWrite:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

func (c Code) ToInt() int {
	return int(c)
}
