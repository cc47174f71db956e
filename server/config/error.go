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

package config

import (
	"github.com/CeresDB/ceresdao/pkg/coderr"
)

var (
	ErrHelpRequested      = coderr.NewCodeErrorDef(coderr.PrintHelpUsage, "help requested")
	ErrInvalidCommandArgs = coderr.NewCodeErrorDef(coderr.InvalidParams, "invalid command arguments")
	ErrConfig             = coderr.NewCodeErrorDef(coderr.ConfigInvalid, "invalid config")
	ErrLoadConfigFile     = coderr.NewCodeErrorDef(coderr.ConfigInvalid, "load config file")
	ErrLoadConfigEnv      = coderr.NewCodeErrorDef(coderr.ConfigInvalid, "load config from environment")
)
