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

package status

import "sync/atomic"

type Status int32

const (
	StatusWaiting Status = iota
	StatusRunning
	StatusTerminated
)

func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusRunning:
		return "running"
	case StatusTerminated:
		return "terminated"
	}
	return "unknown"
}

// ServerStatus is the lifecycle state of the server shared with its services.
type ServerStatus struct {
	status atomic.Int32
}

func NewServerStatus() *ServerStatus {
	s := &ServerStatus{status: atomic.Int32{}}
	s.Set(StatusWaiting)
	return s
}

func (s *ServerStatus) Set(status Status) {
	s.status.Store(int32(status))
}

func (s *ServerStatus) Get() Status {
	return Status(s.status.Load())
}

func (s *ServerStatus) IsHealthy() bool {
	return s.Get() == StatusRunning
}
