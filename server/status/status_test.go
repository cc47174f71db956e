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

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestServerStatus(t *testing.T) {
	re := require.New(t)

	s := NewServerStatus()
	re.Equal(StatusWaiting, s.Get())
	re.False(s.IsHealthy())

	s.Set(StatusRunning)
	re.True(s.IsHealthy())
	re.Equal("running", s.Get().String())

	s.Set(StatusTerminated)
	re.False(s.IsHealthy())
	re.Equal("terminated", s.Get().String())
	re.Equal("unknown", Status(9).String())
}
