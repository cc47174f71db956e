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
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// parseQuorum splits the comma-separated quorum into etcd endpoints.
// Hosts without a port get defaultPort; items may carry a scheme such as http://.
func parseQuorum(quorum string, defaultPort int) ([]string, error) {
	items := strings.Split(quorum, ",")
	endpoints := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if len(item) == 0 {
			continue
		}

		scheme := ""
		if strings.Contains(item, "://") {
			u, err := url.Parse(item)
			if err != nil {
				return nil, err
			}
			scheme, item = u.Scheme, u.Host
		}

		host, port, err := net.SplitHostPort(item)
		if err != nil {
			// No port in the item.
			host, port = item, strconv.Itoa(defaultPort)
		}
		if len(host) == 0 {
			return nil, fmt.Errorf("empty host in quorum item:%s", item)
		}

		endpoint := net.JoinHostPort(host, port)
		if len(scheme) > 0 {
			endpoint = fmt.Sprintf("%s://%s", scheme, endpoint)
		}
		endpoints = append(endpoints, endpoint)
	}

	return endpoints, nil
}
