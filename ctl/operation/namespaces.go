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

package operation

import (
	"fmt"
	"io"
	"net/http"
	"net/url"

	httpapi "github.com/CeresDB/ceresdao/server/service/http"
	"github.com/CeresDB/ceresdao/server/storage"
	"github.com/jedib0t/go-pretty/v6/table"
)

func NamespaceList(w io.Writer) error {
	var namespaces []storage.Namespace
	if err := HttpUtil(http.MethodGet, apiURL(APINamespaces), nil, &namespaces); err != nil {
		return err
	}

	t := tableWriter(namespacesListHeader)
	for _, ns := range namespaces {
		t.AppendRow(table.Row{ns.Name, FormatTimeMilli(int64(ns.CreatedAt))})
	}
	render(w, t)
	return nil
}

func NamespaceCreate(w io.Writer, name string) error {
	req := httpapi.CreateNamespaceRequest{Name: name}
	if err := HttpUtil(http.MethodPost, apiURL(APINamespaces), req, nil); err != nil {
		return err
	}
	fmt.Fprintf(w, "namespace %s is created\n", name)
	return nil
}

func NamespaceDelete(w io.Writer, name string) error {
	if err := HttpUtil(http.MethodDelete, apiURL(APINamespaces+"/"+url.PathEscape(name)), nil, nil); err != nil {
		return err
	}
	fmt.Fprintf(w, "namespace %s is deleted\n", name)
	return nil
}
