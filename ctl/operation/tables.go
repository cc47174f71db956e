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
	"github.com/jedib0t/go-pretty/v6/table"
)

// TableList lists the tables of the namespace, or all the tables if namespace is empty.
func TableList(w io.Writer, namespace string) error {
	u := apiURL(APITables)
	if len(namespace) > 0 {
		u = apiURL(APINamespaces + "/" + url.PathEscape(namespace) + "/tables")
	}
	var names []string
	if err := HttpUtil(http.MethodGet, u, nil, &names); err != nil {
		return err
	}

	t := tableWriter(tablesListHeader)
	for _, name := range names {
		t.AppendRow(table.Row{name})
	}
	render(w, t)
	return nil
}

func TableDescribe(w io.Writer, tableName string) error {
	var desc httpapi.TableData
	if err := HttpUtil(http.MethodGet, tableURL(tableName, ""), nil, &desc); err != nil {
		return err
	}
	var regions []httpapi.RegionData
	if err := HttpUtil(http.MethodGet, tableURL(tableName, "/regions"), nil, &regions); err != nil {
		return err
	}

	fmt.Fprintf(w, "table:%s, id:%d, state:%s, createdAt:%s\n", desc.Name, desc.ID, desc.State,
		FormatTimeMilli(int64(desc.CreatedAt)))
	families := tableWriter(tableFamiliesHeader)
	for _, f := range desc.Families {
		families.AppendRow(table.Row{f.Name, f.Compression, f.TTLSeconds})
	}
	render(w, families)

	t := tableWriter(tableRegionsHeader)
	for _, r := range regions {
		t.AppendRow(table.Row{r.Index, fmt.Sprintf("%q", r.StartKey), fmt.Sprintf("%q", r.EndKey)})
	}
	render(w, t)
	return nil
}

func TableDrop(w io.Writer, tableName string) error {
	if err := HttpUtil(http.MethodDelete, tableURL(tableName, ""), nil, nil); err != nil {
		return err
	}
	fmt.Fprintf(w, "table %s is dropped\n", tableName)
	return nil
}

func TableTruncate(w io.Writer, tableName string) error {
	if err := HttpUtil(http.MethodPost, tableURL(tableName, "/truncate"), nil, nil); err != nil {
		return err
	}
	fmt.Fprintf(w, "table %s is truncated\n", tableName)
	return nil
}
