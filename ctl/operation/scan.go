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

	httpapi "github.com/CeresDB/ceresdao/server/service/http"
	"github.com/jedib0t/go-pretty/v6/table"
)

type ScanOptions struct {
	StartRow string
	StopRow  string
	Columns  []string
	PageSize int
	// Page is the first page to print, starting from 1.
	Page int
	// All prints all the pages from Page on.
	All bool
}

func fetchPage(tableName string, req httpapi.PageRequest) (httpapi.PageData, error) {
	var p httpapi.PageData
	err := HttpUtil(http.MethodPost, tableURL(tableName, "/page"), req, &p)
	return p, err
}

func printPage(w io.Writer, p httpapi.PageData) {
	t := tableWriter(scanRowsHeader)
	for _, row := range p.Rows {
		for i, c := range row.Cells {
			key := ""
			if i == 0 {
				key = row.Key
			}
			t.AppendRow(table.Row{key, c.Family + ":" + c.Qualifier, c.Value})
		}
		t.AppendSeparator()
	}
	t.SetTitle(fmt.Sprintf("page %d", p.Index))
	render(w, t)
	if p.Done {
		fmt.Fprintf(w, "page %d, rows:%d, no more pages\n", p.Index, len(p.Rows))
		return
	}
	fmt.Fprintf(w, "page %d, rows:%d, next page starts from %q\n", p.Index, len(p.Rows), p.NextPageRowKey)
}

// Scan prints the pages of the range scan, it returns the number of the printed rows.
func Scan(w io.Writer, tableName string, opts ScanOptions) (int, error) {
	req := httpapi.PageRequest{
		StartRow:       opts.StartRow,
		StopRow:        opts.StopRow,
		Columns:        opts.Columns,
		Filter:         nil,
		PageSize:       opts.PageSize,
		Index:          opts.Page,
		NextPageRowKey: "",
	}
	p, err := fetchPage(tableName, req)
	if err != nil {
		return 0, err
	}
	printPage(w, p)
	printed := len(p.Rows)

	for opts.All && !p.Done {
		req.Index, req.NextPageRowKey = p.Index, p.NextPageRowKey
		if p, err = fetchPage(tableName, req); err != nil {
			return printed, err
		}
		printPage(w, p)
		printed += len(p.Rows)
	}
	return printed, nil
}
