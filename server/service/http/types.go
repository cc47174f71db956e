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

import (
	"net/http"

	"github.com/CeresDB/ceresdao/pkg/coderr"
	"github.com/CeresDB/ceresdao/server/admin"
	"github.com/CeresDB/ceresdao/server/filter"
	"github.com/CeresDB/ceresdao/server/page"
	"github.com/CeresDB/ceresdao/server/storage"
	"github.com/CeresDB/ceresdao/server/table"
)

const (
	statusSuccess string = "success"
	statusError   string = "error"

	namespaceParam string = "namespace"
	tableParam     string = "table"
	rowParam       string = "row"
	columnQuery    string = "column"

	requestIDHeader string = "X-Request-Id"

	apiPrefix string = "/api/v1"
)

type response struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
	Msg    string      `json:"msg,omitempty"`
}

type apiFuncResult struct {
	data   interface{}
	code   coderr.Code
	err    error
	errMsg string
}

func okResult(data interface{}) apiFuncResult {
	return apiFuncResult{
		data:   data,
		code:   coderr.Ok,
		err:    nil,
		errMsg: "",
	}
}

// errResult takes the code from the cause of err, the errors without a code are internal.
func errResult(err error, errMsg string) apiFuncResult {
	code, ok := coderr.GetCauseCode(err)
	if !ok {
		code = coderr.Internal
	}
	return apiFuncResult{
		data:   nil,
		code:   code,
		err:    err,
		errMsg: errMsg,
	}
}

type apiFunc func(r *http.Request) apiFuncResult

type CreateNamespaceRequest struct {
	Name string `json:"name"`
}

type FamilySpec struct {
	Name        string `json:"name"`
	Compression string `json:"compression"`
	TTLSeconds  uint32 `json:"ttlSeconds"`
}

// RegionsSpec pre-splits the table into NumRegions regions between StartKey and EndKey.
type RegionsSpec struct {
	StartKey   string `json:"startKey"`
	EndKey     string `json:"endKey"`
	NumRegions int    `json:"numRegions"`
}

type CreateTableRequest struct {
	Table     string       `json:"table"`
	Families  []FamilySpec `json:"families"`
	SplitKeys []string     `json:"splitKeys"`
	Regions   *RegionsSpec `json:"regions"`
	// OnExists is either `fail` or `replace`, empty means `fail`.
	OnExists string `json:"onExists"`
}

func parseOnExists(s string) (admin.OnExists, error) {
	switch s {
	case "", admin.FailIfExists.String():
		return admin.FailIfExists, nil
	case admin.ReplaceExisting.String():
		return admin.ReplaceExisting, nil
	}
	return admin.FailIfExists, ErrParseRequest.WithMessagef("unknown onExists:%s", s)
}

func (r CreateTableRequest) families() ([]storage.ColumnFamily, error) {
	families := make([]storage.ColumnFamily, 0, len(r.Families))
	for _, f := range r.Families {
		compression, err := storage.ParseCompression(f.Compression)
		if err != nil {
			return nil, err
		}
		families = append(families, storage.ColumnFamily{
			Name:        f.Name,
			Compression: compression,
			TTLSeconds:  f.TTLSeconds,
		})
	}
	return families, nil
}

type CellData struct {
	Family    string `json:"family"`
	Qualifier string `json:"qualifier"`
	Value     string `json:"value"`
}

type RowData struct {
	Key   string     `json:"key"`
	Cells []CellData `json:"cells"`
}

func (r RowData) mutation() *table.Mutation {
	m := table.NewMutation([]byte(r.Key))
	for _, c := range r.Cells {
		m.Add(c.Family, c.Qualifier, []byte(c.Value))
	}
	return m
}

func rowData(row *table.Row) *RowData {
	if row == nil {
		return nil
	}
	data := &RowData{Key: string(row.Key), Cells: make([]CellData, 0, len(row.Cells))}
	for _, c := range row.Cells {
		data.Cells = append(data.Cells, CellData{
			Family:    string(c.Family),
			Qualifier: string(c.Qualifier),
			Value:     string(c.Value),
		})
	}
	return data
}

func rowsData(rows []*table.Row) []*RowData {
	data := make([]*RowData, 0, len(rows))
	for _, row := range rows {
		data = append(data, rowData(row))
	}
	return data
}

type PutRowsRequest struct {
	Rows []RowData `json:"rows"`
	// Async writes the rows through a buffered mutator of BufferBytes.
	Async       bool `json:"async"`
	BufferBytes int  `json:"bufferBytes"`
}

type GetRowsRequest struct {
	Rows    []string `json:"rows"`
	Columns []string `json:"columns"`
}

type DeleteRowsRequest struct {
	Rows []string `json:"rows"`
}

type FailedRowData struct {
	Row   string `json:"row"`
	Error string `json:"error"`
}

// FilterSpec is the json form of a filter. Type is one of `row`, `singleColumnValue`, `list` and `page`.
type FilterSpec struct {
	Type string `json:"type"`

	Op string `json:"op,omitempty"`
	// Comparator is one of `binary`, `binaryPrefix`, `regex` and `substring`.
	Comparator      string `json:"comparator,omitempty"`
	Value           string `json:"value,omitempty"`
	Family          string `json:"family,omitempty"`
	Qualifier       string `json:"qualifier,omitempty"`
	FilterIfMissing bool   `json:"filterIfMissing,omitempty"`

	// Operator is `AND` or `OR`.
	Operator string        `json:"operator,omitempty"`
	Filters  []*FilterSpec `json:"filters,omitempty"`

	Size int `json:"size,omitempty"`
}

func (s *FilterSpec) comparator() (filter.Comparator, error) {
	switch s.Comparator {
	case "", "binary":
		return filter.NewBinaryComparator([]byte(s.Value)), nil
	case "binaryPrefix":
		return filter.NewBinaryPrefixComparator([]byte(s.Value)), nil
	case "regex":
		cmp, err := filter.NewRegexComparator(s.Value)
		if err != nil {
			return nil, err
		}
		return cmp, nil
	case "substring":
		return filter.NewSubstringComparator(s.Value), nil
	}
	return nil, filter.ErrInvalidComparator.WithMessagef("comparator:%s", s.Comparator)
}

// Build returns the filter described by s, a nil FilterSpec builds a nil filter.
func (s *FilterSpec) Build() (filter.Filter, error) {
	if s == nil {
		return nil, nil
	}

	switch s.Type {
	case "row":
		op, err := filter.ParseCompareOp(s.Op)
		if err != nil {
			return nil, err
		}
		cmp, err := s.comparator()
		if err != nil {
			return nil, err
		}
		return filter.NewRowFilter(op, cmp), nil
	case "singleColumnValue":
		op, err := filter.ParseCompareOp(s.Op)
		if err != nil {
			return nil, err
		}
		cmp, err := s.comparator()
		if err != nil {
			return nil, err
		}
		return filter.NewSingleColumnValueFilter([]byte(s.Family), []byte(s.Qualifier), op, cmp, s.FilterIfMissing), nil
	case "list":
		operator := filter.MustPassAll
		switch s.Operator {
		case "", filter.MustPassAll.String():
		case filter.MustPassOne.String():
			operator = filter.MustPassOne
		default:
			return nil, filter.ErrInvalidFilter.WithMessagef("unknown list operator:%s", s.Operator)
		}
		children := make([]filter.Filter, 0, len(s.Filters))
		for _, child := range s.Filters {
			f, err := child.Build()
			if err != nil {
				return nil, err
			}
			children = append(children, f)
		}
		return filter.NewList(operator, children...), nil
	case "page":
		if s.Size < 1 {
			return nil, filter.ErrInvalidFilter.WithMessagef("page size must be positive, actual:%d", s.Size)
		}
		return filter.NewPageFilter(s.Size), nil
	}
	return nil, filter.ErrInvalidFilter.WithMessagef("unknown filter type:%s", s.Type)
}

type ScanRequest struct {
	StartRow string      `json:"startRow"`
	StopRow  string      `json:"stopRow"`
	Columns  []string    `json:"columns"`
	Filter   *FilterSpec `json:"filter"`
	Reversed bool        `json:"reversed"`
	Limit    int         `json:"limit"`
}

// PageRequest asks for the page Index of the query. With NextPageRowKey set it continues a scan instead, Index is
// then the index of the last returned page.
type PageRequest struct {
	StartRow       string      `json:"startRow"`
	StopRow        string      `json:"stopRow"`
	Columns        []string    `json:"columns"`
	Filter         *FilterSpec `json:"filter"`
	PageSize       int         `json:"pageSize"`
	Index          int         `json:"index"`
	NextPageRowKey string      `json:"nextPageRowKey"`
}

type PageData struct {
	Index          int        `json:"index"`
	Rows           []*RowData `json:"rows"`
	ThisPageRowKey string     `json:"thisPageRowKey"`
	NextPageRowKey string     `json:"nextPageRowKey"`
	Done           bool       `json:"done"`
}

func pageData(p *page.Page) PageData {
	return PageData{
		Index:          p.Index,
		Rows:           rowsData(p.Rows),
		ThisPageRowKey: string(p.ThisPageRowKey),
		NextPageRowKey: string(p.NextPageRowKey),
		Done:           p.Done,
	}
}

type TableData struct {
	ID        uint64                 `json:"id"`
	Name      string                 `json:"name"`
	Families  []storage.ColumnFamily `json:"families"`
	SplitKeys []string               `json:"splitKeys"`
	State     storage.TableState     `json:"state"`
	CreatedAt uint64                 `json:"createdAt"`
}

func tableData(t storage.Table) TableData {
	splitKeys := make([]string, 0, len(t.SplitKeys))
	for _, k := range t.SplitKeys {
		splitKeys = append(splitKeys, string(k))
	}
	return TableData{
		ID:        uint64(t.ID),
		Name:      t.Name.String(),
		Families:  t.Families,
		SplitKeys: splitKeys,
		State:     t.State,
		CreatedAt: t.CreatedAt,
	}
}

type RegionData struct {
	Index    int    `json:"index"`
	StartKey string `json:"startKey"`
	EndKey   string `json:"endKey"`
}

type UpdateFlowLimiterRequest struct {
	Limit  int  `json:"limit"`
	Burst  int  `json:"burst"`
	Enable bool `json:"enable"`
}

// bytesOrNil maps the empty string to nil, that is an unbounded row key.
func bytesOrNil(s string) []byte {
	if len(s) == 0 {
		return nil
	}
	return []byte(s)
}
