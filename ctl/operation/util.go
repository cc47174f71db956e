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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const requestTimeout = 30 * time.Second

type response struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
	Msg    string          `json:"msg"`
}

func tableWriter(headers []string) table.Writer {
	header := table.Row{}
	for _, s := range headers {
		header = append(header, s)
	}
	t := table.NewWriter()
	t.AppendHeader(header)
	return t
}

func apiURL(path string) string {
	return HTTP + viper.GetString(RootAddr) + path
}

func tableURL(tableName, suffix string) string {
	return apiURL(APITables + "/" + url.PathEscape(tableName) + suffix)
}

// HttpUtil sends the request with body encoded as json, and decodes the data of a successful response into data.
func HttpUtil(method, url string, body interface{}, data interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.WithMessage(err, "encode request")
		}
		reader = bytes.NewReader(b)
	}

	request, err := http.NewRequest(method, url, reader)
	if err != nil {
		return errors.WithMessagef(err, "build request, url:%s", url)
	}
	request.Header.Set("Content-Type", "application/json")
	resp, err := (&http.Client{Timeout: requestTimeout}).Do(request)
	if err != nil {
		return errors.WithMessagef(err, "send request, url:%s", url)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WithMessagef(err, "read response, url:%s", url)
	}

	var r response
	if err := json.Unmarshal(b, &r); err != nil {
		return errors.WithMessagef(err, "decode response, status code:%d, body:%s", resp.StatusCode, b)
	}
	if r.Status != "success" {
		return errors.Errorf("request failed, status code:%d, error:%s, msg:%s", resp.StatusCode, r.Error, r.Msg)
	}
	if data != nil && len(r.Data) > 0 {
		if err := json.Unmarshal(r.Data, data); err != nil {
			return errors.WithMessage(err, "decode response data")
		}
	}
	return nil
}

func FormatTimeMilli(milli int64) string {
	return time.UnixMilli(milli).Format("2006-01-02 15:04:05.000")
}

func render(w io.Writer, t table.Writer) {
	fmt.Fprintln(w, t.Render())
}
