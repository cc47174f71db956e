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

package cmd

import (
	"github.com/CeresDB/ceresdao/ctl/operation"
	"github.com/spf13/cobra"
)

const defaultScanPageSize = 20

var scanOpts = operation.ScanOptions{
	StartRow: "",
	StopRow:  "",
	Columns:  nil,
	PageSize: defaultScanPageSize,
	Page:     1,
	All:      false,
}

var scanCmd = &cobra.Command{
	Use:   "scan TABLE",
	Short: "Scan the rows of the table page by page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := operation.Scan(cmd.OutOrStdout(), args[0], scanOpts)
		return err
	},
}

func init() {
	flags := scanCmd.Flags()
	flags.StringVar(&scanOpts.StartRow, "start", "", "first row key of the scan, inclusive")
	flags.StringVar(&scanOpts.StopRow, "stop", "", "last row key of the scan, exclusive")
	flags.StringSliceVar(&scanOpts.Columns, "column", nil, "columns to return, in the form family or family:qualifier")
	flags.IntVarP(&scanOpts.PageSize, "page-size", "s", defaultScanPageSize, "rows of a page")
	flags.IntVarP(&scanOpts.Page, "page", "p", 1, "the page to print, starting from 1")
	flags.BoolVarP(&scanOpts.All, "all", "a", false, "print all the pages from the page on")
	rootCmd.AddCommand(scanCmd)
}
