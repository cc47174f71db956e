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

var listNamespace string

var tableCmd = &cobra.Command{
	Use:     "table",
	Aliases: []string{"t"},
	Short:   "Manage the tables",
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

var tableListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the tables",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return operation.TableList(cmd.OutOrStdout(), listNamespace)
	},
}

var tableDescribeCmd = &cobra.Command{
	Use:   "describe TABLE",
	Short: "Describe the families and the regions of the table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return operation.TableDescribe(cmd.OutOrStdout(), args[0])
	},
}

var tableDropCmd = &cobra.Command{
	Use:   "drop TABLE",
	Short: "Drop the table and its data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return operation.TableDrop(cmd.OutOrStdout(), args[0])
	},
}

var tableTruncateCmd = &cobra.Command{
	Use:   "truncate TABLE",
	Short: "Remove all the rows of the table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return operation.TableTruncate(cmd.OutOrStdout(), args[0])
	},
}

func init() {
	tableListCmd.Flags().StringVarP(&listNamespace, "namespace", "n", "", "only list the tables of the namespace")
	tableCmd.AddCommand(tableListCmd, tableDescribeCmd, tableDropCmd, tableTruncateCmd)
	rootCmd.AddCommand(tableCmd)
}
