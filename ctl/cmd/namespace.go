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

var namespaceCmd = &cobra.Command{
	Use:     "namespace",
	Aliases: []string{"ns"},
	Short:   "Manage the namespaces",
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

var namespaceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the namespaces",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return operation.NamespaceList(cmd.OutOrStdout())
	},
}

var namespaceCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create the namespace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return operation.NamespaceCreate(cmd.OutOrStdout(), args[0])
	},
}

var namespaceDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete the empty namespace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return operation.NamespaceDelete(cmd.OutOrStdout(), args[0])
	},
}

func init() {
	namespaceCmd.AddCommand(namespaceListCmd, namespaceCreateCmd, namespaceDeleteCmd)
	rootCmd.AddCommand(namespaceCmd)
}
