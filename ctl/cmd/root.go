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
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/CeresDB/ceresdao/ctl/operation"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:           "daoctl",
	Short:         "daoctl is a command line tool for the ceresdao http service",
	SilenceUsage:  true,
	SilenceErrors: true,
	Run:           func(cmd *cobra.Command, args []string) {},
}

// Execute runs the command given by the arguments, and then reads the following commands from stdin until it is
// closed.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	for _, arg := range os.Args {
		if arg == "-h" || arg == "--help" {
			os.Exit(0)
		}
	}

	for {
		printPrompt(viper.GetString(operation.RootAddr))
		err := ReadArgs(os.Stdin)
		if errors.Is(err, io.EOF) {
			fmt.Println()
			return
		}
		if err != nil {
			fmt.Println(err)
			continue
		}
		resetFlags(rootCmd)
		if err = rootCmd.Execute(); err != nil {
			fmt.Println(err)
			os.Args = []string{}
		}
	}
}

func init() {
	rootCmd.PersistentFlags().String(operation.RootAddr, "127.0.0.1:8080", "address of the ceresdao http service")
	_ = viper.BindPFlag(operation.RootAddr, rootCmd.PersistentFlags().Lookup(operation.RootAddr))

	rootCmd.CompletionOptions = cobra.CompletionOptions{
		DisableDefaultCmd:   true,
		DisableNoDescFlag:   true,
		DisableDescriptions: true,
		HiddenDefaultCmd:    true,
	}
}

func printPrompt(address string) {
	fmt.Printf("%s > ", address)
}

// resetFlags restores the local flags of the sub commands, so a command read later doesn't inherit the flags of the
// previous one. The persistent flags of the root are kept.
func resetFlags(cmd *cobra.Command) {
	for _, c := range cmd.Commands() {
		c.Flags().VisitAll(func(f *pflag.Flag) {
			if !f.Changed {
				return
			}
			if sv, ok := f.Value.(pflag.SliceValue); ok {
				_ = sv.Replace(nil)
			} else {
				_ = f.Value.Set(f.DefValue)
			}
			f.Changed = false
		})
		resetFlags(c)
	}
}

// ReadArgs Forked from https://github.com/apache/incubator-seata-ctl/blob/8427314e04cdc435b925ed41573b37e3addeea34/action/common/args.go#L29
// It returns io.EOF if the input is closed before any line is read.
func ReadArgs(in io.Reader) error {
	os.Args = []string{""}

	scanner := bufio.NewScanner(in)

	var lines []string

	read := false
	for scanner.Scan() {
		read = true
		line := strings.Trim(scanner.Text(), "\r\n ")
		if line == "" {
			return nil
		}
		if line[len(line)-1] == '\\' {
			line = line[:len(line)-1]
			lines = append(lines, line)
		} else {
			lines = append(lines, line)
			break
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.WithMessage(err, "read args from input")
	}
	if !read {
		return io.EOF
	}

	argsStr := strings.Join(lines, " ")
	rawArgs := strings.Split(argsStr, "'")

	if len(rawArgs) != 1 && len(rawArgs) != 3 {
		return errors.New("read args from input error")
	}

	args := strings.Split(rawArgs[0], " ")

	if len(rawArgs) == 3 {
		args = append(args, rawArgs[1])
		args = append(args, strings.Split(rawArgs[2], " ")...)
	}

	for _, arg := range args {
		if arg != "" {
			os.Args = append(os.Args, strings.TrimSpace(arg))
		}
	}
	return nil
}
