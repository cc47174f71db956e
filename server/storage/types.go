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

package storage

import (
	"strings"
	"unicode"
)

type TableID uint64

// Compression is the algorithm applied to the cell values of a column family.
type Compression string

const (
	CompressionNone   Compression = "NONE"
	CompressionSnappy Compression = "SNAPPY"
	CompressionGzip   Compression = "GZ"
	CompressionLZ4    Compression = "LZ4"
	CompressionZstd   Compression = "ZSTD"
)

// ParseCompression parses the algorithm name case-insensitively, an empty name means no compression.
func ParseCompression(name string) (Compression, error) {
	if len(name) == 0 {
		return CompressionNone, nil
	}

	c := Compression(strings.ToUpper(name))
	switch c {
	case CompressionNone, CompressionSnappy, CompressionGzip, CompressionLZ4, CompressionZstd:
		return c, nil
	case "GZIP":
		return CompressionGzip, nil
	}
	return CompressionNone, ErrInvalidCompression.WithMessagef("compression:%s", name)
}

type TableState string

const (
	TableStateEnabled  TableState = "ENABLED"
	TableStateDisabled TableState = "DISABLED"
)

const (
	DefaultNamespace = "default"
	SystemNamespace  = "system"

	tableNameSeparator = ":"
)

// BuiltinNamespaces always exist and can not be deleted.
var BuiltinNamespaces = []string{DefaultNamespace, SystemNamespace}

func IsBuiltinNamespace(name string) bool {
	for _, ns := range BuiltinNamespaces {
		if ns == name {
			return true
		}
	}
	return false
}

type TableName struct {
	Namespace string `json:"namespace"`
	Qualifier string `json:"qualifier"`
}

// ParseTableName parses the textual form `namespace:qualifier`, a name without namespace belongs to the default
// namespace.
func ParseTableName(name string) (TableName, error) {
	tableName := TableName{Namespace: DefaultNamespace, Qualifier: name}
	if idx := strings.Index(name, tableNameSeparator); idx >= 0 {
		tableName = TableName{Namespace: name[:idx], Qualifier: name[idx+1:]}
	}

	if err := ValidateNamespaceName(tableName.Namespace); err != nil {
		return TableName{}, err
	}
	if err := validateQualifier(tableName.Qualifier); err != nil {
		return TableName{}, err
	}
	return tableName, nil
}

func (n TableName) Validate() error {
	if err := ValidateNamespaceName(n.Namespace); err != nil {
		return err
	}
	return validateQualifier(n.Qualifier)
}

func (n TableName) String() string {
	if n.Namespace == DefaultNamespace {
		return n.Qualifier
	}
	return n.Namespace + tableNameSeparator + n.Qualifier
}

// ValidateNamespaceName accepts the names made of letters, digits and underscores.
func ValidateNamespaceName(name string) error {
	if len(name) == 0 {
		return ErrInvalidNamespaceName.WithMessagef("empty namespace")
	}
	for _, r := range name {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			return ErrInvalidNamespaceName.WithMessagef("namespace:%s", name)
		}
	}
	return nil
}

func validateQualifier(qualifier string) error {
	if len(qualifier) == 0 {
		return ErrInvalidTableName.WithMessagef("empty table qualifier")
	}
	if qualifier[0] == '.' || qualifier[0] == '-' {
		return ErrInvalidTableName.WithMessagef("qualifier can not start with '.' or '-', qualifier:%s", qualifier)
	}
	for _, r := range qualifier {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' || r == '-') {
			return ErrInvalidTableName.WithMessagef("qualifier:%s", qualifier)
		}
	}
	return nil
}

type Namespace struct {
	Name      string `json:"name"`
	CreatedAt uint64 `json:"createdAt"`
}

type ColumnFamily struct {
	Name        string      `json:"name"`
	Compression Compression `json:"compression"`
	// TTLSeconds is 0 when the cells never expire.
	TTLSeconds uint32 `json:"ttlSeconds"`
}

// ValidateFamilyName accepts non-empty printable ascii names without ':'.
func ValidateFamilyName(name string) error {
	if len(name) == 0 {
		return ErrInvalidColumnFamily.WithMessagef("empty family name")
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < 0x21 || c > 0x7e || c == ':' {
			return ErrInvalidColumnFamily.WithMessagef("family:%q", name)
		}
	}
	return nil
}

type Table struct {
	ID        TableID        `json:"id"`
	Name      TableName      `json:"name"`
	Families  []ColumnFamily `json:"families"`
	SplitKeys [][]byte       `json:"splitKeys,omitempty"`
	State     TableState     `json:"state"`
	CreatedAt uint64         `json:"createdAt"`
}

func (t Table) IsEnabled() bool {
	return t.State == TableStateEnabled
}

func (t Table) Family(name string) (ColumnFamily, bool) {
	for _, f := range t.Families {
		if f.Name == name {
			return f, true
		}
	}
	return ColumnFamily{}, false
}

type CreateNamespaceRequest struct {
	Namespace Namespace
}

type GetNamespaceResult struct {
	Namespace Namespace
	Exists    bool
}

type ListNamespacesResult struct {
	Namespaces []Namespace
}

type DeleteNamespaceRequest struct {
	Name string
}

type CreateTableRequest struct {
	Table Table
}

type GetTableRequest struct {
	Name TableName
}

type GetTableResult struct {
	Table  Table
	Exists bool
}

type ListTablesRequest struct {
	// Namespace is empty to list the tables of all the namespaces.
	Namespace string
}

type ListTablesResult struct {
	Tables []Table
}

type UpdateTableRequest struct {
	Table Table
}

type DeleteTableRequest struct {
	Name TableName
}
