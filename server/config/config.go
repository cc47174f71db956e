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

package config

import (
	"flag"
	"os"
	"time"

	"github.com/CeresDB/ceresdao/pkg/log"
	"github.com/caarlos0/env/v6"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
)

const (
	defaultClientPort                  = 2181
	defaultRootPath                    = "/ceresdao"
	defaultDialTimeoutMs         int64 = 5 * 1000
	defaultRequestTimeoutMs      int64 = 10 * 1000
	defaultScanBatchSize               = 256
	defaultMaxOpsPerTxn                = 128
	defaultWriteBufferBytes            = 5 * 1024 * 1024 // 5MiB
	defaultFlushConcurrency            = 8
	defaultPageBoundaryCacheSize       = 0

	defaultHTTPAddr                 = ":8080"
	defaultHTTPReadTimeoutMs  int64 = 30 * 1000
	defaultHTTPWriteTimeoutMs int64 = 30 * 1000

	defaultEnableLimiter = false
	defaultLimiterLimit  = 10 * 1000
	defaultLimiterBurst  = 10 * 1000

	defaultEnvPrefix = "CERESDAO_"
)

// LimiterConfig controls the client-side write flow limiter.
type LimiterConfig struct {
	// Limit is the updated rate of tokens.
	Limit int `toml:"limit" json:"limit" env:"LIMIT"`
	// Burst is the maximum number of tokens.
	Burst int `toml:"burst" json:"burst" env:"BURST"`
	// Enable is used to control the switch of the limiter.
	Enable bool `toml:"enable" json:"enable" env:"ENABLE"`
}

type Config struct {
	Log     log.Config    `toml:"log" json:"log" envPrefix:"LOG_"`
	Limiter LimiterConfig `toml:"limiter" json:"limiter" envPrefix:"LIMITER_"`

	// QuorumAddress is the comma-separated list of cluster hosts, with or without ports.
	QuorumAddress string `toml:"quorum-address" json:"quorum-address" env:"QUORUM_ADDRESS"`
	// ClientPort is applied to the quorum hosts which carry no port.
	ClientPort int    `toml:"client-port" json:"client-port" env:"CLIENT_PORT"`
	RootPath   string `toml:"root-path" json:"root-path" env:"ROOT_PATH"`

	DialTimeoutMs    int64 `toml:"dial-timeout-ms" json:"dial-timeout-ms" env:"DIAL_TIMEOUT_MS"`
	RequestTimeoutMs int64 `toml:"request-timeout-ms" json:"request-timeout-ms" env:"REQUEST_TIMEOUT_MS"`

	// ScanBatchSize is the number of keys fetched by one range read of a scanner.
	ScanBatchSize int `toml:"scan-batch-size" json:"scan-batch-size" env:"SCAN_BATCH_SIZE"`
	// MaxOpsPerTxn must not exceed the max-txn-ops of the cluster.
	MaxOpsPerTxn     int `toml:"max-ops-per-txn" json:"max-ops-per-txn" env:"MAX_OPS_PER_TXN"`
	WriteBufferBytes int `toml:"write-buffer-bytes" json:"write-buffer-bytes" env:"WRITE_BUFFER_BYTES"`
	FlushConcurrency int `toml:"flush-concurrency" json:"flush-concurrency" env:"FLUSH_CONCURRENCY"`
	// PageBoundaryCacheSize is the capacity of the page boundary cache, 0 disables the cache.
	PageBoundaryCacheSize int `toml:"page-boundary-cache-size" json:"page-boundary-cache-size" env:"PAGE_BOUNDARY_CACHE_SIZE"`

	HTTPAddr           string `toml:"http-addr" json:"http-addr" env:"HTTP_ADDR"`
	HTTPReadTimeoutMs  int64  `toml:"http-read-timeout-ms" json:"http-read-timeout-ms" env:"HTTP_READ_TIMEOUT_MS"`
	HTTPWriteTimeoutMs int64  `toml:"http-write-timeout-ms" json:"http-write-timeout-ms" env:"HTTP_WRITE_TIMEOUT_MS"`
}

// MakeDefaultConfig returns the config with every field set to its default, the quorum address is left empty.
func MakeDefaultConfig() *Config {
	return &Config{
		Log: log.Config{
			Level: log.DefaultLogLevel,
			File:  log.DefaultLogFile,
		},
		Limiter: LimiterConfig{
			Limit:  defaultLimiterLimit,
			Burst:  defaultLimiterBurst,
			Enable: defaultEnableLimiter,
		},
		QuorumAddress:         "",
		ClientPort:            defaultClientPort,
		RootPath:              defaultRootPath,
		DialTimeoutMs:         defaultDialTimeoutMs,
		RequestTimeoutMs:      defaultRequestTimeoutMs,
		ScanBatchSize:         defaultScanBatchSize,
		MaxOpsPerTxn:          defaultMaxOpsPerTxn,
		WriteBufferBytes:      defaultWriteBufferBytes,
		FlushConcurrency:      defaultFlushConcurrency,
		PageBoundaryCacheSize: defaultPageBoundaryCacheSize,
		HTTPAddr:              defaultHTTPAddr,
		HTTPReadTimeoutMs:     defaultHTTPReadTimeoutMs,
		HTTPWriteTimeoutMs:    defaultHTTPWriteTimeoutMs,
	}
}

func (c *Config) DialTimeout() time.Duration {
	return time.Duration(c.DialTimeoutMs) * time.Millisecond
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

func (c *Config) HTTPReadTimeout() time.Duration {
	return time.Duration(c.HTTPReadTimeoutMs) * time.Millisecond
}

func (c *Config) HTTPWriteTimeout() time.Duration {
	return time.Duration(c.HTTPWriteTimeoutMs) * time.Millisecond
}

// Endpoints converts the quorum address into the endpoints of the cluster client.
func (c *Config) Endpoints() ([]string, error) {
	endpoints, err := parseQuorum(c.QuorumAddress, c.ClientPort)
	if err != nil {
		return nil, ErrConfig.WithCausef(err, "parse quorum-address:%s", c.QuorumAddress)
	}
	if len(endpoints) == 0 {
		return nil, ErrConfig.WithMessagef("quorum-address is required")
	}
	return endpoints, nil
}

// ValidateAndAdjust validates the config fields and adjusts some fields which should be adjusted.
// Return error if any field is invalid.
func (c *Config) ValidateAndAdjust() error {
	if _, err := c.Endpoints(); err != nil {
		return err
	}

	if c.ClientPort <= 0 || c.ClientPort > 65535 {
		return ErrConfig.WithMessagef("invalid client-port:%d", c.ClientPort)
	}
	if len(c.RootPath) == 0 {
		c.RootPath = defaultRootPath
	}
	if c.DialTimeoutMs <= 0 {
		c.DialTimeoutMs = defaultDialTimeoutMs
	}
	if c.RequestTimeoutMs <= 0 {
		c.RequestTimeoutMs = defaultRequestTimeoutMs
	}
	if c.ScanBatchSize <= 0 {
		c.ScanBatchSize = defaultScanBatchSize
	}
	if c.MaxOpsPerTxn <= 0 {
		c.MaxOpsPerTxn = defaultMaxOpsPerTxn
	}
	if c.WriteBufferBytes <= 0 {
		c.WriteBufferBytes = defaultWriteBufferBytes
	}
	if c.FlushConcurrency <= 0 {
		c.FlushConcurrency = defaultFlushConcurrency
	}
	if c.PageBoundaryCacheSize < 0 {
		return ErrConfig.WithMessagef("invalid page-boundary-cache-size:%d", c.PageBoundaryCacheSize)
	}
	if c.Limiter.Enable && (c.Limiter.Limit <= 0 || c.Limiter.Burst <= 0) {
		return ErrConfig.WithMessagef("invalid limiter, limit:%d, burst:%d", c.Limiter.Limit, c.Limiter.Burst)
	}

	return nil
}

// Parser builds the config from the flags, the optional toml file and the environment.
// Explicitly provided flags take precedence over the file and the environment.
type Parser struct {
	flagSet        *flag.FlagSet
	cfg            *Config
	configFilePath string
}

func (p *Parser) Parse(arguments []string) (*Config, error) {
	if err := p.flagSet.Parse(arguments); err != nil {
		if err == flag.ErrHelp {
			return nil, ErrHelpRequested.WithCause(err)
		}
		return nil, ErrInvalidCommandArgs.WithCausef(err, "original arguments:%v", arguments)
	}

	explicitFlags := make(map[string]string)
	p.flagSet.Visit(func(f *flag.Flag) {
		explicitFlags[f.Name] = f.Value.String()
	})

	if err := p.parseConfigFromToml(); err != nil {
		return nil, err
	}
	if err := p.parseConfigFromEnv(); err != nil {
		return nil, err
	}

	for name, value := range explicitFlags {
		if err := p.flagSet.Set(name, value); err != nil {
			return nil, ErrInvalidCommandArgs.WithCausef(err, "reset flag:%s", name)
		}
	}

	return p.cfg, nil
}

func (p *Parser) parseConfigFromToml() error {
	if len(p.configFilePath) == 0 {
		log.Info("no config file specified, skip parsing config file")
		return nil
	}

	log.Info("get config from toml", zap.String("file", p.configFilePath))
	content, err := os.ReadFile(p.configFilePath)
	if err != nil {
		return ErrLoadConfigFile.WithCausef(err, "read file:%s", p.configFilePath)
	}
	if err := toml.Unmarshal(content, p.cfg); err != nil {
		return ErrLoadConfigFile.WithCausef(err, "decode file:%s", p.configFilePath)
	}
	return nil
}

func (p *Parser) parseConfigFromEnv() error {
	if err := env.Parse(p.cfg, env.Options{Prefix: defaultEnvPrefix}); err != nil {
		return ErrLoadConfigEnv.WithCause(err)
	}
	return nil
}

func MakeConfigParser() *Parser {
	fs, cfg := flag.NewFlagSet("ceresdao", flag.ContinueOnError), MakeDefaultConfig()
	builder := &Parser{
		flagSet: fs,
		cfg:     cfg,
	}

	fs.StringVar(&builder.configFilePath, "config", "", "config file path")

	fs.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "level of the log")
	fs.StringVar(&cfg.Log.File, "log-file", cfg.Log.File, "file for log output")

	fs.StringVar(&cfg.QuorumAddress, "quorum-address", cfg.QuorumAddress, "comma-separated hosts of the cluster")
	fs.IntVar(&cfg.ClientPort, "client-port", cfg.ClientPort, "port used for the quorum hosts without port")
	fs.StringVar(&cfg.RootPath, "root-path", cfg.RootPath, "root path of all the keys in the cluster")
	fs.Int64Var(&cfg.DialTimeoutMs, "dial-timeout-ms", cfg.DialTimeoutMs, "timeout for dialing the cluster")
	fs.Int64Var(&cfg.RequestTimeoutMs, "request-timeout-ms", cfg.RequestTimeoutMs, "timeout for a single request to the cluster")
	fs.IntVar(&cfg.ScanBatchSize, "scan-batch-size", cfg.ScanBatchSize, "keys fetched by one range read of a scan")
	fs.IntVar(&cfg.MaxOpsPerTxn, "max-ops-per-txn", cfg.MaxOpsPerTxn, "max operations packed into one transaction")
	fs.IntVar(&cfg.WriteBufferBytes, "write-buffer-bytes", cfg.WriteBufferBytes, "buffer size of the buffered mutator")
	fs.IntVar(&cfg.FlushConcurrency, "flush-concurrency", cfg.FlushConcurrency, "concurrent transactions of a flush")
	fs.IntVar(&cfg.PageBoundaryCacheSize, "page-boundary-cache-size", cfg.PageBoundaryCacheSize, "capacity of the page boundary cache (0 disables it)")

	fs.BoolVar(&cfg.Limiter.Enable, "enable-limiter", cfg.Limiter.Enable, "enable the write flow limiter")
	fs.IntVar(&cfg.Limiter.Limit, "limiter-limit", cfg.Limiter.Limit, "token rate of the write flow limiter")
	fs.IntVar(&cfg.Limiter.Burst, "limiter-burst", cfg.Limiter.Burst, "burst of the write flow limiter")

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "listen address of the http service")
	fs.Int64Var(&cfg.HTTPReadTimeoutMs, "http-read-timeout-ms", cfg.HTTPReadTimeoutMs, "read timeout of the http service")
	fs.Int64Var(&cfg.HTTPWriteTimeoutMs, "http-write-timeout-ms", cfg.HTTPWriteTimeoutMs, "write timeout of the http service")

	return builder
}
