// Copyright 2022-2023
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"fmt"
	"os"

	"github.com/penny-vault/pv-stocks/common"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Logging configuration
	viper.BindEnv("log.level", "PV_LOG_LEVEL")
	rootCmd.PersistentFlags().String("log-level", "info", "Logging level")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	viper.BindEnv("log.report_caller", "PV_LOG_REPORT_CALLER")
	rootCmd.PersistentFlags().Bool("log-report-caller", false, "Log function name that called log statement")
	viper.BindPFlag("log.report_caller", rootCmd.PersistentFlags().Lookup("log-report-caller"))

	viper.BindEnv("log.output", "PV_LOG_OUTPUT")
	rootCmd.PersistentFlags().String("log-output", "stdout", "Write logs to specified output one of: file path, `stdout`, or `stderr`")
	viper.BindPFlag("log.output", rootCmd.PersistentFlags().Lookup("log-output"))

	viper.BindEnv("log.pretty", "PV_LOG_PRETTY")
	rootCmd.PersistentFlags().Bool("log-pretty", false, "Print logs in human readable format")
	viper.BindPFlag("log.pretty", rootCmd.PersistentFlags().Lookup("log-pretty"))

	// Yahoo data source
	viper.BindEnv("yahoo.base_url", "YAHOO_BASE_URL")
	rootCmd.PersistentFlags().String("yahoo-base-url", "https://query1.finance.yahoo.com", "Yahoo Finance API base URL")
	viper.BindPFlag("yahoo.base_url", rootCmd.PersistentFlags().Lookup("yahoo-base-url"))

	viper.BindEnv("yahoo.timeout", "YAHOO_TIMEOUT")
	rootCmd.PersistentFlags().Duration("yahoo-timeout", 0, "HTTP timeout for Yahoo Finance requests")
	viper.BindPFlag("yahoo.timeout", rootCmd.PersistentFlags().Lookup("yahoo-timeout"))

	// Quote cache
	viper.BindEnv("cache.ttl", "PV_CACHE_TTL")
	rootCmd.PersistentFlags().Duration("cache-ttl", 0, "How long quotes stay fresh in the cache")
	viper.BindPFlag("cache.ttl", rootCmd.PersistentFlags().Lookup("cache-ttl"))

	viper.BindEnv("cache.local_size", "PV_CACHE_LOCAL_SIZE")
	rootCmd.PersistentFlags().Int("cache-local-size", 0, "Maximum number of entries in the local quote cache")
	viper.BindPFlag("cache.local_size", rootCmd.PersistentFlags().Lookup("cache-local-size"))

	viper.BindEnv("cache.serve_stale", "PV_CACHE_SERVE_STALE")
	rootCmd.PersistentFlags().Bool("cache-serve-stale", true, "Serve expired cache entries when the upstream provider is unavailable")
	viper.BindPFlag("cache.serve_stale", rootCmd.PersistentFlags().Lookup("cache-serve-stale"))

	// OpenTelemetry
	viper.BindEnv("otlp.endpoint", "OTLP_ENDPOINT")
	rootCmd.PersistentFlags().String("otlp-endpoint", "", "OTLP trace collector endpoint, if blank don't send traces")
	viper.BindPFlag("otlp.endpoint", rootCmd.PersistentFlags().Lookup("otlp-endpoint"))
}

var rootCmd = &cobra.Command{
	Use:     "pvstocks",
	Version: common.CurrentVersion.String(),
	Short:   "pv-stocks serves Indian equity quotes and fundamentals",
	Long: `An HTTP service that fetches Indian equity prices and fundamental
data from Yahoo Finance, normalizes NSE / BSE symbols, and caches quotes
to keep latency low and upstream load small.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
