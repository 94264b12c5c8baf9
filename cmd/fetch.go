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
	"context"
	"fmt"

	"github.com/penny-vault/pv-stocks/common"
	"github.com/penny-vault/pv-stocks/data"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var fetchFundamentals bool

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().BoolVar(&fetchFundamentals, "fundamentals", false, "fetch fundamentals instead of quotes")
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [symbol...]",
	Short: "Fetch quotes for the given symbols and print them as JSON",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		common.SetupLogging()

		manager, err := data.NewManager(data.NewYahoo())
		if err != nil {
			log.Fatal().Err(err).Msg("could not create data manager")
		}

		ctx := context.Background()
		common.ArrToUpper(args)

		if fetchFundamentals {
			for _, symbol := range args {
				facts, err := manager.GetFundamentals(ctx, symbol)
				if err != nil {
					log.Error().Err(err).Str("Symbol", symbol).Msg("could not fetch fundamentals")
					continue
				}
				printJSON(facts)
			}
			return
		}

		results := manager.GetPrices(ctx, args)
		printJSON(results)
	},
}

func printJSON(val interface{}) {
	raw, err := json.MarshalIndent(val, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("could not marshal result")
		return
	}
	fmt.Println(string(raw))
}
