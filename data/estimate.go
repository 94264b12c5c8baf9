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

package data

import "fmt"

// defaultFCFRatio is applied when a sector has no entry in the ratio table.
const defaultFCFRatio = 0.80

// implausibleFCFFraction: an upstream FCF-per-share below this fraction of
// EPS is treated as missing or broken and replaced by the sector estimate.
const implausibleFCFFraction = 0.3

// sectorFCFRatios maps a sector to the fraction of EPS that typically
// converts to free cash flow. Capital-light service sectors convert most of
// their earnings; banks and capital-intensive sectors convert far less.
var sectorFCFRatios = map[string]float64{
	"IT":                 0.75,
	"FMCG":               0.95,
	"Banking":            0.65,
	"Financial Services": 0.70,
	"Oil & Gas":          0.70,
	"Auto":               0.60,
	"Pharma":             0.70,
	"Telecom":            0.55,
	"Infrastructure":     0.50,
}

// SectorFCFRatio returns the EPS-to-FCF multiplier for a sector, falling back
// to the default ratio for unknown sectors.
func SectorFCFRatio(sector string) float64 {
	if ratio, ok := sectorFCFRatios[sector]; ok {
		return ratio
	}
	return defaultFCFRatio
}

// reconcileFCF decides the reported free-cash-flow-per-share. The upstream
// figure wins unless it is implausibly low relative to earnings, in which
// case the sector estimate is used. Both candidate values are returned for
// transparency.
func reconcileFCF(eps float64, sector string, yahooFCFPerShare float64) (chosen, estimated float64, source, note string) {
	ratio := SectorFCFRatio(sector)
	estimated = eps * ratio

	if yahooFCFPerShare < eps*implausibleFCFFraction {
		return estimated, estimated, FCFSourceEstimated,
			fmt.Sprintf("EPS-based estimate (%s: %.0f%% of EPS)", sectorOrDefault(sector), ratio*100)
	}
	return yahooFCFPerShare, estimated, FCFSourceLive, "reported free cash flow"
}

func sectorOrDefault(sector string) string {
	if sector == "" {
		return "Unknown"
	}
	return sector
}

// fallbackFundamentals seeds fundamentals for the core universe when the
// upstream is unreachable. Figures are static estimates, not live data.
var fallbackFundamentals = map[string]Fundamentals{
	"RELIANCE.NS": {
		Symbol:            "RELIANCE.NS",
		Name:              "Reliance Industries Limited",
		Sector:            "Oil & Gas",
		CurrentPrice:      2450,
		EPS:               89.2,
		SharesOutstanding: 6_766_000_000,
		MarketCap:         16.5e12,
	},
	"TCS.NS": {
		Symbol:            "TCS.NS",
		Name:              "Tata Consultancy Services",
		Sector:            "IT",
		CurrentPrice:      3450,
		EPS:               115.6,
		SharesOutstanding: 3_659_000_000,
		MarketCap:         12.5e12,
	},
	"HDFCBANK.NS": {
		Symbol:            "HDFCBANK.NS",
		Name:              "HDFC Bank",
		Sector:            "Banking",
		CurrentPrice:      1650,
		EPS:               78.9,
		SharesOutstanding: 5_570_000_000,
		MarketCap:         11.5e12,
	},
	"INFY.NS": {
		Symbol:            "INFY.NS",
		Name:              "Infosys",
		Sector:            "IT",
		CurrentPrice:      1850,
		EPS:               62.3,
		SharesOutstanding: 4_140_000_000,
		MarketCap:         6.25e12,
	},
	"ITC.NS": {
		Symbol:            "ITC.NS",
		Name:              "ITC Limited",
		Sector:            "FMCG",
		CurrentPrice:      450,
		EPS:               14.2,
		SharesOutstanding: 12_430_000_000,
		MarketCap:         4.25e12,
	},
}

// FallbackFundamentals builds a usable fundamentals record without touching
// the upstream. Known symbols come from the static table; unknown symbols get
// a zeroed record. currentPrice overrides the table price when the caller has
// a live quote. This path never fails.
func FallbackFundamentals(symbol string, currentPrice float64) *Fundamentals {
	record, ok := fallbackFundamentals[symbol]
	if !ok {
		record = Fundamentals{Symbol: symbol, Name: symbol}
	}

	if currentPrice > 0 {
		record.CurrentPrice = currentPrice
	}

	ratio := SectorFCFRatio(record.Sector)
	record.EstFCFPerShare = record.EPS * ratio
	record.FCFPerShare = record.EstFCFPerShare
	record.FCFSource = FCFSourceEstimated
	record.FCFNote = fmt.Sprintf("EPS-based estimate (%s: %.0f%% of EPS)", sectorOrDefault(record.Sector), ratio*100)
	record.DataSource = SourceFallback
	return &record
}
