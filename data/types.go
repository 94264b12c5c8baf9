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

import "time"

// Source identifies where a record came from.
type Source string

const (
	SourceLive     Source = "live"
	SourceCached   Source = "cached"
	SourceFallback Source = "fallback"
)

// FCF reconciliation outcome for a fundamentals record.
const (
	FCFSourceLive      = "live"
	FCFSourceEstimated = "estimated"
)

// Bar is a single OHLCV observation returned by the upstream provider.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// Quote is a price snapshot for one security. Field names follow the JSON
// contract the front end consumes.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name,omitempty"`
	CurrentPrice  float64   `json:"current_price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	PreviousClose float64   `json:"previous_close"`
	OpenPrice     float64   `json:"open_price"`
	DayHigh       float64   `json:"day_high"`
	DayLow        float64   `json:"day_low"`
	Volume        int64     `json:"volume"`
	LastUpdated   time.Time `json:"last_updated"`
	DataSource    Source    `json:"data_source"`
	Cached        bool      `json:"cached"`
	CacheAge      int64     `json:"cache_age_seconds"`
}

// Fundamentals is the per-company valuation input set. CurrentPrice is always
// refreshed from the latest quote even when the rest of the record is cached
// or estimated.
type Fundamentals struct {
	Symbol             string    `json:"symbol"`
	Name               string    `json:"name"`
	Sector             string    `json:"sector"`
	CurrentPrice       float64   `json:"current_price"`
	EPS                float64   `json:"eps"`
	FCFPerShare        float64   `json:"fcf_per_share"`
	YahooFCFPerShare   float64   `json:"yahoo_fcf_per_share"`
	EstFCFPerShare     float64   `json:"estimated_fcf_per_share"`
	FCFSource          string    `json:"fcf_source"`
	FCFNote            string    `json:"fcf_note,omitempty"`
	SharesOutstanding  int64     `json:"shares_outstanding"`
	MarketCap          float64   `json:"market_cap"`
	Revenue            float64   `json:"revenue"`
	OperatingCashflow  float64   `json:"operating_cashflow"`
	CapitalExpenditure float64   `json:"capital_expenditure"`
	DataSource         Source    `json:"data_source"`
	LastUpdated        time.Time `json:"last_updated"`
}

// CompanyFacts is the raw fundamentals blob as reported by the upstream
// provider, before the FCF reconciliation policy is applied.
type CompanyFacts struct {
	Name               string
	Sector             string
	EPS                float64
	SharesOutstanding  int64
	MarketCap          float64
	Revenue            float64
	OperatingCashflow  float64
	CapitalExpenditure float64
	FreeCashflow       float64
}

// BatchResult is the per-symbol entry in a batch price response. A failed
// lookup carries an error string instead of failing the whole batch.
type BatchResult struct {
	Success bool   `json:"success"`
	Data    *Quote `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}
