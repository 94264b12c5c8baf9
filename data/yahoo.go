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

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"github.com/penny-vault/pv-stocks/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Yahoo throttles requests without a browser user agent.
const yahooUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

const quoteSummaryModules = "price,summaryProfile,defaultKeyStatistics,financialData,cashflowStatementHistory"

// Yahoo is a Provider backed by the public Yahoo Finance chart and
// quoteSummary endpoints.
type Yahoo struct {
	baseURL string
	client  *http.Client
}

// NewYahoo creates a Yahoo provider. The base URL and request timeout are
// read from viper so tests can point the client at a mock transport.
func NewYahoo() *Yahoo {
	timeout := viper.GetDuration("yahoo.timeout")
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	baseURL := viper.GetString("yahoo.base_url")
	if baseURL == "" {
		baseURL = "https://query1.finance.yahoo.com"
	}

	return &Yahoo{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (y *Yahoo) Name() string {
	return "yahoo"
}

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol   string `json:"symbol"`
				LongName string `json:"longName"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// History fetches daily bars for symbol over a range wide enough to hold the
// requested number of trading days. Null observations (holidays, halted
// sessions) are skipped.
func (y *Yahoo) History(ctx context.Context, symbol string, days int) ([]Bar, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "yahoo.History")
	defer span.End()

	rng := "5d"
	if days > ShortWindowDays {
		rng = "1mo"
	}

	span.SetAttributes(
		attribute.String("Symbol", symbol),
		attribute.String("Range", rng),
	)

	subLog := log.With().Str("Symbol", symbol).Str("Range", rng).Str("Provider", y.Name()).Logger()

	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=1d", y.baseURL, url.PathEscape(symbol), rng)
	body, err := y.get(ctx, reqURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "chart request failed")
		subLog.Warn().Err(err).Msg("chart request failed")
		return nil, err
	}

	var chartResp yahooChartResponse
	if err := json.Unmarshal(body, &chartResp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not unmarshal chart json")
		subLog.Warn().Err(err).Msg("could not unmarshal chart json")
		return nil, err
	}

	if chartResp.Chart.Error != nil {
		err := fmt.Errorf("%w: %s", ErrNoData, chartResp.Chart.Error.Description)
		span.SetStatus(codes.Error, "chart error response")
		subLog.Warn().Str("Code", chartResp.Chart.Error.Code).Msg("chart error response")
		return nil, err
	}

	if len(chartResp.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}

	result := chartResp.Chart.Result[0]
	if len(result.Timestamp) == 0 || len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}

	quote := result.Indicators.Quote[0]
	bars := make([]Bar, 0, len(result.Timestamp))
	for idx, ts := range result.Timestamp {
		if idx >= len(quote.Close) || quote.Close[idx] == nil {
			continue
		}
		bar := Bar{
			Time:  time.Unix(ts, 0).UTC(),
			Close: *quote.Close[idx],
		}
		if idx < len(quote.Open) && quote.Open[idx] != nil {
			bar.Open = *quote.Open[idx]
		}
		if idx < len(quote.High) && quote.High[idx] != nil {
			bar.High = *quote.High[idx]
		}
		if idx < len(quote.Low) && quote.Low[idx] != nil {
			bar.Low = *quote.Low[idx]
		}
		if idx < len(quote.Volume) && quote.Volume[idx] != nil {
			bar.Volume = *quote.Volume[idx]
		}
		bars = append(bars, bar)
	}

	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}

	if len(bars) > days {
		bars = bars[len(bars)-days:]
	}
	return bars, nil
}

// rawValue matches yahoo's {raw, fmt} number encoding.
type rawValue struct {
	Raw float64 `json:"raw"`
}

type yahooQuoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			Price *struct {
				LongName  string   `json:"longName"`
				MarketCap rawValue `json:"marketCap"`
			} `json:"price"`
			SummaryProfile *struct {
				Sector string `json:"sector"`
			} `json:"summaryProfile"`
			DefaultKeyStatistics *struct {
				TrailingEps       rawValue `json:"trailingEps"`
				SharesOutstanding rawValue `json:"sharesOutstanding"`
			} `json:"defaultKeyStatistics"`
			FinancialData *struct {
				TotalRevenue      rawValue `json:"totalRevenue"`
				OperatingCashflow rawValue `json:"operatingCashflow"`
				FreeCashflow      rawValue `json:"freeCashflow"`
			} `json:"financialData"`
			CashflowStatementHistory *struct {
				CashflowStatements []struct {
					CapitalExpenditures rawValue `json:"capitalExpenditures"`
				} `json:"cashflowStatements"`
			} `json:"cashflowStatementHistory"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

// CompanyFacts fetches the fundamentals blob for symbol. Missing modules are
// tolerated; the caller decides whether the partial record is usable.
func (y *Yahoo) CompanyFacts(ctx context.Context, symbol string) (*CompanyFacts, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "yahoo.CompanyFacts")
	defer span.End()

	span.SetAttributes(attribute.String("Symbol", symbol))
	subLog := log.With().Str("Symbol", symbol).Str("Provider", y.Name()).Logger()

	reqURL := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=%s", y.baseURL, url.PathEscape(symbol), quoteSummaryModules)
	body, err := y.get(ctx, reqURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "quoteSummary request failed")
		subLog.Warn().Err(err).Msg("quoteSummary request failed")
		return nil, err
	}

	var summaryResp yahooQuoteSummaryResponse
	if err := json.Unmarshal(body, &summaryResp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not unmarshal quoteSummary json")
		subLog.Warn().Err(err).Msg("could not unmarshal quoteSummary json")
		return nil, err
	}

	if summaryResp.QuoteSummary.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoData, summaryResp.QuoteSummary.Error.Description)
	}
	if len(summaryResp.QuoteSummary.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}

	result := summaryResp.QuoteSummary.Result[0]
	facts := &CompanyFacts{}
	if result.Price != nil {
		facts.Name = result.Price.LongName
		facts.MarketCap = result.Price.MarketCap.Raw
	}
	if result.SummaryProfile != nil {
		facts.Sector = result.SummaryProfile.Sector
	}
	if result.DefaultKeyStatistics != nil {
		facts.EPS = result.DefaultKeyStatistics.TrailingEps.Raw
		facts.SharesOutstanding = int64(result.DefaultKeyStatistics.SharesOutstanding.Raw)
	}
	if result.FinancialData != nil {
		facts.Revenue = result.FinancialData.TotalRevenue.Raw
		facts.OperatingCashflow = result.FinancialData.OperatingCashflow.Raw
		facts.FreeCashflow = result.FinancialData.FreeCashflow.Raw
	}
	if result.CashflowStatementHistory != nil && len(result.CashflowStatementHistory.CashflowStatements) > 0 {
		facts.CapitalExpenditure = result.CashflowStatementHistory.CashflowStatements[0].CapitalExpenditures.Raw
	}

	return facts, nil
}

func (y *Yahoo) get(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", yahooUserAgent)

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: HTTP 404", ErrNoData)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("yahoo returned invalid status code: %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
