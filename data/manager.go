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
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/penny-vault/pv-stocks/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	defaultTTL       = 300 * time.Second
	defaultCacheSize = 4096
	batchConcurrency = 8
)

type quoteEntry struct {
	quote      Quote
	capturedAt time.Time
}

type fundamentalsEntry struct {
	record     Fundamentals
	capturedAt time.Time
}

// Manager owns the in-memory record caches and orchestrates the fallback
// acquisition chain. Entries are superseded on refresh, never deleted;
// staleness is decided at read time by comparing the capture timestamp
// against the clock.
type Manager struct {
	provider   Provider
	quotes     *lru.Cache
	funds      *lru.Cache
	ttl        time.Duration
	serveStale bool
	clock      func() time.Time
	sf         singleflight.Group
}

// ManagerOption adjusts Manager construction; used by tests to inject a fake
// clock and deterministic policies.
type ManagerOption func(*Manager)

// WithClock replaces the time source used for cache aging.
func WithClock(clock func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.clock = clock
	}
}

// WithTTL overrides the cache time-to-live.
func WithTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		m.ttl = ttl
	}
}

// WithServeStale controls whether expired entries are served when live
// acquisition fails.
func WithServeStale(serve bool) ManagerOption {
	return func(m *Manager) {
		m.serveStale = serve
	}
}

// NewManager creates a Manager on top of the given provider. TTL, cache size,
// and the stale-serving policy come from viper (`cache.ttl`,
// `cache.local_size`, `cache.serve_stale`).
func NewManager(provider Provider, opts ...ManagerOption) (*Manager, error) {
	ttl := viper.GetDuration("cache.ttl")
	if ttl <= 0 {
		ttl = defaultTTL
	}

	size := viper.GetInt("cache.local_size")
	if size <= 0 {
		size = defaultCacheSize
	}

	serveStale := true
	if viper.IsSet("cache.serve_stale") {
		serveStale = viper.GetBool("cache.serve_stale")
	}

	quotes, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	funds, err := lru.New(size)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		provider:   provider,
		quotes:     quotes,
		funds:      funds,
		ttl:        ttl,
		serveStale: serveStale,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(manager)
	}
	return manager, nil
}

// GetPrice returns the price snapshot for a symbol, serving from cache while
// the entry is younger than the TTL and otherwise walking the acquisition
// chain. Concurrent misses for the same symbol share one upstream call.
func (m *Manager) GetPrice(ctx context.Context, rawSymbol string) (*Quote, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "manager.GetPrice")
	defer span.End()

	symbol, err := NormalizeSymbol(rawSymbol)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("Symbol", symbol))

	if quote, ok := m.cachedQuote(symbol, false); ok {
		return quote, nil
	}

	val, err, _ := m.sf.Do("price:"+symbol, func() (interface{}, error) {
		// a sibling call may have refreshed the entry while this one waited
		if quote, ok := m.cachedQuote(symbol, false); ok {
			return quote, nil
		}
		return m.acquireQuote(ctx, symbol)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "quote acquisition failed")
		if m.serveStale {
			if quote, ok := m.cachedQuote(symbol, true); ok {
				log.Warn().Err(err).Str("Symbol", symbol).Msg("serving stale quote after acquisition failure")
				return quote, nil
			}
		}
		return nil, err
	}

	return val.(*Quote), nil
}

// cachedQuote returns a copy of the cached record when present and, unless
// allowStale is set, younger than the TTL.
func (m *Manager) cachedQuote(symbol string, allowStale bool) (*Quote, bool) {
	val, ok := m.quotes.Get(symbol)
	if !ok {
		return nil, false
	}

	entry := val.(*quoteEntry)
	age := m.clock().Sub(entry.capturedAt)
	if age >= m.ttl && !allowStale {
		return nil, false
	}

	quote := entry.quote
	quote.Cached = true
	quote.CacheAge = int64(age.Seconds())
	quote.DataSource = SourceCached
	return &quote, true
}

// acquireQuote walks the symbol-variant fallback chain: for each candidate,
// a short history window followed by one extended-window retry. The first
// variant yielding at least one observation wins and is stored under the
// canonical symbol.
func (m *Manager) acquireQuote(ctx context.Context, symbol string) (*Quote, error) {
	variants, err := SymbolVariants(symbol)
	if err != nil {
		return nil, err
	}

	subLog := log.With().Str("Symbol", symbol).Str("Provider", m.provider.Name()).Logger()

	tried := make([]string, 0, len(variants))
	for _, variant := range variants {
		bars, err := m.provider.History(ctx, variant, ShortWindowDays)
		if err != nil || len(bars) == 0 {
			if err != nil && !errors.Is(err, ErrNoData) {
				subLog.Debug().Err(err).Str("Variant", variant).Msg("short window fetch failed")
			}
			bars, err = m.provider.History(ctx, variant, ExtendedWindowDays)
		}
		if err != nil || len(bars) == 0 {
			tried = append(tried, variant)
			continue
		}

		now := m.clock()
		quote := quoteFromBars(symbol, bars, now)
		m.quotes.Add(symbol, &quoteEntry{quote: *quote, capturedAt: now})
		subLog.Debug().Str("Variant", variant).Float64("Price", quote.CurrentPrice).Msg("acquired quote")
		return quote, nil
	}

	return nil, fmt.Errorf("%w: tried %s", ErrUpstreamUnavailable, strings.Join(tried, ", "))
}

// quoteFromBars derives the snapshot fields from a history window. With a
// single observation the previous close equals the current price and the
// change is zero; a zero previous close degrades the percent change to zero
// rather than dividing by zero.
func quoteFromBars(symbol string, bars []Bar, now time.Time) *Quote {
	last := bars[len(bars)-1]
	currentPrice := last.Close

	previousClose := currentPrice
	if len(bars) > 1 {
		previousClose = bars[len(bars)-2].Close
	}

	change := currentPrice - previousClose
	changePercent := 0.0
	if previousClose != 0 {
		changePercent = change / previousClose * 100
	} else {
		change = 0
	}

	return &Quote{
		Symbol:        symbol,
		CurrentPrice:  round2(currentPrice),
		Change:        round2(change),
		ChangePercent: round2(changePercent),
		PreviousClose: round2(previousClose),
		OpenPrice:     round2(last.Open),
		DayHigh:       round2(last.High),
		DayLow:        round2(last.Low),
		Volume:        last.Volume,
		LastUpdated:   now,
		DataSource:    SourceLive,
	}
}

// GetPrices resolves a batch of symbols concurrently. A failure for one
// symbol is captured in its entry and never aborts sibling lookups.
func (m *Manager) GetPrices(ctx context.Context, symbols []string) map[string]*BatchResult {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "manager.GetPrices")
	defer span.End()
	span.SetAttributes(attribute.Int("NumSymbols", len(symbols)))

	var mu sync.Mutex
	results := make(map[string]*BatchResult, len(symbols))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(batchConcurrency)
	for _, symbol := range symbols {
		symbol := symbol
		group.Go(func() error {
			quote, err := m.GetPrice(ctx, symbol)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				results[symbol] = &BatchResult{Success: false, Error: err.Error()}
			} else {
				results[symbol] = &BatchResult{Success: true, Data: quote}
			}
			return nil
		})
	}

	// workers never return an error; they record per-symbol failures instead
	_ = group.Wait()
	return results
}

// GetFundamentals returns the fundamentals record for a symbol. The record is
// cached with the same TTL as quotes; its current price is always refreshed
// from GetPrice. Upstream failures degrade to the static estimate table, so
// the call only fails for symbols that cannot be normalized.
func (m *Manager) GetFundamentals(ctx context.Context, rawSymbol string) (*Fundamentals, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "manager.GetFundamentals")
	defer span.End()

	symbol, err := NormalizeSymbol(rawSymbol)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("Symbol", symbol))

	var currentPrice float64
	if quote, err := m.GetPrice(ctx, symbol); err == nil {
		currentPrice = quote.CurrentPrice
	}

	if record, ok := m.cachedFundamentals(symbol, currentPrice); ok {
		return record, nil
	}

	val, err, _ := m.sf.Do("facts:"+symbol, func() (interface{}, error) {
		if record, ok := m.cachedFundamentals(symbol, currentPrice); ok {
			return record, nil
		}
		return m.acquireFundamentals(ctx, symbol, currentPrice)
	})
	if err != nil {
		span.RecordError(err)
		log.Warn().Err(err).Str("Symbol", symbol).Msg("fundamentals acquisition failed; using static estimates")
		record := FallbackFundamentals(symbol, currentPrice)
		record.LastUpdated = m.clock()
		return record, nil
	}

	return val.(*Fundamentals), nil
}

func (m *Manager) cachedFundamentals(symbol string, currentPrice float64) (*Fundamentals, bool) {
	val, ok := m.funds.Get(symbol)
	if !ok {
		return nil, false
	}

	entry := val.(*fundamentalsEntry)
	if m.clock().Sub(entry.capturedAt) >= m.ttl {
		return nil, false
	}

	record := entry.record
	if currentPrice > 0 {
		record.CurrentPrice = currentPrice
	}
	record.DataSource = SourceCached
	return &record, true
}

func (m *Manager) acquireFundamentals(ctx context.Context, symbol string, currentPrice float64) (*Fundamentals, error) {
	facts, err := m.provider.CompanyFacts(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if facts.EPS == 0 && facts.SharesOutstanding == 0 {
		return nil, fmt.Errorf("%w: fundamentals empty for %s", ErrNoData, symbol)
	}

	yahooPerShare := 0.0
	if facts.SharesOutstanding > 0 && facts.FreeCashflow != 0 {
		yahooPerShare = facts.FreeCashflow / float64(facts.SharesOutstanding)
	}

	chosen, estimated, source, note := reconcileFCF(facts.EPS, facts.Sector, yahooPerShare)

	now := m.clock()
	record := &Fundamentals{
		Symbol:             symbol,
		Name:               facts.Name,
		Sector:             facts.Sector,
		CurrentPrice:       currentPrice,
		EPS:                facts.EPS,
		FCFPerShare:        round2(chosen),
		YahooFCFPerShare:   round2(yahooPerShare),
		EstFCFPerShare:     round2(estimated),
		FCFSource:          source,
		FCFNote:            note,
		SharesOutstanding:  facts.SharesOutstanding,
		MarketCap:          facts.MarketCap,
		Revenue:            facts.Revenue,
		OperatingCashflow:  facts.OperatingCashflow,
		CapitalExpenditure: facts.CapitalExpenditure,
		DataSource:         SourceLive,
		LastUpdated:        now,
	}

	m.funds.Add(symbol, &fundamentalsEntry{record: *record, capturedAt: now})
	return record, nil
}
