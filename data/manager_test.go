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

package data_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-stocks/data"
)

// fakeProvider serves canned history and fundamentals keyed by symbol and
// counts upstream calls.
type fakeProvider struct {
	mu           sync.Mutex
	bars         map[string][]data.Bar
	facts        map[string]*data.CompanyFacts
	historyCalls int
	factsCalls   int
	failAll      bool
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		bars:  make(map[string][]data.Bar),
		facts: make(map[string]*data.CompanyFacts),
	}
}

func (p *fakeProvider) Name() string {
	return "fake"
}

func (p *fakeProvider) History(_ context.Context, symbol string, _ int) ([]data.Bar, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.historyCalls++
	if p.failAll {
		return nil, fmt.Errorf("%w: connection refused", data.ErrUpstreamUnavailable)
	}
	bars, ok := p.bars[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", data.ErrNoData, symbol)
	}
	return bars, nil
}

func (p *fakeProvider) CompanyFacts(_ context.Context, symbol string) (*data.CompanyFacts, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.factsCalls++
	if p.failAll {
		return nil, fmt.Errorf("%w: connection refused", data.ErrUpstreamUnavailable)
	}
	facts, ok := p.facts[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", data.ErrNoData, symbol)
	}
	return facts, nil
}

func (p *fakeProvider) historyCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.historyCalls
}

func twoBars(prevClose, close float64) []data.Bar {
	day := time.Date(2023, 6, 14, 10, 0, 0, 0, time.UTC)
	return []data.Bar{
		{Time: day.AddDate(0, 0, -1), Open: prevClose, High: prevClose, Low: prevClose, Close: prevClose, Volume: 1000},
		{Time: day, Open: prevClose, High: close + 5, Low: prevClose - 5, Close: close, Volume: 2500},
	}
}

var _ = Describe("Manager quotes", func() {
	var (
		ctx      context.Context
		provider *fakeProvider
		manager  *data.Manager
		now      time.Time
		clock    func() time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		provider = newFakeProvider()
		now = time.Date(2023, 6, 14, 10, 30, 0, 0, time.UTC)
		clock = func() time.Time { return now }

		var err error
		manager, err = data.NewManager(provider,
			data.WithClock(func() time.Time { return clock() }),
			data.WithTTL(300*time.Second),
			data.WithServeStale(true))
		Expect(err).To(BeNil())
	})

	Context("when the provider has data", func() {
		BeforeEach(func() {
			provider.bars["RELIANCE.NS"] = twoBars(2400, 2450)
		})

		It("computes the change from the previous close", func() {
			quote, err := manager.GetPrice(ctx, "RELIANCE")
			Expect(err).To(BeNil())
			Expect(quote.Symbol).To(Equal("RELIANCE.NS"))
			Expect(quote.CurrentPrice).To(Equal(2450.0))
			Expect(quote.PreviousClose).To(Equal(2400.0))
			Expect(quote.Change).To(Equal(50.0))
			Expect(quote.ChangePercent).To(BeNumerically("~", 2.08, 0.01))
			Expect(quote.DataSource).To(Equal(data.SourceLive))
			Expect(quote.Cached).To(BeFalse())
		})

		It("serves the second request from cache", func() {
			_, err := manager.GetPrice(ctx, "RELIANCE")
			Expect(err).To(BeNil())
			calls := provider.historyCallCount()

			now = now.Add(30 * time.Second)
			quote, err := manager.GetPrice(ctx, "RELIANCE")
			Expect(err).To(BeNil())
			Expect(provider.historyCallCount()).To(Equal(calls))
			Expect(quote.Cached).To(BeTrue())
			Expect(quote.DataSource).To(Equal(data.SourceCached))
			Expect(quote.CacheAge).To(Equal(int64(30)))
			Expect(quote.CurrentPrice).To(Equal(2450.0))
		})

		It("refreshes once the entry ages past the TTL", func() {
			_, err := manager.GetPrice(ctx, "RELIANCE")
			Expect(err).To(BeNil())
			calls := provider.historyCallCount()

			now = now.Add(301 * time.Second)
			quote, err := manager.GetPrice(ctx, "RELIANCE")
			Expect(err).To(BeNil())
			Expect(provider.historyCallCount()).To(BeNumerically(">", calls))
			Expect(quote.Cached).To(BeFalse())
			Expect(quote.DataSource).To(Equal(data.SourceLive))
		})

		It("treats a single observation as zero change", func() {
			provider.bars["SBIN.NS"] = twoBars(590, 590)[1:]

			quote, err := manager.GetPrice(ctx, "SBIN")
			Expect(err).To(BeNil())
			Expect(quote.PreviousClose).To(Equal(quote.CurrentPrice))
			Expect(quote.Change).To(Equal(0.0))
			Expect(quote.ChangePercent).To(Equal(0.0))
		})

		It("does not divide by a zero previous close", func() {
			provider.bars["ITC.NS"] = twoBars(0, 450)

			quote, err := manager.GetPrice(ctx, "ITC")
			Expect(err).To(BeNil())
			Expect(quote.CurrentPrice).To(Equal(450.0))
			Expect(quote.Change).To(Equal(0.0))
			Expect(quote.ChangePercent).To(Equal(0.0))
		})
	})

	Context("when the canonical symbol has no data", func() {
		It("falls back to the BSE variant", func() {
			provider.bars["RELIANCE.BO"] = twoBars(2400, 2450)

			quote, err := manager.GetPrice(ctx, "RELIANCE")
			Expect(err).To(BeNil())
			// stored under the canonical symbol regardless of source variant
			Expect(quote.Symbol).To(Equal("RELIANCE.NS"))
			Expect(quote.CurrentPrice).To(Equal(2450.0))
		})

		It("errors when every variant is exhausted", func() {
			_, err := manager.GetPrice(ctx, "BOGUS123")
			Expect(err).ToNot(BeNil())
			Expect(errors.Is(err, data.ErrUpstreamUnavailable)).To(BeTrue())
		})
	})

	Context("when the upstream becomes unavailable", func() {
		BeforeEach(func() {
			provider.bars["TCS.NS"] = twoBars(3400, 3450)
			_, err := manager.GetPrice(ctx, "TCS")
			Expect(err).To(BeNil())
			provider.failAll = true
		})

		It("serves the stale entry past the TTL", func() {
			now = now.Add(10 * time.Minute)
			quote, err := manager.GetPrice(ctx, "TCS")
			Expect(err).To(BeNil())
			Expect(quote.Cached).To(BeTrue())
			Expect(quote.DataSource).To(Equal(data.SourceCached))
			Expect(quote.CacheAge).To(Equal(int64(600)))
			Expect(quote.CurrentPrice).To(Equal(3450.0))
		})

		It("propagates the failure when stale serving is disabled", func() {
			strict, err := data.NewManager(provider,
				data.WithClock(func() time.Time { return clock() }),
				data.WithTTL(300*time.Second),
				data.WithServeStale(false))
			Expect(err).To(BeNil())

			_, err = strict.GetPrice(ctx, "TCS")
			Expect(err).ToNot(BeNil())
			Expect(errors.Is(err, data.ErrUpstreamUnavailable)).To(BeTrue())
		})
	})

	It("rejects symbols that cannot be normalized", func() {
		_, err := manager.GetPrice(ctx, "not a symbol")
		Expect(errors.Is(err, data.ErrInvalidSymbol)).To(BeTrue())
	})
})

var _ = Describe("Manager batch quotes", func() {
	var (
		ctx      context.Context
		provider *fakeProvider
		manager  *data.Manager
	)

	BeforeEach(func() {
		ctx = context.Background()
		provider = newFakeProvider()
		provider.bars["RELIANCE.NS"] = twoBars(2400, 2450)
		provider.bars["TCS.NS"] = twoBars(3400, 3450)

		var err error
		manager, err = data.NewManager(provider,
			data.WithTTL(300*time.Second),
			data.WithServeStale(true))
		Expect(err).To(BeNil())
	})

	It("resolves every symbol", func() {
		results := manager.GetPrices(ctx, []string{"RELIANCE", "TCS"})
		Expect(results).To(HaveLen(2))
		Expect(results["RELIANCE"].Success).To(BeTrue())
		Expect(results["RELIANCE"].Data.CurrentPrice).To(Equal(2450.0))
		Expect(results["TCS"].Success).To(BeTrue())
		Expect(results["TCS"].Data.CurrentPrice).To(Equal(3450.0))
	})

	It("captures per-symbol failures without failing the batch", func() {
		results := manager.GetPrices(ctx, []string{"RELIANCE", "BOGUS123"})
		Expect(results).To(HaveLen(2))
		Expect(results["RELIANCE"].Success).To(BeTrue())
		Expect(results["BOGUS123"].Success).To(BeFalse())
		Expect(results["BOGUS123"].Data).To(BeNil())
		Expect(results["BOGUS123"].Error).ToNot(BeEmpty())
	})

	It("keys results by the requested symbol, not the canonical form", func() {
		results := manager.GetPrices(ctx, []string{"RELIANCE"})
		Expect(results).To(HaveKey("RELIANCE"))
		Expect(results).ToNot(HaveKey("RELIANCE.NS"))
	})
})

var _ = Describe("Manager fundamentals", func() {
	var (
		ctx      context.Context
		provider *fakeProvider
		manager  *data.Manager
		now      time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		provider = newFakeProvider()
		now = time.Date(2023, 6, 14, 10, 30, 0, 0, time.UTC)

		var err error
		manager, err = data.NewManager(provider,
			data.WithClock(func() time.Time { return now }),
			data.WithTTL(300*time.Second),
			data.WithServeStale(true))
		Expect(err).To(BeNil())
	})

	It("keeps the reported FCF when it is plausible", func() {
		provider.bars["INFY.NS"] = twoBars(1800, 1850)
		provider.facts["INFY.NS"] = &data.CompanyFacts{
			Name:              "Infosys Limited",
			Sector:            "IT",
			EPS:               100,
			SharesOutstanding: 1_000_000,
			FreeCashflow:      50_000_000,
		}

		record, err := manager.GetFundamentals(ctx, "INFY")
		Expect(err).To(BeNil())
		Expect(record.YahooFCFPerShare).To(Equal(50.0))
		Expect(record.FCFPerShare).To(Equal(50.0))
		Expect(record.FCFSource).To(Equal(data.FCFSourceLive))
		Expect(record.EstFCFPerShare).To(Equal(75.0))
		Expect(record.CurrentPrice).To(Equal(1850.0))
		Expect(record.DataSource).To(Equal(data.SourceLive))
	})

	It("replaces an implausibly low FCF with the sector estimate", func() {
		provider.bars["HDFCBANK.NS"] = twoBars(1600, 1650)
		provider.facts["HDFCBANK.NS"] = &data.CompanyFacts{
			Name:              "HDFC Bank Limited",
			Sector:            "Banking",
			EPS:               100,
			SharesOutstanding: 1_000_000,
			FreeCashflow:      20_000_000,
		}

		record, err := manager.GetFundamentals(ctx, "HDFCBANK")
		Expect(err).To(BeNil())
		Expect(record.YahooFCFPerShare).To(Equal(20.0))
		Expect(record.FCFPerShare).To(Equal(65.0))
		Expect(record.FCFSource).To(Equal(data.FCFSourceEstimated))
		Expect(record.FCFNote).To(ContainSubstring("Banking"))
	})

	It("serves the second request from cache", func() {
		provider.bars["TCS.NS"] = twoBars(3400, 3450)
		provider.facts["TCS.NS"] = &data.CompanyFacts{
			Name:              "Tata Consultancy Services",
			Sector:            "IT",
			EPS:               115,
			SharesOutstanding: 3_659_000_000,
			FreeCashflow:      400_000_000_000,
		}

		_, err := manager.GetFundamentals(ctx, "TCS")
		Expect(err).To(BeNil())

		now = now.Add(30 * time.Second)
		record, err := manager.GetFundamentals(ctx, "TCS")
		Expect(err).To(BeNil())
		Expect(record.DataSource).To(Equal(data.SourceCached))
		Expect(record.CurrentPrice).To(Equal(3450.0))
	})

	It("refreshes the record and its price past the TTL", func() {
		provider.bars["TCS.NS"] = twoBars(3400, 3450)
		provider.facts["TCS.NS"] = &data.CompanyFacts{
			Name:              "Tata Consultancy Services",
			Sector:            "IT",
			EPS:               115,
			SharesOutstanding: 3_659_000_000,
			FreeCashflow:      400_000_000_000,
		}

		_, err := manager.GetFundamentals(ctx, "TCS")
		Expect(err).To(BeNil())

		provider.bars["TCS.NS"] = twoBars(3450, 3500)
		now = now.Add(301 * time.Second)
		record, err := manager.GetFundamentals(ctx, "TCS")
		Expect(err).To(BeNil())
		Expect(record.DataSource).To(Equal(data.SourceLive))
		Expect(record.CurrentPrice).To(Equal(3500.0))
	})

	It("degrades to static estimates when the upstream fails", func() {
		provider.failAll = true

		record, err := manager.GetFundamentals(ctx, "RELIANCE")
		Expect(err).To(BeNil())
		Expect(record.Symbol).To(Equal("RELIANCE.NS"))
		Expect(record.DataSource).To(Equal(data.SourceFallback))
		Expect(record.FCFSource).To(Equal(data.FCFSourceEstimated))
		Expect(record.EPS).To(BeNumerically(">", 0))
		Expect(record.LastUpdated).To(Equal(now))
	})

	It("degrades to static estimates when fundamentals are empty", func() {
		provider.bars["ITC.NS"] = twoBars(445, 450)
		provider.facts["ITC.NS"] = &data.CompanyFacts{Name: "ITC Limited"}

		record, err := manager.GetFundamentals(ctx, "ITC")
		Expect(err).To(BeNil())
		Expect(record.DataSource).To(Equal(data.SourceFallback))
		Expect(record.CurrentPrice).To(Equal(450.0))
	})

	It("rejects symbols that cannot be normalized", func() {
		_, err := manager.GetFundamentals(ctx, "")
		Expect(errors.Is(err, data.ErrInvalidSymbol)).To(BeTrue())
	})
})
