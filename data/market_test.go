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
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-stocks/common"
	"github.com/penny-vault/pv-stocks/data"
)

var _ = Describe("Market status", func() {
	var (
		market *data.MarketStatus
		ist    *time.Location
	)

	BeforeEach(func() {
		market = data.NewMarketStatus(data.NSEHours)
		ist = common.GetTimezone()
	})

	DescribeTable("IsMarketOpen",
		func(t time.Time, expected bool) {
			Expect(market.IsMarketOpen(t)).To(Equal(expected))
		},
		// Wednesday 2023-06-14
		Entry("mid session", time.Date(2023, 6, 14, 11, 0, 0, 0, istLocation()), true),
		Entry("at the opening bell", time.Date(2023, 6, 14, 9, 15, 0, 0, istLocation()), true),
		Entry("before the open", time.Date(2023, 6, 14, 9, 0, 0, 0, istLocation()), false),
		Entry("after the close", time.Date(2023, 6, 14, 15, 31, 0, 0, istLocation()), false),
		Entry("saturday", time.Date(2023, 6, 17, 11, 0, 0, 0, istLocation()), false),
		Entry("sunday", time.Date(2023, 6, 18, 11, 0, 0, 0, istLocation()), false),
		Entry("independence day", time.Date(2023, 8, 15, 11, 0, 0, 0, istLocation()), false),
	)

	It("converts other time zones to exchange time", func() {
		// 05:30 UTC is 11:00 IST
		Expect(market.IsMarketOpen(time.Date(2023, 6, 14, 5, 30, 0, 0, time.UTC))).To(BeTrue())
	})

	It("names the observed holiday", func() {
		Expect(market.HolidayName(time.Date(2023, 8, 15, 11, 0, 0, 0, ist))).To(Equal("Independence Day"))
		Expect(market.HolidayName(time.Date(2023, 6, 14, 11, 0, 0, 0, ist))).To(Equal(""))
	})

	Context("NextOpen", func() {
		It("returns the same day before the opening bell", func() {
			next := market.NextOpen(time.Date(2023, 6, 14, 8, 0, 0, 0, ist))
			Expect(next).To(BeTemporally("==", time.Date(2023, 6, 14, 9, 15, 0, 0, ist)))
		})

		It("skips the weekend after a friday close", func() {
			next := market.NextOpen(time.Date(2023, 6, 16, 16, 0, 0, 0, ist))
			Expect(next).To(BeTemporally("==", time.Date(2023, 6, 19, 9, 15, 0, 0, ist)))
		})

		It("skips holidays", func() {
			next := market.NextOpen(time.Date(2023, 8, 14, 16, 0, 0, 0, ist))
			Expect(next).To(BeTemporally("==", time.Date(2023, 8, 16, 9, 15, 0, 0, ist)))
		})
	})
})

func istLocation() *time.Location {
	return common.GetTimezone()
}
