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
	"time"

	"github.com/penny-vault/pv-stocks/common"
)

// MarketHours holds session boundaries encoded as HHMM integers.
type MarketHours struct {
	Open  int
	Close int
}

// NSEHours is the regular NSE equity session, 09:15 to 15:30 IST.
var NSEHours = MarketHours{Open: 915, Close: 1530}

// nseHolidays lists NSE trading holidays. Weekend holidays are omitted since
// weekends are always closed.
var nseHolidays = map[string]string{
	"2023-01-26": "Republic Day",
	"2023-03-07": "Holi",
	"2023-03-30": "Ram Navami",
	"2023-04-04": "Mahavir Jayanti",
	"2023-04-07": "Good Friday",
	"2023-04-14": "Dr. Ambedkar Jayanti",
	"2023-05-01": "Maharashtra Day",
	"2023-06-29": "Bakri Id",
	"2023-08-15": "Independence Day",
	"2023-09-19": "Ganesh Chaturthi",
	"2023-10-02": "Mahatma Gandhi Jayanti",
	"2023-10-24": "Dussehra",
	"2023-11-14": "Diwali Balipratipada",
	"2023-11-27": "Gurunanak Jayanti",
	"2023-12-25": "Christmas",
}

// MarketStatus answers whether the exchange is currently trading.
type MarketStatus struct {
	marketHours MarketHours
	tz          *time.Location
}

func NewMarketStatus(hours MarketHours) *MarketStatus {
	return &MarketStatus{
		marketHours: hours,
		tz:          common.GetTimezone(),
	}
}

// Timezone returns the exchange's reference time zone.
func (ms *MarketStatus) Timezone() *time.Location {
	return ms.tz
}

// Hours returns the regular session boundaries.
func (ms *MarketStatus) Hours() MarketHours {
	return ms.marketHours
}

// HolidayName returns the holiday observed on the given date, or the empty
// string for a regular trading day.
func (ms *MarketStatus) HolidayName(t time.Time) string {
	return nseHolidays[t.In(ms.tz).Format("2006-01-02")]
}

// IsMarketDay returns true if the specified date is a valid trading day
// (i.e. not a market holiday or weekend)
func (ms *MarketStatus) IsMarketDay(t time.Time) bool {
	t = t.In(ms.tz)
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	return ms.HolidayName(t) == ""
}

// IsMarketOpen returns true if the specified time is during market hours
// (i.e. not a market holiday or weekend)
func (ms *MarketStatus) IsMarketOpen(t time.Time) bool {
	if !ms.IsMarketDay(t) {
		return false
	}

	t = t.In(ms.tz)
	timeOfDay := t.Hour()*100 + t.Minute()
	if timeOfDay < ms.marketHours.Open || timeOfDay > ms.marketHours.Close {
		return false
	}

	return true
}

// NextOpen returns the start of the next regular session strictly after t.
func (ms *MarketStatus) NextOpen(t time.Time) time.Time {
	t = t.In(ms.tz)

	d := time.Date(t.Year(), t.Month(), t.Day(), ms.marketHours.Open/100, ms.marketHours.Open%100, 0, 0, ms.tz)
	if !d.After(t) || !ms.IsMarketDay(d) {
		d = d.AddDate(0, 0, 1)
		for !ms.IsMarketDay(d) {
			d = d.AddDate(0, 0, 1)
		}
	}
	return d
}
