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

import "context"

// History window sizes, in trading days. The short window is enough to
// compute a daily change; the extended window is the single retry used when
// the short window comes back empty.
const (
	ShortWindowDays    = 5
	ExtendedWindowDays = 22
)

// Provider retrieves market data for a single security. Implementations must
// treat the upstream as unreliable: empty results, partial fields, and
// outright failures are all expected.
type Provider interface {
	// Name identifies the provider in logs and error messages.
	Name() string

	// History returns up to the requested number of most recent daily OHLCV
	// observations, oldest first. ErrNoData is returned when the upstream
	// responds successfully but carries no observations.
	History(ctx context.Context, symbol string, days int) ([]Bar, error)

	// CompanyFacts returns the fundamentals blob for a symbol.
	CompanyFacts(ctx context.Context, symbol string) (*CompanyFacts, error)
}
