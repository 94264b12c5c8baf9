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
	"fmt"
	"sort"
	"strings"
)

const (
	// SuffixNSE is the primary exchange suffix; bare tickers default to it.
	SuffixNSE = ".NS"
	// SuffixBSE is the secondary domestic exchange suffix.
	SuffixBSE = ".BO"
)

// knownTickers maps the plain NSE ticker names the front end uses to their
// canonical provider form.
var knownTickers = map[string]string{
	"RELIANCE":   "RELIANCE.NS",
	"TCS":        "TCS.NS",
	"HDFCBANK":   "HDFCBANK.NS",
	"INFY":       "INFY.NS",
	"ITC":        "ITC.NS",
	"SBIN":       "SBIN.NS",
	"HINDUNILVR": "HINDUNILVR.NS",
	"BHARTIARTL": "BHARTIARTL.NS",
	"KOTAKBANK":  "KOTAKBANK.NS",
	"LT":         "LT.NS",
	"BAJFINANCE": "BAJFINANCE.NS",
	"ASIANPAINT": "ASIANPAINT.NS",
	"TATAMOTORS": "TATAMOTORS.NS",
	"SUNPHARMA":  "SUNPHARMA.NS",
}

// internationalSuffixes are tried, in order, after the domestic variants when
// building the acquisition fallback sequence.
var internationalSuffixes = []string{".L", ".DE", ".HK", ".SI"}

// AvailableStocks returns the static list of supported ticker names sorted
// alphabetically.
func AvailableStocks() []string {
	out := make([]string, 0, len(knownTickers))
	for k := range knownTickers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// NormalizeSymbol maps a free-form ticker string to its canonical provider
// form. Tickers already carrying a recognized exchange suffix pass through
// upper-cased; known plain tickers map through the static table; anything else
// defaults to the NSE suffix. Normalization is idempotent.
func NormalizeSymbol(raw string) (string, error) {
	symbol := strings.ToUpper(strings.TrimSpace(raw))
	if symbol == "" {
		return "", fmt.Errorf("%w: empty symbol", ErrInvalidSymbol)
	}
	if !validSymbolRunes(symbol) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, raw)
	}

	if strings.HasSuffix(symbol, SuffixNSE) || strings.HasSuffix(symbol, SuffixBSE) {
		return symbol, nil
	}

	if canonical, ok := knownTickers[symbol]; ok {
		return canonical, nil
	}

	return symbol + SuffixNSE, nil
}

// SymbolVariants builds the ordered list of candidate symbols the acquisition
// chain walks when the canonical form yields no data: canonical form first,
// then both domestic suffixes, the bare base symbol, and a fixed set of
// international suffixes. The list is de-duplicated preserving first-seen
// order.
func SymbolVariants(raw string) ([]string, error) {
	canonical, err := NormalizeSymbol(raw)
	if err != nil {
		return nil, err
	}

	base := canonical
	if idx := strings.LastIndex(canonical, "."); idx > 0 {
		base = canonical[:idx]
	}

	candidates := []string{canonical, base + SuffixNSE, base + SuffixBSE, base}
	for _, suffix := range internationalSuffixes {
		candidates = append(candidates, base+suffix)
	}

	seen := make(map[string]struct{}, len(candidates))
	variants := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		variants = append(variants, c)
	}
	return variants, nil
}

func validSymbolRunes(symbol string) bool {
	for _, r := range symbol {
		switch {
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '.' || r == '&' || r == '-':
		default:
			return false
		}
	}
	return true
}
