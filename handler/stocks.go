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

package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/penny-vault/pv-stocks/common"
	"github.com/penny-vault/pv-stocks/data"
)

// StockService is the slice of the data manager the HTTP layer depends on.
type StockService interface {
	GetPrice(ctx context.Context, symbol string) (*data.Quote, error)
	GetPrices(ctx context.Context, symbols []string) map[string]*data.BatchResult
	GetFundamentals(ctx context.Context, symbol string) (*data.Fundamentals, error)
}

// Response is the JSON envelope every endpoint returns.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Stocks bundles the HTTP handlers around an injected StockService.
type Stocks struct {
	Service StockService
	Market  *data.MarketStatus
}

func NewStocks(service StockService) *Stocks {
	return &Stocks{
		Service: service,
		Market:  data.NewMarketStatus(data.NSEHours),
	}
}

// Ping reports service identity and health.
func (h *Stocks) Ping(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "pvstocks",
		"status":  "healthy",
		"version": common.CurrentVersion.String(),
		"message": "API is running",
	})
}

// Health is the bare health-check payload.
func (h *Stocks) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"service": "pvstocks",
	})
}

// AvailableStocks returns the static list of supported ticker names.
func (h *Stocks) AvailableStocks(c *fiber.Ctx) error {
	return c.JSON(Response{
		Success: true,
		Data: fiber.Map{
			"available_stocks": data.AvailableStocks(),
		},
	})
}

// MarketStatus reports whether the exchange is currently trading.
func (h *Stocks) MarketStatus(c *fiber.Ctx) error {
	now := time.Now().In(h.Market.Timezone())
	hours := h.Market.Hours()

	payload := fiber.Map{
		"market":        "NSE",
		"is_open":       h.Market.IsMarketOpen(now),
		"current_time":  now.Format(time.RFC3339),
		"session_open":  fmt.Sprintf("%02d:%02d", hours.Open/100, hours.Open%100),
		"session_close": fmt.Sprintf("%02d:%02d", hours.Close/100, hours.Close%100),
		"timezone":      h.Market.Timezone().String(),
	}
	if holiday := h.Market.HolidayName(now); holiday != "" {
		payload["holiday"] = holiday
	}
	if !h.Market.IsMarketOpen(now) {
		payload["next_open"] = h.Market.NextOpen(now).Format(time.RFC3339)
	}

	return c.JSON(Response{Success: true, Data: payload})
}

// Price returns the quote for one symbol. Invalid symbols map to 400;
// upstream exhaustion maps to 502 with the error string in the envelope.
func (h *Stocks) Price(c *fiber.Ctx) error {
	symbol := c.Params("symbol")

	quote, err := h.Service.GetPrice(c.UserContext(), symbol)
	if err != nil {
		status := fiber.StatusBadGateway
		if errors.Is(err, data.ErrInvalidSymbol) {
			status = fiber.StatusBadRequest
		}
		log.Warn().Err(err).Str("Symbol", symbol).Msg("price lookup failed")
		return c.Status(status).JSON(Response{Success: false, Error: err.Error()})
	}

	return c.JSON(Response{Success: true, Data: quote})
}

// Fundamentals returns the fundamentals record for one symbol. Upstream
// failures are already degraded to static estimates by the service, so only
// an invalid symbol produces an error envelope.
func (h *Stocks) Fundamentals(c *fiber.Ctx) error {
	symbol := c.Params("symbol")

	record, err := h.Service.GetFundamentals(c.UserContext(), symbol)
	if err != nil {
		log.Warn().Err(err).Str("Symbol", symbol).Msg("fundamentals lookup failed")
		return c.Status(fiber.StatusBadRequest).JSON(Response{Success: false, Error: err.Error()})
	}

	return c.JSON(Response{Success: true, Data: record})
}

// BatchPrices resolves several symbols in one call. Accepts repeated
// `symbols` query parameters or a single comma-separated value; per-symbol
// failures are inlined in the result map and never fail the request.
func (h *Stocks) BatchPrices(c *fiber.Ctx) error {
	symbols := batchSymbols(c)
	if len(symbols) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(Response{
			Success: false,
			Error:   "missing symbols query parameter",
		})
	}

	results := h.Service.GetPrices(c.UserContext(), symbols)
	return c.JSON(Response{Success: true, Data: results})
}

func batchSymbols(c *fiber.Ctx) []string {
	var symbols []string
	for _, raw := range c.Context().QueryArgs().PeekMulti("symbols") {
		for _, part := range strings.Split(string(raw), ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				symbols = append(symbols, part)
			}
		}
	}
	common.ArrToUpper(symbols)
	return symbols
}
