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

package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/penny-vault/pv-stocks/handler"
)

// SetupRoutes setup router api
func SetupRoutes(app *fiber.App, stocks *handler.Stocks) {
	app.Get("/", stocks.Ping)
	app.Get("/health", stocks.Health)

	group := app.Group("/stocks")
	group.Get("/", stocks.AvailableStocks)
	group.Get("/price/:symbol", stocks.Price)
	group.Get("/fundamentals/:symbol", stocks.Fundamentals)
	group.Get("/batch/prices", stocks.BatchPrices)
	group.Get("/market/status", stocks.MarketStatus)
}
