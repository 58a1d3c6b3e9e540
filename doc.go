// Package cryptofolio values a portfolio of crypto-assets against live quotes
// and decides how to rebalance it toward a fixed target allocation.
//
// The core functionalities include:
//   - Valuation: combining holdings with quotes into priced assets and a total,
//     silently skipping assets that cannot be priced.
//   - Allocation: splitting the portfolio between volatile and stable assets
//     according to an explicit Classification.
//   - Rebalancing: a 70/30 target with a 2.5 points tolerance band. When
//     triggered, each class is resized to its target while the assets inside
//     it keep their relative weights.
//   - Returns: the value-weighted 24h and 7d change of the portfolio.
//
// Every function in this package is pure and safe for concurrent use. The
// stateful parts (holdings and valuation history) live in the history, storage
// and tracker packages. This package serves as the foundational logic for the
// `folio` command-line tool and its HTTP server.
package cryptofolio
