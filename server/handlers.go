package server

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/etnz/cryptofolio"
	"github.com/etnz/cryptofolio/history"
)

// assetResponse is one priced asset, as served by /api/portfolio.
type assetResponse struct {
	Amount           cryptofolio.Quantity `json:"amount"`
	PriceBRL         cryptofolio.Money    `json:"price_brl"`
	ValueBRL         cryptofolio.Money    `json:"value_brl"`
	PercentChange24h cryptofolio.Percent  `json:"percent_change_24h"`
	PercentChange7d  cryptofolio.Percent  `json:"percent_change_7d"`
}

type portfolioResponse struct {
	Assets     map[string]assetResponse          `json:"assets"`
	TotalBRL   cryptofolio.Money                 `json:"total_brl"`
	Skipped    []string                          `json:"skipped,omitempty"`
	MarketData map[string]cryptofolio.MarketData `json:"market_data,omitempty"`
}

func newPortfolioResponse(v cryptofolio.Valuation) *portfolioResponse {
	res := &portfolioResponse{
		Assets:   make(map[string]assetResponse, len(v.Assets)),
		TotalBRL: v.Total,
		Skipped:  v.Skipped,
	}
	for symbol, a := range v.Assets {
		res.Assets[symbol] = assetResponse{
			Amount:           a.Amount,
			PriceBRL:         a.Price,
			ValueBRL:         a.Value,
			PercentChange24h: a.PercentChange24h,
			PercentChange7d:  a.PercentChange7d,
		}
	}
	return res
}

// handleHealth handles GET /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handlePortfolio handles GET /api/portfolio.
func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	v, err := s.tracker.Portfolio(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, newPortfolioResponse(v))
}

type updateRequest struct {
	Assets map[string]any `json:"assets"`
}

// handlePortfolioUpdate handles POST /api/portfolio/update with {"assets": {"BTC": 0.5}}.
func (s *Server) handlePortfolioUpdate(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var req updateRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Assets == nil {
		WriteError(w, http.StatusBadRequest, "Invalid request data: missing assets")
		return
	}
	update, err := cryptofolio.ParseUpdate(req.Assets)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.tracker.Update(r.Context(), update)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"message":   "Portfolio updated successfully",
		"portfolio": res.Holdings,
		"total_brl": res.Valuation.Total,
		"timestamp": res.Entry.Timestamp,
	})
}

type analysisResponse struct {
	Portfolio   *portfolioResponse     `json:"portfolio"`
	Allocation  cryptofolio.Allocation `json:"allocation"`
	Rebalance   cryptofolio.Plan       `json:"rebalance"`
	Change      cryptofolio.Change     `json:"change"`
	Report      string                 `json:"report"`
	Analysis    string                 `json:"analysis,omitempty"`
	SummaryHTML string                 `json:"summary_html,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
}

// handlePortfolioAnalysis handles GET /api/portfolio/analysis[?summary=false].
func (s *Server) handlePortfolioAnalysis(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	summarize := true
	if raw := r.URL.Query().Get("summary"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid summary parameter: "+raw)
			return
		}
		summarize = b
	}

	report, err := s.tracker.Analysis(r.Context(), summarize)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	portfolio := newPortfolioResponse(report.Valuation)
	portfolio.MarketData = report.MarketData
	res := analysisResponse{
		Portfolio:  portfolio,
		Allocation: report.Allocation,
		Rebalance:  report.Plan,
		Change:     report.Change,
		Report:     report.Markdown,
		Analysis:   report.Summary,
		Timestamp:  report.Timestamp,
	}
	if report.Summary != "" {
		var buf bytes.Buffer
		if err := s.markdown.Convert([]byte(report.Summary), &buf); err != nil {
			s.logger.Warn().Err(err).Msg("cannot convert summary to HTML")
		} else {
			res.SummaryHTML = buf.String()
		}
	}
	WriteJSON(w, http.StatusOK, res)
}

// days parses the optional 'days' query parameter, 0 means everything.
func days(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// handlePortfolioHistory handles GET /api/portfolio/history[?days=N].
func (s *Server) handlePortfolioHistory(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	n, ok := days(r)
	if !ok {
		WriteError(w, http.StatusBadRequest, "Invalid days parameter")
		return
	}
	entries, err := s.tracker.History(r.Context(), n)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string][]history.Entry{"history": entries})
}

// handlePortfolioHistoryChart handles GET /api/portfolio/history/chart[?days=N].
func (s *Server) handlePortfolioHistoryChart(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	n, ok := days(r)
	if !ok {
		WriteError(w, http.StatusBadRequest, "Invalid days parameter")
		return
	}
	entries, err := s.tracker.History(r.Context(), n)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if len(entries) < 2 {
		WriteError(w, http.StatusNotFound, "Not enough history to draw a chart")
		return
	}
	png, err := history.RenderChart(entries)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// fail logs err and writes the matching error response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	event := s.logger.Warn()
	if status >= 500 {
		event = s.logger.Error()
	}
	x := exchangeOf(r)
	event.Err(err).
		Str("operation", x.operation).
		Str("correlation_id", x.id).
		Int("status", status).
		Msg("portfolio operation failed")
	WriteError(w, status, err.Error())
}
