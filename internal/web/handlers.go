package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"stockcast/internal/chart"
	"stockcast/internal/forecast"
	"stockcast/internal/symbols"
	"stockcast/pkg/model"
)

// analysisLookback is the history range behind the analysis page; periods
// slice it further
const analysisLookback = "max"

// periodCookie remembers the last selected chart period per browser
const periodCookie = "stockcast_period"

// StocksResponse lists the selectable stocks
type StocksResponse struct {
	Stocks []model.Stock `json:"stocks"`
}

// ErrorResponse is the JSON body of every failed API request
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// HealthResponse reports liveness
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// handleStocks returns the stock universe
func (s *Server) handleStocks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StocksResponse{Stocks: s.loader.LoadStocks(r.Context())})
}

// handleAnalysis returns profile tables and charts for one stock
func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	stock, ok := symbols.Lookup(mux.Vars(r)["symbol"])
	if !ok {
		writeError(w, r, http.StatusNotFound, fmt.Sprintf("unknown symbol %q", mux.Vars(r)["symbol"]))
		return
	}

	opts, err := s.chartOptions(w, r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	hist, err := s.data.GetDailyHistory(ctx, stock.Symbol, analysisLookback)
	if err != nil || hist.Empty() {
		if err != nil {
			log.Warn().Err(err).Str("component", "web").Str("symbol", stock.Symbol).Msg("history unavailable")
		}
		writeError(w, r, http.StatusNotFound,
			fmt.Sprintf("could not retrieve valid data for %s", stock.Symbol))
		return
	}

	profile, err := s.data.GetProfile(ctx, stock.Symbol)
	if err != nil || !profile.Valid() {
		log.Warn().Err(err).Str("component", "web").Str("symbol", stock.Symbol).Msg("profile unavailable")
		profile = nil
	}

	// copy so the memoized history is never modified
	view := *hist
	if view.Currency == "" {
		view.Currency = stock.Currency
		if profile != nil && profile.Currency != "" {
			view.Currency = profile.Currency
		}
	}

	analysis, err := chart.BuildAnalysis(&view, profile, opts)
	if err != nil {
		s.internalError(w, r, stock.Symbol, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

// chartOptions reads period, chart and indicator from the query. The period
// falls back to the cookie, and a chosen period is stored in it.
func (s *Server) chartOptions(w http.ResponseWriter, r *http.Request) (chart.Options, error) {
	q := r.URL.Query()

	raw := q.Get("period")
	if raw == "" {
		if c, err := r.Cookie(periodCookie); err == nil {
			raw = c.Value
		}
	}
	period, err := chart.ParsePeriod(raw)
	if err != nil {
		return chart.Options{}, err
	}
	if q.Get("period") != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     periodCookie,
			Value:    string(period),
			Path:     "/",
			MaxAge:   int((30 * 24 * time.Hour).Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	chartType, err := chart.ParseChartType(q.Get("chart"))
	if err != nil {
		return chart.Options{}, err
	}
	indicator, err := chart.ParseIndicator(chartType, q.Get("indicator"))
	if err != nil {
		return chart.Options{}, err
	}
	return chart.Options{Period: period, ChartType: chartType, Indicator: indicator}, nil
}

// handlePrediction runs the forecasting pipeline for one stock
func (s *Server) handlePrediction(w http.ResponseWriter, r *http.Request) {
	stock, ok := symbols.Lookup(mux.Vars(r)["symbol"])
	if !ok {
		writeError(w, r, http.StatusNotFound, fmt.Sprintf("unknown symbol %q", mux.Vars(r)["symbol"]))
		return
	}

	result, err := s.forecaster.Run(r.Context(), stock.Symbol, nil)
	switch {
	case errors.Is(err, forecast.ErrNoData), errors.Is(err, forecast.ErrInsufficientData):
		writeError(w, r, http.StatusNotFound,
			fmt.Sprintf("could not retrieve data or run prediction for %s", stock.Symbol))
		return
	case err != nil:
		s.internalError(w, r, stock.Symbol, err)
		return
	}

	writeJSON(w, http.StatusOK, chart.BuildPrediction(result, stock.Currency))
}

// handleHealth reports that the server is up
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Timestamp: time.Now().UTC()})
}

// handleNotFound answers unknown API paths
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotFound, "the requested endpoint does not exist")
}

// internalError logs err and answers with a generic message
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, symbol string, err error) {
	log.Error().Err(err).
		Str("component", "web").
		Str("request_id", requestID(r)).
		Str("symbol", symbol).
		Msg("request failed")
	writeError(w, r, http.StatusInternalServerError,
		fmt.Sprintf("failed to process %s, please try again later", symbol))
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Str("component", "web").Msg("json encoding failed")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, RequestID: requestID(r)})
}
