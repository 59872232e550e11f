package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"stockcast/internal/chart"
	"stockcast/internal/indicators"
	"stockcast/internal/symbols"
	"stockcast/pkg/model"
)

func analyzeCmd() *cobra.Command {
	var period string

	cmd := &cobra.Command{
		Use:   "analyze SYMBOL",
		Short: "Show key metrics, recent performance and indicators of a stock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			p, err := chart.ParsePeriod(period)
			if err != nil {
				return err
			}

			stock, ok := symbols.Lookup(args[0])
			if !ok {
				return fmt.Errorf("%w: %s", symbols.ErrUnknownSymbol, args[0])
			}

			ctx, cancel := signalContext(nil)
			defer cancel()

			a := newApp(ctx, cfg)
			defer a.Close()

			hist, err := a.data.GetDailyHistory(ctx, stock.Symbol, "max")
			if err != nil || hist.Empty() {
				if err != nil {
					log.Debug().Err(err).Str("symbol", stock.Symbol).Msg("history unavailable")
				}
				return fmt.Errorf("could not retrieve valid data for %s", stock.Symbol)
			}
			profile, err := a.data.GetProfile(ctx, stock.Symbol)
			if err != nil || !profile.Valid() {
				log.Warn().Err(err).Str("symbol", stock.Symbol).Msg("profile unavailable")
				profile = nil
			}

			view := *hist
			if view.Currency == "" {
				view.Currency = stock.Currency
			}
			analysis, err := chart.BuildAnalysis(&view, profile, chart.Options{Period: p})
			if err != nil {
				return err
			}

			if format == "json" {
				return outputJSON(analysis)
			}
			outputAnalysis(analysis, stock.Name, chart.Slice(view.Candles, p))
			return nil
		},
	}

	cmd.Flags().StringVar(&period, "period", string(chart.DefaultPeriod), "indicator period: 5d, 1mo, 6mo, ytd, 1y, 5y, max")
	return cmd
}

func outputAnalysis(a *chart.Analysis, name string, window []model.Candle) {
	if a.Profile != nil {
		name = a.Profile.ShortName
	}
	fmt.Printf("%s (%s)\n", name, a.Symbol)
	if a.Profile != nil {
		if a.Profile.Sector != "" {
			fmt.Printf("Sector: %s\n", a.Profile.Sector)
		}
		if a.Profile.Website != "" {
			fmt.Printf("Website: %s\n", a.Profile.Website)
		}
	}

	fmt.Println("\nKey Financial Metrics")
	for _, group := range a.Metrics {
		table := tablewriter.NewTable(os.Stdout,
			tablewriter.WithHeader([]string{"Metric", "Value"}),
		)
		for _, row := range group {
			table.Append([]string{row.Metric, row.Value})
		}
		table.Render()
	}

	if a.LastClose != nil {
		fmt.Printf("\nLast Close Price: %s  %s\n", a.LastClose.Value, a.LastClose.Delta)
	}

	fmt.Println("\nHistorical Data (Last 10 Days)")
	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Date", "Open", "High", "Low", "Close", "Volume"}),
	)
	for _, r := range a.Recent {
		table.Append([]string{r.Date, r.Open, r.High, r.Low, r.Close, r.Volume})
	}
	table.Render()

	closes := make([]float64, len(window))
	for i, c := range window {
		closes[i] = c.Close
	}
	macd := indicators.MACD(closes, indicators.MACDFast, indicators.MACDSlow, indicators.MACDSignal)

	fmt.Printf("\nIndicators (%s, %d sessions)\n", a.Period, len(window))
	table = tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Indicator", "Latest"}),
	)
	table.Append([]string{"RSI(14)", latest(indicators.RSI(closes, indicators.RSIPeriod))})
	table.Append([]string{"MACD(12,26)", latest(macd.MACD)})
	table.Append([]string{"Signal(9)", latest(macd.Signal)})
	table.Append([]string{"50-Day SMA", latest(indicators.SMA(closes, indicators.SMAShort))})
	table.Append([]string{"200-Day SMA", latest(indicators.SMA(closes, indicators.SMALong))})
	table.Render()
}

func latest(series []float64) string {
	v, ok := indicators.Last(series)
	if !ok {
		return chart.NotAvailable
	}
	return chart.Fixed2(v)
}

func outputJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
