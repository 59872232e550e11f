package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"stockcast/internal/chart"
	"stockcast/internal/forecast"
	"stockcast/internal/symbols"
)

func forecastCmd() *cobra.Command {
	var horizon int
	var noProgress bool

	cmd := &cobra.Command{
		Use:   "forecast SYMBOL",
		Short: "Forecast the next 30 days of a stock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("horizon") {
				cfg.Forecast.Horizon = horizon
				if err := cfg.Forecast.Validate(); err != nil {
					return err
				}
			}

			stock, ok := symbols.Lookup(args[0])
			if !ok {
				return fmt.Errorf("%w: %s (choose from %s)", symbols.ErrUnknownSymbol, args[0],
					strings.Join(symbols.GetUniverse(symbols.UniverseNSE), ", "))
			}

			ctx, cancel := signalContext(func() {
				fmt.Fprintln(os.Stderr, "\nInterrupted. Stopping forecast...")
			})
			defer cancel()

			a := newApp(ctx, cfg)
			defer a.Close()

			var progress forecast.ProgressFunc
			var bar *progressbar.ProgressBar
			if !noProgress && format != "json" && term.IsTerminal(int(os.Stderr.Fd())) {
				progress = func(done, total int) {
					if bar == nil {
						bar = newProgressBar(total, "Walk-forward")
					}
					bar.Set(done)
				}
			}

			result, err := a.forecasts.Run(ctx, stock.Symbol, progress)
			if bar != nil {
				bar.Finish()
				fmt.Fprintln(os.Stderr)
			}
			if err != nil {
				if errors.Is(err, forecast.ErrNoData) {
					return fmt.Errorf("could not retrieve data for %s", stock.Symbol)
				}
				return fmt.Errorf("prediction failed: %w", err)
			}

			if format == "json" {
				return outputJSON(result)
			}
			return outputForecast(result, stock.Name, stock.Currency)
		},
	}

	cmd.Flags().IntVar(&horizon, "horizon", 30, "forecast days")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "hide the walk-forward progress bar")
	return cmd
}

func newProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]█[reset]",
			SaucerHead:    "[green]█[reset]",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func outputForecast(r *forecast.Result, name, currency string) error {
	p := chart.BuildPrediction(r, currency)

	fmt.Printf("%s (%s)\n", name, r.Symbol)
	fmt.Printf("Model: %s | differencing order %d", p.Model, p.Order)
	if len(r.Selection.PValues) > 0 {
		pv := make([]string, len(r.Selection.PValues))
		for i, v := range r.Selection.PValues {
			pv[i] = fmt.Sprintf("%.4f", v)
		}
		fmt.Printf(" (ADF p-values: %s)", strings.Join(pv, ", "))
	}
	fmt.Println()
	if r.Evaluation != nil {
		fmt.Printf("Walk-forward: %d train / %d test points\n", r.Evaluation.TrainSize, r.Evaluation.TestSize)
	}
	fmt.Printf("Model RMSE (Root Mean Squared Error): %s\n\n", p.RMSEText)

	fmt.Printf("Forecasted Close Price (Next %d days)\n", len(p.Forecast))
	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Date", "Close"}),
	)
	for _, row := range p.Forecast {
		table.Append([]string{row.Date, row.Close})
	}
	table.Render()
	return nil
}
