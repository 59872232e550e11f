package main

import (
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"stockcast/internal/symbols"
)

func stocksCmd() *cobra.Command {
	var resolve bool

	cmd := &cobra.Command{
		Use:   "stocks",
		Short: "List the supported stocks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			stocks := symbols.Stocks()
			if resolve {
				ctx, cancel := signalContext(nil)
				defer cancel()
				a := newApp(ctx, cfg)
				defer a.Close()
				stocks = symbols.NewLoader(a.data).LoadStocks(ctx)
			}

			if format == "json" {
				return outputJSON(stocks)
			}

			table := tablewriter.NewTable(os.Stdout,
				tablewriter.WithHeader([]string{"Symbol", "Name", "Exchange", "Currency"}),
			)
			for _, s := range stocks {
				table.Append([]string{s.Symbol, s.Name, s.Exchange, s.Currency})
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().BoolVar(&resolve, "resolve", false, "look up company names from the data provider")
	return cmd
}
