package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/moznion/go-optional"
	"github.com/urfave/cli/v3"

	"github.com/humbldata/humbldata-go/internal/logger"
	"github.com/humbldata/humbldata-go/pkg/params"
	"github.com/humbldata/humbldata-go/pkg/store"
)

func fetchAction(ctx context.Context, cmd *cli.Command) error {
	config, err := LoadAppConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	appLog, err := logger.NewLogger()
	if err != nil {
		return err
	}
	defer func() { _ = appLog.Sync() }()

	client, err := buildClient(config, appLog)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	outcome, err := client.FetchData(ctx, cmd.String("route"), params.EquityHistoricalParams{
		Symbols:      cmd.StringSlice("symbol"),
		StartDate:    cmd.Timestamp("start"),
		EndDate:      cmd.Timestamp("end"),
		Interval:     cmd.String("interval"),
		DataProvider: cmd.String("provider"),
	})
	if err != nil {
		return err
	}

	tbl, err := outcome.Data.Collect()
	if err != nil {
		return err
	}

	fmt.Printf("provider: %s\n", outcome.Provider)
	fmt.Printf("columns:  %v\n", tbl.Schema.Names())
	fmt.Printf("rows:     %d\n", tbl.NumRows())

	for _, warning := range outcome.Warnings {
		fmt.Printf("warning:  [%s] %s\n", warning.Category, warning.Message)
	}

	return nil
}

func downloadAction(ctx context.Context, cmd *cli.Command) error {
	config, err := LoadAppConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	appLog, err := logger.NewLogger()
	if err != nil {
		return err
	}
	defer func() { _ = appLog.Sync() }()

	client, err := buildClient(config, appLog)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	symbols := cmd.StringSlice("symbol")

	outcome, err := client.FetchData(ctx, cmd.String("route"), params.EquityHistoricalParams{
		Symbols:      symbols,
		StartDate:    cmd.Timestamp("start"),
		EndDate:      cmd.Timestamp("end"),
		Interval:     cmd.String("interval"),
		DataProvider: cmd.String("provider"),
	})
	if err != nil {
		return err
	}

	tbl, err := outcome.Data.Collect()
	if err != nil {
		return err
	}

	fallback := ""
	if len(symbols) == 1 {
		fallback = symbols[0]
	}

	bars, err := store.TableToBars(tbl, fallback)
	if err != nil {
		return err
	}

	dbPath := cmd.String("db")
	if dbPath == "" {
		dbPath = config.DBPath
	}

	db, err := store.NewDuckDBStore(dbPath, appLog)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := db.SaveBars(ctx, bars); err != nil {
		return err
	}

	count, err := db.Count(ctx, fallback, optional.None[time.Time](), optional.None[time.Time]())
	if err != nil {
		return err
	}

	fmt.Printf("saved %d bars to %s (total for %s: %d)\n", len(bars), dbPath, fallback, count)

	return nil
}

func sharedFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to the YAML configuration file",
		},
		&cli.StringFlag{
			Name:    "route",
			Aliases: []string{"r"},
			Usage:   "Dotted data route, e.g. equity.price.historical",
			Value:   "equity.price.historical",
		},
		&cli.StringSliceFlag{
			Name:     "symbol",
			Aliases:  []string{"t"},
			Usage:    "Ticker symbol, repeatable",
			Required: true,
		},
		&cli.TimestampFlag{
			Name:     "start",
			Aliases:  []string{"s"},
			Usage:    "Start date in `YYYY-MM-DD` format",
			Required: true,
			Config: cli.TimestampConfig{
				Layouts: []string{"2006-01-02"},
			},
		},
		&cli.TimestampFlag{
			Name:    "end",
			Aliases: []string{"e"},
			Usage:   "End date in `YYYY-MM-DD` format. Defaults to today.",
			Value:   time.Now(),
			Config: cli.TimestampConfig{
				Layouts: []string{"2006-01-02"},
			},
		},
		&cli.StringFlag{
			Name:    "interval",
			Aliases: []string{"i"},
			Usage:   "Bar interval (1m, 5m, 15m, 30m, 1h, 4h, 1d, 1w, 1M)",
			Value:   "1d",
		},
		&cli.StringFlag{
			Name:    "provider",
			Aliases: []string{"p"},
			Usage:   "Upstream data provider",
			Value:   "yfinance",
		},
	}
}

func main() {
	cmd := &cli.Command{
		Name:  "humbldata",
		Usage: "Fetch and persist financial time-series data",
		Commands: []*cli.Command{
			{
				Name:   "fetch",
				Usage:  "Fetch data for a route and print a summary",
				Flags:  sharedFlags(),
				Action: fetchAction,
			},
			{
				Name:  "download",
				Usage: "Fetch data and persist it to a local DuckDB database",
				Flags: append(sharedFlags(), &cli.StringFlag{
					Name:    "db",
					Aliases: []string{"d"},
					Usage:   "Path to the DuckDB database file",
				}),
				Action: downloadAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
