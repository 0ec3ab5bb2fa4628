package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/cryptoverlay/api"
	"github.com/seenimoa/cryptoverlay/internal/alerts"
	"github.com/seenimoa/cryptoverlay/internal/display"
	"github.com/seenimoa/cryptoverlay/internal/metrics"
	"github.com/seenimoa/cryptoverlay/internal/refresher"
	"github.com/seenimoa/cryptoverlay/internal/store"
	"github.com/seenimoa/cryptoverlay/pkg/models"
	"github.com/seenimoa/cryptoverlay/pkg/utils"
	"github.com/seenimoa/cryptoverlay/web"
)

// --- Once Command ---

var onceCmd = &cobra.Command{
	Use:   "once [symbols...]",
	Short: "Run a single aggregation pass and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		symbols := cfg.Symbols
		if len(args) > 0 {
			symbols = utils.NormalizeSymbols(args)
		}

		eng, err := buildEngine(cfg, logger, metrics.NewNoOpCollector())
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		started := time.Now()
		result := eng.Aggregate(ctx, symbols)
		u := models.Update{
			Symbols:     utils.NormalizeSymbols(symbols),
			Result:      result,
			StartedAt:   started,
			CompletedAt: time.Now(),
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(u)
		}
		return printTable(cmd.OutOrStdout(), u)
	},
}

func init() {
	onceCmd.Flags().Bool("json", false, "print the result as JSON")
}

// printTable writes one row per requested symbol.
func printTable(w io.Writer, u models.Update) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "SYMBOL\tPRICE\tCHANGE\tPREMIUM\tTREND\t")
	for _, q := range u.Ordered() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n",
			q.Symbol,
			display.FormatPrice(q.Price),
			display.FormatChange(q.ChangePct),
			display.FormatPremium(q.PremiumPct),
			display.TrendIcon(q.ChangePct),
		)
	}
	return tw.Flush()
}

// --- Watch Command ---

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Refresh prices continuously until interrupted",
	Long: `Runs a pass immediately and then every refresh_interval seconds.
Prices are rendered to the terminal; alerts, the local API server and the
storage sinks are started when enabled in the configuration.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		modeFlag, _ := cmd.Flags().GetString("mode")
		if modeFlag == "" {
			modeFlag = cfg.Display.Mode
		}
		mode, err := display.ParseMode(modeFlag)
		if err != nil {
			return err
		}
		if every, _ := cmd.Flags().GetInt("interval"); every > 0 {
			cfg.RefreshInterval = every
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		collector := metrics.NewCollector(metrics.DefaultNamespace)
		eng, err := buildEngine(cfg, logger, collector)
		if err != nil {
			return err
		}
		ref := refresher.New(eng, refresher.WithLogger(logger), refresher.WithMetrics(collector))

		renderer := display.NewRenderer(cmd.OutOrStdout(), mode, cfg.Display.Colors)
		consumers := []refresher.Consumer{renderer}
		symbols := func() []string { return cfg.Symbols }

		sinks, err := openSinks(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer sinks.all.Close() //nolint:errcheck
		if sinks.all.Len() > 0 {
			consumers = append(consumers, store.NewConsumer(sinks.all, 5*time.Second, logger))
		}

		var srv *api.Server
		var evaluator *alerts.Evaluator
		if cfg.Alerts.Enabled {
			evaluator = alerts.NewEvaluator(alertRules(cfg),
				alerts.WithLogger(logger),
				alerts.WithMetrics(collector),
				alerts.WithNotify(func(a alerts.Alert) {
					fmt.Fprintf(cmd.OutOrStdout(), "🔔 %s\n", a.Message())
					if srv != nil {
						srv.PublishAlert(a)
					}
				}),
			)
			consumers = append(consumers, evaluator)
		}

		g, gctx := errgroup.WithContext(ctx)

		if cfg.API.Enabled {
			opts := []api.Option{
				api.WithLogger(logger),
				api.WithMetrics(collector),
				api.WithVersion(version),
				api.WithConfigPath(cfgSrc),
				api.WithUI(web.DistFS()),
				api.WithDisplay(renderer),
			}
			if evaluator != nil {
				opts = append(opts, api.WithRules(evaluator))
			}
			if sinks.postgres != nil {
				opts = append(opts, api.WithHistory(sinks.postgres))
			}
			if sinks.redis != nil {
				opts = append(opts, api.WithSnapshot(sinks.redis))
			}
			srv = api.NewServer(cfg, ref, opts...)
			symbols = srv.Symbols
			consumers = append(consumers, srv)

			addr := net.JoinHostPort(cfg.API.Host, strconv.Itoa(cfg.API.Port))
			fmt.Fprintf(cmd.OutOrStdout(), "🌐 API server on http://%s\n", addr)
			g.Go(func() error { return srv.ListenAndServe(gctx, addr) })
		}

		g.Go(func() error {
			toggleOnSignal(gctx, renderer, logger)
			return nil
		})
		g.Go(func() error {
			return refresher.NewScheduler(ref, cfg.RefreshEvery(), symbols, logger).Run(gctx)
		})
		g.Go(func() error {
			refresher.Consume(gctx, ref, consumers...)
			return nil
		})

		err = g.Wait()
		ref.Wait()
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		logger.Info("stopped")
		return nil
	},
}

func init() {
	watchCmd.Flags().String("mode", "", "display mode: compact, standard, detailed, cards (default from config)")
	watchCmd.Flags().Int("interval", 0, "refresh interval in seconds (default from config)")
}

// --- Candles Command ---

var candlesCmd = &cobra.Command{
	Use:   "candles [symbol]",
	Short: "Print recent primary-market candles for a symbol",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		symbol := utils.NormalizeSymbol(args[0])
		intervalFlag, _ := cmd.Flags().GetString("interval")
		limit, _ := cmd.Flags().GetInt("limit")

		interval := models.Interval(intervalFlag)
		if interval.Duration() == 0 {
			return fmt.Errorf("unknown interval %q", intervalFlag)
		}
		if limit <= 0 || limit > 1000 {
			return fmt.Errorf("limit must be 1-1000, got %d", limit)
		}

		src, err := buildSources(cfg)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		end := time.Now()
		start := end.Add(-time.Duration(limit) * interval.Duration())
		candles, err := src.binance.Klines(ctx, symbol, interval, start, end, limit)
		if err != nil {
			return err
		}

		loc, err := cfg.Location()
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "OPEN TIME\tOPEN\tHIGH\tLOW\tCLOSE\tVOLUME\t")
		for _, c := range candles {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t\n",
				utils.FormatDateTime(c.OpenTime.In(loc)),
				utils.FormatPrice(c.Open),
				utils.FormatPrice(c.High),
				utils.FormatPrice(c.Low),
				utils.FormatPrice(c.Close),
				utils.FormatPrice(c.Volume),
			)
		}
		return tw.Flush()
	},
}

func init() {
	candlesCmd.Flags().String("interval", string(models.Interval1Hour), "candle interval (1m, 5m, 15m, 1h, 1d)")
	candlesCmd.Flags().Int("limit", 24, "number of candles")
}

// --- History Command ---

var historyCmd = &cobra.Command{
	Use:   "history [symbol]",
	Short: "Print stored quotes for a symbol (requires postgres)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.Postgres.Enabled {
			return errors.New("postgres storage is not enabled")
		}
		limit, _ := cmd.Flags().GetInt("limit")

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		pg, err := openPostgres(ctx, cfg)
		if err != nil {
			return err
		}
		defer pg.Close() //nolint:errcheck

		records, err := pg.Recent(ctx, utils.NormalizeSymbol(args[0]), limit)
		if err != nil {
			return err
		}

		loc, err := cfg.Location()
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "RECORDED\tPRICE\tCHANGE\tPREMIUM\t")
		for _, r := range records {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n",
				utils.FormatDateTime(r.RecordedAt.In(loc)),
				display.FormatPrice(r.Price),
				display.FormatChange(r.ChangePct),
				display.FormatPremium(r.PremiumPct),
			)
		}
		return tw.Flush()
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "number of records")
}
