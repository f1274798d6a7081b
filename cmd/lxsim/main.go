// Command lxsim wires a matchcore.Exchange together with the
// telemetry, gateway, and bus ambient packages and drives it through a
// short deterministic script of orders, mirroring the way the
// reference repo's cmd/dex-server wires its own engine to NATS and an
// HTTP listener. It is a demo harness, not the stochastic simulation
// driver: the script below is fixed, not randomly generated.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/lxbook/matchcore/internal/config"
	"github.com/lxbook/matchcore/pkg/bus"
	"github.com/lxbook/matchcore/pkg/gateway"
	"github.com/lxbook/matchcore/pkg/matchcore"
	"github.com/lxbook/matchcore/pkg/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (defaults to built-in defaults)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "lxsim: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lxsim: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("lxsim: fatal error", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	return cfg.Build()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	metrics := telemetry.New(cfg.Symbol, logger)
	market := gateway.New(cfg.Symbol)

	var busPub *bus.Publisher
	if cfg.Nats.Enabled {
		p, err := bus.Connect(cfg.Nats.URL, cfg.Symbol, logger)
		if err != nil {
			logger.Warn("lxsim: NATS bus unavailable, continuing without it", zap.Error(err))
		} else {
			busPub = p
			defer busPub.Close()
		}
	}

	var ex *matchcore.Exchange
	opts := []matchcore.Option{
		matchcore.WithLogger(metrics.Logger()),
		matchcore.WithTradeHook(func(tr matchcore.Trade) {
			logger.Info("trade executed",
				zap.Uint64("sequence", tr.Sequence),
				zap.String("price", tr.Price.String()),
				zap.String("quantity", tr.Quantity.String()),
				zap.String("buy_trader", tr.BuyTraderID),
				zap.String("sell_trader", tr.SellTraderID),
			)
		}),
		matchcore.WithTradeHook(market.TradeHook()),
		matchcore.WithBookTopHook(market.BookTopHook()),
		matchcore.WithBookTopHook(metrics.BookTopHook(func() *matchcore.OrderBook { return ex.OrderBook() })),
		matchcore.WithSubmitHook(metrics.SubmitHook()),
	}
	if busPub != nil {
		opts = append(opts, matchcore.WithTradeHook(busPub.TradeHook()), matchcore.WithBookTopHook(busPub.BookTopHook()))
	}
	ex = matchcore.NewExchange(cfg.Symbol, opts...)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())
	gatewayMux := http.NewServeMux()
	gatewayMux.Handle("/ws", market)

	servers := []*http.Server{
		{Addr: cfg.Metrics.Addr, Handler: metricsMux},
		{Addr: cfg.Gateway.Addr, Handler: gatewayMux},
	}
	for _, srv := range servers {
		go func(srv *http.Server) {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("lxsim: HTTP server stopped", zap.String("addr", srv.Addr), zap.Error(err))
			}
		}(srv)
	}
	logger.Info("lxsim: metrics and gateway listening",
		zap.String("metrics_addr", cfg.Metrics.Addr), zap.String("gateway_addr", cfg.Gateway.Addr))

	traders := make([]*matchcore.Trader, 0, cfg.Traders)
	for i := 0; i < cfg.Traders; i++ {
		traders = append(traders, ex.RegisterTrader())
	}

	if err := runScript(ex, traders, logger); err != nil {
		return fmt.Errorf("run script: %w", err)
	}

	fmt.Println(ex.OrderBook().Render())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	logger.Info("lxsim: script complete, serving telemetry/gateway until interrupted")
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	var shutdownErr error
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}
	return shutdownErr
}

// runScript exercises a rest (S1), a full fill (S2), a partial fill
// (S3), and a multi-level market sweep (S4) against a fresh Exchange,
// using at least two of the registered traders.
func runScript(ex *matchcore.Exchange, traders []*matchcore.Trader, logger *zap.Logger) error {
	if len(traders) < 2 {
		return fmt.Errorf("need at least 2 traders, got %d", len(traders))
	}
	maker, taker := traders[0], traders[1]

	// S1: a resting limit order with no counterparty.
	if _, err := submit(ex, maker, decimal.RequireFromString("99"), decimal.RequireFromString("10"), matchcore.Buy, matchcore.Limit); err != nil {
		return err
	}

	// S2: a resting sell fully filled by a same-priced incoming buy.
	if _, err := submit(ex, maker, decimal.RequireFromString("105"), decimal.RequireFromString("10"), matchcore.Sell, matchcore.Limit); err != nil {
		return err
	}
	if _, err := submit(ex, taker, decimal.RequireFromString("105"), decimal.RequireFromString("10"), matchcore.Buy, matchcore.Limit); err != nil {
		return err
	}

	// S3: an incoming buy smaller than a resting sell leaves a residual.
	if _, err := submit(ex, maker, decimal.RequireFromString("101"), decimal.RequireFromString("20"), matchcore.Sell, matchcore.Limit); err != nil {
		return err
	}
	if _, err := submit(ex, taker, decimal.RequireFromString("101"), decimal.RequireFromString("10"), matchcore.Buy, matchcore.Limit); err != nil {
		return err
	}

	// S4: a market order sweeps two resting sell levels.
	if _, err := submit(ex, maker, decimal.RequireFromString("100"), decimal.RequireFromString("15"), matchcore.Sell, matchcore.Limit); err != nil {
		return err
	}
	if _, err := submit(ex, maker, decimal.RequireFromString("99"), decimal.RequireFromString("10"), matchcore.Sell, matchcore.Limit); err != nil {
		return err
	}
	if _, err := submit(ex, taker, decimal.Zero, decimal.RequireFromString("20"), matchcore.Buy, matchcore.Market); err != nil {
		return err
	}

	logger.Info("lxsim: script complete", zap.Int("trades", len(ex.Trades())))
	return nil
}

func submit(ex *matchcore.Exchange, trader *matchcore.Trader, price, qty decimal.Decimal, side matchcore.Side, kind matchcore.Kind) ([]matchcore.Trade, error) {
	var order *matchcore.Order
	var err error
	if kind == matchcore.Limit {
		order, err = trader.CreateLimit(price, qty, side)
	} else {
		order, err = trader.CreateMarket(qty, side)
	}
	if err != nil {
		return nil, err
	}
	return ex.Submit(order)
}
