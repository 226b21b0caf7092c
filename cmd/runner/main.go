// Package main is the runner's command-line entry point. Grounded on
// original_source/tools/replay_runner.py's subcommand shape ("stream"
// replays bars already in the event log by stream id; "json" replays a
// JSON list of bar dicts through BotRunner.run_once) and on the
// teacher's cmd/server/main.go wiring/shutdown idiom (flag-parsed
// config, zap console logger, signal.Notify graceful shutdown).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/themirrorplatform/constitutional-trader/internal/broker"
	"github.com/themirrorplatform/constitutional-trader/internal/config"
	"github.com/themirrorplatform/constitutional-trader/internal/contracts"
	"github.com/themirrorplatform/constitutional-trader/internal/eventstore"
	"github.com/themirrorplatform/constitutional-trader/internal/execution"
	"github.com/themirrorplatform/constitutional-trader/internal/metrics"
	"github.com/themirrorplatform/constitutional-trader/internal/runner"
	"github.com/themirrorplatform/constitutional-trader/internal/state"
	"github.com/themirrorplatform/constitutional-trader/internal/statusapi"
	"github.com/themirrorplatform/constitutional-trader/pkg/types"
)

func main() {
	configPath := flag.String("config", "", "optional config file (viper-readable: yaml, json, toml); CTRADER_ env vars override it and built-in defaults fill the rest")
	streamID := flag.String("stream", "MES_RTH", "event stream id")
	baseTheta := flag.Float64("base-theta", 0.6, "theta_base before time/day/regime/conflict modifiers")
	confirmThreshold := flag.Float64("confirmation-threshold", 0.4, "required-confirmation signal/belief threshold")
	barsPath := flag.String("bars", "", "path to a JSON list of bars to replay; if empty, serves status only")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	logger := setupLogger(cfg.LogLevel)
	defer logger.Sync()

	bundle, err := contracts.Load(cfg.ContractsDir)
	if err != nil {
		logger.Fatal("load contracts", zap.Error(err))
	}

	events, err := eventstore.Open(cfg.EventStoreDB)
	if err != nil {
		logger.Fatal("open event store", zap.Error(err))
	}
	defer events.Close()

	stateStore := state.New(logger, cfg.StateFile)
	if err := stateStore.Load(); err != nil {
		logger.Fatal("load state", zap.Error(err))
	}

	adapter, err := broker.NewAdapter(broker.Config{Kind: broker.Kind(cfg.BrokerAdapter)})
	if err != nil {
		logger.Fatal("construct adapter", zap.Error(err))
	}

	supervisor := execution.NewSupervisor(logger)
	metricsReg := metrics.New(prometheus.DefaultRegisterer)
	status := statusapi.NewServer(logger, cfg.StatusAddr, "/ws")

	r := runner.New(logger, events, stateStore, bundle, supervisor, adapter, metricsReg, status, runner.Config{
		StreamID:              *streamID,
		BaseTheta:             *baseTheta,
		ConfirmationThreshold: *confirmThreshold,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := status.Start(); err != nil {
			logger.Error("status api stopped", zap.Error(err))
		}
	}()

	if *barsPath != "" {
		go func() {
			if err := replayBars(ctx, r, *barsPath); err != nil {
				logger.Error("replay failed", zap.Error(err))
			}
			sigChan <- syscall.SIGTERM
		}()
	}

	logger.Info("runner started", zap.String("stream", *streamID), zap.String("status_addr", cfg.StatusAddr))

	<-sigChan
	logger.Info("shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := status.Stop(shutdownCtx); err != nil {
		logger.Error("status api shutdown", zap.Error(err))
	}
	if err := stateStore.Save(); err != nil {
		logger.Error("final state save", zap.Error(err))
	}
	logger.Info("runner stopped")
}

// jsonBar mirrors the o/h/l/c/v shape original_source/tools/replay_runner.py
// reads, plus the timestamp under "ts".
type jsonBar struct {
	Timestamp time.Time `json:"ts"`
	Symbol    string    `json:"symbol"`
	Open      float64   `json:"o"`
	High      float64   `json:"h"`
	Low       float64   `json:"l"`
	Close     float64   `json:"c"`
	Volume    float64   `json:"v"`
}

func replayBars(ctx context.Context, r *runner.Runner, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open bars file: %w", err)
	}
	defer f.Close()

	var raw []jsonBar
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return fmt.Errorf("decode bars file: %w", err)
	}

	processed := 0
	for _, jb := range raw {
		b := types.Bar{
			Timestamp: jb.Timestamp,
			Symbol:    jb.Symbol,
			Open:      decimalFromFloat(jb.Open),
			High:      decimalFromFloat(jb.High),
			Low:       decimalFromFloat(jb.Low),
			Close:     decimalFromFloat(jb.Close),
			Volume:    decimalFromFloat(jb.Volume),
		}
		market := types.MarketContext{Connected: true, SessionOpen: true, DataQuality: 1, NowLocal: jb.Timestamp}
		if _, err := r.Tick(ctx, b, market, nil, jb.Timestamp); err != nil {
			return fmt.Errorf("tick: %w", err)
		}
		processed++
	}
	fmt.Printf("bars_processed=%d\n", processed)
	return nil
}

func decimalFromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := config.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
