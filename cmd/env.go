package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/royalcat/fieldgrid/analyzer"
	"github.com/royalcat/fieldgrid/internal/config"
	"github.com/royalcat/fieldgrid/internal/telemetry"
	"github.com/urfave/cli/v3"
)

type env struct {
	cfg       *config.Config
	analyzer  analyzer.Config
	telemetry *telemetry.Client
	log       *slog.Logger
}

// setup loads the config, applies command line overrides and starts telemetry.
// The returned close func flushes telemetry.
func setup(ctx *cli.Context) (*env, func(), error) {
	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return nil, nil, err
	}

	if ctx.IsSet("log-level") {
		cfg.Telemetry.LogLevel = ctx.String("log-level")
	}
	if ctx.IsSet("otlp-endpoint") {
		cfg.Telemetry.OTLPEndpoint = ctx.String("otlp-endpoint")
	}
	if ctx.IsSet("listen") {
		cfg.Server.Listen = ctx.String("listen")
	}
	overrideAnalysis(ctx, &cfg.Analysis)

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	level, err := telemetry.ParseLevel(cfg.Telemetry.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	client, err := telemetry.Setup(ctx.Context, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint, level)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to setup telemetry: %w", err)
	}

	e := &env{
		cfg:       cfg,
		analyzer:  cfg.Analyzer(),
		telemetry: client,
		log:       slog.Default(),
	}
	closeFn := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Flush(shutdownCtx); err != nil {
			e.log.Warn("failed to flush telemetry", "error", err)
		}
		client.Shutdown(shutdownCtx)
	}
	return e, closeFn, nil
}

func overrideAnalysis(ctx *cli.Context, a *config.AnalysisConfig) {
	if ctx.IsSet("zone") {
		a.Zone = ctx.Int("zone")
	}
	if ctx.IsSet("south") {
		a.South = ctx.Bool("south")
	}
	if ctx.IsSet("cell-size") {
		a.CellSize = ctx.Float64("cell-size")
	}
	if ctx.IsSet("margin") {
		a.Margin = ctx.Float64("margin")
	}
	if ctx.IsSet("mode") {
		a.Mode = ctx.String("mode")
	}
	if ctx.IsSet("boundary-inclusive") {
		a.BoundaryInclusive = ctx.Bool("boundary-inclusive")
	}
	if ctx.Bool("no-rectangle") {
		a.Rectangle = false
	}
	if ctx.IsSet("sample-step") {
		a.SampleStep = ctx.Float64("sample-step")
	}
	if ctx.IsSet("poisson-distance") {
		a.PoissonDistance = ctx.Float64("poisson-distance")
	}
	if ctx.IsSet("threads") {
		a.Threads = ctx.Int("threads")
	}
}

