package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/oklog/run"
	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/propscope/internal/api"
	"github.com/mohammed-shakir/propscope/internal/core/server"
	"github.com/mohammed-shakir/propscope/internal/metrics"
)

func newCmdServe(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return doServe(cmd.Context(), e)
		},
	}
}

func doServe(parent context.Context, e *env) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e.log.Info("starting propscope", "addr", e.cfg.Addr, "version", Version)
	p, err := buildPipeline(ctx, e.cfg, e.log)
	if err != nil {
		return err
	}
	defer p.Close(context.WithoutCancel(ctx))

	h := api.New(p.service, p.tiles.classifier(e.cfg, e.log), e.log)

	var g run.Group
	{
		sctx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			return server.Run(sctx, e.cfg, e.log, h, server.Options{
				Ready: p.readiness(),
				Drain: p.service.Wait,
			})
		}, func(error) {
			cancel()
		})
	}
	if e.cfg.Metrics.Enabled {
		prov, err := metrics.Init(metrics.Config{
			Enabled: true,
			Addr:    e.cfg.Metrics.Addr,
			Path:    e.cfg.Metrics.Path,
			Version: Version,
		})
		if err != nil {
			return err
		}
		mctx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			return prov.Serve(mctx, e.log)
		}, func(error) {
			cancel()
		})
	}
	{
		g.Add(func() error {
			<-ctx.Done()
			return ctx.Err()
		}, func(error) {
			stop()
		})
	}

	err = g.Run()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	e.log.Info("propscope stopped")
	return err
}
