package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ideal-lab5/idn-explorer/pkg/api"
	"github.com/ideal-lab5/idn-explorer/pkg/app"
	"github.com/ideal-lab5/idn-explorer/pkg/chain"
	"github.com/ideal-lab5/idn-explorer/pkg/chainstate"
	"github.com/ideal-lab5/idn-explorer/pkg/config"
	"github.com/ideal-lab5/idn-explorer/pkg/dashboard"
	"github.com/ideal-lab5/idn-explorer/pkg/drand"
	"github.com/ideal-lab5/idn-explorer/pkg/explorer"
	"github.com/ideal-lab5/idn-explorer/pkg/pusher/sources"
	"github.com/ideal-lab5/idn-explorer/pkg/sentry"
	"github.com/ideal-lab5/idn-explorer/pkg/sidecar"
	"github.com/ideal-lab5/idn-explorer/pkg/signer"
	"github.com/ideal-lab5/idn-explorer/pkg/subscriptions"
)

func main() {
	cfg := config.Load()
	log := app.Logger(cfg.App.LogLevel, cfg.App.NoisyLogPatterns...)
	defer log.Sync() //nolint:errcheck

	sentry.Init(cfg.App.SentryDSN)
	defer sentry.Flush()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	decoder := sidecar.NewClient(cfg.Chain.SidecarURL)
	accessor := chain.NewAccessor(chain.Dialer(cfg.NodeEndpoint(), decoder, log), log)
	defer accessor.Disconnect() //nolint:errcheck

	state := chainstate.NewChainState(accessor, log, chainstate.WithSession(cfg.Chain.SessionLength, cfg.Chain.SessionsPerEra))
	subs := subscriptions.NewService(accessor, log)
	history, err := explorer.New(accessor, log)
	if err != nil {
		log.Fatal("explorer init", zap.Error(err))
	}
	randomness := explorer.NewRandomnessService(accessor, log)
	beacon := drand.NewClient(cfg.DrandURL(), cfg.DrandChainHash(), cfg.Drand.Timeout, log)

	board := dashboard.New(state, history, beacon, subs, accessor, log, dashboard.Config{
		ExecutedWindow: cfg.Chain.ExecutedWindow,
	})
	go board.Run(ctx)

	source := sources.NewDashboardSource(board, log)
	go source.Run(ctx)

	opts := []api.Option{
		api.WithChainState(state),
		api.WithSubscriptions(subs),
		api.WithExplorer(history),
		api.WithRandomnessEvents(randomness),
		api.WithBeacon(beacon),
		api.WithDashboard(board),
	}
	if cfg.Chain.SignerSURI != "" {
		keyring, err := signer.New(cfg.Chain.SignerSURI, cfg.Chain.SS58Prefix, log)
		if err != nil {
			log.Fatal("signer init", zap.Error(err))
		}
		log.Info("subscription writes enabled", zap.String("signer", keyring.Address()))
		opts = append(opts, api.WithSigner(keyring))
	}
	h, err := api.NewHandler(log, opts...)
	if err != nil {
		log.Fatal("handler init", zap.Error(err))
	}
	server, err := api.NewServer(log, h, fmt.Sprintf(":%v", cfg.API.Port),
		api.WithHeadSource(source),
		api.WithSnapshotSource(source),
		api.WithWriteRateLimit(cfg.API.WriteRateLimit),
	)
	if err != nil {
		log.Fatal("server init", zap.Error(err))
	}

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%v", cfg.App.MetricsPort),
		Handler: promhttp.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics listen and serve", zap.Error(err))
		}
	}()

	log.Info("starting server", zap.Int("port", cfg.API.Port), zap.String("node", cfg.NodeEndpoint()))
	go server.Run()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", zap.Error(err))
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("metrics shutdown", zap.Error(err))
	}
}
