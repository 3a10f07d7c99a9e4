// Command novafi runs the NovaFi client daemon. It mirrors the user's
// wallets, transactions, and stakes from the backend, keeps them fresh via
// the realtime change feed, and serves the synchronized state plus the
// FinBrain advisory engine to a local UI.
//
// Usage:
//
//	novafi setup                (interactive configuration wizard)
//	novafi --config config.yaml
//	novafi (uses CLI arguments)
//
// Required environment variables:
//
//	NOVAFI_API_KEY, NOVAFI_ACCESS_TOKEN
//	NOVAFI_WEB3_KEY (only for on-chain crypto deposits)
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/novafi/novafi/config"
	"github.com/novafi/novafi/internal/clients"
	"github.com/novafi/novafi/internal/entity"
	"github.com/novafi/novafi/internal/services/gateway"
	"github.com/novafi/novafi/internal/services/view"
	"github.com/novafi/novafi/internal/setup"
	"github.com/novafi/novafi/internal/storage/snapshots"
	"github.com/novafi/novafi/internal/web"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		if err := setup.RunTUI(); err != nil {
			log.Fatal(err)
		}
		return
	}

	conf, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	backend := clients.NewBackendClient(conf.BackendURL, conf.APIKey, conf.AccessToken,
		clients.WithTxFetchLimit(conf.TxFetchLimit))
	realtime := clients.NewRealtimeClient(conf.RealtimeURL, conf.APIKey, logger)
	defer realtime.Close()

	journal, err := snapshots.NewWALStore(conf.WalDir)
	if err != nil {
		logger.Fatal("failed to open snapshot journal", zap.Error(err))
	}
	defer journal.Close()

	subscribe := func(ctx context.Context, table entity.Resource, handler func(entity.ChangeNotification)) (view.Handle, error) {
		return realtime.Subscribe(ctx, table, handler)
	}
	session := view.NewSession(backend, subscribe, journal, logger)

	var gwOpts []gateway.Option
	if conf.Web3RPCURL != "" && conf.Web3Key != "" {
		funder, err := clients.NewWeb3Funder(conf.Web3RPCURL, conf.Web3Key)
		if err != nil {
			logger.Fatal("failed to init web3 funder", zap.Error(err))
		}
		gwOpts = append(gwOpts, gateway.WithFunder(funder))
	}
	gw := gateway.New(backend, session.Coordinator(), logger, gwOpts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := session.Mount(ctx); err != nil {
		logger.Fatal("failed to mount view session", zap.Error(err))
	}
	defer session.Unmount()

	server := web.NewServer(conf.WebAddr, session, gw, journal, backend)
	logger.Info("novafi client started",
		zap.String("backend", conf.BackendURL), zap.String("web", conf.WebAddr))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(ctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error(err.Error())
	}
}
