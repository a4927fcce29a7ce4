// Package main provides the cash link reconciler entry point. It watches
// the escrow contract for creations that never reached the backend.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/mezo-lite/internal/chain"
	"github.com/mezo-lite/internal/config"
	"github.com/mezo-lite/internal/logging"
	"github.com/mezo-lite/internal/reconcile"
	"github.com/mezo-lite/internal/storage"
)

// chainSource satisfies the reconciler's event source over the RPC client
// and the escrow binding.
type chainSource struct {
	client *chain.Client
	escrow *chain.Escrow
}

func (s *chainSource) BlockNumber(ctx context.Context) (uint64, error) {
	return s.client.BlockNumber(ctx)
}

func (s *chainSource) FilterCashlinkCreated(ctx context.Context, fromBlock, toBlock uint64) ([]chain.CashlinkCreatedEvent, error) {
	return s.escrow.FilterCashlinkCreated(ctx, fromBlock, toBlock)
}

func main() {
	var (
		interval = flag.Duration("interval", 5*time.Minute, "Scan interval")
		window   = flag.Uint64("window", 2000, "Trailing block window to scan")
		once     = flag.Bool("once", false, "Run a single scan and exit")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)
	logger := logging.GetGlobalLogger()

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	client, err := chain.Dial(&cfg.Chain)
	if err != nil {
		logger.WithError(err).Fatal("Failed to dial RPC endpoint")
	}
	defer client.Close()

	source := &chainSource{
		client: client,
		escrow: chain.NewEscrow(client, cfg.Contracts.CashlinkEscrow),
	}

	reconciler := reconcile.NewReconciler(
		source,
		storage.NewCashlinkRepository(postgres),
		reconcile.WithInterval(*interval),
		reconcile.WithBlockWindow(*window),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *once {
		if err := reconciler.ScanOnce(ctx); err != nil {
			logger.WithError(err).Fatal("Scan failed")
		}
		return
	}

	reconciler.Run(ctx)
}
