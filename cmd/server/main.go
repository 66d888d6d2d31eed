package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"corebank/internal/audit"
	auditmemory "corebank/internal/audit/store/memory"
	auditpostgres "corebank/internal/audit/store/postgres"
	auditworker "corebank/internal/audit/worker"
	"corebank/internal/ledger/authority"
	ledgermetrics "corebank/internal/ledger/metrics"
	"corebank/internal/ledger/service"
	accountstore "corebank/internal/ledger/store/account"
	transactionstore "corebank/internal/ledger/store/transaction"
	"corebank/internal/platform/config"
	"corebank/internal/platform/httpserver"
	"corebank/internal/platform/logger"
	"corebank/internal/report"
	"corebank/internal/token"
	httptransport "corebank/internal/transport/http"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		engineAccounts    service.AccountStore
		authorityAccounts authority.AccountStore
		transactions      service.TransactionStore
		auditStore        audit.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Error("database unreachable", "error", err)
			os.Exit(1)
		}
		store := accountstore.NewPostgres(db)
		engineAccounts, authorityAccounts = store, store
		transactions = transactionstore.NewPostgres(db)
		auditStore = auditpostgres.New(db)
		log.Info("using postgres stores")
	} else {
		store := accountstore.NewInMemory()
		engineAccounts, authorityAccounts = store, store
		transactions = transactionstore.NewInMemory()
		auditStore = auditmemory.NewInMemoryStore()
		log.Info("using in-memory stores")
	}

	inbox := make(chan audit.Record, cfg.AuditBufferSize)
	worker := auditworker.NewWorker(auditStore, inbox)
	auditLog := audit.NewChannelPublisher(auditStore, inbox, audit.WithPublisherLogger(log))

	balances := authority.New(authorityAccounts, authority.WithLogger(log))
	engineMetrics := ledgermetrics.New()
	engine := service.New(engineAccounts, transactions, balances,
		service.WithLogger(log),
		service.WithAuditLog(auditLog),
		service.WithMetrics(engineMetrics),
	)
	projector := report.New(transactions)

	tokens := token.NewService(cfg.JWTSigningKey, cfg.JWTIssuer)
	handler := httptransport.NewHandler(engine, projector, log)
	router := httptransport.NewRouter(handler, tokens, log)
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("starting corebank", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
