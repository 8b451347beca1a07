package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ogurasousui/codex-library-loans/internal/adapters/events/amqp"
	"github.com/ogurasousui/codex-library-loans/internal/adapters/http/handler"
	"github.com/ogurasousui/codex-library-loans/internal/adapters/repository/postgres"
	"github.com/ogurasousui/codex-library-loans/internal/core/book"
	"github.com/ogurasousui/codex-library-loans/internal/core/duedate"
	"github.com/ogurasousui/codex-library-loans/internal/core/loan"
	"github.com/ogurasousui/codex-library-loans/internal/core/user"
	"github.com/ogurasousui/codex-library-loans/internal/platform/config"
	pg "github.com/ogurasousui/codex-library-loans/internal/platform/db/postgres"
	"github.com/ogurasousui/codex-library-loans/internal/platform/logging"
	"github.com/ogurasousui/codex-library-loans/internal/platform/server"
	"github.com/ogurasousui/codex-library-loans/internal/platform/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("failed to load .env: %v", err)
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "assets/local.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging, os.Stdout)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logger.Warn("failed to flush telemetry", "error", err)
		}
	}()

	dbPool, err := pg.NewPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer dbPool.Close()

	txManager := pg.NewTransactionManager(dbPool)

	userRepo := postgres.NewUserRepository(dbPool)
	bookRepo := postgres.NewBookRepository(dbPool)
	loanRepo := postgres.NewLoanRepository(dbPool, logger, postgres.WithDueDateLocation(cfg.Loan.Location))

	userSvc := user.NewService(userRepo, nil)
	bookSvc := book.NewService(bookRepo, nil)

	policy := duedate.Policy{
		AffiliatedDays: cfg.Loan.AllowanceDays.Affiliated,
		EmployeeDays:   cfg.Loan.AllowanceDays.Employee,
		GuestDays:      cfg.Loan.AllowanceDays.Guest,
	}
	calculator, err := duedate.NewCalculator(policy, nil, cfg.Loan.Location)
	if err != nil {
		return err
	}

	loanOpts := []loan.Option{
		loan.WithTransactionManager(txManager),
		loan.WithLogger(logger),
	}
	if cfg.Events.AMQPURL != "" {
		publisher, err := amqp.Dial(cfg.Events.AMQPURL, cfg.Events.Exchange)
		if err != nil {
			return err
		}
		defer publisher.Close()
		loanOpts = append(loanOpts, loan.WithPublisher(publisher))
	}
	loanSvc := loan.NewService(loanRepo, userSvc, calculator, loanOpts...)

	router := handler.NewRouter(handler.Services{
		Loans: loanSvc,
		Users: userSvc,
		Books: bookSvc,
	}, dbPool, logger)

	return server.New(cfg.Server, router, dbPool, logger).Run(ctx)
}
