package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"xprexx/internal/bootstrap"
	"xprexx/internal/config"
	"xprexx/internal/infra/db"
	"xprexx/internal/logger"
	"xprexx/internal/server"

	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "xprexx-api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Warn("close app", zap.Error(err))
		}
	}()

	//開発時はテーブルを自動作成（本番は xprexxctl migrate）
	if !cfg.IsProd() {
		if err := db.Migrate(app.DB); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	addr := cfg.Port
	if addr != "" && addr[0] != ':' {
		addr = ":" + addr
	}

	e := server.New(app)
	return server.Start(ctx, e, addr, log)
}
