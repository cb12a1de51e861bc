package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"xprexx/internal/config"
	"xprexx/internal/infra/db"
	"xprexx/internal/infra/events"
	infraRepo "xprexx/internal/infra/repository"
	"xprexx/internal/infra/storage"
	"xprexx/internal/repository"
	"xprexx/internal/usecase"
	"xprexx/internal/validator"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type publisher interface {
	usecase.EventPublisher
	Close() error
}

// cmd/api と cmd/xprexxctl で共有する依存関係
type App struct {
	Cfg config.Config
	Log *zap.Logger
	DB  *gorm.DB

	Users     repository.UserRepository
	AuditLogs repository.AuditLogRepository
	Tx        repository.TransactionManager

	Publisher publisher
	Reports   *storage.MinioReportStore

	Tracking  *usecase.TrackingUsecase
	Shipments *usecase.ShipmentUsecase
	Admin     *usecase.AdminShipmentUsecase
	Auth      *usecase.AuthUsecase
}

// New はDBに接続して全部を組み立てる
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	gdb, err := db.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	return NewWithDB(ctx, cfg, log, gdb)
}

// NewWithDB は接続済みのDBを使う（テストはsqliteを渡す）
func NewWithDB(ctx context.Context, cfg config.Config, log *zap.Logger, gdb *gorm.DB) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}

	app := &App{
		Cfg:       cfg,
		Log:       log,
		DB:        gdb,
		Users:     infraRepo.NewUserGormRepository(gdb),
		AuditLogs: infraRepo.NewAuditLogGormRepository(gdb),
		Tx:        infraRepo.NewTxManagerGorm(gdb),
	}

	//Kafka（未設定なら流さない）
	if len(cfg.KafkaBrokers) > 0 {
		app.Publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log.Named("kafka"))
		log.Info("shipment events enabled", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	} else {
		app.Publisher = events.NoopPublisher{}
	}

	//レポート置き場（未設定ならアップロードだけ503）
	var reports usecase.ReportStore
	store, err := storage.NewMinioReportStore(cfg)
	switch {
	case errors.Is(err, storage.ErrNotConfigured):
	case err != nil:
		return nil, err
	default:
		if err := store.EnsureBucket(ctx); err != nil {
			log.Warn("report bucket check failed", zap.String("bucket", cfg.S3Bucket), zap.Error(err))
		}
		app.Reports = store
		reports = store
	}

	clock := usecase.SystemClock{}

	app.Tracking = usecase.NewTrackingUsecase(app.Tx)
	app.Shipments = usecase.NewShipmentUsecase(
		app.Tx,
		usecase.NewTrackingNumberGenerator(cfg.TrackingPrefix),
		clock,
		app.Publisher,
		log.Named("shipment"),
		cfg.DeliveryLeadTime,
	)
	app.Admin = usecase.NewAdminShipmentUsecase(
		app.Tx,
		clock,
		app.Publisher,
		reports,
		log.Named("admin"),
		usecase.ReportConfig{URLTTL: cfg.ReportURLTTL},
	)
	app.Auth = usecase.NewAuthUsecase(cfg, app.Users, app.AuditLogs, validator.NewAuthValidator(app.Users), clock)

	return app, nil
}

func (a *App) Close() error {
	var errs []error
	if a.Publisher != nil {
		errs = append(errs, a.Publisher.Close())
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}
