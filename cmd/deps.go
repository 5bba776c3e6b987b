package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"madebuy/internal/config"
	"madebuy/internal/controller"
	"madebuy/internal/repository"
	"madebuy/internal/router"
	"madebuy/internal/service"
	"madebuy/pkg/database"
	"madebuy/pkg/etsy"
	"madebuy/pkg/utils"
)

// ==================== 依赖容器 ====================

// Dependencies 依赖容器
type Dependencies struct {
	Config   *config.Config
	Logger   *zap.Logger
	DB       *gorm.DB
	Repos    *Repositories
	Services *Services
	States   utils.StateStore

	closers []func() error
}

// Repositories 仓库集合
type Repositories struct {
	Tenant          repository.TenantRepository
	Connection      repository.ConnectionRepository
	ShippingProfile repository.ShippingProfileRepository
	Piece           repository.PieceRepository
}

// Services 服务集合
type Services struct {
	Auth      *service.AuthService
	Shipping  *service.ShippingProfileService
	EtsySync  *service.EtsySyncService
	Reconcile *service.ReconcileService
}

// ==================== 初始化函数 ====================

func openDatabase(cfg *config.Config, logger *zap.Logger) (*gorm.DB, error) {
	return database.Open(database.Config{
		DSN:             cfg.Database.DSN,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
}

// initDependencies 初始化所有依赖
func initDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{Config: cfg, Logger: logger}

	// -------- 数据库 --------
	db, err := openDatabase(cfg, logger)
	if err != nil {
		return nil, err
	}
	deps.DB = db
	if sqlDB, err := db.DB(); err == nil {
		deps.closers = append(deps.closers, sqlDB.Close)
	}

	// -------- Repo 层 --------
	deps.Repos = &Repositories{
		Tenant:          repository.NewTenantRepository(db),
		Connection:      repository.NewConnectionRepository(db),
		ShippingProfile: repository.NewShippingProfileRepository(db),
		Piece:           repository.NewPieceRepository(db),
	}

	// -------- OAuth state 存储 --------
	states, err := initStateStore(ctx, cfg)
	if err != nil {
		_ = deps.Close()
		return nil, err
	}
	deps.States = states

	// -------- 图片来源 --------
	images, err := service.NewImageSource(ctx, service.StorageConfig{
		Region:       cfg.Storage.Region,
		AccessKey:    cfg.Storage.AccessKey,
		SecretKey:    cfg.Storage.SecretKey,
		Endpoint:     cfg.Storage.Endpoint,
		UsePathStyle: cfg.Storage.UsePathStyle,
		Timeout:      cfg.Storage.Timeout,
		MaxBytes:     cfg.Storage.MaxImageBytes,
	})
	if err != nil {
		_ = deps.Close()
		return nil, fmt.Errorf("init image source: %w", err)
	}

	// -------- 业务服务 --------
	client := etsy.NewClient(etsy.Config{
		APIKey:  cfg.Etsy.APIKey,
		BaseURL: cfg.Etsy.BaseURL,
		Timeout: cfg.Etsy.RequestTimeout,
		RPS:     cfg.Etsy.RPS,
		Burst:   cfg.Etsy.Burst,
	})

	svc := &Services{}
	svc.Auth = service.NewAuthService(service.AuthConfig{
		RedirectURL: cfg.Etsy.RedirectURL,
		Scopes:      cfg.Etsy.Scopes,
		AuthURL:     cfg.Etsy.AuthURL,
		TokenURL:    cfg.Etsy.TokenURL,
		Buffer:      cfg.Token.Buffer,
		StateTTL:    cfg.State.TTL,
		Timeout:     cfg.Etsy.RequestTimeout,
	}, client, deps.Repos.Tenant, deps.Repos.Connection, states, logger)
	svc.Shipping = service.NewShippingProfileService(deps.Repos.ShippingProfile, logger)
	svc.EtsySync = service.NewEtsySyncService(client, svc.Auth, deps.Repos.Piece, images, logger)
	svc.Reconcile = service.NewReconcileService(svc.EtsySync, svc.Auth, deps.Repos.Piece,
		cfg.Etsy.SyncConcurrency, logger)
	deps.Services = svc

	return deps, nil
}

// initStateStore 内存存储只适用于单实例部署
func initStateStore(ctx context.Context, cfg *config.Config) (utils.StateStore, error) {
	if cfg.State.Store != "redis" {
		return utils.NewMemoryStateStore(), nil
	}
	store, err := utils.NewRedisStateStore(cfg.State.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("init redis state store: %w", err)
	}
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return store, nil
}

// initControllers 初始化所有控制器
func initControllers(svc *Services) *router.Controllers {
	return &router.Controllers{
		Auth:     controller.NewAuthController(svc.Auth),
		Etsy:     controller.NewEtsyController(svc.EtsySync, svc.Reconcile),
		Shipping: controller.NewShippingProfileController(svc.Shipping),
	}
}

// Close 释放数据库与 redis 连接
func (d *Dependencies) Close() error {
	var errs []error
	if closer, ok := d.States.(interface{ Close() error }); ok {
		errs = append(errs, closer.Close())
	}
	for _, c := range d.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
