package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"madebuy/internal/config"
	"madebuy/internal/middleware"
	"madebuy/internal/model"
	"madebuy/internal/router"
	"madebuy/internal/task"
	"madebuy/pkg/database"
	"madebuy/pkg/logger"
	"madebuy/pkg/utils"
)

func main() {
	app := &cli.App{
		Name:  "madebuy",
		Usage: "MadeBuy 商品与 Etsy 同步服务",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML 配置文件路径",
				EnvVars: []string{"MADEBUY_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "启动 HTTP API 与后台任务",
				Action: runServe,
			},
			{
				Name:   "migrate",
				Usage:  "自动建表",
				Action: runMigrate,
			},
			{
				Name:  "sync",
				Usage: "批量同步租户商品到 Etsy 并输出报告",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "tenant", Usage: "租户ID 或 slug", Required: true},
					&cli.StringSliceFlag{Name: "piece", Usage: "商品ID，可重复；为空时同步全部开启同步的商品"},
				},
				Action: runSync,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup 读取配置并创建 logger
func setup(c *cli.Context, validate bool) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	if validate {
		if err := cfg.Validate(); err != nil {
			return nil, nil, fmt.Errorf("invalid config: %w", err)
		}
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, nil, err
	}
	logger.SetGlobal(log)
	return cfg, log, nil
}

// ==================== serve ====================

func runServe(c *cli.Context) error {
	cfg, log, err := setup(c, true)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. 初始化依赖
	deps, err := initDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = deps.Close() }()

	// 2. 启动定时任务
	tasks := initTasks(deps)
	if err := tasks.Start(); err != nil {
		return fmt.Errorf("start tasks: %w", err)
	}
	defer tasks.Stop()

	// 3. 初始化路由
	gin.SetMode(cfg.Server.Mode)
	r := router.New(initControllers(deps.Services), middleware.NewSyncRateLimiter(), log)

	// 4. 启动服务
	return startServer(ctx, r, cfg, log)
}

// initTasks 初始化定时任务
func initTasks(deps *Dependencies) *task.TaskManager {
	cfg := task.DefaultConfig()
	cfg.TokenEnabled = deps.Config.Token.Enabled
	cfg.Token = task.TokenTaskConfig{
		Spec:        deps.Config.Token.Spec,
		Window:      deps.Config.Token.Window,
		Concurrency: deps.Config.Token.Concurrency,
	}
	cfg.SweepSpec = deps.Config.State.SweepSpec

	taskDeps := &task.TaskManagerDeps{
		ConnRepo: deps.Repos.Connection,
		Auth:     deps.Services.Auth,
	}
	// redis 自带过期，无需清理
	if mem, ok := deps.States.(*utils.MemoryStateStore); ok {
		taskDeps.States = mem
	}
	return task.NewTaskManager(taskDeps, cfg, deps.Logger)
}

// startServer 阻塞直到收到退出信号后优雅关闭
func startServer(ctx context.Context, h http.Handler, cfg *config.Config, log *zap.Logger) error {
	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.Server.Port),
		Handler: h,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("http server stopped")
	return nil
}

// ==================== migrate ====================

func runMigrate(c *cli.Context) error {
	cfg, log, err := setup(c, false)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	db, err := openDatabase(cfg, log)
	if err != nil {
		return err
	}
	if err := database.Migrate(db, model.All()...); err != nil {
		return err
	}
	log.Info("migration finished", zap.Int("models", len(model.All())))
	return nil
}

// ==================== sync ====================

func runSync(c *cli.Context) error {
	cfg, log, err := setup(c, true)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := initDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = deps.Close() }()

	tenantID, err := resolveTenant(ctx, deps.Repos, c.String("tenant"))
	if err != nil {
		return err
	}

	report, err := deps.Services.Reconcile.SyncPieces(ctx, tenantID, c.StringSlice("piece"))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	if report.Failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d pieces failed", report.Failed, report.Total), 2)
	}
	return nil
}

// resolveTenant 先按 ID 查找，找不到再按 slug
func resolveTenant(ctx context.Context, repos *Repositories, ref string) (string, error) {
	tenant, err := repos.Tenant.GetByID(ctx, ref)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		tenant, err = repos.Tenant.GetBySlug(ctx, ref)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", cli.Exit(fmt.Sprintf("tenant %q not found", ref), 1)
		}
		return "", fmt.Errorf("load tenant: %w", err)
	}
	return tenant.ID, nil
}
