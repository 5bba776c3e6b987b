package task

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"madebuy/internal/model"
	"madebuy/internal/repository"
	"madebuy/internal/service"
)

// 默认每 10 分钟检查，刷新 15 分钟内过期的授权
const (
	DefaultTokenSpec   = "0 */10 * * * *"
	DefaultTokenWindow = 15 * time.Minute
	DefaultTokenJobTTL = 5 * time.Minute
)

// TokenRefresher 由 service.AuthService 实现
type TokenRefresher interface {
	RefreshConnection(ctx context.Context, conn *model.MarketplaceConnection) error
}

type TokenTaskConfig struct {
	Spec        string
	Window      time.Duration
	Concurrency int
}

// TokenTask 提前刷新即将过期的授权
// 每轮每个授权只尝试一次，失败只记录日志
type TokenTask struct {
	conns  repository.ConnectionRepository
	auth   TokenRefresher
	cron   *cron.Cron
	logger *zap.Logger
	now    func() time.Time

	spec string
	// 控制并发数量，Etsy 有全局限流
	concurrencyLimit int
	window           time.Duration
}

func NewTokenTask(conns repository.ConnectionRepository, auth TokenRefresher, cfg TokenTaskConfig, logger *zap.Logger) *TokenTask {
	if cfg.Spec == "" {
		cfg.Spec = DefaultTokenSpec
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultTokenWindow
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenTask{
		conns:            conns,
		auth:             auth,
		cron:             cron.New(cron.WithSeconds()), // 支持秒级控制
		logger:           logger.Named("token-task"),
		now:              time.Now,
		spec:             cfg.Spec,
		concurrencyLimit: cfg.Concurrency,
		window:           cfg.Window,
	}
}

// Start 启动定时任务，启动时先执行一次
func (t *TokenTask) Start() error {
	if _, err := t.cron.AddFunc(t.spec, t.runWithTimeout); err != nil {
		return err
	}

	go t.runWithTimeout()
	t.cron.Start()
	t.logger.Info("token refresh task started", zap.String("spec", t.spec))
	return nil
}

// Stop 等待运行中的任务结束
func (t *TokenTask) Stop() {
	<-t.cron.Stop().Done()
	t.logger.Info("token refresh task stopped")
}

func (t *TokenTask) runWithTimeout() {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTokenJobTTL)
	defer cancel()
	t.RunOnce(ctx)
}

// RunOnce 执行一轮刷新，返回成功与失败数量
func (t *TokenTask) RunOnce(ctx context.Context) (refreshed, failed int) {
	conns, err := t.conns.FindExpiring(ctx, model.MarketplaceEtsy, t.now().Add(t.window))
	if err != nil {
		t.logger.Error("find expiring connections failed", zap.Error(err))
		return 0, 0
	}
	if len(conns) == 0 {
		return 0, 0
	}

	// 1. 信号量控制并发
	sem := make(chan struct{}, t.concurrencyLimit)
	var wg sync.WaitGroup
	var ok, bad atomic.Int32

	t.logger.Info("refreshing tokens",
		zap.Int("count", len(conns)),
		zap.Int("concurrency", t.concurrencyLimit))

	for i := range conns {
		select {
		case <-ctx.Done():
			t.logger.Warn("token refresh timed out")
			wg.Wait()
			return int(ok.Load()), int(bad.Load())
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(c *model.MarketplaceConnection) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := t.auth.RefreshConnection(ctx, c); err != nil {
				bad.Add(1)
				t.logger.Warn("refresh failed",
					zap.String("tenant_id", c.TenantID),
					zap.Int64("shop_id", c.ShopID),
					zap.Error(err))
				return
			}
			ok.Add(1)
		}(&conns[i])
	}

	// 2. 等待本轮结束
	wg.Wait()
	t.logger.Info("token refresh finished",
		zap.Int32("refreshed", ok.Load()),
		zap.Int32("failed", bad.Load()))
	return int(ok.Load()), int(bad.Load())
}

var _ TokenRefresher = (*service.AuthService)(nil)
