package task

import (
	"go.uber.org/zap"

	"madebuy/internal/repository"
	"madebuy/pkg/utils"
)

// ==================== TaskManager 后台任务管理器 ====================

// TaskManager 统一管理后台任务
// 管理范围：Token 刷新、OAuth state 清理
type TaskManager struct {
	tokenTask *TokenTask
	sweepTask *StateSweepTask
	logger    *zap.Logger
}

// TaskManagerDeps 任务管理器依赖
type TaskManagerDeps struct {
	ConnRepo repository.ConnectionRepository
	Auth     TokenRefresher
	// 仅内存 state 存储需要清理
	States *utils.MemoryStateStore
}

// TaskManagerConfig 任务管理器配置
type TaskManagerConfig struct {
	TokenEnabled bool
	Token        TokenTaskConfig
	SweepSpec    string
}

// DefaultConfig 默认配置
func DefaultConfig() *TaskManagerConfig {
	return &TaskManagerConfig{
		TokenEnabled: true,
		Token: TokenTaskConfig{
			Spec:        DefaultTokenSpec,
			Window:      DefaultTokenWindow,
			Concurrency: 4,
		},
		SweepSpec: DefaultSweepSpec,
	}
}

// NewTaskManager 创建任务管理器
func NewTaskManager(deps *TaskManagerDeps, cfg *TaskManagerConfig, logger *zap.Logger) *TaskManager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	tm := &TaskManager{logger: logger.Named("tasks")}

	if cfg.TokenEnabled && deps.ConnRepo != nil && deps.Auth != nil {
		tm.tokenTask = NewTokenTask(deps.ConnRepo, deps.Auth, cfg.Token, logger)
	}
	if deps.States != nil {
		tm.sweepTask = NewStateSweepTask(deps.States, cfg.SweepSpec, logger)
	}
	return tm
}

// ==================== 生命周期管理 ====================

// Start 启动所有任务
func (tm *TaskManager) Start() error {
	if tm.tokenTask != nil {
		if err := tm.tokenTask.Start(); err != nil {
			return err
		}
	}
	if tm.sweepTask != nil {
		if err := tm.sweepTask.Start(); err != nil {
			return err
		}
	}
	tm.logger.Info("background tasks started", zap.Any("status", tm.Status()))
	return nil
}

// Stop 停止所有任务
func (tm *TaskManager) Stop() {
	if tm.tokenTask != nil {
		tm.tokenTask.Stop()
	}
	if tm.sweepTask != nil {
		tm.sweepTask.Stop()
	}
}

// ==================== 状态查询 ====================

// Status 获取任务状态
func (tm *TaskManager) Status() map[string]bool {
	return map[string]bool{
		"token":       tm.tokenTask != nil,
		"state_sweep": tm.sweepTask != nil,
	}
}
