package task

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"madebuy/pkg/utils"
)

// DefaultSweepSpec 每 5 分钟
const DefaultSweepSpec = "0 */5 * * * *"

// StateSweepTask 清理过期但从未回调的 OAuth state
type StateSweepTask struct {
	store  *utils.MemoryStateStore
	cron   *cron.Cron
	spec   string
	logger *zap.Logger
}

func NewStateSweepTask(store *utils.MemoryStateStore, spec string, logger *zap.Logger) *StateSweepTask {
	if spec == "" {
		spec = DefaultSweepSpec
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StateSweepTask{
		store:  store,
		cron:   cron.New(cron.WithSeconds()),
		spec:   spec,
		logger: logger.Named("state-sweep"),
	}
}

func (t *StateSweepTask) Start() error {
	if _, err := t.cron.AddFunc(t.spec, func() { t.RunOnce() }); err != nil {
		return err
	}
	t.cron.Start()
	return nil
}

func (t *StateSweepTask) Stop() {
	<-t.cron.Stop().Done()
}

// RunOnce 返回清理数量
func (t *StateSweepTask) RunOnce() int {
	n := t.store.Sweep()
	if n > 0 {
		t.logger.Debug("expired oauth states removed", zap.Int("count", n))
	}
	return n
}
