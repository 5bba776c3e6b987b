package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"madebuy/internal/repository"
)

// DefaultSyncConcurrency 批量同步默认并发
const DefaultSyncConcurrency = 4

// SyncFailure 单个商品失败原因
type SyncFailure struct {
	PieceID string `json:"piece_id"`
	Error   string `json:"error"`
}

// SyncReport 批量同步汇总
type SyncReport struct {
	Total      int           `json:"total"`
	Created    int           `json:"created"`
	Updated    int           `json:"updated"`
	Failed     int           `json:"failed"`
	Errors     []SyncFailure `json:"errors"`
	DurationMS int64         `json:"duration_ms"`
}

type ReconcileService struct {
	sync        *EtsySyncService
	auth        *AuthService
	pieces      repository.PieceRepository
	concurrency int
	logger      *zap.Logger
}

func NewReconcileService(syncSvc *EtsySyncService, auth *AuthService, pieces repository.PieceRepository,
	concurrency int, logger *zap.Logger) *ReconcileService {
	if concurrency <= 0 {
		concurrency = DefaultSyncConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconcileService{
		sync:        syncSvc,
		auth:        auth,
		pieces:      pieces,
		concurrency: concurrency,
		logger:      logger.Named("reconcile"),
	}
}

// SyncPieces 批量同步，pieceIDs 为空时同步租户全部开启同步的商品
// 单个商品失败不影响其他商品；token 不可用时整批失败
func (s *ReconcileService) SyncPieces(ctx context.Context, tenantID string, pieceIDs []string) (*SyncReport, error) {
	start := time.Now()

	// 1. 整批只解析一次 token
	conn, _, err := s.auth.ResolveToken(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	// 2. 加载商品
	filter := repository.PieceFilter{TenantID: tenantID, IDs: pieceIDs}
	if len(pieceIDs) == 0 {
		filter.SyncEnabledOnly = true
	}
	pieces, err := s.pieces.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list pieces: %w", err)
	}

	report := &SyncReport{Total: len(pieces), Errors: []SyncFailure{}}

	// 指定但不存在的商品计为失败
	if len(pieceIDs) > 0 {
		found := make(map[string]struct{}, len(pieces))
		for _, p := range pieces {
			found[p.ID] = struct{}{}
		}
		for _, id := range pieceIDs {
			if _, ok := found[id]; !ok {
				report.Total++
				report.Failed++
				report.Errors = append(report.Errors, SyncFailure{PieceID: id, Error: ErrPieceNotFound.Error()})
			}
		}
	}

	// 3. 并发同步
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i := range pieces {
		piece := &pieces[i]
		g.Go(func() error {
			wasLinked := piece.Etsy.Linked()

			var res SyncResult
			if err := gctx.Err(); err != nil {
				res = failResult(err)
			} else {
				res = s.sync.syncAndRecord(gctx, piece, conn)
			}

			mu.Lock()
			defer mu.Unlock()
			switch {
			case !res.Success:
				report.Failed++
				report.Errors = append(report.Errors, SyncFailure{PieceID: piece.ID, Error: res.Error})
			case wasLinked:
				report.Updated++
			default:
				report.Created++
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(report.Errors, func(i, j int) bool {
		return report.Errors[i].PieceID < report.Errors[j].PieceID
	})
	elapsed := time.Since(start)
	report.DurationMS = elapsed.Milliseconds()

	s.logger.Info("batch sync finished",
		zap.String("tenant_id", tenantID),
		zap.Int("total", report.Total),
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", elapsed))
	return report, nil
}
