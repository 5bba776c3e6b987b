package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"madebuy/internal/model"
)

// ==================== 接口定义 ====================

// PieceRepository 商品仓储接口
type PieceRepository interface {
	Create(ctx context.Context, piece *model.Piece) error
	GetByID(ctx context.Context, tenantID, id string) (*model.Piece, error)
	Update(ctx context.Context, piece *model.Piece) error
	List(ctx context.Context, filter PieceFilter) ([]model.Piece, error)

	// Etsy 集成状态
	RecordEtsySync(ctx context.Context, id string, listingID int64, listingURL string, syncedAt time.Time) error
	RecordEtsyError(ctx context.Context, id string, errMsg string) error
	ClearEtsyListing(ctx context.Context, id string) error
	SetEtsySyncEnabled(ctx context.Context, tenantID, id string, enabled bool) error
}

// ==================== 过滤条件 ====================

// PieceFilter 商品过滤条件
type PieceFilter struct {
	TenantID        string
	IDs             []string
	Status          model.PieceStatus
	SyncEnabledOnly bool
	LinkedOnly      bool
}

// ==================== 仓储实现 ====================

type pieceRepo struct {
	db *gorm.DB
}

// NewPieceRepository 创建商品仓储
func NewPieceRepository(db *gorm.DB) PieceRepository {
	return &pieceRepo{db: db}
}

func (r *pieceRepo) Create(ctx context.Context, piece *model.Piece) error {
	return r.db.WithContext(ctx).Create(piece).Error
}

func (r *pieceRepo) GetByID(ctx context.Context, tenantID, id string) (*model.Piece, error) {
	var piece model.Piece
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&piece).Error; err != nil {
		return nil, err
	}
	return &piece, nil
}

func (r *pieceRepo) Update(ctx context.Context, piece *model.Piece) error {
	return r.db.WithContext(ctx).Save(piece).Error
}

func (r *pieceRepo) List(ctx context.Context, filter PieceFilter) ([]model.Piece, error) {
	var pieces []model.Piece
	query := r.db.WithContext(ctx).Model(&model.Piece{}).
		Where("tenant_id = ?", filter.TenantID)

	if len(filter.IDs) > 0 {
		query = query.Where("id IN ?", filter.IDs)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.SyncEnabledOnly {
		query = query.Where("etsy_sync_enabled IS NULL OR etsy_sync_enabled = ?", true)
	}
	if filter.LinkedOnly {
		query = query.Where("etsy_listing_id IS NOT NULL AND etsy_listing_id > 0")
	}

	err := query.Order("created_at ASC").Find(&pieces).Error
	return pieces, err
}

// ErrInvalidListingID listing id 必须为正数，0 会让商品保持未关联状态
var ErrInvalidListingID = errors.New("etsy listing id must be positive")

// RecordEtsySync 同步成功，写入 listing 信息并清空错误
func (r *pieceRepo) RecordEtsySync(ctx context.Context, id string, listingID int64, listingURL string, syncedAt time.Time) error {
	if listingID <= 0 {
		return ErrInvalidListingID
	}
	fields := map[string]interface{}{
		"etsy_listing_id":     listingID,
		"etsy_last_synced_at": syncedAt,
		"etsy_last_error":     "",
	}
	// 更新接口不返回 url，保留已有值
	if listingURL != "" {
		fields["etsy_listing_url"] = listingURL
	}
	return r.db.WithContext(ctx).
		Model(&model.Piece{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *pieceRepo) RecordEtsyError(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).
		Model(&model.Piece{}).
		Where("id = ?", id).
		Update("etsy_last_error", errMsg).Error
}

// ClearEtsyListing 解除关联
func (r *pieceRepo) ClearEtsyListing(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&model.Piece{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"etsy_listing_id":     nil,
			"etsy_listing_url":    "",
			"etsy_last_synced_at": nil,
			"etsy_last_error":     "",
		}).Error
}

func (r *pieceRepo) SetEtsySyncEnabled(ctx context.Context, tenantID, id string, enabled bool) error {
	return r.db.WithContext(ctx).
		Model(&model.Piece{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Update("etsy_sync_enabled", enabled).Error
}
