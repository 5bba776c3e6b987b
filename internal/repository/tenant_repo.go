package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"madebuy/internal/model"
)

// ==================== Tenant ====================

// TenantRepository 租户仓储接口
type TenantRepository interface {
	Create(ctx context.Context, tenant *model.Tenant) error
	GetByID(ctx context.Context, id string) (*model.Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*model.Tenant, error)
}

type tenantRepo struct {
	db *gorm.DB
}

// NewTenantRepository 创建租户仓储
func NewTenantRepository(db *gorm.DB) TenantRepository {
	return &tenantRepo{db: db}
}

func (r *tenantRepo) Create(ctx context.Context, tenant *model.Tenant) error {
	return r.db.WithContext(ctx).Create(tenant).Error
}

func (r *tenantRepo) GetByID(ctx context.Context, id string) (*model.Tenant, error) {
	var tenant model.Tenant
	if err := r.db.WithContext(ctx).First(&tenant, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (r *tenantRepo) GetBySlug(ctx context.Context, slug string) (*model.Tenant, error) {
	var tenant model.Tenant
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&tenant).Error; err != nil {
		return nil, err
	}
	return &tenant, nil
}

// ==================== MarketplaceConnection ====================

// ConnectionRepository 市场授权仓储接口
type ConnectionRepository interface {
	Get(ctx context.Context, tenantID string, marketplace model.Marketplace) (*model.MarketplaceConnection, error)
	Upsert(ctx context.Context, conn *model.MarketplaceConnection) (*model.MarketplaceConnection, error)
	UpdateToken(ctx context.Context, id string, accessToken, refreshToken string, expiresAt time.Time) error
	UpdateStatus(ctx context.Context, id string, status, lastError string) error
	FindExpiring(ctx context.Context, marketplace model.Marketplace, before time.Time) ([]model.MarketplaceConnection, error)
}

type connectionRepo struct {
	db *gorm.DB
}

// NewConnectionRepository 创建市场授权仓储
func NewConnectionRepository(db *gorm.DB) ConnectionRepository {
	return &connectionRepo{db: db}
}

func (r *connectionRepo) Get(ctx context.Context, tenantID string, marketplace model.Marketplace) (*model.MarketplaceConnection, error) {
	var conn model.MarketplaceConnection
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND marketplace = ?", tenantID, marketplace).
		First(&conn).Error
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

// Upsert 按 (tenant_id, marketplace) 写入，重新授权覆盖旧 token
func (r *connectionRepo) Upsert(ctx context.Context, conn *model.MarketplaceConnection) (*model.MarketplaceConnection, error) {
	if conn.Status == "" {
		conn.Status = model.ConnectionStatusValid
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "marketplace"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"shop_id", "user_id", "shop_name",
			"access_token", "refresh_token", "expires_at",
			"status", "last_error", "updated_at", "deleted_at",
		}),
	}).Create(conn).Error
	if err != nil {
		return nil, err
	}
	// 冲突时主键仍是旧值，重新读取
	return r.Get(ctx, conn.TenantID, conn.Marketplace)
}

func (r *connectionRepo) UpdateToken(ctx context.Context, id string, accessToken, refreshToken string, expiresAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.MarketplaceConnection{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"access_token":  accessToken,
			"refresh_token": refreshToken,
			"expires_at":    expiresAt,
			"status":        model.ConnectionStatusValid,
			"last_error":    "",
		}).Error
}

func (r *connectionRepo) UpdateStatus(ctx context.Context, id string, status, lastError string) error {
	return r.db.WithContext(ctx).
		Model(&model.MarketplaceConnection{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"last_error": lastError,
		}).Error
}

// FindExpiring 查找 before 之前过期且未标记错误的授权
func (r *connectionRepo) FindExpiring(ctx context.Context, marketplace model.Marketplace, before time.Time) ([]model.MarketplaceConnection, error) {
	var list []model.MarketplaceConnection
	err := r.db.WithContext(ctx).
		Where("marketplace = ? AND status <> ? AND expires_at <= ?", marketplace, model.ConnectionStatusErrored, before).
		Where("refresh_token <> ''").
		Order("expires_at ASC").
		Find(&list).Error
	return list, err
}
