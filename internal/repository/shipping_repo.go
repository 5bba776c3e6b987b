package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"madebuy/internal/model"
)

// ==================== ShippingProfile 接口定义 ====================

// ShippingProfileRepository 运费模板仓储接口
// 所有查询都按租户隔离
type ShippingProfileRepository interface {
	// 基础 CRUD
	Create(ctx context.Context, profile *model.ShippingProfile) error
	Save(ctx context.Context, profile *model.ShippingProfile) error
	GetByID(ctx context.Context, tenantID, id string) (*model.ShippingProfile, error)
	UpdateFields(ctx context.Context, tenantID, id string, fields map[string]interface{}) (bool, error)
	Delete(ctx context.Context, tenantID, id string) (bool, error)

	// 默认模板
	SetDefault(ctx context.Context, tenantID, id string) (bool, error)
	GetDefault(ctx context.Context, tenantID string) (*model.ShippingProfile, error)
	GetFirstActive(ctx context.Context, tenantID string) (*model.ShippingProfile, error)

	// 查询
	ListByTenant(ctx context.Context, tenantID string, activeOnly bool) ([]model.ShippingProfile, error)
	Count(ctx context.Context, tenantID string) (int64, error)
}

// ==================== ShippingProfile 实现 ====================

type shippingProfileRepo struct {
	db *gorm.DB
}

// NewShippingProfileRepository 创建运费模板仓储
func NewShippingProfileRepository(db *gorm.DB) ShippingProfileRepository {
	return &shippingProfileRepo{db: db}
}

// activeScope 老数据 is_active 为空按启用处理
func activeScope(db *gorm.DB) *gorm.DB {
	return db.Where("is_active IS NULL OR is_active = ?", true)
}

// clearDefaults 清除租户下除 exceptID 之外的默认标记
func clearDefaults(tx *gorm.DB, tenantID, exceptID string) error {
	q := tx.Model(&model.ShippingProfile{}).
		Where("tenant_id = ? AND is_default = ?", tenantID, true)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	return q.Update("is_default", false).Error
}

func (r *shippingProfileRepo) Create(ctx context.Context, profile *model.ShippingProfile) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if profile.IsDefault {
			if err := clearDefaults(tx, profile.TenantID, ""); err != nil {
				return err
			}
		}
		return tx.Create(profile).Error
	})
}

func (r *shippingProfileRepo) Save(ctx context.Context, profile *model.ShippingProfile) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if profile.IsDefault {
			if err := clearDefaults(tx, profile.TenantID, profile.ID); err != nil {
				return err
			}
		}
		return tx.Save(profile).Error
	})
}

func (r *shippingProfileRepo) GetByID(ctx context.Context, tenantID, id string) (*model.ShippingProfile, error) {
	var profile model.ShippingProfile
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *shippingProfileRepo) UpdateFields(ctx context.Context, tenantID, id string, fields map[string]interface{}) (bool, error) {
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if v, ok := fields["is_default"].(bool); ok && v {
			if err := clearDefaults(tx, tenantID, id); err != nil {
				return err
			}
		}
		res := tx.Model(&model.ShippingProfile{}).
			Where("tenant_id = ? AND id = ?", tenantID, id).
			Updates(fields)
		affected = res.RowsAffected
		return res.Error
	})
	return affected > 0, err
}

func (r *shippingProfileRepo) Delete(ctx context.Context, tenantID, id string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Delete(&model.ShippingProfile{})
	return res.RowsAffected > 0, res.Error
}

// SetDefault 先清空租户全部默认标记，再设置目标
func (r *shippingProfileRepo) SetDefault(ctx context.Context, tenantID, id string) (bool, error) {
	found := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.ShippingProfile{}).
			Where("tenant_id = ? AND id = ?", tenantID, id).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return nil
		}
		found = true

		if err := clearDefaults(tx, tenantID, ""); err != nil {
			return err
		}
		return tx.Model(&model.ShippingProfile{}).
			Where("tenant_id = ? AND id = ?", tenantID, id).
			Update("is_default", true).Error
	})
	return found, err
}

func (r *shippingProfileRepo) GetDefault(ctx context.Context, tenantID string) (*model.ShippingProfile, error) {
	var profile model.ShippingProfile
	err := r.db.WithContext(ctx).
		Scopes(activeScope).
		Where("tenant_id = ? AND is_default = ?", tenantID, true).
		First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetFirstActive 最早创建的启用模板
func (r *shippingProfileRepo) GetFirstActive(ctx context.Context, tenantID string) (*model.ShippingProfile, error) {
	var list []model.ShippingProfile
	err := r.db.WithContext(ctx).
		Scopes(activeScope).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC").
		Limit(1).
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return &list[0], nil
}

func (r *shippingProfileRepo) ListByTenant(ctx context.Context, tenantID string, activeOnly bool) ([]model.ShippingProfile, error) {
	var list []model.ShippingProfile
	q := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if activeOnly {
		q = q.Scopes(activeScope)
	}
	err := q.Order("is_default DESC").
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}

func (r *shippingProfileRepo) Count(ctx context.Context, tenantID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.ShippingProfile{}).
		Where("tenant_id = ?", tenantID).
		Count(&count).Error
	return count, err
}
