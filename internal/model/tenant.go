package model

import (
	"time"
)

// Marketplace 外部市场
type Marketplace string

const (
	MarketplaceEtsy Marketplace = "etsy"
)

// 连接状态
const (
	ConnectionStatusValid   = "valid"   // 有效
	ConnectionStatusExpired = "expired" // 已过期，等待刷新
	ConnectionStatusErrored = "errored" // 刷新失败，需重新授权
)

// Tenant 卖家账号 (多租户边界)
type Tenant struct {
	BaseModel
	Slug         string `gorm:"size:100;uniqueIndex" json:"slug"`
	BusinessName string `gorm:"size:255" json:"business_name"`
	Currency     string `gorm:"size:5;default:'AUD'" json:"currency"`

	Connections []MarketplaceConnection `gorm:"foreignKey:TenantID" json:"connections,omitempty"`
}

func (Tenant) TableName() string {
	return "tenants"
}

// MarketplaceConnection 租户在某个市场的授权
// 每个租户每个市场一条
type MarketplaceConnection struct {
	BaseModel
	TenantID    string      `gorm:"size:36;not null;uniqueIndex:idx_tenant_marketplace" json:"tenant_id"`
	Marketplace Marketplace `gorm:"size:20;not null;uniqueIndex:idx_tenant_marketplace" json:"marketplace"`

	// 外部店铺
	ShopID   int64  `gorm:"index" json:"shop_id"`
	UserID   int64  `json:"user_id"`
	ShopName string `gorm:"size:100" json:"shop_name"`

	// Etsy 侧默认运费模板
	ShippingProfileID int64 `json:"shipping_profile_id"`

	// --- Token ---
	AccessToken  string    `gorm:"size:512" json:"-"`
	RefreshToken string    `gorm:"size:512" json:"-"`
	ExpiresAt    time.Time `gorm:"index" json:"expires_at"`

	Status    string `gorm:"size:20;index;default:'valid'" json:"status"`
	LastError string `gorm:"type:text" json:"last_error,omitempty"`
}

func (MarketplaceConnection) TableName() string {
	return "marketplace_connections"
}
