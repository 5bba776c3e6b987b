package model

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// PieceStatus 商品状态
type PieceStatus string

const (
	PieceStatusDraft        PieceStatus = "draft"
	PieceStatusAvailable    PieceStatus = "available"
	PieceStatusReserved     PieceStatus = "reserved"
	PieceStatusSold         PieceStatus = "sold"
	PieceStatusArchived     PieceStatus = "archived"
	PieceStatusCommissioned PieceStatus = "commissioned"
)

// Piece 卖家的商品
type Piece struct {
	BaseModel

	TenantID string `gorm:"size:36;not null;index" json:"tenant_id"`

	// --- 基本信息 ---
	Name        string      `gorm:"size:255;not null" json:"name"`
	Description string      `gorm:"type:text" json:"description"`
	Category    string      `gorm:"size:100;index" json:"category"`
	Status      PieceStatus `gorm:"size:20;index" json:"status"`

	// --- 价格与库存 ---
	Price    decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"price"`
	Currency string              `gorm:"size:5" json:"currency"`
	Stock    *int                `json:"stock"`

	// --- 材质与工艺 ---
	Stones     pq.StringArray `gorm:"type:text[]" json:"stones"`
	Metals     pq.StringArray `gorm:"type:text[]" json:"metals"`
	Techniques pq.StringArray `gorm:"type:text[]" json:"techniques"`
	Tags       pq.StringArray `gorm:"type:text[]" json:"tags"`

	// --- 规格 ---
	Dimensions  string `gorm:"size:100" json:"dimensions"`
	Weight      string `gorm:"size:50" json:"weight"`
	ChainLength string `gorm:"size:50" json:"chain_length"`

	Images datatypes.JSONSlice[PieceImage] `json:"images"`

	// --- 市场集成状态 ---
	Etsy EtsyIntegration `gorm:"embedded;embeddedPrefix:etsy_" json:"etsy"`
}

func (Piece) TableName() string {
	return "pieces"
}

// PieceImage 商品图片
// URL 支持 http(s):// 与 s3://bucket/key
type PieceImage struct {
	URL      string `json:"url"`
	Alt      string `json:"alt,omitempty"`
	Position int    `json:"position"`
}

// EtsyIntegration 嵌入在 Piece 上的 Etsy 同步状态
// ListingID 存在即视为已关联
type EtsyIntegration struct {
	ListingID    *int64     `gorm:"index" json:"listing_id,omitempty"`
	ListingURL   string     `gorm:"size:512" json:"listing_url,omitempty"`
	SyncEnabled  *bool      `json:"sync_enabled,omitempty"` // nil 视为开启
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	LastError    string     `gorm:"type:text" json:"last_error,omitempty"`
}

// Linked 是否已关联 Etsy listing
func (e *EtsyIntegration) Linked() bool {
	return e.ListingID != nil && *e.ListingID > 0
}

// IsSyncEnabled 默认开启
func (e *EtsyIntegration) IsSyncEnabled() bool {
	return e.SyncEnabled == nil || *e.SyncEnabled
}
