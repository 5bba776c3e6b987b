package model

import (
	"strings"

	"gorm.io/datatypes"
)

// Carrier 承运商
type Carrier string

const (
	CarrierSendle Carrier = "sendle"
	CarrierManual Carrier = "manual"
	CarrierOther  Carrier = "other"
)

// ShippingMethod 计费方式
type ShippingMethod string

const (
	ShippingMethodFlat          ShippingMethod = "flat"
	ShippingMethodCalculated    ShippingMethod = "calculated"
	ShippingMethodFreeThreshold ShippingMethod = "free_threshold"
)

// RateType 旧版计费字段 (仅为兼容老客户端保留)
type RateType string

const (
	RateTypeFlat   RateType = "flat"
	RateTypeWeight RateType = "weight"
	RateTypeFree   RateType = "free"
)

// ZoneWildcard 匹配任意国家的区域
const ZoneWildcard = "*"

// ShippingProfile 运费模板模型
// 不变量：同一租户下最多一个 IsDefault = true
type ShippingProfile struct {
	BaseModel

	// 租户隔离
	TenantID string `gorm:"size:36;not null;index;index:idx_tenant_default,priority:1;index:idx_tenant_carrier,priority:1;index:idx_tenant_active,priority:1" json:"tenant_id"`

	Name        string         `gorm:"size:255;not null" json:"name"`
	Description string         `gorm:"type:text" json:"description"`
	Carrier     Carrier        `gorm:"size:20;not null;index:idx_tenant_carrier,priority:2" json:"carrier"`
	Method      ShippingMethod `gorm:"size:20;not null" json:"method"`

	IsDefault bool `gorm:"not null;index:idx_tenant_default,priority:2" json:"is_default"`
	// nil 表示老数据没有该字段，按启用处理
	IsActive *bool `gorm:"index:idx_tenant_active,priority:2" json:"is_active"`

	OriginCountryISO  string `gorm:"size:10" json:"origin_country_iso"`
	ProcessingDaysMin int    `json:"processing_days_min"`
	ProcessingDaysMax int    `json:"processing_days_max"`

	// 区域按顺序匹配
	Zones datatypes.JSONSlice[ShippingZone] `json:"zones"`

	// --- 旧版字段 ---
	RateType              RateType                        `gorm:"size:20" json:"rate_type,omitempty"`
	FlatRate              int64                           `json:"flat_rate,omitempty"` // 分
	WeightRates           datatypes.JSONSlice[WeightRate] `json:"weight_rates,omitempty"`
	FreeShippingThreshold *int64                          `json:"free_shipping_threshold,omitempty"` // 分
	DomesticOnly          bool                            `json:"domestic_only"`
	MaxWeight             int                             `json:"max_weight,omitempty"` // 克
}

func (ShippingProfile) TableName() string {
	return "shipping_profiles"
}

// Active 老数据 IsActive 为空时视为启用
func (p *ShippingProfile) Active() bool {
	return p.IsActive == nil || *p.IsActive
}

// ShippingZone 运费区域，归属于单个模板
type ShippingZone struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Countries []string `json:"countries,omitempty"` // ISO 代码，"*" 为通配
	Regions   []string `json:"regions,omitempty"`   // 如 "EU", "APAC"

	// 费用（单位：分）
	Rate               int64  `json:"rate"`
	AdditionalItemRate int64  `json:"additional_item_rate,omitempty"`
	FreeAbove          *int64 `json:"free_above,omitempty"`

	DeliveryDaysMin int `json:"delivery_days_min,omitempty"`
	DeliveryDaysMax int `json:"delivery_days_max,omitempty"`
}

// MatchesCountry 国家精确匹配（忽略大小写）
func (z *ShippingZone) MatchesCountry(country string) bool {
	for _, c := range z.Countries {
		if country != "" && strings.EqualFold(c, country) {
			return true
		}
	}
	return false
}

// MatchesRegion 区域匹配
func (z *ShippingZone) MatchesRegion(region string) bool {
	for _, r := range z.Regions {
		if region != "" && strings.EqualFold(r, region) {
			return true
		}
	}
	return false
}

// IsWildcard 是否为兜底区域
func (z *ShippingZone) IsWildcard() bool {
	for _, c := range z.Countries {
		if c == ZoneWildcard {
			return true
		}
	}
	return false
}

// WeightRate 旧版重量阶梯
type WeightRate struct {
	MaxGrams int   `json:"max_grams"`
	Rate     int64 `json:"rate"`
}
