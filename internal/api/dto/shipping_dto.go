package dto

import "madebuy/internal/model"

// ================== Shipping Profile DTO ==================

// CreateShippingProfileReq 创建运费模板
// 同时接受新版字段与旧版字段 (rate_type 等)，由服务层统一归一化
type CreateShippingProfileReq struct {
	Name              string               `json:"name" binding:"required,max=255"`
	Description       string               `json:"description"`
	Carrier           model.Carrier        `json:"carrier"`
	Method            model.ShippingMethod `json:"method"`
	IsDefault         bool                 `json:"is_default"`
	IsActive          *bool                `json:"is_active"`
	OriginCountryISO  string               `json:"origin_country_iso"`
	ProcessingDaysMin int                  `json:"processing_days_min"`
	ProcessingDaysMax int                  `json:"processing_days_max"`
	Zones             []model.ShippingZone `json:"zones"`

	// --- 旧版字段 ---
	RateType              model.RateType     `json:"rate_type"`
	FlatRate              int64              `json:"flat_rate"`
	WeightRates           []model.WeightRate `json:"weight_rates"`
	FreeShippingThreshold *int64             `json:"free_shipping_threshold"`
	DomesticOnly          bool               `json:"domestic_only"`
	MaxWeight             int                `json:"max_weight"`
}

// UpdateShippingProfileReq 局部更新，nil 字段不修改
type UpdateShippingProfileReq struct {
	Name              *string               `json:"name" binding:"omitempty,max=255"`
	Description       *string               `json:"description"`
	Carrier           *model.Carrier        `json:"carrier"`
	Method            *model.ShippingMethod `json:"method"`
	IsDefault         *bool                 `json:"is_default"`
	IsActive          *bool                 `json:"is_active"`
	OriginCountryISO  *string               `json:"origin_country_iso"`
	ProcessingDaysMin *int                  `json:"processing_days_min"`
	ProcessingDaysMax *int                  `json:"processing_days_max"`
	Zones             *[]model.ShippingZone `json:"zones"`

	RateType              *model.RateType     `json:"rate_type"`
	FlatRate              *int64              `json:"flat_rate"`
	WeightRates           *[]model.WeightRate `json:"weight_rates"`
	FreeShippingThreshold *int64              `json:"free_shipping_threshold"`
	DomesticOnly          *bool               `json:"domestic_only"`
	MaxWeight             *int                `json:"max_weight"`
}

// UpdateZoneReq 区域局部更新
type UpdateZoneReq struct {
	Name               *string   `json:"name"`
	Countries          *[]string `json:"countries"`
	Regions            *[]string `json:"regions"`
	Rate               *int64    `json:"rate"`
	AdditionalItemRate *int64    `json:"additional_item_rate"`
	FreeAbove          *int64    `json:"free_above"`
	ClearFreeAbove     bool      `json:"clear_free_above"`
	DeliveryDaysMin    *int      `json:"delivery_days_min"`
	DeliveryDaysMax    *int      `json:"delivery_days_max"`
}

// SetProfileActiveReq 启用/停用
type SetProfileActiveReq struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// ShippingProfileListReq 列表查询
type ShippingProfileListReq struct {
	ActiveOnly bool `form:"active_only"`
}

// ShippingProfileListResp 列表响应
type ShippingProfileListResp struct {
	Total int64                   `json:"total"`
	List  []model.ShippingProfile `json:"list"`
}

// ShippingProfileSummaryResp 看板汇总
type ShippingProfileSummaryResp struct {
	Total      int64                   `json:"total"`
	Active     int64                   `json:"active"`
	HasDefault bool                    `json:"has_default"`
	ByCarrier  map[model.Carrier]int64 `json:"by_carrier"`
}

// ================== 运费报价 ==================

// ShippingQuoteReq 结算时的运费计算请求
// ProfileID 为空时使用默认模板
type ShippingQuoteReq struct {
	ProfileID     string `json:"profile_id"`
	Country       string `json:"country" binding:"required"`
	Region        string `json:"region"`
	SubtotalCents int64  `json:"subtotal_cents" binding:"min=0"`
	WeightGrams   int    `json:"weight_grams" binding:"min=0"`
	ItemCount     int    `json:"item_count" binding:"min=0"`
}

// ShippingQuoteResp 运费报价
type ShippingQuoteResp struct {
	ProfileID       string               `json:"profile_id"`
	ProfileName     string               `json:"profile_name"`
	Method          model.ShippingMethod `json:"method"`
	ZoneID          string               `json:"zone_id,omitempty"`
	ZoneName        string               `json:"zone_name,omitempty"`
	AmountCents     int64                `json:"amount_cents"`
	Free            bool                 `json:"free"`
	DeliveryDaysMin int                  `json:"delivery_days_min,omitempty"`
	DeliveryDaysMax int                  `json:"delivery_days_max,omitempty"`
}
