package etsy

// ==========================================
// 请求 DTO: 发往 Etsy API 的 JSON 数据
// ==========================================

// Etsy 固定枚举
const (
	WhoMadeIDid             = "i_did"
	WhenMadeMadeToOrder     = "made_to_order"
	ListingTypePhysical     = "physical"
	ListingStateActive      = "active"
	ListingStateDraft       = "draft"
	ListingStateInactive    = "inactive"
	MaxTitleLength          = 140
	MaxTags                 = 13
	MaxTagLength            = 20
	MaxMaterials            = 13
	MaxImages               = 10
	MinPrice                = 0.20
	DefaultListingsPageSize = 25
)

// CreateListingReq 创建草稿请求
// POST /v3/application/shops/{shop_id}/listings
type CreateListingReq struct {
	Quantity    int     `json:"quantity"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`

	// --- 必填枚举 ---
	WhoMade  string `json:"who_made"`  // i_did, collective, someone_else
	WhenMade string `json:"when_made"` // made_to_order, 2020_2025...
	Type     string `json:"type"`      // physical, download

	// --- 核心关联 ID ---
	TaxonomyID        int64 `json:"taxonomy_id"`
	ShippingProfileID int64 `json:"shipping_profile_id,omitempty"`

	Tags      []string `json:"tags,omitempty"`
	Materials []string `json:"materials,omitempty"`
}

// UpdateListingReq 更新 listing
// PATCH /v3/application/shops/{shop_id}/listings/{listing_id}
// 空字段不发送，State 为空时保持远端状态
type UpdateListingReq struct {
	Title             string   `json:"title,omitempty"`
	Description       string   `json:"description,omitempty"`
	TaxonomyID        int64    `json:"taxonomy_id,omitempty"`
	ShippingProfileID int64    `json:"shipping_profile_id,omitempty"`
	WhoMade           string   `json:"who_made,omitempty"`
	WhenMade          string   `json:"when_made,omitempty"`
	Tags              []string `json:"tags,omitempty"`
	Materials         []string `json:"materials,omitempty"`
	State             string   `json:"state,omitempty"`
}

// InventoryUpdateReq 库存更新
// PUT /v3/application/listings/{listing_id}/inventory
type InventoryUpdateReq struct {
	Products           []InventoryProduct `json:"products"`
	PriceOnProperty    []int64            `json:"price_on_property"`
	QuantityOnProperty []int64            `json:"quantity_on_property"`
	SkuOnProperty      []int64            `json:"sku_on_property"`
}

// InventoryProduct 单个变体
type InventoryProduct struct {
	Sku            string          `json:"sku"`
	PropertyValues []PropertyValue `json:"property_values"`
	Offerings      []Offering      `json:"offerings"`
}

// PropertyValue 变体属性 (单品不使用)
type PropertyValue struct {
	PropertyID   int64    `json:"property_id"`
	PropertyName string   `json:"property_name"`
	Values       []string `json:"values"`
}

// Offering 报价
// 库存为 0 时 IsEnabled=false，Etsy 视为不可售而不是删除
type Offering struct {
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	IsEnabled bool    `json:"is_enabled"`
}

// ListingsQuery 店铺 listing 查询参数
// GET /v3/application/shops/{shop_id}/listings
type ListingsQuery struct {
	State  string
	Limit  int
	Offset int
}
