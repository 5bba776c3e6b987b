package etsy

import "fmt"

// ==========================================
// 响应 DTO: 用于接收 Etsy API 返回的原始 JSON 数据
// ==========================================

// EtsyErrorResp Etsy 通用错误响应
type EtsyErrorResp struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// APIError Etsy 返回非 2xx
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" && e.Message != "" {
		return fmt.Sprintf("etsy api error (status %d): %s: %s", e.StatusCode, e.Code, e.Message)
	}
	if e.Message != "" {
		return fmt.Sprintf("etsy api error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("etsy api error (status %d)", e.StatusCode)
}

// PriceDTO 价格嵌套结构
type PriceDTO struct {
	Amount       int64  `json:"amount"`
	Divisor      int64  `json:"divisor"`
	CurrencyCode string `json:"currency_code"`
}

// Float 转换为浮点金额
func (p PriceDTO) Float() float64 {
	if p.Divisor == 0 {
		return float64(p.Amount)
	}
	return float64(p.Amount) / float64(p.Divisor)
}

// ListingResp 单个 listing
type ListingResp struct {
	ListingID         int64    `json:"listing_id"`
	UserID            int64    `json:"user_id"`
	ShopID            int64    `json:"shop_id"`
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	State             string   `json:"state"`
	Quantity          int      `json:"quantity"`
	URL               string   `json:"url"`
	Tags              []string `json:"tags"`
	Materials         []string `json:"materials"`
	ShippingProfileID int64    `json:"shipping_profile_id"`
	TaxonomyID        int64    `json:"taxonomy_id"`
	WhoMade           string   `json:"who_made"`
	WhenMade          string   `json:"when_made"`
	Price             PriceDTO `json:"price"`
	CreatedTimestamp  int64    `json:"created_timestamp"`
	UpdatedTimestamp  int64    `json:"updated_timestamp"`
}

// ListingsResp 列表响应
type ListingsResp struct {
	Count   int           `json:"count"`
	Results []ListingResp `json:"results"`
}

// ListingImageResp 上传图片响应
// POST /v3/application/shops/{shop_id}/listings/{listing_id}/images
type ListingImageResp struct {
	ListingImageID int64  `json:"listing_image_id"`
	ListingID      int64  `json:"listing_id"`
	Rank           int    `json:"rank"`
	URLFullxFull   string `json:"url_fullxfull"`
}

// EtsyMeResp 当前授权用户
// GET /v3/application/users/me
type EtsyMeResp struct {
	UserID int64 `json:"user_id"`
	ShopID int64 `json:"shop_id"`
}

// EtsyShopResp Etsy 店铺 API 响应
// GET /v3/application/shops/{shop_id}
type EtsyShopResp struct {
	ShopID       int64  `json:"shop_id"`
	UserID       int64  `json:"user_id"`
	ShopName     string `json:"shop_name"`
	Title        string `json:"title"`
	CurrencyCode string `json:"currency_code"`
	URL          string `json:"url"`
}
