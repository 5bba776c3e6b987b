package etsy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://openapi.etsy.com/v3/application"
	DefaultTimeout = 30 * time.Second
	DefaultRPS     = 10
	DefaultBurst   = 10
)

// Config Etsy 客户端配置
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	RPS     float64
	Burst   int
}

// Client Etsy v3 API 客户端
// 所有请求共享同一个限流器
type Client struct {
	http    *resty.Client
	apiKey  string
	limiter *rate.Limiter
}

// NewClient 创建客户端，未设置的字段使用默认值
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RPS <= 0 {
		cfg.RPS = DefaultRPS
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultBurst
	}

	c := &Client{
		apiKey:  cfg.APIKey,
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
	}
	c.http = resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("x-api-key", cfg.APIKey).
		SetHeader("User-Agent", "MadeBuy/1.0")

	// 客户端限流，等待期间可被 ctx 取消
	c.http.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		return c.limiter.Wait(r.Context())
	})
	return c
}

// request 固定按 JSON 解码响应，不依赖 Etsy 返回的 Content-Type
func (c *Client) request(ctx context.Context, accessToken string) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		ForceContentType("application/json")
}

// parseError 解析 Etsy 错误响应
func parseError(resp *resty.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode()}

	var etsyErr EtsyErrorResp
	if err := json.Unmarshal(resp.Body(), &etsyErr); err == nil {
		apiErr.Code = etsyErr.Error
		apiErr.Message = etsyErr.ErrorDescription
		if apiErr.Message == "" {
			apiErr.Message = etsyErr.Error
			apiErr.Code = ""
		}
		return apiErr
	}

	apiErr.Message = resp.String()
	return apiErr
}

// ==================== Listing ====================

// CreateDraftListing 创建草稿 listing
func (c *Client) CreateDraftListing(ctx context.Context, accessToken string, shopID int64, req CreateListingReq) (*ListingResp, error) {
	var res ListingResp
	resp, err := c.request(ctx, accessToken).
		SetBody(req).
		SetResult(&res).
		Post(fmt.Sprintf("/shops/%d/listings", shopID))
	if err != nil {
		return nil, fmt.Errorf("create listing request: %w", err)
	}
	if resp.IsError() {
		return nil, parseError(resp)
	}
	return &res, nil
}

// UpdateListing 更新 listing 基本信息
func (c *Client) UpdateListing(ctx context.Context, accessToken string, shopID, listingID int64, req UpdateListingReq) (*ListingResp, error) {
	var res ListingResp
	resp, err := c.request(ctx, accessToken).
		SetBody(req).
		SetResult(&res).
		Patch(fmt.Sprintf("/shops/%d/listings/%d", shopID, listingID))
	if err != nil {
		return nil, fmt.Errorf("update listing request: %w", err)
	}
	if resp.IsError() {
		return nil, parseError(resp)
	}
	return &res, nil
}

// UpdateListingInventory 覆盖 listing 库存与价格
func (c *Client) UpdateListingInventory(ctx context.Context, accessToken string, listingID int64, req InventoryUpdateReq) error {
	resp, err := c.request(ctx, accessToken).
		SetBody(req).
		Put(fmt.Sprintf("/listings/%d/inventory", listingID))
	if err != nil {
		return fmt.Errorf("update inventory request: %w", err)
	}
	if resp.IsError() {
		return parseError(resp)
	}
	return nil
}

// UploadListingImage 上传图片 (multipart)
func (c *Client) UploadListingImage(ctx context.Context, accessToken string, shopID, listingID int64, filename string, data []byte, rank int) (*ListingImageResp, error) {
	var res ListingImageResp
	resp, err := c.request(ctx, accessToken).
		SetFileReader("image", filename, bytes.NewReader(data)).
		SetFormData(map[string]string{"rank": strconv.Itoa(rank)}).
		SetResult(&res).
		Post(fmt.Sprintf("/shops/%d/listings/%d/images", shopID, listingID))
	if err != nil {
		return nil, fmt.Errorf("upload image request: %w", err)
	}
	if resp.IsError() {
		return nil, parseError(resp)
	}
	return &res, nil
}

// DeleteListing 删除 listing
func (c *Client) DeleteListing(ctx context.Context, accessToken string, listingID int64) error {
	resp, err := c.request(ctx, accessToken).
		Delete(fmt.Sprintf("/listings/%d", listingID))
	if err != nil {
		return fmt.Errorf("delete listing request: %w", err)
	}
	if resp.IsError() {
		return parseError(resp)
	}
	return nil
}

// GetShopListings 分页获取店铺 listing
func (c *Client) GetShopListings(ctx context.Context, accessToken string, shopID int64, q ListingsQuery) (*ListingsResp, error) {
	if q.Limit <= 0 {
		q.Limit = DefaultListingsPageSize
	}
	params := map[string]string{
		"limit":  strconv.Itoa(q.Limit),
		"offset": strconv.Itoa(q.Offset),
	}
	if q.State != "" {
		params["state"] = q.State
	}

	var res ListingsResp
	resp, err := c.request(ctx, accessToken).
		SetQueryParams(params).
		SetResult(&res).
		Get(fmt.Sprintf("/shops/%d/listings", shopID))
	if err != nil {
		return nil, fmt.Errorf("get listings request: %w", err)
	}
	if resp.IsError() {
		return nil, parseError(resp)
	}
	return &res, nil
}

// ==================== User / Shop ====================

// GetMe 当前授权用户及其店铺 ID
func (c *Client) GetMe(ctx context.Context, accessToken string) (*EtsyMeResp, error) {
	var res EtsyMeResp
	resp, err := c.request(ctx, accessToken).
		SetResult(&res).
		Get("/users/me")
	if err != nil {
		return nil, fmt.Errorf("get me request: %w", err)
	}
	if resp.IsError() {
		return nil, parseError(resp)
	}
	return &res, nil
}

// GetShop 店铺信息
func (c *Client) GetShop(ctx context.Context, accessToken string, shopID int64) (*EtsyShopResp, error) {
	var res EtsyShopResp
	resp, err := c.request(ctx, accessToken).
		SetResult(&res).
		Get(fmt.Sprintf("/shops/%d", shopID))
	if err != nil {
		return nil, fmt.Errorf("get shop request: %w", err)
	}
	if resp.IsError() {
		return nil, parseError(resp)
	}
	return &res, nil
}

// IsNotFound 是否 404
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// APIKey 应用 keystring，同时作为 OAuth client_id
func (c *Client) APIKey() string {
	return c.apiKey
}
