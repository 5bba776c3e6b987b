package dto

// ================== Etsy 授权 ==================

// EtsyCallbackReq Etsy 回调参数
// 用户拒绝授权时 Etsy 只回传 error / error_description
type EtsyCallbackReq struct {
	Code             string `form:"code"`
	State            string `form:"state"`
	Error            string `form:"error"`
	ErrorDescription string `form:"error_description"`
}

// EtsyConnectResp 授权链接
type EtsyConnectResp struct {
	AuthURL string `json:"auth_url"`
}

// EtsyConnectionResp 授权结果，不包含 token
type EtsyConnectionResp struct {
	TenantID  string `json:"tenant_id"`
	ShopID    int64  `json:"shop_id"`
	ShopName  string `json:"shop_name"`
	UserID    int64  `json:"user_id"`
	Status    string `json:"status"`
	ExpiresAt string `json:"expires_at"`
}

// ================== 同步 ==================

// BatchSyncReq piece_ids 为空时同步租户下全部开启同步的商品
type BatchSyncReq struct {
	PieceIDs []string `json:"piece_ids" binding:"omitempty,max=200,dive,required"`
}

// EtsyListingsReq 拉取店铺 listing
type EtsyListingsReq struct {
	State  string `form:"state" binding:"omitempty,oneof=active inactive draft expired sold_out"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Offset int    `form:"offset" binding:"omitempty,min=0"`
}

// SetSyncEnabledReq 开关自动同步
type SetSyncEnabledReq struct {
	Enabled *bool `json:"enabled" binding:"required"`
}
