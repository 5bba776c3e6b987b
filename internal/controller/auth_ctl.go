package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"madebuy/internal/api/dto"
	"madebuy/internal/model"
	"madebuy/internal/service"
)

type AuthController struct {
	authService *service.AuthService
}

func NewAuthController(s *service.AuthService) *AuthController {
	return &AuthController{authService: s}
}

func connectionResp(conn *model.MarketplaceConnection) dto.EtsyConnectionResp {
	return dto.EtsyConnectionResp{
		TenantID:  conn.TenantID,
		ShopID:    conn.ShopID,
		ShopName:  conn.ShopName,
		UserID:    conn.UserID,
		Status:    conn.Status,
		ExpiresAt: conn.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

// Connect
// @Summary 获取 Etsy 授权链接
// @Description 生成带 PKCE 的授权链接，前端自行跳转
// @Tags Auth (授权模块)
// @Produce json
// @Param tenantId path string true "租户ID"
// @Success 200 {object} dto.EtsyConnectResp
// @Failure 404 {object} Response "租户不存在"
// @Router /api/v1/tenants/{tenantId}/etsy/connect [get]
func (ctrl *AuthController) Connect(c *gin.Context) {
	url, err := ctrl.authService.GenerateLoginURL(c.Request.Context(), c.Param("tenantId"))
	if err != nil {
		handleError(c, err)
		return
	}
	success(c, dto.EtsyConnectResp{AuthURL: url})
}

// Callback
// @Summary Etsy 授权回调
// @Description 接收 Etsy 返回的 code 和 state，换取 Token 并入库
// @Tags Auth (授权模块)
// @Produce json
// @Param code query string true "授权码"
// @Param state query string true "安全校验码"
// @Success 200 {object} dto.EtsyConnectionResp
// @Failure 400 {object} Response "拒绝授权/参数错误"
// @Router /api/v1/etsy/callback [get]
func (ctrl *AuthController) Callback(c *gin.Context) {
	var req dto.EtsyCallbackReq
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, err)
		return
	}

	// 1. 用户在 Etsy 端拒绝
	if req.Error != "" {
		msg := req.Error
		if req.ErrorDescription != "" {
			msg += ": " + req.ErrorDescription
		}
		fail(c, http.StatusBadRequest, "授权被拒绝: "+msg)
		return
	}
	if req.Code == "" || req.State == "" {
		fail(c, http.StatusBadRequest, "code 与 state 不能为空")
		return
	}

	// 2. 换取 token 并入库
	conn, err := ctrl.authService.HandleCallback(c.Request.Context(), req.Code, req.State)
	if err != nil {
		handleError(c, err)
		return
	}
	success(c, connectionResp(conn))
}

// GetConnection 查看授权状态
func (ctrl *AuthController) GetConnection(c *gin.Context) {
	conn, err := ctrl.authService.GetConnection(c.Request.Context(), c.Param("tenantId"))
	if err != nil {
		handleError(c, err)
		return
	}
	success(c, connectionResp(conn))
}

// Refresh 强制刷新 token，被 Etsy 拒绝时授权标记为 errored
func (ctrl *AuthController) Refresh(c *gin.Context) {
	ctx := c.Request.Context()
	conn, err := ctrl.authService.GetConnection(ctx, c.Param("tenantId"))
	if err != nil {
		handleError(c, err)
		return
	}
	if err := ctrl.authService.RefreshConnection(ctx, conn); err != nil {
		handleError(c, err)
		return
	}
	success(c, connectionResp(conn))
}
