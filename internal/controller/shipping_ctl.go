package controller

import (
	"github.com/gin-gonic/gin"

	"madebuy/internal/api/dto"
	"madebuy/internal/model"
	"madebuy/internal/service"
)

type ShippingProfileController struct {
	profileSvc *service.ShippingProfileService
}

func NewShippingProfileController(profileSvc *service.ShippingProfileService) *ShippingProfileController {
	return &ShippingProfileController{
		profileSvc: profileSvc,
	}
}

// profileOrNotFound 服务层以 nil, nil 表示不存在
func profileOrNotFound(c *gin.Context, profile *model.ShippingProfile, err error) {
	if err != nil {
		handleError(c, err)
		return
	}
	if profile == nil {
		handleError(c, service.ErrProfileNotFound)
		return
	}
	success(c, profile)
}

// ==================== Profile ====================

// ListProfiles 获取运费模板列表
// @Summary 获取运费模板列表
// @Tags ShippingProfile (运费模板)
// @Produce json
// @Param tenantId path string true "租户ID"
// @Param active_only query bool false "仅返回启用的模板"
// @Success 200 {object} dto.ShippingProfileListResp
// @Router /api/v1/tenants/{tenantId}/shipping-profiles [get]
func (ctl *ShippingProfileController) ListProfiles(c *gin.Context) {
	var req dto.ShippingProfileListReq
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := ctl.profileSvc.ListProfiles(c.Request.Context(), c.Param("tenantId"), req.ActiveOnly)
	if err != nil {
		handleError(c, err)
		return
	}
	success(c, resp)
}

// GetProfile 获取运费模板详情
// @Summary 获取运费模板详情
// @Tags ShippingProfile (运费模板)
// @Produce json
// @Param tenantId path string true "租户ID"
// @Param id path string true "模板ID"
// @Success 200 {object} model.ShippingProfile
// @Failure 404 {object} Response "模板不存在"
// @Router /api/v1/tenants/{tenantId}/shipping-profiles/{id} [get]
func (ctl *ShippingProfileController) GetProfile(c *gin.Context) {
	profile, err := ctl.profileSvc.GetProfile(c.Request.Context(), c.Param("tenantId"), c.Param("id"))
	profileOrNotFound(c, profile, err)
}

// GetDefaultProfile 默认模板，没有默认时回退到最早的启用模板
func (ctl *ShippingProfileController) GetDefaultProfile(c *gin.Context) {
	profile, err := ctl.profileSvc.GetDefaultProfile(c.Request.Context(), c.Param("tenantId"))
	profileOrNotFound(c, profile, err)
}

func (ctl *ShippingProfileController) GetSummary(c *gin.Context) {
	summary, err := ctl.profileSvc.GetProfileSummary(c.Request.Context(), c.Param("tenantId"))
	if err != nil {
		handleError(c, err)
		return
	}
	success(c, summary)
}

// CreateProfile 创建运费模板
// @Summary 创建运费模板
// @Description 同时接受新版 method 字段与旧版 rate_type 字段
// @Tags ShippingProfile (运费模板)
// @Accept json
// @Produce json
// @Param tenantId path string true "租户ID"
// @Param request body dto.CreateShippingProfileReq true "模板参数"
// @Success 201 {object} model.ShippingProfile
// @Failure 400 {object} Response "参数错误"
// @Failure 422 {object} Response "校验失败"
// @Router /api/v1/tenants/{tenantId}/shipping-profiles [post]
func (ctl *ShippingProfileController) CreateProfile(c *gin.Context) {
	var req dto.CreateShippingProfileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	profile, err := ctl.profileSvc.CreateProfile(c.Request.Context(), c.Param("tenantId"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	created(c, profile)
}

// UpdateProfile 局部更新
// @Summary 更新运费模板
// @Tags ShippingProfile (运费模板)
// @Accept json
// @Produce json
// @Param tenantId path string true "租户ID"
// @Param id path string true "模板ID"
// @Param request body dto.UpdateShippingProfileReq true "更新参数"
// @Success 200 {object} model.ShippingProfile
// @Router /api/v1/tenants/{tenantId}/shipping-profiles/{id} [patch]
func (ctl *ShippingProfileController) UpdateProfile(c *gin.Context) {
	var req dto.UpdateShippingProfileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	profile, err := ctl.profileSvc.UpdateProfile(c.Request.Context(), c.Param("tenantId"), c.Param("id"), &req)
	profileOrNotFound(c, profile, err)
}

func (ctl *ShippingProfileController) SetDefault(c *gin.Context) {
	profile, err := ctl.profileSvc.SetDefaultProfile(c.Request.Context(), c.Param("tenantId"), c.Param("id"))
	profileOrNotFound(c, profile, err)
}

func (ctl *ShippingProfileController) SetActive(c *gin.Context) {
	var req dto.SetProfileActiveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	profile, err := ctl.profileSvc.SetProfileActive(c.Request.Context(), c.Param("tenantId"), c.Param("id"), *req.IsActive)
	profileOrNotFound(c, profile, err)
}

// DeleteProfile 删除运费模板
// @Summary 删除运费模板
// @Description 租户存在其他模板时不允许删除默认模板
// @Tags ShippingProfile (运费模板)
// @Produce json
// @Param tenantId path string true "租户ID"
// @Param id path string true "模板ID"
// @Success 200 {object} Response
// @Failure 404 {object} Response "模板不存在"
// @Failure 409 {object} Response "默认模板仍在使用"
// @Router /api/v1/tenants/{tenantId}/shipping-profiles/{id} [delete]
func (ctl *ShippingProfileController) DeleteProfile(c *gin.Context) {
	deleted, err := ctl.profileSvc.DeleteProfile(c.Request.Context(), c.Param("tenantId"), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	if !deleted {
		handleError(c, service.ErrProfileNotFound)
		return
	}
	success(c, gin.H{"deleted": true})
}

// ==================== Zone ====================

func (ctl *ShippingProfileController) AddZone(c *gin.Context) {
	var zone model.ShippingZone
	if err := c.ShouldBindJSON(&zone); err != nil {
		badRequest(c, err)
		return
	}

	profile, err := ctl.profileSvc.AddZone(c.Request.Context(), c.Param("tenantId"), c.Param("id"), zone)
	if err != nil {
		handleError(c, err)
		return
	}
	created(c, profile)
}

func (ctl *ShippingProfileController) UpdateZone(c *gin.Context) {
	var req dto.UpdateZoneReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	profile, err := ctl.profileSvc.UpdateZone(c.Request.Context(), c.Param("tenantId"), c.Param("id"), c.Param("zoneId"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	success(c, profile)
}

func (ctl *ShippingProfileController) RemoveZone(c *gin.Context) {
	profile, err := ctl.profileSvc.RemoveZone(c.Request.Context(), c.Param("tenantId"), c.Param("id"), c.Param("zoneId"))
	if err != nil {
		handleError(c, err)
		return
	}
	success(c, profile)
}

// ==================== Quote ====================

// Quote 运费报价
// @Summary 运费报价
// @Description profile_id 为空时使用默认模板
// @Tags ShippingProfile (运费模板)
// @Accept json
// @Produce json
// @Param tenantId path string true "租户ID"
// @Param request body dto.ShippingQuoteReq true "报价参数"
// @Success 200 {object} dto.ShippingQuoteResp
// @Failure 422 {object} Response "目的地无可用运费"
// @Router /api/v1/tenants/{tenantId}/shipping-profiles/quote [post]
func (ctl *ShippingProfileController) Quote(c *gin.Context) {
	var req dto.ShippingQuoteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	quote, err := ctl.profileSvc.QuoteShipping(c.Request.Context(), c.Param("tenantId"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	success(c, quote)
}
