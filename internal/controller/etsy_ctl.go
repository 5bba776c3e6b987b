package controller

import (
	"github.com/gin-gonic/gin"

	"madebuy/internal/api/dto"
	"madebuy/internal/service"
)

// EtsyController 商品与 Etsy listing 的同步接口
type EtsyController struct {
	syncSvc      *service.EtsySyncService
	reconcileSvc *service.ReconcileService
}

func NewEtsyController(syncSvc *service.EtsySyncService, reconcileSvc *service.ReconcileService) *EtsyController {
	return &EtsyController{
		syncSvc:      syncSvc,
		reconcileSvc: reconcileSvc,
	}
}

// SyncPiece 同步单个商品
// @Summary 同步商品到 Etsy
// @Description 未关联时创建草稿 listing 并上传图片，已关联时更新 listing 与库存
// @Tags Etsy (同步)
// @Produce json
// @Param tenantId path string true "租户ID"
// @Param pieceId path string true "商品ID"
// @Success 200 {object} service.SyncResult
// @Failure 422 {object} Response "同步失败"
// @Failure 429 {object} Response "同步冷却中"
// @Router /api/v1/tenants/{tenantId}/pieces/{pieceId}/etsy/sync [post]
func (ctl *EtsyController) SyncPiece(c *gin.Context) {
	res := ctl.syncSvc.PublishPiece(c.Request.Context(), c.Param("tenantId"), c.Param("pieceId"))
	syncResponse(c, res)
}

// SyncInventory 仅推送价格与库存
// @Summary 同步库存
// @Tags Etsy (同步)
// @Produce json
// @Param tenantId path string true "租户ID"
// @Param pieceId path string true "商品ID"
// @Success 200 {object} service.SyncResult
// @Router /api/v1/tenants/{tenantId}/pieces/{pieceId}/etsy/inventory [post]
func (ctl *EtsyController) SyncInventory(c *gin.Context) {
	res := ctl.syncSvc.InventoryForPiece(c.Request.Context(), c.Param("tenantId"), c.Param("pieceId"))
	syncResponse(c, res)
}

// SyncImages 上传图片，最多 10 张
func (ctl *EtsyController) SyncImages(c *gin.Context) {
	res := ctl.syncSvc.ImagesForPiece(c.Request.Context(), c.Param("tenantId"), c.Param("pieceId"))
	syncResponse(c, res)
}

// DeleteListing 删除远端 listing 并解除关联
func (ctl *EtsyController) DeleteListing(c *gin.Context) {
	res := ctl.syncSvc.UnlinkPiece(c.Request.Context(), c.Param("tenantId"), c.Param("pieceId"))
	syncResponse(c, res)
}

func (ctl *EtsyController) GetStatus(c *gin.Context) {
	status, err := ctl.syncSvc.PieceSyncStatus(c.Request.Context(), c.Param("tenantId"), c.Param("pieceId"))
	if err != nil {
		handleError(c, err)
		return
	}
	success(c, status)
}

func (ctl *EtsyController) SetSyncEnabled(c *gin.Context) {
	var req dto.SetSyncEnabledReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	status, err := ctl.syncSvc.SetSyncEnabled(c.Request.Context(), c.Param("tenantId"), c.Param("pieceId"), *req.Enabled)
	if err != nil {
		handleError(c, err)
		return
	}
	success(c, status)
}

// ListListings 拉取店铺 listing
// @Summary 店铺 listing 列表
// @Tags Etsy (同步)
// @Produce json
// @Param tenantId path string true "租户ID"
// @Param state query string false "listing 状态"
// @Param limit query int false "每页数量，最大 100"
// @Param offset query int false "偏移"
// @Success 200 {object} etsy.ListingsResp
// @Router /api/v1/tenants/{tenantId}/etsy/listings [get]
func (ctl *EtsyController) ListListings(c *gin.Context) {
	var req dto.EtsyListingsReq
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := ctl.syncSvc.ListingsForTenant(c.Request.Context(), c.Param("tenantId"), service.ListingFilter{
		State:  req.State,
		Limit:  req.Limit,
		Offset: req.Offset,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	success(c, resp)
}

// SyncBatch 批量同步
// @Summary 批量同步商品
// @Description piece_ids 为空时同步全部开启同步的商品，单个失败不影响其他
// @Tags Etsy (同步)
// @Accept json
// @Produce json
// @Param tenantId path string true "租户ID"
// @Param request body dto.BatchSyncReq false "商品ID列表"
// @Success 200 {object} service.SyncReport
// @Router /api/v1/tenants/{tenantId}/etsy/sync [post]
func (ctl *EtsyController) SyncBatch(c *gin.Context) {
	var req dto.BatchSyncReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	report, err := ctl.reconcileSvc.SyncPieces(c.Request.Context(), c.Param("tenantId"), req.PieceIDs)
	if err != nil {
		handleError(c, err)
		return
	}
	success(c, report)
}
