package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"madebuy/internal/service"
	"madebuy/pkg/etsy"
)

// Response 统一响应信封，code 为 0 表示成功
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: 0, Message: "success", Data: data})
}

func created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Code: 0, Message: "success", Data: data})
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, Response{Code: status, Message: message})
}

func badRequest(c *gin.Context, err error) {
	fail(c, http.StatusBadRequest, "参数错误: "+err.Error())
}

// errorStatus 领域错误 → HTTP 状态码
func errorStatus(err error) int {
	var oauthErr *service.OAuthError
	var apiErr *etsy.APIError

	switch {
	case errors.Is(err, service.ErrProfileNotFound),
		errors.Is(err, service.ErrZoneNotFound),
		errors.Is(err, service.ErrPieceNotFound),
		errors.Is(err, service.ErrTenantNotFound),
		errors.Is(err, service.ErrConnectionNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrDefaultProfileInUse),
		errors.Is(err, service.ErrConnectionErrored),
		errors.Is(err, service.ErrNotLinked):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrNoShippingRate),
		errors.Is(err, service.ErrNoEtsyShop),
		errors.Is(err, service.ErrMissingPrice):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrStateInvalid):
		return http.StatusBadRequest
	case errors.As(err, &oauthErr), errors.As(err, &apiErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func handleError(c *gin.Context, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		fail(c, status, "internal error")
		return
	}
	fail(c, status, err.Error())
}

// syncResponse SyncResult 失败时仍然携带结果，便于前端展示 listing 链接
func syncResponse(c *gin.Context, res service.SyncResult) {
	if res.Success {
		success(c, res)
		return
	}
	c.JSON(http.StatusUnprocessableEntity, Response{
		Code:    http.StatusUnprocessableEntity,
		Message: res.Error,
		Data:    res,
	})
}
