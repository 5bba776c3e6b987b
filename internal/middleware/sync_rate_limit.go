package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ==================== 同步限流中间件 ====================

// SyncRateLimit 同步限流中间件
// 按租户 (+ 商品) + 同步类型维度进行限流
//
// 使用示例:
//
//	limiter := middleware.NewSyncRateLimiter()
//	router.POST("/tenants/:tenantId/etsy/sync",
//	    middleware.SyncRateLimit(limiter, middleware.SyncTypeBatch, 0),
//	    controller.SyncBatch,
//	)
//
// 参数:
//   - syncType: 同步类型
//   - interval: 冷却间隔，0 表示使用默认值
func SyncRateLimit(limiter *SyncRateLimiter, syncType SyncType, interval time.Duration) gin.HandlerFunc {
	if interval == 0 {
		interval = GetInterval(syncType)
	}

	return func(c *gin.Context) {
		tenantID := c.Param("tenantId")

		var key string
		if tenantID != "" {
			key = TenantSyncKey(tenantID, c.Param("pieceId"), syncType)
		} else {
			// 无租户，使用全局限流
			key = GlobalSyncKey(syncType)
		}

		// 检查限流
		result := limiter.Check(key, interval)
		if !result.Allowed {
			retryAfter := int(result.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"code":    429,
				"message": formatRetryMessage(result.RetryAfter),
				"data": gin.H{
					"retry_after": retryAfter,
					"sync_type":   syncType,
				},
			})
			c.Abort()
			return
		}

		c.Next()

		// 失败的同步不占用冷却时间，修正后可立即重试
		if c.Writer.Status() >= http.StatusBadRequest {
			limiter.Reset(key)
		}
	}
}

// ==================== 辅助函数 ====================

// formatRetryMessage 格式化重试提示信息
func formatRetryMessage(d time.Duration) string {
	seconds := int(d.Seconds())
	if seconds < 1 {
		seconds = 1
	}

	if seconds < 60 {
		return fmt.Sprintf("sync is cooling down, retry in %d seconds", seconds)
	}

	minutes := seconds / 60
	remainingSeconds := seconds % 60

	if remainingSeconds == 0 {
		return fmt.Sprintf("sync is cooling down, retry in %d minutes", minutes)
	}

	return fmt.Sprintf("sync is cooling down, retry in %dm%ds", minutes, remainingSeconds)
}
