package public

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/tianyuan-next/internal/constants"

	"github.com/gin-gonic/gin"
)

func parseCallbackOwner(c *gin.Context) (uint, string, bool) {
	ownerType := strings.TrimSpace(c.Param("owner_type"))
	if ownerType != constants.OwnerTypeAdmin && ownerType != constants.OwnerTypeAgent {
		return 0, "", false
	}
	ownerID, err := strconv.ParseUint(c.Param("owner_id"), 10, 64)
	if err != nil || ownerID == 0 {
		return 0, "", false
	}
	return uint(ownerID), ownerType, true
}

// AlipayCallback 支付宝异步通知。
// 支付宝要求明文应答 success/fail,与平台统一响应包格式无关。
func (h *Handler) AlipayCallback(c *gin.Context) {
	ownerID, ownerType, ok := parseCallbackOwner(c)
	if !ok {
		c.String(http.StatusOK, constants.AlipayCallbackFail)
		return
	}
	if err := c.Request.ParseForm(); err != nil {
		requestLog(c).Warnw("alipay_callback_parse_form_failed", "error", err)
		c.String(http.StatusOK, constants.AlipayCallbackFail)
		return
	}

	result := h.PaymentService.HandleAlipayCallback(c.Request.Context(), ownerID, ownerType, c.Request.Form)
	c.String(http.StatusOK, result)
}

// WechatCallback 微信支付异步通知。
// 验签或处理失败时按微信支付协议返回非 2xx 应答,渠道侧会重试。
func (h *Handler) WechatCallback(c *gin.Context) {
	ownerID, ownerType, ok := parseCallbackOwner(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"code": "FAIL", "message": "invalid notify target"})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		requestLog(c).Warnw("wechat_callback_read_body_failed", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"code": "FAIL", "message": "read body failed"})
		return
	}

	headers := make(map[string]string, len(c.Request.Header))
	for key := range c.Request.Header {
		headers[key] = c.GetHeader(key)
	}

	if err := h.PaymentService.HandleWechatCallback(c.Request.Context(), ownerID, ownerType, headers, body); err != nil {
		requestLog(c).Warnw("wechat_callback_failed",
			"owner_id", ownerID,
			"owner_type", ownerType,
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "FAIL", "message": "process failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": "SUCCESS"})
}
